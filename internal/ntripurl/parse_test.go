package ntripurl

import "testing"

func TestParseDefaults(t *testing.T) {
	r, err := Parse("ntrip:MOUNT")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Server != "www.euref-ip.net" || r.Port != "2101" {
		t.Errorf("expected default server/port, got %s:%s", r.Server, r.Port)
	}
	if r.Mountpoint != "MOUNT" {
		t.Errorf("Mountpoint = %q, want MOUNT", r.Mountpoint)
	}
}

func TestParseFullGrammar(t *testing.T) {
	r, err := Parse("ntrip:MOUNT/user:pass@caster.example:2102@proxy.example:8080;$GPGGA,dummy")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Mountpoint != "MOUNT" || r.User != "user" || r.Password != "pass" {
		t.Errorf("unexpected user/pass: %+v", r)
	}
	if r.Server != "caster.example" || r.Port != "2102" {
		t.Errorf("unexpected server/port: %+v", r)
	}
	if r.ProxyHost != "proxy.example" || r.ProxyPort != "8080" {
		t.Errorf("unexpected proxy: %+v", r)
	}
	if r.NMEA != "$GPGGA,dummy" {
		t.Errorf("NMEA = %q", r.NMEA)
	}
}

// TestParseRoundTrip checks spec invariant 3: formatting a parsed
// descriptor back to URL form and re-parsing yields an equal descriptor
// over every field the grammar carries.
func TestParseRoundTrip(t *testing.T) {
	cases := []string{
		"ntrip:MOUNT",
		"ntrip:MOUNT/user:pass@caster.example:2102",
		"ntrip:MOUNT/user@caster.example:2102@proxy.example:3128",
		"ntrip:?filter@caster.example",
	}
	for _, raw := range cases {
		r1, err := Parse(raw)
		if err != nil {
			t.Fatalf("Parse(%q): %v", raw, err)
		}
		r2, err := Parse(r1.String())
		if err != nil {
			t.Fatalf("Parse(%q) [round-trip %q]: %v", raw, r1.String(), err)
		}
		if r1 != r2 {
			t.Errorf("round trip mismatch for %q: %+v != %+v", raw, r1, r2)
		}
	}
}

func TestParseInvalidPort(t *testing.T) {
	if _, err := Parse("ntrip:MOUNT@caster.example:99999"); err == nil {
		t.Fatal("expected an error for an out-of-range port")
	}
}

// TestParseServicePortName checks that a non-numeric port (a /etc/services
// style service name, e.g. "rtcm-ntrip") is accepted rather than rejected as
// "not numeric" — the dialer's net.Dialer/net.JoinHostPort resolves these,
// and original_source/ntripclient.c's getargs() never numeric-validates the
// port string at all.
func TestParseServicePortName(t *testing.T) {
	r, err := Parse("ntrip:MOUNT@caster.example:rtcm-ntrip")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if r.Port != "rtcm-ntrip" {
		t.Errorf("Port = %q, want rtcm-ntrip", r.Port)
	}
}

func TestIsSourcetableFilter(t *testing.T) {
	r, err := Parse("ntrip:?str")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !r.IsSourcetableFilter() {
		t.Error("expected a mountpoint beginning with '?' to be a sourcetable filter")
	}
}

func TestEncodePath(t *testing.T) {
	if got := EncodePath("MOUNT"); got != "MOUNT" {
		t.Errorf("EncodePath(plain) = %q, want unchanged", got)
	}
	got := EncodePath("?str=A B")
	if got != "%3fstr%3dA%20B" {
		t.Errorf("EncodePath(filter) = %q", got)
	}
}

func TestParseModeAliases(t *testing.T) {
	for _, s := range []string{"1", "h", "http", "HTTP"} {
		m, err := ParseMode(s)
		if err != nil || m != ModeHTTP {
			t.Errorf("ParseMode(%q) = %v, %v; want ModeHTTP", s, m, err)
		}
	}
	if _, err := ParseMode("bogus"); err == nil {
		t.Error("expected an error for an unknown mode")
	}
}

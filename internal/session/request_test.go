package session

import (
	"strings"
	"testing"

	"github.com/bramburn/ntripclient/internal/ntripurl"
)

func TestBuildHTTPRequestHTTPModeSendsGGAHeader(t *testing.T) {
	req := ntripurl.Default()
	req.Mountpoint = "MOUNT"
	req.Mode = ntripurl.ModeHTTP
	req.NMEA = "$GPGGA,dummy"

	out := string(buildHTTPRequest(req, "test-agent/1.0"))
	if !strings.Contains(out, "Ntrip-GGA: $GPGGA,dummy\r\n") {
		t.Errorf("expected an Ntrip-GGA header, got:\n%s", out)
	}
	if strings.Count(out, "$GPGGA,dummy") != 1 {
		t.Error("NMEA should not also appear as a request body in HTTP mode")
	}
}

func TestBuildHTTPRequestAutoModeSendsGGAAsBody(t *testing.T) {
	req := ntripurl.Default()
	req.Mountpoint = "MOUNT"
	req.Mode = ntripurl.ModeAuto
	req.NMEA = "$GPGGA,dummy"

	out := string(buildHTTPRequest(req, "test-agent/1.0"))
	if strings.Contains(out, "Ntrip-GGA:") {
		t.Errorf("did not expect an Ntrip-GGA header in auto mode, got:\n%s", out)
	}
	if !strings.HasSuffix(out, "$GPGGA,dummy\r\n") {
		t.Errorf("expected the NMEA sentence as a trailing body, got:\n%s", out)
	}
}

func TestBuildUDPRequestAlwaysSendsGGAHeader(t *testing.T) {
	req := ntripurl.Default()
	req.Mountpoint = "MOUNT"
	req.Mode = ntripurl.ModeUDP
	req.NMEA = "$GPGGA,dummy"

	out := string(buildUDPRequest(req, "test-agent/1.0"))
	if !strings.Contains(out, "Ntrip-GGA: $GPGGA,dummy\r\n") {
		t.Errorf("expected an Ntrip-GGA header in UDP mode, got:\n%s", out)
	}
}

func TestBuildRequestHeadersIncludesAuthorization(t *testing.T) {
	req := ntripurl.Default()
	req.Mountpoint = "MOUNT"
	req.User = "alice"
	req.Password = "secret"

	out := string(buildHTTPRequest(req, "test-agent/1.0"))
	if !strings.Contains(out, "Authorization: Basic ") {
		t.Errorf("expected an Authorization header, got:\n%s", out)
	}
}

func TestRequestURIUsesAbsoluteFormWhenProxying(t *testing.T) {
	req := ntripurl.Default()
	req.Mountpoint = "MOUNT"
	req.ProxyHost = "proxy.example"
	req.ProxyPort = "3128"

	out := string(buildHTTPRequest(req, "test-agent/1.0"))
	firstLine := strings.SplitN(out, "\r\n", 2)[0]
	if !strings.HasPrefix(firstLine, "GET http://"+req.Server+":"+req.Port+"/") {
		t.Errorf("expected absolute-URI request line when proxying, got %q", firstLine)
	}
}

func TestSanitizeLineReplacesControlBytes(t *testing.T) {
	got := sanitizeLine("abc\x01\x02def")
	if got != "abc..def" {
		t.Errorf("sanitizeLine = %q, want abc..def", got)
	}
}

// Package ntripurl builds and validates the request descriptor (spec §3)
// from the `ntrip:` URL grammar (spec §4.1) and from CLI flag overrides.
package ntripurl

import (
	"fmt"
	"strconv"

	"go.bug.st/serial"
)

// SerialConfig is the request descriptor's optional serial half (spec §3
// `serial`); presence redirects the sink from stdout to a serial device.
type SerialConfig struct {
	Device      string
	Baud        int
	DataBits    int
	StopBits    serial.StopBits
	Parity      serial.Parity
	FlowControl string // "off", "rtscts", "xonxoff" — see internal/serialport
}

// Request is the immutable request descriptor (spec §3). It is built once
// by Parse/merging CLI flags and never mutated afterwards.
type Request struct {
	Server   string
	Port     string
	Mountpoint string
	User     string
	Password string

	ProxyHost string
	ProxyPort string

	NMEA string

	Mode Mode

	UDPPort int
	InitUDP bool

	BitrateReport bool

	Serial         *SerialConfig
	SerialLogPath  string
}

// Default returns the descriptor's zero value with the original client's
// defaults filled in (original_source/ntripclient.c getargs()).
func Default() Request {
	return Request{
		Server: "www.euref-ip.net",
		Port:   "2101",
		Mode:   ModeAuto,
	}
}

// HasMountpoint reports whether a stream (as opposed to the sourcetable)
// was requested.
func (r Request) HasMountpoint() bool { return r.Mountpoint != "" }

// IsSourcetableFilter reports whether the mountpoint is actually a
// sourcetable filter expression (spec §4.1: "If the mountpoint begins with
// `?`").
func (r Request) IsSourcetableFilter() bool {
	return len(r.Mountpoint) > 0 && r.Mountpoint[0] == '?'
}

// HasCredentials reports whether an Authorization header should be sent
// (spec §3: "send Authorization only when at least one is non-empty").
func (r Request) HasCredentials() bool {
	return r.User != "" || r.Password != ""
}

// validatePort checks the 1..65535 range from spec §4.1, but only when s is
// numeric. A service name (e.g. "rtcm-ntrip") is passed through unchecked and
// left for the dialer's net.Dialer/net.JoinHostPort to resolve, mirroring
// original_source/ntripclient.c's getargs(), which never numeric-validates
// the port string at all.
func validatePort(field, s string) error {
	if s == "" || !isAllDigits(s) {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil
	}
	if n < 1 || n > 65535 {
		return fmt.Errorf("ntripurl: %s: out of range 1..65535: %d", field, n)
	}
	return nil
}

func isAllDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

// Validate runs the descriptor's field-level checks (spec §4.1), returning
// a short diagnostic naming the offending field on failure.
func (r Request) Validate() error {
	if r.Server == "" {
		return fmt.Errorf("ntripurl: server: must not be empty")
	}
	if err := validatePort("port", r.Port); err != nil {
		return err
	}
	if err := validatePort("proxyport", r.ProxyPort); err != nil {
		return err
	}
	return nil
}

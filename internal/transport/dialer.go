// Package transport resolves host/service names and opens the TCP or UDP
// endpoint the session engine talks to, optionally through an HTTP proxy
// (spec §4.4). Grounded on bramburn-gnssgo/pkg/gnssgo/stream/tcp.go's
// GenTcp, which dials with a fixed-timeout net.Dialer rather than raw
// syscalls — the idiomatic Go analogue of the original's
// getaddrinfo+socket+connect sequence.
package transport

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DefaultConnectTimeout matches the original's 10 second connect timeout
// (stream/tcp.go defaultConnTimeout).
const DefaultConnectTimeout = 10 * time.Second

// Dialer opens TCP control connections and UDP data sockets.
type Dialer struct {
	Timeout time.Duration
}

// NewDialer returns a Dialer configured with DefaultConnectTimeout.
func NewDialer() *Dialer {
	return &Dialer{Timeout: DefaultConnectTimeout}
}

// DialTCP connects to host:portOrService. portOrService may be numeric or
// a service name; Go's own resolver handles both the way the original
// resolves the service name before the hostname.
func (d *Dialer) DialTCP(ctx context.Context, host, portOrService string) (net.Conn, error) {
	nd := &net.Dialer{Timeout: d.timeout()}
	conn, err := nd.DialContext(ctx, "tcp", net.JoinHostPort(host, portOrService))
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s:%s: %w", host, portOrService, err)
	}
	return conn, nil
}

// DialProxyTCP opens the TCP connection to an HTTP proxy instead of
// directly to the caster; the session engine is responsible for then using
// absolute-URI request lines (spec §4.4).
func (d *Dialer) DialProxyTCP(ctx context.Context, proxyHost, proxyPort string) (net.Conn, error) {
	conn, err := d.DialTCP(ctx, proxyHost, proxyPort)
	if err != nil {
		return nil, fmt.Errorf("transport: dial proxy: %w", err)
	}
	return conn, nil
}

// DialUDP binds localPort (0 lets the OS choose) before connecting to
// host:portOrService, per spec §4.4: "UDP mode requires the local UDP port
// to be bound before connect so the caster can reply to a known port."
func (d *Dialer) DialUDP(host, portOrService string, localPort int) (*net.UDPConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, portOrService))
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s:%s: %w", host, portOrService, err)
	}
	laddr := &net.UDPAddr{Port: localPort}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial udp %s:%s: %w", host, portOrService, err)
	}
	return conn, nil
}

func (d *Dialer) timeout() time.Duration {
	if d.Timeout <= 0 {
		return DefaultConnectTimeout
	}
	return d.Timeout
}

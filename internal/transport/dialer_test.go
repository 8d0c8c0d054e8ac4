package transport

import (
	"context"
	"net"
	"testing"
	"time"
)

func TestDialTCPConnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			conn.Close()
		}
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}

	d := &Dialer{Timeout: time.Second}
	conn, err := d.DialTCP(context.Background(), host, port)
	if err != nil {
		t.Fatalf("DialTCP: %v", err)
	}
	conn.Close()
}

func TestDialTCPFailsFast(t *testing.T) {
	d := &Dialer{Timeout: time.Second}
	if _, err := d.DialTCP(context.Background(), "127.0.0.1", "1"); err == nil {
		t.Fatal("expected an error dialing a closed port")
	}
}

func TestDialUDPBindsLocalPort(t *testing.T) {
	d := NewDialer()
	conn, err := d.DialUDP("127.0.0.1", "12345", 0)
	if err != nil {
		t.Fatalf("DialUDP: %v", err)
	}
	defer conn.Close()
	if conn.LocalAddr() == nil {
		t.Fatal("expected a bound local address")
	}
}

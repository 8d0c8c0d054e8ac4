package session

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/bramburn/ntripclient/internal/ntripurl"
	"github.com/sirupsen/logrus"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

func listenerAddr(t *testing.T, ln net.Listener) (host, port string) {
	t.Helper()
	host, port, err := net.SplitHostPort(ln.Addr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}
	return host, port
}

// TestEngineSourcetableScenario is spec §8 scenario S1: a fake caster
// returns a sourcetable body, the engine prints it exactly once and exits
// with a nil error (exit 0).
func TestEngineSourcetableScenario(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	const body = "STR;A;B\r\n"
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte("SOURCETABLE 200 OK\r\nContent-Type: gnss/sourcetable\r\nContent-Length: " +
			"9\r\n\r\n" + body))
	}()

	host, port := listenerAddr(t, ln)
	req := ntripurl.Default()
	req.Server = host
	req.Port = port

	var sink bytes.Buffer
	eng := New(req, &sink, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := eng.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sink.String() != body {
		t.Errorf("sink = %q, want %q", sink.String(), body)
	}
}

// TestEngineStreamScenario follows spec §8 scenario S2 over an NTRIP-2
// response instead of ICY: a fake caster answers "HTTP/1.1 200 OK" with
// gnss/data, streams 3 KiB of plain (non-chunked) data and then closes; the
// engine forwards every byte in order and returns nil on the clean EOF.
func TestEngineStreamScenario(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	payload := bytes.Repeat([]byte("X"), 3*1024)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Type: gnss/data\r\n\r\n"))
		conn.Write(payload)
	}()

	host, port := listenerAddr(t, ln)
	req := ntripurl.Default()
	req.Server = host
	req.Port = port
	req.Mountpoint = "MOUNT"
	req.Mode = ntripurl.ModeHTTP

	var sink bytes.Buffer
	eng := New(req, &sink, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := eng.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !bytes.Equal(sink.Bytes(), payload) {
		t.Errorf("forwarded %d bytes, want %d matching payload", sink.Len(), len(payload))
	}
}

// TestEngineModeMismatchIsHard checks that an ICY response to an explicit
// http-mode request is a hard (non-reconnecting) failure (spec §7).
func TestEngineModeMismatchIsHard(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 4096)
		conn.Read(buf)
		conn.Write([]byte("ICY 200 OK\r\n\r\n"))
	}()

	host, port := listenerAddr(t, ln)
	req := ntripurl.Default()
	req.Server = host
	req.Port = port
	req.Mountpoint = "MOUNT"
	req.Mode = ntripurl.ModeHTTP

	var sink bytes.Buffer
	eng := New(req, &sink, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = eng.Run(ctx)
	if err == nil {
		t.Fatal("expected a hard error on mode mismatch")
	}
	if !strings.Contains(err.Error(), "mode mismatch") {
		t.Errorf("err = %v, want a mode-mismatch message", err)
	}
}

// TestEngineResetsBackoffAfterSuccessfulStream checks spec §8 invariant 5's
// "k counts *consecutive* failures": a connection that streamed data before
// failing must reconnect after the base 1s delay again, not a delay that
// kept growing from an earlier, unrelated failure.
func TestEngineResetsBackoffAfterSuccessfulStream(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	acceptTimes := make(chan time.Time, 3)
	go func() {
		for i := 0; i < 3; i++ {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			acceptTimes <- time.Now()
			buf := make([]byte, 4096)
			conn.Read(buf)

			if i == 1 {
				// Second attempt: accept the data and stream some payload
				// before the connection drops, so the engine marks itself
				// connected prior to the failure.
				conn.Write([]byte("HTTP/1.1 200 OK\r\nContent-Type: gnss/data\r\n\r\nXYZ"))
			}
			if tcp, ok := conn.(*net.TCPConn); ok {
				tcp.SetLinger(0) // abrupt RST, not a clean EOF
			}
			conn.Close()
		}
	}()

	host, port := listenerAddr(t, ln)
	req := ntripurl.Default()
	req.Server = host
	req.Port = port
	req.Mountpoint = "MOUNT"
	req.Mode = ntripurl.ModeHTTP

	var sink bytes.Buffer
	eng := New(req, &sink, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 6*time.Second)
	defer cancel()

	eng.Run(ctx)
	close(acceptTimes)

	var times []time.Time
	for ts := range acceptTimes {
		times = append(times, ts)
	}
	if len(times) < 3 {
		t.Fatalf("expected 3 connection attempts, got %d", len(times))
	}

	gap1 := times[1].Sub(times[0])
	gap2 := times[2].Sub(times[1])
	// Without the fix, the second gap would be ~3s (sleeptime grown from
	// the first failure); with it, both gaps sit around the base 1s delay.
	if gap2 > gap1+1500*time.Millisecond {
		t.Errorf("backoff did not reset after a successful stream: gap1=%v gap2=%v", gap1, gap2)
	}
}

// TestEngineReconnectsOnSoftFailure checks that a dial failure against a
// streaming (non-one-shot) request is treated as soft: the engine retries
// rather than giving up, until the caller's context ends the loop (spec
// §7/§8 invariant 5 — this test exercises the reconnect path, not the
// exact backoff timing).
func TestEngineReconnectsOnSoftFailure(t *testing.T) {
	req := ntripurl.Default()
	req.Server = "127.0.0.1"
	req.Port = "1" // nothing listens on port 1
	req.Mountpoint = "MOUNT"

	var sink bytes.Buffer
	eng := New(req, &sink, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	err := eng.Run(ctx)
	if err != nil {
		t.Errorf("expected a graceful nil return on context cancellation, got %v", err)
	}
}

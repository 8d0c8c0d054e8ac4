package session

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/bramburn/ntripclient/internal/framing"
	"github.com/bramburn/ntripclient/internal/ntripurl"
)

// TestUDPAttemptSourcetable exercises spec §4.6's initial RTP-framed GET
// request and sourcetable response path end to end over a loopback UDP
// socket.
func TestUDPAttemptSourcetable(t *testing.T) {
	server, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.ParseIP("127.0.0.1")})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer server.Close()

	const body = "STR;A;B\r\n"
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 4096)
		n, addr, err := server.ReadFromUDP(buf)
		if err != nil {
			return
		}
		if n < framing.RTPHeaderLen {
			t.Errorf("initial datagram too short: %d bytes", n)
		}
		reply := framing.Header{Version: 2, PayloadType: framing.PayloadTypeData, SSRC: 42}.Marshal()
		reply = append(reply, []byte("HTTP/1.1 200 OK\r\nContent-Type: gnss/sourcetable\r\nContent-Length: 9\r\n\r\n"+body)...)
		server.WriteToUDP(reply, addr)
	}()

	host, port, err := net.SplitHostPort(server.LocalAddr().String())
	if err != nil {
		t.Fatalf("SplitHostPort: %v", err)
	}

	req := ntripurl.Default()
	req.Server = host
	req.Port = port
	req.Mountpoint = "?filter"
	req.Mode = ntripurl.ModeUDP

	var sink bytes.Buffer
	eng := New(req, &sink, quietLogger())
	eng.watchdog = NewWatchdog(time.Second)
	defer eng.watchdog.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	if err := eng.udpAttempt(ctx, quietLogger()); err != nil {
		t.Fatalf("udpAttempt: %v", err)
	}
	<-done
	if sink.String() != body {
		t.Errorf("sink = %q, want %q", sink.String(), body)
	}
}

// TestRTPClockAdvanceDoesNotOverflow checks the keepalive timestamp-advance
// formula against a realistic 15s keepalive interval: the previous
// implementation multiplied an already-microsecond delta by another
// 1,000,000 before dividing, overflowing uint32 on every tick.
func TestRTPClockAdvanceDoesNotOverflow(t *testing.T) {
	got := rtpClockAdvance(15 * time.Second)
	want := uint32(15 * 1000000 / 125)
	if got != want {
		t.Errorf("rtpClockAdvance(15s) = %d, want %d", got, want)
	}
}

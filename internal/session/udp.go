package session

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"github.com/bramburn/ntripclient/internal/framing"
	"github.com/sirupsen/logrus"
)

// udpAttempt drives one connection attempt in NTRIP-2 plain UDP mode
// (spec §4.6).
func (e *Engine) udpAttempt(ctx context.Context, log logrus.FieldLogger) error {
	conn, err := e.Dialer.DialUDP(e.Req.Server, e.Req.Port, e.Req.UDPPort)
	if err != nil {
		return Soft(fmt.Errorf("%w: %v", ErrDial, err))
	}
	defer conn.Close()

	sessionID := randUint32()
	seq := uint16(randUint32())
	ts := randUint32()

	initPacket := framing.Header{
		Version:     2,
		PayloadType: framing.PayloadTypeRequest,
		Sequence:    seq,
		Timestamp:   ts,
		SSRC:        sessionID,
	}.Marshal()
	initPacket = append(initPacket, buildUDPRequest(e.Req, e.UserAgent)...)

	if _, err := conn.Write(initPacket); err != nil {
		return Soft(fmt.Errorf("%w: %v", ErrSend, err))
	}

	conn.SetReadDeadline(time.Now().Add(e.Dialer.Timeout))
	reply := make([]byte, 65536)
	n, err := conn.Read(reply)
	if err != nil {
		return Soft(fmt.Errorf("%w: %v", ErrRecv, err))
	}
	if n < framing.RTPHeaderLen {
		return Soft(fmt.Errorf("%w: short UDP reply", ErrUnexpectedReply))
	}
	body := reply[framing.RTPHeaderLen:n]

	idx := bytes.Index(body, []byte("\r\n\r\n"))
	if idx < 0 {
		return Soft(fmt.Errorf("%w: no header terminator in initial UDP reply", ErrUnexpectedReply))
	}
	header := string(body[:idx+4])
	residual := body[idx+4:]

	if s, ok := framing.ExtractSession(header); ok {
		if v, perr := parseUint32(s); perr == nil {
			sessionID = v
		}
	}

	if containsFold(header, "gnss/sourcetable") {
		return e.drainUDPSourcetable(conn, header, residual)
	}

	return e.withSerialBridge(ctx, conn, func() error {
		return e.udpDataLoop(ctx, conn, sessionID, seq, ts, residual, log)
	})
}

// drainUDPSourcetable reads Content-Length bytes of sourcetable body,
// potentially spanning further plain (non-RTP-framed) datagrams, per spec
// §4.6.
func (e *Engine) drainUDPSourcetable(conn net.Conn, header string, residual []byte) error {
	length, ok := extractContentLength(header)
	body := residual
	if ok {
		buf := make([]byte, 65536)
		for len(body) < length {
			conn.SetReadDeadline(time.Now().Add(5 * time.Second))
			n, err := conn.Read(buf)
			if n > 0 {
				body = append(body, buf[:n]...)
			}
			if err != nil {
				break
			}
		}
		if len(body) > length {
			body = body[:length]
		}
	}
	if _, err := e.Sink.Write(body); err != nil {
		return Soft(fmt.Errorf("%w: %v", ErrSend, err))
	}
	return nil
}

// udpDataLoop is the RTP data loop of spec §4.6: sequence/timestamp
// bookkeeping, out-of-order rejection, payload-98 teardown detection, and
// a 15s keepalive.
func (e *Engine) udpDataLoop(ctx context.Context, conn net.Conn, sessionID uint32, seq uint16, ts uint32, residual []byte, log logrus.FieldLogger) error {
	e.markConnected()

	sn := seq
	lastTs := ts
	initialized := false
	lastKeepalive := time.Now()
	keepaliveSeq := seq

	forward := func(pkt []byte) error {
		h, err := framing.ParseHeader(pkt)
		if err != nil || !framing.IsKnownPayloadType(h.PayloadType) {
			return nil // spec §4.6: silently accept only version 2 / known payload types
		}
		if h.SSRC != sessionID || (initialized && h.Timestamp < lastTs) {
			log.Warn("session: illegal UDP data received")
			return nil
		}
		newer := !initialized || framing.SequenceGreater(h.Sequence, sn)
		if newer {
			if h.PayloadType == framing.PayloadTypeTeardown {
				return Soft(fmt.Errorf("%w", ErrCasterClosed))
			}
			if h.PayloadType == framing.PayloadTypeData && len(pkt) > framing.RTPHeaderLen {
				if _, err := e.Sink.Write(pkt[framing.RTPHeaderLen:]); err != nil {
					return Soft(fmt.Errorf("%w: %v", ErrSend, err))
				}
			}
			sn = h.Sequence
		}
		lastTs = h.Timestamp
		initialized = true
		e.watchdog.Rearm(AlarmTime)
		return nil
	}

	if len(residual) >= framing.RTPHeaderLen {
		if err := forward(residual); err != nil {
			return err
		}
	}

	buf := make([]byte, 65536)
	for {
		select {
		case <-ctx.Done():
			e.sendUDPTeardown(conn, sessionID, keepaliveSeq)
			return ctx.Err()
		default:
		}

		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, err := conn.Read(buf)
		if n >= framing.RTPHeaderLen {
			if perr := forward(buf[:n]); perr != nil {
				return perr
			}
		}
		if err != nil {
			if ne, ok := err.(net.Error); !ok || !ne.Timeout() {
				return Soft(fmt.Errorf("%w: %v", ErrRecv, err))
			}
		}

		if time.Since(lastKeepalive) > KeepaliveInterval {
			keepaliveSeq++
			lastTs += rtpClockAdvance(time.Since(lastKeepalive))
			keepalive := framing.Header{
				Version:     2,
				PayloadType: framing.PayloadTypeData,
				Sequence:    keepaliveSeq,
				Timestamp:   lastTs,
				SSRC:        sessionID,
			}.Marshal()
			conn.Write(keepalive)
			lastKeepalive = time.Now()
		}
	}
}

// sendUDPTeardown sends a single best-effort payload-type-98 packet on
// shutdown (spec §4.6: "On teardown send one payload-type-98 packet
// best-effort").
func (e *Engine) sendUDPTeardown(conn net.Conn, sessionID uint32, seq uint16) {
	pkt := framing.Header{
		Version:     2,
		PayloadType: framing.PayloadTypeTeardown,
		Sequence:    seq + 1,
		SSRC:        sessionID,
	}.Marshal()
	conn.Write(pkt)
}

// rtpClockAdvance converts a wallclock interval to RTP timestamp units at
// the 8kHz clock rate spec §4.6 assumes for GNSS payloads (125us/tick),
// matching original_source/ntripclient.c's seconds-based clock advance
// rather than compounding the microsecond count against itself.
func rtpClockAdvance(elapsed time.Duration) uint32 {
	return uint32(elapsed.Microseconds() / 125)
}

func randUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return uint32(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint32(b[:])
}

func parseUint32(s string) (uint32, error) {
	var v uint64
	_, err := fmt.Sscanf(s, "%d", &v)
	return uint32(v), err
}

package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/bramburn/ntripclient/internal/framing"
	"github.com/bramburn/ntripclient/internal/ntripauth"
	"github.com/bramburn/ntripclient/internal/ntripurl"
	"github.com/sirupsen/logrus"
)

// rtspAttempt drives one connection attempt in NTRIP-2 RTSP/RTP mode (spec
// §4.7): a TCP control channel carrying SETUP/PLAY/GET_PARAMETER/TEARDOWN,
// and a UDP data channel the caster is told about via client_port.
func (e *Engine) rtspAttempt(ctx context.Context, log logrus.FieldLogger) error {
	data, err := net.ListenUDP("udp", nil)
	if err != nil {
		return Soft(fmt.Errorf("%w: %v", ErrDial, err))
	}
	defer data.Close()

	localPort := data.LocalAddr().(*net.UDPAddr).Port

	ctrl, err := e.dialControl(ctx)
	if err != nil {
		return Soft(fmt.Errorf("%w: %v", ErrDial, err))
	}
	defer ctrl.Close()

	cseq := 1
	header, err := rtspRoundTrip(ctrl, buildSetupRequest(e.Req, e.UserAgent, cseq, localPort))
	if err != nil {
		return Soft(err)
	}
	serverPort, ok := framing.ExtractServerPort(header)
	if !ok {
		return Soft(fmt.Errorf("%w: SETUP reply missing server_port", ErrUnexpectedReply))
	}
	session, _ := framing.ExtractSession(header)
	if session == "" {
		return Soft(fmt.Errorf("%w: SETUP reply missing Session", ErrUnexpectedReply))
	}

	if e.Req.InitUDP {
		// NAT pinhole: one 12-byte RTP packet (payload type 96, SSRC set to
		// the session id) from the data socket toward the caster's data
		// port so the reply path is open before PLAY (spec §4.7).
		if raddr, rerr := net.ResolveUDPAddr("udp", net.JoinHostPort(e.Req.Server, fmt.Sprint(serverPort))); rerr == nil {
			ssrc, _ := parseUint32(session)
			pinhole := framing.Header{Version: 2, PayloadType: framing.PayloadTypeData, SSRC: ssrc}.Marshal()
			data.WriteToUDP(pinhole, raddr)
		}
	}

	cseq++
	if _, err := rtspRoundTrip(ctrl, buildPlayRequest(e.Req, e.UserAgent, cseq, session)); err != nil {
		return Soft(err)
	}

	return e.withSerialBridge(ctx, ctrl, func() error {
		return e.rtspDataLoop(ctx, ctrl, data, session, cseq, log)
	})
}

// rtspDataLoop polls the control socket (for asynchronous replies, never
// expected in normal operation) and the data socket in the same 1-second
// tick, since Go has no portable multi-fd select (spec §5): each socket
// gets a short read deadline in turn rather than blocking on one.
func (e *Engine) rtspDataLoop(ctx context.Context, ctrl net.Conn, data *net.UDPConn, session string, cseq int, log logrus.FieldLogger) error {
	e.markConnected()

	lastKeepalive := time.Now()
	buf := make([]byte, 8192)
	var sn uint16 // highest sequence forwarded so far
	initialized := false

	for {
		select {
		case <-ctx.Done():
			cseq++
			rtspRoundTrip(ctrl, buildTeardownRequest(e.Req, e.UserAgent, cseq, session))
			return ctx.Err()
		default:
		}

		data.SetReadDeadline(time.Now().Add(time.Second))
		n, rerr := data.Read(buf)
		if n >= framing.RTPHeaderLen {
			h, perr := framing.ParseHeader(buf[:n])
			if perr == nil && framing.IsKnownPayloadType(h.PayloadType) {
				if h.PayloadType == framing.PayloadTypeTeardown {
					return Soft(fmt.Errorf("%w", ErrCasterClosed))
				}
				if !initialized || framing.SequenceGreater(h.Sequence, sn) {
					if _, werr := e.Sink.Write(buf[framing.RTPHeaderLen:n]); werr != nil {
						return Soft(fmt.Errorf("%w: %v", ErrSend, werr))
					}
					sn = h.Sequence
					initialized = true
				}
				e.watchdog.Rearm(AlarmTime)
			}
		}
		if rerr != nil {
			if ne, ok := rerr.(net.Error); !ok || !ne.Timeout() {
				return Soft(fmt.Errorf("%w: %v", ErrRecv, rerr))
			}
		}

		ctrl.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		ctrlBuf := make([]byte, 512)
		if n, _ := ctrl.Read(ctrlBuf); n > 0 {
			log.WithField("line", sanitizeLine(string(ctrlBuf[:n]))).Debug("rtsp: unsolicited control data")
		}

		if time.Since(lastKeepalive) > KeepaliveInterval {
			cseq++
			if _, err := rtspRoundTrip(ctrl, buildGetParameterRequest(e.Req, e.UserAgent, cseq, session)); err != nil {
				return Soft(err)
			}
			lastKeepalive = time.Now()
		}
	}
}

// rtspRoundTrip writes an RTSP request and reads back its response header.
func rtspRoundTrip(conn net.Conn, req []byte) (string, error) {
	if _, err := conn.Write(req); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSend, err)
	}
	conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	header, _, err := readHeader(conn)
	if err != nil {
		return "", err
	}
	firstLine := header
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		firstLine = header[:idx]
	}
	_, code, reason, perr := framing.ParseStatusLine(firstLine)
	if perr == nil && code != 200 {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", sanitizeLine(firstLine))
		return "", fmt.Errorf("%w: RTSP %d %s", ErrUnexpectedReply, code, reason)
	}
	return header, nil
}

func rtspTarget(req ntripurl.Request) string {
	return fmt.Sprintf("rtsp://%s:%s/%s", req.Server, req.Port, ntripurl.EncodePath(req.Mountpoint))
}

func buildSetupRequest(req ntripurl.Request, userAgent string, cseq, clientPort int) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "SETUP %s RTSP/1.0\r\n", rtspTarget(req))
	fmt.Fprintf(&b, "CSeq: %d\r\n", cseq)
	fmt.Fprintf(&b, "Ntrip-Version: Ntrip/2.0\r\n")
	fmt.Fprintf(&b, "Ntrip-Component: Ntripclient\r\n")
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	if req.NMEA != "" {
		fmt.Fprintf(&b, "Ntrip-GGA: %s\r\n", req.NMEA)
	}
	fmt.Fprintf(&b, "Transport: RTP/GNSS;unicast;client_port=%d\r\n", clientPort)
	if req.HasCredentials() {
		fmt.Fprintf(&b, "Authorization: Basic %s\r\n", ntripauth.EncodeCredential(req.User, req.Password))
	}
	b.WriteString("\r\n")
	return []byte(b.String())
}

func buildPlayRequest(req ntripurl.Request, userAgent string, cseq int, session string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "PLAY %s RTSP/1.0\r\n", rtspTarget(req))
	fmt.Fprintf(&b, "CSeq: %d\r\n", cseq)
	fmt.Fprintf(&b, "Session: %s\r\n", session)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func buildGetParameterRequest(req ntripurl.Request, userAgent string, cseq int, session string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "GET_PARAMETER %s RTSP/1.0\r\n", rtspTarget(req))
	fmt.Fprintf(&b, "CSeq: %d\r\n", cseq)
	fmt.Fprintf(&b, "Session: %s\r\n", session)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func buildTeardownRequest(req ntripurl.Request, userAgent string, cseq int, session string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "TEARDOWN %s RTSP/1.0\r\n", rtspTarget(req))
	fmt.Fprintf(&b, "CSeq: %d\r\n", cseq)
	fmt.Fprintf(&b, "Session: %s\r\n", session)
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	b.WriteString("\r\n")
	return []byte(b.String())
}

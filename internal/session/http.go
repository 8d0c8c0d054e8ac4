package session

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bramburn/ntripclient/internal/framing"
	"github.com/bramburn/ntripclient/internal/ntripurl"
	"github.com/sirupsen/logrus"
)

// dialControl opens the TCP control connection, directly or through the
// configured HTTP proxy (spec §4.4).
func (e *Engine) dialControl(ctx context.Context) (net.Conn, error) {
	if e.Req.ProxyHost != "" {
		return e.Dialer.DialProxyTCP(ctx, e.Req.ProxyHost, e.Req.ProxyPort)
	}
	return e.Dialer.DialTCP(ctx, e.Req.Server, e.Req.Port)
}

// httpAttempt drives one connection attempt over plain HTTP, covering the
// sourcetable fetch and the HTTP/NTRIP1/AUTO stream modes (spec §4.5).
func (e *Engine) httpAttempt(ctx context.Context, log logrus.FieldLogger) error {
	conn, err := e.dialControl(ctx)
	if err != nil {
		return Soft(fmt.Errorf("%w: %v", ErrDial, err))
	}
	defer conn.Close()

	reqBytes := buildHTTPRequest(e.Req, e.UserAgent)
	if _, err := conn.Write(reqBytes); err != nil {
		return Soft(fmt.Errorf("%w: %v", ErrSend, err))
	}

	header, residual, err := readHeader(conn)
	if err != nil {
		return Soft(err)
	}

	return e.withSerialBridge(ctx, conn, func() error {
		return e.pumpHTTPResponse(ctx, conn, header, residual, log)
	})
}

// pumpHTTPResponse classifies the response per spec §4.5 item "HTTP
// response parsing" and dispatches to the matching handler.
func (e *Engine) pumpHTTPResponse(ctx context.Context, conn net.Conn, header string, residual []byte, log logrus.FieldLogger) error {
	firstLine := header
	if idx := strings.IndexByte(header, '\n'); idx >= 0 {
		firstLine = header[:idx]
	}
	proto, code, _, _ := framing.ParseStatusLine(firstLine)

	switch {
	case containsFold(header, "gnss/sourcetable"):
		return e.streamSourcetable(conn, header, residual)

	case code == 200 && containsFold(header, "gnss/data"):
		chunked := containsFold(header, "transfer-encoding: chunked")
		return e.streamData(ctx, conn, residual, chunked, log)

	case strings.EqualFold(proto, "ICY"):
		if e.Req.Mode == ntripurl.ModeHTTP {
			return Hard(fmt.Errorf("%w", ErrModeMismatch))
		}
		if e.Req.Mode == ntripurl.ModeAuto {
			fmt.Fprintln(os.Stderr, "falling back to NTRIP1")
		}
		return e.streamData(ctx, conn, residual, false, log)

	default:
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", sanitizeLine(firstLine))
		return Soft(fmt.Errorf("%w: %s", ErrUnexpectedReply, sanitizeLine(firstLine)))
	}
}

// streamSourcetable reads Content-Length bytes of sourcetable body and
// prints them to the sink (spec §4.4/§4.6); this is always a one-shot
// request.
func (e *Engine) streamSourcetable(conn net.Conn, header string, residual []byte) error {
	length, ok := extractContentLength(header)
	body := residual
	if ok {
		buf := make([]byte, 4096)
		for len(body) < length {
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

// streamData forwards payload bytes to the sink, optionally decoding
// chunked transfer-encoding first, tracking throughput, and re-arming the
// watchdog on every forwarded byte (spec §4.5 "Throughput bookkeeping",
// §4.9 "The watchdog is re-armed on every successful read").
func (e *Engine) streamData(ctx context.Context, conn net.Conn, residual []byte, chunked bool, log logrus.FieldLogger) error {
	e.markConnected()

	var decoder *framing.Decoder
	if chunked {
		decoder = framing.NewDecoder()
	}

	totalBytes := int64(0)
	startTime := time.Now()
	lastReport := startTime

	process := func(chunk []byte) error {
		out := chunk
		if decoder != nil {
			var err error
			out, err = decoder.Decode(chunk)
			if err != nil {
				return Hard(fmt.Errorf("%w: %v", ErrChunkFraming, err))
			}
		}
		if len(out) == 0 {
			return nil
		}
		if _, err := e.Sink.Write(out); err != nil {
			return Soft(fmt.Errorf("%w: %v", ErrSend, err))
		}
		totalBytes += int64(len(out))
		if totalBytes < 0 { // overflow: reset counter and window
			totalBytes = 0
			startTime = time.Now()
		}
		e.watchdog.Rearm(AlarmTime)
		return nil
	}

	if len(residual) > 0 {
		if err := process(residual); err != nil {
			return err
		}
	}
	maybeReportBitrate(e.Req, &lastReport, startTime, totalBytes)

	buf := make([]byte, 8192)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, rerr := conn.Read(buf)
		if n > 0 {
			if perr := process(buf[:n]); perr != nil {
				return perr
			}
			maybeReportBitrate(e.Req, &lastReport, startTime, totalBytes)
		}
		if rerr != nil {
			if ne, ok := rerr.(net.Error); ok && ne.Timeout() {
				continue
			}
			if rerr == io.EOF {
				if decoder != nil && !decoder.Done() {
					return Soft(fmt.Errorf("%w: stream ended mid-chunk", ErrCasterClosed))
				}
				return nil
			}
			return Soft(fmt.Errorf("%w: %v", ErrRecv, rerr))
		}
	}
}

// maybeReportBitrate emits the "Bitrate is ..." stderr line of spec §4.5
// once per BitrateInterval, when the request asked for it.
func maybeReportBitrate(req ntripurl.Request, lastReport *time.Time, startTime time.Time, totalBytes int64) {
	if !req.BitrateReport {
		return
	}
	if time.Since(*lastReport) < BitrateInterval {
		return
	}
	seconds := int64(time.Since(startTime).Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	fmt.Fprintf(os.Stderr, "Bitrate is %dbyte/s (%d seconds accumulated).\n", totalBytes/seconds, seconds)
	*lastReport = time.Now()
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

func extractContentLength(header string) (int, bool) {
	lower := strings.ToLower(header)
	idx := strings.Index(lower, "content-length:")
	if idx < 0 {
		return 0, false
	}
	rest := header[idx+len("content-length:"):]
	rest = strings.TrimLeft(rest, " \t")
	end := strings.IndexByte(rest, '\r')
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil {
		return 0, false
	}
	return n, true
}

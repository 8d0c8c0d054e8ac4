package session

import (
	"fmt"
	"strings"

	"github.com/bramburn/ntripclient/internal/ntripauth"
	"github.com/bramburn/ntripclient/internal/ntripurl"
)

// DefaultUserAgent matches the "<agent>/<revision>" form of spec §4.5.
const DefaultUserAgent = "NTRIP ntripclient/1.0"

// requestPath returns the path component the session engine sends in the
// request line: "/" plus the percent-encoded mountpoint (spec §4.1/§4.5).
func requestPath(req ntripurl.Request) string {
	return "/" + ntripurl.EncodePath(req.Mountpoint)
}

// requestURI returns the request-line target: absolute-URI form when
// proxying (spec §4.4: "the session engine uses absolute-URI form ... when
// proxying"), otherwise the plain path.
func requestURI(req ntripurl.Request) string {
	path := requestPath(req)
	if req.ProxyHost != "" {
		return fmt.Sprintf("http://%s:%s%s", req.Server, req.Port, path)
	}
	return path
}

// buildRequestHeaders constructs the common "GET ... HTTP/1.1" header
// block shared by the HTTP and UDP paths (spec §4.5/§4.6).
func buildRequestHeaders(req ntripurl.Request, userAgent string, includeGGAHeader bool) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "GET %s HTTP/1.1\r\n", requestURI(req))
	fmt.Fprintf(&b, "Host: %s\r\n", req.Server)
	if req.Mode != ntripurl.ModeNTRIP1 {
		b.WriteString("Ntrip-Version: Ntrip/2.0\r\n")
	}
	fmt.Fprintf(&b, "User-Agent: %s\r\n", userAgent)
	if req.NMEA != "" && includeGGAHeader {
		fmt.Fprintf(&b, "Ntrip-GGA: %s\r\n", req.NMEA)
	}
	if req.HasCredentials() {
		fmt.Fprintf(&b, "Authorization: Basic %s\r\n", ntripauth.EncodeCredential(req.User, req.Password))
	}
	b.WriteString("Connection: close\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// buildHTTPRequest constructs the GET request of spec §4.5: Ntrip-GGA is
// only sent as a header in HTTP mode; in NTRIP1/AUTO an NMEA sentence
// instead travels as the request body (NTRIP-1 convention).
func buildHTTPRequest(req ntripurl.Request, userAgent string) []byte {
	headers := buildRequestHeaders(req, userAgent, req.Mode == ntripurl.ModeHTTP)
	if req.NMEA != "" && req.Mode != ntripurl.ModeHTTP {
		headers = append(headers, []byte(req.NMEA+"\r\n")...)
	}
	return headers
}

// buildUDPRequest constructs the initial UDP-mode GET request of spec
// §4.6, where Ntrip-GGA is unconditional (unlike the HTTP path above).
func buildUDPRequest(req ntripurl.Request, userAgent string) []byte {
	return buildRequestHeaders(req, userAgent, true)
}

// sanitizeLine replaces non-printable bytes with '.' for the short
// diagnostic of spec §4.5 item 3.
func sanitizeLine(line string) string {
	var b strings.Builder
	for i := 0; i < len(line); i++ {
		c := line[i]
		if c >= 0x20 && c < 0x7f {
			b.WriteByte(c)
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

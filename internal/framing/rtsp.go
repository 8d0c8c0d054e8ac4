package framing

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseStatusLine splits an RTSP/HTTP status line ("RTSP/1.0 200 OK") into
// its protocol, status code and reason phrase.
func ParseStatusLine(line string) (proto string, code int, reason string, err error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) < 2 {
		return "", 0, "", fmt.Errorf("framing: malformed status line %q", line)
	}
	code, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", 0, "", fmt.Errorf("framing: malformed status code in %q: %w", line, err)
	}
	reason = ""
	if len(parts) == 3 {
		reason = parts[2]
	}
	return parts[0], code, reason, nil
}

// ExtractServerPort scans an RTSP SETUP response for "server_port=<digits>"
// terminated by '\r' or ';' (spec §4.6 "SETUP"), case-insensitively.
func ExtractServerPort(header string) (int, bool) {
	idx := indexFold(header, "server_port=")
	if idx < 0 {
		return 0, false
	}
	rest := header[idx+len("server_port="):]
	end := strings.IndexAny(rest, "\r;")
	if end < 0 {
		end = len(rest)
	}
	n, err := strconv.Atoi(rest[:end])
	if err != nil {
		return 0, false
	}
	return n, true
}

// ExtractSession scans an RTSP response for "Session: <digits>" terminated
// by '\r' (spec §4.6), case-insensitively.
func ExtractSession(header string) (string, bool) {
	idx := indexFold(header, "session:")
	if idx < 0 {
		return "", false
	}
	rest := strings.TrimLeft(header[idx+len("session:"):], " \t")
	end := strings.IndexByte(rest, '\r')
	if end < 0 {
		end = len(rest)
	}
	session := strings.TrimSpace(rest[:end])
	if session == "" {
		return "", false
	}
	return session, true
}

// indexFold is a case-insensitive strings.Index: needle must already be
// lowercase.
func indexFold(haystack, needleLower string) int {
	return strings.Index(strings.ToLower(haystack), needleLower)
}

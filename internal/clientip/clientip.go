package clientip

import (
	"net"
	"net/http"
	"net/netip"
	"net/textproto"
	"slices"
	"strings"
)

// RemoteAddrKey holds the transport-level peer address inside a Headers set.
const RemoteAddrKey = "REMOTE_ADDR"

// Headers maps header names to their raw values as supplied by the transport.
type Headers map[string]string

// priority lists the keys consulted by Resolve, most trusted first.
var priority = []string{
	"Client-IP",
	"X-Forwarded-For",
	"X-Forwarded",
	"X-Cluster-Client-IP",
	"Forwarded-For",
	"Forwarded",
	RemoteAddrKey,
}

var (
	privatePrefixes = []netip.Prefix{
		netip.MustParsePrefix("10.0.0.0/8"),
		netip.MustParsePrefix("172.16.0.0/12"),
		netip.MustParsePrefix("192.168.0.0/16"),
		netip.MustParsePrefix("fc00::/7"),
	}
	reservedPrefixes = []netip.Prefix{
		netip.MustParsePrefix("0.0.0.0/8"),
		netip.MustParsePrefix("127.0.0.0/8"),
		netip.MustParsePrefix("169.254.0.0/16"),
		netip.MustParsePrefix("240.0.0.0/4"),
		netip.MustParsePrefix("::/128"),
		netip.MustParsePrefix("::1/128"),
		netip.MustParsePrefix("::ffff:0:0/96"),
		netip.MustParsePrefix("fe80::/10"),
	}
)

// FromRequest collects the request headers into a Headers set under their
// canonical names, joining repeated values with commas, and records the peer
// host under RemoteAddrKey. A client header spelled like RemoteAddrKey never
// stands in for the peer address.
func FromRequest(r *http.Request) Headers {
	if r == nil {
		return Headers{}
	}
	keys := make([]string, 0, len(r.Header))
	for k := range r.Header {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make(Headers, len(r.Header)+1)
	for _, k := range keys {
		name := textproto.CanonicalMIMEHeaderKey(k)
		if strings.EqualFold(name, RemoteAddrKey) {
			continue
		}
		value := strings.Join(r.Header[k], ", ")
		if prev, ok := out[name]; ok {
			value = prev + ", " + value
		}
		out[name] = value
	}
	if r.RemoteAddr != "" {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		out[RemoteAddrKey] = host
	}
	return out
}

// Resolve returns the first public IP address found in the highest priority
// header present in h, or "" when there is none.
//
// Only the first present header is inspected. When all of its candidates are
// private, reserved or malformed, lower priority headers are not consulted.
func Resolve(h Headers) string {
	for _, key := range priority {
		value, ok := h.lookup(key)
		if !ok {
			continue
		}
		for _, candidate := range strings.Split(value, ",") {
			candidate = strings.TrimSpace(candidate)
			if IsPublic(candidate) {
				return candidate
			}
		}
		return ""
	}
	return ""
}

// ResolveRequest is shorthand for Resolve(FromRequest(r)).
func ResolveRequest(r *http.Request) string {
	return Resolve(FromRequest(r))
}

// IsPublic reports whether s is an IPv4 or IPv6 literal outside the private
// and reserved ranges.
func IsPublic(s string) bool {
	addr, err := netip.ParseAddr(s)
	if err != nil || addr.Zone() != "" {
		return false
	}
	return !inAny(addr, privatePrefixes) && !inAny(addr, reservedPrefixes)
}

func inAny(addr netip.Addr, prefixes []netip.Prefix) bool {
	for _, p := range prefixes {
		if p.Contains(addr) {
			return true
		}
	}
	return false
}

// lookup prefers an exact key and falls back to a case-insensitive match,
// taking the lexically smallest variant when several are present.
// RemoteAddrKey only matches exactly.
func (h Headers) lookup(key string) (string, bool) {
	if v, ok := h[key]; ok {
		return v, true
	}
	if key == RemoteAddrKey {
		return "", false
	}
	match, found := "", false
	for k := range h {
		if strings.EqualFold(k, key) && (!found || k < match) {
			match, found = k, true
		}
	}
	if !found {
		return "", false
	}
	return h[match], true
}

// Package useragent extracts a coarse browser description from User-Agent
// strings. It recognises only a handful of desktop browsers and is meant for
// human-readable notifications, not for feature detection.
package useragent

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	unknown        = "Unknown"
	unknownVersion = "?"
)

// Descriptor summarises a User-Agent string. All fields are always set.
type Descriptor struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

// String renders the descriptor the way it is sent in login payloads.
func (d Descriptor) String() string {
	return fmt.Sprintf("Browser: %s %s on %s", d.Name, d.Version, d.Platform)
}

type browser struct {
	name  string
	token string
	match func(ua string) bool
}

func contains(token string) func(string) bool {
	return func(ua string) bool { return strings.Contains(ua, token) }
}

// browsers is checked in order; the first match wins.
var browsers = []browser{
	{
		name:  "Internet Explorer",
		token: "MSIE",
		match: func(ua string) bool {
			return strings.Contains(ua, "MSIE") && !strings.Contains(ua, "Opera")
		},
	},
	{name: "Mozilla Firefox", token: "Firefox", match: contains("Firefox")},
	{name: "Google Chrome", token: "Chrome", match: contains("Chrome")},
	{name: "Apple Safari", token: "Safari", match: contains("Safari")},
	{name: "Opera", token: "Opera", match: contains("Opera")},
	{name: "Netscape", token: "Netscape", match: contains("Netscape")},
}

// versionPatterns holds one compiled pattern per browser token.
var versionPatterns = func() map[string]*regexp.Regexp {
	out := make(map[string]*regexp.Regexp, len(browsers))
	for _, b := range browsers {
		out[b.token] = regexp.MustCompile(`(Version|` + regexp.QuoteMeta(b.token) + `|other)[/ ]+([0-9.|a-zA-Z.]*)`)
	}
	return out
}()

// Parse describes ua. Unrecognised input yields Unknown/?/Unknown.
func Parse(ua string) Descriptor {
	d := Descriptor{
		Name:     unknown,
		Version:  unknownVersion,
		Platform: platform(ua),
	}

	for _, b := range browsers {
		if !b.match(ua) {
			continue
		}
		d.Name = b.name
		if v := version(ua, b.token); v != "" {
			d.Version = v
		}
		break
	}
	return d
}

func platform(ua string) string {
	lower := strings.ToLower(ua)
	switch {
	case strings.Contains(lower, "linux"):
		return "linux"
	case strings.Contains(lower, "macintosh"), strings.Contains(lower, "mac os x"):
		return "mac"
	case strings.Contains(lower, "windows"), strings.Contains(lower, "win32"):
		return "windows"
	default:
		return unknown
	}
}

// version picks a version from the token/Version matches in ua. With several
// matches, the first is used when "Version" does not appear after the last
// occurrence of token; otherwise the second.
func version(ua, token string) string {
	matches := versionPatterns[token].FindAllStringSubmatch(ua, -1)
	switch len(matches) {
	case 0:
		return ""
	case 1:
		return matches[0][2]
	}
	if strings.Index(ua, "Version") <= strings.LastIndex(ua, token) {
		return matches[0][2]
	}
	return matches[1][2]
}

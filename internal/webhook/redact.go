package webhook

import (
	"log/slog"
	"net/http"
	"slices"
	"strings"
)

// secretHeaders are masked when request arguments are logged. Argument
// extensions commonly add one of these for receiver authentication.
var secretHeaders = []string{
	"Authorization",
	"Cookie",
	"X-Api-Key",
	"X-Auth-Token",
	"X-Hook-Secret",
}

// loggedHeaders renders outbound headers as a sorted slog group with
// credentials masked.
type loggedHeaders http.Header

func (h loggedHeaders) LogValue() slog.Value {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	attrs := make([]slog.Attr, 0, len(keys))
	for _, k := range keys {
		value := strings.Join(h[k], ", ")
		if isSecretHeader(k) {
			value = mask(value)
		}
		attrs = append(attrs, slog.String(k, value))
	}
	return slog.GroupValue(attrs...)
}

func isSecretHeader(name string) bool {
	return slices.ContainsFunc(secretHeaders, func(s string) bool {
		return strings.EqualFold(s, name)
	})
}

// mask hides all but the edges of a credential, keeping a leading auth
// scheme such as "Bearer" readable.
func mask(v string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(v), " ")
	if !ok {
		scheme, token = "", scheme
	}
	if len(token) > 4 {
		token = token[:2] + "***" + token[len(token)-2:]
	} else {
		token = "***"
	}
	if scheme == "" {
		return token
	}
	return scheme + " " + token
}

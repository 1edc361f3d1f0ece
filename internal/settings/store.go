package settings

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// WebhookURLKey is the option holding the outbound webhook destination.
const WebhookURLKey = "webhook_url"

// ErrUnknownBackend is returned by Open for unsupported backend names.
var ErrUnknownBackend = errors.New("unknown settings backend")

// Store persists plugin options as string key/value pairs.
type Store interface {
	// Get returns the stored value, or "" with a nil error when the key is unset.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Close() error
}

// Options selects and configures a Store backend.
type Options struct {
	Backend string
	Path    string
	DSN     string
}

// Open constructs the backend named in opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(opts.Backend) {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		return NewFileStore(opts.Path)
	case "mysql":
		return OpenMySQL(ctx, opts.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, opts.Backend)
	}
}

// ValidURL reports whether s is an absolute URL with both scheme and host.
func ValidURL(s string) bool {
	if s == "" || strings.ContainsAny(s, " \t\r\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

package geotag

import (
	"context"
	"errors"
	"log/slog"

	"github.com/kdhira/loginzap/internal/geoip"
	"github.com/kdhira/loginzap/internal/loginevent"
)

const defaultLabel = "Country"

// CountryLookup resolves an IP address to an ISO country code.
type CountryLookup interface {
	CountryCode(ip string) (string, error)
}

// Extension appends the client's country to each payload.
type Extension struct {
	lookup  CountryLookup
	closer  func() error
	label   string
	ipLabel string
	logger  *slog.Logger
}

// New returns an extension reading the IP from the ipLabel field and
// writing the country under label.
func New(lookup CountryLookup, label, ipLabel string, logger *slog.Logger) *Extension {
	if label == "" {
		label = defaultLabel
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Extension{lookup: lookup, label: label, ipLabel: ipLabel, logger: logger}
}

// OpenWithOptions opens the database named by the "database" option. The
// optional "label" option names the added field.
func OpenWithOptions(opts map[string]any, ipLabel string, logger *slog.Logger) (*Extension, error) {
	path, _ := opts["database"].(string)
	if path == "" {
		return nil, errors.New(`option "database" is required`)
	}
	svc, err := geoip.Open(path)
	if err != nil {
		return nil, err
	}
	label, _ := opts["label"].(string)
	ext := New(svc, label, ipLabel, logger)
	ext.closer = svc.Close
	return ext, nil
}

func (e *Extension) Name() string { return "geoip" }

// FilterPayload leaves p untouched when the IP is empty or unknown to the database.
func (e *Extension) FilterPayload(ctx context.Context, p loginevent.Payload) loginevent.Payload {
	v, ok := p.Get(e.ipLabel)
	ip, _ := v.(string)
	if !ok || ip == "" {
		return p
	}
	code, err := e.lookup.CountryCode(ip)
	if err != nil {
		e.logger.Debug("geoip lookup failed", "event_id", loginevent.EventID(ctx), "error", err)
		return p
	}
	if code == "" {
		return p
	}
	return p.Set(e.label, code)
}

func (e *Extension) Close() error {
	if e.closer == nil {
		return nil
	}
	return e.closer()
}

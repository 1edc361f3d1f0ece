package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kdhira/loginzap/internal/loginevent"
	"github.com/kdhira/loginzap/internal/settings"
)

// ErrNoURL is returned by Post when no destination is configured.
var ErrNoURL = errors.New("webhook url not configured")

const (
	defaultTimeout      = 5 * time.Second
	defaultExcerptLimit = 512
)

// Arguments describe the outbound request. Extensions may rewrite them
// before the call is made.
type Arguments struct {
	Method  string
	Headers http.Header
	Body    []byte
}

// Result captures the outcome of one delivery attempt.
type Result struct {
	StatusCode int
	Status     string
	Excerpt    string
	Duration   time.Duration
	Err        error
}

// OK reports whether the call completed with a 2xx status.
func (r Result) OK() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Hooks are invoked around every delivery attempt.
type Hooks interface {
	FilterArguments(ctx context.Context, url string, args Arguments) Arguments
	AfterSend(ctx context.Context, result Result, url string)
}

// URLSource provides the configured destination. settings.Store satisfies it.
type URLSource interface {
	Get(ctx context.Context, key string) (string, error)
}

// Options configures a Dispatcher.
type Options struct {
	Timeout      time.Duration
	ExcerptLimit int
	Client       *http.Client
	Hooks        Hooks
	Logger       *slog.Logger
}

// Dispatcher posts login payloads to the URL stored under settings.WebhookURLKey.
type Dispatcher struct {
	source       URLSource
	client       *http.Client
	hooks        Hooks
	excerptLimit int
	logger       *slog.Logger
}

// NewDispatcher wires a Dispatcher reading its destination from source.
func NewDispatcher(source URLSource, opts Options) *Dispatcher {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	limit := opts.ExcerptLimit
	if limit == 0 {
		limit = defaultExcerptLimit
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		source:       source,
		client:       client,
		hooks:        opts.Hooks,
		excerptLimit: limit,
		logger:       logger,
	}
}

// Send delivers p. It is a no-op when no URL is configured.
func (d *Dispatcher) Send(ctx context.Context, p loginevent.Payload) error {
	url, err := d.source.Get(ctx, settings.WebhookURLKey)
	if err != nil {
		return fmt.Errorf("read webhook url: %w", err)
	}
	if url == "" {
		d.logger.Debug("webhook url not configured, skipping delivery", "event_id", loginevent.EventID(ctx))
		return nil
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	args := DefaultArguments(body)
	if d.hooks != nil {
		args = d.hooks.FilterArguments(ctx, url, args)
	}

	result := d.Post(ctx, url, args)
	if d.hooks != nil {
		d.hooks.AfterSend(ctx, result, url)
	}
	if result.Err != nil {
		return result.Err
	}

	d.logger.Info("webhook delivered",
		"event_id", loginevent.EventID(ctx),
		"status", result.StatusCode,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return nil
}

// DefaultArguments returns a JSON POST carrying body.
func DefaultArguments(body []byte) Arguments {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	return Arguments{Method: http.MethodPost, Headers: h, Body: body}
}

// Post performs a single request. Transport errors and non-2xx responses
// are reported through Result.Err.
func (d *Dispatcher) Post(ctx context.Context, url string, args Arguments) Result {
	if url == "" {
		return Result{Err: ErrNoURL}
	}
	method := args.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(args.Body))
	if err != nil {
		return Result{Err: fmt.Errorf("build webhook request: %w", err)}
	}
	for k, vv := range args.Headers {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	d.logger.Debug("webhook request",
		"event_id", loginevent.EventID(ctx),
		"method", method,
		"headers", loggedHeaders(req.Header),
		"bytes", len(args.Body),
	)

	start := time.Now()
	resp, err := d.client.Do(req)
	if err != nil {
		return Result{Duration: time.Since(start), Err: fmt.Errorf("send webhook: %w", err)}
	}
	defer resp.Body.Close()

	excerpt := &excerptBuffer{limit: d.excerptLimit}
	_, copyErr := io.Copy(excerpt, resp.Body)

	result := Result{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Excerpt:    excerpt.String(),
		Duration:   time.Since(start),
	}
	switch {
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		result.Err = fmt.Errorf("webhook returned status %s: %q", resp.Status, result.Excerpt)
	case copyErr != nil:
		d.logger.Warn("webhook response read failed", "error", copyErr)
	}
	return result
}

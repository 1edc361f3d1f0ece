package webhook

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"testing"
)

func TestLoggedHeadersMasksSecrets(t *testing.T) {
	h := http.Header{
		"Authorization": []string{"Bearer sk-secret"},
		"X-Api-Key":     []string{"abc123456"},
		"Content-Type":  []string{"application/json"},
		"X-Hook-Secret": []string{"abc"},
		"Accept":        []string{"application/json", "text/plain"},
	}

	var buf bytes.Buffer
	slog.New(slog.NewJSONHandler(&buf, nil)).Info("req", "headers", loggedHeaders(h))

	var entry struct {
		Headers map[string]string `json:"headers"`
	}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	out := entry.Headers
	if got := out["Authorization"]; got != "Bearer sk***et" {
		t.Fatalf("expected bearer token masking, got %q", got)
	}
	if got := out["X-Api-Key"]; got != "ab***56" {
		t.Fatalf("expected API key masking, got %q", got)
	}
	if got := out["X-Hook-Secret"]; got != "***" {
		t.Fatalf("expected short secret fully masked, got %q", got)
	}
	if got := out["Content-Type"]; got != "application/json" {
		t.Fatalf("expected content type unchanged, got %q", got)
	}
	if got := out["Accept"]; got != "application/json, text/plain" {
		t.Fatalf("expected multi-value join, got %q", got)
	}
}

func TestMask(t *testing.T) {
	cases := map[string]string{
		"":                 "***",
		"short":            "sh***rt",
		"Basic dXNlcjpwdw": "Basic dX***dw",
		"Token abc":        "Token ***",
	}
	for in, want := range cases {
		if got := mask(in); got != want {
			t.Errorf("mask(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestExcerptBuffer(t *testing.T) {
	b := &excerptBuffer{limit: 5}
	if n, _ := b.Write([]byte("hello world")); n != 11 {
		t.Fatalf("expected full length reported, got %d", n)
	}
	_, _ = b.Write([]byte("more"))
	if got := b.String(); got != "hello..." {
		t.Fatalf("expected truncated excerpt, got %q", got)
	}

	whole := &excerptBuffer{limit: 16}
	_, _ = whole.Write([]byte("ok"))
	if got := whole.String(); got != "ok" {
		t.Fatalf("expected untouched excerpt, got %q", got)
	}
}

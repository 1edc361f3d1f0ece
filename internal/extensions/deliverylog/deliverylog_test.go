package deliverylog

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/kdhira/loginzap/internal/webhook"
)

func TestAfterSendLogsOutcome(t *testing.T) {
	var buf bytes.Buffer
	ext := New(slog.New(slog.NewJSONHandler(&buf, nil)))

	ext.AfterSend(context.Background(), webhook.Result{StatusCode: 200}, "https://user:pw@hooks.example.com/catch/1?token=secret")
	out := buf.String()
	if !strings.Contains(out, "webhook attempt completed") {
		t.Fatalf("expected completion log, got %s", out)
	}
	if strings.Contains(out, "secret") || strings.Contains(out, "pw@") {
		t.Fatalf("expected url credentials redacted, got %s", out)
	}

	buf.Reset()
	ext.AfterSend(context.Background(), webhook.Result{Err: errors.New("refused")}, "https://hooks.example.com")
	if !strings.Contains(buf.String(), `"level":"WARN"`) {
		t.Fatalf("expected warn level for failure, got %s", buf.String())
	}
}

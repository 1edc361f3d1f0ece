package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kdhira/loginzap/internal/config"
	"github.com/kdhira/loginzap/internal/loginevent"
	"github.com/kdhira/loginzap/internal/site"
)

var nonceRe = regexp.MustCompile(`name="loginzap_settings_nonce" value="([0-9a-f]+)"`)

func hash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		Addr:              "127.0.0.1:0",
		LogLevel:          "info",
		SettingsBackend:   "memory",
		WebhookTimeout:    2 * time.Second,
		Timezone:          "UTC",
		AdminUser:         "admin",
		AdminPasswordHash: hash(t, "secret"),
		NonceSecret:       "test-secret",
		NonceLifetime:     time.Hour,
		Extensions:        []string{"time-label", "log-delivery"},
		ExtensionsConfig:  map[string]map[string]any{"time-label": {"label": "Logged In At"}},
		Labels:            loginevent.DefaultLabels(),
		Users: []site.Account{
			{ID: 7, Username: "alice", Email: "alice@example.com", PasswordHash: hash(t, "wonderland")},
		},
	}
}

func newTestServer(t *testing.T, cfg config.Config) *Server {
	t.Helper()
	srv, err := NewServer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

type receiver struct {
	mu     sync.Mutex
	bodies [][]byte
}

func (rc *receiver) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	rc.mu.Lock()
	rc.bodies = append(rc.bodies, body)
	rc.mu.Unlock()
	w.WriteHeader(http.StatusOK)
}

func (rc *receiver) received() [][]byte {
	rc.mu.Lock()
	defer rc.mu.Unlock()
	return append([][]byte(nil), rc.bodies...)
}

func adminRequest(method, body string) *http.Request {
	req := httptest.NewRequest(method, "/admin/settings", strings.NewReader(body))
	req.SetBasicAuth("admin", "secret")
	if body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	return req
}

func saveWebhookURL(t *testing.T, h http.Handler, target string) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(http.MethodGet, ""))
	if rec.Code != http.StatusOK {
		t.Fatalf("settings page: expected 200, got %d", rec.Code)
	}
	m := nonceRe.FindStringSubmatch(rec.Body.String())
	if m == nil {
		t.Fatalf("nonce not found in settings page")
	}

	form := url.Values{"webhook_url": {target}, "loginzap_settings_nonce": {m[1]}}
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, adminRequest(http.MethodPost, form.Encode()))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Done!") {
		t.Fatalf("save settings: %d %s", rec.Code, rec.Body.String())
	}
}

func TestLoginDeliversWebhook(t *testing.T) {
	rc := &receiver{}
	upstream := httptest.NewServer(rc)
	defer upstream.Close()

	srv := newTestServer(t, testConfig(t))
	h := srv.Handler()
	saveWebhookURL(t, h, upstream.URL+"/hook")

	form := url.Values{"log": {"alice"}, "pwd": {"wonderland"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 203.0.113.7")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.6099.109 Safari/537.36")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d", rec.Code)
	}

	bodies := rc.received()
	if len(bodies) != 1 {
		t.Fatalf("expected one webhook delivery, got %d", len(bodies))
	}
	var payload map[string]any
	if err := json.Unmarshal(bodies[0], &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["ID"] != float64(7) || payload["Username"] != "alice" || payload["Email"] != "alice@example.com" {
		t.Fatalf("unexpected identity fields: %#v", payload)
	}
	if payload["User IP Address"] != "203.0.113.7" {
		t.Fatalf("unexpected ip: %v", payload["User IP Address"])
	}
	if payload["Browser"] != "Browser: Google Chrome 120.0.6099.109 on linux" {
		t.Fatalf("unexpected browser: %v", payload["Browser"])
	}
	if _, ok := payload["Logged In At"]; !ok {
		t.Fatalf("expected renamed time label, got %#v", payload)
	}
	raw := string(bodies[0])
	if strings.Index(raw, `"ID"`) > strings.Index(raw, `"Browser"`) {
		t.Fatalf("expected payload field order preserved: %s", raw)
	}
}

func TestLoginWithoutWebhookURL(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	form := url.Values{"log": {"alice@example.com"}, "pwd": {"wonderland"}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected login to succeed without webhook, got %d", rec.Code)
	}
}

func TestAdminRequiresAuth(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/settings", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAdminRejectsForgedNonce(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	form := url.Values{"webhook_url": {"https://example.com/hook"}, "loginzap_settings_nonce": {"forged"}}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, adminRequest(http.MethodPost, form.Encode()))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestAdminDisabledWithoutHash(t *testing.T) {
	cfg := testConfig(t)
	cfg.AdminPasswordHash = ""
	srv := newTestServer(t, cfg)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, adminRequest(http.MethodGet, ""))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 when admin disabled, got %d", rec.Code)
	}
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, testConfig(t))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "ok\n" {
		t.Fatalf("unexpected healthz response %d %q", rec.Code, rec.Body.String())
	}
}

func TestNewServerRejectsUnknownExtension(t *testing.T) {
	cfg := testConfig(t)
	cfg.Extensions = []string{"nope"}
	if _, err := NewServer(context.Background(), cfg, slog.Default()); err == nil {
		t.Fatalf("expected error for unknown extension")
	}
}

func TestNewServerRequiresLogger(t *testing.T) {
	if _, err := NewServer(context.Background(), testConfig(t), nil); err == nil {
		t.Fatalf("expected error for nil logger")
	}
}

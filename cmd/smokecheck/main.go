package main

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kdhira/loginzap/internal/config"
	"github.com/kdhira/loginzap/internal/logging"
	"github.com/kdhira/loginzap/internal/loginevent"
	"github.com/kdhira/loginzap/internal/server"
	"github.com/kdhira/loginzap/internal/site"
)

var nonceRe = regexp.MustCompile(`name="loginzap_settings_nonce" value="([0-9a-f]+)"`)

func main() {
	logFile := flag.String("log-file", "logs/smoke.jsonl", "path to write JSON log output")
	addr := flag.String("addr", "127.0.0.1:18080", "listen address for the probe server")
	flag.Parse()

	if err := os.MkdirAll(filepath.Dir(*logFile), 0o755); err != nil {
		log.Fatalf("failed creating logs dir: %v", err)
	}
	if err := os.RemoveAll(*logFile); err != nil && !os.IsNotExist(err) {
		log.Fatalf("failed to clean log file: %v", err)
	}

	received := make(chan []byte, 1)
	receiver := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		select {
		case received <- body:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer receiver.Close()

	adminHash := mustHash("smoke-admin")
	cfg := config.Config{
		Addr:              *addr,
		LogFile:           *logFile,
		LogLevel:          "debug",
		SettingsBackend:   "memory",
		WebhookTimeout:    2 * time.Second,
		AdminUser:         "admin",
		AdminPasswordHash: adminHash,
		NonceLifetime:     time.Hour,
		Extensions:        []string{"generic", "log-delivery"},
		Labels:            loginevent.DefaultLabels(),
		Users:             []site.Account{{ID: 1, Username: "smoke", Email: "smoke@example.com", PasswordHash: mustHash("smoke-user")}},
	}

	logger, closer, err := logging.New(cfg.LogFile, slog.LevelDebug)
	if err != nil {
		log.Fatalf("failed to create logger: %v", err)
	}
	defer closer.Close()

	srv, err := server.NewServer(context.Background(), cfg, logger)
	if err != nil {
		log.Fatalf("failed to create server: %v", err)
	}

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
		close(serverErr)
	}()

	time.Sleep(150 * time.Millisecond)

	base := "http://" + cfg.Addr
	client := &http.Client{Timeout: 5 * time.Second}

	page := adminDo(client, http.MethodGet, base, nil)
	m := nonceRe.FindStringSubmatch(page)
	if m == nil {
		log.Fatalf("settings page did not carry a nonce")
	}
	page = adminDo(client, http.MethodPost, base, url.Values{
		"webhook_url":             {receiver.URL},
		"loginzap_settings_nonce": {m[1]},
	})
	if !strings.Contains(page, "Done!") {
		log.Fatalf("webhook url not saved")
	}

	resp, err := client.PostForm(base+"/login", url.Values{"log": {"smoke"}, "pwd": {"smoke-user"}})
	if err != nil {
		log.Fatalf("login request failed: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("login returned %s", resp.Status)
	}

	select {
	case body := <-received:
		var payload map[string]any
		if err := json.Unmarshal(body, &payload); err != nil {
			log.Fatalf("webhook payload not JSON: %v", err)
		}
		if payload["Username"] != "smoke" {
			log.Fatalf("unexpected webhook payload: %s", body)
		}
		log.Printf("webhook received: %s", body)
	case <-time.After(3 * time.Second):
		log.Fatalf("webhook was not delivered")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("shutdown failed: %v", err)
	}

	select {
	case err := <-serverErr:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	case <-time.After(2 * time.Second):
		log.Fatalf("server did not confirm shutdown")
	}
}

func mustHash(pw string) string {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}
	return string(h)
}

func adminDo(client *http.Client, method, base string, form url.Values) string {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequest(method, base+"/admin/settings", body)
	if err != nil {
		log.Fatalf("build admin request: %v", err)
	}
	req.SetBasicAuth("admin", "smoke-admin")
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("admin request failed: %v", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		log.Fatalf("admin request returned %s", resp.Status)
	}
	return string(data)
}

package server

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/kdhira/loginzap/internal/admin"
	"github.com/kdhira/loginzap/internal/config"
	"github.com/kdhira/loginzap/internal/extensions"
	"github.com/kdhira/loginzap/internal/loginevent"
	"github.com/kdhira/loginzap/internal/settings"
	"github.com/kdhira/loginzap/internal/site"
	"github.com/kdhira/loginzap/internal/webhook"
)

// Server owns the HTTP listener and the components behind it.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	store      settings.Store
	extensions *extensions.Registry
	logger     *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewServer wires dependencies and returns a ready-to-run server.
func NewServer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		return nil, errors.New("logger must not be nil")
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	directory, err := site.NewDirectory(cfg.Users)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}

	store, err := settings.Open(ctx, settings.Options{
		Backend: cfg.SettingsBackend,
		Path:    cfg.SettingsPath,
		DSN:     cfg.SettingsDSN,
	})
	if err != nil {
		return nil, fmt.Errorf("open settings: %w", err)
	}

	registry, err := extensions.FromNames(cfg.Extensions, cfg.ExtensionsConfig, extensions.Env{
		Logger: logger,
		Labels: cfg.Labels,
	})
	if err != nil {
		store.Close()
		return nil, err
	}

	dispatcher := webhook.NewDispatcher(store, webhook.Options{
		Timeout: cfg.WebhookTimeout,
		Hooks:   registry,
		Logger:  logger,
	})
	assembler := loginevent.New(loginevent.Options{
		Sender:   dispatcher,
		Hooks:    registry,
		Labels:   cfg.Labels,
		Location: loc,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.Handle("/login", site.NewLoginHandler(directory, assembler, logger))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})

	if cfg.AdminPasswordHash == "" {
		logger.Warn("admin password hash not configured, settings page disabled")
	} else {
		secret := []byte(cfg.NonceSecret)
		if len(secret) == 0 {
			secret = make([]byte, 32)
			if _, err := rand.Read(secret); err != nil {
				registry.Close()
				store.Close()
				return nil, fmt.Errorf("generate nonce secret: %w", err)
			}
		}
		settingsHandler := admin.NewSettingsHandler(store, admin.NewNonces(secret, cfg.NonceLifetime), registry, logger)
		mux.Handle("/admin/settings", admin.BasicAuth(cfg.AdminUser, []byte(cfg.AdminPasswordHash), "", settingsHandler))
	}

	logger.Info("server configured",
		"addr", cfg.Addr,
		"settings_backend", cfg.SettingsBackend,
		"extensions", registry.Enabled(),
		"users", directory.Len(),
	)

	return &Server{
		httpServer: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			ErrorLog:          log.New(io.Discard, "", 0),
		},
		handler:    mux,
		store:      store,
		extensions: registry,
		logger:     logger,
	}, nil
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe starts the server and blocks until it exits.
func (s *Server) ListenAndServe() error {
	if s == nil || s.httpServer == nil {
		return errors.New("server not initialised")
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the listener, then releases the settings store
// and extension resources.
func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil || s.httpServer == nil {
		return nil
	}
	err := s.httpServer.Shutdown(ctx)
	return errors.Join(err, s.Close())
}

// Close releases the settings store and extension resources without
// touching the listener.
func (s *Server) Close() error {
	if s == nil {
		return nil
	}
	s.closeOnce.Do(func() {
		var errs []error
		if s.extensions != nil {
			errs = append(errs, s.extensions.Close())
		}
		if s.store != nil {
			errs = append(errs, s.store.Close())
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

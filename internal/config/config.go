package config

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/kdhira/loginzap/internal/loginevent"
	"github.com/kdhira/loginzap/internal/site"
)

// Config represents the runtime options used to start the service.
type Config struct {
	Addr              string
	LogFile           string
	LogLevel          string
	SettingsBackend   string
	SettingsPath      string
	SettingsDSN       string
	WebhookTimeout    time.Duration
	Timezone          string
	AdminUser         string
	AdminPasswordHash string
	NonceSecret       string
	NonceLifetime     time.Duration
	Extensions        []string
	ExtensionsConfig  map[string]map[string]any
	Labels            loginevent.Labels
	Users             []site.Account
}

// MustParseFlags reads configuration from CLI flags and terminates the process
// if parsing fails. Prefer ParseFlags when callers want explicit error handling.
func MustParseFlags(fs *flag.FlagSet, args []string) Config {
	cfg, err := ParseFlags(fs, args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "failed to parse flags: %v\n", err)
		os.Exit(2)
	}
	return cfg
}

// ParseFlags registers the supported flags on fs, parses args and returns the
// resulting Config. A nil fs gets a fresh ContinueOnError set.
func ParseFlags(fs *flag.FlagSet, args []string) (Config, error) {
	if fs == nil {
		fs = flag.NewFlagSet("loginzap", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
	}

	var (
		addr          = fs.String("addr", "127.0.0.1:8080", "address the service listens on")
		logFile       = fs.String("log-file", "-", `path to the JSON log file ("-" for stdout)`)
		logLevel      = fs.String("log-level", "info", "log level (debug, info, warn, error)")
		backend       = fs.String("settings-backend", "file", "settings store backend: memory, file or mysql")
		settingsPath  = fs.String("settings-path", "data/settings.yaml", "path to the YAML settings file (file backend)")
		settingsDSN   = fs.String("settings-dsn", "", "MySQL DSN (mysql backend)")
		timeout       = fs.Duration("webhook-timeout", 5*time.Second, "timeout for the outbound webhook call")
		timezone      = fs.String("timezone", "", "IANA time zone for logged-in timestamps (default: server local time)")
		adminUser     = fs.String("admin-user", "admin", "username for the admin settings page")
		adminHash     = fs.String("admin-password-hash", "", "bcrypt hash of the admin password (admin page disabled when empty)")
		nonceSecret   = fs.String("nonce-secret", "", "secret for settings form nonces (random per process when empty)")
		nonceLifetime = fs.Duration("nonce-lifetime", 24*time.Hour, "validity window for settings form nonces")
		extensions    = fs.String("extensions", "generic", "comma-separated list of extensions to enable")
	)

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	cfg := Config{
		Addr:              *addr,
		LogFile:           *logFile,
		LogLevel:          *logLevel,
		SettingsBackend:   strings.ToLower(*backend),
		SettingsPath:      *settingsPath,
		SettingsDSN:       *settingsDSN,
		WebhookTimeout:    *timeout,
		Timezone:          *timezone,
		AdminUser:         *adminUser,
		AdminPasswordHash: *adminHash,
		NonceSecret:       *nonceSecret,
		NonceLifetime:     *nonceLifetime,
		Extensions:        normaliseList(*extensions),
		Labels:            loginevent.DefaultLabels(),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate ensures the configuration is internally consistent.
func (c Config) Validate() error {
	if c.Addr == "" {
		return errors.New("addr must not be empty")
	}
	if _, err := c.SlogLevel(); err != nil {
		return err
	}
	switch c.SettingsBackend {
	case "memory":
	case "file":
		if c.SettingsPath == "" {
			return errors.New("file settings backend requires settings path")
		}
	case "mysql":
		if c.SettingsDSN == "" {
			return errors.New("mysql settings backend requires settings dsn")
		}
	default:
		return fmt.Errorf("unknown settings backend: %s", c.SettingsBackend)
	}
	if c.WebhookTimeout <= 0 {
		return errors.New("webhook timeout must be positive")
	}
	if c.NonceLifetime <= 0 {
		return errors.New("nonce lifetime must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.AdminPasswordHash != "" && c.AdminUser == "" {
		return errors.New("admin password hash set but admin user empty")
	}
	if len(c.Extensions) == 0 {
		return errors.New("at least one extension must be specified")
	}
	return nil
}

// Location resolves Timezone, defaulting to the server's local zone.
func (c Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// SlogLevel parses LogLevel.
func (c Config) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", c.LogLevel, err)
	}
	return level, nil
}

func normaliseList(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		trimmed := strings.TrimSpace(item)
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed)
	}
	return out
}

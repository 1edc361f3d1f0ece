package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kdhira/loginzap/internal/loginevent"
	"github.com/kdhira/loginzap/internal/site"
)

// FileConfig represents the subset of configuration that can be provided via file.
type FileConfig struct {
	Addr              string                    `json:"addr" yaml:"addr"`
	LogFile           string                    `json:"log_file" yaml:"log_file"`
	LogLevel          string                    `json:"log_level" yaml:"log_level"`
	SettingsBackend   string                    `json:"settings_backend" yaml:"settings_backend"`
	SettingsPath      string                    `json:"settings_path" yaml:"settings_path"`
	SettingsDSN       string                    `json:"settings_dsn" yaml:"settings_dsn"`
	WebhookTimeout    string                    `json:"webhook_timeout" yaml:"webhook_timeout"`
	Timezone          string                    `json:"timezone" yaml:"timezone"`
	AdminUser         string                    `json:"admin_user" yaml:"admin_user"`
	AdminPasswordHash string                    `json:"admin_password_hash" yaml:"admin_password_hash"`
	NonceSecret       string                    `json:"nonce_secret" yaml:"nonce_secret"`
	NonceLifetime     string                    `json:"nonce_lifetime" yaml:"nonce_lifetime"`
	Extensions        []string                  `json:"extensions" yaml:"extensions"`
	ExtensionsConfig  map[string]map[string]any `json:"extensions_config" yaml:"extensions_config"`
	Labels            loginevent.Labels         `json:"labels" yaml:"labels"`
	Users             []site.Account            `json:"users" yaml:"users"`

	webhookTimeout time.Duration
	nonceLifetime  time.Duration
}

// LoadFile parses configuration from the provided file path.
func LoadFile(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return FileConfig{}, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return FileConfig{}, fmt.Errorf("read config file: %w", err)
	}

	fc := FileConfig{}
	switch detectFormat(path, data) {
	case "yaml":
		err = yaml.Unmarshal(data, &fc)
	case "json":
		err = json.Unmarshal(data, &fc)
	default:
		err = errors.New("unsupported config format (use .json, .yml, or .yaml)")
	}
	if err != nil {
		return FileConfig{}, err
	}

	if fc.webhookTimeout, err = parseDuration("webhook_timeout", fc.WebhookTimeout); err != nil {
		return FileConfig{}, err
	}
	if fc.nonceLifetime, err = parseDuration("nonce_lifetime", fc.NonceLifetime); err != nil {
		return FileConfig{}, err
	}

	return fc, nil
}

// Merge overlays file configuration on top of the base Config parsed from flags.
func Merge(base Config, fc FileConfig) Config {
	if fc.Addr != "" {
		base.Addr = fc.Addr
	}
	if fc.LogFile != "" {
		base.LogFile = fc.LogFile
	}
	if fc.LogLevel != "" {
		base.LogLevel = fc.LogLevel
	}
	if fc.SettingsBackend != "" {
		base.SettingsBackend = strings.ToLower(fc.SettingsBackend)
	}
	if fc.SettingsPath != "" {
		base.SettingsPath = fc.SettingsPath
	}
	if fc.SettingsDSN != "" {
		base.SettingsDSN = fc.SettingsDSN
	}
	if fc.webhookTimeout > 0 {
		base.WebhookTimeout = fc.webhookTimeout
	}
	if fc.Timezone != "" {
		base.Timezone = fc.Timezone
	}
	if fc.AdminUser != "" {
		base.AdminUser = fc.AdminUser
	}
	if fc.AdminPasswordHash != "" {
		base.AdminPasswordHash = fc.AdminPasswordHash
	}
	if fc.NonceSecret != "" {
		base.NonceSecret = fc.NonceSecret
	}
	if fc.nonceLifetime > 0 {
		base.NonceLifetime = fc.nonceLifetime
	}
	if len(fc.Extensions) > 0 {
		base.Extensions = fc.Extensions
	}
	if len(fc.ExtensionsConfig) > 0 {
		if base.ExtensionsConfig == nil {
			base.ExtensionsConfig = make(map[string]map[string]any)
		}
		for name, cfg := range fc.ExtensionsConfig {
			base.ExtensionsConfig[name] = cfg
		}
	}
	base.Labels = mergeLabels(base.Labels, fc.Labels)
	if len(fc.Users) > 0 {
		base.Users = fc.Users
	}
	return base
}

func mergeLabels(base, over loginevent.Labels) loginevent.Labels {
	if over.ID != "" {
		base.ID = over.ID
	}
	if over.Username != "" {
		base.Username = over.Username
	}
	if over.Email != "" {
		base.Email = over.Email
	}
	if over.LoggedInTime != "" {
		base.LoggedInTime = over.LoggedInTime
	}
	if over.IPAddress != "" {
		base.IPAddress = over.IPAddress
	}
	if over.Browser != "" {
		base.Browser = over.Browser
	}
	return base
}

func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", field, err)
	}
	return d, nil
}

func detectFormat(path string, data []byte) string {
	lower := strings.ToLower(path)
	if strings.HasSuffix(lower, ".yaml") || strings.HasSuffix(lower, ".yml") {
		return "yaml"
	}
	if strings.HasSuffix(lower, ".json") {
		return "json"
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return "json"
	}
	return "yaml"
}

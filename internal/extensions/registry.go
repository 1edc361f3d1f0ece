package extensions

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/kdhira/loginzap/internal/admin"
	"github.com/kdhira/loginzap/internal/extensions/deliverylog"
	"github.com/kdhira/loginzap/internal/extensions/generic"
	"github.com/kdhira/loginzap/internal/extensions/geotag"
	"github.com/kdhira/loginzap/internal/extensions/timelabel"
	"github.com/kdhira/loginzap/internal/loginevent"
	"github.com/kdhira/loginzap/internal/webhook"
)

// Extension is the minimum every extension provides. Behaviour comes from
// implementing any of TimeLabeler, PayloadFilter, ArgumentsFilter or AfterSender.
type Extension interface {
	Name() string
}

// TimeLabeler renames the logged-in time field.
type TimeLabeler interface {
	LoggedInTimeLabel(label string) string
}

// PayloadFilter rewrites the payload before it is encoded.
type PayloadFilter interface {
	FilterPayload(ctx context.Context, p loginevent.Payload) loginevent.Payload
}

// ArgumentsFilter rewrites the outbound HTTP call.
type ArgumentsFilter interface {
	FilterArguments(ctx context.Context, url string, args webhook.Arguments) webhook.Arguments
}

// AfterSender observes every completed delivery attempt.
type AfterSender interface {
	AfterSend(ctx context.Context, result webhook.Result, url string)
}

// SettingsFielder contributes rows to the admin settings form.
type SettingsFielder interface {
	SettingsFields() []admin.Field
}

// Registry runs enabled extensions in registration order. It satisfies
// loginevent.Hooks, webhook.Hooks and admin.FieldSource.
type Registry struct {
	ordered []Extension
}

// NewRegistry registers the provided extensions, skipping nils.
func NewRegistry(enabled ...Extension) *Registry {
	reg := &Registry{}
	for _, ext := range enabled {
		reg.add(ext)
	}
	return reg
}

func (r *Registry) add(ext Extension) {
	if ext == nil {
		return
	}
	r.ordered = append(r.ordered, ext)
}

// Enabled returns the registered extension names in order.
func (r *Registry) Enabled() []string {
	names := make([]string, 0, len(r.ordered))
	for _, ext := range r.ordered {
		names = append(names, ext.Name())
	}
	return names
}

func (r *Registry) LoggedInTimeLabel(label string) string {
	for _, ext := range r.ordered {
		if l, ok := ext.(TimeLabeler); ok {
			label = l.LoggedInTimeLabel(label)
		}
	}
	return label
}

func (r *Registry) FilterPayload(ctx context.Context, p loginevent.Payload) loginevent.Payload {
	for _, ext := range r.ordered {
		if f, ok := ext.(PayloadFilter); ok {
			p = f.FilterPayload(ctx, p)
		}
	}
	return p
}

func (r *Registry) FilterArguments(ctx context.Context, url string, args webhook.Arguments) webhook.Arguments {
	for _, ext := range r.ordered {
		if f, ok := ext.(ArgumentsFilter); ok {
			args = f.FilterArguments(ctx, url, args)
		}
	}
	return args
}

func (r *Registry) AfterSend(ctx context.Context, result webhook.Result, url string) {
	for _, ext := range r.ordered {
		if a, ok := ext.(AfterSender); ok {
			a.AfterSend(ctx, result, url)
		}
	}
}

// SettingsFields collects admin form rows from every extension, in order.
func (r *Registry) SettingsFields() []admin.Field {
	var out []admin.Field
	for _, ext := range r.ordered {
		if f, ok := ext.(SettingsFielder); ok {
			out = append(out, f.SettingsFields()...)
		}
	}
	return out
}

// Close releases extensions holding resources.
func (r *Registry) Close() error {
	var errs []error
	for _, ext := range r.ordered {
		if c, ok := ext.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close extension %s: %w", ext.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}

// Env carries shared dependencies handed to extension factories.
type Env struct {
	Logger *slog.Logger
	Labels loginevent.Labels
}

// FromNames builds a registry of known extensions using optional
// per-extension options. An empty list enables "generic".
func FromNames(names []string, options map[string]map[string]any, env Env) (*Registry, error) {
	if len(names) == 0 {
		names = []string{"generic"}
	}
	if env.Logger == nil {
		env.Logger = slog.Default()
	}
	env.Labels = env.Labels.WithDefaults()

	registry := NewRegistry()
	for _, name := range names {
		build, ok := defaultFactories[name]
		if !ok {
			registry.Close()
			return nil, fmt.Errorf("unknown extension: %s", name)
		}
		ext, err := build(options[name], env)
		if err != nil {
			registry.Close()
			return nil, fmt.Errorf("extension %s: %w", name, err)
		}
		registry.add(ext)
	}
	return registry, nil
}

type factory func(options map[string]any, env Env) (Extension, error)

var defaultFactories = map[string]factory{
	"generic": func(map[string]any, Env) (Extension, error) { return generic.New(), nil },
	"time-label": func(options map[string]any, _ Env) (Extension, error) {
		return timelabel.NewWithOptions(options)
	},
	"geoip": func(options map[string]any, env Env) (Extension, error) {
		return geotag.OpenWithOptions(options, env.Labels.IPAddress, env.Logger)
	},
	"log-delivery": func(_ map[string]any, env Env) (Extension, error) {
		return deliverylog.New(env.Logger), nil
	},
}

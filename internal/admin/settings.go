package admin

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/kdhira/loginzap/internal/settings"
)

const (
	// NonceAction scopes settings form tokens.
	NonceAction = "loginzap_settings"
	// NonceField is the form field carrying the token.
	NonceField = "loginzap_settings_nonce"
	// URLField is the form field carrying the webhook URL.
	URLField = "webhook_url"
)

// Field is an extra settings row contributed by an extension. Its value is
// stored under Key next to the webhook URL.
type Field struct {
	Key   string
	Label string
}

// FieldSource lists extra settings rows to render after the webhook URL.
type FieldSource interface {
	SettingsFields() []Field
}

// Notice is an admin message shown above the settings form.
type Notice struct {
	Class   string
	Message string
}

var settingsPage = template.Must(template.New("settings").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><title>Login Zap Settings</title></head>
<body>
{{with .Notice}}<div class="notice {{.Class}} is-dismissible"><p>{{.Message}}</p></div>{{end}}
<h2 class="wp-heading-inline">Login Zap Settings</h2>
<form method="post">
<table class="form-table">
<tr valign="top">
<th scope="row">Webhook URL</th>
<td><input style="width:35%" type="text" name="` + URLField + `" value="{{.WebhookURL}}" class="login-zap-webhook-url" /><br/></td>
</tr>
{{range .Fields}}<tr valign="top">
<th scope="row">{{.Label}}</th>
<td><input style="width:35%" type="text" name="{{.Key}}" value="{{.Value}}" /><br/></td>
</tr>
{{end}}</table>
<input type="hidden" name="` + NonceField + `" value="{{.Nonce}}" />
<p class="submit"><input type="submit" name="submit" class="button button-primary" value="Save Changes" /></p>
</form>
</body></html>
`))

type fieldRow struct {
	Field
	Value string
}

type pageData struct {
	Notice     *Notice
	WebhookURL string
	Fields     []fieldRow
	Nonce      string
}

// SettingsHandler renders and saves the webhook URL setting.
type SettingsHandler struct {
	store  settings.Store
	nonces *Nonces
	fields FieldSource
	logger *slog.Logger
}

// NewSettingsHandler returns a handler backed by store. fields may be nil.
func NewSettingsHandler(store settings.Store, nonces *Nonces, fields FieldSource, logger *slog.Logger) *SettingsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SettingsHandler{store: store, nonces: nonces, fields: fields, logger: logger}
}

func (h *SettingsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPost {
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	user := adminFromContext(r.Context())

	var notice *Notice
	if r.Method == http.MethodPost {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		if _, submitted := r.PostForm[NonceField]; submitted {
			if !h.nonces.Verify(r.PostForm.Get(NonceField), NonceAction, user) {
				h.logger.Warn("settings nonce rejected", "admin", user)
				http.Error(w, "Nonce Failed!", http.StatusForbidden)
				return
			}
			notice = h.save(r.Context(), user, r.PostForm.Get(URLField))
			if err := h.saveFields(r.Context(), r.PostForm); err != nil {
				h.logger.Error("store extension settings", "admin", user, "error", err)
				notice = &Notice{Class: "error", Message: "Settings could not be saved."}
			}
		}
	}

	current, err := h.store.Get(r.Context(), settings.WebhookURLKey)
	if err != nil {
		h.logger.Error("read webhook url", "error", err)
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := pageData{
		Notice:     notice,
		WebhookURL: current,
		Fields:     h.fieldRows(r.Context()),
		Nonce:      h.nonces.Create(NonceAction, user),
	}
	if err := settingsPage.Execute(w, data); err != nil {
		h.logger.Error("render settings page", "error", err)
	}
}

// save stores webhookURL even when it is not a valid URL; the notice tells the
// admin about it.
func (h *SettingsHandler) save(ctx context.Context, user, webhookURL string) *Notice {
	if err := h.store.Set(ctx, settings.WebhookURLKey, webhookURL); err != nil {
		h.logger.Error("store webhook url", "admin", user, "error", err)
		return &Notice{Class: "error", Message: "Settings could not be saved."}
	}
	h.logger.Info("webhook url updated", "admin", user, "valid", settings.ValidURL(webhookURL))
	if !settings.ValidURL(webhookURL) {
		return &Notice{Class: "error", Message: "Not a valid webhook URL."}
	}
	return &Notice{Class: "notice-success", Message: "Done!"}
}

// extraFields drops rows whose key would collide with the built-in form fields.
func (h *SettingsHandler) extraFields() []Field {
	if h.fields == nil {
		return nil
	}
	var out []Field
	for _, f := range h.fields.SettingsFields() {
		if f.Key == "" || f.Key == URLField || f.Key == NonceField || f.Key == settings.WebhookURLKey {
			continue
		}
		out = append(out, f)
	}
	return out
}

func (h *SettingsHandler) fieldRows(ctx context.Context) []fieldRow {
	fields := h.extraFields()
	rows := make([]fieldRow, 0, len(fields))
	for _, f := range fields {
		v, err := h.store.Get(ctx, f.Key)
		if err != nil {
			h.logger.Error("read extension setting", "key", f.Key, "error", err)
		}
		rows = append(rows, fieldRow{Field: f, Value: v})
	}
	return rows
}

// saveFields stores the posted extra fields. Fields absent from the form are
// left unchanged.
func (h *SettingsHandler) saveFields(ctx context.Context, form url.Values) error {
	for _, f := range h.extraFields() {
		if _, posted := form[f.Key]; !posted {
			continue
		}
		if err := h.store.Set(ctx, f.Key, form.Get(f.Key)); err != nil {
			return fmt.Errorf("store %s: %w", f.Key, err)
		}
	}
	return nil
}

type adminKey struct{}

func withAdmin(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, adminKey{}, user)
}

func adminFromContext(ctx context.Context) string {
	user, _ := ctx.Value(adminKey{}).(string)
	return user
}

package site

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/kdhira/loginzap/internal/clientip"
	"github.com/kdhira/loginzap/internal/loginevent"
)

// LoginObserver is notified after every successful login.
type LoginObserver interface {
	OnLogin(ctx context.Context, r *http.Request, u loginevent.User)
}

var loginPage = template.Must(template.New("login").Parse(`<!DOCTYPE html>
<html lang="en"><head><meta charset="UTF-8"><title>Log In</title></head>
<body class="login">
{{if .Error}}<div id="login_error">{{.Error}}</div>{{end}}
{{if .User}}<p class="message">Welcome, {{.User}}.</p>{{else}}
<form name="loginform" id="loginform" action="/login" method="post">
<p><label for="user_login">Username or Email Address<br/><input type="text" name="log" id="user_login" size="20" autocomplete="username"/></label></p>
<p><label for="user_pass">Password<br/><input type="password" name="pwd" id="user_pass" size="20" autocomplete="current-password"/></label></p>
<p class="submit"><input type="submit" name="wp-submit" value="Log In"/></p>
</form>{{end}}
</body></html>
`))

type loginData struct {
	Error string
	User  string
}

// LoginHandler authenticates form posts against a Directory.
type LoginHandler struct {
	directory *Directory
	observer  LoginObserver
	logger    *slog.Logger
}

// NewLoginHandler returns a handler notifying observer on success.
func NewLoginHandler(directory *Directory, observer LoginObserver, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandler{directory: directory, observer: observer, logger: logger}
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.render(w, http.StatusOK, loginData{})
	case http.MethodPost:
		h.login(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *LoginHandler) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	login := r.PostForm.Get("log")
	user, err := h.directory.Authenticate(login, r.PostForm.Get("pwd"))
	if err != nil {
		h.logger.Info("login rejected", "login", login, "ip", clientip.ResolveRequest(r))
		h.render(w, http.StatusUnauthorized, loginData{Error: "The username or password you entered is incorrect."})
		return
	}

	h.logger.Info("login succeeded", "user_id", user.ID, "username", user.Username)
	if h.observer != nil {
		h.observer.OnLogin(r.Context(), r, user)
	}
	h.render(w, http.StatusOK, loginData{User: user.Username})
}

func (h *LoginHandler) render(w http.ResponseWriter, status int, data loginData) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := loginPage.Execute(w, data); err != nil {
		h.logger.Error("render login page", "error", err)
	}
}

package site

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/kdhira/loginzap/internal/loginevent"
)

func hashPassword(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	return string(h)
}

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	d, err := NewDirectory([]Account{
		{ID: 7, Username: "alice", Email: "alice@example.com", PasswordHash: hashPassword(t, "wonderland")},
	})
	if err != nil {
		t.Fatalf("new directory: %v", err)
	}
	return d
}

type recordingObserver struct {
	users []loginevent.User
}

func (o *recordingObserver) OnLogin(_ context.Context, _ *http.Request, u loginevent.User) {
	o.users = append(o.users, u)
}

func TestAuthenticate(t *testing.T) {
	d := testDirectory(t)

	u, err := d.Authenticate("Alice", "wonderland")
	if err != nil {
		t.Fatalf("expected login by username, got %v", err)
	}
	if u.ID != 7 || u.Email != "alice@example.com" {
		t.Fatalf("unexpected user %+v", u)
	}
	if _, err := d.Authenticate("alice@example.com", "wonderland"); err != nil {
		t.Fatalf("expected login by email, got %v", err)
	}
	if _, err := d.Authenticate("alice", "nope"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := d.Authenticate("bob", "wonderland"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if d.Len() != 1 {
		t.Fatalf("expected one account, got %d", d.Len())
	}
}

func TestNewDirectoryValidation(t *testing.T) {
	hash := hashPassword(t, "pw")
	if _, err := NewDirectory([]Account{{ID: 1, PasswordHash: hash}}); err == nil {
		t.Fatalf("expected error for missing username")
	}
	if _, err := NewDirectory([]Account{{ID: 1, Username: "a", PasswordHash: "plain"}}); err == nil {
		t.Fatalf("expected error for non-bcrypt hash")
	}
	if _, err := NewDirectory([]Account{
		{ID: 1, Username: "a", PasswordHash: hash},
		{ID: 2, Username: "A", PasswordHash: hash},
	}); err == nil {
		t.Fatalf("expected duplicate username error")
	}
}

func postLogin(login, pwd string) *http.Request {
	form := url.Values{"log": {login}, "pwd": {pwd}}
	req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestLoginHandlerSuccess(t *testing.T) {
	obs := &recordingObserver{}
	h := NewLoginHandler(testDirectory(t), obs, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postLogin("alice", "wonderland"))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(obs.users) != 1 || obs.users[0].Username != "alice" {
		t.Fatalf("expected observer notified, got %+v", obs.users)
	}
	if !strings.Contains(rec.Body.String(), "Welcome, alice.") {
		t.Fatalf("expected welcome message, got %s", rec.Body.String())
	}
}

func TestLoginHandlerFailure(t *testing.T) {
	obs := &recordingObserver{}
	h := NewLoginHandler(testDirectory(t), obs, nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, postLogin("alice", "guess"))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if len(obs.users) != 0 {
		t.Fatalf("expected no login event on failure")
	}
}

func TestLoginHandlerGet(t *testing.T) {
	h := NewLoginHandler(testDirectory(t), nil, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/login", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `id="loginform"`) {
		t.Fatalf("expected login form, got %d", rec.Code)
	}
}

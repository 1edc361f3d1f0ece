package admin

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// BasicAuth guards next with HTTP basic auth. The password is checked
// against a bcrypt hash.
func BasicAuth(user string, passwordHash []byte, realm string, next http.Handler) http.Handler {
	if realm == "" {
		realm = "loginzap admin"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			bcrypt.CompareHashAndPassword(passwordHash, []byte(p)) != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="`+realm+`"`)
			http.Error(w, "Unauthorized.", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(withAdmin(r.Context(), u)))
	})
}

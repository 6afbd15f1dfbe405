package middleware

import (
	"crypto/subtle"
	"net/http"

	"golang.org/x/crypto/bcrypt"
)

// AdminAuth gates the admin surface with HTTP basic auth. The password
// is checked against a bcrypt hash when one is configured, falling back
// to a constant-time plaintext comparison for local development.
type AdminAuth struct {
	user         string
	password     string
	passwordHash string
}

func NewAdminAuth(user, password, passwordHash string) *AdminAuth {
	return &AdminAuth{
		user:         user,
		password:     password,
		passwordHash: passwordHash,
	}
}

func (a *AdminAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, password, ok := r.BasicAuth()
		if !ok {
			a.unauthorized(w)
			return
		}

		userOK := subtle.ConstantTimeCompare([]byte(user), []byte(a.user)) == 1
		if !userOK || !a.passwordOK(password) {
			a.unauthorized(w)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuth) passwordOK(password string) bool {
	if a.passwordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(password), []byte(a.password)) == 1
}

func (a *AdminAuth) unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Admin Area"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

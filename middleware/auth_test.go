package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func protectedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func doRequest(t *testing.T, auth *AdminAuth, user, password string, withCreds bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/tournaments", nil)
	if withCreds {
		req.SetBasicAuth(user, password)
	}
	rec := httptest.NewRecorder()
	auth.Middleware(protectedHandler()).ServeHTTP(rec, req)
	return rec
}

func TestAdminAuthPlaintextPassword(t *testing.T) {
	auth := NewAdminAuth("admin", "s3cret", "")

	rec := doRequest(t, auth, "admin", "s3cret", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, auth, "admin", "wrong", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = doRequest(t, auth, "intruder", "s3cret", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthBcryptHashPreferred(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	// A configured hash wins over any plaintext setting.
	auth := NewAdminAuth("admin", "ignored-plaintext", string(hash))

	rec := doRequest(t, auth, "admin", "s3cret", true)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, auth, "admin", "ignored-plaintext", true)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminAuthMissingCredentials(t *testing.T) {
	auth := NewAdminAuth("admin", "s3cret", "")

	rec := doRequest(t, auth, "", "", false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Basic")
}

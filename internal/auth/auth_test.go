package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"

	"github.com/CropCred/cropcred/internal/auth"
)

var secret = []byte("test-secret")

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	assert.NoError(t, err)
	return token
}

func protected(t *testing.T) (http.Handler, *auth.AuthInfo) {
	t.Helper()
	captured := &auth.AuthInfo{}
	handler := auth.RequireToken(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ai := auth.FromContext(r.Context()); ai != nil {
			*captured = *ai
		}
		w.WriteHeader(http.StatusOK)
	}))
	return handler, captured
}

func TestMissingTokenRejected(t *testing.T) {
	handler, _ := protected(t)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBadSignatureRejected(t *testing.T) {
	other, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "u1"}).
		SignedString([]byte("wrong-secret"))
	assert.NoError(t, err)

	handler, _ := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+other)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidTokenPopulatesAuthInfo(t *testing.T) {
	token := signedToken(t, jwt.MapClaims{"sub": "user-1", "role": "farmer", "ownerAddress": "0xabc"})

	handler, captured := protected(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", captured.Subject)
	assert.Equal(t, "farmer", captured.Role)
	assert.Equal(t, "0xabc", captured.OwnerAddress)
}

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey string

const ctxKeyAuthInfo ctxKey = "cropcred.authInfo"

// AuthInfo is the validated identity attached to a request.
type AuthInfo struct {
	// Subject is the user id (sub claim).
	Subject string
	// Role is the coarse role claim (farmer, consumer).
	Role string
	// OwnerAddress is the ledger account bound to the user, when present.
	OwnerAddress string
}

// FromContext returns the AuthInfo stored in the request context, or nil.
func FromContext(ctx context.Context) *AuthInfo {
	if ai, ok := ctx.Value(ctxKeyAuthInfo).(*AuthInfo); ok {
		return ai
	}
	return nil
}

// RequireToken validates the Bearer token (HS256) and puts AuthInfo in the
// request context. Token issuance (OTP/password login) lives elsewhere; this
// service only verifies.
func RequireToken(secret []byte) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				unauthorized(w, "bearer token required")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
				}
				return secret, nil
			})
			if err != nil || !token.Valid {
				unauthorized(w, "invalid token")
				return
			}

			ai := &AuthInfo{}
			if sub, err := claims.GetSubject(); err == nil {
				ai.Subject = sub
			}
			if role, ok := claims["role"].(string); ok {
				ai.Role = role
			}
			if addr, ok := claims["ownerAddress"].(string); ok {
				ai.OwnerAddress = addr
			}
			ctx := context.WithValue(r.Context(), ctxKeyAuthInfo, ai)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

package gateway

import (
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// HashAPIKey returns the bcrypt hash to store as gateway.api_key_hash.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// APIKey rejects requests whose bearer token does not match hash. An
// empty hash disables the check.
func APIKey(hash string) func(http.Handler) http.Handler {
	required := strings.TrimSpace(hash)
	if required == "" {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			candidate := bearerToken(r)
			if candidate == "" || bcrypt.CompareHashAndPassword([]byte(required), []byte(candidate)) != nil {
				writeErr(w, http.StatusUnauthorized, "unauthorized", "missing or invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(authHeader) > 7 && strings.EqualFold(authHeader[:7], "bearer ") {
		return strings.TrimSpace(authHeader[7:])
	}
	return ""
}

package gateway

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// AuthHandler checks the shared secret presented by producers
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates a new authentication handler. An empty secret
// disables authentication.
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{
		sharedSecret: sharedSecret,
	}
}

// Enabled reports whether a secret is required
func (a *AuthHandler) Enabled() bool {
	return a.sharedSecret != ""
}

// Verify compares a presented secret in constant time
func (a *AuthHandler) Verify(presented string) bool {
	if !a.Enabled() {
		return true
	}
	return subtle.ConstantTimeCompare([]byte(a.sharedSecret), []byte(presented)) == 1
}

// Authorize checks the secret header, falling back to a bearer token.
func (a *AuthHandler) Authorize(r *http.Request) bool {
	if !a.Enabled() {
		return true
	}

	if secret := r.Header.Get(SecretHeader); secret != "" {
		return a.Verify(secret)
	}

	auth := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(auth, "Bearer "); ok {
		return a.Verify(strings.TrimSpace(token))
	}

	return false
}

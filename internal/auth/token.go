// ABOUTME: Bearer token checks and token generation
// ABOUTME: Check is a pure function of the header and the expected token

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"
)

// Rejection messages returned to callers.
const (
	MsgMissingHeader = "Missing Authorization header"
	MsgBadFormat     = "Invalid Authorization header format. Use: Bearer <token>"
	MsgInvalidToken  = "Invalid authentication token"
)

const bearerPrefix = "Bearer "

// Decision is the outcome of checking one request.
type Decision struct {
	Allowed bool
	Status  int    // HTTP status when rejected
	Message string // caller-visible reason when rejected
}

// Check decides whether the Authorization header carries the expected token.
// An empty expected token never matches.
func Check(authHeader, expected string) Decision {
	if authHeader == "" {
		return Decision{Status: http.StatusUnauthorized, Message: MsgMissingHeader}
	}
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return Decision{Status: http.StatusUnauthorized, Message: MsgBadFormat}
	}
	token := authHeader[len(bearerPrefix):]
	if expected == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expected)) != 1 {
		return Decision{Status: http.StatusForbidden, Message: MsgInvalidToken}
	}
	return Decision{Allowed: true, Status: http.StatusOK}
}

// GenerateToken returns a random token of 2*n hex characters.
func GenerateToken(n int) (string, error) {
	if n <= 0 {
		n = 32
	}
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

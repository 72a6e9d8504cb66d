package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// operatorClaims are the session claims issued to the operator.
type operatorClaims struct {
	jwt.RegisteredClaims
}

// authenticator issues and verifies operator session tokens. The admin
// surface stays closed when no secret is configured.
type authenticator struct {
	secret       []byte
	passwordHash string
	ttl          time.Duration
}

func newAuthenticator(secret, passwordHash string, ttlMinutes int) *authenticator {
	if ttlMinutes <= 0 {
		ttlMinutes = 60
	}
	return &authenticator{
		secret:       []byte(secret),
		passwordHash: passwordHash,
		ttl:          time.Duration(ttlMinutes) * time.Minute,
	}
}

func (a *authenticator) enabled() bool {
	return len(a.secret) > 0 && a.passwordHash != ""
}

func (a *authenticator) login(user, password string) (string, error) {
	if !a.enabled() {
		return "", fmt.Errorf("operator authentication not configured")
	}
	if strings.TrimSpace(user) == "" {
		return "", fmt.Errorf("user is required")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.passwordHash), []byte(password)); err != nil {
		return "", fmt.Errorf("invalid credentials")
	}

	now := time.Now().UTC()
	claims := operatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

func (a *authenticator) verify(r *http.Request) (*operatorClaims, error) {
	if !a.enabled() {
		return nil, fmt.Errorf("operator authentication not configured")
	}

	header := r.Header.Get("Authorization")
	raw := strings.TrimPrefix(header, "Bearer ")
	if raw == "" || raw == header {
		return nil, fmt.Errorf("missing bearer token")
	}

	claims := &operatorClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, fmt.Errorf("invalid session token")
	}
	return claims, nil
}

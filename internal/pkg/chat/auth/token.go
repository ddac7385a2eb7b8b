package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth: token is required")
	ErrInvalidToken = errors.New("auth: invalid token")
	ErrExpiredToken = errors.New("auth: token expired")
)

// Identity is the server-side identity attached to a connection after a
// successful handshake. Handlers never trust client-declared identity; they
// always read from this value.
type Identity struct {
	UserID string
	Role   string
	Email  string
	Phone  string
}

type claims struct {
	jwt.RegisteredClaims
	UserID string `json:"userId"`
	Role   string `json:"role"`
	Email  string `json:"email"`
	Phone  string `json:"phoneNumber,omitempty"`
}

// TokenVerifier validates HS256 bearer tokens issued by the auth service.
type TokenVerifier struct {
	secret []byte
	now    func() time.Time
}

func NewTokenVerifier(secret string) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), now: time.Now}
}

// Verify decodes and validates token, returning the embedded identity.
func (v *TokenVerifier) Verify(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMissingToken
	}

	var parsed claims
	_, err := jwt.ParseWithClaims(token, &parsed, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithTimeFunc(v.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Identity{}, ErrExpiredToken
		}
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if parsed.UserID == "" || parsed.Role == "" {
		return Identity{}, ErrInvalidToken
	}

	return Identity{
		UserID: parsed.UserID,
		Role:   parsed.Role,
		Email:  parsed.Email,
		Phone:  parsed.Phone,
	}, nil
}

// FromRequest extracts the handshake credential. The token travels out of
// band: an Authorization bearer header or, for browser websocket clients
// that cannot set headers, a "token" query parameter.
func FromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if after, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(after)
		}
	}
	return r.URL.Query().Get("token")
}

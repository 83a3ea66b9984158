package controller

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

type ctxKey int

const claimsKey ctxKey = iota

// Authenticator verifies HS256 bearer tokens. Tokens are issued elsewhere;
// only the signature and the registered claims are checked.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

func NewAuthenticator(secret string) (*Authenticator, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is empty")
	}
	return &Authenticator{
		secret: []byte(secret),
		parser: jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}), jwt.WithExpirationRequired()),
	}, nil
}

// Verify parses and validates a raw token.
func (a *Authenticator) Verify(raw string) (jwt.MapClaims, error) {
	claims := jwt.MapClaims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// Middleware rejects requests without a valid token. The token is read from
// the Authorization header or, for WebSocket upgrades, from ?token=.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := bearer(r)
		if raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "No token provided"})
			return
		}
		claims, err := a.Verify(raw)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "Invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey, claims)))
	})
}

// Subject returns the username claim of an authenticated request.
func Subject(ctx context.Context) string {
	claims, _ := ctx.Value(claimsKey).(jwt.MapClaims)
	if u, ok := claims["username"].(string); ok {
		return u
	}
	sub, _ := claims.GetSubject()
	return sub
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
)

const (
	RoleAdmin    = "admin"
	RoleDriver   = "driver"
	RoleCustomer = "customer"
)

// Principal is the identity a validated bearer credential yields.
type Principal struct {
	UserID string
	Name   string
	Role   string
}

type Claims struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// ParseToken validates an HS256 token and returns the principal it carries.
func ParseToken(tokenStr string, secret []byte) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (any, error) {
		return secret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, fmt.Errorf("invalid claims structure")
	}

	return &Principal{UserID: claims.UserID, Name: claims.Name, Role: claims.Role}, nil
}

// GenerateToken signs a token for a principal. Session issuance is not part
// of this service; this exists for the middleware tests and local tooling.
func GenerateToken(p Principal, secret []byte, ttl time.Duration) (string, error) {
	claims := Claims{
		UserID: p.UserID,
		Name:   p.Name,
		Role:   p.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}

type contextKey struct{}

var principalKey contextKey

// FromContext returns the principal the middleware stored, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}

// NewContext returns a context carrying the principal.
func NewContext(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

// RequireRole is a chi middleware that rejects requests without a valid
// bearer token carrying one of the given roles. The principal is placed in
// the request context; handlers thread it into services explicitly.
func RequireRole(secret []byte, roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			tokenStr, found := strings.CutPrefix(header, "Bearer ")
			if !found || tokenStr == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			p, err := ParseToken(tokenStr, secret)
			if err != nil {
				log.Warn().Err(err).Msg("auth: failed to parse bearer token")
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}

			if len(allowed) > 0 && !allowed[p.Role] {
				http.Error(w, "forbidden", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r.WithContext(NewContext(r.Context(), p)))
		})
	}
}

// Package auth turns bearer tokens into an orders.Actor.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Verifier checks HS256 tokens issued by the users service.
type Verifier struct {
	Secret []byte
}

func (v *Verifier) Verify(token string) (orders.Actor, error) {
	if len(v.Secret) == 0 {
		return orders.Actor{}, fmt.Errorf("%w: no signing secret configured", ErrUnauthorized)
	}
	claims := &Claims{}
	t, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) { return v.Secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !t.Valid {
		return orders.Actor{}, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	if claims.Subject == "" {
		return orders.Actor{}, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}
	role, err := orders.ParseRole(claims.Role)
	if err != nil || role == orders.RoleSystem {
		// system is internal only and never carried by a token
		return orders.Actor{}, fmt.Errorf("%w: role %q", ErrUnauthorized, claims.Role)
	}
	return orders.Actor{UserID: claims.Subject, Role: role}, nil
}

// Issue signs a token for actor. Used by tooling and tests.
func (v *Verifier) Issue(actor orders.Actor, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actor.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: string(actor.Role),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.Secret)
}

type ctxKey struct{}

func WithActor(ctx context.Context, a orders.Actor) context.Context {
	return context.WithValue(ctx, ctxKey{}, a)
}

func ActorFrom(ctx context.Context) (orders.Actor, bool) {
	a, ok := ctx.Value(ctxKey{}).(orders.Actor)
	return a, ok
}

// Middleware rejects requests without a valid token. Browsers cannot set headers
// on a websocket handshake, so a token query parameter is accepted too.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearer(r)
		if token == "" {
			http.Error(w, `{"error":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}
		actor, err := v.Verify(token)
		if err != nil {
			http.Error(w, `{"error":"invalid or expired token"}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

func bearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		scheme, token, ok := strings.Cut(h, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
		return ""
	}
	return r.URL.Query().Get("token")
}

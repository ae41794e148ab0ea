package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ariefcatur/go-marketplace-orders/internal/orders"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerify(t *testing.T) {
	v := &Verifier{Secret: []byte("s3cret")}
	buyer := orders.Actor{UserID: "u-1", Role: orders.RoleCustomer}

	t.Run("round trip", func(t *testing.T) {
		tok, err := v.Issue(buyer, time.Minute)
		require.NoError(t, err)

		got, err := v.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, buyer, got)
	})

	t.Run("expired", func(t *testing.T) {
		tok, err := v.Issue(buyer, -time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok, err := (&Verifier{Secret: []byte("other")}).Issue(buyer, time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("system role is never accepted", func(t *testing.T) {
		tok, err := v.Issue(orders.Actor{UserID: "x", Role: orders.RoleSystem}, time.Minute)
		require.NoError(t, err)

		_, err = v.Verify(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})

	t.Run("unknown role", func(t *testing.T) {
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			RegisteredClaims: jwt.RegisteredClaims{Subject: "u", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute))},
			Role:             "trader",
		}).SignedString(v.Secret)
		require.NoError(t, err)

		_, err = v.Verify(tok)
		assert.ErrorIs(t, err, ErrUnauthorized)
	})
}

func TestMiddleware(t *testing.T) {
	v := &Verifier{Secret: []byte("s3cret")}
	seller := orders.Actor{UserID: "s-1", Role: orders.RoleSeller}
	tok, err := v.Issue(seller, time.Minute)
	require.NoError(t, err)

	h := v.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a, ok := ActorFrom(r.Context())
		require.True(t, ok)
		_, _ = w.Write([]byte(a.String()))
	}))

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		url      string
		wantCode int
		wantBody string
	}{
		{name: "header", url: "/x", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+tok) }, wantCode: http.StatusOK, wantBody: "seller:s-1"},
		{name: "query", url: "/x?token=" + tok, prepare: func(*http.Request) {}, wantCode: http.StatusOK, wantBody: "seller:s-1"},
		{name: "missing", url: "/x", prepare: func(*http.Request) {}, wantCode: http.StatusUnauthorized},
		{name: "basic scheme", url: "/x", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Basic abc") }, wantCode: http.StatusUnauthorized},
		{name: "garbage", url: "/x", prepare: func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, wantCode: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			tt.prepare(req)
			rec := httptest.NewRecorder()

			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Equal(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

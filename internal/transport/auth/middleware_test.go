package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"travesia_payments/internal/repository"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRepo struct {
	token *repository.PersonalAccessToken
	err   error
}

func (f *fakeRepo) FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error) {
	return f.token, f.err
}

func serve(mw func(http.Handler) http.Handler, req *http.Request, h http.HandlerFunc) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	mw(h).ServeHTTP(rr, req)
	return rr
}

func TestMiddleware_setsIdentity(t *testing.T) {
	fr := &fakeRepo{token: &repository.PersonalAccessToken{ID: 1, UserID: 123}}

	got := ""
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-sessions", nil)
	req.Header.Set("Authorization", "Bearer 1|mytoken")

	rr := serve(Middleware(PATVerifier{Repo: fr}), req, func(w http.ResponseWriter, r *http.Request) {
		uid, err := GetUserID(r.Context())
		require.NoError(t, err)
		got = uid
		w.WriteHeader(http.StatusOK)
	})

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "123", got)
}

func TestMiddleware_queryToken(t *testing.T) {
	fr := &fakeRepo{token: &repository.PersonalAccessToken{ID: 1, UserID: 7}}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment-methods?token=abc", nil)

	rr := serve(Middleware(PATVerifier{Repo: fr}), req, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestMiddleware_blockWhenMissing(t *testing.T) {
	fr := &fakeRepo{err: repository.ErrTokenNotFound}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payment-sessions", nil)
	rr := serve(Middleware(PATVerifier{Repo: fr}), req, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with missing token")
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req.Header.Set("Authorization", "Bearer unknown")
	rr = serve(Middleware(PATVerifier{Repo: fr}), req, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with unknown token")
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddleware_blocksExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	fr := &fakeRepo{token: &repository.PersonalAccessToken{ID: 1, UserID: 5, ExpiresAt: &past}}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payment-methods", nil)
	req.Header.Set("Authorization", "Bearer t")
	rr := serve(Middleware(PATVerifier{Repo: fr}), req, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("should not reach handler with expired token")
	})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddleware_allowsOptions(t *testing.T) {
	fr := &fakeRepo{err: errors.New("no token")}
	reached := false

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/payment-sessions", nil)
	rr := serve(Middleware(PATVerifier{Repo: fr}), req, func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	})
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.True(t, reached)
}

func TestJWTVerifier(t *testing.T) {
	secret := []byte("test-secret")
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "99",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)

	id, err := JWTVerifier{Secret: secret}.Verify(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "99", id.UserID)
	require.NotNil(t, id.ExpiresAt)

	_, err = JWTVerifier{Secret: []byte("other")}.Verify(context.Background(), signed)
	assert.Error(t, err)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "99",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString(secret)
	require.NoError(t, err)
	_, err = JWTVerifier{Secret: secret}.Verify(context.Background(), expired)
	assert.Error(t, err)
}

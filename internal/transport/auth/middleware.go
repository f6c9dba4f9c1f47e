package auth

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"travesia_payments/internal/repository"

	"github.com/sirupsen/logrus"
)

type ctxKey string

const identityKey ctxKey = "identity"

var ErrNoIdentity = errors.New("identity not found in context")

// Identity is the authenticated caller attached to the request context.
type Identity struct {
	UserID    string
	Abilities string
	ExpiresAt *time.Time
}

// TokenVerifier resolves a bearer token to an identity.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

type TokenRepo interface {
	FindTokenByPlainToken(ctx context.Context, plainToken string) (*repository.PersonalAccessToken, error)
}

// PATVerifier checks personal access tokens stored in Postgres.
type PATVerifier struct {
	Repo TokenRepo
}

func (v PATVerifier) Verify(ctx context.Context, token string) (*Identity, error) {
	pat, err := v.Repo.FindTokenByPlainToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if pat == nil {
		return nil, repository.ErrTokenNotFound
	}
	return &Identity{
		UserID:    strconv.FormatInt(pat.UserID, 10),
		Abilities: pat.Abilities,
		ExpiresAt: pat.ExpiresAt,
	}, nil
}

func Middleware(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			id, err := verifier.Verify(r.Context(), token)
			if err != nil || id == nil {
				logrus.Debugf("[AUTH] token rejected: %v", err)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			if id.ExpiresAt != nil && id.ExpiresAt.Before(time.Now()) {
				http.Error(w, "Token expired", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), *id)))
		})
	}
}

// bearerToken reads the Authorization header, falling back to ?token= for
// download links opened directly by the browser.
func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if strings.HasPrefix(h, "Bearer ") {
		if t := strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")); t != "" {
			return t
		}
	}
	return strings.TrimSpace(r.URL.Query().Get("token"))
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func GetIdentity(ctx context.Context) (Identity, error) {
	v, ok := ctx.Value(identityKey).(Identity)
	if !ok || v.UserID == "" {
		return Identity{}, ErrNoIdentity
	}
	return v, nil
}

func GetUserID(ctx context.Context) (string, error) {
	id, err := GetIdentity(ctx)
	if err != nil {
		return "", err
	}
	return id.UserID, nil
}

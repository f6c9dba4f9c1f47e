package repository

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"travesia_payments/internal/config/connections/postgres"

	"github.com/sirupsen/logrus"
)

var ErrTokenNotFound = errors.New("token not found")

type PersonalAccessToken struct {
	ID        int64
	TokenHash string
	UserID    int64
	Abilities string
	ExpiresAt *time.Time
}

const userTokenableType = "App\\Models\\User"

type PersonalAccessTokenRepository struct {
	pg *postgres.Postgres
}

func NewPersonalAccessTokenRepository(pg *postgres.Postgres) *PersonalAccessTokenRepository {
	return &PersonalAccessTokenRepository{pg: pg}
}

// FindTokenByPlainToken accepts "<id>|<secret>" or a bare secret and matches
// it against the stored sha256 hash.
func (r *PersonalAccessTokenRepository) FindTokenByPlainToken(ctx context.Context, plainToken string) (*PersonalAccessToken, error) {
	plainToken = strings.TrimSpace(plainToken)
	if plainToken == "" {
		return nil, errors.New("empty token")
	}

	tokenID, tokenPart := splitPlainToken(plainToken)
	sum := sha256.Sum256([]byte(tokenPart))
	hashStr := fmt.Sprintf("%x", sum)

	var pat PersonalAccessToken

	if tokenID != nil {
		query := `
			SELECT id, token, tokenable_id, abilities, expires_at
			FROM personal_access_tokens
			WHERE id = $1
			  AND tokenable_type = $2
			  AND (expires_at IS NULL OR expires_at > $3)
		`
		err := r.pg.Pool.QueryRow(ctx, query, *tokenID, userTokenableType, time.Now()).Scan(
			&pat.ID,
			&pat.TokenHash,
			&pat.UserID,
			&pat.Abilities,
			&pat.ExpiresAt,
		)
		if err == nil && pat.TokenHash == hashStr {
			return &pat, nil
		}
		if err != nil {
			logrus.Debugf("[TOKEN] lookup by id=%d: %v", *tokenID, err)
		}
	}

	query := `
		SELECT id, token, tokenable_id, abilities, expires_at
		FROM personal_access_tokens
		WHERE tokenable_type = $1
		  AND token = $2
		  AND (expires_at IS NULL OR expires_at > $3)
		ORDER BY created_at DESC
		LIMIT 1
	`
	err := r.pg.Pool.QueryRow(ctx, query, userTokenableType, hashStr, time.Now()).Scan(
		&pat.ID,
		&pat.TokenHash,
		&pat.UserID,
		&pat.Abilities,
		&pat.ExpiresAt,
	)
	if err != nil {
		logrus.Debugf("[TOKEN] lookup by hash: %v", err)
		return nil, ErrTokenNotFound
	}
	return &pat, nil
}

func splitPlainToken(plain string) (*int64, string) {
	idx := strings.Index(plain, "|")
	if idx <= 0 {
		return nil, plain
	}
	id, err := strconv.ParseInt(plain[:idx], 10, 64)
	if err != nil {
		return nil, plain[idx+1:]
	}
	return &id, plain[idx+1:]
}

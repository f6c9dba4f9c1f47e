package sessions

import (
	"context"
	"errors"

	"travesia_payments/internal/services/allocation"
)

var (
	ErrNotFound = errors.New("payment session not found")
	ErrExists   = errors.New("payment session already exists")
	ErrConflict = errors.New("payment session modified concurrently")
)

// Store keeps wizard sessions between requests. Get and Update hand out
// copies; a failed fn leaves the stored session untouched.
type Store interface {
	Create(ctx context.Context, s *allocation.Session) error
	Get(ctx context.Context, id string) (*allocation.Session, error)
	Update(ctx context.Context, id string, fn func(*allocation.Session) error) (*allocation.Session, error)
	Delete(ctx context.Context, id string) error
}

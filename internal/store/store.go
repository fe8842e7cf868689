package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"secretpass/internal/models"
)

var (
	ErrInvalidInput = errors.New("secret content is empty")
	// ErrNotFound covers ids that never existed, were already read, or
	// expired. Callers cannot tell these apart.
	ErrNotFound = errors.New("secret not found")
	ErrClosed   = errors.New("store is closed")
)

// DefaultTTL applies when a caller does not ask for a positive lifetime.
const DefaultTTL = 24 * time.Hour

// maxIDAttempts bounds retries when a generated id collides with a live one.
const maxIDAttempts = 3

type Store interface {
	// Create stores content for ttl and returns the new record.
	Create(ctx context.Context, content string, ttl time.Duration) (*models.Secret, error)
	// TakeOnce atomically removes and returns a live record.
	TakeOnce(ctx context.Context, id string) (*models.Secret, error)
	// Expire removes id if it is still present. Safe to call repeatedly.
	Expire(ctx context.Context, id string) error
	// Count returns the number of live records without touching them.
	Count(ctx context.Context) (int, error)
	Close() error
}

// Policy decides the lifetime of new secrets.
type Policy struct {
	DefaultTTL time.Duration
	MaxTTL     time.Duration // zero means unbounded
}

func DefaultPolicy() Policy {
	return Policy{DefaultTTL: DefaultTTL}
}

// TTL resolves a requested lifetime: non-positive falls back to the
// default, anything above MaxTTL is clamped.
func (p Policy) TTL(requested time.Duration) time.Duration {
	ttl := requested
	if ttl <= 0 {
		ttl = p.DefaultTTL
		if ttl <= 0 {
			ttl = DefaultTTL
		}
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}

func validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrInvalidInput
	}
	return nil
}

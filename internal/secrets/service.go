// Package secrets exposes the operations the HTTP layer needs: create a
// secret, retrieve it once, and report how many are live.
package secrets

import (
	"context"
	"time"

	"go.uber.org/zap"

	"secretpass/internal/models"
	"secretpass/internal/store"
)

// Health is a read-only snapshot for monitoring.
type Health struct {
	LiveSecrets int
	Uptime      time.Duration
}

type Service struct {
	store     store.Store
	logger    *zap.Logger
	startedAt time.Time
}

func NewService(s store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     s,
		logger:    logger.With(zap.String("component", "secrets")),
		startedAt: time.Now(),
	}
}

// CreateSecret stores content for ttlMillis milliseconds. A non-positive
// ttl selects the store's default lifetime.
func (s *Service) CreateSecret(ctx context.Context, content string, ttlMillis int64) (*models.Secret, error) {
	var ttl time.Duration
	switch {
	case ttlMillis <= 0:
	case ttlMillis > int64(maxDuration/time.Millisecond):
		ttl = maxDuration // clamped by the store policy
	default:
		ttl = time.Duration(ttlMillis) * time.Millisecond
	}

	return s.store.Create(ctx, content, ttl)
}

// RetrieveSecret returns the secret and destroys it. Unknown, consumed and
// expired ids all yield store.ErrNotFound.
func (s *Service) RetrieveSecret(ctx context.Context, id string) (*models.Secret, error) {
	return s.store.TakeOnce(ctx, id)
}

func (s *Service) HealthStatus(ctx context.Context) (Health, error) {
	n, err := s.store.Count(ctx)
	if err != nil {
		s.logger.Error("counting live secrets", zap.Error(err))
		return Health{}, err
	}
	return Health{
		LiveSecrets: n,
		Uptime:      time.Since(s.startedAt),
	}, nil
}

const maxDuration = time.Duration(1<<63 - 1)

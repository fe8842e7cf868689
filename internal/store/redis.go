// redis.go
package store

import (
	"bytes"
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"secretpass/internal/crypto"
	"secretpass/internal/models"
)

var _ Store = (*RedisStore)(nil)

const (
	keyPrefix     = "secret:"
	scanBatchSize = 500
)

// RedisStore keeps secrets in a single Redis instance. Key TTLs replace
// the in-process expiry tasks, and GETDEL gives the atomic take.
type RedisStore struct {
	client *redis.Client
	ids    crypto.IDGenerator
	policy Policy
	now    func() time.Time
	logger *zap.Logger
	closed atomic.Bool
}

type RedisOption func(*RedisStore)

func WithRedisPolicy(p Policy) RedisOption {
	return func(r *RedisStore) {
		r.policy = p
	}
}

func WithRedisIDGenerator(g crypto.IDGenerator) RedisOption {
	return func(r *RedisStore) {
		r.ids = g
	}
}

func WithRedisLogger(l *zap.Logger) RedisOption {
	return func(r *RedisStore) {
		r.logger = l
	}
}

func NewRedisStore(options *redis.Options, opts ...RedisOption) (*RedisStore, error) {
	client := redis.NewClient(options)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis at %s: %w", options.Addr, err)
	}

	r := &RedisStore{
		client: client,
		ids:    crypto.RandomID{},
		policy: DefaultPolicy(),
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "redis_store"))
	return r, nil
}

func (r *RedisStore) Create(ctx context.Context, content string, ttl time.Duration) (*models.Secret, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	ttl = r.policy.TTL(ttl)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := r.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generating secret id: %w", err)
		}

		secret := &models.Secret{
			ID:        id,
			Content:   content,
			CreatedAt: r.now(),
			TTL:       ttl,
		}
		data, err := encode(secret)
		if err != nil {
			return nil, err
		}

		ok, err := r.client.SetNX(ctx, secretKey(id), data, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("storing secret: %w", err)
		}
		if ok {
			r.logger.Info("secret created", zap.String("id", id), zap.Duration("ttl", ttl))
			return secret, nil
		}
		r.logger.Warn("secret id collision", zap.Int("attempt", attempt+1))
	}
	return nil, errIDCollision
}

func (r *RedisStore) TakeOnce(ctx context.Context, id string) (*models.Secret, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	data, err := r.client.GetDel(ctx, secretKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("taking secret: %w", err)
	}

	secret, err := decode(data)
	if err != nil {
		return nil, err
	}

	// Redis evicts lazily at key granularity; the record's own deadline
	// is authoritative.
	if secret.Expired(r.now()) {
		r.logger.Info("secret expired", zap.String("id", id), zap.String("trigger", "read"))
		return nil, ErrNotFound
	}

	r.logger.Info("secret consumed", zap.String("id", id))
	return secret, nil
}

func (r *RedisStore) Expire(ctx context.Context, id string) error {
	if r.closed.Load() {
		return nil
	}
	n, err := r.client.Del(ctx, secretKey(id)).Result()
	if err != nil {
		return fmt.Errorf("expiring secret: %w", err)
	}
	if n > 0 {
		r.logger.Info("secret expired", zap.String("id", id), zap.String("trigger", "explicit"))
	}
	return nil
}

// Count walks the keyspace with SCAN. Keys may appear twice if the
// keyspace is rehashed mid-scan, so the figure is approximate under load.
func (r *RedisStore) Count(ctx context.Context) (int, error) {
	if r.closed.Load() {
		return 0, nil
	}
	var (
		cursor uint64
		count  int
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, keyPrefix+"*", scanBatchSize).Result()
		if err != nil {
			return 0, fmt.Errorf("counting secrets: %w", err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Close releases the client. Afterwards the store behaves like a closed
// MemoryStore: Create and TakeOnce fail with ErrClosed.
func (r *RedisStore) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	return r.client.Close()
}

// Helpers

func secretKey(id string) string {
	return keyPrefix + id
}

func encode(secret *models.Secret) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(secret); err != nil {
		return nil, fmt.Errorf("encoding secret: %w", err)
	}
	return buf.Bytes(), nil
}

func decode(data []byte) (*models.Secret, error) {
	var secret models.Secret
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&secret); err != nil {
		return nil, fmt.Errorf("decoding secret: %w", err)
	}
	return &secret, nil
}

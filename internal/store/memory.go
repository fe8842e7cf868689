package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"secretpass/internal/crypto"
	"secretpass/internal/expiry"
	"secretpass/internal/models"
)

// Compile-time interface check
var _ Store = (*MemoryStore)(nil)

const (
	DefaultShards        = 32
	DefaultSweepInterval = 30 * time.Second
)

var errIDCollision = errors.New("could not allocate a unique secret id")

type entry struct {
	secret *models.Secret
	task   *expiry.Task
}

// shard owns a slice of the id space. All mutations of one id happen
// under its shard lock.
type shard struct {
	mu      sync.Mutex
	secrets map[string]*entry
}

// MemoryStore keeps secrets in process memory, partitioned into shards
// so that unrelated ids never contend on the same lock. Each record has a
// pending expiry task that is cancelled when the record is taken.
type MemoryStore struct {
	shards []*shard
	mask   uint64

	ids       crypto.IDGenerator
	policy    Policy
	scheduler *expiry.Scheduler
	now       func() time.Time
	logger    *zap.Logger

	sweepInterval time.Duration
	cleanupCancel context.CancelFunc
	closed        atomic.Bool
}

type Option func(*MemoryStore)

// WithShards sets the shard count, rounded up to a power of two.
func WithShards(n int) Option {
	return func(s *MemoryStore) {
		s.shards = make([]*shard, nextPowerOfTwo(n))
	}
}

// WithSweepInterval sets how often a background pass drops records past
// their deadline. Zero disables the pass.
func WithSweepInterval(d time.Duration) Option {
	return func(s *MemoryStore) {
		s.sweepInterval = d
	}
}

func WithPolicy(p Policy) Option {
	return func(s *MemoryStore) {
		s.policy = p
	}
}

func WithIDGenerator(g crypto.IDGenerator) Option {
	return func(s *MemoryStore) {
		s.ids = g
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *MemoryStore) {
		s.logger = l
	}
}

// WithClock replaces time.Now for deadline checks. Expiry tasks still run
// on real timers.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		s.now = now
	}
}

func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		shards:        make([]*shard, DefaultShards),
		ids:           crypto.RandomID{},
		policy:        DefaultPolicy(),
		scheduler:     expiry.NewScheduler(),
		now:           time.Now,
		logger:        zap.NewNop(),
		sweepInterval: DefaultSweepInterval,
	}
	for _, opt := range opts {
		opt(s)
	}

	for i := range s.shards {
		s.shards[i] = &shard{secrets: make(map[string]*entry)}
	}
	s.mask = uint64(len(s.shards) - 1)
	s.logger = s.logger.With(zap.String("component", "memory_store"))

	if s.sweepInterval > 0 {
		ctx, cancel := context.WithCancel(context.Background())
		s.cleanupCancel = cancel
		go s.cleanupLoop(ctx, s.sweepInterval)
	}
	return s
}

func (s *MemoryStore) Create(ctx context.Context, content string, ttl time.Duration) (*models.Secret, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := validateContent(content); err != nil {
		return nil, err
	}
	ttl = s.policy.TTL(ttl)

	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := s.ids.NewID()
		if err != nil {
			return nil, fmt.Errorf("generating secret id: %w", err)
		}

		secret := &models.Secret{
			ID:        id,
			Content:   content,
			CreatedAt: s.now(),
			TTL:       ttl,
		}

		inserted, err := s.insert(secret)
		if err != nil {
			return nil, err
		}
		if inserted {
			s.logger.Info("secret created", zap.String("id", id), zap.Duration("ttl", ttl))
			out := *secret
			return &out, nil
		}
		s.logger.Warn("secret id collision", zap.Int("attempt", attempt+1))
	}
	return nil, errIDCollision
}

// insert adds the record and arms its expiry task in one critical section,
// so a task that fires immediately still finds the entry.
func (s *MemoryStore) insert(secret *models.Secret) (bool, error) {
	sh := s.shardFor(secret.ID)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if s.closed.Load() {
		return false, ErrClosed
	}
	if _, exists := sh.secrets[secret.ID]; exists {
		return false, nil
	}

	e := &entry{secret: secret}
	e.task = s.scheduler.After(secret.TTL, func() {
		s.expireEntry(secret.ID, e)
	})
	sh.secrets[secret.ID] = e
	return true, nil
}

func (s *MemoryStore) TakeOnce(ctx context.Context, id string) (*models.Secret, error) {
	sh := s.shardFor(id)

	sh.mu.Lock()
	e, ok := sh.secrets[id]
	if ok {
		delete(sh.secrets, id)
		e.task.Cancel()
	}
	sh.mu.Unlock()

	if !ok {
		if s.closed.Load() {
			return nil, ErrClosed
		}
		return nil, ErrNotFound
	}

	if e.secret.Expired(s.now()) {
		s.logger.Info("secret expired", zap.String("id", id), zap.String("trigger", "read"))
		return nil, ErrNotFound
	}

	s.logger.Info("secret consumed", zap.String("id", id))
	return e.secret, nil
}

func (s *MemoryStore) Expire(ctx context.Context, id string) error {
	sh := s.shardFor(id)

	sh.mu.Lock()
	e, ok := sh.secrets[id]
	if ok {
		delete(sh.secrets, id)
		e.task.Cancel()
	}
	sh.mu.Unlock()

	if ok {
		s.logger.Info("secret expired", zap.String("id", id), zap.String("trigger", "explicit"))
	}
	return nil
}

// expireEntry is the expiry task body. It removes only the entry it was
// armed for; if the id was taken (or reused) meanwhile it does nothing.
func (s *MemoryStore) expireEntry(id string, e *entry) {
	sh := s.shardFor(id)

	sh.mu.Lock()
	cur, ok := sh.secrets[id]
	if ok && cur == e {
		delete(sh.secrets, id)
	}
	sh.mu.Unlock()

	if ok && cur == e {
		s.logger.Info("secret expired", zap.String("id", id), zap.String("trigger", "timer"))
	}
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	now := s.now()
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for _, e := range sh.secrets {
			if !e.secret.Expired(now) {
				n++
			}
		}
		sh.mu.Unlock()
	}
	return n, nil
}

func (s *MemoryStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.cleanupCancel != nil {
		s.cleanupCancel()
	}
	s.scheduler.Stop()

	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.secrets = make(map[string]*entry)
		sh.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep drops every record past its deadline whose task has not run yet.
func (s *MemoryStore) sweep() int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, e := range sh.secrets {
			if e.secret.Expired(now) {
				delete(sh.secrets, id)
				e.task.Cancel()
				removed++
			}
		}
		sh.mu.Unlock()
	}
	if removed > 0 {
		s.logger.Info("swept expired secrets", zap.Int("count", removed))
	}
	return removed
}

func (s *MemoryStore) shardFor(id string) *shard {
	return s.shards[xxhash.Sum64String(id)&s.mask]
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

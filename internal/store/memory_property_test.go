package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func genContent() gopter.Gen {
	return gen.AnyString().Map(func(s string) string {
		if strings.TrimSpace(s) == "" {
			return s + "x"
		}
		return s
	})
}

func TestPropertyTakeOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)
	ctx := context.Background()

	properties.Property("Create then TakeOnce returns the content exactly", prop.ForAll(
		func(content string, ttlMinutes int) bool {
			s := NewMemoryStore(WithSweepInterval(0))
			defer s.Close()

			secret, err := s.Create(ctx, content, time.Duration(ttlMinutes)*time.Minute)
			if err != nil {
				t.Logf("Create failed: %v", err)
				return false
			}
			got, err := s.TakeOnce(ctx, secret.ID)
			return err == nil && got.Content == content
		},
		genContent(),
		gen.IntRange(-10, 1440),
	))

	properties.Property("A second TakeOnce always reports not found", prop.ForAll(
		func(content string) bool {
			s := NewMemoryStore(WithSweepInterval(0))
			defer s.Close()

			secret, err := s.Create(ctx, content, time.Hour)
			if err != nil {
				return false
			}
			if _, err := s.TakeOnce(ctx, secret.ID); err != nil {
				return false
			}
			_, err = s.TakeOnce(ctx, secret.ID)
			return errors.Is(err, ErrNotFound)
		},
		genContent(),
	))

	properties.Property("Blank content is rejected and stores nothing", prop.ForAll(
		func(n int) bool {
			s := NewMemoryStore(WithSweepInterval(0))
			defer s.Close()

			blank := strings.Repeat(" \t\n", n)
			_, err := s.Create(ctx, blank, time.Hour)
			count, _ := s.Count(ctx)
			return errors.Is(err, ErrInvalidInput) && count == 0
		},
		gen.IntRange(0, 20),
	))

	properties.Property("N concurrent takes yield exactly one winner", prop.ForAll(
		func(n int) bool {
			s := NewMemoryStore(WithSweepInterval(0))
			defer s.Close()

			secret, err := s.Create(ctx, "contended", time.Hour)
			if err != nil {
				return false
			}

			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				wins    int
				misses  int
				release = make(chan struct{})
			)
			for i := 0; i < n; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					<-release
					_, err := s.TakeOnce(ctx, secret.ID)
					mu.Lock()
					defer mu.Unlock()
					if err == nil {
						wins++
					} else if errors.Is(err, ErrNotFound) {
						misses++
					}
				}()
			}
			close(release)
			wg.Wait()

			if wins != 1 || misses != n-1 {
				t.Logf("n=%d wins=%d misses=%d", n, wins, misses)
				return false
			}
			return true
		},
		gen.IntRange(2, 64),
	))

	properties.Property("Count equals live records at quiescence", prop.ForAll(
		func(created, taken int) bool {
			if taken > created {
				taken = created
			}
			s := NewMemoryStore(WithSweepInterval(0))
			defer s.Close()

			ids := make([]string, 0, created)
			for i := 0; i < created; i++ {
				secret, err := s.Create(ctx, "x", time.Hour)
				if err != nil {
					return false
				}
				ids = append(ids, secret.ID)
			}
			for _, id := range ids[:taken] {
				if _, err := s.TakeOnce(ctx, id); err != nil {
					return false
				}
			}
			count, _ := s.Count(ctx)
			return count == created-taken
		},
		gen.IntRange(0, 50),
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

func TestPropertyPolicyTTL(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500

	properties := gopter.NewProperties(parameters)
	policy := Policy{DefaultTTL: 24 * time.Hour, MaxTTL: 7 * 24 * time.Hour}

	properties.Property("Resolved TTL is always positive and within the maximum", prop.ForAll(
		func(ms int64) bool {
			ttl := policy.TTL(time.Duration(ms) * time.Millisecond)
			return ttl > 0 && ttl <= policy.MaxTTL
		},
		gen.Int64Range(-1_000_000, 30*24*3600*1000),
	))

	properties.Property("Non-positive requests get the default", prop.ForAll(
		func(ms int64) bool {
			return policy.TTL(time.Duration(ms)*time.Millisecond) == policy.DefaultTTL
		},
		gen.Int64Range(-1_000_000, 0),
	))

	properties.TestingRun(t)
}

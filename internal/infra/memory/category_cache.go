package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"quiz-maker-service/internal/app"
	"quiz-maker-service/internal/domain"
)

const categoriesKey = "categories"

// DefaultFetchTimeout bounds a shared category fetch once it no longer follows any caller's context.
const DefaultFetchTimeout = 30 * time.Second

// CategoryCache keeps the provider's category list with a TTL so new sessions do not
// each hit the trivia API. Question fetches pass straight through.
type CategoryCache struct {
	app.Gateway

	ttl          time.Duration
	fetchTimeout time.Duration
	clock        func() time.Time
	sf           singleflight.Group
	rnd          *rand.Rand

	mu        sync.RWMutex
	rndMu     sync.Mutex
	cached    []domain.Category
	expiresAt time.Time
}

func NewCategoryCache(gateway app.Gateway, ttl time.Duration) *CategoryCache {
	return &CategoryCache{
		Gateway:      gateway,
		ttl:          ttl,
		fetchTimeout: DefaultFetchTimeout,
		clock:        time.Now,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CategoryCache) GetCategories(ctx context.Context) ([]domain.Category, error) {
	if categories, ok := c.lookup(c.clock()); ok {
		return categories, nil
	}

	// The flight serves every waiting session and outlives any single caller;
	// each caller stops waiting when its own ctx ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(categoriesKey, func() (interface{}, error) {
		now := c.clock()
		if categories, ok := c.lookup(now); ok {
			return categories, nil
		}

		fetchCtx, cancel := context.WithTimeout(flightCtx, c.fetchTimeout)
		defer cancel()
		categories, err := c.Gateway.GetCategories(fetchCtx)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		c.cached = append([]domain.Category(nil), categories...)
		c.expiresAt = now.Add(c.ttlWithJitter())
		c.mu.Unlock()
		return categories, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return append([]domain.Category(nil), res.Val.([]domain.Category)...), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Invalidate drops the cached list so the next lookup refetches it.
func (c *CategoryCache) Invalidate(_ context.Context) error {
	c.mu.Lock()
	c.cached = nil
	c.expiresAt = time.Time{}
	c.mu.Unlock()
	return nil
}

func (c *CategoryCache) lookup(now time.Time) ([]domain.Category, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.cached) == 0 || !c.expiresAt.After(now) {
		return nil, false
	}
	return append([]domain.Category(nil), c.cached...), true
}

func (c *CategoryCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	// add up to 10% jitter to spread expirations
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

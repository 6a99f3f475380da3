package redis

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"quiz-maker-service/internal/app"
	"quiz-maker-service/internal/domain"
)

// CategoriesKey holds the JSON-encoded category list shared by every instance.
const CategoriesKey = "quiz:categories"

// DefaultFetchTimeout bounds a shared category fetch once it no longer follows any caller's context.
const DefaultFetchTimeout = 30 * time.Second

// CategoryCache caches the provider's category list in Redis and falls back to the
// wrapped gateway on a miss. Redis failures are logged and treated as misses so the
// quiz keeps working without the cache. Question fetches pass straight through.
type CategoryCache struct {
	app.Gateway

	client       *redis.Client
	ttl          time.Duration
	fetchTimeout time.Duration
	sf           singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewCategoryCache(client *redis.Client, gateway app.Gateway, ttl time.Duration) *CategoryCache {
	return &CategoryCache{
		Gateway:      gateway,
		client:       client,
		ttl:          ttl,
		fetchTimeout: DefaultFetchTimeout,
		rnd:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (c *CategoryCache) GetCategories(ctx context.Context) ([]domain.Category, error) {
	if categories, ok := c.lookup(ctx); ok {
		return categories, nil
	}

	// The flight serves every waiting session and outlives any single caller;
	// each caller stops waiting when its own ctx ends.
	flightCtx := context.WithoutCancel(ctx)
	ch := c.sf.DoChan(CategoriesKey, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(flightCtx, c.fetchTimeout)
		defer cancel()

		// Re-check cache in case another instance filled it.
		if categories, ok := c.lookup(fetchCtx); ok {
			return categories, nil
		}

		categories, err := c.Gateway.GetCategories(fetchCtx)
		if err != nil {
			return nil, err
		}

		payload, err := json.Marshal(categories)
		if err != nil {
			return nil, err
		}
		if err := c.client.Set(fetchCtx, CategoriesKey, payload, c.ttlWithJitter()).Err(); err != nil {
			log.Printf("category cache: store failed: %v", err)
		}
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

// Invalidate removes the shared cached list.
func (c *CategoryCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, CategoriesKey).Err()
}

func (c *CategoryCache) lookup(ctx context.Context) ([]domain.Category, bool) {
	payload, err := c.client.Get(ctx, CategoriesKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			log.Printf("category cache: lookup failed: %v", err)
		}
		return nil, false
	}
	var categories []domain.Category
	if err := json.Unmarshal(payload, &categories); err != nil || len(categories) == 0 {
		return nil, false
	}
	return categories, true
}

func (c *CategoryCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(c.rnd.Int63n(jitterMax+1))
}

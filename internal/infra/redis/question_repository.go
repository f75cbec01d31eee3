package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"exam-arena-service/internal/bank"
	"exam-arena-service/internal/domain"
)

// QuestionLoader fetches the question catalog from a backing store (e.g., Postgres).
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// CatalogKey is the hash holding the cached catalog: HSET questions:catalog {questionID} {json}.
const CatalogKey = "questions:catalog"

// QuestionRepository caches the catalog in Redis and falls back to a loader on cache miss.
type QuestionRepository struct {
	client *redis.Client
	loader QuestionLoader
	ttl    time.Duration
	sf     singleflight.Group
}

func NewQuestionRepository(client *redis.Client, loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
	}
}

// Sample implements bank.Source.
func (r *QuestionRepository) Sample(ctx context.Context, filter domain.QuestionFilter, count int, exclude map[string]bool) ([]domain.Question, error) {
	catalog, err := r.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return bank.SampleFrom(catalog, filter, count, exclude), nil
}

// Catalog returns the cached catalog, loading and caching it on a miss.
func (r *QuestionRepository) Catalog(ctx context.Context) ([]domain.Question, error) {
	if catalog, ok := r.cached(ctx); ok {
		return catalog, nil
	}

	result, err, _ := r.sf.Do(CatalogKey, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if catalog, ok := r.cached(ctx); ok {
			return catalog, nil
		}

		catalog, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		if len(catalog) == 0 {
			return []domain.Question{}, nil
		}

		pipe := r.client.Pipeline()
		for _, q := range catalog {
			data, err := json.Marshal(q)
			if err != nil {
				return nil, fmt.Errorf("encode question %s: %w", q.ID, err)
			}
			pipe.HSet(ctx, CatalogKey, q.ID, data)
		}
		if ttl := ttlWithJitter(r.ttl); ttl > 0 {
			pipe.Expire(ctx, CatalogKey, ttl)
		}
		// cache fill is best-effort; the loaded catalog is still served
		_, _ = pipe.Exec(ctx)

		return catalog, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate removes the cached catalog.
func (r *QuestionRepository) Invalidate(ctx context.Context) error {
	return r.client.Del(ctx, CatalogKey).Err()
}

func (r *QuestionRepository) cached(ctx context.Context) ([]domain.Question, bool) {
	entries, err := r.client.HGetAll(ctx, CatalogKey).Result()
	if err != nil || len(entries) == 0 {
		return nil, false
	}
	catalog := make([]domain.Question, 0, len(entries))
	for id, raw := range entries {
		var q domain.Question
		if err := json.Unmarshal([]byte(raw), &q); err != nil {
			// a corrupt entry invalidates the whole cache
			_ = r.client.Del(ctx, CatalogKey).Err()
			return nil, false
		}
		q.ID = id
		catalog = append(catalog, q)
	}
	sort.Slice(catalog, func(i, j int) bool { return catalog[i].ID < catalog[j].ID })
	return catalog, true
}

func ttlWithJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	return ttl + time.Duration(rand.Int64N(jitterMax+1))
}

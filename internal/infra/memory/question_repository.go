package memory

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"exam-arena-service/internal/bank"
	"exam-arena-service/internal/domain"
)

// QuestionLoader fetches the whole question catalog from a backing store.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context) ([]domain.Question, error)
}

// QuestionRepository caches the catalog with TTL to avoid repeated DB hits and samples it in-process.
type QuestionRepository struct {
	loader QuestionLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group

	mu        sync.RWMutex
	catalog   []domain.Question
	expiresAt time.Time
}

func NewQuestionRepository(loader QuestionLoader, ttl time.Duration) *QuestionRepository {
	return &QuestionRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
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

// Catalog returns the cached catalog, loading it once per expiry across concurrent callers.
func (r *QuestionRepository) Catalog(ctx context.Context) ([]domain.Question, error) {
	now := r.clock()

	r.mu.RLock()
	if r.catalog != nil && r.expiresAt.After(now) {
		catalog := r.catalog
		r.mu.RUnlock()
		return catalog, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("catalog", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.catalog != nil && r.expiresAt.After(now) {
			catalog := r.catalog
			r.mu.RUnlock()
			return catalog, nil
		}
		r.mu.RUnlock()

		catalog, err := r.loader.LoadQuestions(ctx)
		if err != nil {
			return nil, fmt.Errorf("load questions: %w", err)
		}
		if catalog == nil {
			catalog = []domain.Question{}
		}

		r.mu.Lock()
		r.catalog = catalog
		r.expiresAt = now.Add(ttlWithJitter(r.ttl))
		r.mu.Unlock()
		return catalog, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Question), nil
}

// Invalidate drops the cached catalog so the next read reloads it.
func (r *QuestionRepository) Invalidate() {
	r.mu.Lock()
	r.catalog = nil
	r.mu.Unlock()
}

// StaticLoader is a loader backed by a fixed slice (seed data, tests, demos).
type StaticLoader struct {
	questions []domain.Question
}

func NewStaticLoader(questions []domain.Question) *StaticLoader {
	return &StaticLoader{questions: questions}
}

func (l *StaticLoader) LoadQuestions(_ context.Context) ([]domain.Question, error) {
	out := make([]domain.Question, len(l.questions))
	copy(out, l.questions)
	return out, nil
}

// ttlWithJitter adds up to 10% jitter to spread expirations.
func ttlWithJitter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	jitterMax := int64(ttl) / 10
	return ttl + time.Duration(rand.Int64N(jitterMax+1))
}

package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"exam-arena-service/internal/domain"
)

func TestQuestionRepositoryCaches(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticLoader(mustSeed(t))}
	repo := NewQuestionRepository(loader, time.Minute)

	if _, err := repo.Sample(context.Background(), domain.QuestionFilter{}, 5, nil); err != nil {
		t.Fatalf("sample: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected loader once, got %d", loader.calls.Load())
	}

	if _, err := repo.Sample(context.Background(), domain.QuestionFilter{}, 5, nil); err != nil {
		t.Fatalf("sample 2: %v", err)
	}
	if loader.calls.Load() != 1 {
		t.Fatalf("expected cache hit, loader calls %d", loader.calls.Load())
	}
}

func TestQuestionRepositoryReloadsAfterExpiry(t *testing.T) {
	loader := &countingLoader{QuestionLoader: NewStaticLoader(mustSeed(t))}
	repo := NewQuestionRepository(loader, time.Minute)
	now := time.Now()
	repo.clock = func() time.Time { return now }

	_, _ = repo.Catalog(context.Background())
	now = now.Add(2 * time.Minute)
	_, _ = repo.Catalog(context.Background())
	if loader.calls.Load() != 2 {
		t.Fatalf("expected reload after ttl, got %d loads", loader.calls.Load())
	}

	repo.Invalidate()
	_, _ = repo.Catalog(context.Background())
	if loader.calls.Load() != 3 {
		t.Fatalf("expected reload after invalidate, got %d loads", loader.calls.Load())
	}
}

func TestQuestionRepositorySingleFlight(t *testing.T) {
	release := make(chan struct{})
	loader := &countingLoader{QuestionLoader: NewStaticLoader(mustSeed(t)), gate: release}
	repo := NewQuestionRepository(loader, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Catalog(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if loader.calls.Load() != 1 {
		t.Fatalf("concurrent misses must share one load, got %d", loader.calls.Load())
	}
}

func TestQuestionRepositorySampleHonorsFilterAndExclude(t *testing.T) {
	repo := NewQuestionRepository(NewStaticLoader(mustSeed(t)), time.Minute)
	filter := domain.QuestionFilter{ExamTypes: []string{"UPSC"}}

	all, err := repo.Sample(context.Background(), filter, 100, nil)
	if err != nil {
		t.Fatalf("sample: %v", err)
	}
	if len(all) == 0 {
		t.Fatalf("expected upsc questions in seed data")
	}
	exclude := map[string]bool{all[0].ID: true}
	rest, _ := repo.Sample(context.Background(), filter, 100, exclude)
	if len(rest) != len(all)-1 {
		t.Fatalf("expected %d after exclusion, got %d", len(all)-1, len(rest))
	}
	for _, q := range rest {
		if q.ExamType != "upsc" || q.ID == all[0].ID {
			t.Fatalf("unexpected question %s (%s)", q.ID, q.ExamType)
		}
	}
}

func TestSeedQuestionsAreValid(t *testing.T) {
	questions := mustSeed(t)
	seen := make(map[string]bool)
	for _, q := range questions {
		if seen[q.ID] {
			t.Fatalf("duplicate seed id %s", q.ID)
		}
		seen[q.ID] = true
		if q.Prompt.In("hi") == "" || q.Prompt.In("en") == "" {
			t.Fatalf("seed %s lacks a prompt", q.ID)
		}
	}
}

type countingLoader struct {
	QuestionLoader
	calls atomic.Int32
	gate  chan struct{}
}

func (l *countingLoader) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	l.calls.Add(1)
	if l.gate != nil {
		<-l.gate
	}
	return l.QuestionLoader.LoadQuestions(ctx)
}

func mustSeed(t *testing.T) []domain.Question {
	t.Helper()
	questions, err := SeedQuestions()
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	return questions
}

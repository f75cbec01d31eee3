package bank

import (
	"context"
	"fmt"

	"exam-arena-service/internal/domain"
)

// Source draws random questions matching a filter. Implementations sample uniformly,
// skip ids in exclude and may return fewer than count.
type Source interface {
	Sample(ctx context.Context, filter domain.QuestionFilter, count int, exclude map[string]bool) ([]domain.Question, error)
}

// FallbackLevel records how far a query was broadened before it produced results.
type FallbackLevel int

const (
	LevelExact FallbackLevel = iota
	LevelNoDifficulty
	LevelExamOnly
	LevelGlobal
)

func (l FallbackLevel) String() string {
	switch l {
	case LevelExact:
		return "exact"
	case LevelNoDifficulty:
		return "no-difficulty"
	case LevelExamOnly:
		return "exam-only"
	case LevelGlobal:
		return "global"
	default:
		return fmt.Sprintf("level-%d", int(l))
	}
}

// Result is a sample plus the broadening it needed.
type Result struct {
	Questions []domain.Question
	Level     FallbackLevel
	// Message is a user-facing notice, empty for exact matches.
	Message string
}

// Bank answers randomized sample queries with ordered filter relaxation.
type Bank struct {
	source Source
}

func New(source Source) *Bank {
	return &Bank{source: source}
}

type step struct {
	level  FallbackLevel
	filter domain.QuestionFilter
}

// relaxations lists the filters tried in order, each a superset of the previous one.
// Steps identical to their predecessor are dropped.
func relaxations(f domain.QuestionFilter) []step {
	noDifficulty := domain.QuestionFilter{ExamTypes: f.ExamTypes, Subjects: f.Subjects}
	examOnly := domain.QuestionFilter{ExamTypes: f.ExamTypes}
	candidates := []step{
		{LevelExact, f},
		{LevelNoDifficulty, noDifficulty},
		{LevelExamOnly, examOnly},
		{LevelGlobal, domain.QuestionFilter{}},
	}
	out := []step{candidates[0]}
	for _, c := range candidates[1:] {
		if sameFilter(c.filter, out[len(out)-1].filter) {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Sample returns up to count distinct questions, broadening the filter until something matches.
// It fails with domain.ErrContentUnavailable only when even the global sample is empty.
func (b *Bank) Sample(ctx context.Context, filter domain.QuestionFilter, count int) (Result, error) {
	return b.sample(ctx, filter, count, nil)
}

// One draws a single replacement question not in exclude, with the same broadening.
func (b *Bank) One(ctx context.Context, filter domain.QuestionFilter, exclude map[string]bool) (domain.Question, error) {
	res, err := b.sample(ctx, filter, 1, exclude)
	if err != nil {
		return domain.Question{}, err
	}
	return res.Questions[0], nil
}

func (b *Bank) sample(ctx context.Context, filter domain.QuestionFilter, count int, exclude map[string]bool) (Result, error) {
	if count <= 0 {
		return Result{}, fmt.Errorf("sample count must be positive, got %d", count)
	}
	for _, s := range relaxations(filter) {
		questions, err := b.source.Sample(ctx, s.filter, count, exclude)
		if err != nil {
			return Result{}, fmt.Errorf("sample %s: %w", s.level, err)
		}
		questions = dedupe(questions, count)
		if len(questions) == 0 {
			continue
		}
		res := Result{Questions: Interleave(questions), Level: s.level}
		if s.level != LevelExact {
			res.Message = fmt.Sprintf("No matches for %s, showing related content", filter)
		}
		return res, nil
	}
	return Result{}, domain.ErrContentUnavailable
}

func dedupe(questions []domain.Question, limit int) []domain.Question {
	seen := make(map[string]bool, len(questions))
	out := questions[:0:0]
	for _, q := range questions {
		if seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		out = append(out, q)
		if len(out) == limit {
			break
		}
	}
	return out
}

func sameFilter(a, b domain.QuestionFilter) bool {
	return a.Difficulty == b.Difficulty && equalStrings(a.ExamTypes, b.ExamTypes) && equalStrings(a.Subjects, b.Subjects)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

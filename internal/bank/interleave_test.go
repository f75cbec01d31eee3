package bank

import (
	"testing"

	"exam-arena-service/internal/domain"
)

func TestInterleaveRoundRobin(t *testing.T) {
	in := []domain.Question{
		makeQuestion("a1", "ssc", "A", domain.DifficultyEasy),
		makeQuestion("a2", "ssc", "A", domain.DifficultyEasy),
		makeQuestion("a3", "ssc", "A", domain.DifficultyEasy),
		makeQuestion("b1", "ssc", "B", domain.DifficultyEasy),
		makeQuestion("c1", "ssc", "C", domain.DifficultyEasy),
		makeQuestion("b2", "ssc", "B", domain.DifficultyEasy),
	}
	want := []string{"a1", "b1", "c1", "a2", "b2", "a3"}

	got := Interleave(in)
	if len(got) != len(want) {
		t.Fatalf("expected %d questions, got %d", len(want), len(got))
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Fatalf("position %d: want %s, got %s", i, id, got[i].ID)
		}
	}
}

func TestInterleaveSingleSubjectUnchanged(t *testing.T) {
	in := []domain.Question{
		makeQuestion("a1", "ssc", "A", domain.DifficultyEasy),
		makeQuestion("a2", "ssc", "A", domain.DifficultyEasy),
	}
	got := Interleave(in)
	if got[0].ID != "a1" || got[1].ID != "a2" {
		t.Fatalf("unexpected order %v", got)
	}
}

func TestSampleFromIsUniformSubset(t *testing.T) {
	catalog := testCatalog()
	got := SampleFrom(catalog, domain.QuestionFilter{ExamTypes: []string{"ssc"}}, 3, nil)
	if len(got) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(got))
	}
	seen := make(map[string]bool)
	for _, q := range got {
		if q.ExamType != "ssc" {
			t.Fatalf("question %s outside filter", q.ID)
		}
		if seen[q.ID] {
			t.Fatalf("duplicate %s", q.ID)
		}
		seen[q.ID] = true
	}
}

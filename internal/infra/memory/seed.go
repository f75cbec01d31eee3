package memory

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"exam-arena-service/internal/domain"
)

//go:embed seed_questions.json
var seedQuestions []byte

// SeedQuestions returns the bundled practice catalog. Every entry passes Question.Validate.
func SeedQuestions() ([]domain.Question, error) {
	var questions []domain.Question
	if err := json.Unmarshal(seedQuestions, &questions); err != nil {
		return nil, fmt.Errorf("decode seed questions: %w", err)
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return questions, nil
}

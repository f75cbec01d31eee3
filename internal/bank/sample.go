package bank

import (
	"math/rand/v2"

	"exam-arena-service/internal/domain"
)

// SampleFrom draws up to count questions uniformly at random from the catalog entries that
// match filter and are not excluded. In-process sources share it.
func SampleFrom(catalog []domain.Question, filter domain.QuestionFilter, count int, exclude map[string]bool) []domain.Question {
	matching := make([]domain.Question, 0, len(catalog))
	seen := make(map[string]bool, len(catalog))
	for _, q := range catalog {
		if exclude[q.ID] || seen[q.ID] || !filter.Matches(q) {
			continue
		}
		seen[q.ID] = true
		matching = append(matching, q)
	}
	if count > len(matching) {
		count = len(matching)
	}
	// partial Fisher-Yates
	for i := 0; i < count; i++ {
		j := i + rand.IntN(len(matching)-i)
		matching[i], matching[j] = matching[j], matching[i]
	}
	return matching[:count]
}

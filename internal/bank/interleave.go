package bank

import "exam-arena-service/internal/domain"

// Interleave regroups questions by subject, in order of first appearance, and merges the
// groups round-robin so a page never clusters one subject. Order within a subject is kept.
func Interleave(questions []domain.Question) []domain.Question {
	var order []string
	groups := make(map[string][]domain.Question)
	for _, q := range questions {
		if _, ok := groups[q.Subject]; !ok {
			order = append(order, q.Subject)
		}
		groups[q.Subject] = append(groups[q.Subject], q)
	}
	if len(order) < 2 {
		return questions
	}

	out := make([]domain.Question, 0, len(questions))
	for round := 0; len(out) < len(questions); round++ {
		for _, subject := range order {
			if g := groups[subject]; round < len(g) {
				out = append(out, g[round])
			}
		}
	}
	return out
}

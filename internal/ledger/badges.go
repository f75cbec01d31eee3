package ledger

import "exam-arena-service/internal/domain"

// Badge ids.
const (
	BadgeFirstQuiz    = "first-quiz"
	BadgePerfectScore = "perfect-score"
	BadgeStreak10     = "streak-10"
	BadgeSurvivor     = "survivor"
	BadgeSpeedDemon   = "speed-demon"
	BadgeLevel5       = "level-5"
	BadgeCollector    = "collector"
)

type badgeRule struct {
	id   string
	test func(rec domain.ProgressionRecord, res *domain.QuizResult) bool
}

// badgeRules are checked after every quiz result and island purchase. res is nil outside a quiz.
var badgeRules = []badgeRule{
	{BadgeFirstQuiz, func(rec domain.ProgressionRecord, _ *domain.QuizResult) bool {
		return rec.QuizzesCompleted >= 1
	}},
	{BadgePerfectScore, func(_ domain.ProgressionRecord, res *domain.QuizResult) bool {
		return res != nil && res.TotalQuestions >= 5 && res.Score == res.TotalQuestions
	}},
	{BadgeStreak10, func(rec domain.ProgressionRecord, _ *domain.QuizResult) bool {
		return rec.BestStreak >= 10
	}},
	{BadgeSurvivor, func(_ domain.ProgressionRecord, res *domain.QuizResult) bool {
		return res != nil && res.Mode == domain.ModeSurvival && res.Score >= 15
	}},
	{BadgeSpeedDemon, func(_ domain.ProgressionRecord, res *domain.QuizResult) bool {
		return res != nil && res.Mode == domain.ModeSpeedrun && res.Score >= 20
	}},
	{BadgeLevel5, func(rec domain.ProgressionRecord, _ *domain.QuizResult) bool {
		return domain.Progression(rec.XP).Level >= 5
	}},
	{BadgeCollector, func(rec domain.ProgressionRecord, _ *domain.QuizResult) bool {
		owned := 0
		for _, ok := range rec.UnlockedIslands {
			if ok {
				owned++
			}
		}
		return owned >= 3
	}},
}

// unlockBadges marks every newly satisfied badge on rec and returns their ids in rule order.
func unlockBadges(rec *domain.ProgressionRecord, res *domain.QuizResult) []string {
	var unlocked []string
	for _, rule := range badgeRules {
		if rec.UnlockedBadges[rule.id] || !rule.test(*rec, res) {
			continue
		}
		rec.UnlockedBadges[rule.id] = true
		unlocked = append(unlocked, rule.id)
	}
	return unlocked
}

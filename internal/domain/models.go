package domain

import (
	"fmt"
	"strings"
	"time"
)

// DefaultLanguage is used when a localized string has no entry for the requested language.
const DefaultLanguage = "en"

// Difficulty grades a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty returns the difficulty for raw, or "" with ok=false when unknown.
func ParseDifficulty(raw string) (Difficulty, bool) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(raw))); d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return d, true
	}
	return "", false
}

// LocalizedText maps a language code to text.
type LocalizedText map[string]string

// In returns the text for lang, falling back to English and then to any entry.
func (t LocalizedText) In(lang string) string {
	if s, ok := t[lang]; ok && s != "" {
		return s
	}
	if s, ok := t[DefaultLanguage]; ok && s != "" {
		return s
	}
	for _, s := range t {
		if s != "" {
			return s
		}
	}
	return ""
}

// Option is one of the four answers of a question.
type Option struct {
	ID   string        `json:"optionId" bson:"optionId"`
	Text LocalizedText `json:"text" bson:"text"`
}

// OptionIDs are the only valid option identifiers, in display order.
var OptionIDs = []string{"A", "B", "C", "D"}

// Question is an immutable quiz item.
type Question struct {
	ID              string        `json:"id" bson:"_id"`
	ExamType        string        `json:"examType" bson:"examType"`
	Subject         string        `json:"subject" bson:"subject"`
	Difficulty      Difficulty    `json:"difficulty" bson:"difficulty"`
	Prompt          LocalizedText `json:"prompt" bson:"prompt"`
	Options         []Option      `json:"options" bson:"options"`
	CorrectOptionID string        `json:"correctOptionId" bson:"correctOptionId"`
	Explanation     LocalizedText `json:"explanation,omitempty" bson:"explanation,omitempty"`
}

// Validate checks the structural rules every stored question must satisfy.
func (q Question) Validate() error {
	if q.ID == "" {
		return fmt.Errorf("question: missing id")
	}
	if _, ok := ParseDifficulty(string(q.Difficulty)); !ok {
		return fmt.Errorf("question %s: unknown difficulty %q", q.ID, q.Difficulty)
	}
	if len(q.Options) != len(OptionIDs) {
		return fmt.Errorf("question %s: expected %d options, got %d", q.ID, len(OptionIDs), len(q.Options))
	}
	seen := make(map[string]bool, len(q.Options))
	for i, opt := range q.Options {
		if opt.ID != OptionIDs[i] {
			return fmt.Errorf("question %s: option %d has id %q, want %q", q.ID, i, opt.ID, OptionIDs[i])
		}
		seen[opt.ID] = true
	}
	if !seen[q.CorrectOptionID] {
		return fmt.Errorf("question %s: correct option %q not among options", q.ID, q.CorrectOptionID)
	}
	return nil
}

// HasOption reports whether id names one of the question's options.
func (q Question) HasOption(id string) bool {
	for _, opt := range q.Options {
		if opt.ID == id {
			return true
		}
	}
	return false
}

// QuestionFilter narrows a sample. Empty fields match anything.
type QuestionFilter struct {
	ExamTypes  []string   `json:"examTypes,omitempty"`
	Subjects   []string   `json:"subjects,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// Matches reports whether q satisfies every non-empty field of f.
func (f QuestionFilter) Matches(q Question) bool {
	if len(f.ExamTypes) > 0 && !containsFold(f.ExamTypes, q.ExamType) {
		return false
	}
	if len(f.Subjects) > 0 && !containsFold(f.Subjects, q.Subject) {
		return false
	}
	if f.Difficulty != "" && f.Difficulty != q.Difficulty {
		return false
	}
	return true
}

// IsEmpty reports whether the filter matches the whole bank.
func (f QuestionFilter) IsEmpty() bool {
	return len(f.ExamTypes) == 0 && len(f.Subjects) == 0 && f.Difficulty == ""
}

// String renders the filter for user-facing notices.
func (f QuestionFilter) String() string {
	var parts []string
	if len(f.ExamTypes) > 0 {
		parts = append(parts, strings.Join(f.ExamTypes, "/"))
	}
	if len(f.Subjects) > 0 {
		parts = append(parts, strings.Join(f.Subjects, "/"))
	}
	if f.Difficulty != "" {
		parts = append(parts, string(f.Difficulty))
	}
	if len(parts) == 0 {
		return "all questions"
	}
	return strings.Join(parts, ", ")
}

func containsFold(values []string, s string) bool {
	for _, v := range values {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Mode selects the rules a quiz session is played under.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeSurvival Mode = "survival"
	ModeSpeedrun Mode = "speedrun"
	ModeQuest    Mode = "quest"
)

// ParseMode returns the mode for raw; empty defaults to standard.
func ParseMode(raw string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(raw))); m {
	case "":
		return ModeStandard, nil
	case ModeStandard, ModeSurvival, ModeSpeedrun, ModeQuest:
		return m, nil
	}
	return "", fmt.Errorf("unknown mode %q", raw)
}

// ProgressionRecord is the ledger's authoritative per-user state. Level is derived from XP.
type ProgressionRecord struct {
	UserID           string          `json:"userId"`
	XP               int64           `json:"xp"`
	Shields          int             `json:"shields"`
	UnlockedBadges   map[string]bool `json:"unlockedBadges"`
	UnlockedIslands  map[string]bool `json:"unlockedIslands"`
	QuizzesCompleted int             `json:"quizzesCompleted"`
	BestStreak       int             `json:"bestStreak"`
	// OvertimeBanked counts overtime bought since the last speedrun result.
	OvertimeBanked int       `json:"overtimeBanked,omitempty"`
	LastSpinAt     time.Time `json:"lastSpinAt,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewProgressionRecord returns the starting record for a user.
func NewProgressionRecord(userID string) ProgressionRecord {
	return ProgressionRecord{
		UserID:          userID,
		UnlockedBadges:  make(map[string]bool),
		UnlockedIslands: make(map[string]bool),
	}
}

// Clone returns a deep copy so callers can mutate without aliasing stored maps.
func (r ProgressionRecord) Clone() ProgressionRecord {
	out := r
	out.UnlockedBadges = make(map[string]bool, len(r.UnlockedBadges))
	for k, v := range r.UnlockedBadges {
		out.UnlockedBadges[k] = v
	}
	out.UnlockedIslands = make(map[string]bool, len(r.UnlockedIslands))
	for k, v := range r.UnlockedIslands {
		out.UnlockedIslands[k] = v
	}
	return out
}

// User is the view of a player handed to clients.
type User struct {
	ID         string   `json:"id"`
	XP         int64    `json:"xp"`
	Level      int      `json:"level"`
	XPInLevel  int64    `json:"xpInLevel"`
	XPNeeded   int64    `json:"xpNeeded"`
	Shields    int      `json:"shields"`
	Badges     []string `json:"badges"`
	Islands    []string `json:"islands"`
	BestStreak int      `json:"bestStreak"`
}

// QuizResult is what a finished session reports to the ledger.
type QuizResult struct {
	Score          int     `json:"score"`
	TotalQuestions int     `json:"totalQuestions"`
	Bonus          int     `json:"bonus"`
	Mode           Mode    `json:"mode"`
	Multiplier     float64 `json:"multiplier"`
	BoostedCorrect int     `json:"boostedCorrect"`
	BestStreak     int     `json:"bestStreak"`
}

// QuizOutcome is the ledger's authoritative answer to a QuizResult.
type QuizOutcome struct {
	XPGained  int64    `json:"xpGained"`
	NewBadges []string `json:"newBadges"`
	User      User     `json:"user"`
}

package engine

import (
	"sort"
	"time"

	"exam-arena-service/internal/domain"
)

// Phase is the state of a session.
type Phase string

const (
	PhaseLoading     Phase = "loading"
	PhaseAnswering   Phase = "answering"
	PhaseAnswered    Phase = "answered"
	PhaseAdvancing   Phase = "advancing"
	PhaseReviveOffer Phase = "reviveOffer"
	PhaseCompleted   Phase = "completed"
	PhaseAbandoned   Phase = "abandoned"
)

// Outcome is how a question was resolved.
type Outcome string

const (
	OutcomeCorrect   Outcome = "correct"
	OutcomeIncorrect Outcome = "incorrect"
	OutcomeShielded  Outcome = "shielded"
	OutcomeTimeout   Outcome = "timeout"
)

// AnswerRecord is one resolved question.
type AnswerRecord struct {
	QuestionID string  `json:"questionId"`
	Selected   string  `json:"selected,omitempty"`
	Outcome    Outcome `json:"outcome"`
	// TimeUsed counts the seconds the timer ran for this question.
	TimeUsed int `json:"timeUsed"`
}

// OptionView is an option as shown to the player.
type OptionView struct {
	ID     string `json:"optionId"`
	Text   string `json:"text"`
	Hidden bool   `json:"hidden,omitempty"`
}

// QuestionView is the current question without its answer.
type QuestionView struct {
	ID         string            `json:"id"`
	ExamType   string            `json:"examType"`
	Subject    string            `json:"subject"`
	Difficulty domain.Difficulty `json:"difficulty"`
	Prompt     string            `json:"prompt"`
	Options    []OptionView      `json:"options"`
}

// Snapshot is an immutable view of a session for transports. The correct option is only
// present once the question is answered or revealed.
type Snapshot struct {
	ID                  string              `json:"id"`
	UserID              string              `json:"userId"`
	Mode                domain.Mode         `json:"mode"`
	Phase               Phase               `json:"phase"`
	Cursor              int                 `json:"cursor"`
	Total               int                 `json:"total"`
	Question            *QuestionView       `json:"question,omitempty"`
	Lives               int                 `json:"lives"`
	TimeLeft            int                 `json:"timeLeft"`
	Score               int                 `json:"score"`
	Streak              int                 `json:"streak"`
	BestStreak          int                 `json:"bestStreak"`
	Selected            string              `json:"selected,omitempty"`
	Outcome             Outcome             `json:"outcome,omitempty"`
	CorrectOptionID     string              `json:"correctOptionId,omitempty"`
	ActiveEffects       []domain.PowerUp    `json:"activeEffects"`
	BoostRemaining      int                 `json:"boostRemaining"`
	HiddenOptionIDs     []string            `json:"hiddenOptionIds"`
	RevealedOptionID    string              `json:"revealedOptionId,omitempty"`
	Hint                string              `json:"hint,omitempty"`
	Explanation         string              `json:"explanation,omitempty"`
	AIInFlight          bool                `json:"aiInFlight"`
	SnapWindowOpenUntil *time.Time          `json:"snapWindowOpenUntil,omitempty"`
	Answers             []AnswerRecord      `json:"answers"`
	Result              *domain.QuizResult  `json:"result,omitempty"`
	QuizOutcome         *domain.QuizOutcome `json:"quizOutcome,omitempty"`
	ReportError         string              `json:"reportError,omitempty"`
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:               s.id,
		UserID:           s.userID,
		Mode:             s.mode,
		Phase:            s.phase,
		Cursor:           s.cursor,
		Total:            len(s.questions),
		Lives:            s.lives,
		TimeLeft:         s.timeLeft,
		Score:            s.score,
		Streak:           s.streak,
		BestStreak:       s.bestStreak,
		Selected:         s.selected,
		Outcome:          s.outcome,
		BoostRemaining:   s.boostRemaining,
		RevealedOptionID: s.revealed,
		Hint:             s.hint,
		Explanation:      s.explanation,
		AIInFlight:       s.aiInFlight,
		ActiveEffects:    make([]domain.PowerUp, 0, len(s.effects)),
		HiddenOptionIDs:  make([]string, 0, len(s.hidden)),
		Answers:          append([]AnswerRecord(nil), s.answers...),
	}
	for _, p := range domain.PowerUps {
		if s.effects[p] {
			snap.ActiveEffects = append(snap.ActiveEffects, p)
		}
	}
	for id := range s.hidden {
		snap.HiddenOptionIDs = append(snap.HiddenOptionIDs, id)
	}
	sort.Strings(snap.HiddenOptionIDs)
	if s.snapOpen {
		until := s.snapUntil
		snap.SnapWindowOpenUntil = &until
	}
	if s.cursor < len(s.questions) && s.phase != PhaseLoading {
		q := s.questions[s.cursor]
		view := &QuestionView{
			ID:         q.ID,
			ExamType:   q.ExamType,
			Subject:    q.Subject,
			Difficulty: q.Difficulty,
			Prompt:     q.Prompt.In(s.lang),
			Options:    make([]OptionView, len(q.Options)),
		}
		for i, opt := range q.Options {
			view.Options[i] = OptionView{ID: opt.ID, Text: opt.Text.In(s.lang), Hidden: s.hidden[opt.ID]}
		}
		snap.Question = view
		if s.phase != PhaseAnswering {
			snap.CorrectOptionID = q.CorrectOptionID
		}
	}
	if s.result != nil {
		res := *s.result
		snap.Result = &res
	}
	if s.quizOutcome != nil {
		out := *s.quizOutcome
		snap.QuizOutcome = &out
	}
	if s.reportErr != nil {
		snap.ReportError = s.reportErr.Error()
	}
	return snap
}

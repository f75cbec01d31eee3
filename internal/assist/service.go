package assist

import (
	"context"
	"fmt"
	"strings"

	"exam-arena-service/internal/domain"
)

// Call-site labels, also used as metric labels.
const (
	SiteChat        = "chat"
	SiteHint        = "hint"
	SiteExplain     = "explain"
	SiteStudyAsk    = "study-ask"
	SiteStudyVerify = "study-verify"
)

// Attempt budgets per call site.
const (
	ChatAttempts        = 4
	HintAttempts        = 3
	ExplainAttempts     = 4
	StudyAskAttempts    = 4
	StudyVerifyAttempts = 2
)

const maxHistoryTurns = 10

var languageNames = map[string]string{
	"en": "English",
	"hi": "Hindi",
}

// StudyQuestion is a generated practice question.
type StudyQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correctAnswer"`
	Subject       string   `json:"subject"`
	Difficulty    string   `json:"difficulty"`
}

// Service exposes the AI features. Every method resolves to usable text:
// when all attempts fail the caller receives a static, language-appropriate fallback.
type Service struct {
	invoker *Invoker
}

// NewService wraps an invoker with the call-site prompts and fallbacks.
func NewService(invoker *Invoker) *Service {
	return &Service{invoker: invoker}
}

// Chat answers an open-ended question, keeping the last few turns of history.
func (s *Service) Chat(ctx context.Context, message string, history []Message, lang string) string {
	ctx = WithCallSite(ctx, SiteChat)
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	msgs := make([]Message, 0, len(history)+1)
	for _, m := range history {
		if m.Role != RoleAssistant {
			m.Role = RoleUser
		}
		msgs = append(msgs, m)
	}
	msgs = append(msgs, Message{Role: RoleUser, Content: message})

	prompt := Prompt{
		System: "You are a friendly tutor for government exam aspirants. Answer concisely and accurately. " +
			respondIn(lang),
		Messages: msgs,
	}
	if text, ok := s.invoker.InvokePrompt(ctx, prompt, ChatAttempts); ok {
		return text
	}
	return fallbackText(SiteChat, lang)
}

// Hint gives a nudge for q without revealing the answer.
func (s *Service) Hint(ctx context.Context, q domain.Question, lang string) string {
	ctx = WithCallSite(ctx, SiteHint)
	task := fmt.Sprintf("Question: %s\nOptions:\n%s\nGive one short hint (max two sentences) that helps solve it. Do not reveal the correct option.",
		q.Prompt.In(lang), formatOptions(q, lang))
	system := "You are an exam coach giving hints. " + respondIn(lang)
	if text, ok := s.invoker.Invoke(ctx, task, system, HintAttempts); ok {
		return text
	}
	return fallbackText(SiteHint, lang)
}

// Explain describes why the correct option is right. selected may be empty (timeout).
// When no provider answers, the question's stored explanation is preferred over the generic text.
func (s *Service) Explain(ctx context.Context, q domain.Question, selected, lang string) string {
	ctx = WithCallSite(ctx, SiteExplain)
	task := fmt.Sprintf("Question: %s\nOptions:\n%s\nCorrect option: %s\n",
		q.Prompt.In(lang), formatOptions(q, lang), q.CorrectOptionID)
	if selected != "" && selected != q.CorrectOptionID {
		task += fmt.Sprintf("The student chose %s. Explain the mistake briefly.\n", selected)
	}
	task += "Explain the answer in at most four sentences."
	system := "You are an exam coach explaining answers. " + respondIn(lang)
	if text, ok := s.invoker.Invoke(ctx, task, system, ExplainAttempts); ok {
		return text
	}
	if stored := q.Explanation.In(lang); stored != "" {
		return stored
	}
	return fallbackText(SiteExplain, lang)
}

// StudyAsk generates a four-option practice question on topic.
func (s *Service) StudyAsk(ctx context.Context, topic, lang string) StudyQuestion {
	ctx = WithCallSite(ctx, SiteStudyAsk)
	if strings.TrimSpace(topic) == "" {
		topic = "general studies"
	}
	task := fmt.Sprintf("Create one multiple-choice question about %q for a competitive exam. "+
		`Reply with only a JSON object: {"question": string, "options": [4 strings], "correctAnswer": string (one of the options), "subject": string, "difficulty": "easy"|"medium"|"hard"}.`,
		topic)
	system := "You write exam practice questions. " + respondIn(lang)
	if text, ok := s.invoker.Invoke(ctx, task, system, StudyAskAttempts); ok {
		q, err := parseStudyQuestion(text)
		if err == nil {
			return q
		}
		fallbacksTotal.WithLabelValues(SiteStudyAsk).Inc()
	}
	return fallbackStudyQuestion(lang)
}

// StudyVerify gives feedback on an answer. It never blocks the study loop on AI availability.
func (s *Service) StudyVerify(ctx context.Context, question, userAnswer, lang string) string {
	ctx = WithCallSite(ctx, SiteStudyVerify)
	task := fmt.Sprintf("Question: %s\nStudent answer: %s\nSay whether it is correct and give one line of feedback.", question, userAnswer)
	system := "You are an encouraging exam coach. " + respondIn(lang)
	if text, ok := s.invoker.Invoke(ctx, task, system, StudyVerifyAttempts); ok {
		return text
	}
	return fallbackText(SiteStudyVerify, lang)
}

func formatOptions(q domain.Question, lang string) string {
	var b strings.Builder
	for _, opt := range q.Options {
		fmt.Fprintf(&b, "%s. %s\n", opt.ID, opt.Text.In(lang))
	}
	return b.String()
}

func respondIn(lang string) string {
	name, ok := languageNames[lang]
	if !ok {
		name = languageNames[domain.DefaultLanguage]
	}
	return "Respond in " + name + "."
}

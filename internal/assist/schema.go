package assist

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const studyQuestionSchemaURL = "schema://study-question.json"

var studyQuestionSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"question": map[string]any{"type": "string", "minLength": 1},
		"options": map[string]any{
			"type":     "array",
			"items":    map[string]any{"type": "string", "minLength": 1},
			"minItems": 4,
			"maxItems": 4,
		},
		"correctAnswer": map[string]any{"type": "string", "minLength": 1},
		"subject":       map[string]any{"type": "string"},
		"difficulty":    map[string]any{"type": "string", "enum": []any{"easy", "medium", "hard"}},
	},
	"required": []any{"question", "options", "correctAnswer"},
}

var (
	compileOnce     sync.Once
	compiledStudy   *jsonschema.Schema
	compileStudyErr error
)

func studySchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		// The compiler wants a plain decoded JSON value, so round-trip the Go literal.
		raw, err := json.Marshal(studyQuestionSchema)
		if err != nil {
			compileStudyErr = err
			return
		}
		var doc any
		if err := json.Unmarshal(raw, &doc); err != nil {
			compileStudyErr = err
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(studyQuestionSchemaURL, doc); err != nil {
			compileStudyErr = fmt.Errorf("add resource: %w", err)
			return
		}
		compiledStudy, compileStudyErr = c.Compile(studyQuestionSchemaURL)
	})
	return compiledStudy, compileStudyErr
}

// parseStudyQuestion extracts and validates the JSON object a provider produced.
func parseStudyQuestion(text string) (StudyQuestion, error) {
	raw := extractJSONObject(text)
	var doc any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return StudyQuestion{}, fmt.Errorf("invalid JSON: %w", err)
	}
	schema, err := studySchema()
	if err != nil {
		return StudyQuestion{}, fmt.Errorf("compile schema: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return StudyQuestion{}, fmt.Errorf("schema validation failed: %w", err)
	}
	var q StudyQuestion
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return StudyQuestion{}, err
	}
	found := false
	for _, opt := range q.Options {
		if opt == q.CorrectAnswer {
			found = true
			break
		}
	}
	if !found {
		return StudyQuestion{}, fmt.Errorf("correct answer %q is not one of the options", q.CorrectAnswer)
	}
	return q, nil
}

// extractJSONObject trims markdown fences and prose around the first JSON object.
func extractJSONObject(text string) string {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return strings.TrimSpace(text)
	}
	return text[start : end+1]
}

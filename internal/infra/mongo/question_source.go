package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"exam-arena-service/internal/domain"
)

// QuestionCollection is the collection holding question documents keyed by question id.
const QuestionCollection = "questions"

// caseInsensitive makes $in comparisons on exam type and subject ignore case.
var caseInsensitive = &options.Collation{Locale: "en", Strength: 2}

// QuestionSource samples questions server-side with $match and $sample. It implements
// bank.Source and doubles as a catalog loader for the Redis cache.
type QuestionSource struct {
	col *mongo.Collection
}

func NewQuestionSource(db *mongo.Database) *QuestionSource {
	return &QuestionSource{col: db.Collection(QuestionCollection)}
}

func (s *QuestionSource) Sample(ctx context.Context, filter domain.QuestionFilter, count int, exclude map[string]bool) ([]domain.Question, error) {
	if count <= 0 {
		return nil, nil
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: matchStage(filter, exclude)}},
		{{Key: "$sample", Value: bson.M{"size": count}}},
	}
	cur, err := s.col.Aggregate(ctx, pipeline, options.Aggregate().SetCollation(caseInsensitive))
	if err != nil {
		return nil, fmt.Errorf("sample questions: %w", err)
	}
	defer cur.Close(ctx)

	var questions []domain.Question
	if err := cur.All(ctx, &questions); err != nil {
		return nil, fmt.Errorf("decode questions: %w", err)
	}
	return questions, nil
}

// LoadQuestions returns the whole catalog ordered by id.
func (s *QuestionSource) LoadQuestions(ctx context.Context) ([]domain.Question, error) {
	cur, err := s.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer cur.Close(ctx)

	var questions []domain.Question
	for cur.Next(ctx) {
		var q domain.Question
		if err := cur.Decode(&q); err != nil {
			return nil, fmt.Errorf("decode question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, cur.Err()
}

// SaveQuestions upserts questions by id.
func (s *QuestionSource) SaveQuestions(ctx context.Context, questions []domain.Question) error {
	if len(questions) == 0 {
		return nil
	}
	models := make([]mongo.WriteModel, 0, len(questions))
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return err
		}
		models = append(models, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": q.ID}).
			SetReplacement(q).
			SetUpsert(true))
	}
	if _, err := s.col.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("save questions: %w", err)
	}
	return nil
}

func matchStage(filter domain.QuestionFilter, exclude map[string]bool) bson.M {
	match := bson.M{}
	if len(filter.ExamTypes) > 0 {
		match["examType"] = bson.M{"$in": filter.ExamTypes}
	}
	if len(filter.Subjects) > 0 {
		match["subject"] = bson.M{"$in": filter.Subjects}
	}
	if filter.Difficulty != "" {
		match["difficulty"] = string(filter.Difficulty)
	}
	if len(exclude) > 0 {
		ids := make([]string, 0, len(exclude))
		for id := range exclude {
			ids = append(ids, id)
		}
		match["_id"] = bson.M{"$nin": ids}
	}
	return match
}

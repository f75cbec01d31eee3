package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"exam-arena-service/internal/config"
	"exam-arena-service/internal/domain"
	"exam-arena-service/internal/infra/memory"
	mongostore "exam-arena-service/internal/infra/mongo"
	pgstore "exam-arena-service/internal/infra/postgres"
	redisstore "exam-arena-service/internal/infra/redis"
)

// NewSeedCmd loads questions into every configured catalog store.
func NewSeedCmd(configPath *string) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load questions into Postgres and Mongo",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			questions, err := readQuestions(file)
			if err != nil {
				return err
			}
			return seed(cmd.Context(), cfg, questions)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "JSON array of questions (defaults to the embedded bank)")
	return cmd
}

func readQuestions(path string) ([]domain.Question, error) {
	if path == "" {
		return memory.SeedQuestions()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var questions []domain.Question
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for _, q := range questions {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}
	return questions, nil
}

func seed(ctx context.Context, cfg config.Config, questions []domain.Question) error {
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}
	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()
	if be.pool == nil && be.mongoDB == nil {
		return fmt.Errorf("seed: neither postgres nor mongo is configured")
	}

	g, gctx := errgroup.WithContext(ctx)
	if be.pool != nil {
		g.Go(func() error {
			return pgstore.NewQuestionLoader(be.pool).SaveQuestions(gctx, questions)
		})
	}
	if be.mongoDB != nil {
		g.Go(func() error {
			return mongostore.NewQuestionSource(be.mongoDB).SaveQuestions(gctx, questions)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if be.redis != nil {
		if err := redisstore.NewQuestionRepository(be.redis, nil, 0).Invalidate(ctx); err != nil {
			log.Printf("seed: invalidate cached catalog: %v", err)
		}
	}
	log.Printf("seeded %d questions", len(questions))
	return nil
}

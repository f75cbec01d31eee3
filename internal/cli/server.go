package cli

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"exam-arena-service/internal/app"
	"exam-arena-service/internal/assist"
	"exam-arena-service/internal/auth"
	"exam-arena-service/internal/bank"
	"exam-arena-service/internal/config"
	"exam-arena-service/internal/infra/amqp"
	"exam-arena-service/internal/infra/memory"
	mongostore "exam-arena-service/internal/infra/mongo"
	pgstore "exam-arena-service/internal/infra/postgres"
	redisstore "exam-arena-service/internal/infra/redis"
	"exam-arena-service/internal/infra/tigerbeetle"
	"exam-arena-service/internal/ledger"
	transport "exam-arena-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the exam arena server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	be, err := openBackends(ctx, cfg)
	if err != nil {
		return err
	}
	defer be.Close()

	questions, err := buildQuestionBank(be, cfg)
	if err != nil {
		return err
	}

	publisher, err := amqp.NewPublisher(cfg.AMQP.URI, cfg.AMQP.Exchange)
	if err != nil {
		return err
	}
	defer publisher.Close()

	ledgerOpts := []ledger.Option{ledger.WithPublisher(publisher)}
	if cfg.Quiz.MaxMultiplier > 0 {
		ledgerOpts = append(ledgerOpts, ledger.WithMaxMultiplier(cfg.Quiz.MaxMultiplier))
	}
	if be.ledger != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithJournal(tigerbeetle.NewJournal(be.ledger)))
	}
	ledgerSvc := ledger.New(buildProgressStore(be), ledgerOpts...)

	invoker := assist.NewInvoker(assist.NewProviders(ctx, cfg.Assist.Providers), assist.InvokerConfig{
		AttemptTimeout: config.TTLDuration(cfg.Assist.AttemptTimeout, assist.DefaultAttemptTimeout),
		Backoff:        config.TTLDuration(cfg.Assist.Backoff, assist.DefaultBackoff),
	})
	log.Printf("assist providers: %v", invoker.Providers())
	assistSvc := assist.NewService(invoker)

	var store app.SessionRepository
	if be.redis != nil {
		store = redisstore.NewSessionStore(be.redis, config.TTLDuration(cfg.Redis.TTL, 10*time.Minute))
	} else {
		store = memory.NewSessionStore()
	}

	quizOpts := []app.Option{app.WithLinger(config.TTLDuration(cfg.Quiz.Linger, 2*time.Minute))}
	if cfg.Quiz.Multiplier > 0 {
		quizOpts = append(quizOpts, app.WithMultiplier(cfg.Quiz.Multiplier))
	}
	service := app.NewQuizService(store, questions, ledgerSvc, assistSvc, quizOpts...)

	router := transport.NewRouter(transport.RouterConfig{
		Quiz:           service,
		Bank:           questions,
		Assist:         assistSvc,
		Ledger:         ledgerSvc,
		Auth:           auth.New(cfg.Auth.JWTSecret),
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Health:         be.Ping,
	})
	if cfg.Auth.JWTSecret == "" {
		log.Printf("auth: no jwt secret configured, trusting %s header", auth.UserHeader)
	}

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 150 * time.Second,
	}

	go func() {
		log.Printf("starting exam arena service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// buildQuestionBank picks the catalog source: Mongo or Postgres when configured, else the
// embedded seed. Redis caches the catalog when present; Mongo without Redis samples server-side.
func buildQuestionBank(be *backends, cfg config.Config) (*bank.Bank, error) {
	ttl := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)

	var loader memory.QuestionLoader
	switch {
	case be.mongoDB != nil:
		src := mongostore.NewQuestionSource(be.mongoDB)
		if be.redis == nil {
			return bank.New(src), nil
		}
		loader = src
	case be.pool != nil:
		loader = pgstore.NewQuestionLoader(be.pool)
	default:
		seed, err := memory.SeedQuestions()
		if err != nil {
			return nil, err
		}
		loader = memory.NewStaticLoader(seed)
	}

	if be.redis != nil {
		return bank.New(redisstore.NewQuestionRepository(be.redis, loader, ttl)), nil
	}
	return bank.New(memory.NewQuestionRepository(loader, ttl)), nil
}

func buildProgressStore(be *backends) ledger.Store {
	switch {
	case be.pool != nil:
		return pgstore.NewProgressStore(be.pool)
	case be.redis != nil:
		return redisstore.NewProgressStore(be.redis)
	default:
		return memory.NewProgressStore()
	}
}

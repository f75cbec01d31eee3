package cli

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"exam-arena-service/internal/config"
	mongostore "exam-arena-service/internal/infra/mongo"
	"exam-arena-service/internal/infra/tigerbeetle"
)

// backends holds the optional external connections named in the config. A nil field means the
// backend is not configured and its in-memory counterpart is used.
type backends struct {
	redis   *redis.Client
	pool    *pgxpool.Pool
	mongo   *mongodriver.Client
	mongoDB *mongodriver.Database
	ledger  tigerbeetleClient
	closers []func()
}

type tigerbeetleClient interface {
	tigerbeetle.Client
	Close()
}

func openBackends(ctx context.Context, cfg config.Config) (*backends, error) {
	b := &backends{}

	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = b.redis.Close() })
	}

	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.pool = pool
		b.closers = append(b.closers, pool.Close)
	}

	if cfg.Mongo.URI != "" {
		client, err := mongostore.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			b.Close()
			return nil, err
		}
		dbName := cfg.Mongo.Database
		if dbName == "" {
			dbName = "exam_arena"
		}
		b.mongo = client
		b.mongoDB = client.Database(dbName)
		b.closers = append(b.closers, func() { _ = client.Disconnect(context.Background()) })
	}

	if len(cfg.TigerBeetle.Addresses) > 0 {
		client, err := tigerbeetle.Dial(cfg.TigerBeetle.ClusterID, cfg.TigerBeetle.Addresses)
		if err != nil {
			b.Close()
			return nil, err
		}
		b.ledger = client
		b.closers = append(b.closers, client.Close)
	}

	log.Printf("backends: redis=%t postgres=%t mongo=%t tigerbeetle=%t",
		b.redis != nil, b.pool != nil, b.mongo != nil, b.ledger != nil)
	return b, nil
}

// Ping checks every configured backend.
func (b *backends) Ping(ctx context.Context) error {
	if b.redis != nil {
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if b.pool != nil {
		if err := b.pool.Ping(ctx); err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
	}
	if b.mongo != nil {
		if err := b.mongo.Ping(ctx, nil); err != nil {
			return fmt.Errorf("mongo: %w", err)
		}
	}
	return nil
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
	b.closers = nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"exam-arena-service/internal/domain"
)

// ErrContention is returned when an update kept losing optimistic transactions.
var ErrContention = errors.New("progress update contention")

const defaultUpdateRetries = 16

// ProgressStore keeps progression records as JSON strings under progress:{userID}.
// Update uses WATCH/MULTI so concurrent writers for a user serialize optimistically.
type ProgressStore struct {
	client  *redis.Client
	retries int
}

func NewProgressStore(client *redis.Client) *ProgressStore {
	return &ProgressStore{client: client, retries: defaultUpdateRetries}
}

func (s *ProgressStore) Get(ctx context.Context, userID string) (domain.ProgressionRecord, error) {
	return s.load(ctx, s.client, userID)
}

func (s *ProgressStore) Update(ctx context.Context, userID string, fn func(*domain.ProgressionRecord) error) (domain.ProgressionRecord, error) {
	key := s.key(userID)
	for attempt := 0; attempt < s.retries; attempt++ {
		var out domain.ProgressionRecord
		err := s.client.Watch(ctx, func(tx *redis.Tx) error {
			rec, err := s.load(ctx, tx, userID)
			if err != nil {
				return err
			}
			if err := fn(&rec); err != nil {
				return err
			}
			data, err := json.Marshal(rec)
			if err != nil {
				return fmt.Errorf("encode progress: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, data, 0)
				return nil
			})
			out = rec
			return err
		}, key)
		if err == nil {
			return out, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return domain.ProgressionRecord{}, err
	}
	return domain.ProgressionRecord{}, ErrContention
}

func (s *ProgressStore) load(ctx context.Context, c redis.Cmdable, userID string) (domain.ProgressionRecord, error) {
	raw, err := c.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.NewProgressionRecord(userID), nil
	}
	if err != nil {
		return domain.ProgressionRecord{}, fmt.Errorf("get progress %s: %w", userID, err)
	}
	rec := domain.NewProgressionRecord(userID)
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.ProgressionRecord{}, fmt.Errorf("decode progress %s: %w", userID, err)
	}
	if rec.UnlockedBadges == nil {
		rec.UnlockedBadges = make(map[string]bool)
	}
	if rec.UnlockedIslands == nil {
		rec.UnlockedIslands = make(map[string]bool)
	}
	rec.UserID = userID
	return rec, nil
}

func (s *ProgressStore) key(userID string) string {
	return "progress:" + userID
}

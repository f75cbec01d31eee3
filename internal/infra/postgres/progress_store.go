package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"exam-arena-service/internal/domain"
)

// ProgressStore keeps progression records in the progression table. Update locks the
// user's row for the duration of the callback.
type ProgressStore struct {
	pool *pgxpool.Pool
}

func NewProgressStore(pool *pgxpool.Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

func (s *ProgressStore) Get(ctx context.Context, userID string) (domain.ProgressionRecord, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM progression WHERE user_id=$1`, userID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NewProgressionRecord(userID), nil
	}
	if err != nil {
		return domain.ProgressionRecord{}, fmt.Errorf("get progress %s: %w", userID, err)
	}
	return decodeRecord(userID, raw)
}

func (s *ProgressStore) Update(ctx context.Context, userID string, fn func(*domain.ProgressionRecord) error) (domain.ProgressionRecord, error) {
	var out domain.ProgressionRecord
	err := s.pool.BeginFunc(ctx, func(tx pgx.Tx) error {
		fresh, err := json.Marshal(domain.NewProgressionRecord(userID))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO progression (user_id, xp, data) VALUES ($1, 0, $2) ON CONFLICT (user_id) DO NOTHING`,
			userID, fresh); err != nil {
			return fmt.Errorf("ensure progress %s: %w", userID, err)
		}

		var raw []byte
		if err := tx.QueryRow(ctx, `SELECT data FROM progression WHERE user_id=$1 FOR UPDATE`, userID).Scan(&raw); err != nil {
			return fmt.Errorf("lock progress %s: %w", userID, err)
		}
		rec, err := decodeRecord(userID, raw)
		if err != nil {
			return err
		}
		if err := fn(&rec); err != nil {
			return err
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("marshal progress %s: %w", userID, err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE progression SET xp=$2, data=$3, updated_at=now() WHERE user_id=$1`,
			userID, rec.XP, data); err != nil {
			return fmt.Errorf("write progress %s: %w", userID, err)
		}
		out = rec
		return nil
	})
	if err != nil {
		return domain.ProgressionRecord{}, err
	}
	return out, nil
}

func decodeRecord(userID string, raw []byte) (domain.ProgressionRecord, error) {
	rec := domain.NewProgressionRecord(userID)
	if err := json.Unmarshal(raw, &rec); err != nil {
		return domain.ProgressionRecord{}, fmt.Errorf("unmarshal progress %s: %w", userID, err)
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

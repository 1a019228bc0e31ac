// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"chat-game-bot/internal/model"
)

// ScoreRepository persists terminal game outcomes.
type ScoreRepository struct {
	pool *pgxpool.Pool
}

// NewScoreRepository creates a new ScoreRepository instance.
func NewScoreRepository(pool *pgxpool.Pool) *ScoreRepository {
	return &ScoreRepository{pool: pool}
}

// Migrate creates the scores table if it does not exist.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS scores (
			id BIGSERIAL PRIMARY KEY,
			game VARCHAR(50) NOT NULL,
			user_id BIGINT NOT NULL,
			username VARCHAR(255) NOT NULL,
			score BIGINT NOT NULL,
			outcome VARCHAR(20) NOT NULL,
			channel_id BIGINT NOT NULL,
			played_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_scores_game_score ON scores(game, score DESC);
		CREATE INDEX IF NOT EXISTS idx_scores_user ON scores(user_id, played_at DESC);
	`)
	if err != nil {
		return fmt.Errorf("failed to create scores table: %w", err)
	}
	return nil
}

// Record inserts one score entry.
func (r *ScoreRepository) Record(ctx context.Context, entry model.ScoreEntry) error {
	const query = `
		INSERT INTO scores (game, user_id, username, score, outcome, channel_id, played_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.pool.Exec(ctx, query,
		entry.Game,
		entry.UserID,
		entry.Username,
		entry.Score,
		entry.Outcome,
		entry.ChannelID,
		entry.PlayedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record score: %w", err)
	}
	return nil
}

// Top retrieves the highest scores for a game, best first.
func (r *ScoreRepository) Top(ctx context.Context, game string, limit int) ([]model.ScoreEntry, error) {
	const query = `
		SELECT id, game, user_id, username, score, outcome, channel_id, played_at
		FROM scores
		WHERE game = $1
		ORDER BY score DESC, played_at ASC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, game, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top scores: %w", err)
	}
	defer rows.Close()

	var entries []model.ScoreEntry
	for rows.Next() {
		var e model.ScoreEntry
		err := rows.Scan(
			&e.ID,
			&e.Game,
			&e.UserID,
			&e.Username,
			&e.Score,
			&e.Outcome,
			&e.ChannelID,
			&e.PlayedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}

	return entries, nil
}

// UserBest retrieves a user's best score for a game, or nil if the user
// has none recorded.
func (r *ScoreRepository) UserBest(ctx context.Context, game string, userID int64) (*model.ScoreEntry, error) {
	const query = `
		SELECT id, game, user_id, username, score, outcome, channel_id, played_at
		FROM scores
		WHERE game = $1 AND user_id = $2
		ORDER BY score DESC, played_at ASC
		LIMIT 1
	`

	var e model.ScoreEntry
	err := r.pool.QueryRow(ctx, query, game, userID).Scan(
		&e.ID,
		&e.Game,
		&e.UserID,
		&e.Username,
		&e.Score,
		&e.Outcome,
		&e.ChannelID,
		&e.PlayedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user best: %w", err)
	}
	return &e, nil
}

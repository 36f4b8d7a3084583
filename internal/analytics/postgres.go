/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package analytics

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Seednode/yeargame/internal/game"
)

const schema = `CREATE TABLE IF NOT EXISTS game_summaries (
	game_id    TEXT PRIMARY KEY,
	created_at TIMESTAMPTZ NOT NULL,
	ended_at   TIMESTAMPTZ NOT NULL,
	rounds     INTEGER NOT NULL,
	winner     TEXT NOT NULL,
	players    JSONB NOT NULL
)`

const insertSummary = `INSERT INTO game_summaries (game_id, created_at, ended_at, rounds, winner, players)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (game_id) DO NOTHING`

// PostgresSink stores one row per finished game.
type PostgresSink struct {
	db *pgxpool.Pool
}

func NewPostgresSink(ctx context.Context, dsn string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to db: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresSink{db: pool}, nil
}

func (s *PostgresSink) Record(ctx context.Context, sum game.Summary) error {
	players, err := json.Marshal(sum.Players)
	if err != nil {
		return fmt.Errorf("marshal players: %w", err)
	}

	_, err = s.db.Exec(ctx, insertSummary,
		sum.GameID, sum.CreatedAt, sum.EndedAt, sum.Rounds, sum.Winner, players)
	if err != nil {
		return fmt.Errorf("insert summary %s: %w", sum.GameID, err)
	}

	return nil
}

func (s *PostgresSink) Close() {
	s.db.Close()
}

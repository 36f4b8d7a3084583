/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package analytics receives end-of-game summaries.
package analytics

import (
	"context"
	"errors"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/yeargame/internal/game"
)

// LogSink writes each summary as a structured log line.
type LogSink struct {
	Logger *zerolog.Logger
}

func (s LogSink) Record(ctx context.Context, sum game.Summary) error {
	logger := s.Logger
	if logger == nil {
		logger = &log.Logger
	}

	players := zerolog.Arr()
	for _, p := range sum.Players {
		players.Dict(zerolog.Dict().
			Str("name", p.Name).
			Int("score", p.Score).
			Int("best_streak", p.BestStreak).
			Bool("late_join", p.LateJoin))
	}

	logger.Info().
		Str("game_id", sum.GameID).
		Int("rounds", sum.Rounds).
		Str("winner", sum.Winner).
		Dur("duration", sum.EndedAt.Sub(sum.CreatedAt)).
		Array("players", players).
		Msg("game summary")

	return nil
}

// Multi sends every summary to each sink in turn and joins their errors.
type Multi []game.Sink

func (m Multi) Record(ctx context.Context, sum game.Summary) error {
	var errs []error

	for _, s := range m {
		if err := s.Record(ctx, sum); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

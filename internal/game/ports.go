/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"time"
)

// Song is one validated playlist entry.
type Song struct {
	URI     string `json:"uri" yaml:"uri"`
	Year    int    `json:"year" yaml:"year"`
	FunFact string `json:"fun_fact,omitempty" yaml:"fun_fact"`
	Title   string `json:"title,omitempty" yaml:"title"`
	Artist  string `json:"artist,omitempty" yaml:"artist"`
	Artwork string `json:"artwork,omitempty" yaml:"artwork"`
}

// Metadata is what the speaker reports about the track it is playing.
type Metadata struct {
	Artist  string
	Title   string
	Artwork string
}

// Playback drives the shared speaker.
//
// Play should wrap ErrTargetUnavailable when the speaker cannot be reached;
// any other error is treated as a problem with that one song.
type Playback interface {
	Play(ctx context.Context, uri string) error
	NowPlaying(ctx context.Context) (Metadata, error)
	Available(ctx context.Context) bool
}

// PlayerSummary is one row of an end-of-game summary.
type PlayerSummary struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	BestStreak int    `json:"best_streak"`
	LateJoin   bool   `json:"late_join,omitempty"`
}

// Summary is sent once to the analytics sink when a game ends.
type Summary struct {
	GameID    string          `json:"game_id"`
	CreatedAt time.Time       `json:"created_at"`
	EndedAt   time.Time       `json:"ended_at"`
	Rounds    int             `json:"rounds"`
	Winner    string          `json:"winner,omitempty"`
	Players   []PlayerSummary `json:"players"`
}

// Sink receives end-of-game summaries. Failures are logged and otherwise
// ignored.
type Sink interface {
	Record(ctx context.Context, s Summary) error
}

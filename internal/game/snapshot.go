/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "github.com/Seednode/yeargame/internal/scoring"

// Snapshot is the phase-tagged view of a session pushed to every client.
type Snapshot struct {
	Type        string       `json:"type"` // "snapshot"
	GameID      string       `json:"game_id"`
	Phase       Phase        `json:"phase"`
	PlayerCount int          `json:"player_count"`
	Players     []PlayerView `json:"players"`

	JoinURL     string      `json:"join_url,omitempty"`     // LOBBY
	Song        *SongView   `json:"song,omitempty"`         // PLAYING, REVEAL
	Round       int         `json:"round,omitempty"`        // PLAYING, REVEAL, PAUSED, END
	TotalRounds int         `json:"total_rounds,omitempty"` // PLAYING, REVEAL, PAUSED, END
	Deadline    int64       `json:"deadline,omitempty"`     // epoch millis, PLAYING
	PauseReason PauseReason `json:"pause_reason,omitempty"` // PAUSED
	PausedFrom  Phase       `json:"paused_from,omitempty"`  // PAUSED
	Winner      string      `json:"winner,omitempty"`       // END
}

// SongView is the current song. Year and fun fact stay empty until REVEAL.
type SongView struct {
	Title   string `json:"title,omitempty"`
	Artist  string `json:"artist,omitempty"`
	Artwork string `json:"artwork,omitempty"`
	Year    int    `json:"year,omitempty"`
	FunFact string `json:"fun_fact,omitempty"`
}

// PlayerView is one player's public state.
type PlayerView struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	Streak     int    `json:"streak"`
	BestStreak int    `json:"best_streak"`
	Connected  bool   `json:"connected"`
	IsAdmin    bool   `json:"is_admin"`
	LateJoin   bool   `json:"late_join,omitempty"`

	// PLAYING: set for round participants only.
	Submitted *bool `json:"submitted,omitempty"`

	// REVEAL
	Guess      *int             `json:"guess,omitempty"`
	StolenFrom string           `json:"stolen_from,omitempty"`
	Missed     bool             `json:"missed,omitempty"`
	Outcome    *scoring.Outcome `json:"outcome,omitempty"`
}

func (s *Session) snapshot() Snapshot {
	snap := s.view(s.phase)
	if s.phase == PhasePaused {
		snap = s.view(s.pausedFrom)
		snap.Phase = PhasePaused
		snap.PauseReason = s.pauseReason
		snap.PausedFrom = s.pausedFrom
		snap.JoinURL = ""
	}
	return snap
}

func (s *Session) view(phase Phase) Snapshot {
	snap := Snapshot{
		Type:        "snapshot",
		GameID:      s.ID,
		Phase:       phase,
		PlayerCount: s.players.Len(),
		Players:     make([]PlayerView, 0, s.players.Len()),
	}

	for _, p := range s.players.All() {
		snap.Players = append(snap.Players, playerView(p, phase))
	}

	switch phase {
	case PhaseLobby:
		snap.JoinURL = s.JoinURL
	case PhasePlaying:
		snap.Song = s.songView(false)
		snap.Round = s.round
		snap.TotalRounds = s.totalRounds
		snap.Deadline = s.deadline.UnixMilli()
	case PhaseReveal:
		snap.Song = s.songView(true)
		snap.Round = s.round
		snap.TotalRounds = s.totalRounds
	case PhaseEnd:
		snap.Round = s.round
		snap.TotalRounds = s.totalRounds
		snap.Winner = s.winner
	}

	return snap
}

func (s *Session) songView(reveal bool) *SongView {
	if s.song == nil {
		return nil
	}

	v := &SongView{
		Title:   s.meta.Title,
		Artist:  s.meta.Artist,
		Artwork: s.meta.Artwork,
	}
	if reveal {
		v.Year = s.song.Year
		v.FunFact = s.song.FunFact
	}

	return v
}

func playerView(p *Player, phase Phase) PlayerView {
	v := PlayerView{
		Name:       p.Name,
		Score:      p.Score,
		Streak:     p.Streak,
		BestStreak: p.BestStreak,
		Connected:  p.Connected,
		IsAdmin:    p.IsAdmin,
		LateJoin:   p.LateJoin,
	}

	if !p.InRound {
		return v
	}

	switch phase {
	case PhasePlaying:
		submitted := p.Submitted
		v.Submitted = &submitted
	case PhaseReveal:
		if p.Submitted {
			guess := p.Guess
			v.Guess = &guess
		}
		v.StolenFrom = p.StolenFrom
		v.Missed = p.Missed
		v.Outcome = p.Outcome
	}

	return v
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/Seednode/yeargame/internal/scoring"
)

// Session is one running game. All of its methods run on the engine's actor
// goroutine; nothing here is safe to call from anywhere else.
type Session struct {
	e *Engine

	ID        string
	JoinURL   string
	CreatedAt time.Time

	phase       Phase
	pausedFrom  Phase
	pauseReason PauseReason

	pool        []Song
	round       int
	totalRounds int

	song         *Song
	meta         Metadata
	roundStarted time.Time
	deadline     time.Time

	// starting is set while a playback attempt is in flight; startGen
	// identifies that attempt so stale results can be dropped.
	starting    bool
	startGen    uint64
	resumeStart bool

	players *Registry
	timer   *RoundTimer
	grace   map[string]clockwork.Timer

	winner  string
	endedAt time.Time
}

func newSession(e *Engine, songs []Song) *Session {
	id := uuid.New().String()

	total := len(songs)
	if e.cfg.Rounds > 0 && e.cfg.Rounds < total {
		total = e.cfg.Rounds
	}

	return &Session{
		e:           e,
		ID:          id,
		JoinURL:     joinURL(e.cfg.JoinURL, id),
		CreatedAt:   e.clock.Now(),
		phase:       PhaseLobby,
		pool:        append([]Song(nil), songs...),
		totalRounds: total,
		players:     newRegistry(),
		timer:       newRoundTimer(e.clock),
		grace:       make(map[string]clockwork.Timer),
	}
}

func (s *Session) changed() {
	s.e.dirty = true
}

func (s *Session) current() bool {
	return s.e.session == s
}

// effectivePhase is the phase a paused session will return to.
func (s *Session) effectivePhase() Phase {
	if s.phase == PhasePaused {
		return s.pausedFrom
	}
	return s.phase
}

func (s *Session) join(name string) (Joined, error) {
	name, err := normalizeName(name)
	if err != nil {
		return Joined{}, err
	}

	if s.phase == PhaseEnd {
		return Joined{}, ErrGameEnded
	}

	if p := s.players.Get(name); p != nil {
		if p.Connected {
			return Joined{}, ErrNameTaken
		}

		s.reconnect(p)

		return Joined{GameID: s.ID, Name: p.Name, IsAdmin: p.IsAdmin, LateJoin: p.LateJoin, Reconnected: true}, nil
	}

	if s.players.Len() >= s.e.cfg.MaxPlayers {
		return Joined{}, ErrGameFull
	}

	late := s.effectivePhase() != PhaseLobby
	p := s.players.Add(name, late)
	s.changed()

	log.Info().
		Str("game_id", s.ID).
		Str("player", p.Name).
		Bool("admin", p.IsAdmin).
		Bool("late_join", late).
		Msg("player joined")

	s.adminReturned()

	return Joined{GameID: s.ID, Name: p.Name, IsAdmin: p.IsAdmin, LateJoin: late}, nil
}

func (s *Session) reconnect(p *Player) {
	p.Connected = true
	p.DisconnectedAt = time.Time{}
	p.graceGen++
	s.stopGrace(p.Name)
	s.changed()

	log.Info().Str("game_id", s.ID).Str("player", p.Name).Msg("player reconnected")

	if p.IsAdmin {
		s.adminReturned()
	}
}

func (s *Session) disconnect(name string) {
	p := s.players.Get(name)
	if p == nil || !p.Connected {
		return
	}

	p.Connected = false
	p.DisconnectedAt = s.e.clock.Now()
	p.graceGen++
	s.changed()

	gen := p.graceGen
	key := nameKey(p.Name)
	s.stopGrace(p.Name)
	s.grace[key] = s.e.clock.AfterFunc(s.e.cfg.GracePeriod, func() {
		s.e.post(func() {
			s.expireGrace(key, gen)
		})
	})

	log.Info().
		Str("game_id", s.ID).
		Str("player", p.Name).
		Dur("grace", s.e.cfg.GracePeriod).
		Msg("player disconnected")

	if p.IsAdmin && (s.phase == PhasePlaying || s.phase == PhaseReveal) {
		s.pause(PauseAdminDisconnected)
	}
}

func (s *Session) expireGrace(key string, gen uint64) {
	if !s.current() {
		return
	}

	p := s.players.Get(key)
	if p == nil || p.Connected || p.graceGen != gen {
		return
	}

	delete(s.grace, key)
	promoted := s.players.Remove(p.Name)
	s.changed()

	log.Info().Str("game_id", s.ID).Str("player", p.Name).Msg("player removed after grace period")

	if promoted != nil {
		log.Info().Str("game_id", s.ID).Str("player", promoted.Name).Msg("admin promoted")
		s.adminReturned()
	}
}

func (s *Session) stopGrace(name string) {
	key := nameKey(name)
	if t, ok := s.grace[key]; ok {
		t.Stop()
		delete(s.grace, key)
	}
}

// adminReturned lifts an admin_disconnected pause once a connected admin exists.
func (s *Session) adminReturned() {
	if s.phase != PhasePaused || s.pauseReason != PauseAdminDisconnected {
		return
	}

	admin := s.players.Admin()
	if admin == nil || !admin.Connected {
		return
	}

	if err := s.resume(); err != nil {
		log.Warn().Err(err).Str("game_id", s.ID).Msg("failed to resume after admin returned")
	}
}

// participant checks the shared preconditions of submit and steal.
func (s *Session) participant(name string) (*Player, error) {
	p := s.players.Get(name)
	if p == nil {
		return nil, ErrNotJoined
	}

	if s.phase != PhasePlaying || !s.e.clock.Now().Before(s.deadline) {
		return nil, ErrRoundExpired
	}

	if !p.InRound {
		return nil, ErrWaitNextRound
	}

	if p.Submitted {
		return nil, ErrAlreadySubmitted
	}

	return p, nil
}

func (s *Session) submit(name string, year int, bet bool) error {
	p, err := s.participant(name)
	if err != nil {
		return err
	}

	if year < s.e.cfg.YearMin || year > s.e.cfg.YearMax {
		return ErrGuessInvalid
	}

	p.Guess = year
	p.Bet = bet
	p.Submitted = true
	p.SubmittedAt = s.e.clock.Now()
	s.changed()

	log.Debug().
		Str("game_id", s.ID).
		Str("player", p.Name).
		Int("round", s.round).
		Bool("bet", bet).
		Msg("guess accepted")

	return nil
}

func (s *Session) steal(name, target string) error {
	p, err := s.participant(name)
	if err != nil {
		return err
	}

	if p.StealsUsed >= s.e.cfg.StealsPerGame {
		return ErrNoStealsLeft
	}

	victim := s.players.Get(target)
	if victim == nil || victim == p || !victim.InRound || !victim.Submitted || victim.StolenFrom != "" {
		return ErrStealInvalid
	}

	p.Guess = victim.Guess
	p.Bet = false
	p.Submitted = true
	p.SubmittedAt = s.e.clock.Now()
	p.StolenFrom = victim.Name
	p.StealsUsed++
	s.changed()

	log.Info().
		Str("game_id", s.ID).
		Str("player", p.Name).
		Str("stolen_from", victim.Name).
		Int("guess", victim.Guess).
		Int("round", s.round).
		Msg("guess stolen")

	return nil
}

func (s *Session) admin(name string, action AdminAction) error {
	p := s.players.Get(name)
	if p == nil {
		return ErrNotJoined
	}
	if !p.IsAdmin {
		return ErrNotAdmin
	}

	log.Debug().Str("game_id", s.ID).Str("action", action.String()).Msg("admin action")

	switch action {
	case ActionStartGame:
		if s.phase != PhaseLobby {
			return ErrWrongPhase
		}
		return s.startRound()
	case ActionNextRound:
		if s.phase != PhaseReveal {
			return ErrWrongPhase
		}
		return s.startRound()
	case ActionEndRound:
		if s.phase != PhasePlaying {
			return ErrWrongPhase
		}
		s.endRound()
		return nil
	case ActionEndGame:
		if s.phase == PhaseEnd {
			return ErrGameEnded
		}
		s.endGame()
		return nil
	case ActionPause:
		if s.phase == PhasePaused || s.phase == PhaseEnd {
			return ErrWrongPhase
		}
		s.pause(PauseAdmin)
		return nil
	case ActionResume:
		if s.phase != PhasePaused {
			return ErrWrongPhase
		}
		return s.resume()
	case ActionNewGame:
		if s.phase != PhaseEnd {
			return ErrWrongPhase
		}
		_, err := s.e.create(s.e.songs)
		return err
	default:
		return ErrUnknownAction
	}
}

func (s *Session) exhausted() bool {
	return len(s.pool) == 0 || s.round >= s.totalRounds
}

// startRound picks a song and hands it to the speaker. The round itself
// begins when playback reports back.
func (s *Session) startRound() error {
	if s.starting {
		return ErrRoundStarting
	}

	if s.exhausted() {
		s.endGame()
		return nil
	}

	s.starting = true
	s.startGen++
	s.changed()
	s.attemptStart(s.startGen)

	return nil
}

func (s *Session) attemptStart(gen uint64) {
	if len(s.pool) == 0 {
		s.starting = false
		s.endGame()
		return
	}

	song := s.pool[s.e.pick(len(s.pool))]
	e := s.e

	log.Debug().Str("game_id", s.ID).Str("uri", song.URI).Msg("requesting playback")

	e.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PlaybackTimeout)
		defer cancel()

		var err error
		if !e.playback.Available(ctx) {
			err = ErrTargetUnavailable
		} else {
			err = e.playback.Play(ctx, song.URI)
		}

		e.post(func() {
			s.playbackResult(gen, song, err)
		})
	})
}

func (s *Session) playbackResult(gen uint64, song Song, err error) {
	if !s.current() || !s.starting || gen != s.startGen {
		return
	}

	switch {
	case errors.Is(err, ErrTargetUnavailable):
		log.Warn().Err(err).Str("game_id", s.ID).Msg("playback target unavailable, pausing")
		s.starting = false
		s.pause(PausePlaybackUnavailable)
		s.resumeStart = true
	case err != nil:
		log.Warn().Err(err).Str("game_id", s.ID).Str("uri", song.URI).Msg("playback failed, skipping song")
		s.markPlayed(song.URI)
		s.attemptStart(gen)
	default:
		s.markPlayed(song.URI)
		s.beginRound(song)
	}
}

func (s *Session) markPlayed(uri string) {
	for i := range s.pool {
		if s.pool[i].URI == uri {
			s.pool = append(s.pool[:i], s.pool[i+1:]...)
			return
		}
	}
}

func (s *Session) beginRound(song Song) {
	now := s.e.clock.Now()

	s.starting = false
	s.round++
	s.song = &song
	s.meta = Metadata{Title: song.Title, Artist: song.Artist, Artwork: song.Artwork}
	s.roundStarted = now
	s.deadline = now.Add(s.e.cfg.RoundDuration)
	s.players.ResetRound()
	s.phase = PhasePlaying
	s.armTimer(s.e.cfg.RoundDuration)
	s.changed()

	log.Info().
		Str("game_id", s.ID).
		Int("round", s.round).
		Int("total_rounds", s.totalRounds).
		Time("deadline", s.deadline).
		Msg("round started")

	e, round := s.e, s.round
	e.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PlaybackTimeout)
		defer cancel()

		md, err := e.playback.NowPlaying(ctx)
		if err != nil {
			log.Debug().Err(err).Msg("now playing metadata unavailable")
			return
		}

		e.post(func() {
			s.applyMetadata(round, md)
		})
	})
}

func (s *Session) applyMetadata(round int, md Metadata) {
	if !s.current() || s.round != round || s.song == nil {
		return
	}

	if md.Title != "" {
		s.meta.Title = md.Title
	}
	if md.Artist != "" {
		s.meta.Artist = md.Artist
	}
	if md.Artwork != "" {
		s.meta.Artwork = md.Artwork
	}
	s.changed()
}

func (s *Session) armTimer(d time.Duration) {
	e := s.e
	s.timer.Arm(d, func(gen uint64) {
		e.post(func() {
			s.expireRound(gen)
		})
	})
}

// expireRound handles a timer firing. Firings for a cancelled countdown or a
// phase that already moved on are dropped.
func (s *Session) expireRound(gen uint64) {
	if !s.current() || s.phase != PhasePlaying || !s.timer.Pending(gen) {
		return
	}

	s.endRound()
}

func (s *Session) endRound() {
	s.timer.Cancel()

	actual := s.song.Year

	// Stealers copy their victim's outcome, so victims are scored first.
	var stealers []*Player
	for _, p := range s.players.All() {
		if !p.InRound {
			continue
		}

		if !p.Submitted {
			out := scoring.Missed()
			p.Outcome = &out
			p.Missed = true
			p.Streak = 0
			continue
		}

		if p.StolenFrom != "" {
			stealers = append(stealers, p)
			continue
		}

		s.record(p, scoring.Round(scoring.Input{
			Guess:   p.Guess,
			Actual:  actual,
			Streak:  p.Streak,
			Bet:     p.Bet,
			Elapsed: p.SubmittedAt.Sub(s.roundStarted),
			Window:  s.e.cfg.RoundDuration,
			Speed:   s.e.cfg.SpeedBonus,
		}))
	}

	for _, p := range stealers {
		var victim scoring.Outcome
		if v := s.players.Get(p.StolenFrom); v != nil && v.Outcome != nil {
			victim = *v.Outcome
		} else {
			victim = scoring.Round(scoring.Input{Guess: p.Guess, Actual: actual})
		}
		s.record(p, scoring.ApplySteal(victim, p.Streak))
	}

	s.phase = PhaseReveal
	s.changed()

	log.Info().Str("game_id", s.ID).Int("round", s.round).Int("year", actual).Msg("round ended")
}

func (s *Session) record(p *Player, out scoring.Outcome) {
	p.Outcome = &out
	p.Score += out.Points
	p.Streak = out.Streak
	if p.Streak > p.BestStreak {
		p.BestStreak = p.Streak
	}
}

func (s *Session) pause(reason PauseReason) {
	s.timer.Cancel()

	if s.starting {
		s.starting = false
		s.startGen++
		s.resumeStart = true
	}

	s.pausedFrom = s.phase
	s.pauseReason = reason
	s.phase = PhasePaused
	s.changed()

	log.Info().
		Str("game_id", s.ID).
		Str("reason", string(reason)).
		Str("paused_from", string(s.pausedFrom)).
		Msg("game paused")
}

// resume returns to the paused phase. The round deadline is absolute, so a
// round whose deadline passed during the pause ends immediately.
func (s *Session) resume() error {
	s.phase = s.pausedFrom
	s.pausedFrom = ""
	s.pauseReason = ""
	s.changed()

	log.Info().Str("game_id", s.ID).Str("phase", string(s.phase)).Msg("game resumed")

	if s.phase == PhasePlaying {
		remaining := s.deadline.Sub(s.e.clock.Now())
		if remaining <= 0 {
			s.endRound()
			return nil
		}
		s.armTimer(remaining)
	}

	if s.resumeStart {
		s.resumeStart = false
		return s.startRound()
	}

	return nil
}

func (s *Session) endGame() {
	s.timer.Cancel()
	s.starting = false
	s.startGen++
	s.resumeStart = false

	if s.phase == PhasePaused {
		s.phase = s.pausedFrom
		s.pausedFrom = ""
		s.pauseReason = ""
	}
	if s.phase == PhasePlaying {
		s.endRound()
	}

	s.phase = PhaseEnd
	s.endedAt = s.e.clock.Now()
	if leader := s.players.Leader(); leader != nil {
		s.winner = leader.Name
	}
	s.changed()

	log.Info().
		Str("game_id", s.ID).
		Int("rounds", s.round).
		Str("winner", s.winner).
		Msg("game ended")

	summary := s.summary()
	e := s.e
	e.async(func() {
		ctx, cancel := context.WithTimeout(context.Background(), e.cfg.PlaybackTimeout)
		defer cancel()

		if err := e.sink.Record(ctx, summary); err != nil {
			log.Warn().Err(err).Str("game_id", summary.GameID).Msg("failed to record game summary")
		}
	})
}

func (s *Session) summary() Summary {
	sum := Summary{
		GameID:    s.ID,
		CreatedAt: s.CreatedAt,
		EndedAt:   s.endedAt,
		Rounds:    s.round,
		Winner:    s.winner,
		Players:   make([]PlayerSummary, 0, s.players.Len()),
	}

	for _, p := range s.players.All() {
		sum.Players = append(sum.Players, PlayerSummary{
			Name:       p.Name,
			Score:      p.Score,
			BestStreak: p.BestStreak,
			LateJoin:   p.LateJoin,
		})
	}

	return sum
}

// discard stops every pending timer before the session is replaced.
func (s *Session) discard() {
	s.timer.Cancel()
	s.startGen++
	for key, t := range s.grace {
		t.Stop()
		delete(s.grace, key)
	}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package game implements the authoritative session engine: the phase state
// machine, the round lifecycle, the player registry and the round timer.
//
// A single Engine goroutine owns the current Session. Client requests, timer
// firings, grace-period expiries and playback callbacks are all closures run to
// completion on that goroutine, one at a time.
package game

import (
	"context"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Config tunes the rules of a game.
type Config struct {
	RoundDuration   time.Duration
	GracePeriod     time.Duration
	PlaybackTimeout time.Duration
	MaxPlayers      int
	Rounds          int // 0 plays every song
	YearMin         int
	YearMax         int
	SpeedBonus      bool
	StealsPerGame   int
	JoinURL         string
}

// DefaultConfig returns the rules used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		RoundDuration:   30 * time.Second,
		GracePeriod:     2 * time.Minute,
		PlaybackTimeout: 10 * time.Second,
		MaxPlayers:      30,
		YearMin:         1900,
		YearMax:         time.Now().Year(),
		StealsPerGame:   1,
	}
}

// Created describes a freshly created session.
type Created struct {
	ID      string
	JoinURL string
}

// Joined describes an accepted join.
type Joined struct {
	GameID      string
	Name        string
	IsAdmin     bool
	LateJoin    bool
	Reconnected bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock replaces the real clock, typically with a clockwork.FakeClock.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// Engine serializes every operation on the current session.
type Engine struct {
	cfg      Config
	clock    clockwork.Clock
	playback Playback
	sink     Sink

	inbox   chan func()
	stopped chan struct{}

	// Only touched on the actor goroutine.
	session   *Session
	songs     []Song
	observers []func(Snapshot)
	dirty     bool

	async func(func())
	pick  func(n int) int
}

// NewEngine wires an engine to its playback target and analytics sink.
func NewEngine(cfg Config, playback Playback, sink Sink, opts ...Option) *Engine {
	if sink == nil {
		sink = nopSink{}
	}

	e := &Engine{
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		playback: playback,
		sink:     sink,
		inbox:    make(chan func(), 256),
		stopped:  make(chan struct{}),
		async:    func(f func()) { go f() },
		pick:     rand.IntN,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run processes requests until ctx is cancelled.
func (e *Engine) Run(ctx context.Context) {
	defer close(e.stopped)

	log.Info().Msg("game engine started")

	for {
		select {
		case <-ctx.Done():
			if e.session != nil {
				e.session.discard()
			}
			log.Info().Msg("game engine stopped")
			return
		case fn := <-e.inbox:
			fn()
			if e.dirty {
				e.dirty = false
				e.publish()
			}
		}
	}
}

// post queues fn for the actor goroutine without waiting for it.
func (e *Engine) post(fn func()) {
	select {
	case e.inbox <- fn:
	case <-e.stopped:
	}
}

// call runs fn on the actor goroutine and waits for its result.
func (e *Engine) call(fn func() error) error {
	done := make(chan error, 1)

	select {
	case e.inbox <- func() { done <- fn() }:
	case <-e.stopped:
		return ErrNoSession
	}

	select {
	case err := <-done:
		return err
	case <-e.stopped:
		return ErrNoSession
	}
}

func (e *Engine) publish() {
	if e.session == nil {
		return
	}

	snap := e.session.snapshot()
	for _, fn := range e.observers {
		fn(snap)
	}
}

func (e *Engine) create(songs []Song) (*Session, error) {
	if e.session != nil && e.session.phase != PhaseEnd {
		return nil, ErrWrongPhase
	}

	valid := validSongs(songs)
	if len(valid) == 0 {
		return nil, ErrNoSongs
	}

	if e.session != nil {
		e.session.discard()
	}

	e.songs = songs
	e.session = newSession(e, valid)
	e.dirty = true

	log.Info().
		Str("game_id", e.session.ID).
		Int("songs", len(valid)).
		Int("total_rounds", e.session.totalRounds).
		Msg("game created")

	return e.session, nil
}

// Create starts a new session in LOBBY. It fails while a game is in progress.
func (e *Engine) Create(songs []Song) (Created, error) {
	var c Created

	err := e.call(func() error {
		s, err := e.create(songs)
		if err != nil {
			return err
		}
		c = Created{ID: s.ID, JoinURL: s.JoinURL}
		return nil
	})

	return c, err
}

// Join adds a player, or reattaches a disconnected player with the same name.
func (e *Engine) Join(name string) (Joined, error) {
	var j Joined

	err := e.call(func() error {
		if e.session == nil {
			return ErrNoSession
		}
		var err error
		j, err = e.session.join(name)
		return err
	})

	return j, err
}

// Submit records a player's guess for the current round.
func (e *Engine) Submit(name string, year int, bet bool) error {
	return e.call(func() error {
		if e.session == nil {
			return ErrNoSession
		}
		return e.session.submit(name, year, bet)
	})
}

// Steal copies another player's guess for the current round.
func (e *Engine) Steal(name, target string) error {
	return e.call(func() error {
		if e.session == nil {
			return ErrNoSession
		}
		return e.session.steal(name, target)
	})
}

// Admin runs an admin action on behalf of name.
func (e *Engine) Admin(name string, action AdminAction) error {
	return e.call(func() error {
		if e.session == nil {
			return ErrNoSession
		}
		return e.session.admin(name, action)
	})
}

// Disconnect marks a player's channel as closed and starts the grace period.
func (e *Engine) Disconnect(name string) {
	_ = e.call(func() error {
		if e.session != nil {
			e.session.disconnect(name)
		}
		return nil
	})
}

// Subscribe registers fn to receive every new snapshot. fn runs on the actor
// goroutine and must not block.
func (e *Engine) Subscribe(fn func(Snapshot)) {
	_ = e.call(func() error {
		e.observers = append(e.observers, fn)
		return nil
	})
}

// Observe runs fn on the actor goroutine with the current snapshot, so that
// nothing published afterwards can overtake it.
func (e *Engine) Observe(fn func(Snapshot)) {
	_ = e.call(func() error {
		if e.session != nil {
			fn(e.session.snapshot())
		}
		return nil
	})
}

// Snapshot returns the current snapshot.
func (e *Engine) Snapshot() (Snapshot, error) {
	var snap Snapshot

	err := e.call(func() error {
		if e.session == nil {
			return ErrNoSession
		}
		snap = e.session.snapshot()
		return nil
	})

	return snap, err
}

// JoinURL returns the join URL of the current session.
func (e *Engine) JoinURL() (string, error) {
	var u string

	err := e.call(func() error {
		if e.session == nil {
			return ErrNoSession
		}
		u = e.session.JoinURL
		return nil
	})

	return u, err
}

func validSongs(songs []Song) []Song {
	seen := make(map[string]bool, len(songs))
	valid := make([]Song, 0, len(songs))

	for _, s := range songs {
		if s.URI == "" || s.Year <= 0 || seen[s.URI] {
			continue
		}
		seen[s.URI] = true
		valid = append(valid, s)
	}

	return valid
}

func joinURL(base, id string) string {
	if base == "" {
		return ""
	}

	u, err := url.Parse(base)
	if err != nil {
		return ""
	}

	q := u.Query()
	q.Set("game", id)
	u.RawQuery = q.Encode()

	return u.String()
}

type nopSink struct{}

func (nopSink) Record(context.Context, Summary) error {
	return nil
}

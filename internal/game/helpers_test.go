package game

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

var testStart = time.Date(2026, time.March, 14, 20, 0, 0, 0, time.UTC)

// fakePlayback is a scriptable speaker.
type fakePlayback struct {
	mu        sync.Mutex
	down      bool
	failURIs  map[string]bool
	played    []string
	nowPlayed Metadata
}

func newFakePlayback() *fakePlayback {
	return &fakePlayback{failURIs: make(map[string]bool)}
}

func (f *fakePlayback) Play(_ context.Context, uri string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		return ErrTargetUnavailable
	}
	if f.failURIs[uri] {
		return errors.New("no such song")
	}
	f.played = append(f.played, uri)
	return nil
}

func (f *fakePlayback) NowPlaying(context.Context) (Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.nowPlayed == (Metadata{}) {
		return Metadata{}, errors.New("nothing playing")
	}
	return f.nowPlayed, nil
}

func (f *fakePlayback) Available(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return !f.down
}

func (f *fakePlayback) setDown(down bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.down = down
}

func (f *fakePlayback) playedURIs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.played...)
}

// recordingSink keeps every summary it receives.
type recordingSink struct {
	mu        sync.Mutex
	summaries []Summary
}

func (r *recordingSink) Record(_ context.Context, s Summary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.summaries = append(r.summaries, s)
	return nil
}

func (r *recordingSink) all() []Summary {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Summary(nil), r.summaries...)
}

type harness struct {
	t      *testing.T
	engine *Engine
	clock  *clockwork.FakeClock
	pb     *fakePlayback
	sink   *recordingSink
}

func testSongs() []Song {
	return []Song{
		{URI: "local:track:thriller", Year: 1984, FunFact: "Recorded in eight weeks."},
		{URI: "local:track:wonderwall", Year: 1995},
	}
}

// newHarness starts an engine with a fake clock. Playback runs inline and the
// song picker always takes the first unplayed song, so rounds are
// deterministic.
func newHarness(t *testing.T, songs []Song, mutate func(*Config)) *harness {
	t.Helper()

	cfg := DefaultConfig()
	cfg.YearMax = 2026
	cfg.JoinURL = "http://party.local/"
	if mutate != nil {
		mutate(&cfg)
	}

	h := &harness{
		t:     t,
		clock: clockwork.NewFakeClockAt(testStart),
		pb:    newFakePlayback(),
		sink:  &recordingSink{},
	}

	h.engine = NewEngine(cfg, h.pb, h.sink, WithClock(h.clock))
	h.engine.async = func(f func()) { f() }
	h.engine.pick = func(int) int { return 0 }

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.engine.Run(ctx)

	if _, err := h.engine.Create(songs); err != nil {
		t.Fatalf("create: %v", err)
	}

	return h
}

func (h *harness) snapshot() Snapshot {
	h.t.Helper()

	snap, err := h.engine.Snapshot()
	if err != nil {
		h.t.Fatalf("snapshot: %v", err)
	}
	return snap
}

func (h *harness) join(name string) Joined {
	h.t.Helper()

	j, err := h.engine.Join(name)
	if err != nil {
		h.t.Fatalf("join %q: %v", name, err)
	}
	return j
}

func (h *harness) admin(name string, action AdminAction) {
	h.t.Helper()

	if err := h.engine.Admin(name, action); err != nil {
		h.t.Fatalf("admin %s: %v", action, err)
	}
}

func (h *harness) submit(name string, year int, bet bool) {
	h.t.Helper()

	if err := h.engine.Submit(name, year, bet); err != nil {
		h.t.Fatalf("submit %q %d: %v", name, year, err)
	}
}

// waitPhase polls until the session reaches want. Timer firings arrive from
// the clock's goroutine, so they are not ordered with test calls.
func (h *harness) waitPhase(want Phase) Snapshot {
	h.t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := h.snapshot()
		if snap.Phase == want {
			return snap
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("phase: got %s, want %s", snap.Phase, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (h *harness) waitPlayerCount(want int) Snapshot {
	h.t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := h.snapshot()
		if snap.PlayerCount == want {
			return snap
		}
		if time.Now().After(deadline) {
			h.t.Fatalf("player_count: got %d, want %d", snap.PlayerCount, want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func findPlayer(t *testing.T, snap Snapshot, name string) PlayerView {
	t.Helper()

	for _, p := range snap.Players {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("player %q not in snapshot", name)
	return PlayerView{}
}

func wantCode(t *testing.T, err error, want Code) {
	t.Helper()

	if err == nil {
		t.Fatalf("got nil error, want %s", want)
	}
	if got := CodeOf(err); got != want {
		t.Fatalf("got %s (%v), want %s", got, err, want)
	}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/Seednode/yeargame/internal/scoring"
)

const maxNameLength = 20

// Player holds the data we store server-side for one participant.
type Player struct {
	Name       string
	Seq        int
	Score      int
	Streak     int
	BestStreak int
	IsAdmin    bool
	LateJoin   bool
	StealsUsed int

	Connected      bool
	DisconnectedAt time.Time
	graceGen       uint64

	// Per-round fields, reset at every round start.
	InRound     bool
	Guess       int
	Submitted   bool
	SubmittedAt time.Time
	Bet         bool
	StolenFrom  string
	Outcome     *scoring.Outcome
	Missed      bool
}

func (p *Player) resetRound() {
	p.InRound = true
	p.Guess = 0
	p.Submitted = false
	p.SubmittedAt = time.Time{}
	p.Bet = false
	p.StolenFrom = ""
	p.Outcome = nil
	p.Missed = false
}

// Registry keeps players in registration order, keyed by case-folded name.
// It is not safe for concurrent use; the session owns it.
type Registry struct {
	players []*Player
	byName  map[string]*Player
	nextSeq int
}

func newRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Player),
	}
}

func nameKey(name string) string {
	return strings.ToLower(name)
}

// normalizeName trims a requested name and checks it is displayable.
func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)

	n := utf8.RuneCountInString(name)
	if n == 0 || n > maxNameLength || !utf8.ValidString(name) {
		return "", ErrNameInvalid
	}

	for _, r := range name {
		if !unicode.IsPrint(r) {
			return "", ErrNameInvalid
		}
	}

	return name, nil
}

// Add registers a new player. The first player ever added becomes admin.
func (r *Registry) Add(name string, lateJoin bool) *Player {
	r.nextSeq++

	p := &Player{
		Name:      name,
		Seq:       r.nextSeq,
		LateJoin:  lateJoin,
		Connected: true,
		IsAdmin:   r.Admin() == nil,
	}

	r.players = append(r.players, p)
	r.byName[nameKey(name)] = p

	return p
}

// Get looks a player up case-insensitively.
func (r *Registry) Get(name string) *Player {
	return r.byName[nameKey(name)]
}

// Remove drops a player and, if it was the admin, promotes the
// earliest-registered remaining player. It returns the promoted player, if any.
func (r *Registry) Remove(name string) *Player {
	p, ok := r.byName[nameKey(name)]
	if !ok {
		return nil
	}

	delete(r.byName, nameKey(name))

	dst := r.players[:0]
	for _, q := range r.players {
		if q != p {
			dst = append(dst, q)
		}
	}
	r.players = dst

	if !p.IsAdmin || len(r.players) == 0 {
		return nil
	}

	r.players[0].IsAdmin = true

	return r.players[0]
}

// Len is the number of players not yet expired and removed.
func (r *Registry) Len() int {
	return len(r.players)
}

// All returns players in registration order.
func (r *Registry) All() []*Player {
	return r.players
}

// Admin returns the current admin, if any.
func (r *Registry) Admin() *Player {
	for _, p := range r.players {
		if p.IsAdmin {
			return p
		}
	}
	return nil
}

// ResetRound clears per-round fields and marks everyone as a participant.
func (r *Registry) ResetRound() {
	for _, p := range r.players {
		p.resetRound()
	}
}

// Leader returns the highest scorer, ties going to the earliest registration.
func (r *Registry) Leader() *Player {
	var best *Player
	for _, p := range r.players {
		if best == nil || p.Score > best.Score || (p.Score == best.Score && p.Seq < best.Seq) {
			best = p
		}
	}
	return best
}

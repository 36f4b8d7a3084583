/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RoundTimer is a cancelable one-shot countdown. Every Arm or Cancel bumps a
// generation counter, so a firing that raced a cancellation can be recognized
// by its stale generation and ignored.
type RoundTimer struct {
	clock clockwork.Clock

	mu    sync.Mutex
	timer clockwork.Timer
	gen   uint64
}

func newRoundTimer(clock clockwork.Clock) *RoundTimer {
	return &RoundTimer{clock: clock}
}

// Arm replaces any pending countdown with one that calls fire after d.
func (rt *RoundTimer) Arm(d time.Duration, fire func(gen uint64)) uint64 {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.stopLocked()
	rt.gen++

	gen := rt.gen
	if d < 0 {
		d = 0
	}
	rt.timer = rt.clock.AfterFunc(d, func() {
		fire(gen)
	})

	return gen
}

// Cancel stops the pending countdown, if any.
func (rt *RoundTimer) Cancel() {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.stopLocked()
	rt.gen++
}

// Pending reports whether a firing for gen may still be delivered.
func (rt *RoundTimer) Pending(gen uint64) bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	return rt.timer != nil && gen == rt.gen
}

func (rt *RoundTimer) stopLocked() {
	if rt.timer != nil {
		rt.timer.Stop()
		rt.timer = nil
	}
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package scoring maps a guessed release year onto round points.
//
// Everything here is pure: no clocks, no randomness, no shared state.
package scoring

import "time"

// Points awarded by Accuracy.
const (
	ExactPoints = 10
	ClosePoints = 5
	NearPoints  = 1

	closeRange = 3
	nearRange  = 5
)

// BetOutcome records what happened to a wager.
type BetOutcome string

const (
	BetNone BetOutcome = ""
	BetWon  BetOutcome = "won"
	BetLost BetOutcome = "lost"
)

// Accuracy scores a guess against the actual release year.
func Accuracy(guess, actual int) int {
	diff := guess - actual
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff == 0:
		return ExactPoints
	case diff <= closeRange:
		return ClosePoints
	case diff <= nearRange:
		return NearPoints
	default:
		return 0
	}
}

// ApplyBet doubles a positive score when a bet was placed. A bet on a zero
// score stays at zero and is reported as lost.
func ApplyBet(score int, bet bool) (int, BetOutcome) {
	if !bet {
		return score, BetNone
	}
	if score > 0 {
		return score * 2, BetWon
	}
	return 0, BetLost
}

// ApplySteal gives the stealer the victim's scored outcome, so both show the
// same points for the round. Only the streak is the stealer's own.
func ApplySteal(victim Outcome, streak int) Outcome {
	out := victim
	out.Streak = nextStreak(streak, victim.Accuracy)
	return out
}

// StreakBonus rewards consecutive scoring rounds.
func StreakBonus(streak int) int {
	switch {
	case streak >= 5:
		return 2
	case streak >= 3:
		return 1
	default:
		return 0
	}
}

// SpeedBonus rewards answers submitted early in the round window.
func SpeedBonus(elapsed, window time.Duration) int {
	if window <= 0 || elapsed < 0 || elapsed >= window {
		return 0
	}

	switch {
	case elapsed <= window/4:
		return 2
	case elapsed <= window/2:
		return 1
	default:
		return 0
	}
}

// Input describes one player's round.
type Input struct {
	Guess  int
	Actual int

	// Streak is the player's streak before this round.
	Streak int

	Bet     bool
	Elapsed time.Duration
	Window  time.Duration
	Speed   bool
}

// Outcome is the scored result of a round for one player.
type Outcome struct {
	Accuracy    int        `json:"accuracy"`
	SpeedBonus  int        `json:"speed_bonus,omitempty"`
	StreakBonus int        `json:"streak_bonus,omitempty"`
	Points      int        `json:"points"`
	Bet         BetOutcome `json:"bet,omitempty"`
	Streak      int        `json:"streak"`
}

// Round composes accuracy, bonuses and the bet into the final round score.
func Round(in Input) Outcome {
	out := Outcome{Accuracy: Accuracy(in.Guess, in.Actual)}
	out.Streak = nextStreak(in.Streak, out.Accuracy)

	if out.Accuracy > 0 {
		out.StreakBonus = StreakBonus(out.Streak)
		if in.Speed {
			out.SpeedBonus = SpeedBonus(in.Elapsed, in.Window)
		}
	}

	out.Points, out.Bet = ApplyBet(out.Accuracy+out.SpeedBonus+out.StreakBonus, in.Bet)

	return out
}

// Missed is the outcome for a participant who never submitted.
func Missed() Outcome {
	return Outcome{}
}

func nextStreak(streak, accuracy int) int {
	if accuracy > 0 {
		return streak + 1
	}
	return 0
}

/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "strings"

// Phase is one state of the game-level state machine.
type Phase string

const (
	PhaseLobby   Phase = "LOBBY"
	PhasePlaying Phase = "PLAYING"
	PhaseReveal  Phase = "REVEAL"
	PhasePaused  Phase = "PAUSED"
	PhaseEnd     Phase = "END"
)

// PauseReason explains why a session is paused.
type PauseReason string

const (
	PauseAdmin               PauseReason = "admin"
	PauseAdminDisconnected   PauseReason = "admin_disconnected"
	PausePlaybackUnavailable PauseReason = "playback_unavailable"
)

// AdminAction is the closed set of commands only the admin may issue.
type AdminAction int

const (
	ActionStartGame AdminAction = iota + 1
	ActionNextRound
	ActionEndRound
	ActionEndGame
	ActionPause
	ActionResume
	ActionNewGame
)

var actionNames = map[AdminAction]string{
	ActionStartGame: "start_game",
	ActionNextRound: "next_round",
	ActionEndRound:  "end_round",
	ActionEndGame:   "end_game",
	ActionPause:     "pause",
	ActionResume:    "resume",
	ActionNewGame:   "new_game",
}

func (a AdminAction) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// ParseAdminAction maps a wire tag onto an AdminAction.
func ParseAdminAction(s string) (AdminAction, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for action, name := range actionNames {
		if name == s {
			return action, nil
		}
	}
	return 0, ErrUnknownAction
}

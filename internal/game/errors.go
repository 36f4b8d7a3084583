/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "errors"

// Code identifies a rejection in a way clients can switch on.
type Code string

const (
	CodeNameTaken        Code = "NAME_TAKEN"
	CodeNameInvalid      Code = "NAME_INVALID"
	CodeGameFull         Code = "GAME_FULL"
	CodeGameEnded        Code = "GAME_ENDED"
	CodeRoundExpired     Code = "ROUND_EXPIRED"
	CodeAlreadySubmitted Code = "ALREADY_SUBMITTED"
	CodeGuessInvalid     Code = "GUESS_INVALID"
	CodeWaitNextRound    Code = "WAIT_NEXT_ROUND"
	CodeStealInvalid     Code = "STEAL_INVALID"
	CodeNoStealsLeft     Code = "NO_STEALS_LEFT"
	CodeWrongPhase       Code = "WRONG_PHASE"
	CodeRoundStarting    Code = "ROUND_STARTING"
	CodeNotAdmin         Code = "NOT_ADMIN"
	CodeNotJoined        Code = "NOT_JOINED"
	CodeUnknownAction    Code = "UNKNOWN_ACTION"
	CodeNoSongs          Code = "NO_SONGS"
	CodeNoSession        Code = "NO_SESSION"
	CodeBadRequest       Code = "BAD_REQUEST"
)

// Error is a typed rejection. Rejections never change session state.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string {
	return string(e.Code) + ": " + e.Message
}

var (
	ErrNameTaken        = &Error{CodeNameTaken, "that name is already taken"}
	ErrNameInvalid      = &Error{CodeNameInvalid, "names must be 1-20 printable characters"}
	ErrGameFull         = &Error{CodeGameFull, "the game is full"}
	ErrGameEnded        = &Error{CodeGameEnded, "the game has ended"}
	ErrRoundExpired     = &Error{CodeRoundExpired, "the round is not accepting guesses"}
	ErrAlreadySubmitted = &Error{CodeAlreadySubmitted, "a guess was already accepted this round"}
	ErrGuessInvalid     = &Error{CodeGuessInvalid, "that year is out of range"}
	ErrWaitNextRound    = &Error{CodeWaitNextRound, "you can play from the next round"}
	ErrStealInvalid     = &Error{CodeStealInvalid, "there is no guess to steal from that player"}
	ErrNoStealsLeft     = &Error{CodeNoStealsLeft, "no steals left this game"}
	ErrWrongPhase       = &Error{CodeWrongPhase, "not allowed in the current phase"}
	ErrRoundStarting    = &Error{CodeRoundStarting, "a round is already starting"}
	ErrNotAdmin         = &Error{CodeNotAdmin, "only the admin can do that"}
	ErrNotJoined        = &Error{CodeNotJoined, "join the game first"}
	ErrUnknownAction    = &Error{CodeUnknownAction, "unknown admin action"}
	ErrNoSongs          = &Error{CodeNoSongs, "no playable songs were loaded"}
	ErrNoSession        = &Error{CodeNoSession, "no game is running"}
	ErrBadRequest       = &Error{CodeBadRequest, "malformed request"}
)

// ErrTargetUnavailable is wrapped by playback adapters when the speaker
// itself cannot be reached, as opposed to a single song failing.
var ErrTargetUnavailable = errors.New("playback target unavailable")

// CodeOf extracts the rejection code from err, or CodeBadRequest when err is
// not a typed rejection.
func CodeOf(err error) Code {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code
	}
	return CodeBadRequest
}

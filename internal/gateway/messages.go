/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package gateway

import (
	"errors"

	"github.com/Seednode/yeargame/internal/game"
)

// ClientMessage is anything a client may send.
type ClientMessage struct {
	Type   string `json:"type"`             // "join", "submit", "steal", "admin"
	Name   string `json:"name,omitempty"`   // join
	Year   *int   `json:"year,omitempty"`   // submit
	Bet    bool   `json:"bet,omitempty"`    // submit
	Target string `json:"target,omitempty"` // steal
	Action string `json:"action,omitempty"` // admin
}

// JoinedMessage is sent only to the client whose join was accepted.
type JoinedMessage struct {
	Type        string `json:"type"` // "joined"
	GameID      string `json:"game_id"`
	Name        string `json:"name"`
	IsAdmin     bool   `json:"is_admin"`
	LateJoin    bool   `json:"late_join,omitempty"`
	Reconnected bool   `json:"reconnected,omitempty"`
}

// RejoinMessage tells a client that its player belonged to a game that has
// been replaced.
type RejoinMessage struct {
	Type   string `json:"type"` // "rejoin"
	GameID string `json:"game_id"`
}

// AcceptedMessage acknowledges a submit, steal or admin request.
type AcceptedMessage struct {
	Type    string `json:"type"`    // "accepted"
	Request string `json:"request"` // the request type that was accepted
}

// ErrorMessage is sent only to the offending client.
type ErrorMessage struct {
	Type    string    `json:"type"` // "error"
	Code    game.Code `json:"code"`
	Message string    `json:"message"`
}

func errorMessage(err error) ErrorMessage {
	msg := ErrorMessage{
		Type:    "error",
		Code:    game.CodeOf(err),
		Message: game.ErrBadRequest.Message,
	}

	var ge *game.Error
	if errors.As(err, &ge) {
		msg.Message = ge.Message
	}

	return msg
}

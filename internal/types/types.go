// Package types holds the WebSocket wire messages.
//
// Client -> Server
//
//	UpdateProfile:  name, avatar
//	UpdateSettings: settings {rounds, theme, max_players} (host only)
//	StartGame:      {}
//	SubmitCard:     card_id
//	SubmitVote:     ranking: slot labels, favourite first
//
// Server -> Client
//
//	StateSnapshot: version, state (the receiving player's view)
//	Error:         error
package types

import "github.com/DoyleJ11/promptparty-backend/internal/engine"

const (
	MsgUpdateProfile  = "UpdateProfile"
	MsgUpdateSettings = "UpdateSettings"
	MsgStartGame      = "StartGame"
	MsgSubmitCard     = "SubmitCard"
	MsgSubmitVote     = "SubmitVote"

	MsgStateSnapshot = "StateSnapshot"
	MsgError         = "Error"
)

type ClientMessage struct {
	Type     string           `json:"type"`
	Name     string           `json:"name,omitempty"`
	Avatar   string           `json:"avatar,omitempty"`
	Settings *engine.Settings `json:"settings,omitempty"`
	CardID   string           `json:"card_id,omitempty"`
	Ranking  []string         `json:"ranking,omitempty"`
}

type ServerMessage struct {
	Type    string       `json:"type"` // "StateSnapshot" | "Error"
	Version int          `json:"version,omitempty"`
	State   *engine.View `json:"state,omitempty"`
	Error   string       `json:"error,omitempty"`
}

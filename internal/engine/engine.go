package engine

import (
	"errors"
	"fmt"

	"github.com/DoyleJ11/promptparty-backend/internal/content"
)

var ErrUnknownPlayer = errors.New("unknown player")
var ErrSpectator = errors.New("spectators cannot play")
var ErrWrongPhase = errors.New("action not allowed in this phase")
var ErrNotHost = errors.New("only the host can do that")
var ErrAlreadySubmitted = errors.New("already submitted")
var ErrCardNotInHand = errors.New("card not in hand")
var ErrInvalidVote = errors.New("invalid vote ranking")
var ErrNotEnoughPlayers = errors.New("need at least two active players")
var ErrAlreadyStarting = errors.New("game is already starting")
var ErrStaleTimer = errors.New("timer belongs to a finished phase")
var ErrUnsupportedCommand = errors.New("unsupported command")

type Phase string

const (
	PhaseLobby        Phase = "lobby"
	PhaseSelection    Phase = "selection"
	PhaseVoting       Phase = "voting"
	PhaseRoundResults Phase = "round_results"
	PhaseFinalResults Phase = "final_results"
)

// Stage identifies one timed phase of one round. A timer armed for a stage is
// only honoured while the game is still in that stage.
type Stage struct {
	Round int
	Phase Phase
}

func (s Stage) String() string { return fmt.Sprintf("%s#%d", s.Phase, s.Round) }

type CommandType string

const (
	CmdUpdateProfile  CommandType = "UpdateProfile"
	CmdUpdateSettings CommandType = "UpdateSettings"
	CmdSubmitCard     CommandType = "SubmitCard"
	CmdSubmitVote     CommandType = "SubmitVote"
	CmdSubmitSlotVote CommandType = "SubmitSlotVote"
	CmdTimeoutAdvance CommandType = "TimeoutAdvance"
)

/*
	CmdSubmitCard     -> EvtCardSubmitted [-> EvtAutoSubmitted* -> EvtPhaseAdvanced]
	CmdSubmitVote     -> EvtVoteSubmitted [-> EvtAutoVoted* -> EvtRoundScored -> EvtPhaseAdvanced]
	CmdTimeoutAdvance -> the same closing events as full participation
	RoundResults timeout -> EvtPhaseAdvanced (next round) or EvtGameCompleted
*/

type Command struct {
	Type     CommandType
	PlayerID string

	Name     string
	Avatar   string
	Settings Settings
	CardID   string
	// Ranking holds player ids, most preferred first.
	Ranking []string
	// Slots holds slot labels, most preferred first. Resolved to Ranking.
	Slots []string
	Stage Stage
}

type EventType string

const (
	EvtProfileUpdated  EventType = "ProfileUpdated"
	EvtSettingsUpdated EventType = "SettingsUpdated"
	EvtCardSubmitted   EventType = "CardSubmitted"
	EvtAutoSubmitted   EventType = "AutoSubmitted"
	EvtVoteSubmitted   EventType = "VoteSubmitted"
	EvtAutoVoted       EventType = "AutoVoted"
	EvtRoundScored     EventType = "RoundScored"
	EvtPhaseAdvanced   EventType = "PhaseAdvanced"
	EvtGameCompleted   EventType = "GameCompleted"
)

type Event struct {
	Type     EventType
	PlayerID string
	Round    int
	Phase    Phase
}

// Apply runs one player or timer command against the game. A non-nil error
// means nothing changed.
func Apply(g *Game, cmd Command) ([]Event, error) {
	switch cmd.Type {
	case CmdUpdateProfile:
		return g.updateProfile(cmd.PlayerID, cmd.Name, cmd.Avatar)
	case CmdUpdateSettings:
		return g.updateSettings(cmd.PlayerID, cmd.Settings)
	case CmdSubmitCard:
		return g.submitCard(cmd.PlayerID, cmd.CardID)
	case CmdSubmitVote:
		return g.submitVote(cmd.PlayerID, cmd.Ranking)
	case CmdSubmitSlotVote:
		ranking, ok := g.resolveSlots(cmd.Slots)
		if !ok {
			return nil, ErrInvalidVote
		}
		return g.submitVote(cmd.PlayerID, ranking)
	case CmdTimeoutAdvance:
		return g.timeout(cmd.Stage)
	default:
		return nil, ErrUnsupportedCommand
	}
}

func ContainsEvent(events []Event, eventType EventType) bool {
	for _, event := range events {
		if event.Type == eventType {
			return true
		}
	}
	return false
}

// DeckSize is how many cards a game of rounds rounds asks the provider for:
// every active player's starting hand plus a 20% margin, rounded up.
func DeckSize(players, rounds int) int {
	return (players*(rounds+2)*12 + 9) / 10
}

// HandSize is the starting hand for a game of rounds rounds.
func HandSize(rounds int) int { return rounds + 2 }

// DeckRequest describes the cards a game start needs from a content.Provider.
type DeckRequest struct {
	Count int
	Theme content.Theme
}

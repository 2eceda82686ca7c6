package engine

import "github.com/DoyleJ11/promptparty-backend/internal/content"

const (
	MinRounds     = 5
	MaxRounds     = 20
	MinMaxPlayers = 2
	MaxMaxPlayers = 7

	// MinActivePlayers is the smallest field a game can start with.
	MinActivePlayers = 2
)

type Settings struct {
	Rounds     int           `json:"rounds"`
	Theme      content.Theme `json:"theme"`
	MaxPlayers int           `json:"max_players"`
}

func DefaultSettings() Settings {
	return Settings{Rounds: 8, Theme: content.DefaultTheme, MaxPlayers: MaxMaxPlayers}
}

// Sanitize clamps every field into its valid range and maps unknown themes to
// the default theme.
func (s Settings) Sanitize() Settings {
	return Settings{
		Rounds:     min(max(s.Rounds, MinRounds), MaxRounds),
		Theme:      content.ParseTheme(string(s.Theme)),
		MaxPlayers: min(max(s.MaxPlayers, MinMaxPlayers), MaxMaxPlayers),
	}
}

// Package content defines the cards and prompts a game is played with, and the
// providers that supply them.
package content

import (
	"context"
	"strings"
)

type Theme string

const (
	ThemeClassic Theme = "classic"
	ThemeAnimals Theme = "animals"
	ThemeMovies  Theme = "movies"
	ThemeSports  Theme = "sports"
	ThemeFood    Theme = "food"
)

// DefaultTheme is used whenever a requested theme is not recognised.
const DefaultTheme = ThemeClassic

var Themes = []Theme{ThemeClassic, ThemeAnimals, ThemeMovies, ThemeSports, ThemeFood}

// ParseTheme maps free-form input onto a known theme, falling back to
// DefaultTheme.
func ParseTheme(s string) Theme {
	t := Theme(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Themes {
		if t == known {
			return t
		}
	}
	return DefaultTheme
}

// Card is a displayable response card. IDs are unique within one fetched batch.
type Card struct {
	ID         string `json:"id"`
	DisplayURL string `json:"display_url"`
	AltText    string `json:"alt_text,omitempty"`
}

// Provider supplies cards for a theme. It may return fewer cards than asked
// for; callers handle the shortfall.
type Provider interface {
	Fetch(ctx context.Context, count int, theme Theme) ([]Card, error)
}

// ProviderFunc adapts a plain function to Provider.
type ProviderFunc func(ctx context.Context, count int, theme Theme) ([]Card, error)

func (f ProviderFunc) Fetch(ctx context.Context, count int, theme Theme) ([]Card, error) {
	return f(ctx, count, theme)
}

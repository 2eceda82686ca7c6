package content

import (
	"context"
	"fmt"
	"strings"
)

// Generated produces placeholder cards without any I/O. It never fails and is
// the fallback for every other provider.
type Generated struct {
	// BaseURL is joined with "<theme>/<n>.gif" to build DisplayURL.
	BaseURL string
	// Limit caps how many cards a single fetch can return. Zero means no cap.
	Limit int
}

func (g Generated) Fetch(ctx context.Context, count int, theme Theme) ([]Card, error) {
	if count <= 0 {
		return nil, nil
	}
	if g.Limit > 0 && count > g.Limit {
		count = g.Limit
	}
	base := strings.TrimRight(g.BaseURL, "/")
	if base == "" {
		base = "https://cards.invalid"
	}

	cards := make([]Card, 0, count)
	for i := range count {
		if err := ctx.Err(); err != nil {
			return cards, nil
		}
		cards = append(cards, Card{
			ID:         fmt.Sprintf("%s-%03d", theme, i+1),
			DisplayURL: fmt.Sprintf("%s/%s/%d.gif", base, theme, i+1),
			AltText:    fmt.Sprintf("%s card %d", theme, i+1),
		})
	}
	return cards, nil
}

package content

import (
	"context"

	"go.uber.org/zap"

	"github.com/DoyleJ11/promptparty-backend/internal/platform/logging"
)

// Fallback serves from Primary and tops up from Secondary when Primary fails
// or comes back short. Errors from Primary never reach the caller.
type Fallback struct {
	Primary   Provider
	Secondary Provider
	Log       *zap.Logger
}

func (f Fallback) Fetch(ctx context.Context, count int, theme Theme) ([]Card, error) {
	log := logging.Resolve(f.Log)

	cards, err := f.Primary.Fetch(ctx, count, theme)
	if err != nil {
		log.Warn("primary content provider failed, using fallback",
			zap.String("theme", string(theme)), zap.Int("count", count), zap.Error(err))
		cards = nil
	}
	if len(cards) >= count || f.Secondary == nil {
		return cards, nil
	}

	extra, err := f.Secondary.Fetch(ctx, count-len(cards), theme)
	if err != nil {
		log.Warn("fallback content provider failed", zap.String("theme", string(theme)), zap.Error(err))
		return cards, nil
	}

	seen := make(map[string]bool, len(cards))
	for _, c := range cards {
		seen[c.ID] = true
	}
	for _, c := range extra {
		if seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		cards = append(cards, c)
	}
	return cards, nil
}

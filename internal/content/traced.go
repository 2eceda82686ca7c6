package content

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/DoyleJ11/promptparty-backend/internal/content"

// Traced records a span around every fetch of the wrapped provider.
type Traced struct {
	Next   Provider
	Tracer trace.Tracer
}

func (t Traced) Fetch(ctx context.Context, count int, theme Theme) ([]Card, error) {
	tracer := t.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	ctx, span := tracer.Start(ctx, "content.Fetch", trace.WithAttributes(
		attribute.String("content.theme", string(theme)),
		attribute.Int("content.requested", count),
	))
	defer span.End()

	cards, err := t.Next.Fetch(ctx, count, theme)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return cards, err
	}
	span.SetAttributes(attribute.Int("content.returned", len(cards)))
	return cards, nil
}

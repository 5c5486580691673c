package card

import (
	"context"
	"strings"
)

// Card is the render input: a title line and free-form body lines.
type Card struct {
	UID   int64
	Title string
	Lines []string
}

// Renderer rasterizes a card to PNG bytes.
type Renderer interface {
	Render(ctx context.Context, c Card) ([]byte, error)
}

// NewRenderer selects the configured implementation. The svg renderer is
// wrapped so that any of its failures degrade to the fallback canvas; card
// rendering never fails a command.
func NewRenderer(kind string) Renderer {
	fb := &fallbackRenderer{}
	if strings.EqualFold(strings.TrimSpace(kind), "svg") {
		return &safeRenderer{rich: &svgRenderer{}, fallback: fb}
	}
	return fb
}

type safeRenderer struct {
	rich     Renderer
	fallback Renderer
}

func (s *safeRenderer) Render(ctx context.Context, c Card) ([]byte, error) {
	if png, err := s.rich.Render(ctx, c); err == nil && len(png) > 0 {
		return png, nil
	}
	return s.fallback.Render(ctx, c)
}

package card

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

// svgRenderer rasterizes a decorated SVG backdrop and overlays the text on
// top of it. oksvg handles shapes only, so text goes through the same
// drawer the fallback uses.
type svgRenderer struct{}

func (r *svgRenderer) Render(ctx context.Context, c Card) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	icon, err := oksvg.ReadIconStream(strings.NewReader(backdropSVG(len(c.Lines))))
	if err != nil {
		return nil, fmt.Errorf("parse card svg: %w", err)
	}
	icon.SetTarget(0, 0, float64(canvasWidth), float64(canvasHeight))

	img := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	scanner := rasterx.NewScannerGV(canvasWidth, canvasHeight, img, img.Bounds())
	raster := rasterx.NewDasher(canvasWidth, canvasHeight, scanner)
	icon.Draw(raster, 1.0)

	drawLine(img, fmt.Sprintf("Genshin - UID %d", c.UID), marginX+14, titleY+12, headerColor)
	drawLine(img, c.Title, marginX+14, bodyStartY, titleColor)
	y := bodyStartY + 40
	for _, line := range c.Lines {
		if y > canvasHeight-lineHeight {
			break
		}
		drawLine(img, line, marginX+14, y, bodyColor)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card png: %w", err)
	}
	return buf.Bytes(), nil
}

// backdropSVG builds the card chrome: dark base, header band and one body
// panel sized to the line count.
func backdropSVG(lines int) string {
	panelHeight := 80 + lines*lineHeight
	if max := canvasHeight - bodyStartY - 40; panelHeight > max {
		panelHeight = max
	}
	var b strings.Builder
	fmt.Fprintf(&b, `<svg width="%d" height="%d" xmlns="http://www.w3.org/2000/svg">`, canvasWidth, canvasHeight)
	fmt.Fprintf(&b, `<rect width="%d" height="%d" fill="#16181c"/>`, canvasWidth, canvasHeight)
	fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="64" rx="12" fill="#232833"/>`, marginX-10, titleY-40, canvasWidth-2*(marginX-10))
	fmt.Fprintf(&b, `<rect x="%d" y="%d" width="%d" height="%d" rx="12" fill="#1b1f27"/>`, marginX-10, bodyStartY-30, canvasWidth-2*(marginX-10), panelHeight)
	fmt.Fprintf(&b, `<rect x="%d" y="%d" width="6" height="%d" rx="3" fill="#4c6ef5"/>`, marginX-4, bodyStartY-24, panelHeight-12)
	b.WriteString(`</svg>`)
	return b.String()
}

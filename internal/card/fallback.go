package card

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	imagedraw "image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	canvasWidth  = 900
	canvasHeight = 600
	marginX      = 30
	titleY       = 50
	bodyStartY   = 110
	lineHeight   = 34
)

var (
	backgroundColor = color.RGBA{R: 22, G: 24, B: 28, A: 255}
	headerColor     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	titleColor      = color.RGBA{R: 200, G: 220, B: 255, A: 255}
	bodyColor       = color.RGBA{R: 235, G: 235, B: 235, A: 255}
)

// fallbackRenderer draws a fixed-size, fixed-palette canvas. It is fully
// deterministic and cannot fail other than on PNG encoding.
type fallbackRenderer struct{}

func (r *fallbackRenderer) Render(ctx context.Context, c Card) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, canvasWidth, canvasHeight))
	imagedraw.Draw(img, img.Bounds(), image.NewUniform(backgroundColor), image.Point{}, imagedraw.Src)

	drawLine(img, fmt.Sprintf("Genshin - UID %d", c.UID), marginX, titleY, headerColor)
	drawLine(img, c.Title, marginX, bodyStartY-20, titleColor)

	y := bodyStartY + 20
	for _, line := range c.Lines {
		if y > canvasHeight-lineHeight {
			break
		}
		drawLine(img, line, marginX, y, bodyColor)
		y += lineHeight
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode card png: %w", err)
	}
	return buf.Bytes(), nil
}

func drawLine(dst *image.RGBA, text string, x, baseline int, clr color.Color) {
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(clr),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(text)
}

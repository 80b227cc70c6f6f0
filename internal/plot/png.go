package plot

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"
)

const strokeWidth = 1.5

func encodePNG(fig Figure, width, height int) ([]byte, error) {
	l := newLayout(fig, width, height)
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	black := rgb{}
	frame := []point{{l.left, l.top}, {l.right, l.top}, {l.right, l.bottom}, {l.left, l.bottom}, {l.left, l.top}}
	stroke(img, frame, 1, black)
	for i, s := range fig.Series {
		stroke(img, l.line(s), strokeWidth, colorAt(i))
	}

	d := &font.Drawer{Dst: img, Src: image.Black, Face: basicfont.Face7x13}
	for _, lb := range l.labels(fig) {
		d.Dot = fixed.P(int(lb.At.X), int(lb.At.Y))
		d.DrawString(lb.Text)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// stroke draws a polyline as one filled quad per segment.
func stroke(img *image.RGBA, pts []point, w float64, c rgb) {
	if len(pts) < 2 {
		return
	}
	b := img.Bounds()
	src := image.NewUniform(color.RGBA{c.R, c.G, c.B, 0xff})
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	for i := 1; i < len(pts); i++ {
		a, e := pts[i-1], pts[i]
		dx, dy := e.X-a.X, e.Y-a.Y
		n := math.Hypot(dx, dy)
		if n == 0 {
			continue
		}
		// Offset perpendicular to the segment by half the stroke width.
		ox, oy := -dy/n*w/2, dx/n*w/2
		z.MoveTo(float32(a.X+ox), float32(a.Y+oy))
		z.LineTo(float32(e.X+ox), float32(e.Y+oy))
		z.LineTo(float32(e.X-ox), float32(e.Y-oy))
		z.LineTo(float32(a.X-ox), float32(a.Y-oy))
		z.ClosePath()
		z.Draw(img, b, src, image.Point{})
		z.Reset(b.Dx(), b.Dy())
	}
}

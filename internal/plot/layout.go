package plot

import (
	"math"
	"strconv"
)

// Margins around the plot area, in pixels (PNG, SVG) or points (PDF).
const (
	marginLeft   = 60
	marginRight  = 20
	marginTop    = 40
	marginBottom = 50
)

type rgb struct{ R, G, B uint8 }

var palette = []rgb{
	{0x1f, 0x77, 0xb4},
	{0xff, 0x7f, 0x0e},
	{0x2c, 0xa0, 0x2c},
	{0xd6, 0x27, 0x28},
	{0x94, 0x67, 0xbd},
}

func colorAt(i int) rgb { return palette[i%len(palette)] }

type point struct{ X, Y float64 }

// layout maps data coordinates onto a width x height canvas with the
// origin at the top left.
type layout struct {
	width, height            float64
	left, right, top, bottom float64 // plot area edges
	minX, maxX, minY, maxY   float64
}

func newLayout(fig Figure, width, height int) layout {
	l := layout{
		width:  float64(width),
		height: float64(height),
		left:   marginLeft,
		right:  float64(width) - marginRight,
		top:    marginTop,
		bottom: float64(height) - marginBottom,
		minX:   math.Inf(1),
		maxX:   math.Inf(-1),
		minY:   math.Inf(1),
		maxY:   math.Inf(-1),
	}
	for _, s := range fig.Series {
		for i := range s.X {
			l.minX = math.Min(l.minX, s.X[i])
			l.maxX = math.Max(l.maxX, s.X[i])
			l.minY = math.Min(l.minY, s.Y[i])
			l.maxY = math.Max(l.maxY, s.Y[i])
		}
	}
	l.minX, l.maxX = span(l.minX, l.maxX)
	l.minY, l.maxY = span(l.minY, l.maxY)
	return l
}

// span widens an empty or degenerate range so it can be scaled.
func span(lo, hi float64) (float64, float64) {
	switch {
	case math.IsInf(lo, 1):
		return 0, 1
	case lo == hi:
		return lo - 0.5, hi + 0.5
	}
	return lo, hi
}

func (l layout) project(x, y float64) point {
	px := l.left + (x-l.minX)/(l.maxX-l.minX)*(l.right-l.left)
	py := l.bottom - (y-l.minY)/(l.maxY-l.minY)*(l.bottom-l.top)
	return point{px, py}
}

func (l layout) line(s Series) []point {
	pts := make([]point, len(s.X))
	for i := range s.X {
		pts[i] = l.project(s.X[i], s.Y[i])
	}
	return pts
}

// label is a piece of text anchored at its baseline start.
type label struct {
	Text string
	At   point
}

// labels lists the title, axis labels, axis range and legend entries.
func (l layout) labels(fig Figure) []label {
	var out []label
	add := func(text string, x, y float64) {
		if text != "" {
			out = append(out, label{text, point{x, y}})
		}
	}
	add(fig.Title, l.left, l.top-15)
	add(fig.XLabel, (l.left+l.right)/2, l.height-10)
	add(fig.YLabel, 5, l.top-5)
	add(formatTick(l.minX), l.left, l.bottom+15)
	add(formatTick(l.maxX), l.right-30, l.bottom+15)
	add(formatTick(l.minY), 5, l.bottom)
	add(formatTick(l.maxY), 5, l.top+10)

	y := l.top + 15
	for _, s := range fig.Series {
		if s.Label != "" {
			add(s.Label, l.right-120, y)
			y += 15
		}
	}
	return out
}

func formatTick(v float64) string {
	return strconv.FormatFloat(v, 'g', 4, 64)
}

// Package plot is the built-in figure collaborator: Starlark builtins that
// build a line figure and writers that save it as PNG, SVG or PDF.
package plot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.starlark.net/starlark"
)

const (
	DefaultWidth  = 600
	DefaultHeight = 400
)

var ErrUnsupportedFormat = errors.New("unsupported figure format")

// Series is one plotted line.
type Series struct {
	X, Y  []float64
	Label string
}

// Figure is the current figure state.
type Figure struct {
	Title  string
	XLabel string
	YLabel string
	Series []Series
}

// Plotter collects plot calls from Starlark code into a Figure.
type Plotter struct {
	Width, Height int
	fig           Figure
}

func New() *Plotter {
	return &Plotter{Width: DefaultWidth, Height: DefaultHeight}
}

// Configure installs plot, title, xlabel, ylabel and clf into env.
func (p *Plotter) Configure(env starlark.StringDict) error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("invalid figure size %dx%d", p.Width, p.Height)
	}
	env["plot"] = starlark.NewBuiltin("plot", p.plot)
	env["title"] = starlark.NewBuiltin("title", p.setter(&p.fig.Title))
	env["xlabel"] = starlark.NewBuiltin("xlabel", p.setter(&p.fig.XLabel))
	env["ylabel"] = starlark.NewBuiltin("ylabel", p.setter(&p.fig.YLabel))
	env["clf"] = starlark.NewBuiltin("clf", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
			return nil, err
		}
		p.Clear()
		return starlark.None, nil
	})
	return nil
}

// Figure returns a copy of the current figure.
func (p *Plotter) Figure() Figure {
	fig := p.fig
	fig.Series = append([]Series(nil), p.fig.Series...)
	return fig
}

// Clear resets the current figure.
func (p *Plotter) Clear() {
	p.fig = Figure{}
}

// Save writes the current figure once per path; the extension picks the
// format.
func (p *Plotter) Save(paths []string) error {
	for _, path := range paths {
		var (
			data []byte
			err  error
		)
		switch ext := strings.ToLower(filepath.Ext(path)); ext {
		case ".png":
			data, err = encodePNG(p.fig, p.Width, p.Height)
		case ".svg":
			data, err = encodeSVG(p.fig, p.Width, p.Height)
		case ".pdf":
			data = encodePDF(p.fig, p.Width, p.Height)
		default:
			return fmt.Errorf("%s: %w %q", path, ErrUnsupportedFormat, ext)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// plot(x, y=None, label="") adds a line. With one sequence it is plotted
// against its indices.
func (p *Plotter) plot(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var (
		x     starlark.Iterable
		y     starlark.Value = starlark.None
		label string
	)
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "x", &x, "y?", &y, "label?", &label); err != nil {
		return nil, err
	}

	xs, err := floats(x)
	if err != nil {
		return nil, fmt.Errorf("%s: x: %w", b.Name(), err)
	}
	var ys []float64
	if y == starlark.None {
		ys = xs
		xs = make([]float64, len(ys))
		for i := range xs {
			xs[i] = float64(i)
		}
	} else {
		iter, ok := y.(starlark.Iterable)
		if !ok {
			return nil, fmt.Errorf("%s: y: got %s, want iterable", b.Name(), y.Type())
		}
		if ys, err = floats(iter); err != nil {
			return nil, fmt.Errorf("%s: y: %w", b.Name(), err)
		}
		if len(ys) != len(xs) {
			return nil, fmt.Errorf("%s: x and y have different lengths %d and %d", b.Name(), len(xs), len(ys))
		}
	}

	p.fig.Series = append(p.fig.Series, Series{X: xs, Y: ys, Label: label})
	return starlark.None, nil
}

func (p *Plotter) setter(field *string) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var s string
		if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &s); err != nil {
			return nil, err
		}
		*field = s
		return starlark.None, nil
	}
}

func floats(v starlark.Iterable) ([]float64, error) {
	iter := v.Iterate()
	defer iter.Done()

	var out []float64
	var elem starlark.Value
	for iter.Next(&elem) {
		f, ok := starlark.AsFloat(elem)
		if !ok {
			return nil, fmt.Errorf("got %s, want number", elem.Type())
		}
		out = append(out, f)
	}
	return out, nil
}

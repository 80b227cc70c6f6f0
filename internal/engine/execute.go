package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dgallion1/docweave/internal/doctree"
	"github.com/samber/lo"
)

// ErrNoPlotter is returned for a fig=TRUE chunk in a session without a plotter.
var ErrNoPlotter = errors.New("figure requested but no plotter is configured")

// ExecError reports a code chunk that failed in batch mode.
type ExecError struct {
	Chunk int // Chunk number
	Line  int // Source line of the chunk's first line
	Err   error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("chunk %d (line %d): %v", e.Chunk, e.Line, e.Err)
}

func (e *ExecError) Unwrap() error { return e.Err }

// Execute runs one chunk and returns it with Result and figure fields set.
// Doc chunks get their inline expressions expanded; chunks of other types
// are returned untouched.
//
// A term-mode failure is recovered by re-running the whole chunk in batch
// mode, in which case the returned chunk has Options.Term set to false.
func (s *Session) Execute(ctx context.Context, c doctree.Chunk) (doctree.Chunk, error) {
	switch c.Type {
	case doctree.TypeDoc:
		content, err := s.Inline(ctx, c.Content)
		if err != nil {
			return c, fmt.Errorf("line %d: %w", c.Line, err)
		}
		c.Content = content
		return c, nil
	case doctree.TypeCode:
	default:
		return c, nil
	}

	fmt.Fprintf(s.progress, "Processing chunk %d\n", c.Number)
	if !c.Options.Evaluate {
		c.Result = ""
		return c, nil
	}
	if err := s.configurePlotter(); err != nil {
		return c, err
	}

	log := s.log.With("chunk", c.Number, "line", c.Line)
	var res Result
	if c.Options.Term {
		res = s.term(ctx, c.Options.Timeout, c.Content)
		if res.Status == Failed && ctx.Err() == nil && !errors.Is(res.Err, context.DeadlineExceeded) {
			log.Warn("chunk failed in term mode, executing with term=FALSE instead; function definitions are a known trigger",
				"error_type", fmt.Sprintf("%T", res.Err),
				"error", res.Err)
			c.Options.Term = false
			res = s.batch(ctx, c.Options.Timeout, chunkName(c), c.Content)
		}
	} else {
		res = s.batch(ctx, c.Options.Timeout, chunkName(c), c.Content)
	}
	if res.Status == Failed {
		return c, &ExecError{Chunk: c.Number, Line: c.Line, Err: res.Err}
	}
	c.Result = res.Output

	if c.Options.Fig {
		if err := s.saveFigure(&c); err != nil {
			return c, err
		}
	}
	return c, nil
}

func chunkName(c doctree.Chunk) string {
	if c.Options.Name != "" {
		return c.Options.Name
	}
	return fmt.Sprintf("chunk%d", c.Number)
}

func (s *Session) configurePlotter() error {
	if s.configured || s.plotter == nil {
		return nil
	}
	if err := s.plotter.Configure(s.env); err != nil {
		return fmt.Errorf("configure plotter: %w", err)
	}
	s.configured = true
	return nil
}

// saveFigure writes Fig<n> in every saved format and clears the figure.
func (s *Session) saveFigure(c *doctree.Chunk) error {
	if s.plotter == nil {
		return fmt.Errorf("chunk %d: %w", c.Number, ErrNoPlotter)
	}
	if s.figDir != "" {
		if err := os.MkdirAll(s.figDir, 0o755); err != nil {
			return fmt.Errorf("create figure dir: %w", err)
		}
	}

	base := filepath.Join(s.figDir, fmt.Sprintf("Fig%d", c.Number))
	paths := lo.Map(s.savedFormats, func(ext string, _ int) string {
		return base + ext
	})
	if err := s.plotter.Save(paths); err != nil {
		return fmt.Errorf("chunk %d: save figure: %w", c.Number, err)
	}
	s.plotter.Clear()

	c.Figure = base + s.figFmt
	c.SavedFigures = paths
	return nil
}

package formatter

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/dgallion1/docweave/internal/dialect"
	"github.com/dgallion1/docweave/internal/doctree"
)

// Output is the result of a formatter function: final text, a chunk to
// lay out with the built-in rules, or neither. The zero value is None;
// build one with Text, Layout or None.
type Output struct {
	text  string
	chunk *doctree.Chunk
	final bool
}

// Text returns final output that is used as is, even when empty.
func Text(s string) Output { return Output{text: s, final: true} }

// Layout hands c, possibly modified, to the built-in layout rules.
func Layout(c doctree.Chunk) Output { return Output{chunk: &c} }

// None declines to format the chunk.
func None() Output { return Output{} }

// Func formats one chunk of a given type.
type Func func(c doctree.Chunk, d dialect.Descriptor) Output

// FigureFunc renders the figure inclusion fragment for a dialect doctype.
type FigureFunc func(path, caption, width string) string

// Highlighter renders source code to styled text.
type Highlighter interface {
	Render(src string) string
}

// Dispatcher turns executed chunks into output text. Custom formatters
// take precedence over built-in ones, and doc and code chunks without a
// formatter go straight to the layout rules.
type Dispatcher struct {
	mu          sync.RWMutex
	custom      map[doctree.ChunkType]Func
	builtin     map[doctree.ChunkType]Func
	figures     map[string]FigureFunc
	highlighter Highlighter
	log         *slog.Logger
}

func New(logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		custom:  make(map[doctree.ChunkType]Func),
		builtin: make(map[doctree.ChunkType]Func),
		figures: make(map[string]FigureFunc),
		log:     logger,
	}
	d.builtin[doctree.TypeCode] = resolveWidth
	for doctype, f := range builtinFigures {
		d.figures[doctype] = f
	}
	return d
}

// Register installs a custom formatter for chunk type t.
func (d *Dispatcher) Register(t doctree.ChunkType, f Func) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.custom[t] = f
}

// RegisterFigure installs the figure fragment for a doctype.
func (d *Dispatcher) RegisterFigure(doctype string, f FigureFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.figures[doctype] = f
}

// SetHighlighter routes code through h for dialects with Highlight set.
func (d *Dispatcher) SetHighlighter(h Highlighter) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.highlighter = h
}

// Format renders one chunk. It does not modify c and returns the same
// text for the same chunk and dialect.
func (d *Dispatcher) Format(c doctree.Chunk, desc dialect.Descriptor) string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out Output
	if f, ok := d.custom[c.Type]; ok {
		out = f(c.Clone(), desc)
	} else if f, ok := d.builtin[c.Type]; ok {
		out = f(c.Clone(), desc)
	} else if c.Type == doctree.TypeDoc || c.Type == doctree.TypeCode {
		out = Layout(c)
	}

	switch {
	case out.final:
		return out.text
	case out.chunk != nil:
		return d.layout(*out.chunk, desc)
	}
	return d.unknown(c.Type)
}

func (d *Dispatcher) unknown(t doctree.ChunkType) string {
	d.log.Warn("unknown chunk type", "type", string(t))
	return fmt.Sprintf("UNKNOWN CHUNK TYPE: %s \n", t)
}

// resolveWidth fills an unset figure width from the dialect.
func resolveWidth(c doctree.Chunk, desc dialect.Descriptor) Output {
	if c.Options.Width == "" {
		c.Options.Width = desc.Width
	}
	return Layout(c)
}

func (d *Dispatcher) layout(c doctree.Chunk, desc dialect.Descriptor) string {
	switch c.Type {
	case doctree.TypeDoc:
		return c.Content
	case doctree.TypeCode:
	default:
		return d.unknown(c.Type)
	}

	opts := c.Options
	if !opts.Evaluate {
		if opts.Echo {
			return c.Content
		}
		return ""
	}

	var hl Highlighter
	if desc.Highlight {
		hl = d.highlighter
	}

	var b strings.Builder
	switch {
	case opts.Term:
		if hl != nil {
			b.WriteString(hl.Render(c.Content))
		} else {
			b.WriteString(desc.TermStart + indent("\n"+c.Result, desc.TermIndent) + desc.TermEnd)
		}
	case opts.Echo && opts.Results == doctree.ResultsVerbatim:
		if hl != nil {
			b.WriteString(hl.Render(c.Content))
		} else {
			b.WriteString(desc.CodeStart + indent("\n"+c.Content, desc.Indent) + desc.CodeEnd)
		}
		if c.Result != "" {
			if hl != nil {
				b.WriteString(hl.Render(c.Result))
			} else {
				b.WriteString(desc.OutputStart + indent("\n"+c.Result, desc.Indent) + desc.OutputEnd)
			}
		}
	case opts.Echo:
		b.WriteString(desc.CodeStart + "\n" + c.Content + desc.CodeEnd + c.Result)
	default:
		b.WriteString(c.Result)
	}

	if opts.Fig {
		b.WriteString(d.figure(c, desc))
	}
	return b.String()
}

func (d *Dispatcher) figure(c doctree.Chunk, desc dialect.Descriptor) string {
	f, ok := d.figures[desc.Doctype]
	if !ok {
		d.log.Warn("no figure fragment for doctype", "doctype", desc.Doctype, "chunk", c.Number)
		return ""
	}
	width := c.Options.Width
	if width == "" {
		width = desc.Width
	}
	return f(c.Figure, c.Options.Caption, width)
}

func indent(text, prefix string) string {
	return strings.ReplaceAll(text, "\n", "\n"+prefix)
}

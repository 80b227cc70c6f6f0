package weave

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dgallion1/docweave/internal/chunker"
	"github.com/dgallion1/docweave/internal/dialect"
	"github.com/dgallion1/docweave/internal/doctree"
	"github.com/dgallion1/docweave/internal/engine"
	"github.com/dgallion1/docweave/internal/formatter"
	"github.com/samber/lo"
	"go.starlark.net/starlark"
)

// Stage is how far a document has been processed.
type Stage int

const (
	Fresh Stage = iota
	Parsed
	Executed
	Formatted
	Written
)

func (s Stage) String() string {
	switch s {
	case Fresh:
		return "fresh"
	case Parsed:
		return "parsed"
	case Executed:
		return "executed"
	case Formatted:
		return "formatted"
	case Written:
		return "written"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

const (
	DefaultFigDir    = "figures"
	DefaultTangleExt = ".py"
)

// ErrNoSink is returned when an in-memory document is written without an output path.
var ErrNoSink = errors.New("no output path for a document without a source file")

// Options configures a Document. Zero values select the defaults.
type Options struct {
	Dialect   string // overrides front matter and the source extension
	Sink      string // output path; default is the source with the dialect extension
	FigDir    string
	TangleExt string

	Defaults   *doctree.Options // chunk option defaults; nil means doctree.DefaultOptions
	Registry   *dialect.Registry
	Formatter  *formatter.Dispatcher
	Plotter    engine.Plotter
	Timeout    time.Duration
	MaxTimeout time.Duration // caps chunk timeout options as well

	Stdout io.Writer // progress and completion messages; default os.Stdout
	Logger *slog.Logger
}

// Document is one literate source moving through parse, execute, format
// and write. Each stage runs the stages before it that have not run yet.
type Document struct {
	source string
	text   string
	loaded bool
	opts   Options
	log    *slog.Logger
	stdout io.Writer

	stage    Stage
	front    doctree.FrontMatter
	dialect  dialect.Descriptor
	chunks   []doctree.Chunk
	executed []doctree.Chunk
	output   string
	session  *engine.Session
}

// New returns a document read from source on first use.
func New(source string, opts Options) *Document {
	return newDocument(source, "", false, opts)
}

// FromString returns a document over text. name is used for messages
// and to derive output paths, and may be empty.
func FromString(name, text string, opts Options) *Document {
	return newDocument(name, text, true, opts)
}

func newDocument(source, text string, loaded bool, opts Options) *Document {
	if opts.Registry == nil {
		opts.Registry = dialect.NewRegistry()
	}
	if opts.TangleExt == "" {
		opts.TangleExt = DefaultTangleExt
	}
	d := &Document{source: source, text: text, loaded: loaded, opts: opts, log: opts.Logger, stdout: opts.Stdout}
	if d.log == nil {
		d.log = slog.Default()
	}
	if d.stdout == nil {
		d.stdout = os.Stdout
	}
	if opts.Formatter == nil {
		d.opts.Formatter = formatter.New(d.log)
	}
	return d
}

func (d *Document) Source() string { return d.source }
func (d *Document) Stage() Stage { return d.stage }
func (d *Document) FrontMatter() doctree.FrontMatter { return d.front }
func (d *Document) Dialect() dialect.Descriptor { return d.dialect }

// Chunks returns the parsed chunks, or the executed ones once Run has succeeded.
func (d *Document) Chunks() []doctree.Chunk {
	if d.stage >= Executed {
		return d.executed
	}
	return d.chunks
}

// Globals returns the execution environment. It is available after a
// failed Run, and empty before any execution.
func (d *Document) Globals() starlark.StringDict {
	if d.session == nil {
		return starlark.StringDict{}
	}
	return d.session.Globals()
}

// Parse reads the source and splits it into chunks.
func (d *Document) Parse() error {
	if d.stage >= Parsed {
		return nil
	}
	if !d.loaded {
		b, err := os.ReadFile(d.source)
		if err != nil {
			return fmt.Errorf("read source: %w", err)
		}
		d.text = string(b)
		d.loaded = true
	}

	defaults := doctree.DefaultOptions()
	if d.opts.Defaults != nil {
		defaults = d.opts.Defaults.Clone()
	}
	front, chunks, err := chunker.ParseDocument(d.text, defaults)
	if err != nil {
		return d.fail(err)
	}

	name := lo.CoalesceOrEmpty(d.opts.Dialect, front.Dialect, dialect.ForFile(d.source))
	desc, err := d.opts.Registry.Lookup(name)
	if err != nil {
		return d.fail(err)
	}

	d.front = front
	d.chunks = chunks
	d.dialect = desc
	d.stage = Parsed
	return nil
}

// Run executes every chunk in document order in a fresh session.
// The first failure stops the run; the environment it left behind
// stays available through Globals.
func (d *Document) Run(ctx context.Context) error {
	if d.stage >= Executed {
		return nil
	}
	if err := d.Parse(); err != nil {
		return err
	}

	d.session = engine.NewSession(engine.Config{
		Plotter:      d.opts.Plotter,
		FigDir:       d.FigDir(),
		FigFmt:       d.dialect.FigFmt,
		SavedFormats: d.dialect.SavedFormats,
		Progress:     d.stdout,
		Logger:       d.log,
		Timeout:      d.opts.Timeout,
		MaxTimeout:   d.opts.MaxTimeout,
	})

	executed := make([]doctree.Chunk, 0, len(d.chunks))
	for _, c := range d.chunks {
		out, err := d.session.Execute(ctx, c.Clone())
		if err != nil {
			return d.fail(err)
		}
		executed = append(executed, out)
	}
	d.executed = executed
	d.stage = Executed
	return nil
}

// FigDir is the directory figures are written to.
func (d *Document) FigDir() string {
	return lo.CoalesceOrEmpty(d.opts.FigDir, d.front.FigDir, DefaultFigDir)
}

// Format renders the executed chunks in the document's dialect.
func (d *Document) Format(ctx context.Context) error {
	if d.stage >= Formatted {
		return nil
	}
	if err := d.Run(ctx); err != nil {
		return err
	}
	parts := lo.Map(d.executed, func(c doctree.Chunk, _ int) string {
		return d.opts.Formatter.Format(c, d.dialect)
	})
	d.output = strings.Join(parts, "")
	d.stage = Formatted
	return nil
}

// Render returns the woven text without writing it.
func (d *Document) Render(ctx context.Context) (string, error) {
	if err := d.Format(ctx); err != nil {
		return "", err
	}
	return d.output, nil
}

// Sink is the output path: the configured one, or the source with its
// extension replaced by the dialect's.
func (d *Document) Sink() string {
	if d.opts.Sink != "" {
		return d.opts.Sink
	}
	if d.source == "" {
		return ""
	}
	desc := d.dialect
	if d.stage < Parsed {
		var err error
		desc, err = d.opts.Registry.Lookup(lo.CoalesceOrEmpty(d.opts.Dialect, dialect.ForFile(d.source)))
		if err != nil {
			return ""
		}
	}
	return replaceExt(d.source, "."+desc.Extension)
}

// Write stores the woven text at Sink.
func (d *Document) Write(ctx context.Context) error {
	if d.stage >= Written {
		return nil
	}
	if err := d.Format(ctx); err != nil {
		return err
	}
	sink := d.Sink()
	if sink == "" {
		return ErrNoSink
	}
	if dir := filepath.Dir(sink); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	if err := os.WriteFile(sink, []byte(d.output), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Fprintf(d.stdout, "Weaved %s to %s\n", d.source, sink)
	d.stage = Written
	return nil
}

// Weave runs every stage.
func (d *Document) Weave(ctx context.Context) error {
	return d.Write(ctx)
}

// TangleText returns the code chunks joined by newlines.
func (d *Document) TangleText() (string, error) {
	if err := d.Parse(); err != nil {
		return "", err
	}
	code := lo.FilterMap(d.chunks, func(c doctree.Chunk, _ int) (string, bool) {
		return c.Content, c.IsCode()
	})
	return strings.Join(code, "\n"), nil
}

// Tangle writes the code chunks to the source path with the tangle
// extension and returns that path. No code is executed.
func (d *Document) Tangle() (string, error) {
	text, err := d.TangleText()
	if err != nil {
		return "", err
	}
	if d.source == "" {
		return "", ErrNoSink
	}
	dst := replaceExt(d.source, d.opts.TangleExt)
	if err := os.WriteFile(dst, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write tangled code: %w", err)
	}
	fmt.Fprintf(d.stdout, "Tangled code from %s to %s\n", d.source, dst)
	return dst, nil
}

// fail logs a fatal error with its type and passes it on.
func (d *Document) fail(err error) error {
	d.log.Error("weave failed",
		"source", d.source,
		"error_type", fmt.Sprintf("%T", err),
		"error", err)
	return err
}

func replaceExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

package engine

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

// Status tags the outcome of running code.
type Status int

const (
	Completed Status = iota
	Failed
)

func (s Status) String() string {
	if s == Completed {
		return "completed"
	}
	return "failed"
}

// Result is the outcome of one execution. Output holds whatever was
// captured before a failure.
type Result struct {
	Status Status
	Output string
	Err    error
}

// Plotter is the figure collaborator. Configure runs once per session,
// before the first code chunk, and may add builtins to env.
type Plotter interface {
	Configure(env starlark.StringDict) error
	Save(paths []string) error
	Clear()
}

// Config holds session settings. Zero values select the defaults.
type Config struct {
	Plotter Plotter
	FigDir  string

	// FigFmt is the figure extension referenced from the woven document,
	// SavedFormats every extension written to disk.
	FigFmt       string
	SavedFormats []string

	Progress io.Writer     // "Processing chunk N" lines; default io.Discard
	Logger   *slog.Logger  // default slog.Default()
	Timeout  time.Duration // per-chunk bound; zero means none

	// MaxTimeout caps every chunk, including those with a timeout option.
	MaxTimeout time.Duration
}

// Session is one weave's interpreter: a persistent global environment
// and the thread that mutates it. Executions must not overlap.
type Session struct {
	env    starlark.StringDict
	thread *starlark.Thread
	syntax *syntax.FileOptions
	sink   *strings.Builder

	plotter    Plotter
	configured bool

	figDir       string
	figFmt       string
	savedFormats []string
	progress     io.Writer
	log          *slog.Logger
	timeout      time.Duration
	maxTimeout   time.Duration
}

func NewSession(cfg Config) *Session {
	s := &Session{
		env: starlark.StringDict{},
		syntax: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
			Recursion:       true,
		},
		plotter:      cfg.Plotter,
		figDir:       cfg.FigDir,
		figFmt:       cfg.FigFmt,
		savedFormats: cfg.SavedFormats,
		progress:     cfg.Progress,
		log:          cfg.Logger,
		timeout:      cfg.Timeout,
		maxTimeout:   cfg.MaxTimeout,
	}
	if s.figFmt == "" {
		s.figFmt = ".png"
	}
	if len(s.savedFormats) == 0 {
		s.savedFormats = []string{s.figFmt}
	}
	if s.progress == nil {
		s.progress = io.Discard
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	s.thread = &starlark.Thread{
		Name: "weave",
		Print: func(_ *starlark.Thread, msg string) {
			if s.sink != nil {
				s.sink.WriteString(msg)
				s.sink.WriteByte('\n')
			}
		},
	}
	return s
}

// Globals returns a snapshot of the environment. It stays available
// after an execution error.
func (s *Session) Globals() starlark.StringDict {
	return maps.Clone(s.env)
}

// capture redirects print output into a fresh buffer while fn runs.
// The previous sink is restored on every path.
func (s *Session) capture(fn func(w *strings.Builder) error) (string, error) {
	var buf strings.Builder
	prev := s.sink
	s.sink = &buf
	defer func() { s.sink = prev }()

	err := fn(&buf)
	return buf.String(), err
}

// bound runs fn with the thread cancelled when ctx ends or the timeout
// expires. A zero timeout falls back to the session default; neither may
// exceed the session maximum.
func (s *Session) bound(ctx context.Context, timeout time.Duration, fn func() error) error {
	if timeout <= 0 {
		timeout = s.timeout
	}
	if s.maxTimeout > 0 && (timeout <= 0 || timeout > s.maxTimeout) {
		timeout = s.maxTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s.thread.Uncancel()
	stop := context.AfterFunc(ctx, func() {
		s.thread.Cancel(context.Cause(ctx).Error())
	})
	defer stop()

	err := fn()
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return err
}

// Batch runs src as one unit against the environment.
func (s *Session) Batch(ctx context.Context, name, src string) Result {
	return s.batch(ctx, 0, name, src)
}

func (s *Session) batch(ctx context.Context, timeout time.Duration, name, src string) Result {
	out, err := s.capture(func(*strings.Builder) error {
		return s.bound(ctx, timeout, func() error {
			f, err := s.syntax.Parse(name, src, 0)
			if err != nil {
				return err
			}
			return starlark.ExecREPLChunk(f, s.thread, s.env)
		})
	})
	return result(out, err)
}

func result(out string, err error) Result {
	if err != nil {
		return Result{Status: Failed, Output: out, Err: err}
	}
	return Result{Status: Completed, Output: out}
}

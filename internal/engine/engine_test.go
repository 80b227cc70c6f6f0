package engine

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/docweave/internal/doctree"
	"github.com/google/go-cmp/cmp"
	"go.starlark.net/starlark"
)

type fakePlotter struct {
	configured int
	saved      [][]string
	cleared    int
}

func (p *fakePlotter) Configure(env starlark.StringDict) error {
	p.configured++
	env["plotted"] = starlark.False
	return nil
}

func (p *fakePlotter) Save(paths []string) error {
	p.saved = append(p.saved, paths)
	return nil
}

func (p *fakePlotter) Clear() { p.cleared++ }

func codeChunk(n int, src string, mutate func(*doctree.Options)) doctree.Chunk {
	opts := doctree.DefaultOptions()
	if mutate != nil {
		mutate(&opts)
	}
	return doctree.Chunk{Type: doctree.TypeCode, Content: src, Number: n, Line: n * 10, Options: opts}
}

func TestBatch_CapturesPrintOutput(t *testing.T) {
	s := NewSession(Config{})
	res := s.Batch(context.Background(), "test", "x = 1+1\nprint(x)\nprint('done')\n")
	if res.Status != Completed {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	if res.Output != "2\ndone\n" {
		t.Errorf("expected captured output %q, got %q", "2\ndone\n", res.Output)
	}
}

func TestBatch_ErrorKeepsEnvironment(t *testing.T) {
	s := NewSession(Config{})
	res := s.Batch(context.Background(), "test", "a = 41\nprint('before')\nfail('boom')\n")
	if res.Status != Failed || res.Err == nil {
		t.Fatalf("expected failure, got %+v", res)
	}
	if !strings.Contains(res.Err.Error(), "boom") {
		t.Errorf("expected error to mention boom, got %v", res.Err)
	}
	if res.Output != "before\n" {
		t.Errorf("expected partial output, got %q", res.Output)
	}
	if v := s.Globals()["a"]; v == nil || v.String() != "41" {
		t.Errorf("expected a=41 to survive the error, got %v", v)
	}
}

func TestBatch_GlobalsPersistAcrossRuns(t *testing.T) {
	s := NewSession(Config{})
	ctx := context.Background()
	if res := s.Batch(ctx, "one", "def double(n):\n    return n * 2\nx = 5\n"); res.Status != Completed {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	res := s.Batch(ctx, "two", "x = double(x)\nprint(x)\n")
	if res.Status != Completed || res.Output != "10\n" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestTerm_Transcript(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "simple statements",
			src:  "x = 1\nx + 1\nprint('hi')\n",
			want: ">>> x = 1\n>>> x + 1\n2\n>>> print('hi')\nhi\n",
		},
		{
			name: "none is not echoed",
			src:  "None\n'a' * 2\n",
			want: ">>> None\n>>> 'a' * 2\n\"aa\"\n",
		},
		{
			name: "block closed by blank line",
			src:  "def f(x):\n    return x * 2\n\nf(3)\n",
			want: ">>> def f(x):\n...     return x * 2\n... \n... \n>>> f(3)\n6\n",
		},
		{
			name: "block closed by next statement",
			src:  "def f():\n    return 1\nprint(f())\n",
			want: ">>> def f():\n...     return 1\n... \n>>> print(f())\n1\n",
		},
		{
			name: "block closed at end of chunk",
			src:  "for i in range(2):\n    print(i)\n",
			want: ">>> for i in range(2):\n...     print(i)\n... \n0\n1\n",
		},
		{
			name: "else continues the block",
			src:  "if False:\n    print('a')\nelse:\n    print('b')\n",
			want: ">>> if False:\n...     print('a')\n... else:\n...     print('b')\n... \nb\n",
		},
		{
			name: "leading whitespace trimmed",
			src:  "\n\n  y = 3\ny\n",
			want: ">>> y = 3\n>>> y\n3\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewSession(Config{})
			res := s.Term(context.Background(), tt.src)
			if res.Status != Completed {
				t.Fatalf("unexpected failure: %v", res.Err)
			}
			if diff := cmp.Diff(tt.want, res.Output); diff != "" {
				t.Errorf("transcript mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestTerm_SyntaxErrorFails(t *testing.T) {
	s := NewSession(Config{})
	if res := s.Term(context.Background(), "x = = 1\n"); res.Status != Failed {
		t.Fatalf("expected failure, got %+v", res)
	}
}

// forwardRef fails statement by statement because f refers to g before g
// exists, but runs fine as a whole.
const forwardRef = "def f():\n    return g()\ndef g():\n    return 1\nprint(f())\n"

func TestExecute_TermFallsBackToBatch(t *testing.T) {
	var progress bytes.Buffer
	s := NewSession(Config{Progress: &progress})

	c, err := s.Execute(context.Background(), codeChunk(1, forwardRef, nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Options.Term {
		t.Error("expected term to be forced off after fallback")
	}
	if c.Result != "1\n" {
		t.Errorf("expected batch result %q, got %q", "1\n", c.Result)
	}
	if progress.String() != "Processing chunk 1\n" {
		t.Errorf("unexpected progress output %q", progress.String())
	}
}

func TestExecute_BatchFailureIsFatal(t *testing.T) {
	s := NewSession(Config{})
	_, err := s.Execute(context.Background(), codeChunk(3, "x = 1\nundefined_name\n", func(o *doctree.Options) {
		o.Term = false
	}))
	var execErr *ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected *ExecError, got %T: %v", err, err)
	}
	if execErr.Chunk != 3 || execErr.Line != 30 {
		t.Errorf("unexpected error location: %+v", execErr)
	}
}

func TestExecute_EvaluateFalse(t *testing.T) {
	p := &fakePlotter{}
	s := NewSession(Config{Plotter: p})
	c, err := s.Execute(context.Background(), codeChunk(1, "fail('never')\n", func(o *doctree.Options) {
		o.Evaluate = false
		o.Fig = true
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Result != "" || c.Figure != "" || len(p.saved) != 0 {
		t.Errorf("expected nothing to run, got %+v", c)
	}
}

func TestExecute_FigWithoutPlotter(t *testing.T) {
	s := NewSession(Config{})
	_, err := s.Execute(context.Background(), codeChunk(1, "x = 1\n", func(o *doctree.Options) {
		o.Fig = true
	}))
	if !errors.Is(err, ErrNoPlotter) {
		t.Fatalf("expected ErrNoPlotter, got %v", err)
	}
}

func TestExecute_SavesFigureInEveryFormat(t *testing.T) {
	dir := t.TempDir()
	p := &fakePlotter{}
	s := NewSession(Config{
		Plotter:      p,
		FigDir:       dir,
		FigFmt:       ".*",
		SavedFormats: []string{".png", ".pdf"},
	})

	ctx := context.Background()
	if _, err := s.Execute(ctx, codeChunk(1, "a = plotted\n", nil)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	c, err := s.Execute(ctx, codeChunk(2, "b = 2\n", func(o *doctree.Options) { o.Fig = true }))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if p.configured != 1 {
		t.Errorf("expected plotter configured once, got %d", p.configured)
	}
	want := []string{filepath.Join(dir, "Fig2.png"), filepath.Join(dir, "Fig2.pdf")}
	if diff := cmp.Diff([][]string{want}, p.saved); diff != "" {
		t.Errorf("saved paths mismatch (-want +got):\n%s", diff)
	}
	if p.cleared != 1 {
		t.Errorf("expected figure cleared once, got %d", p.cleared)
	}
	if c.Figure != filepath.Join(dir, "Fig2.*") {
		t.Errorf("unexpected display path %q", c.Figure)
	}
	if diff := cmp.Diff(want, c.SavedFigures); diff != "" {
		t.Errorf("saved figures mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_DocChunkInline(t *testing.T) {
	s := NewSession(Config{})
	ctx := context.Background()
	if res := s.Batch(ctx, "setup", "x = 2\n"); res.Status != Completed {
		t.Fatalf("unexpected failure: %v", res.Err)
	}
	doc := doctree.Chunk{Type: doctree.TypeDoc, Content: "x is <py>x</py>.\n", Options: doctree.DefaultOptions()}
	c, err := s.Execute(ctx, doc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Content != "x is 2.\n" {
		t.Errorf("unexpected content %q", c.Content)
	}
}

func TestExecute_UnknownTypePassesThrough(t *testing.T) {
	s := NewSession(Config{})
	in := doctree.Chunk{Type: "table", Content: "fail()"}
	out, err := s.Execute(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("chunk changed (-want +got):\n%s", diff)
	}
}

func TestInline(t *testing.T) {
	s := NewSession(Config{})
	ctx := context.Background()
	s.Batch(ctx, "setup", "x = 2\nname = 'weave'\n")

	tests := []struct {
		in   string
		want string
	}{
		{"no markers here", "no markers here"},
		{"answer: <py>x * 21</py>!", "answer: 42!"},
		{"<pycode>name</pycode> and <py>x</py>", "weave and 2"},
		{"<py>[1, 2]</py>", "[1, 2]"},
	}
	for _, tt := range tests {
		got, err := s.Inline(ctx, tt.in)
		if err != nil {
			t.Errorf("Inline(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Inline(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestInline_Error(t *testing.T) {
	s := NewSession(Config{})
	if _, err := s.Inline(context.Background(), "value <py>missing</py>"); err == nil {
		t.Fatal("expected error for undefined name")
	}
}

func TestTimeout(t *testing.T) {
	s := NewSession(Config{Timeout: 50 * time.Millisecond})
	ctx := context.Background()

	res := s.Batch(ctx, "spin", "while True:\n    pass\n")
	if res.Status != Failed || !errors.Is(res.Err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline failure, got %+v", res)
	}

	if res := s.Batch(ctx, "after", "print('alive')\n"); res.Status != Completed || res.Output != "alive\n" {
		t.Fatalf("session unusable after timeout: %+v", res)
	}
}

func TestExecute_MaxTimeoutCapsChunkOption(t *testing.T) {
	s := NewSession(Config{MaxTimeout: 20 * time.Millisecond})
	start := time.Now()
	_, err := s.Execute(context.Background(), codeChunk(1, "while True:\n    pass\n", func(o *doctree.Options) {
		o.Timeout = time.Hour
	}))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("chunk ran for %v past the session maximum", elapsed)
	}
}

func TestExecute_ChunkTimeoutSkipsFallback(t *testing.T) {
	s := NewSession(Config{})
	_, err := s.Execute(context.Background(), codeChunk(1, "while True:\n    pass\n", func(o *doctree.Options) {
		o.Timeout = 20 * time.Millisecond
	}))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

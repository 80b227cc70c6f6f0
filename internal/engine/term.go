package engine

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

const (
	primaryPrompt      = ">>> "
	continuationPrompt = "... "
)

var errIncomplete = errors.New("incomplete statement")

// Term replays src statement by statement and returns the session
// transcript: each source line behind a prompt, followed by whatever the
// statement printed and the repr of a non-None expression value.
func (s *Session) Term(ctx context.Context, src string) Result {
	return s.term(ctx, 0, src)
}

func (s *Session) term(ctx context.Context, timeout time.Duration, src string) Result {
	var transcript strings.Builder
	err := s.bound(ctx, timeout, func() error {
		var pending []string

		// run executes a parsed statement. Multi-line statements, and
		// blocks closed on the reader's behalf, end with an empty
		// continuation prompt in the transcript.
		run := func(f *syntax.File, closed bool) error {
			if closed || len(pending) > 1 {
				transcript.WriteString(continuationPrompt + "\n")
			}
			pending = nil
			return s.runStatement(f, &transcript)
		}

		for _, line := range splitLines(strings.TrimLeft(src, " \t\r\n")) {
			// A new top-level statement ends a pending block the way a blank
			// line would in an interactive session.
			if len(pending) > 0 && startsStatement(line) {
				if f, err := s.compile(append(slices.Clip(pending), "")); err == nil {
					if err := run(f, true); err != nil {
						return err
					}
				}
			}

			prompt := primaryPrompt
			if len(pending) > 0 {
				prompt = continuationPrompt
			}
			transcript.WriteString(prompt + line + "\n")
			pending = append(pending, line)

			f, err := s.compile(pending)
			if errors.Is(err, errIncomplete) {
				continue
			}
			if err != nil {
				return err
			}
			if err := run(f, false); err != nil {
				return err
			}
		}

		if len(pending) > 0 {
			f, err := s.compile(append(slices.Clip(pending), ""))
			if errors.Is(err, errIncomplete) {
				return errors.New("unexpected end of chunk inside a statement")
			}
			if err != nil {
				return err
			}
			return run(f, true)
		}
		return nil
	})
	return result(transcript.String(), err)
}

// compile parses lines as one interactive statement. Running out of lines
// before the statement ends reports errIncomplete.
func (s *Session) compile(lines []string) (*syntax.File, error) {
	i := 0
	exhausted := false
	readline := func() ([]byte, error) {
		if i == len(lines) {
			exhausted = true
			return nil, errIncomplete
		}
		line := lines[i] + "\n"
		i++
		return []byte(line), nil
	}

	f, err := s.syntax.ParseCompoundStmt("<term>", readline)
	if exhausted {
		return nil, errIncomplete
	}
	return f, err
}

func (s *Session) runStatement(f *syntax.File, transcript *strings.Builder) error {
	if len(f.Stmts) == 0 {
		return nil
	}
	out, err := s.capture(func(w *strings.Builder) error {
		if expr := soleExpr(f); expr != nil {
			v, err := starlark.EvalExprOptions(s.syntax, s.thread, expr, s.env)
			if err != nil {
				return err
			}
			if v != starlark.None {
				w.WriteString(v.String())
			}
			return nil
		}
		return starlark.ExecREPLChunk(f, s.thread, s.env)
	})
	for _, line := range splitLines(out) {
		transcript.WriteString(line + "\n")
	}
	return err
}

func soleExpr(f *syntax.File) syntax.Expr {
	if len(f.Stmts) == 1 {
		if stmt, ok := f.Stmts[0].(*syntax.ExprStmt); ok {
			return stmt.X
		}
	}
	return nil
}

// startsStatement reports whether line begins a new top-level statement
// rather than continuing the current block.
func startsStatement(line string) bool {
	if line == "" || line[0] == ' ' || line[0] == '\t' || line[0] == '#' {
		return false
	}
	word := strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t' || r == ':'
	})
	if len(word) > 0 && (word[0] == "else" || word[0] == "elif") {
		return false
	}
	return true
}

// splitLines splits like str.splitlines for \n and \r\n endings: no
// trailing empty element.
func splitLines(s string) []string {
	if s == "" {
		return nil
	}
	s = strings.TrimSuffix(s, "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

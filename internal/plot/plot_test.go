package plot

import (
	"bytes"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	pdflib "github.com/ledongthuc/pdf"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
	"golang.org/x/net/html"
)

func run(t *testing.T, p *Plotter, src string) error {
	t.Helper()
	env := starlark.StringDict{}
	if err := p.Configure(env); err != nil {
		t.Fatalf("configure: %v", err)
	}
	thread := &starlark.Thread{Name: "plot-test"}
	_, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, "test.star", src, env)
	return err
}

func TestBuiltins(t *testing.T) {
	p := New()
	err := run(t, p, `
plot([1, 4, 9])
plot([0, 1, 2], [2.5, 2, 1.5], label="falling")
title("Growth")
xlabel("step")
ylabel("value")
`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := Figure{
		Title:  "Growth",
		XLabel: "step",
		YLabel: "value",
		Series: []Series{
			{X: []float64{0, 1, 2}, Y: []float64{1, 4, 9}},
			{X: []float64{0, 1, 2}, Y: []float64{2.5, 2, 1.5}, Label: "falling"},
		},
	}
	if diff := cmp.Diff(want, p.Figure()); diff != "" {
		t.Errorf("figure mismatch (-want +got):\n%s", diff)
	}
}

func TestBuiltins_Clf(t *testing.T) {
	p := New()
	if err := run(t, p, "plot([1, 2])\ntitle('x')\nclf()\n"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff(Figure{}, p.Figure()); diff != "" {
		t.Errorf("expected empty figure (-want +got):\n%s", diff)
	}
}

func TestBuiltins_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"length mismatch", "plot([1, 2], [1])"},
		{"non numeric", "plot(['a'])"},
		{"not iterable", "plot(1)"},
		{"title type", "title(1)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(t, New(), tt.src); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestConfigure_InvalidSize(t *testing.T) {
	p := &Plotter{}
	if err := p.Configure(starlark.StringDict{}); err == nil {
		t.Fatal("expected error for zero size")
	}
}

func sampleFigure() *Plotter {
	p := New()
	p.fig = Figure{
		Title:  "Growth (a\\b)",
		XLabel: "step",
		Series: []Series{
			{X: []float64{0, 1, 2}, Y: []float64{1, 4, 9}, Label: "squares"},
			{X: []float64{0, 1, 2}, Y: []float64{2, 2, 2}},
		},
	}
	return p
}

func TestSave_AllFormats(t *testing.T) {
	dir := t.TempDir()
	p := sampleFigure()
	paths := []string{
		filepath.Join(dir, "Fig1.png"),
		filepath.Join(dir, "Fig1.svg"),
		filepath.Join(dir, "Fig1.pdf"),
	}
	if err := p.Save(paths); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	t.Run("png", func(t *testing.T) {
		f, err := os.Open(paths[0])
		if err != nil {
			t.Fatal(err)
		}
		defer f.Close()
		img, err := png.Decode(f)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if b := img.Bounds(); b.Dx() != DefaultWidth || b.Dy() != DefaultHeight {
			t.Errorf("unexpected size %v", b)
		}
		// The first series runs from the bottom left corner of the plot area.
		r, g, b, _ := img.At(marginLeft+1, DefaultHeight-marginBottom-1).RGBA()
		if r == 0xffff && g == 0xffff && b == 0xffff {
			t.Error("expected the line to cover the plot origin")
		}
	})

	t.Run("svg", func(t *testing.T) {
		data, err := os.ReadFile(paths[1])
		if err != nil {
			t.Fatal(err)
		}
		doc, err := html.Parse(bytes.NewReader(data))
		if err != nil {
			t.Fatalf("parse: %v", err)
		}
		var lines, texts int
		var walk func(*html.Node)
		walk = func(n *html.Node) {
			if n.Type == html.ElementNode {
				switch n.Data {
				case "polyline":
					lines++
				case "text":
					texts++
				}
			}
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				walk(c)
			}
		}
		walk(doc)
		if lines != 2 {
			t.Errorf("expected 2 polylines, got %d", lines)
		}
		if texts == 0 {
			t.Error("expected text labels")
		}
		if !strings.Contains(string(data), "squares") {
			t.Error("expected series label in svg")
		}
	})

	t.Run("pdf", func(t *testing.T) {
		data, err := os.ReadFile(paths[2])
		if err != nil {
			t.Fatal(err)
		}
		r, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			t.Fatalf("open: %v", err)
		}
		if r.NumPage() != 1 {
			t.Fatalf("expected 1 page, got %d", r.NumPage())
		}
		text, err := r.Page(1).GetPlainText(nil)
		if err != nil {
			t.Fatalf("extract text: %v", err)
		}
		for _, want := range []string{`Growth (a\b)`, "step", "squares"} {
			if !strings.Contains(text, want) {
				t.Errorf("expected %q in page text %q", want, text)
			}
		}
	})
}

func TestSave_EmptyFigure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.png")
	if err := New().Save([]string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected file: %v", err)
	}
}

func TestSave_UnsupportedFormat(t *testing.T) {
	err := New().Save([]string{filepath.Join(t.TempDir(), "Fig1.*")})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestPDFNum(t *testing.T) {
	tests := map[float64]string{0: "0", 10: "10", 1.5: "1.5", 0.126: "0.13", 350: "350"}
	for in, want := range tests {
		if got := pdfNum(in); got != want {
			t.Errorf("pdfNum(%v) = %q, want %q", in, got, want)
		}
	}
}

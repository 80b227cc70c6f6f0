package publish

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fumiama/go-docx"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/net/html"
)

const woven = "# Results\n\n" +
	"Some *text*.\n\n" +
	"~~~~{.python}\nx = 1\nprint(x)\n~~~~~~~~~~~~~\n\n" +
	"- one\n- two\n\n" +
	"![Squares](Fig1.png)\n"

func TestForFile(t *testing.T) {
	cases := map[string]any{
		"out.html": &HTMLPublisher{},
		"OUT.HTM":  &HTMLPublisher{},
		"out.docx": &DOCXPublisher{},
	}
	for name, want := range cases {
		p, err := ForFile(name)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", name, err)
		}
		if got, want := typeName(p), typeName(want); got != want {
			t.Errorf("%s: got %s, want %s", name, got, want)
		}
	}
	if _, err := ForFile("out.odt"); err == nil {
		t.Error("expected error for unsupported extension")
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *HTMLPublisher:
		return "html"
	case *DOCXPublisher:
		return "docx"
	}
	return "unknown"
}

func TestHTML_Page(t *testing.T) {
	var buf bytes.Buffer
	if err := (&HTMLPublisher{}).Publish(&buf, []byte(woven), Meta{Name: "report.pmd"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if !strings.HasPrefix(buf.String(), "<!DOCTYPE html>") {
		t.Errorf("missing doctype: %.40q", buf.String())
	}

	doc, err := html.Parse(&buf)
	if err != nil {
		t.Fatalf("parse output: %v", err)
	}
	if got := findTitle(doc); got != "Results" {
		t.Errorf("title: got %q, want %q", got, "Results")
	}

	var classes, images []string
	walk(doc, func(n *html.Node) {
		switch n.Data {
		case "code":
			classes = append(classes, attr(n, "class"))
		case "img":
			images = append(images, attr(n, "src")+"|"+attr(n, "alt"))
		}
	})
	if diff := cmp.Diff([]string{"language-python"}, classes); diff != "" {
		t.Errorf("code classes (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Fig1.png|Squares"}, images); diff != "" {
		t.Errorf("images (-want +got):\n%s", diff)
	}
}

func TestHTML_Title(t *testing.T) {
	cases := []struct {
		name  string
		text  string
		meta  Meta
		title string
	}{
		{"explicit", "# Heading\n", Meta{Title: "Given"}, "Given"},
		{"first heading", "intro\n\n## Second level\n", Meta{}, "Second level"},
		{"file name", "no headings\n", Meta{Name: "dir/notes.pmd"}, "notes"},
		{"nothing", "no headings\n", Meta{}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := (&HTMLPublisher{}).Publish(&buf, []byte(tc.text), tc.meta); err != nil {
				t.Fatalf("publish: %v", err)
			}
			doc, err := html.Parse(&buf)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if got := findTitle(doc); got != tc.title {
				t.Errorf("got %q, want %q", got, tc.title)
			}
		})
	}
}

func findTitle(doc *html.Node) string {
	var title string
	walk(doc, func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "title" && title == "" {
			title = textContent(n)
		}
	})
	return title
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 40, 20))
	for x := range 40 {
		img.Set(x, 10, color.Black)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create png: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}
}

type paragraph struct {
	Style   string
	Text    string
	Drawing bool
}

func readDOCX(t *testing.T, b []byte) []paragraph {
	t.Helper()
	doc, err := docx.Parse(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		t.Fatalf("parse docx: %v", err)
	}
	var out []paragraph
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}
		var p paragraph
		if para.Properties != nil && para.Properties.Style != nil {
			p.Style = para.Properties.Style.Val
		}
		var text strings.Builder
		for _, child := range para.Children {
			run, ok := child.(*docx.Run)
			if !ok {
				continue
			}
			for _, rc := range run.Children {
				switch v := rc.(type) {
				case *docx.Text:
					text.WriteString(v.Text)
				case *docx.Tab:
					text.WriteByte('\t')
				case *docx.BarterRabbet:
					text.WriteByte('\n')
				case *docx.Drawing:
					p.Drawing = true
				}
			}
		}
		p.Text = text.String()
		out = append(out, p)
	}
	return out
}

func TestDOCX_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	writePNG(t, filepath.Join(dir, "Fig1.png"))

	var buf bytes.Buffer
	err := (&DOCXPublisher{}).Publish(&buf, []byte(woven), Meta{Title: "Weekly report", BaseDir: dir})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}

	want := []paragraph{
		{Style: "Title", Text: "Weekly report"},
		{Style: "Heading1", Text: "Results"},
		{Text: "Some text."},
		{Text: "x = 1\nprint(x)"},
		{Text: "•\tone"},
		{Text: "•\ttwo"},
		{Drawing: true},
		{Style: "Caption", Text: "Squares"},
	}
	if diff := cmp.Diff(want, readDOCX(t, buf.Bytes())); diff != "" {
		t.Errorf("paragraphs (-want +got):\n%s", diff)
	}
}

func TestDOCX_OrderedList(t *testing.T) {
	var buf bytes.Buffer
	if err := (&DOCXPublisher{}).Publish(&buf, []byte("3. three\n4. four\n"), Meta{}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	want := []paragraph{{Text: "3.\tthree"}, {Text: "4.\tfour"}}
	if diff := cmp.Diff(want, readDOCX(t, buf.Bytes())); diff != "" {
		t.Errorf("paragraphs (-want +got):\n%s", diff)
	}
}

func TestDOCX_MissingFigure(t *testing.T) {
	var buf bytes.Buffer
	err := (&DOCXPublisher{}).Publish(&buf, []byte("![x](missing.png)\n"), Meta{BaseDir: t.TempDir()})
	if err == nil || !strings.Contains(err.Error(), "missing.png") {
		t.Fatalf("expected an error naming the figure, got %v", err)
	}
}

package dialect

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLookup_TexBackFill(t *testing.T) {
	d, err := Lookup("tex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TermStart != d.CodeStart || d.TermEnd != d.CodeEnd || d.TermIndent != d.Indent {
		t.Errorf("terminal delimiters not back-filled from code: %+v", d)
	}
	if diff := cmp.Diff([]string{".pdf"}, d.SavedFormats); diff != "" {
		t.Errorf("saved formats mismatch (-want +got):\n%s", diff)
	}
	if d.CodeEnd != "\\end{verbatim}\n" || d.Width != `\textwidth` {
		t.Errorf("unexpected tex delimiters: %+v", d)
	}
	if !d.Highlight {
		t.Error("expected tex to route through a highlighter")
	}
}

func TestLookup_ExplicitEmptyIsNotBackFilled(t *testing.T) {
	d, err := Lookup("rst")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.TermStart != "" {
		t.Errorf("expected empty termstart, got %q", d.TermStart)
	}
	if d.Indent != "    " || d.TermIndent != "" {
		t.Errorf("unexpected indents: %q %q", d.Indent, d.TermIndent)
	}
}

func TestLookup_SphinxSeparatesDisplayAndSavedFormats(t *testing.T) {
	d, err := Lookup("sphinx")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.FigFmt != ".*" {
		t.Errorf("expected display extension .*, got %q", d.FigFmt)
	}
	if diff := cmp.Diff([]string{".png", ".pdf"}, d.SavedFormats); diff != "" {
		t.Errorf("saved formats mismatch (-want +got):\n%s", diff)
	}
	if d.Doctype != "rst" || d.Extension != "rst" {
		t.Errorf("unexpected doctype/extension: %q %q", d.Doctype, d.Extension)
	}
}

func TestLookup_Unknown(t *testing.T) {
	_, err := NewRegistry().Lookup("troff")
	if !errors.Is(err, ErrUnknownDialect) {
		t.Fatalf("expected ErrUnknownDialect, got %v", err)
	}
}

func TestFill_SavedFormatsNotShared(t *testing.T) {
	s := Spec{SavedFormats: []string{".png"}}
	d := s.Fill("x")
	d.SavedFormats[0] = ".svg"
	if s.SavedFormats[0] != ".png" {
		t.Error("descriptor aliases the spec's saved formats")
	}
}

func TestRegistry_RegisterWithBase(t *testing.T) {
	r := NewRegistry()
	if err := r.Register("md-wide", Spec{Base: "pandoc", Width: str("100%")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	d, err := r.Lookup("md-wide")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Width != "100%" || d.CodeStart != "~~~~{.python}" || d.Doctype != "pandoc" {
		t.Errorf("unexpected descriptor: %+v", d)
	}
	if d.Name != "md-wide" {
		t.Errorf("expected name md-wide, got %q", d.Name)
	}

	if err := r.Register("orphan", Spec{Base: "nope"}); !errors.Is(err, ErrUnknownDialect) {
		t.Errorf("expected ErrUnknownDialect for missing base, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	want := []string{"minted", "pandoc", "rst", "sphinx", "tex"}
	if diff := cmp.Diff(want, NewRegistry().Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
}

func TestForFile(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"report.texw", "tex"},
		{"report.Pnw", "tex"},
		{"notes.rstw", "rst"},
		{"README.mdw", "pandoc"},
		{"post.pmd", "pandoc"},
		{"unknown.txt", DefaultName},
		{"noext", DefaultName},
	}
	for _, tt := range tests {
		if got := ForFile(tt.file); got != tt.want {
			t.Errorf("ForFile(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func writeCUE(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialects.cue")
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadCUE(t *testing.T) {
	path := writeCUE(t, `
dialects: {
	wiki: {
		base:      "pandoc"
		codestart: "<syntaxhighlight lang=\"python\">"
		codeend:   "</syntaxhighlight>\n"
		extension: "wiki"
	}
	wikiterm: {
		base:      "wiki"
		termstart: "<pre>"
		termend:   "</pre>\n"
	}
	plain: {
		codestart:    "<<<"
		codeend:      ">>>\n"
		savedformats: [".svg", ".png"]
	}
}
`)
	r := NewRegistry()
	names, err := r.LoadCUE(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diff := cmp.Diff([]string{"plain", "wiki", "wikiterm"}, names); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}

	wiki, err := r.Lookup("wiki")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wiki.CodeStart != `<syntaxhighlight lang="python">` || wiki.OutputStart != "~~~~{.python}" {
		t.Errorf("unexpected wiki delimiters: %+v", wiki)
	}
	if wiki.Extension != "wiki" || wiki.Doctype != "pandoc" {
		t.Errorf("unexpected wiki extension/doctype: %q %q", wiki.Extension, wiki.Doctype)
	}

	term, err := r.Lookup("wikiterm")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if term.TermStart != "<pre>" || term.CodeStart != wiki.CodeStart {
		t.Errorf("unexpected wikiterm descriptor: %+v", term)
	}

	plain, err := r.Lookup("plain")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plain.OutputStart != "<<<" || plain.TermEnd != ">>>\n" || plain.Doctype != "plain" {
		t.Errorf("unexpected plain descriptor: %+v", plain)
	}
	if diff := cmp.Diff([]string{".svg", ".png"}, plain.SavedFormats); diff != "" {
		t.Errorf("saved formats mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadCUE_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown field", `dialects: x: {codestrat: "oops"}`},
		{"wrong type", `dialects: x: {indent: 4}`},
		{"unknown top level", `formats: {}`},
		{"syntax", `dialects: {`},
		{"missing base", `dialects: x: {base: "nope"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewRegistry().LoadCUE(writeCUE(t, tt.src)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadCUE_NoDialects(t *testing.T) {
	names, err := NewRegistry().LoadCUE(writeCUE(t, "// empty\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no dialects, got %v", names)
	}
}

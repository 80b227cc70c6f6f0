package dialect

// Spec declares an output dialect. Nil fields are unset and are back-filled
// by Fill; an explicit empty string is a real value and is kept.
type Spec struct {
	Base string `json:"base,omitempty"` // Registered dialect supplying unset fields

	CodeStart    *string  `json:"codestart,omitempty"`
	CodeEnd      *string  `json:"codeend,omitempty"`
	OutputStart  *string  `json:"outputstart,omitempty"`
	OutputEnd    *string  `json:"outputend,omitempty"`
	TermStart    *string  `json:"termstart,omitempty"`
	TermEnd      *string  `json:"termend,omitempty"`
	Indent       *string  `json:"indent,omitempty"`
	TermIndent   *string  `json:"termindent,omitempty"`
	FigFmt       *string  `json:"figfmt,omitempty"`
	SavedFormats []string `json:"savedformats,omitempty"`
	Extension    *string  `json:"extension,omitempty"`
	Width        *string  `json:"width,omitempty"`
	Doctype      *string  `json:"doctype,omitempty"`
	Highlight    *bool    `json:"highlight,omitempty"`
}

// Descriptor is a fully resolved dialect. Every field is concrete.
type Descriptor struct {
	Name string

	CodeStart   string
	CodeEnd     string
	OutputStart string
	OutputEnd   string
	TermStart   string
	TermEnd     string
	Indent      string
	TermIndent  string

	// FigFmt is the extension used when referencing a figure from the
	// woven document. SavedFormats lists every extension written to disk.
	FigFmt       string
	SavedFormats []string

	Extension string // Woven file extension, without the dot
	Width     string // Default figure width
	Doctype   string // Selects the figure fragment
	Highlight bool   // Route code through a configured highlighter
}

// Over returns s with its unset fields taken from base.
func (s Spec) Over(base Spec) Spec {
	pick := func(v, b *string) *string {
		if v != nil {
			return v
		}
		return b
	}
	out := s
	out.CodeStart = pick(s.CodeStart, base.CodeStart)
	out.CodeEnd = pick(s.CodeEnd, base.CodeEnd)
	out.OutputStart = pick(s.OutputStart, base.OutputStart)
	out.OutputEnd = pick(s.OutputEnd, base.OutputEnd)
	out.TermStart = pick(s.TermStart, base.TermStart)
	out.TermEnd = pick(s.TermEnd, base.TermEnd)
	out.Indent = pick(s.Indent, base.Indent)
	out.TermIndent = pick(s.TermIndent, base.TermIndent)
	out.FigFmt = pick(s.FigFmt, base.FigFmt)
	out.Extension = pick(s.Extension, base.Extension)
	out.Width = pick(s.Width, base.Width)
	out.Doctype = pick(s.Doctype, base.Doctype)
	if s.SavedFormats == nil {
		out.SavedFormats = base.SavedFormats
	}
	if s.Highlight == nil {
		out.Highlight = base.Highlight
	}
	return out
}

// Fill resolves s into a Descriptor named name.
//
// Terminal delimiters and indent default to the code ones, output delimiters
// default to the code ones, saved formats default to the display figure
// extension and the doctype defaults to the dialect name.
func (s Spec) Fill(name string) Descriptor {
	val := func(v *string, fallback string) string {
		if v == nil {
			return fallback
		}
		return *v
	}

	d := Descriptor{Name: name}
	d.CodeStart = val(s.CodeStart, "")
	d.CodeEnd = val(s.CodeEnd, "")
	d.Indent = val(s.Indent, "")
	d.OutputStart = val(s.OutputStart, d.CodeStart)
	d.OutputEnd = val(s.OutputEnd, d.CodeEnd)
	d.TermStart = val(s.TermStart, d.CodeStart)
	d.TermEnd = val(s.TermEnd, d.CodeEnd)
	d.TermIndent = val(s.TermIndent, d.Indent)
	d.FigFmt = val(s.FigFmt, ".png")
	d.Extension = val(s.Extension, name)
	d.Width = val(s.Width, "")
	d.Doctype = val(s.Doctype, name)

	if s.SavedFormats != nil {
		d.SavedFormats = append([]string(nil), s.SavedFormats...)
	} else {
		d.SavedFormats = []string{d.FigFmt}
	}
	if s.Highlight != nil {
		d.Highlight = *s.Highlight
	}
	return d
}

func str(s string) *string { return &s }

func yes() *bool {
	b := true
	return &b
}

// Built-in dialects.
var presets = map[string]Spec{
	"tex": {
		CodeStart:   str(`\begin{verbatim}`),
		CodeEnd:     str("\\end{verbatim}\n"),
		OutputStart: str(`\begin{verbatim}`),
		OutputEnd:   str("\\end{verbatim}\n"),
		Indent:      str(""),
		FigFmt:      str(".pdf"),
		Extension:   str("tex"),
		Width:       str(`\textwidth`),
		Doctype:     str("tex"),
		Highlight:   yes(),
	},
	"minted": {
		CodeStart:   str(`\begin{minted}{python}`),
		CodeEnd:     str("\\end{minted}\n"),
		OutputStart: str(`\begin{minted}{python}`),
		OutputEnd:   str("\\end{minted}\n"),
		Indent:      str(""),
		FigFmt:      str(".pdf"),
		Extension:   str("tex"),
		Width:       str(`\textwidth`),
		Doctype:     str("minted"),
	},
	"rst": {
		CodeStart:   str("::\n"),
		CodeEnd:     str("\n\n"),
		OutputStart: str("::\n"),
		OutputEnd:   str("\n\n"),
		TermStart:   str(""),
		TermEnd:     str("\n\n"),
		TermIndent:  str(""),
		Indent:      str("    "),
		FigFmt:      str(".png"),
		Extension:   str("rst"),
		Width:       str("15 cm"),
		Doctype:     str("rst"),
	},
	"pandoc": {
		CodeStart:   str("~~~~{.python}"),
		CodeEnd:     str("~~~~~~~~~~~~~\n\n"),
		OutputStart: str("~~~~{.python}"),
		OutputEnd:   str("~~~~~~~~~~~~~\n\n"),
		Indent:      str(""),
		TermIndent:  str(""),
		FigFmt:      str(".png"),
		Extension:   str("md"),
		Width:       str("15 cm"),
		Doctype:     str("pandoc"),
	},
	// Sphinx picks the image format per builder, so the document refers to
	// Fig<n>.* while concrete files are saved for each builder.
	"sphinx": {
		CodeStart:    str("::\n"),
		CodeEnd:      str("\n\n"),
		OutputStart:  str(".. code-block::\n"),
		OutputEnd:    str("\n\n"),
		TermStart:    str(""),
		TermEnd:      str("\n\n"),
		TermIndent:   str(""),
		Indent:       str("    "),
		FigFmt:       str(".*"),
		SavedFormats: []string{".png", ".pdf"},
		Extension:    str("rst"),
		Width:        str("15 cm"),
		Doctype:      str("rst"),
	},
}

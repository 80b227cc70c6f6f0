// Package publish converts woven Markdown (the pandoc dialect) into
// finished documents.
package publish

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"
)

// Meta describes the document being published.
type Meta struct {
	Title   string // empty: first heading, then the file name
	Name    string // source file name
	BaseDir string // directory relative figure paths are resolved against
}

// Publisher renders woven Markdown to an output format.
type Publisher interface {
	Publish(w io.Writer, woven []byte, meta Meta) error
}

// SupportedExtensions lists the output extensions ForFile handles.
var SupportedExtensions = map[string]bool{
	".html": true,
	".htm":  true,
	".docx": true,
}

// ForFile returns the publisher for an output filename.
func ForFile(filename string) (Publisher, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".html", ".htm":
		return &HTMLPublisher{}, nil
	case ".docx":
		return &DOCXPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported output extension: %s", ext)
	}
}

func markdown() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)
}

func fallbackTitle(meta Meta) string {
	name := filepath.Base(meta.Name)
	if name == "." || name == string(filepath.Separator) {
		return ""
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

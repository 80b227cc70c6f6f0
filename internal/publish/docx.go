package publish

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

const (
	codeFont = "Courier New"
	codeSize = "20" // half-points
)

// DOCXPublisher writes a Word document. Headings keep their level as a
// paragraph style, code blocks are set in a monospaced font, and PNG,
// JPEG and GIF figures are embedded.
type DOCXPublisher struct{}

func (p *DOCXPublisher) Publish(w io.Writer, woven []byte, meta Meta) error {
	doc := markdown().Parser().Parse(text.NewReader(woven))
	out := docx.New().WithDefaultTheme()

	if meta.Title != "" {
		out.AddParagraph().Style("Title").AddText(meta.Title).Bold()
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		if err := p.block(out, n, woven, meta); err != nil {
			return err
		}
	}

	if _, err := out.WriteTo(w); err != nil {
		return fmt.Errorf("write docx: %w", err)
	}
	return nil
}

func (p *DOCXPublisher) block(out *docx.Docx, n ast.Node, src []byte, meta Meta) error {
	switch node := n.(type) {
	case *ast.Heading:
		out.AddParagraph().Style("Heading" + strconv.Itoa(node.Level)).AddText(inlineText(node, src)).Bold()

	case *ast.FencedCodeBlock, *ast.CodeBlock:
		code := strings.TrimSuffix(blockLines(n, src), "\n")
		out.AddParagraph().AddText(code).Font(codeFont, codeFont, codeFont, "default").Size(codeSize)

	case *ast.List:
		i := node.Start
		for item := node.FirstChild(); item != nil; item = item.NextSibling() {
			marker := "•"
			if node.IsOrdered() {
				marker = strconv.Itoa(i) + "."
				i++
			}
			out.AddParagraph().AddText(marker + "\t" + inlineText(item, src))
		}

	case *ast.Paragraph:
		var para *docx.Paragraph
		for c := node.FirstChild(); c != nil; c = c.NextSibling() {
			if para == nil {
				para = out.AddParagraph()
			}
			img, ok := c.(*ast.Image)
			if !ok {
				if t := inlineText(c, src); t != "" {
					para.AddText(t)
				}
				continue
			}
			path := string(img.Destination)
			if !filepath.IsAbs(path) && meta.BaseDir != "" {
				path = filepath.Join(meta.BaseDir, path)
			}
			if _, err := para.AddInlineDrawingFrom(path); err != nil {
				return fmt.Errorf("embed figure %s: %w", img.Destination, err)
			}
			if caption := inlineText(img, src); caption != "" {
				out.AddParagraph().Style("Caption").AddText(caption).Italic()
				para = nil
			}
		}

	case *ast.HTMLBlock:
		out.AddParagraph().AddText(strings.TrimSpace(blockLines(n, src)))

	case *ast.ThematicBreak:

	default:
		if t := inlineText(n, src); t != "" {
			out.AddParagraph().AddText(t)
		}
	}
	return nil
}

func blockLines(n ast.Node, src []byte) string {
	var buf bytes.Buffer
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		buf.Write(line.Value(src))
	}
	return buf.String()
}

// inlineText flattens the text of n, keeping line breaks.
func inlineText(n ast.Node, src []byte) string {
	var buf strings.Builder
	if t, ok := n.(*ast.Text); ok {
		buf.Write(t.Segment.Value(src))
		if t.HardLineBreak() || t.SoftLineBreak() {
			buf.WriteByte('\n')
		}
		return buf.String()
	}
	if s, ok := n.(*ast.String); ok {
		return string(s.Value)
	}
	if n.Type() == ast.TypeBlock && n.FirstChild() == nil {
		return strings.TrimSpace(blockLines(n, src))
	}
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		buf.WriteString(inlineText(c, src))
	}
	if n.Type() == ast.TypeBlock {
		return strings.TrimSpace(buf.String())
	}
	return buf.String()
}

package plot

import (
	"bytes"
	"fmt"
	"strings"
)

// encodePDF writes a single-page PDF 1.4 document with the figure drawn
// in user space, one point per pixel of the raster layout.
func encodePDF(fig Figure, width, height int) []byte {
	l := newLayout(fig, width, height)
	h := float64(height)

	var content bytes.Buffer
	// Frame.
	fmt.Fprintf(&content, "0 0 0 RG 1 w\n%s %s %s %s re S\n",
		pdfNum(l.left), pdfNum(h-l.bottom), pdfNum(l.right-l.left), pdfNum(l.bottom-l.top))

	for i, s := range fig.Series {
		pts := l.line(s)
		if len(pts) < 2 {
			continue
		}
		c := colorAt(i)
		fmt.Fprintf(&content, "%s %s %s RG %s w\n",
			pdfNum(float64(c.R)/255), pdfNum(float64(c.G)/255), pdfNum(float64(c.B)/255), pdfNum(strokeWidth))
		for j, p := range pts {
			op := "l"
			if j == 0 {
				op = "m"
			}
			fmt.Fprintf(&content, "%s %s %s\n", pdfNum(p.X), pdfNum(h-p.Y), op)
		}
		content.WriteString("S\n")
	}

	for _, lb := range l.labels(fig) {
		fmt.Fprintf(&content, "BT /F1 10 Tf %s %s Td (%s) Tj ET\n",
			pdfNum(lb.At.X), pdfNum(h-lb.At.Y), pdfString(lb.Text))
	}

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d %d] /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>", width, height),
		fmt.Sprintf("<< /Length %d >>\nstream\n%sendstream", content.Len(), content.String()),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&out, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)
	return out.Bytes()
}

func pdfNum(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

var pdfEscaper = strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`, "\r", `\r`, "\n", `\n`)

// pdfString escapes text for a literal string. Characters outside
// Latin-1 are replaced since the font uses WinAnsiEncoding.
func pdfString(s string) string {
	s = strings.Map(func(r rune) rune {
		if r > 0xff {
			return '?'
		}
		return r
	}, s)
	// Literal strings hold bytes, so Latin-1 runes are written as single bytes.
	b := make([]byte, 0, len(s))
	for _, r := range s {
		b = append(b, byte(r))
	}
	return pdfEscaper.Replace(string(b))
}

package plot

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

func encodeSVG(fig Figure, width, height int) ([]byte, error) {
	l := newLayout(fig, width, height)

	root := element("svg",
		"xmlns", "http://www.w3.org/2000/svg",
		"width", strconv.Itoa(width),
		"height", strconv.Itoa(height),
		"viewBox", fmt.Sprintf("0 0 %d %d", width, height))
	root.AppendChild(element("rect", "width", "100%", "height", "100%", "fill", "white"))
	root.AppendChild(element("rect",
		"x", num(l.left), "y", num(l.top),
		"width", num(l.right-l.left), "height", num(l.bottom-l.top),
		"fill", "none", "stroke", "black"))

	for i, s := range fig.Series {
		c := colorAt(i)
		line := element("polyline",
			"points", points(l.line(s)),
			"fill", "none",
			"stroke", fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B),
			"stroke-width", num(strokeWidth))
		if s.Label != "" {
			line.AppendChild(textElement("title", s.Label))
		}
		root.AppendChild(line)
	}
	for _, lb := range l.labels(fig) {
		t := textElement("text", lb.Text)
		t.Attr = attrs("x", num(lb.At.X), "y", num(lb.At.Y), "font-family", "sans-serif", "font-size", "12")
		root.AppendChild(t)
	}

	var buf bytes.Buffer
	buf.WriteString("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	if err := html.Render(&buf, root); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func element(tag string, kv ...string) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: tag, Attr: attrs(kv...)}
}

func textElement(tag, text string) *html.Node {
	n := element(tag)
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
	return n
}

func attrs(kv ...string) []html.Attribute {
	out := make([]html.Attribute, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, html.Attribute{Key: kv[i], Val: kv[i+1]})
	}
	return out
}

func points(pts []point) string {
	parts := make([]string, len(pts))
	for i, p := range pts {
		parts[i] = num(p.X) + "," + num(p.Y)
	}
	return strings.Join(parts, " ")
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

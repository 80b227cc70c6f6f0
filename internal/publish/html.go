package publish

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLPublisher writes a standalone HTML page.
type HTMLPublisher struct{}

func (p *HTMLPublisher) Publish(w io.Writer, woven []byte, meta Meta) error {
	var body bytes.Buffer
	if err := markdown().Convert(woven, &body); err != nil {
		return fmt.Errorf("convert markdown: %w", err)
	}

	nodes, err := html.ParseFragment(&body, &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body})
	if err != nil {
		return fmt.Errorf("parse html: %w", err)
	}

	title := meta.Title
	if title == "" {
		title = firstHeading(nodes)
	}
	if title == "" {
		title = fallbackTitle(meta)
	}

	for _, n := range nodes {
		normalizeCodeClass(n)
	}
	return html.Render(w, page(title, nodes))
}

func page(title string, content []*html.Node) *html.Node {
	doc := &html.Node{Type: html.DocumentNode}
	doc.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})

	root := element(atom.Html)
	doc.AppendChild(root)

	head := element(atom.Head)
	charset := element(atom.Meta)
	charset.Attr = []html.Attribute{{Key: "charset", Val: "utf-8"}}
	head.AppendChild(charset)
	t := element(atom.Title)
	t.AppendChild(&html.Node{Type: html.TextNode, Data: title})
	head.AppendChild(t)
	root.AppendChild(head)

	body := element(atom.Body)
	for _, n := range content {
		body.AppendChild(n)
	}
	root.AppendChild(body)
	return doc
}

func element(a atom.Atom) *html.Node {
	return &html.Node{Type: html.ElementNode, Data: a.String(), DataAtom: a}
}

func firstHeading(nodes []*html.Node) string {
	for _, n := range nodes {
		if h := findHeading(n); h != nil {
			return textContent(h)
		}
	}
	return ""
}

func findHeading(n *html.Node) *html.Node {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if h := findHeading(c); h != nil {
			return h
		}
	}
	return nil
}

func textContent(n *html.Node) string {
	var buf strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.TextNode {
			buf.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}
	}
	extract(n)
	return strings.TrimSpace(buf.String())
}

// normalizeCodeClass turns the pandoc fence attribute `{.python}` that
// goldmark copies into the class verbatim into a plain language class.
func normalizeCodeClass(n *html.Node) {
	if n.Type == html.ElementNode && n.DataAtom == atom.Code {
		for i, a := range n.Attr {
			if a.Key != "class" {
				continue
			}
			lang := strings.TrimPrefix(a.Val, "language-")
			lang = strings.TrimSuffix(strings.TrimPrefix(lang, "{."), "}")
			n.Attr[i].Val = "language-" + lang
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		normalizeCodeClass(c)
	}
}

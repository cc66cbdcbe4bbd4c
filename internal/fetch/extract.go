package fetch

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// boilerplate lists elements whose subtree carries no readable prose.
// head is included; the title is captured separately during the walk.
var boilerplate = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Noscript: true,
	atom.Iframe:   true,
	atom.Svg:      true,
	atom.Head:     true,
	atom.Nav:      true,
	atom.Header:   true,
	atom.Footer:   true,
}

// blockLevel marks elements that separate prose into paragraphs.
var blockLevel = map[atom.Atom]bool{
	atom.P: true, atom.Div: true, atom.Section: true, atom.Article: true,
	atom.Main: true, atom.H1: true, atom.H2: true, atom.H3: true,
	atom.H4: true, atom.H5: true, atom.H6: true, atom.Blockquote: true,
	atom.Pre: true, atom.Ul: true, atom.Ol: true, atom.Table: true,
	atom.Tr: true, atom.Dl: true, atom.Dd: true, atom.Dt: true,
	atom.Figure: true, atom.Figcaption: true, atom.Details: true,
	atom.Summary: true, atom.Hr: true,
}

// extractHTML parses raw HTML and returns the document title and its
// readable text. Unparseable input falls back to a tag-stripping
// tokenizer pass.
func extractHTML(raw string) (title, text string) {
	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return "", stripTags(raw)
	}
	var e extractor
	e.walk(doc)
	return strings.TrimSpace(e.title), cleanWhitespace(e.text.String())
}

type extractor struct {
	title string
	text  strings.Builder
}

func (e *extractor) walk(n *html.Node) {
	switch n.Type {
	case html.ElementNode:
		if n.DataAtom == atom.Title && e.title == "" {
			e.title = nodeText(n)
			return
		}
		if boilerplate[n.DataAtom] {
			return
		}
		if blockLevel[n.DataAtom] && e.text.Len() > 0 {
			e.text.WriteString("\n\n")
		}
	case html.TextNode:
		if t := strings.TrimSpace(n.Data); t != "" {
			e.text.WriteString(t)
			e.text.WriteByte(' ')
		}
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		e.walk(c)
	}

	if n.Type == html.ElementNode && (n.DataAtom == atom.Br || n.DataAtom == atom.Li) {
		e.text.WriteByte('\n')
	}
}

// nodeText concatenates every text node under n.
func nodeText(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(nodeText(c))
	}
	return b.String()
}

// cleanWhitespace collapses intra-line runs of whitespace and squeezes
// consecutive blank lines down to one.
func cleanWhitespace(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	blank := false
	for _, line := range lines {
		line = strings.Join(strings.Fields(line), " ")
		if line == "" {
			if blank {
				continue
			}
			blank = true
		} else {
			blank = false
		}
		out = append(out, line)
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}

// stripTags drops markup with the tokenizer, keeping text tokens only.
func stripTags(s string) string {
	tok := html.NewTokenizer(strings.NewReader(s))
	var b strings.Builder
	for {
		tt := tok.Next()
		if tt == html.ErrorToken {
			return cleanWhitespace(b.String())
		}
		if tt == html.TextToken {
			b.Write(tok.Text())
			b.WriteByte(' ')
		}
	}
}

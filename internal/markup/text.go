package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTMLToPlainText flattens sanitized HTML. Links keep their target in
// parentheses unless the link text already is the target.
func HTMLToPlainText(text string) string {
	var b strings.Builder
	for _, n := range parseFragment(text) {
		writeText(&b, n)
	}
	return tidy(b.String())
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(collapse(n.Data))
		return
	case html.ElementNode:
	default:
		return
	}

	children := func() {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			writeText(b, c)
		}
	}

	switch n.DataAtom {
	case atom.A:
		label := textContent(n)
		href := attr(n, "href")
		b.WriteString(label)
		if href != "" && href != label && "mailto:"+label != href {
			b.WriteString(" (" + href + ")")
		}
	case atom.Br:
		b.WriteString("\n")
	case atom.Pre:
		b.WriteString(strings.TrimSuffix(textContent(n), "\n"))
		b.WriteString("\n\n")
	case atom.P, atom.Blockquote, atom.Ul, atom.Ol,
		atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		children()
		b.WriteString("\n\n")
	case atom.Li:
		b.WriteString("- ")
		children()
		b.WriteString("\n")
	case atom.Hr:
		b.WriteString("\n\n")
	default:
		children()
	}
}

package markup

import (
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var bbcodeTags = map[atom.Atom]string{
	atom.Strong:     "b",
	atom.B:          "b",
	atom.Em:         "i",
	atom.I:          "i",
	atom.U:          "u",
	atom.Del:        "s",
	atom.S:          "s",
	atom.Blockquote: "quote",
	atom.Pre:        "code",
}

// HTMLToBBCode converts sanitized HTML to BBCode.
func HTMLToBBCode(text string) string {
	var b strings.Builder
	for _, n := range parseFragment(text) {
		writeBBCode(&b, n)
	}
	return tidy(b.String())
}

func writeBBCode(b *strings.Builder, n *html.Node) {
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
			writeBBCode(b, c)
		}
	}

	if tag, ok := bbcodeTags[n.DataAtom]; ok {
		b.WriteString("[" + tag + "]")
		switch n.DataAtom {
		case atom.Pre:
			b.WriteString(strings.TrimSuffix(textContent(n), "\n"))
		case atom.Blockquote:
			var inner strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				writeBBCode(&inner, c)
			}
			b.WriteString(tidy(inner.String()))
		default:
			children()
		}
		b.WriteString("[/" + tag + "]")
		if n.DataAtom == atom.Blockquote || n.DataAtom == atom.Pre {
			b.WriteString("\n")
		}
		return
	}

	switch n.DataAtom {
	case atom.A:
		href := attr(n, "href")
		if href == "" {
			children()
			return
		}
		b.WriteString("[url=" + href + "]")
		children()
		b.WriteString("[/url]")
	case atom.Br:
		b.WriteString("\n")
	case atom.P:
		children()
		b.WriteString("\n\n")
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		b.WriteString("[b]")
		children()
		b.WriteString("[/b]\n\n")
	case atom.Li:
		b.WriteString("• ")
		children()
		b.WriteString("\n")
	case atom.Ul, atom.Ol:
		children()
		b.WriteString("\n")
	case atom.Hr:
		b.WriteString("\n----------\n")
	case atom.Img:
		if src := attr(n, "src"); src != "" {
			b.WriteString("[url=" + src + "]" + attr(n, "alt") + "[/url]")
		}
	default:
		children()
	}
}

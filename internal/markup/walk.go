package markup

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	spaceAroundNewline = regexp.MustCompile(`[ \t]*\n[ \t]*`)
	extraNewlines      = regexp.MustCompile(`\n{3,}`)
)

var bodyContext = &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}

func parseFragment(text string) []*html.Node {
	nodes, err := html.ParseFragment(strings.NewReader(text), bodyContext)
	if err != nil {
		return []*html.Node{{Type: html.TextNode, Data: text}}
	}
	return nodes
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// collapse treats source newlines inside HTML text as plain whitespace;
// line breaks only come from elements.
func collapse(text string) string {
	return strings.ReplaceAll(text, "\n", " ")
}

func tidy(text string) string {
	text = spaceAroundNewline.ReplaceAllString(text, "\n")
	text = extraNewlines.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

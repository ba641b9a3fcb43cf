package weasyl

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/itchan-dev/crosspost/shared/domain"
)

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func find(n *html.Node, match func(*html.Node) bool) *html.Node {
	if match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := find(c, match); found != nil {
			return found
		}
	}
	return nil
}

func text(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(b.String())
}

// csrfToken returns the value of the form's hidden "token" input.
func csrfToken(page []byte) string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	input := find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Input && attr(n, "name") == "token"
	})
	if input == nil {
		return ""
	}
	return attr(input, "value")
}

// parseFolders reads the folderid select. Options inside an optgroup are
// subfolders of the group.
func parseFolders(page []byte) []domain.Folder {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil
	}
	sel := find(doc, func(n *html.Node) bool {
		return n.Type == html.ElementNode && n.DataAtom == atom.Select && attr(n, "name") == "folderid"
	})
	if sel == nil {
		return nil
	}

	var out []domain.Folder
	for c := sel.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		switch c.DataAtom {
		case atom.Option:
			if f, ok := option(c); ok {
				out = append(out, f)
			}
		case atom.Optgroup:
			group := domain.Folder{Title: attr(c, "label")}
			for o := c.FirstChild; o != nil; o = o.NextSibling {
				if o.Type == html.ElementNode && o.DataAtom == atom.Option {
					if f, ok := option(o); ok {
						group.Subfolders = append(group.Subfolders, f)
					}
				}
			}
			out = append(out, group)
		}
	}
	return out
}

func option(n *html.Node) (domain.Folder, bool) {
	id := attr(n, "value")
	if id == "" || id == "0" {
		return domain.Folder{}, false
	}
	return domain.Folder{ID: id, Title: text(n)}, true
}

// errorMessage pulls the message out of weasyl's error page.
func errorMessage(page []byte) string {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return ""
	}
	n := find(doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return false
		}
		for _, class := range strings.Fields(attr(n, "class")) {
			if class == "error-message" || class == "error_message" {
				return true
			}
		}
		return attr(n, "id") == "error_content"
	})
	if n == nil {
		return ""
	}
	return text(n)
}

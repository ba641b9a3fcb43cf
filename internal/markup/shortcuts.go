package markup

import (
	"fmt"
	"strings"
)

// Shortcut is a username shortcut of the form :<key><username>:, for
// example :ibartist: for the Inkbunny user "artist".
type Shortcut struct {
	Key     string
	Website string
	// Link builds the profile URL used on every other website.
	Link func(username string) string
	// Native renders the shortcut in the website's own syntax. Nil means the
	// website gets a link like everybody else.
	Native func(username string) string
}

func (s *Shortcut) Marker() string {
	return ":" + s.Key
}

// Shortcuts expands username shortcuts for a target website.
type Shortcuts struct {
	index *trie
}

func NewShortcuts(list ...Shortcut) *Shortcuts {
	s := &Shortcuts{index: newTrie()}
	for i := range list {
		s.index.insert(&list[i])
	}
	return s
}

func pattern(format string) func(string) string {
	return func(username string) string {
		return fmt.Sprintf(format, username)
	}
}

// DefaultShortcuts covers the sites this service knows how to link to.
func DefaultShortcuts() *Shortcuts {
	return NewShortcuts(
		Shortcut{Key: "ib", Website: "inkbunny", Link: pattern("https://inkbunny.net/%s"), Native: pattern("[iconname]%s[/iconname]")},
		Shortcut{Key: "ws", Website: "weasyl", Link: pattern("https://www.weasyl.com/~%s"), Native: pattern("<~%s>")},
		Shortcut{Key: "fa", Website: "furaffinity", Link: pattern("https://www.furaffinity.net/user/%s"), Native: pattern(":icon%s:")},
		Shortcut{Key: "da", Website: "deviantart", Link: pattern("https://www.deviantart.com/%s"), Native: pattern(":icon%s:")},
		Shortcut{Key: "md", Website: "mastodon", Link: mastodonLink, Native: pattern("@%s")},
	)
}

// mastodonLink expects user@instance; a bare name cannot be resolved and is
// left as plain text.
func mastodonLink(username string) string {
	user, instance, ok := strings.Cut(username, "@")
	if !ok || user == "" || instance == "" {
		return ""
	}
	return fmt.Sprintf("https://%s/@%s", instance, user)
}

func isUsernameByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.' || c == '~' || c == '@'
}

// Expand rewrites every shortcut in text for the given website. Text that
// looks like a shortcut but is not closed by ':' is left untouched.
func (s *Shortcuts) Expand(text, website string) string {
	if !strings.Contains(text, ":") {
		return text
	}

	var out strings.Builder
	out.Grow(len(text))
	pos := 0
	for pos < len(text) {
		if text[pos] != ':' {
			out.WriteByte(text[pos])
			pos++
			continue
		}

		replacement, consumed := s.expandAt(text, pos, website)
		if consumed == 0 {
			out.WriteByte(':')
			pos++
			continue
		}
		out.WriteString(replacement)
		pos += consumed
	}
	return out.String()
}

func (s *Shortcuts) expandAt(text string, pos int, website string) (string, int) {
	matches := s.index.Match(text, pos)
	// Longest key first; fall back to shorter keys when the username does not close.
	for i := len(matches) - 1; i >= 0; i-- {
		shortcut := matches[i].Rule.(*Shortcut)
		start := pos + matches[i].Len
		end := start
		for end < len(text) && isUsernameByte(text[end]) {
			end++
		}
		if end == start || end >= len(text) || text[end] != ':' {
			continue
		}
		username := text[start:end]
		return shortcut.render(username, website), end - pos + 1
	}
	return "", 0
}

func (s *Shortcut) render(username, website string) string {
	if website == s.Website && s.Native != nil {
		return s.Native(username)
	}
	if link := s.Link(username); link != "" {
		return fmt.Sprintf("[%s](%s)", username, link)
	}
	return username
}

// Preparser returns the expansion stage for one website.
func (s *Shortcuts) Preparser(website string) Stage {
	return func(text string) string {
		return s.Expand(text, website)
	}
}

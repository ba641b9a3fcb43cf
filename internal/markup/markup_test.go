package markup

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestChainOrder(t *testing.T) {
	var calls []string
	stage := func(name string) Stage {
		return func(s string) string {
			calls = append(calls, name)
			return s + name
		}
	}
	chain := Chain{
		Preparsers: []Stage{stage("a"), stage("b")},
		Parsers:    []Stage{stage("c"), stage("d")},
	}

	assert.Equal(t, "xabcd", chain.Apply("x"))
	assert.Equal(t, []string{"a", "b", "c", "d"}, calls)
}

func TestWithPreparsersDoesNotAlias(t *testing.T) {
	base := Chain{Preparsers: make([]Stage, 0, 4), Parsers: []Stage{TrimSpace}}
	upper := base.WithPreparsers(strings.ToUpper)
	lower := base.WithPreparsers(strings.ToLower)

	assert.Equal(t, "ABC", upper.Apply(" aBc "))
	assert.Equal(t, "abc", lower.Apply(" aBc "))
	assert.Empty(t, base.Preparsers)
}

func TestDialects(t *testing.T) {
	tests := []struct {
		name   string
		chain  Chain
		source string
		want   string
	}{
		{"html bold", HTML(), "Hello **world**", "<p>Hello <strong>world</strong></p>"},
		{"html drops raw html", HTML(), "say <b>hi</b>", "<p>say hi</p>"},
		{"bbcode inline", BBCode(), "**bold** and *it*", "[b]bold[/b] and [i]it[/i]"},
		{"bbcode link", BBCode(), "[my site](https://example.com)", "[url=https://example.com]my site[/url]"},
		{"bbcode paragraphs", BBCode(), "first\n\nsecond", "first\n\nsecond"},
		{"bbcode quote", BBCode(), "> quoted", "[quote]quoted[/quote]"},
		{"plain text", PlainText(), "Hello **world**", "Hello world"},
		{"plain hard wrap", PlainText(), "line one\nline two", "line one\nline two"},
		{"plain link", PlainText(), "see [gallery](https://example.com/g)", "see gallery (https://example.com/g)"},
		{"plain bare link", PlainText(), "https://example.com", "https://example.com"},
		{"plain entities", PlainText(), "cats & dogs", "cats & dogs"},
		{"plain list", PlainText(), "- one\n- two", "- one\n- two"},
		{"markdown passthrough", Markdown(), "  **keep** me  ", "**keep** me"},
		{"empty", PlainText(), "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.chain.Apply(tt.source))
		})
	}
}

func TestShortcuts(t *testing.T) {
	s := DefaultShortcuts()

	tests := []struct {
		name    string
		website string
		source  string
		want    string
	}{
		{"native on own site", "inkbunny", "art by :ibartist:", "art by [iconname]artist[/iconname]"},
		{"link elsewhere", "weasyl", "art by :ibartist:", "art by [artist](https://inkbunny.net/artist)"},
		{"deviantart icon", "deviantart", ":da123:", ":icon123:"},
		{"weasyl native", "weasyl", ":wsfriend:", "<~friend>"},
		{"mastodon native", "mastodon", ":mdme@example.social:", "@me@example.social"},
		{"mastodon link", "inkbunny", ":mdme@example.social:", "[me@example.social](https://example.social/@me)"},
		{"mastodon unresolvable", "inkbunny", ":mdme:", "me"},
		{"unclosed", "weasyl", "ratio :ib and more", "ratio :ib and more"},
		{"unknown key", "weasyl", ":zzname:", ":zzname:"},
		{"time is not a shortcut", "weasyl", "at 10:30:00", "at 10:30:00"},
		{"two in a row", "inkbunny", ":iba::ibb:", "[iconname]a[/iconname][iconname]b[/iconname]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Expand(tt.source, tt.website))
		})
	}
}

func TestShortcutLongestKey(t *testing.T) {
	s := NewShortcuts(
		Shortcut{Key: "f", Website: "short", Link: pattern("https://short/%s")},
		Shortcut{Key: "fa", Website: "long", Link: pattern("https://long/%s")},
	)
	assert.Equal(t, "[bob](https://long/bob)", s.Expand(":fabob:", "other"))
	// "fa" cannot close here, so the shorter key wins.
	assert.Equal(t, "[a](https://short/a)", s.Expand(":fa:", "other"))
}

func TestPreparserInChain(t *testing.T) {
	chain := BBCode().WithPreparsers(DefaultShortcuts().Preparser("inkbunny"))
	assert.Equal(t, "thanks [iconname]pal[/iconname] and [url=https://www.weasyl.com/~bud]bud[/url]",
		chain.Apply("thanks :ibpal: and :wsbud:"))
}

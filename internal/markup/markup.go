// Package markup turns a Markdown description into the dialect a website
// accepts. A Chain runs its preparsers once over the source, then its
// parsers in order; every stage is a pure string transform.
package markup

import "strings"

type Stage func(string) string

type Chain struct {
	Preparsers []Stage
	Parsers    []Stage
}

func (c Chain) Apply(source string) string {
	text := source
	for _, stage := range c.Preparsers {
		text = stage(text)
	}
	for _, stage := range c.Parsers {
		text = stage(text)
	}
	return text
}

// WithPreparsers returns a copy of c with extra preparsers appended.
func (c Chain) WithPreparsers(stages ...Stage) Chain {
	out := Chain{
		Preparsers: make([]Stage, 0, len(c.Preparsers)+len(stages)),
		Parsers:    c.Parsers,
	}
	out.Preparsers = append(out.Preparsers, c.Preparsers...)
	out.Preparsers = append(out.Preparsers, stages...)
	return out
}

func TrimSpace(text string) string {
	return strings.TrimSpace(text)
}

// HTML renders Markdown to sanitized HTML.
func HTML() Chain {
	return Chain{Parsers: []Stage{MarkdownToHTML, SanitizeHTML}}
}

func BBCode() Chain {
	return Chain{Parsers: []Stage{MarkdownToHTML, SanitizeHTML, HTMLToBBCode}}
}

func PlainText() Chain {
	return Chain{Parsers: []Stage{MarkdownToHTML, SanitizeHTML, HTMLToPlainText}}
}

// Markdown keeps the source dialect.
func Markdown() Chain {
	return Chain{Parsers: []Stage{TrimSpace}}
}

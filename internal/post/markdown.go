package post

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	gmhtml "github.com/yuin/goldmark/renderer/html"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ExcerptLength is the maximum number of runes in a derived description.
const ExcerptLength = 160

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithParserOptions(
		parser.WithAutoHeadingID(),
	),
	goldmark.WithRendererOptions(
		gmhtml.WithUnsafe(),
	),
)

// Markdown converts a markdown body to HTML.
func Markdown(body []byte) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert(body, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// Excerpt returns the text of the first paragraph in rendered HTML,
// truncated to limit runes.
func Excerpt(rendered string, limit int) string {
	z := html.NewTokenizer(strings.NewReader(rendered))

	var (
		text  strings.Builder
		depth int
	)
	for {
		switch z.Next() {
		case html.ErrorToken:
			return truncate(text.String(), limit)
		case html.StartTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.P {
				depth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if atom.Lookup(name) == atom.P && depth > 0 {
				return truncate(text.String(), limit)
			}
		case html.TextToken:
			if depth > 0 {
				text.Write(z.Text())
			}
		}
	}
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= limit {
		return s
	}

	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-1])) + "…"
}

// Package post loads markdown posts with YAML front matter.
//
// A post file is named YYYY-MM-DD-title.ext and looks like
//
//	---
//	title: Optional title
//	date: 2024-01-01
//	author: someone
//	description: optional summary
//	labels: [go, notes]
//	---
//
//	# Markdown body
//
// The filename and the front matter are parsed independently and merged field
// by field, the front matter winning.
package post

import (
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/cydonia/internal/errors"
)

const (
	// Marker delimits the front matter block.
	Marker = "---"
	// DateLayout is the date format used in filenames and front matter.
	DateLayout = "2006-01-02"
	// IndexDateLayout is the short label shown on the index page.
	IndexDateLayout = "Jan 02"
)

// Template is the starter post written by `cydonia init`. Its title and date
// come from the filename.
const Template = `---
author: cydonia
description: The first post of a new cydonia site.
labels:
  - cydonia
---

Welcome to your new site. Edit this file or add more posts next to it, named
` + "`YYYY-MM-DD-title.md`" + `.
`

const expectedFormat = "expected:\n---\ntitle: ...\ndate: YYYY-MM-DD\n---\nmarkdown body"

// Meta is the front matter of a post.
type Meta struct {
	Author      string
	Description string
	Labels      []string
	Title       string
	// Date is zero when the front matter has no date.
	Date time.Time
}

// Index holds the fields the index page displays.
type Index struct {
	Date string
	Link string
	// Year is set only on the most recent post of each calendar year.
	Year string
}

// Post is one article.
type Post struct {
	Path    string
	Slug    string
	Meta    Meta
	Title   string
	Date    time.Time
	Content template.HTML
	Index   Index
}

// FileInfo is what a post filename says about the post.
type FileInfo struct {
	Slug  string
	Date  time.Time
	Title string
}

type rawMeta struct {
	Author      string   `yaml:"author"`
	Date        string   `yaml:"date"`
	Description string   `yaml:"description"`
	Labels      []string `yaml:"labels"`
	Title       string   `yaml:"title"`
}

// ParseFilename parses a YYYY-MM-DD-title.ext filename. Only the base name is
// considered.
func ParseFilename(path string) (*FileInfo, error) {
	base := filepath.Base(path)
	slug := strings.TrimSuffix(base, filepath.Ext(base))

	parts := strings.SplitN(slug, "-", 4)
	if len(parts) != 4 || parts[3] == "" {
		return nil, errors.NewLoadError(errors.ErrCodeBadFilename, path,
			fmt.Sprintf("filename %q does not match YYYY-MM-DD-title.ext", base), nil)
	}

	date, err := time.Parse(DateLayout, strings.Join(parts[:3], "-"))
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeInvalidDate, path,
			fmt.Sprintf("filename %q has an invalid date", base), err)
	}

	return &FileInfo{
		Slug:  slug,
		Date:  date,
		Title: TitleFromSlug(parts[3]),
	}, nil
}

// TitleFromSlug turns "hello-world" into "Hello World".
func TitleFromSlug(s string) string {
	// a Caser carries state, so each call gets its own
	caser := cases.Title(language.English, cases.NoLower)
	words := strings.Split(s, "-")
	for i, w := range words {
		words[i] = caser.String(w)
	}
	return strings.Join(words, " ")
}

// ParseMeta decodes a YAML front matter block. Unknown keys are ignored.
func ParseMeta(path string, block []byte) (*Meta, error) {
	var raw rawMeta
	if err := yaml.Unmarshal(block, &raw); err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeBadMetadata, path, "invalid front matter", err)
	}

	meta := &Meta{
		Author:      raw.Author,
		Description: raw.Description,
		Labels:      raw.Labels,
		Title:       strings.TrimSpace(raw.Title),
	}

	if d := strings.TrimSpace(raw.Date); d != "" {
		date, err := time.Parse(DateLayout, d)
		if err != nil {
			return nil, errors.NewLoadError(errors.ErrCodeInvalidDate, path,
				fmt.Sprintf("front matter date %q is not YYYY-MM-DD", d), err)
		}
		meta.Date = date
	}

	return meta, nil
}

// Split separates a post file into its front matter and markdown body.
func Split(path string, content []byte) (meta, body []byte, err error) {
	segments := strings.SplitN(string(content), Marker, 3)
	if len(segments) != 3 || strings.TrimSpace(segments[0]) != "" {
		return nil, nil, errors.NewLoadError(errors.ErrCodeMalformedPost, path,
			"post has no front matter block, "+expectedFormat, nil)
	}
	return []byte(segments[1]), []byte(segments[2]), nil
}

// Load reads and parses a single post.
func Load(path string) (*Post, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeReadFailed, path, "failed to read post", err)
	}
	return Parse(path, content)
}

// Parse builds a post from its path and raw file content.
func Parse(path string, content []byte) (*Post, error) {
	file, err := ParseFilename(path)
	if err != nil {
		return nil, err
	}

	block, body, err := Split(path, content)
	if err != nil {
		return nil, err
	}

	meta, err := ParseMeta(path, block)
	if err != nil {
		return nil, err
	}

	html, err := Markdown(body)
	if err != nil {
		return nil, errors.NewLoadError(errors.ErrCodeMalformedPost, path, "failed to render markdown", err)
	}

	p := &Post{
		Path:    path,
		Slug:    file.Slug,
		Meta:    *meta,
		Title:   file.Title,
		Date:    file.Date,
		Content: template.HTML(html),
	}
	if meta.Title != "" {
		p.Title = meta.Title
	}
	if !meta.Date.IsZero() {
		p.Date = meta.Date
	}
	if p.Meta.Description == "" {
		p.Meta.Description = Excerpt(html, ExcerptLength)
	}

	p.Index = Index{
		Date: p.Date.Format(IndexDateLayout),
		Link: "posts/" + p.Slug + ".html",
	}

	return p, nil
}

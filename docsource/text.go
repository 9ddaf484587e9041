package docsource

import (
	"path/filepath"
	"regexp"
	"strings"
)

// TextParser handles plain text documents.
type TextParser struct{}

// NewTextParser creates a plain text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Parse(filename string, content []byte) (*Document, error) {
	return &Document{
		Filename: filepath.Base(filename),
		Text:     strings.TrimSpace(string(content)),
	}, nil
}

func (p *TextParser) CanParse(mimeType string) bool {
	return mimeType == "text/plain"
}

func (p *TextParser) MimeType() string {
	return "text/plain"
}

// MarkdownParser handles markdown documents. The markdown itself is kept as
// the text; only the title is lifted out.
type MarkdownParser struct{}

// NewMarkdownParser creates a markdown parser.
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{}
}

var headingRe = regexp.MustCompile(`(?m)^#\s+(.+)$`)

func (p *MarkdownParser) Parse(filename string, content []byte) (*Document, error) {
	text := strings.TrimSpace(string(content))
	doc := &Document{
		Filename: filepath.Base(filename),
		Text:     text,
	}
	if m := headingRe.FindStringSubmatch(text); m != nil {
		doc.Title = strings.TrimSpace(m[1])
	}
	return doc, nil
}

func (p *MarkdownParser) CanParse(mimeType string) bool {
	return mimeType == "text/markdown" || mimeType == "text/x-markdown"
}

func (p *MarkdownParser) MimeType() string {
	return "text/markdown"
}

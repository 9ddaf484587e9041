// Package docsource turns guideline documents, pasted between reviewers or
// dropped into an inbox directory, into extraction sources: parsed text plus
// the paragraph slices the extraction backend works on.
package docsource

import "strings"

// MaxParagraphs caps how many paragraphs of a document are sent per
// extraction run. Long guideline documents are processed front-to-back; the
// reviewer re-runs intake for later sections.
const MaxParagraphs = 5

// minParagraphLength filters out headings and stray fragments.
const minParagraphLength = 40

// Document is a parsed extraction source.
type Document struct {
	Filename string
	Title    string
	Text     string
}

// SplitParagraphs splits document text into paragraphs on blank lines,
// drops fragments shorter than a sentence, and returns at most limit
// paragraphs. A limit <= 0 means MaxParagraphs.
func SplitParagraphs(text string, limit int) []string {
	if limit <= 0 {
		limit = MaxParagraphs
	}

	normalized := strings.ReplaceAll(text, "\r\n", "\n")
	var out []string
	for _, block := range strings.Split(normalized, "\n\n") {
		p := strings.TrimSpace(block)
		if len(p) < minParagraphLength {
			continue
		}
		out = append(out, p)
		if len(out) == limit {
			break
		}
	}
	return out
}

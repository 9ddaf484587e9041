package docsource

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// ErrUnsupportedFormat indicates no parser handles the file's type.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// Parser turns raw file content into a Document.
type Parser interface {
	// Parse parses a document and extracts its text.
	Parse(filename string, content []byte) (*Document, error)

	// CanParse reports whether this parser handles the given MIME type.
	CanParse(mimeType string) bool

	// MimeType returns the primary MIME type for this parser.
	MimeType() string
}

// Registry manages document parsers.
type Registry struct {
	mu      sync.RWMutex
	parsers map[string]Parser // keyed by primary MIME type
}

// DefaultRegistry is the global registry with the default parsers.
var DefaultRegistry = NewRegistry()

// NewRegistry creates a registry with the default parsers registered.
func NewRegistry() *Registry {
	r := &Registry{parsers: make(map[string]Parser)}
	r.Register(NewTextParser())
	r.Register(NewMarkdownParser())
	r.Register(NewPDFParser())
	return r
}

// Register adds a parser to the registry.
func (r *Registry) Register(p Parser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.parsers[p.MimeType()] = p
}

// GetByMimeType returns a parser for the given MIME type, or nil.
func (r *Registry) GetByMimeType(mimeType string) Parser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.parsers[mimeType]; ok {
		return p
	}
	for _, p := range r.parsers {
		if p.CanParse(mimeType) {
			return p
		}
	}
	return nil
}

// GetByExtension returns a parser for a file based on its extension.
func (r *Registry) GetByExtension(filename string) Parser {
	return r.GetByMimeType(MimeTypeFromExtension(filepath.Ext(filename)))
}

// Parse parses a document using the parser matching its extension.
func (r *Registry) Parse(filename string, content []byte) (*Document, error) {
	p := r.GetByExtension(filename)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(filename))
	}
	return p.Parse(filename, content)
}

// MimeTypeFromExtension maps a file extension to a MIME type.
func MimeTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".md", ".markdown":
		return "text/markdown"
	case ".pdf":
		return "application/pdf"
	case ".txt", ".text", "":
		return "text/plain"
	default:
		return ""
	}
}

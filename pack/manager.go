package pack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Directory constants for the .ruleforge structure.
const (
	// RootDir is the state directory created at the repository root.
	RootDir = ".ruleforge"
	// PacksDir is the directory name for saved packs within .ruleforge.
	PacksDir = "packs"
	// PackFile is the filename for pack contents within a pack directory.
	PackFile = "pack.json"
)

// Sentinel errors for pack storage operations.
var (
	ErrPackNotFound = errors.New("pack not found")
	ErrPackExists   = errors.New("pack already exists")
	ErrSlugRequired = errors.New("slug is required")
	ErrInvalidSlug  = errors.New("slug must be lowercase alphanumeric with hyphens")
)

// slugPattern validates slugs: lowercase alphanumeric with hyphens, 1-50 chars.
var slugPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,48}[a-z0-9])?$`)

// ValidateSlug checks that a slug is safe to use in file paths.
func ValidateSlug(slug string) error {
	if slug == "" {
		return ErrSlugRequired
	}
	// Prevent path traversal
	if strings.Contains(slug, "..") || strings.Contains(slug, "/") || strings.Contains(slug, "\\") {
		return ErrInvalidSlug
	}
	if !slugPattern.MatchString(slug) {
		return ErrInvalidSlug
	}
	return nil
}

// Slugify derives a storage slug from a pack name: lowercased, runs of
// non-alphanumerics collapsed to single hyphens, trimmed to the slug length
// limit.
func Slugify(name string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > 50 {
		slug = strings.Trim(slug[:50], "-")
	}
	return slug
}

// packLocks provides per-pack locking for concurrent operations.
var (
	packLocksMu sync.Mutex
	packLocks   = make(map[string]*sync.Mutex)
)

func getPackLock(slug string) *sync.Mutex {
	packLocksMu.Lock()
	defer packLocksMu.Unlock()
	if packLocks[slug] == nil {
		packLocks[slug] = &sync.Mutex{}
	}
	return packLocks[slug]
}

// Record is a pack submission persisted locally, with the receipt the
// backend returned (if the submission reached it).
type Record struct {
	Slug        string      `json:"slug"`
	Submission  *Submission `json:"submission"`
	Receipt     *Receipt    `json:"receipt,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	SubmittedAt *time.Time  `json:"submitted_at,omitempty"`
}

// Manager provides file operations for locally saved packs. Packs live under
// .ruleforge/packs/{slug}/pack.json so a reviewer can assemble offline and
// submit later.
type Manager struct {
	repoRoot string
}

// NewManager creates a pack manager rooted at the given repository root.
func NewManager(repoRoot string) *Manager {
	return &Manager{repoRoot: repoRoot}
}

// RootPath returns the full path to the .ruleforge directory.
func (m *Manager) RootPath() string {
	return filepath.Join(m.repoRoot, RootDir)
}

// PacksPath returns the path to the packs directory.
func (m *Manager) PacksPath() string {
	return filepath.Join(m.RootPath(), PacksDir)
}

// PackPath returns the path to a specific pack directory.
func (m *Manager) PackPath(slug string) string {
	return filepath.Join(m.PacksPath(), slug)
}

// EnsureDirectories creates the .ruleforge directory structure if it
// doesn't exist.
func (m *Manager) EnsureDirectories() error {
	for _, dir := range []string{m.RootPath(), m.PacksPath()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// Create saves a new pack under the given slug.
func (m *Manager) Create(ctx context.Context, slug string, sub *Submission) (*Record, error) {
	if err := m.EnsureDirectories(); err != nil {
		return nil, err
	}
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	lock := getPackLock(slug)
	lock.Lock()
	defer lock.Unlock()

	// Atomic directory creation: os.Mkdir fails if the directory exists,
	// which closes the race between an existence check and creation.
	packPath := m.PackPath(slug)
	if err := os.Mkdir(packPath, 0755); err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPackExists, slug)
		}
		return nil, fmt.Errorf("failed to create pack directory: %w", err)
	}

	record := &Record{
		Slug:       slug,
		Submission: sub,
		CreatedAt:  time.Now(),
	}
	if err := m.save(record); err != nil {
		os.RemoveAll(packPath)
		return nil, err
	}
	return record, nil
}

// Save persists an updated pack record.
func (m *Manager) Save(ctx context.Context, record *Record) error {
	if err := ValidateSlug(record.Slug); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	lock := getPackLock(record.Slug)
	lock.Lock()
	defer lock.Unlock()

	return m.save(record)
}

func (m *Manager) save(record *Record) error {
	path := filepath.Join(m.PackPath(record.Slug), PackFile)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal pack: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write pack: %w", err)
	}
	return nil
}

// Load reads a pack record from .ruleforge/packs/{slug}/pack.json.
func (m *Manager) Load(ctx context.Context, slug string) (*Record, error) {
	if err := ValidateSlug(slug); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := filepath.Join(m.PackPath(slug), PackFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrPackNotFound, slug)
		}
		return nil, fmt.Errorf("failed to read pack: %w", err)
	}

	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to parse pack: %w", err)
	}
	return &record, nil
}

// Exists checks whether a pack is saved under the given slug.
func (m *Manager) Exists(slug string) bool {
	if err := ValidateSlug(slug); err != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(m.PackPath(slug), PackFile))
	return err == nil
}

// ListResult contains the results of listing saved packs.
type ListResult struct {
	// Records contains successfully loaded packs.
	Records []*Record

	// Errors contains non-fatal errors encountered while loading packs.
	Errors []error
}

// List returns all saved packs. Unreadable entries are collected as
// non-fatal errors so one corrupt pack doesn't hide the rest.
func (m *Manager) List(ctx context.Context) (*ListResult, error) {
	result := &ListResult{
		Records: []*Record{},
		Errors:  []error{},
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(m.PacksPath())
	if err != nil {
		if os.IsNotExist(err) {
			return result, nil
		}
		return nil, fmt.Errorf("failed to read packs directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		record, err := m.Load(ctx, entry.Name())
		if err != nil {
			result.Errors = append(result.Errors, err)
			continue
		}
		result.Records = append(result.Records, record)
	}
	return result, nil
}

// Package main implements a mock extraction backend for e2e testing.
// It serves /api/extract-rule and /api/extract-from-document responses from
// JSON fixture files, routing by the "rule_type" form field. This eliminates
// the need for a real extraction service during wiring tests, making them
// fast, deterministic, and offline-capable.
//
// Usage:
//
//	mock-extractor -fixtures /path/to/fixtures -port 8000
//
// Fixture files are JSON named by rule type (e.g., "performance.json" is
// returned for rule_type=performance). The file content is returned verbatim
// as the response body.
//
// Sequential fixtures: If numbered files exist (e.g., "naming.1.json",
// "naming.2.json"), the Nth call for that rule type returns the Nth fixture.
// After exhausting numbered fixtures, the base "naming.json" is used as a
// repeating fallback. Requests with no matching fixture get a synthesized
// single-candidate response derived from the submitted text.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// maxUploadSize caps document uploads.
const maxUploadSize = 8 << 20

// capturedRequest stores the key fields of an incoming extraction request
// for test verification via /requests.
type capturedRequest struct {
	Path      string `json:"path"`
	RuleType  string `json:"rule_type"`
	RulePack  string `json:"rule_pack"`
	Author    string `json:"author"`
	ProjectID string `json:"project_id"`
	Text      string `json:"text,omitempty"`
	Filename  string `json:"filename,omitempty"`
	CallIndex int    `json:"call_index"` // 1-indexed per-type call number
	Timestamp int64  `json:"timestamp"`
}

type server struct {
	fixtures map[string][]string // rule type → ordered fixture contents
	calls    atomic.Int64        // total calls served

	// Per-type call counters for sequential fixture selection.
	typeCalls   map[string]*atomic.Int64
	typeCallsMu sync.Mutex

	// Request capture for verification in e2e tests.
	requests   []capturedRequest
	requestsMu sync.Mutex
}

func newServer(fixtures map[string][]string) *server {
	return &server{
		fixtures:  fixtures,
		typeCalls: make(map[string]*atomic.Int64),
	}
}

func (s *server) getTypeCounter(ruleType string) *atomic.Int64 {
	s.typeCallsMu.Lock()
	defer s.typeCallsMu.Unlock()
	if c, ok := s.typeCalls[ruleType]; ok {
		return c
	}
	c := &atomic.Int64{}
	s.typeCalls[ruleType] = c
	return c
}

func (s *server) capture(req capturedRequest) {
	s.requestsMu.Lock()
	defer s.requestsMu.Unlock()
	req.Timestamp = time.Now().UnixMilli()
	s.requests = append(s.requests, req)
}

func main() {
	fixtureDir := flag.String("fixtures", "", "directory containing fixture response files")
	port := flag.Int("port", 8000, "port to listen on")
	flag.Parse()

	// Allow env var override
	if envDir := os.Getenv("MOCK_EXTRACTOR_FIXTURES"); envDir != "" && *fixtureDir == "" {
		*fixtureDir = envDir
	}

	fixtures := map[string][]string{}
	if *fixtureDir != "" {
		var err error
		fixtures, err = loadFixtures(*fixtureDir)
		if err != nil {
			log.Fatalf("Failed to load fixtures from %s: %v", *fixtureDir, err)
		}
		log.Printf("Loaded %d rule type(s) from %s", len(fixtures), *fixtureDir)
		for ruleType, seq := range fixtures {
			log.Printf("  rule type: %s (%d fixture(s))", ruleType, len(seq))
		}
	} else {
		log.Printf("No fixture directory, synthesizing responses")
	}

	s := newServer(fixtures)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/extract-rule", s.handleExtractRule)
	mux.HandleFunc("/api/extract-from-document", s.handleExtractDocument)
	mux.HandleFunc("/stats", s.handleStats)
	mux.HandleFunc("/requests", s.handleRequests)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("Mock extractor listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleExtractRule(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		// The real backend also accepts url-encoded forms.
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
	}

	text := r.FormValue("text")
	s.respond(w, capturedRequest{
		Path:      r.URL.Path,
		RuleType:  r.FormValue("rule_type"),
		RulePack:  r.FormValue("rule_pack"),
		Author:    r.FormValue("author"),
		ProjectID: r.FormValue("project_id"),
		Text:      text,
	}, text)
}

func (s *server) handleExtractDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}

	filename := ""
	if _, header, err := r.FormFile("file"); err == nil {
		filename = header.Filename
	}

	s.respond(w, capturedRequest{
		Path:      r.URL.Path,
		RuleType:  r.FormValue("rule_type"),
		RulePack:  r.FormValue("rule_pack"),
		Author:    r.FormValue("author"),
		ProjectID: r.FormValue("project_id"),
		Filename:  filename,
	}, filename)
}

func (s *server) respond(w http.ResponseWriter, req capturedRequest, seed string) {
	callNum := s.calls.Add(1)

	ruleType := req.RuleType
	if ruleType == "" {
		ruleType = "code"
	}

	counter := s.getTypeCounter(ruleType)
	callIndex := int(counter.Add(1) - 1) // 0-indexed
	req.CallIndex = callIndex + 1
	s.capture(req)

	log.Printf("[call %d] path=%s rule_type=%s call_index=%d", callNum, req.Path, ruleType, callIndex+1)

	if seq, ok := s.fixtures[ruleType]; ok {
		content := seq[len(seq)-1]
		if callIndex < len(seq) {
			content = seq[callIndex]
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(content))
		return
	}

	// No fixture: synthesize one deterministic candidate.
	id := fmt.Sprintf("mock.%s.%d", ruleType, callIndex+1)
	yaml := fmt.Sprintf("id: %s\nname: Mock %s rule\ntype: %s\nseverity: MAJOR\nmessage: Synthesized from %q\n",
		id, ruleType, ruleType, truncate(seed, 60))

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"rules": []map[string]any{{
			"yaml":           yaml,
			"confidence":     0.9,
			"category":       ruleType,
			"source_snippet": truncate(seed, 120),
		}},
	})
}

func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.typeCallsMu.Lock()
	perType := make(map[string]int64, len(s.typeCalls))
	for ruleType, c := range s.typeCalls {
		perType[ruleType] = c.Load()
	}
	s.typeCallsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls": s.calls.Load(),
		"per_type":    perType,
	})
}

func (s *server) handleRequests(w http.ResponseWriter, _ *http.Request) {
	s.requestsMu.Lock()
	requests := make([]capturedRequest, len(s.requests))
	copy(requests, s.requests)
	s.requestsMu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"requests": requests})
}

// numberedFixture matches "name.N.json" sequential fixture files.
var numberedFixture = regexp.MustCompile(`^(.+)\.(\d+)\.json$`)

// loadFixtures reads fixture files from a directory. "naming.json" is the
// base fixture for rule type "naming"; "naming.1.json", "naming.2.json"
// form an ordered sequence ahead of the base.
func loadFixtures(dir string) (map[string][]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	type numbered struct {
		index   int
		content string
	}
	sequences := make(map[string][]numbered)
	bases := make(map[string]string)

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}

		if m := numberedFixture.FindStringSubmatch(name); m != nil {
			index, err := strconv.Atoi(m[2])
			if err != nil {
				continue
			}
			sequences[m[1]] = append(sequences[m[1]], numbered{index: index, content: string(content)})
			continue
		}
		bases[strings.TrimSuffix(name, ".json")] = string(content)
	}

	fixtures := make(map[string][]string)
	for ruleType, seq := range sequences {
		sort.Slice(seq, func(i, j int) bool { return seq[i].index < seq[j].index })
		for _, n := range seq {
			fixtures[ruleType] = append(fixtures[ruleType], n.content)
		}
		if base, ok := bases[ruleType]; ok {
			fixtures[ruleType] = append(fixtures[ruleType], base)
		}
	}
	for ruleType, base := range bases {
		if _, ok := fixtures[ruleType]; !ok {
			fixtures[ruleType] = []string{base}
		}
	}

	if len(fixtures) == 0 {
		return nil, fmt.Errorf("no fixture files in %s", dir)
	}
	return fixtures, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

package rule

import (
	"strings"
	"testing"
)

const sampleDoc = `id: abap.db.no-select-star
name: Avoid SELECT *
type: performance
severity: MAJOR
pack: abap-core-standards
message: Select only the columns you need.
pattern:
  language: abap
  match: 'SELECT \*'
`

func TestParse(t *testing.T) {
	doc, err := Parse(sampleDoc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if doc.ID != "abap.db.no-select-star" {
		t.Errorf("ID = %q, want %q", doc.ID, "abap.db.no-select-star")
	}
	if doc.Type != "performance" {
		t.Errorf("Type = %q, want %q", doc.Type, "performance")
	}
	if doc.Severity != "MAJOR" {
		t.Errorf("Severity = %q, want %q", doc.Severity, "MAJOR")
	}
	if doc.Pattern == nil || doc.Pattern.Language != "abap" {
		t.Errorf("Pattern = %+v, want language abap", doc.Pattern)
	}
}

func TestParseInvalid(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"plain scalar", "just a sentence, not a mapping"},
		{"broken indentation", "id: x\n  pattern:\n language: [oops"},
		{"sequence root", "- one\n- two\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.text); err == nil {
				t.Errorf("Parse(%q) expected error", tt.text)
			}
		})
	}
}

func TestParseEmptyText(t *testing.T) {
	// Empty text is valid YAML (null document): zero-value fields, no error.
	doc, err := Parse("")
	if err != nil {
		t.Fatalf("Parse(\"\") error = %v", err)
	}
	if doc.ID != "" || doc.Severity != "" {
		t.Errorf("expected zero document, got %+v", doc)
	}
}

func TestMarshalRoundTrip(t *testing.T) {
	doc, err := Parse(sampleDoc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	out, err := doc.Marshal()
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	reparsed, err := Parse(out)
	if err != nil {
		t.Fatalf("Parse(Marshal()) error = %v", err)
	}
	if *reparsed.Pattern != *doc.Pattern {
		t.Errorf("pattern changed in round trip: %+v != %+v", reparsed.Pattern, doc.Pattern)
	}
	reparsed.Pattern, doc.Pattern = nil, nil
	if *reparsed != *doc {
		t.Errorf("document changed in round trip: %+v != %+v", reparsed, doc)
	}
}

func TestRewriteSeverity(t *testing.T) {
	out, err := RewriteSeverity(sampleDoc, SeverityCritical)
	if err != nil {
		t.Fatalf("RewriteSeverity() error = %v", err)
	}
	if !strings.Contains(out, "severity: CRITICAL") {
		t.Errorf("output missing rewritten severity:\n%s", out)
	}
	if strings.Contains(out, "MAJOR") {
		t.Errorf("old severity still present:\n%s", out)
	}
}

func TestRewriteSeverityPreservesUnknownFields(t *testing.T) {
	text := "id: r1\nseverity: MINOR\ntitle: Custom title\nrationale: because\n"
	out, err := RewriteSeverity(text, SeverityMajor)
	if err != nil {
		t.Fatalf("RewriteSeverity() error = %v", err)
	}
	for _, want := range []string{"severity: MAJOR", "title: Custom title", "rationale: because"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRewriteSeverityAddsMissingField(t *testing.T) {
	out, err := RewriteSeverity("id: r1\ntype: naming\n", SeverityInfo)
	if err != nil {
		t.Fatalf("RewriteSeverity() error = %v", err)
	}
	if !strings.Contains(out, "severity: INFO") {
		t.Errorf("severity not appended:\n%s", out)
	}
}

func TestRewriteSeverityRejectsNonMapping(t *testing.T) {
	if _, err := RewriteSeverity("not: [valid", SeverityMajor); err == nil {
		t.Error("expected error for broken YAML")
	}
	if _, err := RewriteSeverity("- a\n- b\n", SeverityMajor); err == nil {
		t.Error("expected error for sequence document")
	}
}

func TestCategoryIsValid(t *testing.T) {
	for _, c := range Categories() {
		if !c.IsValid() {
			t.Errorf("Categories() returned invalid category %q", c)
		}
	}
	if Category("security").IsValid() {
		t.Error("unknown category reported valid")
	}
}

func TestSeverityIsValid(t *testing.T) {
	for _, s := range Severities() {
		if !s.IsValid() {
			t.Errorf("Severities() returned invalid severity %q", s)
		}
	}
	if Severity("warn").IsValid() {
		t.Error("unknown severity reported valid")
	}
}

package review

import (
	"testing"

	"github.com/harmonizehq/ruleforge/rule"
)

func TestProjectNoCriteria(t *testing.T) {
	s := seedStore(t, "id: a\ntype: code\n", "id: b\ntype: naming\n")
	got := Project(s, Criteria{})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].DerivedID != "a" || got[1].DerivedID != "b" {
		t.Errorf("store order not preserved: %q, %q", got[0].DerivedID, got[1].DerivedID)
	}
}

func TestProjectCategoryPredicate(t *testing.T) {
	s := seedStore(t, "id: R1\nseverity: MINOR\ntype: naming\n")

	if got := Project(s, Criteria{Category: rule.CategoryNaming}); len(got) != 1 {
		t.Errorf("naming filter: len = %d, want 1", len(got))
	}
	if got := Project(s, Criteria{Category: rule.CategoryCode}); len(got) != 0 {
		t.Errorf("code filter: len = %d, want 0", len(got))
	}
}

func TestProjectQueryPredicate(t *testing.T) {
	s := seedStore(t, "id: select-star\nmessage: Avoid SELECT star\n", "id: other\n")

	tests := []struct {
		query string
		want  int
	}{
		{"select", 1},      // case-insensitive
		{"SELECT", 1},      // matches lowercase id too
		{"avoid select", 1},
		{"nonexistent", 0},
		{"id", 2},
	}
	for _, tt := range tests {
		if got := Project(s, Criteria{Query: tt.query}); len(got) != tt.want {
			t.Errorf("query %q: len = %d, want %d", tt.query, len(got), tt.want)
		}
	}
}

func TestProjectCombinedPredicates(t *testing.T) {
	s := seedStore(t,
		"id: a\ntype: code\nmessage: use try\n",
		"id: b\ntype: code\nmessage: other\n",
		"id: c\ntype: naming\nmessage: use try\n",
	)
	got := Project(s, Criteria{Category: rule.CategoryCode, Query: "try"})
	if len(got) != 1 || got[0].DerivedID != "a" {
		t.Errorf("combined filter: got %d results, want exactly candidate a", len(got))
	}
}

func TestProjectExcludesDiscarded(t *testing.T) {
	s := seedStore(t, "id: a\n", "id: b\n")
	if err := s.Discard(1); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	for _, crit := range []Criteria{{}, {Query: "id"}, {Query: "b"}} {
		for _, c := range Project(s, crit) {
			if c.Status == StatusDiscarded {
				t.Errorf("criteria %+v: discarded candidate leaked into projection", crit)
			}
		}
	}
	if got := Project(s, Criteria{}); len(got) != 1 {
		t.Errorf("len = %d, want 1 after discard", len(got))
	}
	if s.Len() != 2 {
		t.Errorf("store length changed: %d, want 2", s.Len())
	}
}

func TestProjectDoesNotMutateStore(t *testing.T) {
	s := seedStore(t, "id: a\n")
	before := s.All()
	_ = Project(s, Criteria{Query: "a"})
	after := s.All()
	if len(before) != len(after) || before[0] != after[0] {
		t.Error("projection mutated the store")
	}
}

func TestSummarize(t *testing.T) {
	s := seedStore(t,
		"id: a\ntype: code\n",
		"id: b\ntype: code\n",
		"id: c\ntype: performance\n",
		"id: d\ntype: template\n",
		"id: e\n", // no category
	)
	if err := s.Discard(1); err != nil {
		t.Fatalf("Discard() error = %v", err)
	}

	sum := Summarize(s)
	if sum.Code != 1 {
		t.Errorf("Code = %d, want 1 (one discarded)", sum.Code)
	}
	if sum.Performance != 1 || sum.Template != 1 {
		t.Errorf("Performance = %d, Template = %d, want 1 each", sum.Performance, sum.Template)
	}
	if sum.Total != 4 {
		t.Errorf("Total = %d, want 4", sum.Total)
	}
}

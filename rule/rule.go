// Package rule defines the canonical governance rule document: the
// YAML-serialized definition that is the single source of truth for a rule,
// and the enums (category, severity) shared across the review engine.
package rule

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Pattern is the optional machine-checkable selector of a rule.
type Pattern struct {
	Language string `yaml:"language,omitempty" json:"language,omitempty"`
	Match    string `yaml:"match,omitempty" json:"match,omitempty"`
}

// Document is the structured form of a canonical rule definition.
// Field order matters: Marshal emits fields in declaration order, and
// reviewers read the serialized text directly.
type Document struct {
	ID       string   `yaml:"id,omitempty" json:"id,omitempty"`
	Name     string   `yaml:"name,omitempty" json:"name,omitempty"`
	Type     string   `yaml:"type,omitempty" json:"type,omitempty"`
	Severity string   `yaml:"severity,omitempty" json:"severity,omitempty"`
	Pack     string   `yaml:"pack,omitempty" json:"pack,omitempty"`
	Message  string   `yaml:"message,omitempty" json:"message,omitempty"`
	Pattern  *Pattern `yaml:"pattern,omitempty" json:"pattern,omitempty"`
}

// Parse parses canonical rule text into its structured form.
// Unknown fields are tolerated and dropped; use ParseObject when the full
// content must survive (pack assembly).
func Parse(text string) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("parse rule document: %w", err)
	}
	return &doc, nil
}

// ParseObject parses canonical rule text into a generic mapping, preserving
// fields outside the fixed schema (title, rationale, examples, ...).
func ParseObject(text string) (map[string]any, error) {
	var obj map[string]any
	if err := yaml.Unmarshal([]byte(text), &obj); err != nil {
		return nil, fmt.Errorf("parse rule object: %w", err)
	}
	return obj, nil
}

// Marshal serializes the document back to canonical YAML text.
func (d *Document) Marshal() (string, error) {
	data, err := yaml.Marshal(d)
	if err != nil {
		return "", fmt.Errorf("marshal rule document: %w", err)
	}
	return string(data), nil
}

// RewriteSeverity returns text with the top-level severity field set to sev,
// preserving every other field, comments, and ordering. The rewrite operates
// on the YAML node tree rather than round-tripping through Document so that
// reviewer-authored fields outside the fixed schema are not lost.
func RewriteSeverity(text string, sev Severity) (string, error) {
	var root yaml.Node
	if err := yaml.Unmarshal([]byte(text), &root); err != nil {
		return "", fmt.Errorf("parse rule document: %w", err)
	}

	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return "", fmt.Errorf("rule document is not a mapping")
	}

	mapping := root.Content[0]
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == "severity" {
			mapping.Content[i+1].SetString(string(sev))
			return encodeNode(&root)
		}
	}

	// No severity field yet: append one.
	key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: "severity"}
	val := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: string(sev)}
	mapping.Content = append(mapping.Content, key, val)
	return encodeNode(&root)
}

func encodeNode(n *yaml.Node) (string, error) {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return "", fmt.Errorf("encode rule document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("encode rule document: %w", err)
	}
	return sb.String(), nil
}

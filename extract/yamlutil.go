package extract

import (
	"regexp"
	"strings"
)

// Extraction backends assemble rule YAML with LLMs, which like to wrap it in
// markdown fences or prefix it with prose. CleanYAML recovers the document.

var (
	// yamlBlockPattern matches YAML inside markdown code fences.
	yamlBlockPattern = regexp.MustCompile("(?s)```(?:ya?ml)?\\s*\\n(.*?)```")
)

// CleanYAML strips markdown code fences and surrounding chatter from a rule
// document returned by an extraction backend. Text without fences is
// returned trimmed but otherwise untouched.
func CleanYAML(content string) string {
	if matches := yamlBlockPattern.FindStringSubmatch(content); len(matches) > 1 {
		return strings.TrimSpace(matches[1]) + "\n"
	}
	return strings.TrimSpace(content) + "\n"
}

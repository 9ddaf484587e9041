package rule

// Category classifies a rule by what it governs.
type Category string

// Category values accepted by the extraction contract and the review UI.
const (
	CategoryCode        Category = "code"
	CategoryDesign      Category = "design"
	CategoryNaming      Category = "naming"
	CategoryPerformance Category = "performance"
	CategoryTemplate    Category = "template"
)

// Categories lists every valid category in display order.
func Categories() []Category {
	return []Category{
		CategoryCode,
		CategoryDesign,
		CategoryNaming,
		CategoryPerformance,
		CategoryTemplate,
	}
}

// String returns the string representation of the category.
func (c Category) String() string {
	return string(c)
}

// IsValid returns true if the category is one of the known values.
func (c Category) IsValid() bool {
	switch c {
	case CategoryCode, CategoryDesign, CategoryNaming, CategoryPerformance, CategoryTemplate:
		return true
	default:
		return false
	}
}

// Severity grades how serious a rule violation is.
type Severity string

// Severity values used by the rule schema and the severity selector.
const (
	SeverityCritical Severity = "CRITICAL"
	SeverityMajor    Severity = "MAJOR"
	SeverityMinor    Severity = "MINOR"
	SeverityInfo     Severity = "INFO"
)

// Severities lists every valid severity from most to least severe.
func Severities() []Severity {
	return []Severity{SeverityCritical, SeverityMajor, SeverityMinor, SeverityInfo}
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	return string(s)
}

// IsValid returns true if the severity is one of the known values.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityMajor, SeverityMinor, SeverityInfo:
		return true
	default:
		return false
	}
}

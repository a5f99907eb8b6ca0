// Package rules holds the vocabulary shared by the clinical rule packages.
package rules

// Severity orders rule findings. The zero value is SeverityNone.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "none"
	}
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Max returns the more severe of a and b.
func Max(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

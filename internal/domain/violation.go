package domain

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityError    Severity = "error"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities, 0 most severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityError:
		return 1
	case SeverityWarning:
		return 2
	default:
		return 3
	}
}

// ConstraintViolation is a derived report, recomputed on every plan
// generation and never persisted as a standalone record.
type ConstraintViolation struct {
	ConstraintID        string   `json:"constraintId"`
	Severity            Severity `json:"severity"`
	Message             string   `json:"message"`
	AffectedAssignments []string `json:"affectedAssignments"`
	SuggestedActions    []string `json:"suggestedActions"`
}

// Blocking reports whether the violation must prevent a commit.
func (v *ConstraintViolation) Blocking() bool {
	return v.Severity == SeverityCritical || v.Severity == SeverityError
}

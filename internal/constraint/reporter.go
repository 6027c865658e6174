package constraint

import (
	"strings"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

// autoResolvablePhrases are suggested actions the system knows how to execute
// on behalf of the planner. Classification lives here, on the consumer side,
// not in the evaluator.
var autoResolvablePhrases = []string{
	"Reassign to available employee",
	"Swap with available employee",
}

// ViolationGroup is the per-constraint view the review UI works with.
type ViolationGroup struct {
	ConstraintID   string                       `json:"constraintId"`
	Worst          domain.Severity              `json:"worst"`
	Blocking       bool                         `json:"blocking"`
	AutoResolvable bool                         `json:"autoResolvable"`
	Violations     []domain.ConstraintViolation `json:"violations"`
}

// AutoResolvable reports whether at least one suggested action on the
// violation is system-executable.
func AutoResolvable(v *domain.ConstraintViolation) bool {
	for _, action := range v.SuggestedActions {
		for _, phrase := range autoResolvablePhrases {
			if strings.EqualFold(action, phrase) {
				return true
			}
		}
	}
	return false
}

// GroupByConstraint buckets violations by constraint id, preserving the
// evaluator's ordering within each group.
func GroupByConstraint(violations []domain.ConstraintViolation) []ViolationGroup {
	index := map[string]int{}
	var groups []ViolationGroup

	for _, v := range violations {
		i, ok := index[v.ConstraintID]
		if !ok {
			i = len(groups)
			index[v.ConstraintID] = i
			groups = append(groups, ViolationGroup{ConstraintID: v.ConstraintID, Worst: v.Severity})
		}
		g := &groups[i]
		g.Violations = append(g.Violations, v)
		if v.Severity.Rank() < g.Worst.Rank() {
			g.Worst = v.Severity
		}
		if v.Blocking() {
			g.Blocking = true
		}
		if AutoResolvable(&v) {
			g.AutoResolvable = true
		}
	}

	return groups
}

// HasBlocking reports whether any violation would prevent a commit.
func HasBlocking(violations []domain.ConstraintViolation) bool {
	for _, v := range violations {
		if v.Blocking() {
			return true
		}
	}
	return false
}

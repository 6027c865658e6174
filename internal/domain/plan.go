package domain

import "time"

// CoverageGap records a demand slot left under-covered by a proposal.
type CoverageGap struct {
	DemandID string `json:"demandId"`
	Required int    `json:"required"`
	Assigned int    `json:"assigned"`
}

type Coverage struct {
	Percentage float64       `json:"percentage"`
	Gaps       []CoverageGap `json:"gaps"`
}

// PlanProposal is ephemeral until committed; committing promotes a subset of
// its assignments from proposed to confirmed and freezes the plan as history.
type PlanProposal struct {
	ID          string                `json:"id"`
	Strategy    string                `json:"strategy"`
	RangeStart  time.Time             `json:"rangeStart"`
	RangeEnd    time.Time             `json:"rangeEnd"`
	Assignments []Assignment          `json:"assignments"`
	Coverage    Coverage              `json:"coverage"`
	Violations  []ConstraintViolation `json:"violations"`
	CreatedAt   time.Time             `json:"createdAt"`
	CreatedBy   string                `json:"createdBy"`
	Committed   bool                  `json:"committed"`
	Version     int32                 `json:"-"`
}

// CommitOutcome reports the per-assignment result of a commit call.
type CommitOutcome struct {
	AssignmentID string `json:"assignmentId"`
	Committed    bool   `json:"committed"`
	Error        string `json:"error,omitempty"`
}

type CommitResult struct {
	PlanID    string          `json:"planId"`
	Committed int             `json:"committed"`
	Failed    int             `json:"failed"`
	Outcomes  []CommitOutcome `json:"outcomes"`
	Conflicts []Conflict      `json:"conflicts"`
}

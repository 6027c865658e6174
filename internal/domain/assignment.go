package domain

import "time"

type AssignmentStatus string

const (
	AssignmentProposed  AssignmentStatus = "proposed"
	AssignmentConfirmed AssignmentStatus = "confirmed"
	AssignmentRejected  AssignmentStatus = "rejected"
)

// Assignment binds an employee to a demand slot (station x shift template x date).
// IDs are client-generated for new entries and confirmed by the server on create.
type Assignment struct {
	ID          string           `json:"id"`
	DemandID    string           `json:"demandId"`
	EmployeeID  string           `json:"employeeId"`
	Status      AssignmentStatus `json:"status"`
	Score       float64          `json:"score"`
	Explanation string           `json:"explanation,omitempty"`
	CreatedAt   time.Time        `json:"createdAt"`
	CreatedBy   string           `json:"createdBy"`
	// UpdatedAt is nil until the assignment has been persisted; a non-nil
	// value makes it subject to the staleness check during sync.
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Version   int32      `json:"-"`
}

// Active reports whether the assignment counts toward the double-booking
// invariant (rejected assignments do not occupy the employee's time).
func (a *Assignment) Active() bool {
	return a.Status == AssignmentProposed || a.Status == AssignmentConfirmed
}

type ChangeType string

const (
	ChangeAdd    ChangeType = "add"
	ChangeUpdate ChangeType = "update"
	ChangeDelete ChangeType = "delete"
)

// PlanningChange is the unit of synchronization. Changes are ephemeral: only
// their effect on assignments is ever persisted. The ID is assigned by the
// client and is distinct from the assignment ID.
type PlanningChange struct {
	ID         string     `json:"id"`
	Type       ChangeType `json:"type"`
	Assignment Assignment `json:"assignment"`
	Timestamp  time.Time  `json:"timestamp"`
}

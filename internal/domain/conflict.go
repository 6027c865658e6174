package domain

import "time"

type ConflictType string

const (
	ConflictConcurrentModification ConflictType = "concurrent_modification"
	ConflictDoubleBooking          ConflictType = "double_booking"
	ConflictAbsenceOverlap         ConflictType = "absence_overlap"
	ConflictAssignment             ConflictType = "assignment_conflict"
)

// Conflict is produced by the sync reconciler or the commit coordinator,
// never by the client. It is surfaced to the user, resolved once, then
// discarded; conflicts are not retried automatically.
type Conflict struct {
	ID                  string       `json:"id"`
	Type                ConflictType `json:"type"`
	AffectedAssignments []string     `json:"affectedAssignments"`
	Message             string       `json:"message"`
	DetectedAt          time.Time    `json:"detectedAt"`
}

type ResolutionAction string

const (
	ResolveAcceptLocal  ResolutionAction = "accept_local"
	ResolveAcceptRemote ResolutionAction = "accept_remote"
	ResolveMerge        ResolutionAction = "merge"
	ResolveManual       ResolutionAction = "manual"
)

type Resolution struct {
	Action             ResolutionAction `json:"action"`
	ResolvedAssignment *Assignment      `json:"resolvedAssignment,omitempty"`
}

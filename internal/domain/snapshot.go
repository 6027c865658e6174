package domain

import "time"

// Snapshot checkpoints the full assignment set for a date. Created on demand,
// never mutated after creation.
type Snapshot struct {
	ID          string       `json:"id"`
	Date        time.Time    `json:"date"`
	Assignments []Assignment `json:"assignments"`
	Version     int64        `json:"version"`
	Conflicts   []Conflict   `json:"conflicts,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	CreatedBy   string       `json:"createdBy"`
}

package domain

import "time"

// PlanningData is the full authoritative view for one date, as served by
// GET /planning/data/{date} and consumed by the optimistic client on reload.
type PlanningData struct {
	Date           time.Time             `json:"date"`
	Stations       []Station             `json:"stations"`
	ShiftTemplates []ShiftTemplate       `json:"shiftTemplates"`
	Employees      []Employee            `json:"employees"`
	Demands        []DemandSlot          `json:"demands"`
	Assignments    []Assignment          `json:"assignments"`
	CoverageStatus Coverage              `json:"coverageStatus"`
	Violations     []ConstraintViolation `json:"violations"`
}

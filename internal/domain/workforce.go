package domain

import "time"

type ContractType string

const (
	ContractFullTime   ContractType = "full_time"
	ContractPartTime   ContractType = "part_time"
	ContractApprentice ContractType = "apprentice"
	ContractTemporary  ContractType = "temporary"
)

type EmployeeSkill struct {
	SkillID string `json:"skillId"`
	// Level is ordinal: 1 (trained) .. 4 (expert).
	Level int `json:"level"`
	// CertifiedUntil is nil for skills without expiring certification.
	CertifiedUntil *time.Time `json:"certifiedUntil,omitempty"`
}

type Absence struct {
	ID         string    `json:"id"`
	EmployeeID string    `json:"employeeId"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	Reason     string    `json:"reason"`
}

type Employee struct {
	ID           string          `json:"id"`
	FullName     string          `json:"fullName"`
	Email        string          `json:"email"`
	ContractType ContractType    `json:"contractType"`
	// MaxHoursPerWeek comes from the labor contract, not from scheduling policy.
	MaxHoursPerWeek float64         `json:"maxHoursPerWeek"`
	Skills          []EmployeeSkill `json:"skills"`
	Absences        []Absence       `json:"absences"`
	IsActive        bool            `json:"isActive"`
}

// SkillLevel returns the employee's level for a skill, 0 when untrained.
func (e *Employee) SkillLevel(skillID string) int {
	for _, s := range e.Skills {
		if s.SkillID == skillID {
			return s.Level
		}
	}
	return 0
}

// AbsentOn reports whether the employee has an absence covering the given day.
func (e *Employee) AbsentOn(day time.Time) bool {
	for _, ab := range e.Absences {
		if !day.Before(ab.StartDate) && !day.After(ab.EndDate) {
			return true
		}
	}
	return false
}

type StationPriority string

const (
	PriorityCritical StationPriority = "critical"
	PriorityHigh     StationPriority = "high"
	PriorityNormal   StationPriority = "normal"
	PriorityLow      StationPriority = "low"
)

func (p StationPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

type Station struct {
	ID              string          `json:"id"`
	Name            string          `json:"name"`
	Priority        StationPriority `json:"priority"`
	RequiredSkillID string          `json:"requiredSkillId"`
	MinSkillLevel   int             `json:"minSkillLevel"`
	RequiredWorkers int             `json:"requiredWorkers"`
}

// ShiftTemplate describes a recurring shift window. StartTime and EndTime are
// "HH:MM" wall-clock strings; EndTime < StartTime means the shift crosses
// midnight.
type ShiftTemplate struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	IsNight   bool   `json:"isNight"`
}

// Window resolves the template to a concrete [start, end) interval on a day.
// Overnight shifts get 24h added to the end, one rule applied everywhere.
func (st *ShiftTemplate) Window(day time.Time) (time.Time, time.Time) {
	start := atClock(day, st.StartTime)
	end := atClock(day, st.EndTime)
	if !end.After(start) {
		end = end.Add(24 * time.Hour)
	}
	return start, end
}

// DurationHours is the shift length in hours, overnight-aware.
func (st *ShiftTemplate) DurationHours() float64 {
	start, end := st.Window(time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC))
	return end.Sub(start).Hours()
}

func atClock(day time.Time, clock string) time.Time {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	}
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, day.Location())
}

// DemandSlot is an open requirement for N workers at a station, shift template
// and date.
type DemandSlot struct {
	ID              string    `json:"id"`
	StationID       string    `json:"stationId"`
	ShiftTemplateID string    `json:"shiftTemplateId"`
	Date            time.Time `json:"date"`
	RequiredWorkers int       `json:"requiredWorkers"`
}

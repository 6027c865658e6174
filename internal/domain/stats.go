package domain

// AssignmentStats is the aggregate view over a date range. TotalHours counts
// confirmed assignments only.
type AssignmentStats struct {
	Total        int                      `json:"total"`
	ByStatus     map[AssignmentStatus]int `json:"byStatus"`
	ByEmployee   map[string]int           `json:"byEmployee"`
	TotalHours   float64                  `json:"totalHours"`
	AverageScore float64                  `json:"averageScore"`
}

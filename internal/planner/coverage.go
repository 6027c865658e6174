package planner

import "github.com/fabline-dev/shift-planner/backend/internal/domain"

// CoverageFor computes the filled-to-required ratio over demand slots given
// the active assignments currently on record.
func CoverageFor(demands []domain.DemandSlot, assignments []domain.Assignment) domain.Coverage {
	assigned := map[string]int{}
	for _, a := range assignments {
		if a.Active() {
			assigned[a.DemandID]++
		}
	}

	coverage := domain.Coverage{}
	required, filled := 0, 0
	for _, d := range demands {
		required += d.RequiredWorkers
		got := assigned[d.ID]
		if got > d.RequiredWorkers {
			got = d.RequiredWorkers
		}
		filled += got
		if got < d.RequiredWorkers {
			coverage.Gaps = append(coverage.Gaps, domain.CoverageGap{
				DemandID: d.ID,
				Required: d.RequiredWorkers,
				Assigned: assigned[d.ID],
			})
		}
	}
	if required > 0 {
		coverage.Percentage = 100 * float64(filled) / float64(required)
	}
	return coverage
}

package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

// Weights tune scoring per strategy; feasibility is never affected.
type Weights struct {
	SkillMatch float64
	Fairness   float64
}

func weightsFor(strategy Strategy) Weights {
	switch strategy {
	case StrategyBasic:
		return Weights{SkillMatch: 1.0, Fairness: 0.1}
	default: // balanced
		return Weights{SkillMatch: 0.6, Fairness: 0.4}
	}
}

type candidate struct {
	employee    domain.Employee
	score       float64
	explanation string
}

// rankCandidates applies the hard constraints as filters, then scores the
// survivors. An employee who would violate a hard constraint is excluded from
// candidacy, not assigned and flagged.
func (g *Generator) rankCandidates(demand domain.DemandSlot, start, end time.Time,
	led *ledger, weights Weights, custom []CustomConstraint) []candidate {

	station := g.stations[demand.StationID]
	shift := g.shifts[demand.ShiftTemplateID]
	shiftHours := end.Sub(start).Hours()

	var out []candidate
	for _, emp := range g.employees {
		if !emp.IsActive {
			continue
		}
		if emp.AbsentOn(demand.Date) {
			continue
		}
		if station.RequiredSkillID != "" && emp.SkillLevel(station.RequiredSkillID) < station.MinSkillLevel {
			continue
		}
		if shift.IsNight && g.rules.NightAllowed != nil && !g.rules.NightAllowed[emp.ContractType] {
			continue
		}
		if led.overlaps(emp.ID, start, end) {
			continue
		}
		if exceedsHourLimits(g.rules.MaxDailyHours, weeklyLimit(g.rules.MaxWeeklyHours, emp), led, emp.ID, start, shiftHours) {
			continue
		}
		if !hasRest(g.rules.MinRestHours, led, emp.ID, start, end) {
			continue
		}

		out = append(out, g.score(emp, station, demand, led, weights, custom, shiftHours))
	}

	// Deterministic tie-break: score descending, then employee id.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].employee.ID < out[j].employee.ID
	})
	return out
}

func (g *Generator) score(emp domain.Employee, station domain.Station, demand domain.DemandSlot,
	led *ledger, weights Weights, custom []CustomConstraint, shiftHours float64) candidate {

	// Skill quality: how far above the station minimum the employee sits.
	skillScore := 1.0
	if station.RequiredSkillID != "" {
		level := emp.SkillLevel(station.RequiredSkillID)
		surplus := level - station.MinSkillLevel
		skillScore = 1.0 + 0.25*float64(surplus)
		if skillScore > 2.0 {
			skillScore = 2.0
		}
	}

	// Fairness: the fewer hours already booked this week, the better.
	year, week := demand.Date.ISOWeek()
	booked := led.weekHours[fmt.Sprintf("%s|%04d-W%02d", emp.ID, year, week)]
	limit := weeklyLimit(g.rules.MaxWeeklyHours, emp)
	fairness := 1.0
	if limit > 0 {
		fairness = 1.0 - booked/limit
		if fairness < 0 {
			fairness = 0
		}
	}

	score := weights.SkillMatch*skillScore + weights.Fairness*fairness
	for _, c := range custom {
		if c.EmployeeID != emp.ID {
			continue
		}
		if c.StationID != "" && c.StationID != station.ID {
			continue
		}
		switch c.Type {
		case "prefer_employee":
			score += c.Weight
		case "avoid_employee":
			score -= c.Weight
		}
	}

	return candidate{
		employee: emp,
		score:    score,
		explanation: fmt.Sprintf("skill %.2f, fairness %.2f (%.1fh booked), shift %.1fh",
			skillScore, fairness, booked, shiftHours),
	}
}

func weeklyLimit(fallback float64, emp domain.Employee) float64 {
	if emp.MaxHoursPerWeek > 0 {
		return emp.MaxHoursPerWeek
	}
	return fallback
}

func exceedsHourLimits(maxDaily, maxWeekly float64, led *ledger, employeeID string, start time.Time, shiftHours float64) bool {
	if maxDaily > 0 {
		booked := led.dayHours[employeeID+"|"+start.Format("2006-01-02")]
		if booked+shiftHours > maxDaily {
			return true
		}
	}
	if maxWeekly > 0 {
		year, week := start.ISOWeek()
		booked := led.weekHours[fmt.Sprintf("%s|%04d-W%02d", employeeID, year, week)]
		if booked+shiftHours > maxWeekly {
			return true
		}
	}
	return false
}

func hasRest(minRest float64, led *ledger, employeeID string, start, end time.Time) bool {
	if minRest <= 0 {
		return true
	}
	for _, iv := range led.intervals[employeeID] {
		// Gap before an existing shift or after one, whichever side applies.
		if iv.end.Before(start) || iv.end.Equal(start) {
			if start.Sub(iv.end).Hours() < minRest {
				return false
			}
		}
		if end.Before(iv.start) || end.Equal(iv.start) {
			if iv.start.Sub(end).Hours() < minRest {
				return false
			}
		}
	}
	return true
}

package planner

import (
	"fmt"
	"sort"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/constraint"
	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/google/uuid"
)

type Strategy string

const (
	StrategyBalanced Strategy = "balanced"
	StrategyBasic    Strategy = "basic"
)

// CustomConstraint nudges scoring without changing feasibility. Weight is
// added to (prefer) or subtracted from (avoid) the candidate's score.
type CustomConstraint struct {
	ID         string  `json:"id"`
	Type       string  `json:"type"` // prefer_employee | avoid_employee
	EmployeeID string  `json:"employeeId"`
	StationID  string  `json:"stationId,omitempty"`
	Weight     float64 `json:"weight"`
}

type Request struct {
	RangeStart       time.Time
	RangeEnd         time.Time
	StationIDs       []string
	ShiftTemplateIDs []string
	Strategy         Strategy
	Custom           []CustomConstraint
	RequestedBy      string
}

// Generator turns open demand into a scored proposal. All data is loaded up
// front by the caller; generation itself is a single blocking computation
// with no I/O.
type Generator struct {
	rules     constraint.Rules
	employees []domain.Employee
	stations  map[string]domain.Station
	shifts    map[string]domain.ShiftTemplate
	demands   []domain.DemandSlot
	// existing holds assignments already persisted for the range; they count
	// toward double-booking, hour totals and fairness but are not re-proposed.
	existing []domain.Assignment
	now      time.Time
}

func New(rules constraint.Rules, employees []domain.Employee, stations []domain.Station,
	shifts []domain.ShiftTemplate, demands []domain.DemandSlot, existing []domain.Assignment, now time.Time) *Generator {

	g := &Generator{
		rules:     rules,
		employees: employees,
		stations:  make(map[string]domain.Station, len(stations)),
		shifts:    make(map[string]domain.ShiftTemplate, len(shifts)),
		demands:   demands,
		existing:  existing,
		now:       now,
	}
	for _, s := range stations {
		g.stations[s.ID] = s
	}
	for _, s := range shifts {
		g.shifts[s.ID] = s
	}
	return g
}

// ledger tracks what each employee already carries so hard constraints can be
// applied as candidacy filters rather than assign-then-flag.
type ledger struct {
	intervals map[string][]interval // employeeID -> occupied windows
	dayHours  map[string]float64    // employeeID|day -> hours
	weekHours map[string]float64    // employeeID|week -> hours
}

type interval struct {
	start, end time.Time
}

func newLedger() *ledger {
	return &ledger{
		intervals: map[string][]interval{},
		dayHours:  map[string]float64{},
		weekHours: map[string]float64{},
	}
}

func (l *ledger) record(employeeID string, start, end time.Time) {
	l.intervals[employeeID] = append(l.intervals[employeeID], interval{start, end})
	hours := end.Sub(start).Hours()
	l.dayHours[employeeID+"|"+start.Format("2006-01-02")] += hours
	year, week := start.ISOWeek()
	l.weekHours[fmt.Sprintf("%s|%04d-W%02d", employeeID, year, week)] += hours
}

func (l *ledger) overlaps(employeeID string, start, end time.Time) bool {
	for _, iv := range l.intervals[employeeID] {
		if iv.start.Before(end) && iv.end.After(start) {
			return true
		}
	}
	return false
}

// Generate enumerates open demand for the requested scope, ranks eligible
// employees per slot and assigns greedily in slot-priority order. A second
// evaluator pass over the full result catches cross-slot constraints such as
// weekly hour totals.
func (g *Generator) Generate(req Request) (*domain.PlanProposal, error) {
	demands := g.filterDemands(req)
	if len(demands) == 0 {
		return nil, fmt.Errorf("no open demand in scope: %w", domain.ErrInsufficientData)
	}

	activeEmployees := 0
	for _, e := range g.employees {
		if e.IsActive {
			activeEmployees++
		}
	}
	if activeEmployees == 0 {
		return nil, fmt.Errorf("no eligible employees: %w", domain.ErrInsufficientData)
	}

	// Critical and high priority stations are filled first; within equal
	// priority the order is by date then demand id, so output is stable.
	sort.SliceStable(demands, func(i, j int) bool {
		pi := g.stations[demands[i].StationID].Priority.Rank()
		pj := g.stations[demands[j].StationID].Priority.Rank()
		if pi != pj {
			return pi < pj
		}
		if !demands[i].Date.Equal(demands[j].Date) {
			return demands[i].Date.Before(demands[j].Date)
		}
		return demands[i].ID < demands[j].ID
	})

	led := newLedger()
	alreadyAssigned := map[string]int{} // demandID -> count from existing assignments
	for _, a := range g.existing {
		if !a.Active() {
			continue
		}
		if start, end, ok := g.window(a.DemandID); ok {
			led.record(a.EmployeeID, start, end)
			alreadyAssigned[a.DemandID]++
		}
	}

	weights := weightsFor(req.Strategy)
	var proposed []domain.Assignment
	var gaps []domain.CoverageGap
	totalRequired, totalFilled := 0, 0

	for _, demand := range demands {
		start, end, ok := g.window(demand.ID)
		if !ok {
			continue
		}
		need := demand.RequiredWorkers - alreadyAssigned[demand.ID]
		totalRequired += demand.RequiredWorkers
		prefilled := alreadyAssigned[demand.ID]
		if prefilled > demand.RequiredWorkers {
			// Over-staffed slots never push coverage past 100%.
			prefilled = demand.RequiredWorkers
		}
		totalFilled += prefilled
		if need <= 0 {
			continue
		}

		candidates := g.rankCandidates(demand, start, end, led, weights, req.Custom)
		filled := 0
		for _, c := range candidates {
			if filled == need {
				break
			}
			proposed = append(proposed, domain.Assignment{
				ID:          uuid.NewString(),
				DemandID:    demand.ID,
				EmployeeID:  c.employee.ID,
				Status:      domain.AssignmentProposed,
				Score:       c.score,
				Explanation: c.explanation,
				CreatedAt:   g.now,
				CreatedBy:   req.RequestedBy,
			})
			led.record(c.employee.ID, start, end)
			filled++
		}
		totalFilled += filled
		if filled < need {
			gaps = append(gaps, domain.CoverageGap{
				DemandID: demand.ID,
				Required: demand.RequiredWorkers,
				Assigned: alreadyAssigned[demand.ID] + filled,
			})
		}
	}

	coverage := domain.Coverage{Gaps: gaps}
	if totalRequired > 0 {
		coverage.Percentage = 100 * float64(totalFilled) / float64(totalRequired)
	}

	violations := constraint.Evaluate(constraint.Input{
		Assignments: append(append([]domain.Assignment{}, g.existing...), proposed...),
		Demands:     g.demandMap(),
		Stations:    g.stations,
		Shifts:      g.shifts,
		Employees:   g.employeeMap(),
		Now:         g.now,
	}, g.rules)

	return &domain.PlanProposal{
		ID:          uuid.NewString(),
		Strategy:    string(req.Strategy),
		RangeStart:  req.RangeStart,
		RangeEnd:    req.RangeEnd,
		Assignments: proposed,
		Coverage:    coverage,
		Violations:  violations,
		CreatedAt:   g.now,
		CreatedBy:   req.RequestedBy,
	}, nil
}

func (g *Generator) filterDemands(req Request) []domain.DemandSlot {
	stationFilter := toSet(req.StationIDs)
	shiftFilter := toSet(req.ShiftTemplateIDs)

	var out []domain.DemandSlot
	for _, d := range g.demands {
		if d.Date.Before(req.RangeStart) || d.Date.After(req.RangeEnd) {
			continue
		}
		if len(stationFilter) > 0 && !stationFilter[d.StationID] {
			continue
		}
		if len(shiftFilter) > 0 && !shiftFilter[d.ShiftTemplateID] {
			continue
		}
		out = append(out, d)
	}
	return out
}

func (g *Generator) window(demandID string) (time.Time, time.Time, bool) {
	for _, d := range g.demands {
		if d.ID == demandID {
			shift, ok := g.shifts[d.ShiftTemplateID]
			if !ok {
				return time.Time{}, time.Time{}, false
			}
			start, end := shift.Window(d.Date)
			return start, end, true
		}
	}
	return time.Time{}, time.Time{}, false
}

func (g *Generator) demandMap() map[string]domain.DemandSlot {
	m := make(map[string]domain.DemandSlot, len(g.demands))
	for _, d := range g.demands {
		m[d.ID] = d
	}
	return m
}

func (g *Generator) employeeMap() map[string]domain.Employee {
	m := make(map[string]domain.Employee, len(g.employees))
	for _, e := range g.employees {
		m[e.ID] = e
	}
	return m
}

func toSet(ids []string) map[string]bool {
	if len(ids) == 0 {
		return nil
	}
	m := make(map[string]bool, len(ids))
	for _, id := range ids {
		m[id] = true
	}
	return m
}

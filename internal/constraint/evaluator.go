package constraint

import (
	"fmt"
	"sort"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

// Input carries everything a rule may need to judge an assignment set. Now is
// passed explicitly so rules that depend on wall-clock time (certification
// expiry) stay deterministic under test.
type Input struct {
	Assignments []domain.Assignment
	Demands     map[string]domain.DemandSlot
	Stations    map[string]domain.Station
	Shifts      map[string]domain.ShiftTemplate
	Employees   map[string]domain.Employee
	Now         time.Time
}

// Rules is the active labor rule set. Zero values disable a rule.
type Rules struct {
	MaxConsecutiveDays int
	MinRestHours       float64
	MaxDailyHours      float64
	// MaxWeeklyHours applies when the employee's contract does not carry its
	// own weekly cap.
	MaxWeeklyHours float64
	// NightAllowed lists contract types permitted on night shifts.
	NightAllowed map[domain.ContractType]bool
	// MaxWeekendDaysPerWeek caps Saturday/Sunday assignments per ISO week.
	MaxWeekendDaysPerWeek int
}

func DefaultRules() Rules {
	return Rules{
		MaxConsecutiveDays: 6,
		MinRestHours:       11,
		MaxDailyHours:      10,
		MaxWeeklyHours:     48,
		NightAllowed: map[domain.ContractType]bool{
			domain.ContractFullTime:  true,
			domain.ContractPartTime:  true,
			domain.ContractTemporary: true,
		},
		MaxWeekendDaysPerWeek: 1,
	}
}

// Evaluate runs every rule over the candidate set and returns the violations
// ordered by constraint id, then severity. It never mutates its inputs and is
// deterministic for identical inputs.
func Evaluate(in Input, rules Rules) []domain.ConstraintViolation {
	var out []domain.ConstraintViolation

	out = append(out, checkSkillMatch(in)...)
	out = append(out, checkAbsenceOverlap(in)...)
	out = append(out, checkOverlaps(in)...)
	out = append(out, checkDailyHours(in, rules)...)
	out = append(out, checkWeeklyHours(in, rules)...)
	out = append(out, checkConsecutiveDays(in, rules)...)
	out = append(out, checkRestHours(in, rules)...)
	out = append(out, checkNightShifts(in, rules)...)
	out = append(out, checkWeekendPolicy(in, rules)...)
	out = append(out, checkCertifications(in)...)

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ConstraintID != out[j].ConstraintID {
			return out[i].ConstraintID < out[j].ConstraintID
		}
		return out[i].Severity.Rank() < out[j].Severity.Rank()
	})

	return out
}

// window resolves an assignment to its concrete shift interval via its demand
// slot. ok is false when referenced data is missing from the input.
func (in *Input) window(a *domain.Assignment) (start, end time.Time, ok bool) {
	demand, found := in.Demands[a.DemandID]
	if !found {
		return time.Time{}, time.Time{}, false
	}
	shift, found := in.Shifts[demand.ShiftTemplateID]
	if !found {
		return time.Time{}, time.Time{}, false
	}
	start, end = shift.Window(demand.Date)
	return start, end, true
}

func checkSkillMatch(in Input) []domain.ConstraintViolation {
	var violations []domain.ConstraintViolation
	for _, a := range in.Assignments {
		if !a.Active() {
			continue
		}
		demand, ok := in.Demands[a.DemandID]
		if !ok {
			continue
		}
		station, ok := in.Stations[demand.StationID]
		if !ok || station.RequiredSkillID == "" {
			continue
		}
		emp, ok := in.Employees[a.EmployeeID]
		if !ok {
			continue
		}
		level := emp.SkillLevel(station.RequiredSkillID)
		if level < station.MinSkillLevel {
			violations = append(violations, domain.ConstraintViolation{
				ConstraintID: "skill_match",
				Severity:     domain.SeverityError,
				Message: fmt.Sprintf("%s has skill level %d for station %s, minimum is %d",
					emp.FullName, level, station.Name, station.MinSkillLevel),
				AffectedAssignments: []string{a.ID},
				SuggestedActions:    []string{"Reassign to available employee", "Schedule training for " + emp.FullName},
			})
		}
	}
	return violations
}

func checkAbsenceOverlap(in Input) []domain.ConstraintViolation {
	var violations []domain.ConstraintViolation
	for _, a := range in.Assignments {
		if !a.Active() {
			continue
		}
		demand, ok := in.Demands[a.DemandID]
		if !ok {
			continue
		}
		emp, ok := in.Employees[a.EmployeeID]
		if !ok {
			continue
		}
		if emp.AbsentOn(demand.Date) {
			violations = append(violations, domain.ConstraintViolation{
				ConstraintID: "absence_overlap",
				Severity:     domain.SeverityCritical,
				Message: fmt.Sprintf("%s is absent on %s but assigned to slot %s",
					emp.FullName, demand.Date.Format("2006-01-02"), demand.ID),
				AffectedAssignments: []string{a.ID},
				SuggestedActions:    []string{"Reassign to available employee"},
			})
		}
	}
	return violations
}

// checkOverlaps catches double bookings already present in the candidate set.
// The store enforces the invariant at sync and commit time; this surfaces it
// earlier, at review time.
func checkOverlaps(in Input) []domain.ConstraintViolation {
	var violations []domain.ConstraintViolation
	byEmployee := groupActiveByEmployee(in.Assignments)

	for _, empID := range sortedKeys(byEmployee) {
		list := byEmployee[empID]
		for i := 0; i < len(list); i++ {
			for j := i + 1; j < len(list); j++ {
				s1, e1, ok1 := in.window(&list[i])
				s2, e2, ok2 := in.window(&list[j])
				if !ok1 || !ok2 {
					continue
				}
				if s1.Before(e2) && e1.After(s2) {
					violations = append(violations, domain.ConstraintViolation{
						ConstraintID: "double_booking",
						Severity:     domain.SeverityCritical,
						Message: fmt.Sprintf("employee %s holds overlapping assignments %s and %s",
							empID, list[i].ID, list[j].ID),
						AffectedAssignments: []string{list[i].ID, list[j].ID},
						SuggestedActions:    []string{"Reassign to available employee"},
					})
				}
			}
		}
	}
	return violations
}

func checkDailyHours(in Input, rules Rules) []domain.ConstraintViolation {
	if rules.MaxDailyHours <= 0 {
		return nil
	}
	var violations []domain.ConstraintViolation
	byEmployee := groupActiveByEmployee(in.Assignments)

	for _, empID := range sortedKeys(byEmployee) {
		hoursByDay := map[string]float64{}
		idsByDay := map[string][]string{}
		for _, a := range byEmployee[empID] {
			start, end, ok := in.window(&a)
			if !ok {
				continue
			}
			day := start.Format("2006-01-02")
			hoursByDay[day] += end.Sub(start).Hours()
			idsByDay[day] = append(idsByDay[day], a.ID)
		}
		for _, day := range sortedKeys(hoursByDay) {
			if hoursByDay[day] > rules.MaxDailyHours {
				violations = append(violations, domain.ConstraintViolation{
					ConstraintID: "max_daily_hours",
					Severity:     domain.SeverityError,
					Message: fmt.Sprintf("employee %s works %.1fh on %s, limit is %.1fh",
						empID, hoursByDay[day], day, rules.MaxDailyHours),
					AffectedAssignments: idsByDay[day],
					SuggestedActions:    []string{"Reassign to available employee"},
				})
			}
		}
	}
	return violations
}

func checkWeeklyHours(in Input, rules Rules) []domain.ConstraintViolation {
	var violations []domain.ConstraintViolation
	byEmployee := groupActiveByEmployee(in.Assignments)

	for _, empID := range sortedKeys(byEmployee) {
		limit := rules.MaxWeeklyHours
		if emp, ok := in.Employees[empID]; ok && emp.MaxHoursPerWeek > 0 {
			limit = emp.MaxHoursPerWeek
		}
		if limit <= 0 {
			continue
		}
		hoursByWeek := map[string]float64{}
		idsByWeek := map[string][]string{}
		for _, a := range byEmployee[empID] {
			start, end, ok := in.window(&a)
			if !ok {
				continue
			}
			year, week := start.ISOWeek()
			key := fmt.Sprintf("%04d-W%02d", year, week)
			hoursByWeek[key] += end.Sub(start).Hours()
			idsByWeek[key] = append(idsByWeek[key], a.ID)
		}
		for _, week := range sortedKeys(hoursByWeek) {
			if hoursByWeek[week] > limit {
				violations = append(violations, domain.ConstraintViolation{
					ConstraintID: "max_weekly_hours",
					Severity:     domain.SeverityError,
					Message: fmt.Sprintf("employee %s works %.1fh in %s, limit is %.1fh",
						empID, hoursByWeek[week], week, limit),
					AffectedAssignments: idsByWeek[week],
					SuggestedActions:    []string{"Swap with available employee"},
				})
			}
		}
	}
	return violations
}

func checkConsecutiveDays(in Input, rules Rules) []domain.ConstraintViolation {
	if rules.MaxConsecutiveDays <= 0 {
		return nil
	}
	var violations []domain.ConstraintViolation
	byEmployee := groupActiveByEmployee(in.Assignments)

	for _, empID := range sortedKeys(byEmployee) {
		days := map[string][]string{}
		for _, a := range byEmployee[empID] {
			demand, ok := in.Demands[a.DemandID]
			if !ok {
				continue
			}
			key := demand.Date.Format("2006-01-02")
			days[key] = append(days[key], a.ID)
		}
		sorted := sortedKeys(days)
		run := []string{}
		var prev time.Time
		flush := func() {
			if len(run) > rules.MaxConsecutiveDays {
				var ids []string
				for _, d := range run {
					ids = append(ids, days[d]...)
				}
				violations = append(violations, domain.ConstraintViolation{
					ConstraintID: "max_consecutive_days",
					Severity:     domain.SeverityError,
					Message: fmt.Sprintf("employee %s is scheduled %d days in a row, limit is %d",
						empID, len(run), rules.MaxConsecutiveDays),
					AffectedAssignments: ids,
					SuggestedActions:    []string{"Insert a rest day", "Swap with available employee"},
				})
			}
			run = run[:0]
		}
		for _, d := range sorted {
			day, _ := time.Parse("2006-01-02", d)
			if len(run) > 0 && day.Sub(prev) > 24*time.Hour {
				flush()
			}
			run = append(run, d)
			prev = day
		}
		flush()
	}
	return violations
}

func checkRestHours(in Input, rules Rules) []domain.ConstraintViolation {
	if rules.MinRestHours <= 0 {
		return nil
	}
	var violations []domain.ConstraintViolation
	byEmployee := groupActiveByEmployee(in.Assignments)

	for _, empID := range sortedKeys(byEmployee) {
		type interval struct {
			start, end time.Time
			id         string
		}
		var intervals []interval
		for _, a := range byEmployee[empID] {
			start, end, ok := in.window(&a)
			if !ok {
				continue
			}
			intervals = append(intervals, interval{start, end, a.ID})
		}
		sort.Slice(intervals, func(i, j int) bool { return intervals[i].start.Before(intervals[j].start) })
		for i := 1; i < len(intervals); i++ {
			rest := intervals[i].start.Sub(intervals[i-1].end).Hours()
			if rest >= 0 && rest < rules.MinRestHours {
				violations = append(violations, domain.ConstraintViolation{
					ConstraintID: "min_rest_hours",
					Severity:     domain.SeverityError,
					Message: fmt.Sprintf("employee %s has only %.1fh rest between shifts, minimum is %.1fh",
						empID, rest, rules.MinRestHours),
					AffectedAssignments: []string{intervals[i-1].id, intervals[i].id},
					SuggestedActions:    []string{"Swap with available employee"},
				})
			}
		}
	}
	return violations
}

func checkNightShifts(in Input, rules Rules) []domain.ConstraintViolation {
	if rules.NightAllowed == nil {
		return nil
	}
	var violations []domain.ConstraintViolation
	for _, a := range in.Assignments {
		if !a.Active() {
			continue
		}
		demand, ok := in.Demands[a.DemandID]
		if !ok {
			continue
		}
		shift, ok := in.Shifts[demand.ShiftTemplateID]
		if !ok || !shift.IsNight {
			continue
		}
		emp, ok := in.Employees[a.EmployeeID]
		if !ok {
			continue
		}
		if !rules.NightAllowed[emp.ContractType] {
			violations = append(violations, domain.ConstraintViolation{
				ConstraintID: "night_shift_contract",
				Severity:     domain.SeverityCritical,
				Message: fmt.Sprintf("%s (%s contract) may not work night shift %s",
					emp.FullName, emp.ContractType, shift.Name),
				AffectedAssignments: []string{a.ID},
				SuggestedActions:    []string{"Reassign to available employee"},
			})
		}
	}
	return violations
}

func checkWeekendPolicy(in Input, rules Rules) []domain.ConstraintViolation {
	if rules.MaxWeekendDaysPerWeek <= 0 {
		return nil
	}
	var violations []domain.ConstraintViolation
	byEmployee := groupActiveByEmployee(in.Assignments)

	for _, empID := range sortedKeys(byEmployee) {
		weekendDays := map[string]map[string][]string{} // week -> day -> ids
		for _, a := range byEmployee[empID] {
			demand, ok := in.Demands[a.DemandID]
			if !ok {
				continue
			}
			wd := demand.Date.Weekday()
			if wd != time.Saturday && wd != time.Sunday {
				continue
			}
			year, week := demand.Date.ISOWeek()
			weekKey := fmt.Sprintf("%04d-W%02d", year, week)
			if weekendDays[weekKey] == nil {
				weekendDays[weekKey] = map[string][]string{}
			}
			dayKey := demand.Date.Format("2006-01-02")
			weekendDays[weekKey][dayKey] = append(weekendDays[weekKey][dayKey], a.ID)
		}
		for _, week := range sortedKeys(weekendDays) {
			if len(weekendDays[week]) > rules.MaxWeekendDaysPerWeek {
				var ids []string
				for _, day := range sortedKeys(weekendDays[week]) {
					ids = append(ids, weekendDays[week][day]...)
				}
				violations = append(violations, domain.ConstraintViolation{
					ConstraintID: "weekend_policy",
					Severity:     domain.SeverityWarning,
					Message: fmt.Sprintf("employee %s works %d weekend days in %s, policy allows %d",
						empID, len(weekendDays[week]), week, rules.MaxWeekendDaysPerWeek),
					AffectedAssignments: ids,
					SuggestedActions:    []string{"Swap with available employee"},
				})
			}
		}
	}
	return violations
}

func checkCertifications(in Input) []domain.ConstraintViolation {
	var violations []domain.ConstraintViolation
	for _, a := range in.Assignments {
		if !a.Active() {
			continue
		}
		demand, ok := in.Demands[a.DemandID]
		if !ok {
			continue
		}
		station, ok := in.Stations[demand.StationID]
		if !ok || station.RequiredSkillID == "" {
			continue
		}
		emp, ok := in.Employees[a.EmployeeID]
		if !ok {
			continue
		}
		for _, s := range emp.Skills {
			if s.SkillID != station.RequiredSkillID || s.CertifiedUntil == nil {
				continue
			}
			if s.CertifiedUntil.Before(in.Now) {
				violations = append(violations, domain.ConstraintViolation{
					ConstraintID: "certification_expired",
					Severity:     domain.SeverityWarning,
					Message: fmt.Sprintf("%s's certification for skill %s expired on %s",
						emp.FullName, s.SkillID, s.CertifiedUntil.Format("2006-01-02")),
					AffectedAssignments: []string{a.ID},
					SuggestedActions:    []string{"Renew certification", "Reassign to available employee"},
				})
			}
		}
	}
	return violations
}

func groupActiveByEmployee(assignments []domain.Assignment) map[string][]domain.Assignment {
	m := map[string][]domain.Assignment{}
	for _, a := range assignments {
		if a.Active() {
			m[a.EmployeeID] = append(m[a.EmployeeID], a)
		}
	}
	return m
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package constraint

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

var (
	monday = time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC)
	now    = time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)
)

// fixture builds a one-station world with early/late/night shifts and one
// demand slot per shift per day, starting on monday.
type fixture struct {
	in Input
}

func newFixture() *fixture {
	f := &fixture{in: Input{
		Demands:   map[string]domain.DemandSlot{},
		Stations:  map[string]domain.Station{},
		Shifts:    map[string]domain.ShiftTemplate{},
		Employees: map[string]domain.Employee{},
		Now:       now,
	}}
	f.in.Stations["st1"] = domain.Station{
		ID: "st1", Name: "Assembly", Priority: domain.PriorityCritical,
		RequiredSkillID: "assembly", MinSkillLevel: 2, RequiredWorkers: 1,
	}
	f.in.Shifts["early"] = domain.ShiftTemplate{ID: "early", Name: "Early", StartTime: "06:00", EndTime: "14:00"}
	f.in.Shifts["late"] = domain.ShiftTemplate{ID: "late", Name: "Late", StartTime: "14:00", EndTime: "22:00"}
	f.in.Shifts["night"] = domain.ShiftTemplate{ID: "night", Name: "Night", StartTime: "22:00", EndTime: "06:00", IsNight: true}
	return f
}

func (f *fixture) addEmployee(id string, level int) {
	f.in.Employees[id] = domain.Employee{
		ID: id, FullName: "Worker " + id, ContractType: domain.ContractFullTime,
		MaxHoursPerWeek: 48, IsActive: true,
		Skills: []domain.EmployeeSkill{{SkillID: "assembly", Level: level}},
	}
}

func (f *fixture) demand(shiftID string, day int) string {
	id := shiftID + "-" + strconv.Itoa(day)
	f.in.Demands[id] = domain.DemandSlot{
		ID: id, StationID: "st1", ShiftTemplateID: shiftID,
		Date: monday.AddDate(0, 0, day), RequiredWorkers: 1,
	}
	return id
}

func (f *fixture) assign(id, empID, demandID string) {
	f.in.Assignments = append(f.in.Assignments, domain.Assignment{
		ID: id, DemandID: demandID, EmployeeID: empID, Status: domain.AssignmentProposed,
	})
}

func byConstraint(violations []domain.ConstraintViolation, constraintID string) []domain.ConstraintViolation {
	var out []domain.ConstraintViolation
	for _, v := range violations {
		if v.ConstraintID == constraintID {
			out = append(out, v)
		}
	}
	return out
}

func TestEvaluateCleanScheduleHasNoViolations(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	f.assign("a1", "w1", f.demand("early", 0))

	assert.Empty(t, Evaluate(f.in, DefaultRules()))
}

func TestOverlappingAssignmentsAreDoubleBooking(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	// Same window twice for the same employee.
	d1 := f.demand("early", 0)
	f.in.Demands["early-dup"] = domain.DemandSlot{
		ID: "early-dup", StationID: "st1", ShiftTemplateID: "early", Date: monday, RequiredWorkers: 1,
	}
	f.assign("a1", "w1", d1)
	f.assign("a2", "w1", "early-dup")

	violations := byConstraint(Evaluate(f.in, DefaultRules()), "double_booking")
	require.Len(t, violations, 1)
	assert.Equal(t, domain.SeverityCritical, violations[0].Severity)
	assert.ElementsMatch(t, []string{"a1", "a2"}, violations[0].AffectedAssignments)
	assert.True(t, violations[0].Blocking())
}

func TestBackToBackShiftsDoNotDoubleBook(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	f.assign("a1", "w1", f.demand("early", 0))
	f.assign("a2", "w1", f.demand("late", 0))

	violations := Evaluate(f.in, DefaultRules())
	assert.Empty(t, byConstraint(violations, "double_booking"))
	// 16h on one day still trips the daily hour rule.
	assert.NotEmpty(t, byConstraint(violations, "max_daily_hours"))
}

func TestOvernightShiftOverlapsNextMorning(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	f.assign("a1", "w1", f.demand("night", 0)) // mon 22:00 - tue 06:00
	f.assign("a2", "w1", f.demand("early", 1)) // tue 06:00 - 14:00: adjacent, no overlap

	violations := Evaluate(f.in, DefaultRules())
	assert.Empty(t, byConstraint(violations, "double_booking"))
	// Zero rest between the two shifts violates the rest rule instead.
	rest := byConstraint(violations, "min_rest_hours")
	require.Len(t, rest, 1)
	assert.ElementsMatch(t, []string{"a1", "a2"}, rest[0].AffectedAssignments)
}

func TestRejectedAssignmentsDoNotCount(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	d1 := f.demand("early", 0)
	f.in.Demands["early-dup"] = domain.DemandSlot{
		ID: "early-dup", StationID: "st1", ShiftTemplateID: "early", Date: monday, RequiredWorkers: 1,
	}
	f.assign("a1", "w1", d1)
	f.in.Assignments = append(f.in.Assignments, domain.Assignment{
		ID: "a2", DemandID: "early-dup", EmployeeID: "w1", Status: domain.AssignmentRejected,
	})

	assert.Empty(t, byConstraint(Evaluate(f.in, DefaultRules()), "double_booking"))
}

func TestSkillBelowMinimum(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 1) // station requires level 2
	f.assign("a1", "w1", f.demand("early", 0))

	violations := byConstraint(Evaluate(f.in, DefaultRules()), "skill_match")
	require.Len(t, violations, 1)
	assert.Equal(t, domain.SeverityError, violations[0].Severity)
	assert.Contains(t, violations[0].SuggestedActions, "Reassign to available employee")
}

func TestAbsenceOverlapIsCritical(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	emp := f.in.Employees["w1"]
	emp.Absences = []domain.Absence{{ID: "ab1", EmployeeID: "w1", StartDate: monday, EndDate: monday, Reason: "sick"}}
	f.in.Employees["w1"] = emp
	f.assign("a1", "w1", f.demand("early", 0))

	violations := byConstraint(Evaluate(f.in, DefaultRules()), "absence_overlap")
	require.Len(t, violations, 1)
	assert.Equal(t, domain.SeverityCritical, violations[0].Severity)
}

func TestWeeklyHoursUseContractLimit(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	emp := f.in.Employees["w1"]
	emp.MaxHoursPerWeek = 20 // part-time cap below the statutory default
	f.in.Employees["w1"] = emp

	// Three 8h early shifts, 24h total, fine for the 48h default but over 20h.
	for day := 0; day < 3; day++ {
		f.assign("a"+strconv.Itoa(day), "w1", f.demand("early", day))
	}

	violations := byConstraint(Evaluate(f.in, DefaultRules()), "max_weekly_hours")
	require.Len(t, violations, 1)
	assert.Len(t, violations[0].AffectedAssignments, 3)
}

func TestConsecutiveDaysRule(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	rules := DefaultRules()
	rules.MaxConsecutiveDays = 3
	rules.MaxWeekendDaysPerWeek = 0 // isolate the consecutive-days rule

	for day := 0; day < 4; day++ {
		f.assign("a"+strconv.Itoa(day), "w1", f.demand("early", day))
	}

	violations := byConstraint(Evaluate(f.in, rules), "max_consecutive_days")
	require.Len(t, violations, 1)
	assert.Len(t, violations[0].AffectedAssignments, 4)
}

func TestApprenticeOnNightShift(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	emp := f.in.Employees["w1"]
	emp.ContractType = domain.ContractApprentice
	f.in.Employees["w1"] = emp
	f.assign("a1", "w1", f.demand("night", 0))

	violations := byConstraint(Evaluate(f.in, DefaultRules()), "night_shift_contract")
	require.Len(t, violations, 1)
	assert.Equal(t, domain.SeverityCritical, violations[0].Severity)
}

func TestWeekendPolicyIsWarningOnly(t *testing.T) {
	f := newFixture()
	f.addEmployee("w1", 3)
	f.assign("a1", "w1", f.demand("early", 5)) // saturday
	f.assign("a2", "w1", f.demand("early", 6)) // sunday

	violations := byConstraint(Evaluate(f.in, DefaultRules()), "weekend_policy")
	require.Len(t, violations, 1)
	assert.Equal(t, domain.SeverityWarning, violations[0].Severity)
	assert.False(t, violations[0].Blocking())
}

func TestExpiredCertificationIsWarning(t *testing.T) {
	f := newFixture()
	expired := now.AddDate(0, -1, 0)
	f.in.Employees["w1"] = domain.Employee{
		ID: "w1", FullName: "Worker w1", ContractType: domain.ContractFullTime,
		MaxHoursPerWeek: 48, IsActive: true,
		Skills: []domain.EmployeeSkill{{SkillID: "assembly", Level: 3, CertifiedUntil: &expired}},
	}
	f.assign("a1", "w1", f.demand("early", 0))

	violations := byConstraint(Evaluate(f.in, DefaultRules()), "certification_expired")
	require.Len(t, violations, 1)
	assert.Equal(t, domain.SeverityWarning, violations[0].Severity)
}

func TestEvaluateOutputIsDeterministic(t *testing.T) {
	build := func() Input {
		f := newFixture()
		f.addEmployee("w1", 1)
		f.addEmployee("w2", 1)
		f.assign("a1", "w1", f.demand("early", 0))
		f.assign("a2", "w2", f.demand("late", 0))
		return f.in
	}

	first := Evaluate(build(), DefaultRules())
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, Evaluate(build(), DefaultRules()))
	}
}

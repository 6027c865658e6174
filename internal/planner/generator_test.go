package planner

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabline-dev/shift-planner/backend/internal/constraint"
	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

var (
	testDay = time.Date(2026, 9, 14, 0, 0, 0, 0, time.UTC) // a Monday
	testNow = time.Date(2026, 9, 10, 8, 0, 0, 0, time.UTC)
)

func testStations() []domain.Station {
	return []domain.Station{
		{
			ID: "station-assembly", Name: "Assembly", Priority: domain.PriorityCritical,
			RequiredSkillID: "assembly", MinSkillLevel: 2, RequiredWorkers: 1,
		},
		{
			ID: "station-packaging", Name: "Packaging", Priority: domain.PriorityNormal,
			RequiredSkillID: "packaging", MinSkillLevel: 1, RequiredWorkers: 1,
		},
	}
}

func testShifts() []domain.ShiftTemplate {
	return []domain.ShiftTemplate{
		{ID: "shift-early", Name: "Early", StartTime: "06:00", EndTime: "14:00"},
		{ID: "shift-late", Name: "Late", StartTime: "14:00", EndTime: "22:00"},
		{ID: "shift-night", Name: "Night", StartTime: "22:00", EndTime: "06:00", IsNight: true},
	}
}

func worker(id string, skill string, level int) domain.Employee {
	return domain.Employee{
		ID: id, FullName: "Worker " + id, ContractType: domain.ContractFullTime,
		MaxHoursPerWeek: 40, IsActive: true,
		Skills: []domain.EmployeeSkill{{SkillID: skill, Level: level}},
	}
}

func request(demandDays int) Request {
	return Request{
		RangeStart:  testDay,
		RangeEnd:    testDay.AddDate(0, 0, demandDays-1),
		Strategy:    StrategyBalanced,
		RequestedBy: "planner-1",
	}
}

func TestGenerateNoDemandIsInsufficientData(t *testing.T) {
	g := New(constraint.DefaultRules(), []domain.Employee{worker("w1", "assembly", 3)},
		testStations(), testShifts(), nil, nil, testNow)

	_, err := g.Generate(request(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestGenerateNoActiveEmployeesIsInsufficientData(t *testing.T) {
	inactive := worker("w1", "assembly", 3)
	inactive.IsActive = false

	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	g := New(constraint.DefaultRules(), []domain.Employee{inactive}, testStations(), testShifts(), demands, nil, testNow)

	_, err := g.Generate(request(1))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestGenerateFillsDemandWithQualifiedWorker(t *testing.T) {
	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	employees := []domain.Employee{
		worker("w1", "assembly", 3),
		worker("w2", "packaging", 2), // wrong skill for the open slot
	}
	g := New(constraint.DefaultRules(), employees, testStations(), testShifts(), demands, nil, testNow)

	plan, err := g.Generate(request(1))
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 1)
	a := plan.Assignments[0]
	assert.Equal(t, "w1", a.EmployeeID)
	assert.Equal(t, "d1", a.DemandID)
	assert.Equal(t, domain.AssignmentProposed, a.Status)
	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, a.Explanation)
	assert.Greater(t, a.Score, 0.0)
	assert.InDelta(t, 100.0, plan.Coverage.Percentage, 0.01)
	assert.Empty(t, plan.Coverage.Gaps)
}

func TestGenerateReportsGapWhenNobodyQualifies(t *testing.T) {
	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 2},
	}
	employees := []domain.Employee{
		worker("w1", "assembly", 3),
		worker("w2", "assembly", 1), // below the station's minimum level
	}
	g := New(constraint.DefaultRules(), employees, testStations(), testShifts(), demands, nil, testNow)

	plan, err := g.Generate(request(1))
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 1)
	require.Len(t, plan.Coverage.Gaps, 1)
	assert.Equal(t, "d1", plan.Coverage.Gaps[0].DemandID)
	assert.Equal(t, 2, plan.Coverage.Gaps[0].Required)
	assert.Equal(t, 1, plan.Coverage.Gaps[0].Assigned)
	assert.InDelta(t, 50.0, plan.Coverage.Percentage, 0.01)
}

func TestGenerateSkipsAbsentEmployees(t *testing.T) {
	absent := worker("w1", "assembly", 3)
	absent.Absences = []domain.Absence{{
		ID: "ab1", EmployeeID: "w1", StartDate: testDay, EndDate: testDay, Reason: "vacation",
	}}
	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	g := New(constraint.DefaultRules(), []domain.Employee{absent}, testStations(), testShifts(), demands, nil, testNow)

	plan, err := g.Generate(request(1))
	require.NoError(t, err)
	assert.Empty(t, plan.Assignments)
	require.Len(t, plan.Coverage.Gaps, 1)
}

func TestGenerateNeverDoubleBooksWithinProposal(t *testing.T) {
	// Two overlapping demands on the same day, only one qualified worker.
	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
		{ID: "d2", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	g := New(constraint.DefaultRules(), []domain.Employee{worker("w1", "assembly", 3)},
		testStations(), testShifts(), demands, nil, testNow)

	plan, err := g.Generate(request(1))
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 1)
	for _, v := range plan.Violations {
		assert.NotEqual(t, "double_booking", v.ConstraintID)
	}
}

func TestGenerateRespectsExistingAssignments(t *testing.T) {
	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
		{ID: "d2", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	existing := []domain.Assignment{
		{ID: "a-existing", DemandID: "d1", EmployeeID: "w1", Status: domain.AssignmentConfirmed},
	}
	g := New(constraint.DefaultRules(), []domain.Employee{worker("w1", "assembly", 3)},
		testStations(), testShifts(), demands, existing, testNow)

	plan, err := g.Generate(request(1))
	require.NoError(t, err)

	// d1 is already covered; w1 is busy during d2's window so nothing is proposed.
	assert.Empty(t, plan.Assignments)
	require.Len(t, plan.Coverage.Gaps, 1)
	assert.Equal(t, "d2", plan.Coverage.Gaps[0].DemandID)
	assert.InDelta(t, 50.0, plan.Coverage.Percentage, 0.01)
}

func TestGenerateCoverageCapsOverStaffedSlots(t *testing.T) {
	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	// Two confirmed workers on a one-worker slot.
	existing := []domain.Assignment{
		{ID: "a1", DemandID: "d1", EmployeeID: "w1", Status: domain.AssignmentConfirmed},
		{ID: "a2", DemandID: "d1", EmployeeID: "w2", Status: domain.AssignmentConfirmed},
	}
	g := New(constraint.DefaultRules(), []domain.Employee{worker("w1", "assembly", 3)},
		testStations(), testShifts(), demands, existing, testNow)

	plan, err := g.Generate(request(1))
	require.NoError(t, err)

	assert.Empty(t, plan.Assignments)
	assert.Empty(t, plan.Coverage.Gaps)
	assert.InDelta(t, 100.0, plan.Coverage.Percentage, 0.01)
}

func TestGenerateKeepsApprenticesOffNightShifts(t *testing.T) {
	apprentice := worker("w1", "assembly", 2)
	apprentice.ContractType = domain.ContractApprentice

	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-night", Date: testDay, RequiredWorkers: 1},
	}
	g := New(constraint.DefaultRules(), []domain.Employee{apprentice},
		testStations(), testShifts(), demands, nil, testNow)

	plan, err := g.Generate(request(1))
	require.NoError(t, err)
	assert.Empty(t, plan.Assignments)
}

func TestGenerateCriticalStationsFirst(t *testing.T) {
	// One worker holds both skills; the critical assembly slot must win the
	// contested window.
	multi := worker("w1", "assembly", 3)
	multi.Skills = append(multi.Skills, domain.EmployeeSkill{SkillID: "packaging", Level: 2})

	demands := []domain.DemandSlot{
		{ID: "d-pack", StationID: "station-packaging", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
		{ID: "d-asm", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	g := New(constraint.DefaultRules(), []domain.Employee{multi},
		testStations(), testShifts(), demands, nil, testNow)

	plan, err := g.Generate(request(1))
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "d-asm", plan.Assignments[0].DemandID)
}

func TestGenerateIsDeterministic(t *testing.T) {
	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 2},
	}
	employees := []domain.Employee{
		worker("w2", "assembly", 2),
		worker("w1", "assembly", 2),
		worker("w3", "assembly", 2),
	}

	pick := func() []string {
		g := New(constraint.DefaultRules(), employees, testStations(), testShifts(), demands, nil, testNow)
		plan, err := g.Generate(request(1))
		require.NoError(t, err)
		var ids []string
		for _, a := range plan.Assignments {
			ids = append(ids, a.EmployeeID)
		}
		return ids
	}

	first := pick()
	require.Len(t, first, 2)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, pick())
	}
}

func TestGenerateCustomConstraintShiftsPreference(t *testing.T) {
	demands := []domain.DemandSlot{
		{ID: "d1", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	employees := []domain.Employee{
		worker("w1", "assembly", 2),
		worker("w2", "assembly", 2),
	}

	req := request(1)
	req.Custom = []CustomConstraint{
		{ID: "cc1", Type: "prefer_employee", EmployeeID: "w2", Weight: 1.0},
	}

	g := New(constraint.DefaultRules(), employees, testStations(), testShifts(), demands, nil, testNow)
	plan, err := g.Generate(req)
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "w2", plan.Assignments[0].EmployeeID)
}

func TestGenerateStationFilterLimitsScope(t *testing.T) {
	demands := []domain.DemandSlot{
		{ID: "d-asm", StationID: "station-assembly", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
		{ID: "d-pack", StationID: "station-packaging", ShiftTemplateID: "shift-early", Date: testDay, RequiredWorkers: 1},
	}
	employees := []domain.Employee{
		worker("w1", "assembly", 3),
		worker("w2", "packaging", 2),
	}

	req := request(1)
	req.StationIDs = []string{"station-packaging"}

	g := New(constraint.DefaultRules(), employees, testStations(), testShifts(), demands, nil, testNow)
	plan, err := g.Generate(req)
	require.NoError(t, err)

	require.Len(t, plan.Assignments, 1)
	assert.Equal(t, "d-pack", plan.Assignments[0].DemandID)
}

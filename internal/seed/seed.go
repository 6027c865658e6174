package seed

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/fabline-dev/shift-planner/backend/internal/repository"
	"github.com/fabline-dev/shift-planner/backend/internal/utils"
)

// Stations mirrors a small assembly line: two critical lines, packaging and a
// quality gate. Skill ids double as certification names.
var Stations = []domain.Station{
	{
		ID:              "station-assembly-1",
		Name:            "Assembly Line 1",
		Priority:        domain.PriorityCritical,
		RequiredSkillID: "assembly",
		MinSkillLevel:   2,
		RequiredWorkers: 4,
	},
	{
		ID:              "station-assembly-2",
		Name:            "Assembly Line 2",
		Priority:        domain.PriorityHigh,
		RequiredSkillID: "assembly",
		MinSkillLevel:   1,
		RequiredWorkers: 3,
	},
	{
		ID:              "station-welding",
		Name:            "Welding Cell",
		Priority:        domain.PriorityCritical,
		RequiredSkillID: "welding",
		MinSkillLevel:   3,
		RequiredWorkers: 2,
	},
	{
		ID:              "station-packaging",
		Name:            "Packaging",
		Priority:        domain.PriorityNormal,
		RequiredSkillID: "packaging",
		MinSkillLevel:   1,
		RequiredWorkers: 3,
	},
	{
		ID:              "station-quality",
		Name:            "Quality Gate",
		Priority:        domain.PriorityHigh,
		RequiredSkillID: "quality_inspection",
		MinSkillLevel:   2,
		RequiredWorkers: 1,
	},
}

var ShiftTemplates = []domain.ShiftTemplate{
	{ID: "shift-early", Name: "Early", StartTime: "06:00", EndTime: "14:00"},
	{ID: "shift-late", Name: "Late", StartTime: "14:00", EndTime: "22:00"},
	{ID: "shift-night", Name: "Night", StartTime: "22:00", EndTime: "06:00", IsNight: true},
}

func skillIDs() []string {
	seen := map[string]bool{}
	ids := []string{}
	for _, s := range Stations {
		if !seen[s.RequiredSkillID] {
			seen[s.RequiredSkillID] = true
			ids = append(ids, s.RequiredSkillID)
		}
	}
	return ids
}

// SeedFactory inserts the station and shift catalog, a workforce and two weeks
// of demand starting tomorrow.
func SeedFactory(ctx context.Context, repo *repository.Repository, employeeCount int, emailDomain string) {
	for i := range Stations {
		if err := repo.CreateStation(ctx, &Stations[i]); err != nil {
			slog.Error("failed to insert station", "station", Stations[i].ID, "error", err)
			return
		}
	}
	slog.Info("stations inserted", "count", len(Stations))

	for i := range ShiftTemplates {
		if err := repo.CreateShiftTemplate(ctx, &ShiftTemplates[i]); err != nil {
			slog.Error("failed to insert shift template", "shift", ShiftTemplates[i].ID, "error", err)
			return
		}
	}
	slog.Info("shift templates inserted", "count", len(ShiftTemplates))

	skills := skillIDs()
	inserted := 0
	for i := 0; i < employeeCount; i++ {
		employee := utils.GenerateRandomEmployee(skills, emailDomain)
		if err := repo.CreateEmployee(ctx, employee); err != nil {
			slog.Error("failed to insert employee", "error", err)
			continue
		}
		inserted++
	}
	slog.Info("employees inserted", "count", inserted)

	SeedDemand(ctx, repo, time.Now().AddDate(0, 0, 1), 14)
}

// SeedDemand creates one demand slot per station and shift for each day.
// Night demand only exists for the critical stations.
func SeedDemand(ctx context.Context, repo *repository.Repository, start time.Time, days int) {
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)

	inserted := 0
	for day := 0; day < days; day++ {
		date := start.AddDate(0, 0, day)
		for _, station := range Stations {
			for _, shift := range ShiftTemplates {
				if shift.IsNight && station.Priority != domain.PriorityCritical {
					continue
				}
				slot := &domain.DemandSlot{
					ID:              fmt.Sprintf("demand-%s-%s-%s", date.Format("2006-01-02"), station.ID, shift.ID),
					StationID:       station.ID,
					ShiftTemplateID: shift.ID,
					Date:            date,
					RequiredWorkers: station.RequiredWorkers,
				}
				if err := repo.CreateDemandSlot(ctx, slot); err != nil {
					slog.Error("failed to insert demand slot", "slot", slot.ID, "error", err)
					continue
				}
				inserted++
			}
		}
	}
	slog.Info("demand slots inserted", "count", inserted, "from", start.Format("2006-01-02"), "days", days)
}

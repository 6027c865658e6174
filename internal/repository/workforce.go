package repository

import (
	"context"
	"time"

	"github.com/fabline-dev/shift-planner/backend/internal/domain"
)

// GetEmployees loads all employees with their skills and absences. The
// planner and the evaluator treat this data as read-only input; its CRUD
// surface lives outside this service.
func (r *Repository) GetEmployees(ctx context.Context) ([]domain.Employee, error) {
	query := `
		SELECT id, full_name, email, contract_type, max_hours_per_week, is_active
		FROM employees
		ORDER BY id
	`

	qctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(qctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	employees := []domain.Employee{}
	index := map[string]int{}
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.FullName, &e.Email, &e.ContractType, &e.MaxHoursPerWeek, &e.IsActive); err != nil {
			return nil, err
		}
		index[e.ID] = len(employees)
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.attachSkills(ctx, employees, index); err != nil {
		return nil, err
	}
	if err := r.attachAbsences(ctx, employees, index); err != nil {
		return nil, err
	}

	return employees, nil
}

func (r *Repository) attachSkills(ctx context.Context, employees []domain.Employee, index map[string]int) error {
	query := `
		SELECT employee_id, skill_id, level, certified_until
		FROM employee_skills
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			employeeID string
			skill      domain.EmployeeSkill
		)
		if err := rows.Scan(&employeeID, &skill.SkillID, &skill.Level, &skill.CertifiedUntil); err != nil {
			return err
		}
		if i, ok := index[employeeID]; ok {
			employees[i].Skills = append(employees[i].Skills, skill)
		}
	}

	return rows.Err()
}

func (r *Repository) attachAbsences(ctx context.Context, employees []domain.Employee, index map[string]int) error {
	query := `
		SELECT id, employee_id, start_date, end_date, reason
		FROM absences
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var ab domain.Absence
		if err := rows.Scan(&ab.ID, &ab.EmployeeID, &ab.StartDate, &ab.EndDate, &ab.Reason); err != nil {
			return err
		}
		if i, ok := index[ab.EmployeeID]; ok {
			employees[i].Absences = append(employees[i].Absences, ab)
		}
	}

	return rows.Err()
}

func (r *Repository) GetStations(ctx context.Context) ([]domain.Station, error) {
	query := `
		SELECT id, name, priority, required_skill_id, min_skill_level, required_workers
		FROM stations
		ORDER BY id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stations := []domain.Station{}
	for rows.Next() {
		var s domain.Station
		if err := rows.Scan(&s.ID, &s.Name, &s.Priority, &s.RequiredSkillID, &s.MinSkillLevel, &s.RequiredWorkers); err != nil {
			return nil, err
		}
		stations = append(stations, s)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return stations, nil
}

func (r *Repository) GetShiftTemplates(ctx context.Context) ([]domain.ShiftTemplate, error) {
	query := `
		SELECT id, name, start_time, end_time, is_night
		FROM shift_templates
		ORDER BY id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	templates := []domain.ShiftTemplate{}
	for rows.Next() {
		var t domain.ShiftTemplate
		if err := rows.Scan(&t.ID, &t.Name, &t.StartTime, &t.EndTime, &t.IsNight); err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return templates, nil
}

func (r *Repository) GetDemandSlots(ctx context.Context, start, end time.Time) ([]domain.DemandSlot, error) {
	query := `
		SELECT id, station_id, shift_template_id, date, required_workers
		FROM demand_slots
		WHERE date BETWEEN $1 AND $2
		ORDER BY date, id
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	rows, err := r.dbpool.QueryContext(ctx, query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := []domain.DemandSlot{}
	for rows.Next() {
		var d domain.DemandSlot
		if err := rows.Scan(&d.ID, &d.StationID, &d.ShiftTemplateID, &d.Date, &d.RequiredWorkers); err != nil {
			return nil, err
		}
		slots = append(slots, d)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return slots, nil
}

func (r *Repository) CreateEmployee(ctx context.Context, e *domain.Employee) error {
	tctx, cancel := context.WithTimeout(ctx, time.Duration(r.cfg.Database.TransactionTimeout)*time.Second)
	defer cancel()

	tx, err := r.dbpool.BeginTx(tctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO employees (id, full_name, email, contract_type, max_hours_per_week, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := tx.ExecContext(tctx, query, e.ID, e.FullName, e.Email, e.ContractType, e.MaxHoursPerWeek, e.IsActive); err != nil {
		return err
	}

	for _, skill := range e.Skills {
		query := `
			INSERT INTO employee_skills (employee_id, skill_id, level, certified_until)
			VALUES ($1, $2, $3, $4)
		`
		if _, err := tx.ExecContext(tctx, query, e.ID, skill.SkillID, skill.Level, skill.CertifiedUntil); err != nil {
			return err
		}
	}

	for _, absence := range e.Absences {
		query := `
			INSERT INTO absences (id, employee_id, start_date, end_date, reason)
			VALUES ($1, $2, $3, $4, $5)
		`
		if _, err := tx.ExecContext(tctx, query, absence.ID, e.ID, absence.StartDate, absence.EndDate, absence.Reason); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *Repository) CreateStation(ctx context.Context, s *domain.Station) error {
	query := `
		INSERT INTO stations (id, name, priority, required_skill_id, min_skill_level, required_workers)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, s.ID, s.Name, s.Priority, s.RequiredSkillID, s.MinSkillLevel, s.RequiredWorkers)
	return err
}

func (r *Repository) CreateShiftTemplate(ctx context.Context, t *domain.ShiftTemplate) error {
	query := `
		INSERT INTO shift_templates (id, name, start_time, end_time, is_night)
		VALUES ($1, $2, $3, $4, $5)
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, t.ID, t.Name, t.StartTime, t.EndTime, t.IsNight)
	return err
}

func (r *Repository) CreateDemandSlot(ctx context.Context, d *domain.DemandSlot) error {
	query := `
		INSERT INTO demand_slots (id, station_id, shift_template_id, date, required_workers)
		VALUES ($1, $2, $3, $4, $5)
	`

	ctx, cancel := r.queryContext(ctx)
	defer cancel()

	_, err := r.dbpool.ExecContext(ctx, query, d.ID, d.StationID, d.ShiftTemplateID, d.Date, d.RequiredWorkers)
	return err
}

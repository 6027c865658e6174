package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fabline-dev/shift-planner/backend/internal/constraint"
	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/fabline-dev/shift-planner/backend/internal/planner"
	"github.com/fabline-dev/shift-planner/backend/internal/reconcile"
)

type syncResponse struct {
	Success       bool                     `json:"success"`
	Processed     int                      `json:"processed"`
	ConflictCount int                      `json:"conflictCount"`
	Results       []reconcile.ChangeResult `json:"results"`
	Conflicts     []domain.Conflict        `json:"conflicts"`
}

// SyncChanges applies a client change batch. Conflicts ride in the body as
// data; the 409 status only signals their presence, the non-conflicting
// changes in the same call have still been applied.
func (h *Handler) SyncChanges(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Changes   []domain.PlanningChange `json:"changes" validate:"required,min=1"`
		SessionID string                  `json:"sessionId"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	userID := r.Context().Value(SubCtxKey).(string)
	result, err := h.reconciler.Sync(r.Context(), req.Changes, userID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.metrics.SyncChangesProcessed.Add(float64(result.Processed))
	for _, conflict := range result.Conflicts {
		h.metrics.SyncConflicts.WithLabelValues(string(conflict.Type)).Inc()
	}

	if req.SessionID != "" {
		for _, conflict := range result.Conflicts {
			h.hub.NotifySession(req.SessionID, map[string]any{
				"type":     "conflict_detected",
				"conflict": conflict,
			})
		}
	}

	status := http.StatusOK
	if result.ConflictCount > 0 {
		status = http.StatusConflict
	}
	h.writeJSON(w, r, status, syncResponse{
		Success:       result.ConflictCount == 0,
		Processed:     result.Processed,
		ConflictCount: result.ConflictCount,
		Results:       result.Results,
		Conflicts:     result.Conflicts,
	})
}

// GetPlanningData serves the authoritative view for one date. Responses are
// cached in redis for a short TTL; planners reloading after a sync storm all
// hit the same cached payload.
func (h *Handler) GetPlanningData(w http.ResponseWriter, r *http.Request) {
	dateParam := chi.URLParam(r, "date")
	date, err := time.Parse("2006-01-02", dateParam)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	cacheKey := "planning:data:" + dateParam
	if cached, err := h.redisClient.Get(r.Context(), cacheKey).Bytes(); err == nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	} else if !errors.Is(err, redis.Nil) {
		h.logInternalServerError(r, err)
		// Fall through to the database on cache trouble.
	}

	data, err := h.buildPlanningData(r, date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	payload := struct {
		*domain.PlanningData
		ViolationGroups []constraint.ViolationGroup `json:"violationGroups"`
	}{data, constraint.GroupByConstraint(data.Violations)}

	h.cacheAndWrite(w, r, cacheKey, Response{Success: true, Message: "planning data", Data: payload})
}

func (h *Handler) buildPlanningData(r *http.Request, date time.Time) (*domain.PlanningData, error) {
	ctx := r.Context()

	employees, err := h.repository.GetEmployees(ctx)
	if err != nil {
		return nil, err
	}
	stations, err := h.repository.GetStations(ctx)
	if err != nil {
		return nil, err
	}
	shifts, err := h.repository.GetShiftTemplates(ctx)
	if err != nil {
		return nil, err
	}
	demands, err := h.repository.GetDemandSlots(ctx, date, date)
	if err != nil {
		return nil, err
	}
	assignments, err := h.repository.FindAssignmentsByDateRange(ctx, date, date)
	if err != nil {
		return nil, err
	}

	input := constraint.Input{
		Assignments: assignments,
		Demands:     make(map[string]domain.DemandSlot, len(demands)),
		Stations:    make(map[string]domain.Station, len(stations)),
		Shifts:      make(map[string]domain.ShiftTemplate, len(shifts)),
		Employees:   make(map[string]domain.Employee, len(employees)),
		Now:         time.Now(),
	}
	for _, d := range demands {
		input.Demands[d.ID] = d
	}
	for _, s := range stations {
		input.Stations[s.ID] = s
	}
	for _, s := range shifts {
		input.Shifts[s.ID] = s
	}
	for _, e := range employees {
		input.Employees[e.ID] = e
	}

	return &domain.PlanningData{
		Date:           date,
		Stations:       stations,
		ShiftTemplates: shifts,
		Employees:      employees,
		Demands:        demands,
		Assignments:    assignments,
		CoverageStatus: planner.CoverageFor(demands, assignments),
		Violations:     constraint.Evaluate(input, h.rules()),
	}, nil
}

func (h *Handler) rules() constraint.Rules {
	rules := constraint.DefaultRules()
	rules.MaxConsecutiveDays = h.config.Planning.MaxConsecutiveDays
	rules.MinRestHours = float64(h.config.Planning.MinRestHours)
	rules.MaxDailyHours = float64(h.config.Planning.MaxDailyHours)
	rules.MaxWeeklyHours = float64(h.config.Planning.MaxWeeklyHours)
	return rules
}

func (h *Handler) cacheAndWrite(w http.ResponseWriter, r *http.Request, key string, payload Response) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	ttl := time.Duration(h.config.Redis.SnapshotTTL) * time.Second
	if err := h.redisClient.Set(r.Context(), key, body, ttl).Err(); err != nil {
		h.logInternalServerError(r, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Date string `json:"date" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "invalid date, expected YYYY-MM-DD")
		return
	}

	assignments, err := h.repository.FindAssignmentsByDateRange(r.Context(), date, date)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	snapshot := &domain.Snapshot{
		ID:          uuid.NewString(),
		Date:        date,
		Assignments: assignments,
		CreatedAt:   time.Now(),
		CreatedBy:   r.Context().Value(SubCtxKey).(string),
	}
	if err := h.repository.CreateSnapshot(r.Context(), snapshot); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "snapshot created", snapshot)
}

func (h *Handler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	snapshot, err := h.repository.GetSnapshot(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "snapshot not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "snapshot data", snapshot)
}

// ResolveConflict applies a planner's decision for a surfaced conflict and
// broadcasts the outcome to the session. Conflicts are acted on once, never
// retried automatically.
func (h *Handler) ResolveConflict(w http.ResponseWriter, r *http.Request) {
	conflictID := chi.URLParam(r, "id")

	var req struct {
		Resolution struct {
			Action             domain.ResolutionAction `json:"action" validate:"required,oneof=accept_local accept_remote merge manual"`
			ResolvedAssignment *domain.Assignment      `json:"resolvedAssignment"`
		} `json:"resolution" validate:"required"`
		UserID    string `json:"userId"`
		SessionID string `json:"sessionId"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	// accept_remote keeps the stored state; the other actions carry the
	// assignment that should win.
	if req.Resolution.Action != domain.ResolveAcceptRemote {
		if req.Resolution.ResolvedAssignment == nil {
			h.errorResponse(w, r, http.StatusBadRequest, "resolvedAssignment is required for this action")
			return
		}
		now := time.Now()
		req.Resolution.ResolvedAssignment.UpdatedAt = &now
		if err := h.repository.UpdateAssignment(r.Context(), req.Resolution.ResolvedAssignment); err != nil {
			switch {
			case errors.Is(err, domain.ErrNotFound):
				h.errorResponse(w, r, http.StatusNotFound, "assignment not found")
			default:
				h.internalServerError(w, r, err)
			}
			return
		}
	}

	if req.SessionID != "" {
		h.hub.NotifySession(req.SessionID, map[string]any{
			"type":       "conflict_resolved",
			"conflictId": conflictID,
			"action":     req.Resolution.Action,
			"userId":     req.UserID,
		})
	}

	h.successResponse(w, r, "conflict resolved", map[string]any{
		"conflictId": conflictID,
		"action":     req.Resolution.Action,
	})
}

// GetStatus reports store aggregates plus live websocket counts.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	now := time.Now()
	stats, err := h.repository.GetAssignmentStats(r.Context(), now.AddDate(0, 0, -30), now.AddDate(0, 0, 30))
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	sessions, connections := h.hub.Counts()
	h.successResponse(w, r, "status", map[string]any{
		"assignments": stats,
		"sessions":    sessions,
		"connections": connections,
	})
}

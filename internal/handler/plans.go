package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/fabline-dev/shift-planner/backend/internal/constraint"
	"github.com/fabline-dev/shift-planner/backend/internal/domain"
	"github.com/fabline-dev/shift-planner/backend/internal/planner"
)

// planResponse pairs a proposal with the grouped violation view a review UI
// renders alongside it.
type planResponse struct {
	Plan            *domain.PlanProposal        `json:"plan"`
	ViolationGroups []constraint.ViolationGroup `json:"violationGroups"`
	Blocking        bool                        `json:"blocking"`
}

func newPlanResponse(plan *domain.PlanProposal) planResponse {
	return planResponse{
		Plan:            plan,
		ViolationGroups: constraint.GroupByConstraint(plan.Violations),
		Blocking:        constraint.HasBlocking(plan.Violations),
	}
}

// GeneratePlan builds a scored proposal for the requested range. The proposal
// is persisted but nothing is confirmed until commit.
func (h *Handler) GeneratePlan(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RangeStart       string                     `json:"rangeStart" validate:"required"`
		RangeEnd         string                     `json:"rangeEnd" validate:"required"`
		StationIDs       []string                   `json:"stationIds"`
		ShiftTemplateIDs []string                   `json:"shiftTemplateIds"`
		Strategy         string                     `json:"strategy" validate:"omitempty,oneof=balanced basic"`
		Custom           []planner.CustomConstraint `json:"customConstraints"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	rangeStart, err := time.Parse("2006-01-02", req.RangeStart)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "invalid rangeStart, expected YYYY-MM-DD")
		return
	}
	rangeEnd, err := time.Parse("2006-01-02", req.RangeEnd)
	if err != nil {
		h.errorResponse(w, r, http.StatusBadRequest, "invalid rangeEnd, expected YYYY-MM-DD")
		return
	}
	if rangeEnd.Before(rangeStart) {
		h.errorResponse(w, r, http.StatusBadRequest, "rangeEnd is before rangeStart")
		return
	}
	if int(rangeEnd.Sub(rangeStart).Hours()/24)+1 > h.config.Planning.MaxRangeDays {
		h.errorResponse(w, r, http.StatusBadRequest, "planning range too large")
		return
	}

	strategy := planner.Strategy(req.Strategy)
	if strategy == "" {
		strategy = planner.StrategyBalanced
	}

	ctx := r.Context()
	employees, err := h.repository.GetEmployees(ctx)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	stations, err := h.repository.GetStations(ctx)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	shifts, err := h.repository.GetShiftTemplates(ctx)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	demands, err := h.repository.GetDemandSlots(ctx, rangeStart, rangeEnd)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	existing, err := h.repository.FindAssignmentsByDateRange(ctx, rangeStart, rangeEnd)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	generator := planner.New(h.rules(), employees, stations, shifts, demands, existing, time.Now())
	plan, err := generator.Generate(planner.Request{
		RangeStart:       rangeStart,
		RangeEnd:         rangeEnd,
		StationIDs:       req.StationIDs,
		ShiftTemplateIDs: req.ShiftTemplateIDs,
		Strategy:         strategy,
		Custom:           req.Custom,
		RequestedBy:      ctx.Value(SubCtxKey).(string),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrInsufficientData):
			h.errorResponse(w, r, http.StatusBadRequest, "not enough data to generate a plan")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if err := h.repository.CreatePlan(ctx, plan); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.metrics.PlansGenerated.Inc()
	h.successResponse(w, r, "plan generated", newPlanResponse(plan))
}

func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(PlanCtxKey).(*domain.PlanProposal)
	h.successResponse(w, r, "plan", newPlanResponse(plan))
}

// CommitPlan confirms the selected assignments of a plan (all proposed ones
// when assignmentIds is empty). Per-assignment failures come back in the
// result; only structural errors fail the request.
func (h *Handler) CommitPlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(PlanCtxKey).(*domain.PlanProposal)
	userID := r.Context().Value(SubCtxKey).(string)

	var req struct {
		AssignmentIDs []string `json:"assignmentIds"`
	}
	if r.ContentLength > 0 {
		if err := h.readJSON(r, &req); err != nil {
			h.badRequest(w, r, err)
			return
		}
	}

	result, err := h.coordinator.Commit(r.Context(), plan.ID, req.AssignmentIDs, userID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrAlreadyCommitted):
			h.errorResponse(w, r, http.StatusConflict, "plan is already committed")
		case errors.Is(err, domain.ErrNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "plan not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	if result.Committed > 0 {
		h.metrics.PlansCommitted.Inc()
		h.publishCommitNotifications(plan, result, userID)
	}

	h.successResponse(w, r, "plan committed", result)
}

func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	plan := r.Context().Value(PlanCtxKey).(*domain.PlanProposal)

	if err := h.repository.DeletePlan(r.Context(), plan.ID); err != nil {
		switch {
		case errors.Is(err, domain.ErrConflict):
			h.errorResponse(w, r, http.StatusConflict, "committed plans cannot be deleted")
		case errors.Is(err, domain.ErrNotFound):
			h.errorResponse(w, r, http.StatusNotFound, "plan not found")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "plan deleted", nil)
}

// publishCommitNotifications queues one email per affected employee. Failures
// are logged, never surfaced: the commit already happened.
func (h *Handler) publishCommitNotifications(plan *domain.PlanProposal, result *domain.CommitResult, committedBy string) {
	committed := map[string]bool{}
	for _, outcome := range result.Outcomes {
		if outcome.Committed {
			committed[outcome.AssignmentID] = true
		}
	}

	shiftCounts := map[string]int{} // employeeID -> confirmed shifts in this commit
	for _, a := range plan.Assignments {
		if committed[a.ID] {
			shiftCounts[a.EmployeeID]++
		}
	}
	if len(shiftCounts) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
	defer cancel()

	employees, err := h.repository.GetEmployees(ctx)
	if err != nil {
		slog.Error("failed to load employees for commit notifications", "error", err)
		return
	}

	for _, employee := range employees {
		count, ok := shiftCounts[employee.ID]
		if !ok || employee.Email == "" {
			continue
		}

		body, err := json.Marshal(domain.NotificationMessage{
			Type: "plan_committed",
			To:   employee.Email,
			Data: domain.PlanCommittedNotificationData{
				FullName:    employee.FullName,
				PlanID:      plan.ID,
				ShiftCount:  count,
				RangeStart:  plan.RangeStart.Format("2006-01-02"),
				RangeEnd:    plan.RangeEnd.Format("2006-01-02"),
				CommittedBy: committedBy,
			},
		})
		if err != nil {
			slog.Error("failed to marshal commit notification", "error", err)
			continue
		}

		if err := h.notifyChannel.PublishWithContext(
			ctx,
			"",
			"notification_queue",
			true,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        body,
			},
		); err != nil {
			slog.Error("failed to publish commit notification", "to", employee.Email, "error", err)
		}
	}
}

package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/repo"
	"github.com/shaiso/Prospector/internal/scheduler"
)

// ListSchedules возвращает расписания с фильтрацией.
// GET /api/v1/schedules?account_id=...&city=...&enabled=...&limit=...&offset=...
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryUUID(r, "account_id")
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	filter := repo.ScheduleFilter{
		AccountID: accountID,
		City:      r.URL.Query().Get("city"),
		Limit:     queryInt(r, "limit", 50),
		Offset:    queryInt(r, "offset", 0),
	}
	if v := r.URL.Query().Get("enabled"); v != "" {
		enabled := v == "true"
		filter.Enabled = &enabled
	}

	schedules, err := h.schedules.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ScheduleResponse, len(schedules))
	for i := range schedules {
		result[i] = ScheduleFromDomain(&schedules[i])
	}
	List(w, result, len(result))
}

// CreateSchedule создаёт расписание discover для города.
// POST /api/v1/schedules
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	sched, err := scheduler.NewSchedule(uuid.MustParse(req.AccountID), req.City, req.IndexURL,
		req.CronExpr, req.IntervalSec, req.Timezone)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	if req.Enabled != nil {
		sched.Enabled = *req.Enabled
	}

	if err := h.schedules.Create(r.Context(), sched); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ScheduleFromDomain(sched))
}

// GetSchedule возвращает расписание по ID.
// GET /api/v1/schedules/{id}
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}
	Success(w, ScheduleFromDomain(sched))
}

// UpdateSchedule обновляет расписание. Смена cron/interval/timezone пересчитывает next_due_at.
// PUT /api/v1/schedules/{id}
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req UpdateScheduleRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	timing := false
	if req.City != nil {
		sched.City = *req.City
	}
	if req.IndexURL != nil {
		sched.IndexURL = *req.IndexURL
	}
	if req.CronExpr != nil {
		sched.CronExpr = *req.CronExpr
		timing = true
	}
	if req.IntervalSec != nil {
		sched.IntervalSec = *req.IntervalSec
		timing = true
	}
	if req.Timezone != nil {
		sched.Timezone = *req.Timezone
		timing = true
	}

	if timing {
		next, err := scheduler.CalculateNextDue(sched, time.Now())
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		sched.NextDueAt = &next
	}
	sched.UpdatedAt = time.Now()

	if err := h.schedules.Update(r.Context(), sched); err != nil {
		HandleRepoError(w, h.logger, err, "schedule not found")
		return
	}
	Success(w, ScheduleFromDomain(sched))
}

// DeleteSchedule удаляет расписание.
// DELETE /api/v1/schedules/{id}
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	if err := h.schedules.Delete(r.Context(), id); err != nil {
		HandleRepoError(w, h.logger, err, "schedule not found")
		return
	}
	NoContent(w)
}

// SetScheduleEnabled включает или выключает расписание.
// PUT /api/v1/schedules/{id}/enabled
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid schedule id")
		return
	}

	var req SetEnabledRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if err := h.schedules.SetEnabled(r.Context(), id, req.Enabled); err != nil {
		HandleRepoError(w, h.logger, err, "schedule not found")
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}
	Success(w, ScheduleFromDomain(sched))
}

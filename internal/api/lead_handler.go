package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
)

// GetLead возвращает лид по ID.
// GET /api/v1/leads/{id}
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid lead id")
		return
	}

	lead, err := h.leads.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "lead not found") {
		return
	}
	Success(w, lead)
}

// SetLeadState переводит лид в новое состояние.
// PUT /api/v1/leads/{id}/state
//
// Переход в состояние, где лиду больше не пишут, отменяет его касания.
// 422 — переход назад или из dead.
func (h *Handler) SetLeadState(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid lead id")
		return
	}

	var req SetLeadStateRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	canceled, err := h.leads.SetState(r.Context(), id, req.State)
	if HandleRepoError(w, h.logger, err, "lead not found") {
		return
	}

	lead, err := h.leads.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "lead not found") {
		return
	}

	h.logger.Info("lead state set", "lead_id", id, "state", req.State, "canceled", canceled)
	Success(w, SetLeadStateResponse{Lead: lead, Canceled: canceled})
}

// EnrollLead записывает лида в кампанию.
// POST /api/v1/leads/{id}/enroll
//
// 422 — лид уже engaged/qualified/booked/dead.
func (h *Handler) EnrollLead(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid lead id")
		return
	}

	var req EnrollRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	lead, err := h.leads.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "lead not found") {
		return
	}

	start := time.Now()
	if req.StartAt != nil {
		start = *req.StartAt
	}

	runs, inserted, err := h.enroller.Enroll(r.Context(), lead, req.Campaign(lead.AccountID), start)
	if HandleRepoError(w, h.logger, err, "lead not found") {
		return
	}

	Created(w, EnrollResponse{Inserted: inserted, Touches: runs})
}

// ListLeadTouches возвращает касания лида.
// GET /api/v1/leads/{id}/touches
func (h *Handler) ListLeadTouches(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid lead id")
		return
	}

	touches, err := h.touches.ListByLead(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if touches == nil {
		touches = []domain.TouchRun{}
	}
	List(w, touches, len(touches))
}

// SendAdHocTouch отправляет разовое касание лиду.
// POST /api/v1/leads/{id}/touches
func (h *Handler) SendAdHocTouch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid lead id")
		return
	}

	var req AdHocTouchRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	lead, err := h.leads.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "lead not found") {
		return
	}

	touch, err := h.executor.SendAdHoc(r.Context(), lead, req.Channel, req.Payload)
	if HandleRepoError(w, h.logger, err, "touch not found") {
		return
	}
	Created(w, touch)
}

// ExecuteTouch выполняет касание вне расписания.
// POST /api/v1/touches/{id}/execute
//
// 409 — касание отменено или уже выполнено.
func (h *Handler) ExecuteTouch(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid touch id")
		return
	}

	touch, err := h.executor.ExecuteOne(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "touch not found") {
		return
	}
	Success(w, touch)
}

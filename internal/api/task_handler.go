package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/queue"
	"github.com/shaiso/Prospector/internal/repo"
)

// ClaimTasks захватывает задачи для удалённого воркера.
// POST /api/v1/tasks/claim
func (h *Handler) ClaimTasks(w http.ResponseWriter, r *http.Request) {
	var req ClaimTasksRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	filter := queue.Filter{
		AccountID: parseOptionalUUID(req.AccountID),
		City:      req.City,
		Types:     req.Types,
	}
	limit := req.Limit
	if limit == 0 {
		limit = 1
	}

	tasks, err := h.tasks.Claim(r.Context(), req.WorkerID, filter, limit)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, tasksFromDomain(tasks), len(tasks))
}

// FinishTask завершает захваченную задачу.
// POST /api/v1/tasks/{id}/finish
//
// 409 — claim принадлежит другому воркеру.
func (h *Handler) FinishTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	var req FinishTaskRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	outcome := domain.Outcome{Status: req.Status, Reason: req.Reason}
	if err := h.tasks.Finish(r.Context(), id, req.WorkerID, outcome); err != nil {
		HandleRepoError(w, h.logger, err, "task not found")
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}
	Success(w, TaskFromDomain(*task))
}

// CreateDiscover создаёт discover-задачу для города.
// POST /api/v1/tasks/discover
func (h *Handler) CreateDiscover(w http.ResponseWriter, r *http.Request) {
	var req CreateDiscoverRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	task := domain.NewDiscoverTask(uuid.MustParse(req.AccountID), req.City, req.IndexURL)
	created, err := h.tasks.CreateDiscover(r.Context(), task, req.ScheduleKey)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	resp := CreateDiscoverResponse{Created: created, Task: TaskFromDomain(*task)}
	if !created {
		Success(w, resp)
		return
	}

	h.publishTaskReady(r.Context(), mq.WakePayload{AccountID: task.AccountID, City: task.City, Count: 1})
	Created(w, resp)
}

// ReclaimTasks возвращает в очередь протухшие claim'ы.
// POST /api/v1/tasks/reclaim
func (h *Handler) ReclaimTasks(w http.ResponseWriter, r *http.Request) {
	var req ReclaimRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	olderThan := h.visibility
	if req.OlderThanSec > 0 {
		olderThan = time.Duration(req.OlderThanSec) * time.Second
	}

	n, err := h.tasks.Reclaim(r.Context(), olderThan)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if n > 0 {
		h.publishTaskReady(r.Context(), mq.WakePayload{Count: int(n)})
	}
	Success(w, CountResponse{Count: n})
}

// RequeueTasks возвращает failed-задачи в очередь.
// POST /api/v1/tasks/requeue
func (h *Handler) RequeueTasks(w http.ResponseWriter, r *http.Request) {
	var req RequeueRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	n, err := h.tasks.RequeueFailed(r.Context(), repo.RequeueFilter{
		IDs:          req.IDs,
		AccountID:    parseOptionalUUID(req.AccountID),
		City:         req.City,
		ReasonPrefix: req.ReasonPrefix,
	})
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if n > 0 {
		h.publishTaskReady(r.Context(), mq.WakePayload{City: req.City, Count: int(n)})
	}
	Success(w, CountResponse{Count: n})
}

// ListTasks возвращает задачи с фильтрацией.
// GET /api/v1/tasks?account_id=...&city=...&type=...&status=...&limit=...&offset=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryUUID(r, "account_id")
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	q := r.URL.Query()
	tasks, err := h.tasks.List(r.Context(), repo.TaskFilter{
		AccountID: accountID,
		City:      q.Get("city"),
		Type:      domain.TaskType(q.Get("type")),
		Status:    domain.TaskStatus(q.Get("status")),
		Limit:     queryInt(r, "limit", 50),
		Offset:    queryInt(r, "offset", 0),
	})
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	List(w, tasksFromDomain(tasks), len(tasks))
}

// GetTask возвращает задачу по ID.
// GET /api/v1/tasks/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid task id")
		return
	}

	task, err := h.tasks.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}
	Success(w, TaskFromDomain(*task))
}

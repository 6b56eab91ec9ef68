package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Tasks: claim RPC для воркеров и команды оператора
	mux.Handle("POST /api/v1/tasks/claim", chain(http.HandlerFunc(h.ClaimTasks)))
	mux.Handle("POST /api/v1/tasks/{id}/finish", chain(http.HandlerFunc(h.FinishTask)))
	mux.Handle("POST /api/v1/tasks/discover", chain(http.HandlerFunc(h.CreateDiscover)))
	mux.Handle("POST /api/v1/tasks/reclaim", chain(http.HandlerFunc(h.ReclaimTasks)))
	mux.Handle("POST /api/v1/tasks/requeue", chain(http.HandlerFunc(h.RequeueTasks)))
	mux.Handle("GET /api/v1/tasks", chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("GET /api/v1/tasks/{id}", chain(http.HandlerFunc(h.GetTask)))

	// Deliveries
	mux.Handle("GET /api/v1/deliveries", chain(http.HandlerFunc(h.ListDeliveries)))
	mux.Handle("POST /api/v1/deliveries/enqueue", chain(http.HandlerFunc(h.EnqueueDeliveries)))

	// Leads & touches
	mux.Handle("GET /api/v1/leads/{id}", chain(http.HandlerFunc(h.GetLead)))
	mux.Handle("PUT /api/v1/leads/{id}/state", chain(http.HandlerFunc(h.SetLeadState)))
	mux.Handle("POST /api/v1/leads/{id}/enroll", chain(http.HandlerFunc(h.EnrollLead)))
	mux.Handle("GET /api/v1/leads/{id}/touches", chain(http.HandlerFunc(h.ListLeadTouches)))
	mux.Handle("POST /api/v1/leads/{id}/touches", chain(http.HandlerFunc(h.SendAdHocTouch)))
	mux.Handle("POST /api/v1/touches/{id}/execute", chain(http.HandlerFunc(h.ExecuteTouch)))

	// Schedules
	mux.Handle("GET /api/v1/schedules", chain(http.HandlerFunc(h.ListSchedules)))
	mux.Handle("POST /api/v1/schedules", chain(http.HandlerFunc(h.CreateSchedule)))
	mux.Handle("GET /api/v1/schedules/{id}", chain(http.HandlerFunc(h.GetSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}", chain(http.HandlerFunc(h.UpdateSchedule)))
	mux.Handle("DELETE /api/v1/schedules/{id}", chain(http.HandlerFunc(h.DeleteSchedule)))
	mux.Handle("PUT /api/v1/schedules/{id}/enabled", chain(http.HandlerFunc(h.SetScheduleEnabled)))

	// Inbound webhooks
	mux.Handle("POST /webhooks/inbound", chain(VerifySignature(h.webhookSecret)(http.HandlerFunc(h.InboundWebhook))))
}

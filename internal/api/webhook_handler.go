package api

import (
	"net/http"
	"time"

	"github.com/shaiso/Prospector/internal/interrupt"
)

// InboundWebhook принимает событие от провайдера канала или календаря.
// POST /webhooks/inbound
//
// Повтор того же event_id отвечает так же, как первая доставка (200, deduped=true).
// Событие без найденного лида — 202 без изменений, чтобы провайдер не ретраил бесконечно.
func (h *Handler) InboundWebhook(w http.ResponseWriter, r *http.Request) {
	var req InboundEventRequest
	if err := decodeJSON(r, &req); err != nil {
		BadRequest(w, err.Error())
		return
	}

	res, err := h.inbound.Handle(r.Context(), req.Event(time.Now()))
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	if res.Result == interrupt.ResultUnresolved {
		Accepted(w, res)
		return
	}
	Success(w, res)
}

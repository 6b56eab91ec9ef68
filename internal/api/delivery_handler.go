package api

import (
	"net/http"

	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/repo"
)

// ListDeliveries возвращает доставки.
// GET /api/v1/deliveries?account_id=...&lead_id=...&status=...&limit=...&offset=...
func (h *Handler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	accountID, err := queryUUID(r, "account_id")
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	leadID, err := queryUUID(r, "lead_id")
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	deliveries, err := h.deliveries.List(r.Context(), repo.DeliveryFilter{
		AccountID: accountID,
		LeadID:    leadID,
		Status:    domain.DeliveryStatus(r.URL.Query().Get("status")),
		Limit:     queryInt(r, "limit", 50),
		Offset:    queryInt(r, "offset", 0),
	})
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	if deliveries == nil {
		deliveries = []domain.Delivery{}
	}
	List(w, deliveries, len(deliveries))
}

// EnqueueDeliveries создаёт доставки для лидов без доставки.
// POST /api/v1/deliveries/enqueue
func (h *Handler) EnqueueDeliveries(w http.ResponseWriter, r *http.Request) {
	var req EnqueueDeliveriesRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	accountID := parseOptionalUUID(req.AccountID)
	n, err := h.enqueuer.EnqueueMissing(r.Context(), accountID)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	if n > 0 {
		p := mq.WakePayload{Count: n}
		if accountID != nil {
			p.AccountID = *accountID
		}
		h.publishDeliveryReady(r.Context(), p)
	}
	Success(w, CountResponse{Count: int64(n)})
}

// Package delivery пересылает найденные лиды во внешний CRM webhook.
//
// # Поток
//
//	leads ──EnqueueMissing──▶ deliveries(queued)
//	                               │ claim (SKIP LOCKED)
//	                               ▼
//	                          sending ──POST──▶ sent
//	                               │
//	                               ├─▶ failed, next_attempt_at = now + backoff(attempts)
//	                               └─▶ dead (attempts >= MaxAttempts)
//
// Ровно одна доставка на (account_id, listing_hash): повторный enqueue — no-op.
// Backoff: min(cap, base * 2^(attempts-1)), по умолчанию 10m / 6h.
//
// Payload собирается в момент отправки из текущих полей лида (BuildPayload).
// Исходящий поток ограничен rate.Limiter.
package delivery

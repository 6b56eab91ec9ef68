// Package cadence планирует и выполняет касания лидов.
//
// Builder записывает лида в кампанию: шаги кампании превращаются в TouchRun
// с scheduled_at = start + offset, лид переходит в attempting.
//
// Dispatcher выполняет касания:
//
//	queued ──Promote──▶ scheduled ──ClaimDue──▶ executing ──Send──▶ sent | failed
//	   └──────────────── interrupt ─────────────────┴──▶ canceled
//
// Касание, отменённое interrupt'ом, никогда не отправляется: ClaimDue и ClaimByID
// выбирают только queued/scheduled касания contactable-лидов, а MarkSent/MarkFailed
// меняют только executing-касания.
package cadence

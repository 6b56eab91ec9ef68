package queue

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Prospector/internal/domain"
)

// DefaultVisibilityTimeout — через сколько claim без finish снова виден другим воркерам.
const DefaultVisibilityTimeout = 15 * time.Minute

// Filter — условие отбора элементов при claim.
// Пустые поля не фильтруют.
type Filter struct {
	AccountID *uuid.UUID
	City      string
	Types     []domain.TaskType
}

// Claimer — атомарный захват элементов очереди.
//
// Реализация обязана:
//   - выбирать только eligible строки (queued/failed, next_attempt_at <= now, либо протухший claim)
//   - блокировать строки с FOR UPDATE SKIP LOCKED (конкурентные вызовы не ждут друг друга)
//   - помечать claimed/sending, ставить claimed_by, attempts += 1 в той же транзакции
//
// Пересечение результатов любых двух конкурентных вызовов пусто.
type Claimer[T any] interface {
	Claim(ctx context.Context, workerID string, filter Filter, limit int) ([]T, error)
}

// Reclaimer — возврат протухших claim'ов в очередь.
type Reclaimer interface {
	Reclaim(ctx context.Context, olderThan time.Duration) (int64, error)
}

// TaskQueue — очередь scrape-задач.
type TaskQueue interface {
	Claimer[domain.Task]
	Reclaimer

	// Finish переводит захваченную задачу в done/failed.
	// Возвращает ErrNotOwner, если claim уже принадлежит другому воркеру.
	Finish(ctx context.Context, id uuid.UUID, workerID string, outcome domain.Outcome) error
}

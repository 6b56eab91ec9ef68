package queue

import "errors"

// Ошибки очереди.
var (
	// ErrStoreUnavailable — хранилище недоступно: claim/finish не проходят подряд.
	// Фатально для воркера — процесс завершается и перезапускается супервизором.
	ErrStoreUnavailable = errors.New("queue store unavailable")

	// ErrNotOwner — finish от воркера, который больше не владеет claim'ом.
	ErrNotOwner = errors.New("claim is not owned by worker")
)

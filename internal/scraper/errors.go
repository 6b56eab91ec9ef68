package scraper

import "errors"

// Ошибки scraper.
var (
	// ErrUnknownTaskType — нет обработчика для типа задачи.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrBrowserUnavailable — не удалось открыть страницу. Фатально для воркера.
	ErrBrowserUnavailable = errors.New("browser unavailable")
)

package scraper

import "context"

// Page — одна вкладка браузера.
//
// Воркер держит ровно одну Page на всё время жизни и пересоздаёт её
// после жёстких ошибок (таймаут навигации, падение вкладки).
// Таймауты задаются через ctx: истечение дедлайна возвращает ошибку,
// для которой errors.Is(err, context.DeadlineExceeded) == true.
type Page interface {
	// Goto открывает URL и возвращает HTTP-статус основного документа.
	// 0 — статус неизвестен (например, ответ из кэша).
	Goto(ctx context.Context, url string) (int, error)

	// WaitFor ждёт появления элемента по CSS-селектору.
	WaitFor(ctx context.Context, selector string) error

	// HTML возвращает текущий DOM страницы.
	HTML(ctx context.Context) (string, error)

	// Screenshot снимает полностраничный PNG.
	Screenshot(ctx context.Context) ([]byte, error)

	// Close закрывает вкладку.
	Close() error
}

// Browser создаёт страницы.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Package queue описывает claim-очередь, общую для scrape-задач, доставок и касаний.
//
// # Обзор
//
// Очередь — это таблица в Postgres. Воркер не держит соединение с брокером
// ради работы: он периодически вызывает Claim, получает батч элементов в
// эксклюзивное владение и завершает каждый элемент через Finish.
//
// # Гарантии
//
//   - Claim атомарен: два конкурентных вызова никогда не возвращают один элемент
//   - Захваченный элемент невидим другим до Finish или до истечения visibility timeout
//   - Finish проверяет владельца (ErrNotOwner)
//
// # Poller
//
// Poller — обобщённый цикл воркера:
//
//	p := queue.NewPoller(queue.PollerConfig[domain.Task]{
//	    Name:  "tasks",
//	    Claim: claimFn,
//	    Handle: handleFn,
//	    Wake:  wakeCh,
//	})
//	err := p.Run(ctx) // nil при отмене ctx, ErrStoreUnavailable при падении хранилища
//
// # Backoff
//
// Backoff — чистая функция задержки: min(Cap, Base * 2^(n-1)).
// Используется доставкой; scrape-задачи не ретраятся по расписанию.
package queue

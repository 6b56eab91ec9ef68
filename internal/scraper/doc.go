// Package scraper реализует scrape-воркер: discover и detail задачи.
//
// # Архитектура
//
//	Poller ──claim──▶ Worker ──▶ Registry[task_type] ──▶ Handler
//	                    │                                 │
//	                    ▼                                 ▼
//	                  Page (chromedp)               TaskRepo / LeadRepo
//
// Worker держит одну страницу браузера и обрабатывает задачи последовательно.
// Между навигациями выдерживается случайная пауза (Pacer).
//
// # Discover
//
// Открывает индекс города, собирает ссылки на объявления, извлекает external_id
// из URL, удаляет дубликаты, ограничивает количество (Cap) и вставляет detail-задачи
// с ON CONFLICT DO NOTHING.
//
// # Detail
//
// Открывает объявление, ждёт маркер контента, извлекает поля, прогоняет
// через PolicyGate (дилерские объявления → rejected_commercial, без ошибки)
// и сохраняет лид по ключу (account, source, external_id).
//
// # Ошибки
//
//	403/503            → одна повторная попытка после паузы, затем blocked_<status>
//	таймаут навигации  → goto_timeout + evidence + пересоздание страницы
//	нет маркера        → goto_timeout + evidence
//	нет полей          → missing_content + evidence
//	сбой хранилища     → store_error
//
// Evidence — HTML и PNG в каталоге SCRAPER_EVIDENCE_DIR,
// имена <type>_<city>_<timestamp>.{html,png}.
package scraper

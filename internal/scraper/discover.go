package scraper

import (
	"context"
	"fmt"

	"github.com/shaiso/Prospector/internal/cache"
	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/mq"
	"github.com/shaiso/Prospector/internal/telemetry"
)

// DefaultDiscoverCap — максимум detail-задач с одного индекса.
const DefaultDiscoverCap = 60

// DetailInserter — вставка detail-задач с пропуском известных external_id.
type DetailInserter interface {
	InsertDetailTasks(ctx context.Context, tasks []domain.Task) (int, error)
}

// Notifier — wake-up события для других воркеров. *mq.Publisher подходит, nil-указатель тоже.
type Notifier interface {
	PublishTaskReady(ctx context.Context, payload mq.WakePayload) error
	PublishDeliveryReady(ctx context.Context, payload mq.WakePayload) error
}

// DiscoverConfig — зависимости DiscoverHandler.
type DiscoverConfig struct {
	Tasks     DetailInserter
	Extractor Extractor

	// Recent — недавно виденные external_id этого процесса (опционально).
	Recent *cache.Recent

	Notifier Notifier

	// IndexURLTemplate — шаблон URL индекса с %s для города.
	// Используется, если в задаче не задан ListingURL.
	IndexURLTemplate string

	// Cap — максимум detail-задач за один discover (default: 60).
	Cap int
}

// DiscoverHandler обходит индекс города и порождает detail-задачи.
type DiscoverHandler struct {
	tasks     DetailInserter
	extractor Extractor
	recent    *cache.Recent
	notifier  Notifier
	template  string
	limit     int
}

// NewDiscoverHandler создаёт DiscoverHandler.
func NewDiscoverHandler(cfg DiscoverConfig) *DiscoverHandler {
	limit := cfg.Cap
	if limit <= 0 {
		limit = DefaultDiscoverCap
	}
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = (*mq.Publisher)(nil)
	}
	return &DiscoverHandler{
		tasks:     cfg.Tasks,
		extractor: cfg.Extractor,
		recent:    cfg.Recent,
		notifier:  notifier,
		template:  cfg.IndexURLTemplate,
		limit:     limit,
	}
}

// IndexURL возвращает URL индекса для задачи.
func (h *DiscoverHandler) IndexURL(task *domain.Task) string {
	if task.ListingURL != "" {
		return task.ListingURL
	}
	if h.template == "" || task.City == "" {
		return ""
	}
	return fmt.Sprintf(h.template, task.City)
}

func (h *DiscoverHandler) Handle(ctx context.Context, env *Env, task *domain.Task) Result {
	indexURL := h.IndexURL(task)
	if indexURL == "" {
		return Result{Outcome: domain.Failed(domain.ReasonBadRow)}
	}

	if res, ok := env.open(ctx, task, indexURL, h.extractor.IndexMarker()); !ok {
		return res
	}

	html, err := env.html(ctx)
	if err != nil {
		env.Logger.Warn("failed to read index html", "error", err)
		return Result{Outcome: domain.Failed(domain.ReasonPageCrash), ResetPage: true}
	}

	links, err := h.extractor.Links(html, indexURL)
	if err != nil {
		env.capture(ctx, task)
		return Result{Outcome: domain.Failed(domain.ReasonMissingContent)}
	}

	candidates, keys := h.candidates(task, links)

	inserted, err := h.tasks.InsertDetailTasks(ctx, candidates)
	if err != nil {
		env.Logger.Error("failed to insert detail tasks", "error", err)
		return Result{Outcome: domain.Failed(domain.ReasonStoreError)}
	}

	h.recent.Mark(keys...)
	telemetry.DetailTasksEnqueued.Add(float64(inserted))

	if inserted > 0 {
		if err := h.notifier.PublishTaskReady(ctx, mq.WakePayload{
			AccountID: task.AccountID,
			City:      task.City,
			Count:     inserted,
		}); err != nil {
			env.Logger.Warn("failed to publish task.ready", "error", err)
		}
	}

	env.Logger.Info("discover finished",
		"links", len(links),
		"candidates", len(candidates),
		"inserted", inserted,
	)

	return Result{Outcome: domain.Done()}
}

// candidates отбирает уникальные по external_id ссылки, пропуская недавно виденные,
// не более cap штук.
func (h *DiscoverHandler) candidates(task *domain.Task, links []string) ([]domain.Task, []string) {
	seen := make(map[string]struct{}, len(links))
	tasks := make([]domain.Task, 0, min(len(links), h.limit))
	keys := make([]string, 0, cap(tasks))

	for _, link := range links {
		if len(tasks) >= h.limit {
			break
		}
		id, ok := domain.ExternalIDFromURL(link)
		if !ok {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		key := cache.Key(task.AccountID, id)
		if h.recent.Seen(key) {
			continue
		}

		tasks = append(tasks, *domain.NewDetailTask(task.AccountID, task.City, id, link))
		keys = append(keys, key)
	}

	return tasks, keys
}

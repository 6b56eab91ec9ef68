package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Prospector/internal/domain"
	"github.com/shaiso/Prospector/internal/queue"
	"github.com/shaiso/Prospector/internal/telemetry"
)

// Значения по умолчанию для Worker.
const (
	defaultGotoTimeout = 15 * time.Second
	defaultWaitTimeout = 10 * time.Second
)

// WorkerConfig — конфигурация Worker.
type WorkerConfig struct {
	// WorkerID — идентификатор в claimed_by.
	WorkerID string

	Tasks    queue.TaskQueue
	Browser  Browser
	Registry *Registry

	// Filter — ограничение claim'а по аккаунту, городу и типам.
	Filter queue.Filter

	Pacer    *Pacer
	Evidence *Evidence

	GotoTimeout time.Duration // default: 15s
	WaitTimeout time.Duration // default: 10s

	// Polling
	PollInterval     time.Duration
	BatchSize        int
	MaxStoreFailures int

	// Wake — сигналы tasks.ready из RabbitMQ (опционально).
	Wake <-chan struct{}

	Logger *slog.Logger
}

// Worker — scrape-воркер: claim задач, обработка одной страницей браузера, finish.
//
// Страница одна на воркер. После таймаута навигации или падения вкладки
// она пересоздаётся; если новую открыть нельзя, Run возвращает ErrBrowserUnavailable.
type Worker struct {
	id       string
	tasks    queue.TaskQueue
	browser  Browser
	registry *Registry
	filter   queue.Filter

	pacer       *Pacer
	evidence    *Evidence
	gotoTimeout time.Duration
	waitTimeout time.Duration

	pollInterval     time.Duration
	batchSize        int
	maxStoreFailures int
	wake             <-chan struct{}

	logger *slog.Logger

	mu     sync.Mutex
	page   Page
	fatal  error
	cancel context.CancelFunc
}

// NewWorker создаёт Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	gotoTimeout := cfg.GotoTimeout
	if gotoTimeout <= 0 {
		gotoTimeout = defaultGotoTimeout
	}
	waitTimeout := cfg.WaitTimeout
	if waitTimeout <= 0 {
		waitTimeout = defaultWaitTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	filter := cfg.Filter
	if len(filter.Types) == 0 {
		filter.Types = registry.Types()
	}

	return &Worker{
		id:               cfg.WorkerID,
		tasks:            cfg.Tasks,
		browser:          cfg.Browser,
		registry:         registry,
		filter:           filter,
		pacer:            cfg.Pacer,
		evidence:         cfg.Evidence,
		gotoTimeout:      gotoTimeout,
		waitTimeout:      waitTimeout,
		pollInterval:     cfg.PollInterval,
		batchSize:        cfg.BatchSize,
		maxStoreFailures: cfg.MaxStoreFailures,
		wake:             cfg.Wake,
		logger:           telemetry.WithWorkerID(logger, cfg.WorkerID),
	}
}

// Run крутит цикл claim → handle → finish до отмены ctx.
//
// Возвращает nil при отмене ctx, ErrStoreUnavailable после серии ошибок хранилища,
// ErrBrowserUnavailable, если страницу не удаётся открыть.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	w.mu.Lock()
	w.cancel = cancel
	w.mu.Unlock()

	if err := w.resetPage(ctx); err != nil {
		return err
	}
	defer w.closePage()

	w.logger.Info("scrape worker started",
		"types", w.filter.Types,
		"city", w.filter.City,
		"goto_timeout", w.gotoTimeout,
	)

	poller := queue.NewPoller(queue.PollerConfig[domain.Task]{
		Name: "tasks",
		Claim: func(ctx context.Context, limit int) ([]domain.Task, error) {
			return w.tasks.Claim(ctx, w.id, w.filter, limit)
		},
		Handle: func(ctx context.Context, task domain.Task) error {
			return w.Process(ctx, &task)
		},
		Interval:         w.pollInterval,
		BatchSize:        w.batchSize,
		MaxStoreFailures: w.maxStoreFailures,
		Wake:             w.wake,
		Logger:           w.logger,
	})

	err := poller.Run(ctx)

	w.mu.Lock()
	fatal := w.fatal
	w.mu.Unlock()

	if fatal != nil {
		return fatal
	}
	if err != nil {
		return err
	}
	w.logger.Info("scrape worker stopped")
	return nil
}

// Process обрабатывает одну захваченную задачу и записывает finish.
// Возвращает ошибку только если finish не удался.
func (w *Worker) Process(ctx context.Context, task *domain.Task) error {
	logger := telemetry.WithTaskID(w.logger, task.ID.String()).With(
		"task_type", task.Type,
		"city", task.City,
		"attempt", task.Attempts,
	)

	res := w.handle(ctx, logger, task)

	// Остановка: задачу не завершаем, claim протухнет и её подберут.
	if ctx.Err() != nil {
		logger.Info("shutdown during task, leaving claim to expire")
		return nil
	}

	telemetry.TasksFinished.WithLabelValues(string(task.Type), res.Outcome.Label()).Inc()

	if err := w.tasks.Finish(ctx, task.ID, w.id, res.Outcome); err != nil {
		if errors.Is(err, queue.ErrNotOwner) {
			logger.Warn("claim lost before finish", "error", err)
			return nil
		}
		return fmt.Errorf("finish task %s: %w", task.ID, err)
	}

	logger.Info("task finished",
		"status", res.Outcome.Status,
		"reason", res.Outcome.Reason,
	)

	if res.ResetPage {
		if err := w.resetPage(ctx); err != nil {
			logger.Error("page reset failed", "error", err)
			return nil
		}
	}

	// Пауза между навигациями, независимо от исхода.
	_ = w.pacer.Wait(ctx)
	return nil
}

func (w *Worker) handle(ctx context.Context, logger *slog.Logger, task *domain.Task) Result {
	h, err := w.registry.Get(task.Type)
	if err != nil {
		logger.Error("no handler for task", "error", err)
		return Result{Outcome: domain.Failed(domain.ReasonBadRow)}
	}

	w.mu.Lock()
	page := w.page
	w.mu.Unlock()

	env := &Env{
		Page:        page,
		Pacer:       w.pacer,
		Evidence:    w.evidence,
		GotoTimeout: w.gotoTimeout,
		WaitTimeout: w.waitTimeout,
		Logger:      logger,
	}
	return h.Handle(ctx, env, task)
}

// resetPage закрывает текущую страницу и открывает новую.
// При неудаче останавливает воркер с ErrBrowserUnavailable.
func (w *Worker) resetPage(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.page != nil {
		_ = w.page.Close()
		w.page = nil
		telemetry.PageResets.Inc()
		w.logger.Info("page reset")
	}

	page, err := w.browser.NewPage(ctx)
	if err != nil {
		w.fatal = fmt.Errorf("%w: %v", ErrBrowserUnavailable, err)
		if w.cancel != nil {
			w.cancel()
		}
		return w.fatal
	}
	w.page = page
	return nil
}

func (w *Worker) closePage() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.page != nil {
		_ = w.page.Close()
		w.page = nil
	}
}

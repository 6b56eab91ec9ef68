package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Значения по умолчанию для Poller.
const (
	defaultPollInterval     = 5 * time.Second
	defaultBatchSize        = 10
	defaultMaxStoreFailures = 5
)

// ClaimFunc захватывает до limit элементов.
type ClaimFunc[T any] func(ctx context.Context, limit int) ([]T, error)

// HandleFunc обрабатывает один захваченный элемент.
//
// Ошибка выполнения самого элемента должна быть записана через finish внутри обработчика.
// Возвращаемая ошибка означает, что finish не удался (проблема хранилища).
type HandleFunc[T any] func(ctx context.Context, item T) error

// PollerConfig — конфигурация Poller.
type PollerConfig[T any] struct {
	// Name — имя очереди для логов.
	Name string

	Claim  ClaimFunc[T]
	Handle HandleFunc[T]

	// Interval — пауза, когда работы нет (default: 5s).
	Interval time.Duration

	// BatchSize — сколько элементов захватывать за раз (default: 10).
	BatchSize int

	// MaxStoreFailures — сколько ошибок хранилища подряд допустимо (default: 5).
	MaxStoreFailures int

	// Wake — сигнал о новой работе (например, из RabbitMQ); прерывает паузу.
	Wake <-chan struct{}

	Logger *slog.Logger
}

// Poller — однопоточный цикл claim → handle → idle sleep.
//
// Элементы батча обрабатываются последовательно. Ошибки отдельных элементов
// изолированы; только серия ошибок хранилища останавливает цикл.
type Poller[T any] struct {
	name             string
	claim            ClaimFunc[T]
	handle           HandleFunc[T]
	interval         time.Duration
	batchSize        int
	maxStoreFailures int
	wake             <-chan struct{}
	logger           *slog.Logger

	storeFailures int
}

// NewPoller создаёт Poller.
func NewPoller[T any](cfg PollerConfig[T]) *Poller[T] {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	maxFailures := cfg.MaxStoreFailures
	if maxFailures <= 0 {
		maxFailures = defaultMaxStoreFailures
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller[T]{
		name:             cfg.Name,
		claim:            cfg.Claim,
		handle:           cfg.Handle,
		interval:         interval,
		batchSize:        batchSize,
		maxStoreFailures: maxFailures,
		wake:             cfg.Wake,
		logger:           logger.With("queue", cfg.Name),
	}
}

// Run крутит цикл до отмены ctx или до ErrStoreUnavailable.
// При отмене ctx возвращает nil.
func (p *Poller[T]) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		n, err := p.Tick(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.storeFailures++
			p.logger.Warn("poll tick failed",
				"error", err,
				"consecutive_failures", p.storeFailures,
			)
			if p.storeFailures >= p.maxStoreFailures {
				return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, p.name, err)
			}
		} else {
			p.storeFailures = 0
		}

		// Батч был полным — сразу забираем следующий.
		if err == nil && n >= p.batchSize {
			continue
		}

		if !p.idle(ctx) {
			return nil
		}
	}
}

// Tick выполняет один цикл: claim + обработка. Возвращает число захваченных элементов.
func (p *Poller[T]) Tick(ctx context.Context) (int, error) {
	items, err := p.claim(ctx, p.batchSize)
	if err != nil {
		return 0, fmt.Errorf("claim: %w", err)
	}
	if len(items) == 0 {
		return 0, nil
	}

	p.logger.Debug("claimed items", "count", len(items))

	var errs []error
	for i := range items {
		if ctx.Err() != nil {
			break
		}
		if err := p.handle(ctx, items[i]); err != nil {
			errs = append(errs, err)
		}
	}

	// Все finish в батче упали — считаем это ошибкой хранилища.
	if len(errs) > 0 && len(errs) == len(items) {
		return len(items), errors.Join(errs...)
	}
	for _, err := range errs {
		p.logger.Error("finish failed", "error", err)
	}
	return len(items), nil
}

// idle ждёт interval или wake-сигнал. Возвращает false при отмене ctx.
func (p *Poller[T]) idle(ctx context.Context) bool {
	timer := time.NewTimer(p.interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	case <-p.wake:
		return true
	}
}

package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/shaiso/Prospector/internal/domain"
)

// Env — ресурсы воркера, доступные обработчику на время одной задачи.
type Env struct {
	Page     Page
	Pacer    *Pacer
	Evidence *Evidence

	GotoTimeout time.Duration
	WaitTimeout time.Duration

	Logger *slog.Logger
}

// Result — итог обработки задачи.
type Result struct {
	Outcome domain.Outcome

	// ResetPage — страница в неизвестном состоянии и должна быть пересоздана.
	ResetPage bool
}

// Handler обрабатывает задачи одного типа.
//
// Handler не возвращает error: любая проблема выражается через Outcome,
// который воркер записывает в finish.
type Handler interface {
	Handle(ctx context.Context, env *Env, task *domain.Task) Result
}

// HandlerFunc — адаптер функции к Handler.
type HandlerFunc func(ctx context.Context, env *Env, task *domain.Task) Result

func (f HandlerFunc) Handle(ctx context.Context, env *Env, task *domain.Task) Result {
	return f(ctx, env, task)
}

// Registry — реестр обработчиков по типу задачи.
//
// Новый тип задачи добавляется регистрацией, без изменения воркера.
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.TaskType]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[domain.TaskType]Handler)}
}

// Register регистрирует обработчик. Повторная регистрация перезаписывает.
func (r *Registry) Register(taskType domain.TaskType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[taskType] = h
}

// Get возвращает обработчик или ErrUnknownTaskType.
func (r *Registry) Get(taskType domain.TaskType) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return h, nil
}

// Types возвращает зарегистрированные типы.
func (r *Registry) Types() []domain.TaskType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.TaskType, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

package channels

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/Prospector/internal/domain"
)

// Sender отправляет одно касание через канал.
//
// Возвращает идентификатор сообщения у провайдера.
type Sender interface {
	Send(ctx context.Context, touch *domain.TouchRun, lead *domain.Lead) (string, error)
}

// SenderFunc — адаптер функции к Sender.
type SenderFunc func(ctx context.Context, touch *domain.TouchRun, lead *domain.Lead) (string, error)

func (f SenderFunc) Send(ctx context.Context, touch *domain.TouchRun, lead *domain.Lead) (string, error) {
	return f(ctx, touch, lead)
}

// Registry — реестр отправителей по каналу. Потокобезопасен.
type Registry struct {
	mu      sync.RWMutex
	senders map[domain.Channel]Sender
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{senders: make(map[domain.Channel]Sender)}
}

// Register регистрирует отправителя. Повторная регистрация перезаписывает.
func (r *Registry) Register(ch domain.Channel, s Sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.senders[ch] = s
}

// Get возвращает отправителя или ErrNoSender.
func (r *Registry) Get(ch domain.Channel) (Sender, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.senders[ch]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoSender, ch)
	}
	return s, nil
}

// Channels возвращает зарегистрированные каналы.
func (r *Registry) Channels() []domain.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Channel, 0, len(r.senders))
	for ch := range r.senders {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// payloadString извлекает строку из payload касания.
func payloadString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

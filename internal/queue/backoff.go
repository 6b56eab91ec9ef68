package queue

import "time"

// Значения по умолчанию для backoff доставки.
const (
	DefaultBackoffBase = 10 * time.Minute
	DefaultBackoffCap  = 6 * time.Hour
)

// Backoff — экспоненциальная задержка между попытками.
//
//	delay(n) = min(Cap, Base * 2^(n-1)), n >= 1
type Backoff struct {
	Base time.Duration
	Cap  time.Duration
}

// DefaultBackoff возвращает политику 10m / 6h.
func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBackoffBase, Cap: DefaultBackoffCap}
}

// Delay вычисляет задержку после attempts-й неудачной попытки.
// attempts < 1 трактуется как 1.
func (b Backoff) Delay(attempts int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoffBase
	}
	maxDelay := b.Cap
	if maxDelay <= 0 {
		maxDelay = DefaultBackoffCap
	}
	if base >= maxDelay {
		return maxDelay
	}

	delay := base
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= maxDelay {
			return maxDelay
		}
	}
	return delay
}

// Next возвращает время следующей попытки.
func (b Backoff) Next(now time.Time, attempts int) time.Time {
	return now.Add(b.Delay(attempts))
}

package scraper

import (
	"context"
	"math/rand/v2"
	"time"
)

// Pacer выдерживает случайную паузу между навигациями.
type Pacer struct {
	min, max time.Duration

	// randN возвращает число в [0, n). Подменяется в тестах.
	randN func(n int64) int64
}

// NewPacer создаёт Pacer с паузой в [min, max].
func NewPacer(min, max time.Duration) *Pacer {
	if max < min {
		max = min
	}
	return &Pacer{min: min, max: max, randN: rand.Int64N}
}

// Delay возвращает следующую паузу.
func (p *Pacer) Delay() time.Duration {
	if p == nil || p.max <= 0 {
		return 0
	}
	span := int64(p.max - p.min)
	if span <= 0 {
		return p.min
	}
	return p.min + time.Duration(p.randN(span+1))
}

// Wait спит Delay() или до отмены ctx.
func (p *Pacer) Wait(ctx context.Context) error {
	d := p.Delay()
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

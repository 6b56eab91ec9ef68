package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Prospector/internal/domain"
	"golang.org/x/time/rate"
)

// Значения по умолчанию для Poster.
const (
	defaultPostTimeout = 15 * time.Second

	// maxResponseText — сколько байт тела ответа сохраняется для аудита.
	maxResponseText = 2000
)

// PosterConfig — конфигурация Poster.
type PosterConfig struct {
	// URL — адрес CRM webhook.
	URL string

	// Timeout — таймаут одного запроса (default: 15s).
	Timeout time.Duration

	// RatePerSec — предел исходящих запросов в секунду. 0 — без ограничения.
	RatePerSec float64

	// Client — HTTP-клиент (опционально).
	Client *http.Client
}

// Poster отправляет payload в CRM webhook.
type Poster struct {
	url     string
	timeout time.Duration
	client  *http.Client
	limiter *rate.Limiter
}

// NewPoster создаёт Poster. Пустой URL — ErrNoWebhookURL.
func NewPoster(cfg PosterConfig) (*Poster, error) {
	if cfg.URL == "" {
		return nil, ErrNoWebhookURL
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultPostTimeout
	}

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSec > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}

	return &Poster{
		url:     cfg.URL,
		timeout: timeout,
		client:  client,
		limiter: limiter,
	}, nil
}

// Post отправляет payload. Сетевые ошибки и таймаут попадают в DeliveryResult.Err.
// Ошибка возвращается только при отмене ctx во время ожидания лимитера.
func (p *Poster) Post(ctx context.Context, d *domain.Delivery, payload map[string]any) (domain.DeliveryResult, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return domain.DeliveryResult{}, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return domain.DeliveryResult{Err: fmt.Errorf("%w: marshal payload: %v", ErrPost, err)}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return domain.DeliveryResult{Err: fmt.Errorf("%w: create request: %v", ErrPost, err)}, nil
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "prospector-delivery/1")
	req.Header.Set("X-Delivery-ID", d.ID.String())
	req.Header.Set("Idempotency-Key", d.ListingHash)

	resp, err := p.client.Do(req)
	if err != nil {
		return domain.DeliveryResult{Err: fmt.Errorf("%w: %v", ErrPost, err)}, nil
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseText))
	if err != nil {
		return domain.DeliveryResult{
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w: read response: %v", ErrPost, err),
		}, nil
	}
	// Дочитываем остаток, чтобы соединение вернулось в пул.
	_, _ = io.Copy(io.Discard, resp.Body)

	return domain.DeliveryResult{
		StatusCode: resp.StatusCode,
		Body:       string(respBody),
	}, nil
}

package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Prospector/internal/domain"
)

const defaultProviderTimeout = 15 * time.Second

// HTTPSender отправляет sms/whatsapp/voice касания через HTTP-шлюз провайдера.
//
// Запрос: POST {url} с JSON
//
//	{"channel": "sms", "to": "+15125550142", "body": "...", "touch_id": "...", "lead_id": "..."}
//
// Ответ 2xx с JSON {"id": "..."} — идентификатор сообщения у провайдера.
type HTTPSender struct {
	url    string
	token  string
	client *http.Client
}

// NewHTTPSender создаёт HTTPSender.
func NewHTTPSender(url, token string, client *http.Client) *HTTPSender {
	if client == nil {
		client = &http.Client{Timeout: defaultProviderTimeout}
	}
	return &HTTPSender{url: url, token: token, client: client}
}

type providerRequest struct {
	Channel domain.Channel `json:"channel"`
	To      string         `json:"to"`
	Body    string         `json:"body"`
	TouchID string         `json:"touch_id"`
	LeadID  string         `json:"lead_id"`
}

type providerResponse struct {
	ID string `json:"id"`
}

func (s *HTTPSender) Send(ctx context.Context, touch *domain.TouchRun, lead *domain.Lead) (string, error) {
	if !lead.HasPhone() {
		return "", fmt.Errorf("%w: phone", ErrNoRecipient)
	}

	body, err := json.Marshal(providerRequest{
		Channel: touch.Channel,
		To:      lead.Phone,
		Body:    payloadString(touch.Payload, "body"),
		TouchID: touch.ID.String(),
		LeadID:  lead.ID.String(),
	})
	if err != nil {
		return "", fmt.Errorf("marshal provider request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", touch.ID.String())
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: HTTP %d: %s", ErrProvider, resp.StatusCode, string(respBody))
	}

	var out providerResponse
	if err := json.Unmarshal(respBody, &out); err != nil || out.ID == "" {
		return "", fmt.Errorf("%w: response without message id", ErrProvider)
	}
	return out.ID, nil
}

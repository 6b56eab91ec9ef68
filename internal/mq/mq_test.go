package mq

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestWakeHandler_NonBlocking(t *testing.T) {
	wake := make(chan struct{}, 1)
	h := WakeHandler(wake)

	for i := 0; i < 3; i++ {
		if err := h(context.Background(), &Delivery{}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if len(wake) != 1 {
		t.Errorf("expected one pending signal, got %d", len(wake))
	}
}

func TestParsePayload(t *testing.T) {
	accountID := uuid.New()
	msg := &Message{
		ID:        "m1",
		Type:      MessageTypeTaskReady,
		Payload:   map[string]any{"account_id": accountID.String(), "city": "austin", "count": 3},
		Timestamp: time.Now(),
	}

	p, err := ParsePayload[WakePayload](msg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.AccountID != accountID || p.City != "austin" || p.Count != 3 {
		t.Errorf("unexpected payload: %+v", p)
	}
}

func TestPublisher_NilIsNoop(t *testing.T) {
	var p *Publisher
	if err := p.PublishTaskReady(context.Background(), WakePayload{Count: 1}); err != nil {
		t.Errorf("nil publisher should be a no-op, got %v", err)
	}
}

package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Prospector/internal/domain"
)

// MessageType — тип сообщения.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTaskReady       MessageType = "task.ready"
	MessageTypeDeliveryReady   MessageType = "delivery.ready"
	MessageTypeTouchReady      MessageType = "touch.ready"
	MessageTypeLeadInterrupted MessageType = "lead.interrupted"
)

// Message — конверт сообщения.
type Message struct {
	ID        string      `json:"id"`
	Type      MessageType `json:"type"`
	Payload   any         `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

// WakePayload — сигнал о новой работе. Содержимое информационное:
// воркер всё равно захватывает работу через claim.
type WakePayload struct {
	AccountID uuid.UUID `json:"account_id"`
	City      string    `json:"city,omitempty"`
	Count     int       `json:"count"`
}

// LeadInterruptedPayload — аудит-событие interrupt'а.
type LeadInterruptedPayload struct {
	AccountID uuid.UUID        `json:"account_id"`
	LeadID    uuid.UUID        `json:"lead_id"`
	EventID   string           `json:"event_id"`
	Kind      domain.EventKind `json:"kind"`
	State     domain.LeadState `json:"state"`
	Canceled  int64            `json:"canceled"`
	Deduped   bool             `json:"deduped"`
}

// Publisher публикует сообщения в RabbitMQ.
//
// nil *Publisher допустим: все методы становятся no-op (режим без брокера).
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{conn: conn, logger: logger}
}

// Publish публикует сообщение в exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	if p == nil || p.conn == nil {
		return nil
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),
			string(routingKey),
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msg.ID,
				Type:         string(msg.Type),
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)
		return nil
	})
}

func (p *Publisher) publishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	return p.Publish(ctx, exchange, routingKey, &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// PublishTaskReady будит scrape-воркеры. Потребитель: scraper.
func (p *Publisher) PublishTaskReady(ctx context.Context, payload WakePayload) error {
	return p.publishJSON(ctx, ExchangeWork, RoutingKeyTaskReady, MessageTypeTaskReady, payload)
}

// PublishDeliveryReady будит delivery-воркер. Потребитель: dispatcher.
func (p *Publisher) PublishDeliveryReady(ctx context.Context, payload WakePayload) error {
	return p.publishJSON(ctx, ExchangeWork, RoutingKeyDeliveryReady, MessageTypeDeliveryReady, payload)
}

// PublishTouchReady будит dispatcher касаний.
func (p *Publisher) PublishTouchReady(ctx context.Context, payload WakePayload) error {
	return p.publishJSON(ctx, ExchangeWork, RoutingKeyTouchReady, MessageTypeTouchReady, payload)
}

// PublishLeadInterrupted публикует аудит interrupt'а.
func (p *Publisher) PublishLeadInterrupted(ctx context.Context, payload LeadInterruptedPayload) error {
	return p.publishJSON(ctx, ExchangeLeads, RoutingKeyLeadInterrupted, MessageTypeLeadInterrupted, payload)
}

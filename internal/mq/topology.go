package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges.
const (
	ExchangeWork  Exchange = "prospector.work"
	ExchangeLeads Exchange = "prospector.leads"
	ExchangeDLQ   Exchange = "prospector.dlq"
)

// Queues.
const (
	QueueTasksReady       Queue = "tasks.ready"
	QueueDeliveriesReady  Queue = "deliveries.ready"
	QueueTouchesReady     Queue = "touches.ready"
	QueueLeadsInterrupted Queue = "leads.interrupted"
	QueueDLQ              Queue = "dlq.events"
)

// Routing keys.
const (
	RoutingKeyTaskReady       RoutingKey = "task.ready"
	RoutingKeyDeliveryReady   RoutingKey = "delivery.ready"
	RoutingKeyTouchReady      RoutingKey = "touch.ready"
	RoutingKeyLeadInterrupted RoutingKey = "lead.interrupted"
	RoutingKeyDLQ             RoutingKey = "dead"
)

// wakeTTL — wake-up сообщения бессмысленны после этого срока: polling всё равно их догонит.
const wakeTTLMillis = 60_000

// SetupTopology объявляет exchanges, queues и bindings. Идемпотентно.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeWork, "direct"},
		{ExchangeLeads, "topic"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}
	return nil
}

func declareQueues(ch *amqp.Channel) error {
	wakeArgs := amqp.Table{
		"x-message-ttl": int32(wakeTTLMillis),
		"x-max-length":  int32(1000),
		"x-overflow":    "drop-head",
	}
	auditArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// wake-up очереди: потеря сообщения не страшна, их догоняет polling
		{QueueTasksReady, wakeArgs},
		{QueueDeliveriesReady, wakeArgs},
		{QueueTouchesReady, wakeArgs},

		// аудит interrupt'ов для внешних потребителей (CRM sync)
		{QueueLeadsInterrupted, auditArgs},

		{QueueDLQ, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueTasksReady, RoutingKeyTaskReady, ExchangeWork},
		{QueueDeliveriesReady, RoutingKeyDeliveryReady, ExchangeWork},
		{QueueTouchesReady, RoutingKeyTouchReady, ExchangeWork},
		{QueueLeadsInterrupted, "lead.#", ExchangeLeads},
		{QueueDLQ, RoutingKeyDLQ, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Prospector RabbitMQ Topology:

    prospector.work (direct)
    ├── tasks.ready      [task.ready]      → scraper (wake-up)
    ├── deliveries.ready [delivery.ready]  → dispatcher (wake-up)
    └── touches.ready    [touch.ready]     → dispatcher (wake-up)

    prospector.leads (topic)
    └── leads.interrupted [lead.#]         → external consumers, DLQ: dlq.events

    prospector.dlq (direct)
    └── dlq.events [dead]
  `
}

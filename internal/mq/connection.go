package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	heartbeat         = 10 * time.Second
	maxReconnectDelay = 30 * time.Second
)

// Connection — AMQP соединение с автоматическим reconnect.
//
// Брокер для Prospector необязателен: он только ускоряет пробуждение воркеров.
// Если соединение упало, воркеры продолжают работать на polling.
type Connection struct {
	url    string
	name   string
	logger *slog.Logger

	mu      sync.RWMutex
	conn    *amqp.Connection
	channel *amqp.Channel

	closed   bool
	closedCh chan struct{}

	reconnectCh chan struct{}
}

// NewConnection подключается к RabbitMQ.
// name видно в management UI как connection_name.
func NewConnection(url, name string, logger *slog.Logger) (*Connection, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Connection{
		url:         url,
		name:        name,
		logger:      logger.With("component", "mq"),
		closedCh:    make(chan struct{}),
		reconnectCh: make(chan struct{}, 1),
	}

	if err := c.connect(); err != nil {
		return nil, err
	}

	go c.watchConnection()

	return c, nil
}

func (c *Connection) connect() error {
	conn, err := amqp.DialConfig(c.url, amqp.Config{
		Heartbeat:  heartbeat,
		Properties: amqp.Table{"connection_name": c.name},
	})
	if err != nil {
		return fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.channel = ch
	c.mu.Unlock()

	c.logger.Info("connected to RabbitMQ", "name", c.name)
	return nil
}

// watchConnection ждёт разрыва и переподключается.
func (c *Connection) watchConnection() {
	for {
		c.mu.RLock()
		if c.closed {
			c.mu.RUnlock()
			return
		}
		conn := c.conn
		c.mu.RUnlock()

		notifyClose := conn.NotifyClose(make(chan *amqp.Error, 1))

		select {
		case <-c.closedCh:
			return
		case err := <-notifyClose:
			if err != nil {
				c.logger.Warn("connection closed", "error", err)
			}
			if !c.reconnect() {
				return
			}
		}
	}
}

// reconnect переподключается с экспоненциальной задержкой.
// Возвращает false, если соединение закрыто через Close.
func (c *Connection) reconnect() bool {
	delay := time.Second

	for {
		select {
		case <-c.closedCh:
			return false
		case <-time.After(delay):
		}

		if err := c.connect(); err != nil {
			c.logger.Warn("reconnect failed", "error", err, "next_delay", delay)
			delay = min(delay*2, maxReconnectDelay)
			continue
		}

		select {
		case c.reconnectCh <- struct{}{}:
		default:
		}
		return true
	}
}

// Channel возвращает текущий AMQP канал.
func (c *Connection) Channel() *amqp.Channel {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.channel
}

// ReconnectNotify возвращает канал уведомлений о переподключении.
func (c *Connection) ReconnectNotify() <-chan struct{} {
	return c.reconnectCh
}

// Close закрывает соединение. Повторный вызов — no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.closedCh)

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, amqp.ErrClosed) {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// IsConnected проверяет, установлено ли соединение.
func (c *Connection) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn != nil && !c.conn.IsClosed()
}

// WithChannel выполняет функцию с текущим каналом.
func (c *Connection) WithChannel(ctx context.Context, fn func(ch *amqp.Channel) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	ch := c.channel
	c.mu.RUnlock()

	if ch == nil || ch.IsClosed() {
		return ErrNoChannel
	}
	return fn(ch)
}

// ErrNoChannel — AMQP канал недоступен (нет соединения).
var ErrNoChannel = errors.New("no amqp channel available")

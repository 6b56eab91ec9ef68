package scheduler

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LockKey — ключ pg advisory lock лидера планировщика.
const LockKey int64 = 7351042

// Leader — лидерство через pg_try_advisory_lock на выделенном соединении.
//
// Advisory lock сессионный, поэтому соединение держится, пока процесс лидер.
// Потеря соединения означает потерю лидерства.
type Leader struct {
	pool   *pgxpool.Pool
	key    int64
	conn   *pgxpool.Conn
	logger *slog.Logger
}

// NewLeader создаёт Leader.
func NewLeader(pool *pgxpool.Pool, key int64, logger *slog.Logger) *Leader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Leader{pool: pool, key: key, logger: logger}
}

// TryAcquire пытается стать (или подтверждает, что остаётся) лидером.
func (l *Leader) TryAcquire(ctx context.Context) bool {
	if l.conn != nil {
		if err := l.conn.Ping(ctx); err == nil {
			return true
		}
		l.logger.Warn("leader connection lost")
		l.conn.Release()
		l.conn = nil
	}

	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		l.logger.Error("acquire connection for leader lock", "error", err)
		return false
	}

	var ok bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		l.logger.Error("leader lock query", "error", err)
		conn.Release()
		return false
	}
	if !ok {
		conn.Release()
		return false
	}

	l.conn = conn
	l.logger.Info("leadership acquired", "lock_key", l.key)
	return true
}

// Release отпускает лидерство.
func (l *Leader) Release(ctx context.Context) {
	if l.conn == nil {
		return
	}
	var unlocked bool
	if err := l.conn.QueryRow(ctx, "SELECT pg_advisory_unlock($1)", l.key).Scan(&unlocked); err != nil {
		l.logger.Warn("leader unlock failed", "error", err)
	}
	l.conn.Release()
	l.conn = nil
	l.logger.Info("leadership released")
}

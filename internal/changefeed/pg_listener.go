package changefeed

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel is the PostgreSQL channel the row-change trigger notifies on.
const NotifyChannel = "erp_changes"

const (
	minReconnectDelay = time.Second
	maxReconnectDelay = 30 * time.Second
)

// PGListener republishes PostgreSQL NOTIFY payloads to a Publisher.
type PGListener struct {
	pool   *pgxpool.Pool
	pub    Publisher
	logger *zap.Logger
}

// NewPGListener creates a listener that forwards erp_changes notifications to pub.
func NewPGListener(pool *pgxpool.Pool, pub Publisher, logger *zap.Logger) *PGListener {
	return &PGListener{pool: pool, pub: pub, logger: logger}
}

// Run listens until ctx is done, reconnecting after connection loss.
func (l *PGListener) Run(ctx context.Context) {
	delay := minReconnectDelay
	for {
		connected, err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			delay = minReconnectDelay
		}
		l.logger.Warn("change listener disconnected", zap.Error(err), zap.Duration("retry_in", delay))
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
	}
}

func (l *PGListener) listen(ctx context.Context) (bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire listen connection: %w", err)
	}
	defer func() {
		if !conn.Conn().IsClosed() {
			_, _ = conn.Exec(context.Background(), "UNLISTEN *")
		}
		conn.Release()
	}()

	if _, err := conn.Exec(ctx, "LISTEN "+NotifyChannel); err != nil {
		return false, fmt.Errorf("listen %s: %w", NotifyChannel, err)
	}
	l.logger.Info("listening for row changes", zap.String("channel", NotifyChannel))

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return true, err
		}
		l.dispatch(ctx, n.Payload)
	}
}

func (l *PGListener) dispatch(ctx context.Context, payload string) {
	ev, err := ParseEvent([]byte(payload))
	if err != nil {
		l.logger.Warn("ignoring malformed notification", zap.String("payload", payload), zap.Error(err))
		return
	}
	if err := l.pub.Publish(ctx, ev); err != nil {
		l.logger.Error("republish change event", zap.String("table", ev.Table), zap.Error(err))
	}
}

// Package refresh keeps the correlation cache honest: it listens for the
// database change notifications written by the schema triggers and drops the
// cached result once a burst of writes has settled.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Invalidator drops the cached correlation result.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Conn is the part of *pgx.Conn the listener uses.
type Conn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	WaitForNotification(ctx context.Context) (*pgconn.Notification, error)
	Close(ctx context.Context) error
}

// Dialer opens a dedicated connection for LISTEN.
type Dialer func(ctx context.Context) (Conn, error)

// PgxDialer connects with pgx to dsn.
func PgxDialer(dsn string) Dialer {
	return func(ctx context.Context) (Conn, error) {
		conn, err := pgx.Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// Listener turns change notifications into cache invalidations. Notifications
// arriving within the debounce window of each other cause one invalidation.
type Listener struct {
	dial        Dialer
	channel     string
	debounce    time.Duration
	maxBackoff  time.Duration
	invalidator Invalidator
	logger      *slog.Logger
}

type Option func(*Listener)

func WithDebounce(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.debounce = d
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Listener) {
		l.logger = logger
	}
}

// WithMaxBackoff caps the delay between reconnect attempts.
func WithMaxBackoff(d time.Duration) Option {
	return func(l *Listener) {
		if d > 0 {
			l.maxBackoff = d
		}
	}
}

func New(dial Dialer, channel string, invalidator Invalidator, opts ...Option) *Listener {
	l := &Listener{
		dial:        dial,
		channel:     channel,
		debounce:    500 * time.Millisecond,
		maxBackoff:  30 * time.Second,
		invalidator: invalidator,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run listens until ctx is done, reconnecting with exponential backoff when
// the connection drops. Every (re)connect invalidates once, since
// notifications sent while disconnected are lost.
func (l *Listener) Run(ctx context.Context) error {
	backoff := 100 * time.Millisecond
	for {
		err := l.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		l.logger.WarnContext(ctx, "change listener disconnected",
			"channel", l.channel,
			"retry_in", backoff.String(),
			"error", err,
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, l.maxBackoff)
	}
}

// session runs one connection's lifetime.
func (l *Listener) session(ctx context.Context) error {
	conn, err := l.dial(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.WithoutCancel(ctx))

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	l.logger.InfoContext(ctx, "change listener connected", "channel", l.channel)
	l.invalidate(ctx)

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	notes := make(chan struct{}, 1)
	errs := make(chan error, 1)
	go func() {
		for {
			n, err := conn.WaitForNotification(sessionCtx)
			if err != nil {
				errs <- err
				return
			}
			if n.Channel != l.channel {
				continue
			}
			select {
			case notes <- struct{}{}:
			default:
			}
		}
	}()

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("wait for notification: %w", err)
		case <-notes:
			if timer == nil {
				timer = time.NewTimer(l.debounce)
			} else {
				timer.Reset(l.debounce)
			}
			timerCh = timer.C
		case <-timerCh:
			timerCh = nil
			l.invalidate(ctx)
		}
	}
}

func (l *Listener) invalidate(ctx context.Context) {
	if err := l.invalidator.Invalidate(ctx); err != nil {
		l.logger.WarnContext(ctx, "cache invalidation failed", "channel", l.channel, "error", err)
	}
}

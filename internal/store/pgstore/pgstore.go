// Package pgstore is the PostgreSQL Record Store.
//
// Answers and event payloads are JSONB. Table triggers publish every write
// on the tally_changes channel; a background LISTEN connection turns those
// notifications into subscription refreshes, so writes from any process
// reach every live feed without waiting for the poll interval.
package pgstore

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/roach88/tally/internal/clock"
	"github.com/roach88/tally/internal/idgen"
	"github.com/roach88/tally/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const (
	notifyChannel       = "tally_changes"
	defaultPollInterval = 30 * time.Second
	relistenDelay       = time.Second
)

// Store is a store.RecordStore on a pgx connection pool.
type Store struct {
	pool     *pgxpool.Pool
	clock    clock.Clock
	ids      idgen.Generator
	notifier *store.Notifier
	poll     time.Duration
	logger   *slog.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

var _ store.RecordStore = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for server-assigned timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithIDGenerator sets the generator for submission ids.
func WithIDGenerator(g idgen.Generator) Option {
	return func(s *Store) { s.ids = g }
}

// WithPollInterval sets the fallback subscription poll interval.
func WithPollInterval(d time.Duration) Option {
	return func(s *Store) { s.poll = d }
}

// WithLogger sets the logger for listener and subscription errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Open connects to dsn, applies the schema and starts the change listener.
func Open(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open pool: %w", err)
	}
	s, err := New(ctx, pool, opts...)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing pool. The Store takes ownership: Close closes the
// pool.
func New(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	s := &Store{
		pool:     pool,
		clock:    clock.Real{},
		ids:      idgen.UUIDv7{},
		notifier: store.NewNotifier(),
		poll:     defaultPollInterval,
		logger:   slog.Default(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	listenCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.listen(listenCtx)

	return s, nil
}

// Close stops the listener and closes the pool.
func (s *Store) Close() error {
	s.cancel()
	<-s.done
	s.pool.Close()
	return nil
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return &store.StorageError{Op: "ping", Err: err}
	}
	return nil
}

// listen holds one pooled connection in LISTEN and reconnects after
// failures until ctx ends.
func (s *Store) listen(ctx context.Context) {
	defer close(s.done)
	for {
		err := s.listenOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		s.logger.Warn("change listener failed, reconnecting", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(relistenDelay):
		}
	}
}

func (s *Store) listenOnce(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	for {
		n, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}
		s.notifier.Notify(n.Payload)
	}
}

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &store.StorageError{Op: op, Err: err}
}

func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

//go:embed schema.sql
var schemaSQL string

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgUniqueViolation      = "23505"
)

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store on top of a pgx connection pool
type PostgresStore struct {
	pool       *pgxpool.Pool
	maxRetries int
	backoff    time.Duration
}

// NewPostgresStore creates a store that retries conflicting transactions up to maxRetries times
func NewPostgresStore(pool *pgxpool.Pool, maxRetries int) *PostgresStore {
	if maxRetries < 1 {
		maxRetries = 1
	}
	return &PostgresStore{
		pool:       pool,
		maxRetries: maxRetries,
		backoff:    20 * time.Millisecond,
	}
}

// Migrate applies the embedded schema
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// View runs fn directly against the pool
func (s *PostgresStore) View(ctx context.Context, fn func(q Querier) error) error {
	return fn(newPgQuerier(s.pool))
}

// InTx runs fn inside a serializable transaction, retrying the whole
// function on serialization failures and deadlocks.
func (s *PostgresStore) InTx(ctx context.Context, fn func(q Querier) error) error {
	delay := s.backoff
	for attempt := 1; ; attempt++ {
		err := s.runTx(ctx, fn)
		if err == nil || !isRetryable(err) {
			return err
		}

		if attempt >= s.maxRetries {
			log.Warn().Err(err).Int("attempts", attempt).Msg("Transaction retries exhausted")
			return fmt.Errorf("%w: %v", ErrTxRetriesExhausted, err)
		}

		log.Debug().Err(err).Int("attempt", attempt).Msg("Retrying conflicting transaction")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (s *PostgresStore) runTx(ctx context.Context, fn func(q Querier) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction")
			}
		}
	}()

	if err := fn(newPgQuerier(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

// isRetryable reports whether err is a transient conflict worth retrying
func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgSerializationFailure || pgErr.Code == pgDeadlockDetected
}

// mapWriteError translates a unique violation into ErrDuplicate
func mapWriteError(err error, action string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return fmt.Errorf("failed to %s: %w", action, ErrDuplicate)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// notFound translates pgx.ErrNoRows into ErrNotFound
func notFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

// pgQuerier bundles the per-table repositories over one DBTX
type pgQuerier struct {
	*UserRepository
	*ProfileRepository
	*EventRepository
	*QueueRepository
	*MessageRepository
	*RatingRepository
	*NotificationRepository
}

func newPgQuerier(db DBTX) *pgQuerier {
	return &pgQuerier{
		UserRepository:         NewUserRepository(db),
		ProfileRepository:      NewProfileRepository(db),
		EventRepository:        NewEventRepository(db),
		QueueRepository:        NewQueueRepository(db),
		MessageRepository:      NewMessageRepository(db),
		RatingRepository:       NewRatingRepository(db),
		NotificationRepository: NewNotificationRepository(db),
	}
}

var _ Querier = (*pgQuerier)(nil)
var _ Store = (*PostgresStore)(nil)

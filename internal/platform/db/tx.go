package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type contextKey string

const DBTxKey contextKey = "db_tx"

// SQLSTATE codes the runner treats specially.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
)

// TxFromContext returns the transaction bound to ctx, if any.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}

// ContextWithTx binds tx to ctx so repositories pick it up.
func ContextWithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, DBTxKey, tx)
}

// IsRetryable reports whether err is a transient conflict the store resolved
// by aborting the transaction.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected
	}
	return false
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

// IsConstraintViolation reports whether err came from a foreign key or check
// constraint.
func IsConstraintViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeForeignKeyViolation || pgErr.Code == codeCheckViolation
	}
	return false
}

// RunnerConfig tunes transaction retries.
type RunnerConfig struct {
	MaxAttempts int
	Backoff     time.Duration
	IsoLevel    pgx.TxIsoLevel
}

func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		MaxAttempts: 3,
		Backoff:     20 * time.Millisecond,
		IsoLevel:    pgx.ReadCommitted,
	}
}

// Runner executes functions inside a single database transaction.
type Runner struct {
	pool   *pgxpool.Pool
	cfg    RunnerConfig
	logger zerolog.Logger
}

func NewRunner(pool *pgxpool.Pool, cfg RunnerConfig, logger zerolog.Logger) *Runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}
	return &Runner{pool: pool, cfg: cfg, logger: logger}
}

// WithinTx runs fn in a transaction and commits if it returns nil. When ctx
// already carries a transaction fn joins it and the outer caller commits.
// Serialization failures and deadlocks are retried up to MaxAttempts times.
func (r *Runner) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}

	var err error
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		err = r.runOnce(ctx, fn)
		if err == nil || !IsRetryable(err) {
			return err
		}
		r.logger.Warn().Err(err).Int("attempt", attempt).Msg("transaction aborted by store, retrying")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * r.cfg.Backoff):
		}
	}
	return fmt.Errorf("transaction failed after %d attempts: %w", r.cfg.MaxAttempts, err)
}

func (r *Runner) runOnce(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: r.cfg.IsoLevel})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(ContextWithTx(ctx, tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

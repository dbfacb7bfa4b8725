// Package store is the Postgres persistence layer of herald-api.
// Each entity has a repository interface implemented by PostgresStore.
package store

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rafaeljc/herald/internal/validation"
)

var (
	// ErrNotFound is returned when the addressed row does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned on unique or foreign key violations.
	ErrConflict = errors.New("conflict")
)

// Postgres error codes.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Store groups every repository.
type Store interface {
	AppRepository
	NotificationRepository
	SegmentRepository
	UserRepository
	SessionRepository
	AnalyticsRepository
}

var (
	_ Store                  = (*PostgresStore)(nil)
	_ AppRepository          = (*PostgresStore)(nil)
	_ NotificationRepository = (*PostgresStore)(nil)
	_ SegmentRepository      = (*PostgresStore)(nil)
	_ UserRepository         = (*PostgresStore)(nil)
	_ SessionRepository      = (*PostgresStore)(nil)
	_ AnalyticsRepository    = (*PostgresStore)(nil)
)

// PostgresStore implements every repository on a pgx pool.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore returns a store on db. It panics if db is nil.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	validation.AssertNotNil(db, "store: database pool")
	return &PostgresStore{db: db}
}

// Ping checks connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

func newID() string {
	return uuid.NewString()
}

// NewAPIKey returns a fresh SDK key: "lnk_" followed by 32 hex characters.
func NewAPIKey() string {
	return "lnk_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// mapError translates driver errors into the package sentinels.
func mapError(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation, pgForeignKeyViolation:
			return fmt.Errorf("%s: %w: %s", what, ErrConflict, pgErr.Detail)
		}
	}
	return fmt.Errorf("%s: %w", what, err)
}

// jsonArg binds empty maps and slices as SQL NULL.
func jsonArg(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Map, reflect.Slice:
		if rv.Len() == 0 {
			return nil
		}
	case reflect.Invalid:
		return nil
	}
	return v
}

// inTx runs fn in a transaction, committing on nil and rolling back otherwise.
func (s *PostgresStore) inTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	// Rollback after Commit is a no-op.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

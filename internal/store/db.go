package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

var (
	// ErrInvalidRecord is returned when a record fails field-level constraints before reaching the database.
	ErrInvalidRecord = errors.New("invalid record")
	// ErrForeignKey is returned when a referenced row does not exist.
	ErrForeignKey = errors.New("referenced record does not exist")
	// ErrConflict is returned on unique constraint violations.
	ErrConflict = errors.New("record already exists")
)

// CommentParentForeignKey is the constraint guarding comments.parent_comment_id.
const CommentParentForeignKey = "comments_parent_comment_id_fkey"

// ForeignKeyError names the foreign key a write violated. It matches ErrForeignKey.
type ForeignKeyError struct {
	Op         string
	Constraint string
}

func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf("%s: %v (%s)", e.Op, ErrForeignKey, e.Constraint)
}

func (e *ForeignKeyError) Is(target error) bool {
	return target == ErrForeignKey
}

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
	pgCheckViolation      = "23514"
)

func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(20)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Reset removes all application rows. Used by the seeder.
func (s *PostgresStore) Reset(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `TRUNCATE comments, journals, refresh_sessions, revoked_access_tokens, users`)
	if err != nil {
		return fmt.Errorf("reset data: %w", err)
	}
	return nil
}

// translateError maps Postgres constraint failures onto the package sentinels.
func translateError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return &ForeignKeyError{Op: op, Constraint: pgErr.ConstraintName}
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrConflict, pgErr.ConstraintName)
		case pgCheckViolation:
			return fmt.Errorf("%s: %w (%s)", op, ErrInvalidRecord, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Package dbtx defines the minimal database handle interface shared by every
// store in the module. It is satisfied by *pgxpool.Pool, pgx.Tx, and
// *pgxpool.Conn alike, so stores can run either directly against the pool or
// inside a transaction without changing their signatures — the same pattern
// the teacher's Store types use via their own DBTX interface.
package dbtx

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is implemented by *pgxpool.Pool, pgx.Tx, and *pgxpool.Conn.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Begin is implemented by anything that can start a transaction, i.e.
// *pgxpool.Pool and *pgxpool.Conn.
type Begin interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// IsUniqueViolation reports whether err is a Postgres unique_violation (23505).
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// Package db provides the generic data-access layer of the DeliciousFood
// server: request-scoped units of work over a single SQL database, a
// transaction orchestrator that flattens nested scopes into the outermost one,
// lazy filterable queries, and generic entity repositories with optional
// parent (tenant) scoping.
//
// Every entity type is described to this package once, by a Binding, and all
// CRUD behavior is derived from it. No reflection is used; bindings carry
// explicit scan and argument functions.
package db

import (
	"context"
	"database/sql"
	"strings"
)

// Entity is anything with an integer identity. It is implemented by pointers
// to the concrete model structs so that a repository can assign the generated
// id after an insert.
type Entity interface {
	// EntityID returns the entity's id. Zero means the entity has not been
	// persisted yet.
	EntityID() int

	// SetEntityID sets the entity's id. It is called by the repository after
	// a successful insert.
	SetEntityID(id int)
}

// RowScanner is the subset of *sql.Row and *sql.Rows that a Binding's Scan
// function needs.
type RowScanner interface {
	Scan(dest ...any) error
}

// Binding describes one entity type to the generic layer. It is constructed
// once per entity and handed to NewEntityRepository; everything the repository
// and query layer do is derived from it.
type Binding[T Entity] struct {
	// Name is the entity's display name, used in errors ("Food", "User").
	Name string

	// Table is the SQL table the entity is persisted in.
	Table string

	// Columns are the data columns of Table in a fixed order, excluding the
	// id column.
	Columns []string

	// Fields maps filter-expression field names (lowercase) to columns.
	// Fields not listed here cannot be referenced from a filter expression.
	Fields map[string]string

	// New allocates a zero-valued entity.
	New func() T

	// Scan reads one row in the order (id, Columns...) into a new entity.
	Scan func(row RowScanner) (T, error)

	// Args returns the entity's values in Columns order, for inserts and
	// updates.
	Args func(t T) []any
}

// Store is the shared handle to the underlying database. All repositories
// created from one Store operate against the same connection pool, so a unit
// of work begun on it covers their combined writes.
type Store struct {
	DB *sql.DB
}

// NewStore creates a Store over the given database handle.
func NewStore(sqlDB *sql.DB) *Store {
	return &Store{DB: sqlDB}
}

type storageKey struct{}

// WithStorage returns a copy of ctx carrying the given unit-of-work storage
// slot. The transaction-per-request middleware installs a fresh slot for each
// inbound request; the slot is owned by that request's call chain and is not
// safe to share across concurrently-scheduled work.
func WithStorage(ctx context.Context, s *Storage) context.Context {
	return context.WithValue(ctx, storageKey{}, s)
}

// StorageFrom returns the unit-of-work storage slot carried by ctx, or nil if
// none has been installed.
func StorageFrom(ctx context.Context) *Storage {
	s, _ := ctx.Value(storageKey{}).(*Storage)
	return s
}

// currentTx returns the transaction of the active unit of work in ctx, or nil
// if there is no storage slot or no open unit of work.
func currentTx(ctx context.Context) *sql.Tx {
	s := StorageFrom(ctx)
	if s == nil {
		return nil
	}
	u := s.Current()
	if u == nil {
		return nil
	}
	return u.Tx()
}

// querier is satisfied by both *sql.Tx and *sql.DB.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// selectClause builds the shared SELECT list for a binding, in the order that
// Binding.Scan expects.
func selectClause[T Entity](b Binding[T]) string {
	return "SELECT id, " + strings.Join(b.Columns, ", ") + " FROM " + b.Table
}

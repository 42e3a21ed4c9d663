package db

import (
	"context"
	"database/sql"
)

// DefaultIsolation is the isolation level top-most transactions are begun at
// when the caller does not pick one. The engine default is used; SQLite
// serializes transactions regardless, which is at least as strict as the
// read-committed level the service layer assumes.
const DefaultIsolation = sql.LevelDefault

// DataAccessProvider runs operations inside a transaction. A call made while
// no unit of work is active is "top-most": it opens a unit of work, runs the
// operation, and commits on success, releasing the unit of work on every exit
// path (an error from the operation skips the commit and the release rolls
// back). A call made while a unit of work is already active is "nested": the
// operation joins the ambient transaction, and the call neither commits nor
// rolls back. Nested scopes are thereby flattened into the outermost one;
// there is no savepoint nesting.
type DataAccessProvider struct {
	factory *Factory
}

// NewDataAccessProvider creates a provider that begins its transactions on
// the given database handle.
func NewDataAccessProvider(sqlDB *sql.DB) *DataAccessProvider {
	return &DataAccessProvider{factory: NewFactory(sqlDB)}
}

// Run executes fn inside a transaction at the default isolation level. Errors
// from fn propagate unchanged after the unit of work has been released.
func (p *DataAccessProvider) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return p.RunLevel(ctx, DefaultIsolation, fn)
}

// RunLevel is Run at an explicit isolation level.
func (p *DataAccessProvider) RunLevel(ctx context.Context, level sql.IsolationLevel, fn func(ctx context.Context) error) (err error) {
	storage := StorageFrom(ctx)
	if storage != nil && storage.Current() != nil {
		// nested call; join the ambient transaction.
		return fn(ctx)
	}

	u, err := p.factory.New(ctx, level)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := u.Close()
		if err == nil {
			err = closeErr
		}
	}()

	if err = fn(ctx); err != nil {
		return err
	}
	return u.Commit()
}

// RunResult executes fn inside a transaction at the default isolation level
// and returns its result. It exists as a free function because Go methods
// cannot introduce type parameters.
func RunResult[T any](ctx context.Context, p *DataAccessProvider, fn func(ctx context.Context) (T, error)) (T, error) {
	return RunResultLevel(ctx, p, DefaultIsolation, fn)
}

// RunResultLevel is RunResult at an explicit isolation level.
func RunResultLevel[T any](ctx context.Context, p *DataAccessProvider, level sql.IsolationLevel, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.RunLevel(ctx, level, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

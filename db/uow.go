package db

import (
	"context"
	"database/sql"
	"errors"

	deliciousfood "github.com/AUrban/DeliciousFood"
)

// Storage is a single-slot holder for the active unit of work of one logical
// call context. It is intentionally not a stack: transaction scopes are
// assumed to be linear and non-interleaved within a request, and attempting to
// register a second unit of work while one is open is a programming error.
//
// A Storage is owned by exactly one request-handling goroutine (it travels in
// that request's context) and is not safe for concurrent use.
type Storage struct {
	current *UnitOfWork
}

// NewStorage creates an empty storage slot.
func NewStorage() *Storage {
	return &Storage{}
}

// Current returns the active unit of work, or nil if none is open.
func (s *Storage) Current() *UnitOfWork {
	return s.current
}

// Add registers u as the active unit of work. It fails if another unit of
// work is already open.
func (s *Storage) Add(u *UnitOfWork) error {
	if s.current != nil {
		return deliciousfood.NewError("current unit of work isn't closed")
	}
	s.current = u
	return nil
}

// Remove deregisters u. It fails if u is not the unit of work currently held.
func (s *Storage) Remove(u *UnitOfWork) error {
	if s.current != u {
		return deliciousfood.NewError("attempt to remove another unit of work")
	}
	s.current = nil
	return nil
}

// UnitOfWork wraps a single database transaction. It is created by a Factory,
// which also registers it with the storage slot of the creating context.
// Exactly one of Commit or Rollback takes effect per instance; Close rolls
// back if Commit has not happened and always deregisters from storage.
type UnitOfWork struct {
	tx       *sql.Tx
	storage  *Storage
	commited bool
}

// Tx returns the underlying transaction, or nil if the unit of work has been
// rolled back.
func (u *UnitOfWork) Tx() *sql.Tx {
	return u.tx
}

// Commited returns whether Commit has completed successfully.
func (u *UnitOfWork) Commited() bool {
	return u.commited
}

// Commit commits the wrapped transaction. It fails if the unit of work has
// already been closed.
func (u *UnitOfWork) Commit() error {
	if u.tx == nil {
		return deliciousfood.NewError("unit of work is already closed")
	}

	if err := u.tx.Commit(); err != nil {
		return deliciousfood.NewError("commit unit of work", err, deliciousfood.ErrDB)
	}
	u.commited = true
	u.tx = nil
	return nil
}

// Rollback rolls back the wrapped transaction and detaches it. It is
// idempotent; calling it on an already-closed unit of work is a no-op.
func (u *UnitOfWork) Rollback() error {
	if u.tx == nil {
		return nil
	}

	err := u.tx.Rollback()
	u.tx = nil
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return deliciousfood.NewError("rollback unit of work", err, deliciousfood.ErrDB)
	}
	return nil
}

// Close releases the unit of work. If Commit has not happened, the
// transaction is rolled back. The unit of work is deregistered from its
// storage slot on every path, so Close after Commit is a pure deregistration.
func (u *UnitOfWork) Close() error {
	var rbErr error
	if !u.commited {
		rbErr = u.Rollback()
	}

	if err := u.storage.Remove(u); err != nil {
		return err
	}
	return rbErr
}

// Factory creates units of work bound to a shared database handle and to the
// storage slot of the context they are created in. No pooling is done; each
// transaction scope gets its own instance.
type Factory struct {
	db *sql.DB
}

// NewFactory creates a Factory over the given database handle.
func NewFactory(sqlDB *sql.DB) *Factory {
	return &Factory{db: sqlDB}
}

// New begins a transaction at the given isolation level and registers the
// resulting unit of work with ctx's storage slot. It fails if ctx carries no
// storage or if the slot is already occupied; in the latter case the freshly
// begun transaction is rolled back before returning.
func (f *Factory) New(ctx context.Context, level sql.IsolationLevel) (*UnitOfWork, error) {
	storage := StorageFrom(ctx)
	if storage == nil {
		return nil, deliciousfood.NewError("context carries no unit of work storage")
	}

	tx, err := f.db.BeginTx(ctx, &sql.TxOptions{Isolation: level})
	if err != nil {
		return nil, deliciousfood.NewError("begin transaction", err, deliciousfood.ErrDB)
	}

	u := &UnitOfWork{tx: tx, storage: storage}
	if err := storage.Add(u); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	return u, nil
}

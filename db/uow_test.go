package db_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/AUrban/DeliciousFood/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Storage_SingleSlot(t *testing.T) {
	store := newTestStore(t)
	factory := db.NewFactory(store.DB)
	ctx := scopedCtx()
	storage := db.StorageFrom(ctx)

	assert := assert.New(t)

	assert.Nil(storage.Current())

	u, err := factory.New(ctx, sql.LevelDefault)
	require.NoError(t, err)
	assert.Same(u, storage.Current())

	// a second unit of work must be refused while the first is open
	_, err = factory.New(ctx, sql.LevelDefault)
	assert.ErrorContains(err, "current unit of work isn't closed")
	assert.Same(u, storage.Current(), "failed open must not replace the active unit of work")

	require.NoError(t, u.Close())
	assert.Nil(storage.Current())

	// after the slot is free a new unit of work may open
	u2, err := factory.New(ctx, sql.LevelDefault)
	require.NoError(t, err)
	assert.Same(u2, storage.Current())
	require.NoError(t, u2.Close())
}

func Test_Storage_RemoveForeign(t *testing.T) {
	store := newTestStore(t)
	factory := db.NewFactory(store.DB)

	ctx1 := scopedCtx()
	ctx2 := scopedCtx()

	u1, err := factory.New(ctx1, sql.LevelDefault)
	require.NoError(t, err)
	u2, err := factory.New(ctx2, sql.LevelDefault)
	require.NoError(t, err)

	assert := assert.New(t)

	err = db.StorageFrom(ctx1).Remove(u2)
	assert.ErrorContains(err, "attempt to remove another unit of work")
	assert.Same(u1, db.StorageFrom(ctx1).Current(), "foreign remove must not clear the slot")

	assert.NoError(u1.Close())
	assert.NoError(u2.Close())
}

func Test_UnitOfWork_CommitThenClose(t *testing.T) {
	store := newTestStore(t)
	factory := db.NewFactory(store.DB)
	ctx := scopedCtx()

	u, err := factory.New(ctx, sql.LevelDefault)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.False(u.Commited())

	require.NoError(t, u.Commit())
	assert.True(u.Commited())

	// committing twice is an error
	err = u.Commit()
	assert.ErrorContains(err, "unit of work is already closed")

	// Close after Commit only deregisters; Commited stays true
	require.NoError(t, u.Close())
	assert.True(u.Commited())
	assert.Nil(db.StorageFrom(ctx).Current())
}

func Test_UnitOfWork_CloseWithoutCommit(t *testing.T) {
	store := newTestStore(t)
	factory := db.NewFactory(store.DB)
	ctx := scopedCtx()

	u, err := factory.New(ctx, sql.LevelDefault)
	require.NoError(t, err)

	_, err = u.Tx().ExecContext(ctx, `INSERT INTO users (login, password_hash, name, policy_mask) VALUES ('a', 'x', 'a', 1)`)
	require.NoError(t, err)

	require.NoError(t, u.Close())

	assert := assert.New(t)
	assert.False(u.Commited())

	var count int
	require.NoError(t, store.DB.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&count))
	assert.Zero(count, "close without commit must discard the write")
}

func Test_UnitOfWork_RollbackIdempotent(t *testing.T) {
	store := newTestStore(t)
	factory := db.NewFactory(store.DB)
	ctx := scopedCtx()

	u, err := factory.New(ctx, sql.LevelDefault)
	require.NoError(t, err)

	assert := assert.New(t)
	assert.NoError(u.Rollback())
	assert.NoError(u.Rollback())
	assert.Nil(u.Tx())
	assert.NoError(u.Close())
}

func Test_Factory_RequiresStorage(t *testing.T) {
	store := newTestStore(t)
	factory := db.NewFactory(store.DB)

	_, err := factory.New(context.Background(), sql.LevelDefault)
	assert.ErrorContains(t, err, "no unit of work storage")
}

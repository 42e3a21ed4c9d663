package db_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/AUrban/DeliciousFood/dao"
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/db/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *db.Store {
	t.Helper()

	sqlDB, err := sqlite.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		sqlDB.Close()
	})

	require.NoError(t, dao.InitSchema(sqlDB))
	return db.NewStore(sqlDB)
}

// scopedCtx returns a context carrying a fresh unit-of-work storage slot, the
// way the request middleware prepares one.
func scopedCtx() context.Context {
	return db.WithStorage(context.Background(), db.NewStorage())
}

// inTx runs fn inside one top-most unit of work and requires it to commit.
func inTx(t *testing.T, store *db.Store, fn func(ctx context.Context) error) {
	t.Helper()

	provider := db.NewDataAccessProvider(store.DB)
	require.NoError(t, provider.Run(scopedCtx(), fn))
}

func seedUser(t *testing.T, store *db.Store, login string) *dao.User {
	t.Helper()

	users := db.NewEntityRepository(store, dao.UserBinding)
	user := users.Create()
	user.Login = login
	user.PasswordHash = "x"
	user.Name = login
	user.PolicyMask = dao.PolicyUsers

	inTx(t, store, func(ctx context.Context) error {
		return users.Save(ctx, user)
	})
	return user
}

func seedFood(t *testing.T, store *db.Store, owner *dao.User, title string, country string, public bool) *dao.Food {
	t.Helper()

	foods := db.NewEntityRepository(store, dao.FoodBinding)
	food := foods.Create()
	food.UserID = owner.ID
	food.Title = title
	food.Type = dao.Breakfast
	food.NumberOfCalories = 100
	food.Country = country
	food.IsPublic = public

	inTx(t, store, func(ctx context.Context) error {
		return foods.Save(ctx, food)
	})
	return food
}

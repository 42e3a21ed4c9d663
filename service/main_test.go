package service_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/AUrban/DeliciousFood/dao"
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/db/sqlite"
	"github.com/AUrban/DeliciousFood/service"
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

// inTx runs fn the way a request handler would: with a storage slot in the
// context and inside one top-most unit of work.
func inTx(t *testing.T, store *db.Store, ctx context.Context, fn func(ctx context.Context) error) error {
	t.Helper()

	provider := db.NewDataAccessProvider(store.DB)
	return provider.Run(db.WithStorage(ctx, db.NewStorage()), fn)
}

func seedUser(t *testing.T, store *db.Store, login string, password string, mask dao.Policy) *dao.User {
	t.Helper()

	var security service.SecurityProvider
	hash, err := security.HashPassword(password)
	require.NoError(t, err)

	users := db.NewEntityRepository(store, dao.UserBinding)
	user := users.Create()
	user.Login = login
	user.PasswordHash = hash
	user.Name = login
	user.PolicyMask = mask

	require.NoError(t, inTx(t, store, context.Background(), func(ctx context.Context) error {
		return users.Save(ctx, user)
	}))
	return user
}

func sessionCtx(user *dao.User) context.Context {
	return service.WithSession(context.Background(), service.Session{
		UserID:     user.ID,
		Login:      user.Login,
		PolicyMask: user.PolicyMask,
	})
}

// stubCalories is a CaloriesProvider with canned answers.
type stubCalories struct {
	calories float64
	err      error
	asked    []string
}

func (s *stubCalories) Calories(ctx context.Context, title string) (float64, error) {
	s.asked = append(s.asked, title)
	if s.err != nil {
		return 0, s.err
	}
	return s.calories, nil
}

func intPtr(n int) *int {
	return &n
}

func floatPtr(f float64) *float64 {
	return &f
}

package service

import (
	"context"
	"errors"
	"time"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"github.com/AUrban/DeliciousFood/dao"
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/db/filter"
	"github.com/AUrban/DeliciousFood/token"
)

// MaxRefreshTokenCount is how many refresh tokens one user may have stored at
// once. Logging in past the cap recycles the oldest one.
const MaxRefreshTokenCount = 5

// LoginViewModel is the request body of the login endpoint.
type LoginViewModel struct {
	Login      string `json:"login"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// TokenViewModel is the response body of the login and refresh endpoints.
type TokenViewModel struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// AccountService handles login sessions: authenticating users, minting and
// refreshing tokens, and logging out.
type AccountService struct {
	users    *db.EntityRepository[*dao.User]
	tokens   *db.EntityRepository[*dao.RefreshToken]
	provider token.Provider
	security SecurityProvider
}

// NewAccountService creates the account service over the given store.
func NewAccountService(store *db.Store, provider token.Provider) *AccountService {
	return &AccountService{
		users:    db.NewEntityRepository(store, dao.UserBinding),
		tokens:   db.NewEntityRepository(store, dao.RefreshTokenBinding),
		provider: provider,
	}
}

// Login authenticates the user and mints an access token plus a stored
// refresh token. A wrong login and a wrong password are deliberately
// indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, lm LoginViewModel) (TokenViewModel, error) {
	var zero TokenViewModel

	badCredentials := deliciousfood.NewValidationError("User", "Invalid login or password!")

	user, err := s.users.UntrackedQuery().
		Where(filter.Compare{Field: "login", Op: filter.Eq, Value: lm.Login}).
		First(ctx)
	if err != nil {
		if errors.Is(err, deliciousfood.ErrNotFound) {
			return zero, badCredentials
		}
		return zero, err
	}
	if !s.security.VerifyPassword(lm.Password, user.PasswordHash) {
		return zero, badCredentials
	}

	access, err := s.provider.Generate(user, token.Access)
	if err != nil {
		return zero, err
	}

	refreshType := token.Refresh
	ttl := s.provider.RefreshTTL
	if lm.RememberMe {
		refreshType = token.RefreshRemember
		ttl = s.provider.RememberTTL
	}
	refresh, err := s.provider.Generate(user, refreshType)
	if err != nil {
		return zero, err
	}

	userTokens := db.SubRepository(s.tokens, dao.RefreshTokenOwner, user)
	stored, err := userTokens.Query().List(ctx)
	if err != nil {
		return zero, err
	}
	if len(stored) >= MaxRefreshTokenCount {
		oldest := stored[0]
		for _, t := range stored[1:] {
			if t.CreateTime.Time().Before(oldest.CreateTime.Time()) {
				oldest = t
			}
		}
		if err := userTokens.Delete(ctx, oldest); err != nil {
			return zero, err
		}
	}

	now := time.Now()
	rec := userTokens.Create()
	rec.Token = refresh
	rec.CreateTime = dao.Timestamp(now)
	rec.LifeTime = dao.Timestamp(now.Add(ttl))
	if err := userTokens.Save(ctx, rec); err != nil {
		return zero, err
	}

	return TokenViewModel{AccessToken: access, RefreshToken: refresh}, nil
}

// Logout discards the stored refresh token. An unknown or empty token is
// tolerated; logout never fails for it.
func (s *AccountService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}

	rec, err := s.tokens.UntrackedQuery().
		Where(filter.Compare{Field: "token", Op: filter.Eq, Value: refreshToken}).
		First(ctx)
	if err != nil {
		if errors.Is(err, deliciousfood.ErrNotFound) {
			return nil
		}
		return err
	}
	return s.tokens.Delete(ctx, rec)
}

// Refresh exchanges a stored refresh token for a fresh access token. An
// absent, unknown, or expired token is unauthorized; expired tokens are
// discarded on sight.
func (s *AccountService) Refresh(ctx context.Context, refreshToken string) (TokenViewModel, error) {
	var zero TokenViewModel

	if refreshToken == "" {
		return zero, deliciousfood.NewError("no refresh token presented", deliciousfood.ErrUnauthorized)
	}

	rec, err := s.tokens.UntrackedQuery().
		Where(filter.Compare{Field: "token", Op: filter.Eq, Value: refreshToken}).
		First(ctx)
	if err != nil {
		if errors.Is(err, deliciousfood.ErrNotFound) {
			return zero, deliciousfood.NewError("unknown refresh token", deliciousfood.ErrUnauthorized)
		}
		return zero, err
	}

	if rec.LifeTime.Time().Before(time.Now()) {
		if err := s.tokens.Delete(ctx, rec); err != nil {
			return zero, err
		}
		// the enclosing scope sees the unauthorized result and will not
		// commit, so the removal must be committed here
		if err := db.StorageFrom(ctx).Current().Commit(); err != nil {
			return zero, err
		}
		return zero, deliciousfood.NewError("refresh token expired", deliciousfood.ErrUnauthorized)
	}

	user, err := s.users.Get(ctx, rec.UserID)
	if err != nil {
		return zero, err
	}
	access, err := s.provider.Generate(user, token.Access)
	if err != nil {
		return zero, err
	}
	return TokenViewModel{AccessToken: access, RefreshToken: refreshToken}, nil
}

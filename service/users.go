package service

import (
	"context"
	"errors"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"github.com/AUrban/DeliciousFood/dao"
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/db/filter"
)

// UserViewModel is the response-facing shape of a user.
type UserViewModel struct {
	ID                int    `json:"id"`
	Login             string `json:"login"`
	Name              string `json:"name"`
	PolicyDescription string `json:"policyDescription"`
}

// UserEditModel is the request-facing shape of a user. Password is write-only
// and never echoed back. PolicyList names the permission groups the user
// belongs to.
type UserEditModel struct {
	ID         *int     `json:"id,omitempty"`
	Login      string   `json:"login"`
	Password   string   `json:"password,omitempty"`
	Name       string   `json:"name"`
	PolicyList []string `json:"policyList"`
}

func (e *UserEditModel) EditID() *int     { return e.ID }
func (e *UserEditModel) SetEditID(id int) { e.ID = &id }

// UserService is the entity service over users. Account management is
// reserved for moderators and admins.
type UserService struct {
	*EntityService[*dao.User, UserViewModel, *UserEditModel]

	repo     *db.EntityRepository[*dao.User]
	security SecurityProvider
}

// NewUserService creates the user service over the given store.
func NewUserService(store *db.Store) *UserService {
	s := &UserService{
		repo: db.NewEntityRepository(store, dao.UserBinding),
	}

	repoFn := func(ctx context.Context) (*db.EntityRepository[*dao.User], error) {
		return s.repo, nil
	}
	s.EntityService = NewEntityService("User", repoFn, ModelMapper[*dao.User, UserViewModel, *UserEditModel]{
		ToView: s.toView,
		ToEdit: s.toEdit,
		Apply:  s.apply,
	})
	s.EntityService.SetValidate(s.validateEdit)
	return s
}

// Save creates a new user. On top of the base checks, creation requires a
// non-empty password.
func (s *UserService) Save(ctx context.Context, editModel *UserEditModel) (*UserEditModel, error) {
	if editModel != nil && editModel.Password == "" {
		return nil, deliciousfood.NewValidationError("password", "When saving a new record, password must not be empty!")
	}
	return s.EntityService.Save(ctx, editModel)
}

// GetByLogin fetches the user with the given login.
func (s *UserService) GetByLogin(ctx context.Context, login string) (*dao.User, error) {
	return s.repo.UntrackedQuery().
		Where(filter.Compare{Field: "login", Op: filter.Eq, Value: login}).
		First(ctx)
}

func (s *UserService) toView(ctx context.Context, u *dao.User) (UserViewModel, error) {
	return UserViewModel{
		ID:                u.ID,
		Login:             u.Login,
		Name:              u.Name,
		PolicyDescription: u.PolicyMask.String(),
	}, nil
}

func (s *UserService) toEdit(ctx context.Context, u *dao.User) (*UserEditModel, error) {
	var policies []string
	for _, p := range dao.AllPolicies {
		if u.PolicyMask.Intersects(p) {
			policies = append(policies, p.String())
		}
	}

	id := u.ID
	return &UserEditModel{
		ID:         &id,
		Login:      u.Login,
		Name:       u.Name,
		PolicyList: policies,
	}, nil
}

func (s *UserService) apply(ctx context.Context, e *UserEditModel, u *dao.User) error {
	u.Login = e.Login
	u.Name = e.Name

	mask := dao.PolicyNone
	for _, name := range e.PolicyList {
		p, err := dao.ParsePolicy(name)
		if err != nil {
			return deliciousfood.NewValidationError("policyList", "Unknown policy "+name+"!")
		}
		mask |= p
	}
	if mask == dao.PolicyNone {
		mask = dao.PolicyUsers
	}
	u.PolicyMask = mask

	if e.Password != "" {
		hash, err := s.security.HashPassword(e.Password)
		if err != nil {
			return err
		}
		u.PasswordHash = hash
	}
	return nil
}

func (s *UserService) validateEdit(ctx context.Context, e *UserEditModel) error {
	if e.Login == "" {
		return deliciousfood.NewValidationError("login", "Login must not be empty!")
	}

	if e.Password != "" {
		if msg := s.security.CheckPasswordComplexity(e.Password); msg != "" {
			return deliciousfood.NewValidationError("password", msg)
		}
	}

	existing, err := s.GetByLogin(ctx, e.Login)
	if err == nil {
		if e.ID == nil || existing.ID != *e.ID {
			return deliciousfood.NewValidationError("login", "A user with the same login already exists!")
		}
	} else if !errors.Is(err, deliciousfood.ErrNotFound) {
		return err
	}
	return nil
}

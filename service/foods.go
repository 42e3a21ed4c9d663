package service

import (
	"context"
	"errors"
	"fmt"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"github.com/AUrban/DeliciousFood/dao"
	"github.com/AUrban/DeliciousFood/db"
	"github.com/AUrban/DeliciousFood/db/filter"
)

// FoodViewModel is the response-facing shape of a food record.
type FoodViewModel struct {
	ID               int          `json:"id"`
	UserID           int          `json:"userId"`
	UserDescription  string       `json:"userDescription"`
	Title            string       `json:"title"`
	Type             dao.FoodType `json:"type"`
	TypeDescription  string       `json:"typeDescription"`
	NumberOfCalories float64      `json:"numberOfCalories"`
	Country          string       `json:"country"`
	IsPublic         bool         `json:"isPublic"`
}

// FoodEditModel is the request-facing shape of a food record. An absent or
// zero NumberOfCalories is resolved through the calories provider.
type FoodEditModel struct {
	ID               *int         `json:"id,omitempty"`
	Title            string       `json:"title"`
	Type             dao.FoodType `json:"type"`
	NumberOfCalories *float64     `json:"numberOfCalories,omitempty"`
	Country          string       `json:"country"`
	IsPublic         bool         `json:"isPublic"`
}

func (e *FoodEditModel) EditID() *int     { return e.ID }
func (e *FoodEditModel) SetEditID(id int) { e.ID = &id }

// DeliciousEditModel carries the id of a public food record to mark as
// delicious.
type DeliciousEditModel struct {
	FoodID int `json:"foodId"`
}

// FoodService is the entity service over food records. The zero scope covers
// every food record; ForUser derives a service whose CRUD operations are
// confined to one user's records.
type FoodService struct {
	*EntityService[*dao.Food, FoodViewModel, *FoodEditModel]

	foods     *db.EntityRepository[*dao.Food]
	users     *db.EntityRepository[*dao.User]
	delicious *db.EntityRepository[*dao.UserDeliciousFood]

	calories CaloriesProvider
	policy   PolicyValidator

	// user is the scoping user, nil on the unscoped service.
	user *dao.User
}

// NewFoodService creates the unscoped food service over the given store.
func NewFoodService(store *db.Store, calories CaloriesProvider) *FoodService {
	s := &FoodService{
		foods:     db.NewEntityRepository(store, dao.FoodBinding),
		users:     db.NewEntityRepository(store, dao.UserBinding),
		delicious: db.NewEntityRepository(store, dao.DeliciousBinding),
		calories:  calories,
	}
	s.rebuild()
	return s
}

// rebuild re-derives the embedded base service so its closures see the
// receiver. Invoked after every scoped copy.
func (s *FoodService) rebuild() {
	repoFn := func(ctx context.Context) (*db.EntityRepository[*dao.Food], error) {
		if s.user == nil {
			return s.foods, nil
		}
		return db.SubRepository(s.foods, dao.FoodOwner, s.user).EntityRepository, nil
	}
	s.EntityService = NewEntityService("Food", repoFn, ModelMapper[*dao.Food, FoodViewModel, *FoodEditModel]{
		ToView: s.toView,
		ToEdit: s.toEdit,
		Apply:  s.apply,
	})
	s.EntityService.SetValidate(s.validateEdit)
}

// ForUser derives a food service scoped to the given user's records. The
// session caller must be that user or hold the admin policy.
func (s *FoodService) ForUser(ctx context.Context, userID int) (*FoodService, error) {
	if !s.policy.UserPolicyIntersects(ctx, dao.PolicyAdmins) {
		sess, ok := SessionFrom(ctx)
		if !ok || sess.UserID != userID {
			return nil, deliciousfood.NewError("food records of another user", deliciousfood.ErrPermission)
		}
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, deliciousfood.ErrNotFound) {
			return nil, deliciousfood.NewNotFoundError("User", "id", userID)
		}
		return nil, err
	}

	scoped := *s
	scoped.user = user
	scoped.rebuild()
	return &scoped, nil
}

// GetAll lists food records matching the filter model. Admins see every
// record; everyone else sees their own.
func (s *FoodService) GetAll(ctx context.Context, fm *FilterModel) ([]FoodViewModel, error) {
	if s.policy.UserPolicyIntersects(ctx, dao.PolicyAdmins) {
		return s.ViewList(ctx, s.foods.UntrackedQuery(), fm)
	}

	sess, ok := SessionFrom(ctx)
	if !ok {
		return nil, deliciousfood.NewError("no session", deliciousfood.ErrUnauthorized)
	}
	scoped, err := s.ForUser(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	return scoped.Get(ctx, fm)
}

// GetPublic lists the public food records matching the filter model.
func (s *FoodService) GetPublic(ctx context.Context, fm *FilterModel) ([]FoodViewModel, error) {
	q := s.foods.UntrackedQuery().
		Where(filter.Compare{Field: "ispublic", Op: filter.Eq, Value: true})
	return s.ViewList(ctx, q, fm)
}

// MarkDelicious marks a public food record as delicious for the session
// user. A user keeps at most one delicious mark per country; marking a food
// replaces any previous mark for a food of the same country.
func (s *FoodService) MarkDelicious(ctx context.Context, edit DeliciousEditModel) (FoodViewModel, error) {
	var zero FoodViewModel

	sess, ok := SessionFrom(ctx)
	if !ok {
		return zero, deliciousfood.NewError("no session", deliciousfood.ErrUnauthorized)
	}

	food, err := s.foods.Get(ctx, edit.FoodID)
	if err != nil {
		if errors.Is(err, deliciousfood.ErrNotFound) {
			return zero, deliciousfood.NewNotFoundError("Food", "foodId", edit.FoodID)
		}
		return zero, err
	}
	if !food.IsPublic {
		return zero, deliciousfood.NewValidationError("foodId", fmt.Sprintf("Food with id = %d is not public!", edit.FoodID))
	}

	user, err := s.users.Get(ctx, sess.UserID)
	if err != nil {
		return zero, err
	}
	userMarks := db.SubRepository(s.delicious, dao.DeliciousOwner, user)

	marks, err := userMarks.Query().List(ctx)
	if err != nil {
		return zero, err
	}
	for _, mark := range marks {
		marked, err := s.foods.Get(ctx, mark.FoodID)
		if err != nil {
			return zero, err
		}
		if marked.Country == food.Country {
			if err := userMarks.Delete(ctx, mark); err != nil {
				return zero, err
			}
		}
	}

	mark := userMarks.Create()
	dao.DeliciousFood.SetKey(mark, food.ID)
	if err := userMarks.Save(ctx, mark); err != nil {
		return zero, err
	}
	return s.toView(ctx, food)
}

// GetDelicious lists the food records the session user has marked as
// delicious, narrowed by the filter model. Paging applies after the marks are
// intersected with the filtered records.
func (s *FoodService) GetDelicious(ctx context.Context, fm *FilterModel) ([]FoodViewModel, error) {
	if fm == nil {
		return nil, deliciousfood.NewValidationError("FilterModel", "Filter model is invalid!")
	}

	sess, ok := SessionFrom(ctx)
	if !ok {
		return nil, deliciousfood.NewError("no session", deliciousfood.ErrUnauthorized)
	}

	marks, err := s.delicious.UntrackedQuery().
		Where(filter.Compare{Field: "userid", Op: filter.Eq, Value: sess.UserID}).
		List(ctx)
	if err != nil {
		return nil, err
	}
	marked := make(map[int]bool, len(marks))
	for _, m := range marks {
		marked[m.FoodID] = true
	}

	q, err := s.foods.UntrackedQuery().WithFilter(fm.Filter)
	if err != nil {
		return nil, err
	}
	foods, err := q.List(ctx)
	if err != nil {
		return nil, err
	}

	skip := 0
	if fm.Skip != nil {
		skip = *fm.Skip
	}
	limit := -1
	if fm.Limit != nil {
		limit = *fm.Limit
	}

	views := make([]FoodViewModel, 0)
	for _, f := range foods {
		if !marked[f.ID] {
			continue
		}
		if skip > 0 {
			skip--
			continue
		}
		if limit == 0 {
			break
		}
		v, err := s.toView(ctx, f)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
		if limit > 0 {
			limit--
		}
	}
	return views, nil
}

// Delete removes a food record. A record still referenced by delicious marks
// cannot be deleted.
func (s *FoodService) Delete(ctx context.Context, id int) (FoodViewModel, error) {
	var zero FoodViewModel

	if _, err := s.GetModel(ctx, id); err != nil {
		return zero, err
	}

	refs, err := s.delicious.UntrackedQuery().
		Where(filter.Compare{Field: "foodid", Op: filter.Eq, Value: id}).
		Count(ctx)
	if err != nil {
		return zero, err
	}
	if refs > 0 {
		return zero, deliciousfood.NewValidationError("Food", fmt.Sprintf("Food with id = %d is marked as delicious and cannot be deleted!", id))
	}

	m, err := s.DeleteModel(ctx, id)
	if err != nil {
		return zero, err
	}
	return s.toView(ctx, m)
}

func (s *FoodService) toView(ctx context.Context, f *dao.Food) (FoodViewModel, error) {
	v := FoodViewModel{
		ID:               f.ID,
		UserID:           f.UserID,
		Title:            f.Title,
		Type:             f.Type,
		TypeDescription:  f.Type.String(),
		NumberOfCalories: f.NumberOfCalories,
		Country:          f.Country,
		IsPublic:         f.IsPublic,
	}

	owner, err := s.users.Get(ctx, f.UserID)
	if err != nil {
		return v, err
	}
	v.UserDescription = owner.Name
	return v, nil
}

func (s *FoodService) toEdit(ctx context.Context, f *dao.Food) (*FoodEditModel, error) {
	id := f.ID
	calories := f.NumberOfCalories
	return &FoodEditModel{
		ID:               &id,
		Title:            f.Title,
		Type:             f.Type,
		NumberOfCalories: &calories,
		Country:          f.Country,
		IsPublic:         f.IsPublic,
	}, nil
}

func (s *FoodService) apply(ctx context.Context, e *FoodEditModel, f *dao.Food) error {
	if f.ID != 0 && f.IsPublic && !e.IsPublic {
		refs, err := s.delicious.UntrackedQuery().
			Where(filter.Compare{Field: "foodid", Op: filter.Eq, Value: f.ID}).
			Count(ctx)
		if err != nil {
			return err
		}
		if refs > 0 {
			return deliciousfood.NewValidationError("isPublic", fmt.Sprintf("Food with id = %d is marked as delicious and must stay public!", f.ID))
		}
	}

	calories := 0.0
	if e.NumberOfCalories != nil {
		calories = *e.NumberOfCalories
	}
	if calories == 0 {
		if s.calories == nil {
			return deliciousfood.NewValidationError("numberOfCalories", "Number of calories must be given when no calories lookup is configured!")
		}
		resolved, err := s.calories.Calories(ctx, e.Title)
		if err != nil {
			return err
		}
		calories = resolved
	}

	f.Title = e.Title
	f.Type = e.Type
	f.NumberOfCalories = calories
	f.Country = e.Country
	f.IsPublic = e.IsPublic
	return nil
}

func (s *FoodService) validateEdit(ctx context.Context, e *FoodEditModel) error {
	if e.Title == "" {
		return deliciousfood.NewValidationError("title", "Title must not be empty!")
	}
	if !e.Type.Valid() {
		return deliciousfood.NewValidationError("type", "Food type is invalid!")
	}
	if e.Country == "" {
		return deliciousfood.NewValidationError("country", "Country must not be empty!")
	}
	return nil
}

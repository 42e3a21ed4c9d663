// Package service contains the business services of the DeliciousFood
// server. A generic EntityService carries the uniform CRUD contract that
// every concrete entity service builds on; the concrete services add their
// own business rules on top of it without replacing the base invariants.
package service

import (
	"context"
	"errors"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"github.com/AUrban/DeliciousFood/db"
)

// FilterModel is the request parameter model for endpoints returning lists of
// records: an optional filter expression plus paging parameters.
type FilterModel struct {
	// Filter is a filter string with 'or', 'and', brackets and various
	// comparison operations. Empty means no filtering.
	Filter string

	// Skip is how many records to skip. Defaults to 0.
	Skip *int

	// Limit caps the number of records returned. Absent means unbounded.
	Limit *int
}

// EditModel is implemented by every edit model. The id is optional on the
// wire; the service enforces when it may and may not be present.
type EditModel interface {
	EditID() *int
	SetEditID(id int)
}

// ModelMapper converts between one entity type and its view and edit models.
// The functions are explicit per entity; there is no convention-based field
// copying.
type ModelMapper[M db.Entity, V any, E EditModel] struct {
	// ToView maps a persisted entity to its response-facing view model.
	ToView func(ctx context.Context, m M) (V, error)

	// ToEdit maps a persisted entity back to an edit model, so that callers
	// of save/update see server-generated fields.
	ToEdit func(ctx context.Context, m M) (E, error)

	// Apply copies an edit model's fields onto an entity.
	Apply func(ctx context.Context, e E, m M) error
}

// EntityService is the basic entity service containing all the methods for
// CRUD operations over one entity type. Concrete services embed a configured
// instance and augment its operations; the exported model helpers (GetModel,
// SaveModel, ...) are the augmentation points.
type EntityService[M db.Entity, V any, E EditModel] struct {
	name     string
	repo     func(ctx context.Context) (*db.EntityRepository[M], error)
	mapper   ModelMapper[M, V, E]
	validate func(ctx context.Context, e E) error
}

// NewEntityService creates an EntityService for the named entity type. The
// repo function yields the repository each operation runs against, so that a
// concrete service may swap in a tenant-scoped repository per call.
func NewEntityService[M db.Entity, V any, E EditModel](
	name string,
	repo func(ctx context.Context) (*db.EntityRepository[M], error),
	mapper ModelMapper[M, V, E],
) *EntityService[M, V, E] {
	return &EntityService[M, V, E]{name: name, repo: repo, mapper: mapper}
}

// SetValidate installs the entity-specific edit-model validation hook, run by
// SaveModel and UpdateModel after the generic id checks.
func (s *EntityService[M, V, E]) SetValidate(fn func(ctx context.Context, e E) error) {
	s.validate = fn
}

// Name returns the entity's display name.
func (s *EntityService[M, V, E]) Name() string {
	return s.name
}

// Get lists entities matching the filter model, mapped to view models. The
// result is fully materialized and preserves the query's order. A nil filter
// model is itself a validation error.
func (s *EntityService[M, V, E]) Get(ctx context.Context, fm *FilterModel) ([]V, error) {
	repo, err := s.repo(ctx)
	if err != nil {
		return nil, err
	}
	return s.ViewList(ctx, repo.UntrackedQuery(), fm)
}

// GetBy fetches one entity by id, mapped to a view model.
func (s *EntityService[M, V, E]) GetBy(ctx context.Context, id int) (V, error) {
	var zero V
	m, err := s.GetModel(ctx, id)
	if err != nil {
		return zero, err
	}
	return s.mapper.ToView(ctx, m)
}

// Save creates a new entity from the edit model and returns the edit model
// re-derived from the persisted entity, so generated fields are visible to
// the caller.
func (s *EntityService[M, V, E]) Save(ctx context.Context, editModel E) (E, error) {
	var zero E
	m, err := s.SaveModel(ctx, editModel)
	if err != nil {
		return zero, err
	}
	return s.mapper.ToEdit(ctx, m)
}

// Update applies the edit model onto the entity with the given id and returns
// the refreshed edit model.
func (s *EntityService[M, V, E]) Update(ctx context.Context, id int, editModel E) (E, error) {
	var zero E
	m, err := s.UpdateModel(ctx, id, editModel)
	if err != nil {
		return zero, err
	}
	return s.mapper.ToEdit(ctx, m)
}

// Delete removes the entity with the given id and returns the view model of
// the now-deleted entity, reflecting its pre-deletion state.
func (s *EntityService[M, V, E]) Delete(ctx context.Context, id int) (V, error) {
	var zero V
	m, err := s.DeleteModel(ctx, id)
	if err != nil {
		return zero, err
	}
	return s.mapper.ToView(ctx, m)
}

// ApplyFilter narrows a query by the given filter model and its paging
// parameters. Filter parse failures surface as validation errors, never as
// raw parser errors.
func (s *EntityService[M, V, E]) ApplyFilter(q db.Query[M], fm *FilterModel) (db.Query[M], error) {
	if fm == nil {
		return q, deliciousfood.NewValidationError("FilterModel", "Filter model is invalid!")
	}

	q, err := q.WithFilter(fm.Filter)
	if err != nil {
		return q, err
	}

	skip := 0
	if fm.Skip != nil {
		skip = *fm.Skip
	}
	return q.ApplyPaging(skip, fm.Limit), nil
}

// ViewList materializes a filtered query and maps every row to a view model.
func (s *EntityService[M, V, E]) ViewList(ctx context.Context, q db.Query[M], fm *FilterModel) ([]V, error) {
	q, err := s.ApplyFilter(q, fm)
	if err != nil {
		return nil, err
	}

	items, err := q.List(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]V, 0, len(items))
	for _, m := range items {
		v, err := s.mapper.ToView(ctx, m)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// GetModel fetches one entity by id, translating absence into a NotFound
// error carrying the entity type name and the id.
func (s *EntityService[M, V, E]) GetModel(ctx context.Context, id int) (M, error) {
	var zero M
	repo, err := s.repo(ctx)
	if err != nil {
		return zero, err
	}

	m, err := repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, deliciousfood.ErrNotFound) {
			return zero, deliciousfood.NewNotFoundError(s.name, "id", id)
		}
		return zero, err
	}
	return m, nil
}

// SaveModel maps the edit model to a fresh entity and persists it. An edit
// model that already carries an id is rejected: creation must not pre-specify
// identity.
func (s *EntityService[M, V, E]) SaveModel(ctx context.Context, editModel E) (M, error) {
	var zero M
	if editModel.EditID() != nil {
		return zero, deliciousfood.NewValidationError("id", "When saving a new record, id must be empty!")
	}
	if err := s.runValidate(ctx, editModel); err != nil {
		return zero, err
	}

	repo, err := s.repo(ctx)
	if err != nil {
		return zero, err
	}

	m := repo.Create()
	if err := s.mapper.Apply(ctx, editModel, m); err != nil {
		return zero, err
	}
	if err := repo.Save(ctx, m); err != nil {
		return zero, err
	}
	return m, nil
}

// UpdateModel applies the edit model's fields onto the existing entity with
// the given id and persists it. An edit model whose id is present and differs
// from the route id is rejected before any repository call is made.
func (s *EntityService[M, V, E]) UpdateModel(ctx context.Context, id int, editModel E) (M, error) {
	var zero M
	if editModel.EditID() != nil && *editModel.EditID() != id {
		return zero, deliciousfood.NewValidationError("id", "When altering an existing record, id route parameter must match the id parameter in the edit model!")
	}
	editModel.SetEditID(id)
	if err := s.runValidate(ctx, editModel); err != nil {
		return zero, err
	}

	m, err := s.GetModel(ctx, id)
	if err != nil {
		return zero, err
	}
	if err := s.mapper.Apply(ctx, editModel, m); err != nil {
		return zero, err
	}

	repo, err := s.repo(ctx)
	if err != nil {
		return zero, err
	}
	if err := repo.Update(ctx, m); err != nil {
		return zero, err
	}
	return m, nil
}

// DeleteModel removes the entity with the given id, returning it as it was
// before deletion. The delete primitive is never reached for a nonexistent
// id.
func (s *EntityService[M, V, E]) DeleteModel(ctx context.Context, id int) (M, error) {
	var zero M
	m, err := s.GetModel(ctx, id)
	if err != nil {
		return zero, err
	}

	repo, err := s.repo(ctx)
	if err != nil {
		return zero, err
	}
	if err := repo.Delete(ctx, m); err != nil {
		return zero, err
	}
	return m, nil
}

// ToView maps one entity to its view model.
func (s *EntityService[M, V, E]) ToView(ctx context.Context, m M) (V, error) {
	return s.mapper.ToView(ctx, m)
}

func (s *EntityService[M, V, E]) runValidate(ctx context.Context, editModel E) error {
	if s.validate == nil {
		return nil
	}
	return s.validate(ctx, editModel)
}

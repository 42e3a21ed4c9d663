package db

import (
	"context"
	"fmt"
	"strings"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"github.com/AUrban/DeliciousFood/db/sqlite"
)

// PermissionError is returned when an entity reached through a parent-scoped
// repository turns out to belong to a different parent. It is raised by the
// repository's tenant check and is already translated into the validation
// kind: callers see it as a validation failure, never as a raw storage error.
type PermissionError struct {
	Entity   string
	ID       int
	Parent   string
	ParentID int
}

func (e PermissionError) Error() string {
	return fmt.Sprintf("the operation is not valid for the record id = %d for the %s id = %d", e.ID, e.Parent, e.ParentID)
}

// Is returns whether target is ErrPermission or ErrValidation. This function
// is for interaction with the errors API.
func (e PermissionError) Is(target error) bool {
	return target == deliciousfood.ErrPermission || target == deliciousfood.ErrValidation
}

// Relation declares a many-to-one relationship from a child entity type to a
// parent entity type: the foreign-key column plus explicit accessors for the
// key value on the child. A child type related to two different parents (as
// UserDeliciousFood is to both User and Food) declares two independent
// Relations, one per parent.
type Relation[C Entity, P Entity] struct {
	// Parent is the parent entity's display name, used in errors.
	Parent string

	// Column is the child table's foreign-key column.
	Column string

	// Key reads the foreign-key value from a child.
	Key func(c C) int

	// SetKey writes the foreign-key value on a child.
	SetKey func(c C, id int)
}

// NewRelation builds a Relation with the conventional foreign-key column name
// derived from the parent name ("User" -> "user_id"). Set Column explicitly
// for relationships that do not follow the convention.
func NewRelation[C Entity, P Entity](parentName string, key func(c C) int, setKey func(c C, id int)) Relation[C, P] {
	return Relation[C, P]{
		Parent: parentName,
		Column: strings.ToLower(parentName) + "_id",
		Key:    key,
		SetKey: setKey,
	}
}

// EntityRepository provides CRUD primitives over a single entity type. The
// base repository's tenant scope is the identity transform; SubRepository
// derives repositories whose scope is narrowed to one parent entity.
//
// Mutating operations run inside the active unit of work and fail if none is
// open. Reads join the active unit of work when there is one.
type EntityRepository[T Entity] struct {
	store   *Store
	binding Binding[T]

	scope  func(q Query[T]) Query[T]
	setter func(t T) T
	check  func(t T) error
}

// NewEntityRepository creates an unscoped repository for the entity type
// described by b.
func NewEntityRepository[T Entity](store *Store, b Binding[T]) *EntityRepository[T] {
	return &EntityRepository[T]{
		store:   store,
		binding: b,
		scope:   func(q Query[T]) Query[T] { return q },
		setter:  func(t T) T { return t },
		check:   func(t T) error { return nil },
	}
}

// Name returns the entity's display name.
func (r *EntityRepository[T]) Name() string {
	return r.binding.Name
}

// Query returns the repository's tracked lazy view, filtered by the tenant
// scope. It must be materialized inside an active unit of work.
func (r *EntityRepository[T]) Query() Query[T] {
	return r.scope(newQuery(r.store, r.binding, false))
}

// UntrackedQuery returns the repository's read-only lazy view, filtered by
// the tenant scope. It is used for listing and validation reads that must not
// be persisted back.
func (r *EntityRepository[T]) UntrackedQuery() Query[T] {
	return r.scope(newQuery(r.store, r.binding, true))
}

// Create returns a new, zero-valued, unsaved entity. For a parent-scoped
// repository the foreign key is pre-populated to the scoping parent.
func (r *EntityRepository[T]) Create() T {
	return r.setter(r.binding.New())
}

// Get fetches an entity by id. The lookup itself is not tenant-filtered; the
// tenant check runs on the fetched entity and reports a scope mismatch as a
// permission error. Absence is reported as an error matching ErrNotFound.
func (r *EntityRepository[T]) Get(ctx context.Context, id int) (T, error) {
	var zero T

	conn := querier(r.store.DB)
	if tx := currentTx(ctx); tx != nil {
		conn = tx
	}

	row := conn.QueryRowContext(ctx, selectClause(r.binding)+" WHERE id = ?", id)
	t, err := r.binding.Scan(row)
	if err != nil {
		return zero, sqlite.WrapDBError(err)
	}
	if err := r.check(t); err != nil {
		return zero, err
	}
	return t, nil
}

// Save inserts a new entity and assigns its generated id. The tenant check
// runs before anything is written.
func (r *EntityRepository[T]) Save(ctx context.Context, t T) error {
	if err := r.check(t); err != nil {
		return err
	}
	tx := currentTx(ctx)
	if tx == nil {
		return deliciousfood.NewError("save requires an active unit of work", deliciousfood.ErrNoTransaction)
	}

	cols := r.binding.Columns
	stmt := "INSERT INTO " + r.binding.Table + " (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
	res, err := tx.ExecContext(ctx, stmt, r.binding.Args(t)...)
	if err != nil {
		return sqlite.WrapDBError(err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return sqlite.WrapDBError(err)
	}
	t.SetEntityID(int(id))
	return nil
}

// Update writes an existing entity's fields. The tenant check runs before
// anything is written.
func (r *EntityRepository[T]) Update(ctx context.Context, t T) error {
	if err := r.check(t); err != nil {
		return err
	}
	tx := currentTx(ctx)
	if tx == nil {
		return deliciousfood.NewError("update requires an active unit of work", deliciousfood.ErrNoTransaction)
	}

	var sets []string
	for _, col := range r.binding.Columns {
		sets = append(sets, col+" = ?")
	}
	stmt := "UPDATE " + r.binding.Table + " SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	args := append(r.binding.Args(t), t.EntityID())
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return sqlite.WrapDBError(err)
	}
	return nil
}

// Delete removes an entity. The tenant check runs before anything is written.
func (r *EntityRepository[T]) Delete(ctx context.Context, t T) error {
	if err := r.check(t); err != nil {
		return err
	}
	tx := currentTx(ctx)
	if tx == nil {
		return deliciousfood.NewError("delete requires an active unit of work", deliciousfood.ErrNoTransaction)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM "+r.binding.Table+" WHERE id = ?", t.EntityID()); err != nil {
		return sqlite.WrapDBError(err)
	}
	return nil
}

// SubEntityRepository is an EntityRepository narrowed to the children of one
// parent entity. Its queries are filtered by the relation's foreign key, its
// Create pre-populates the foreign key, and its tenant check raises a
// PermissionError for entities belonging to a different parent.
type SubEntityRepository[C Entity, P Entity] struct {
	*EntityRepository[C]

	parent P
	rel    Relation[C, P]
}

// Parent returns the scoping parent entity.
func (r *SubEntityRepository[C, P]) Parent() P {
	return r.parent
}

// SubRepository derives a repository scoped to parent from the child type's
// base repository. It is a free function because Go methods cannot introduce
// type parameters. Scoping composes: deriving from an already-scoped
// repository narrows further, never widens.
func SubRepository[C Entity, P Entity](base *EntityRepository[C], rel Relation[C, P], parent P) *SubEntityRepository[C, P] {
	parentID := parent.EntityID()

	scoped := &EntityRepository[C]{
		store:   base.store,
		binding: base.binding,
		scope: func(q Query[C]) Query[C] {
			return base.scope(q).scopedTo(rel.Column, parentID)
		},
		setter: func(c C) C {
			c = base.setter(c)
			rel.SetKey(c, parentID)
			return c
		},
		check: func(c C) error {
			if err := base.check(c); err != nil {
				return err
			}
			if rel.Key(c) != parentID {
				return PermissionError{
					Entity:   base.binding.Name,
					ID:       c.EntityID(),
					Parent:   rel.Parent,
					ParentID: parentID,
				}
			}
			return nil
		},
	}

	return &SubEntityRepository[C, P]{EntityRepository: scoped, parent: parent, rel: rel}
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}
	return strings.Repeat("?, ", n-1) + "?"
}

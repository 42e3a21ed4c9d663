package db

import (
	"context"
	"strconv"
	"strings"

	deliciousfood "github.com/AUrban/DeliciousFood"
	"github.com/AUrban/DeliciousFood/db/filter"
	"github.com/AUrban/DeliciousFood/db/sqlite"
)

// Query is a lazy, composable view of one entity type. Narrowing methods
// return a new Query and never touch the database; rows are only read when
// List, First, or Count is called.
//
// A tracked Query (the default) runs inside the active unit of work and
// requires one to be open. An untracked Query is read-only: it joins the
// active unit of work if there is one but otherwise reads from the shared
// pool, so it can serve listing and validation reads outside a transaction.
type Query[T Entity] struct {
	store   *Store
	binding Binding[T]

	// predicate subtrees, ANDed together. scope predicates come from tenant
	// scoping and are kept as pre-resolved columns; filters come from parsed
	// client expressions.
	scope   []scopePredicate
	filters []filter.Node

	skip      int
	limit     int // -1 means unbounded
	untracked bool
}

type scopePredicate struct {
	column string
	value  any
}

func newQuery[T Entity](store *Store, b Binding[T], untracked bool) Query[T] {
	return Query[T]{
		store:     store,
		binding:   b,
		limit:     -1,
		untracked: untracked,
	}
}

// scopedTo narrows the query to rows whose column equals value. Scoping
// composes: each call narrows further, never widens.
func (q Query[T]) scopedTo(column string, value any) Query[T] {
	scope := make([]scopePredicate, len(q.scope)+1)
	copy(scope, q.scope)
	scope[len(q.scope)] = scopePredicate{column: column, value: value}
	q.scope = scope
	return q
}

// WithFilter narrows the query by a client-supplied filter expression. An
// empty expression leaves the query unchanged. A malformed expression, or one
// referencing a field the entity does not expose, is reported as a validation
// error on the FilterModel field.
func (q Query[T]) WithFilter(expr string) (Query[T], error) {
	if expr == "" {
		return q, nil
	}

	node, err := filter.Parse(expr)
	if err != nil {
		return q, deliciousfood.NewValidationError("FilterModel", "Invalid query specified")
	}
	for _, f := range node.Fields() {
		if _, ok := q.binding.Fields[f]; !ok {
			return q, deliciousfood.NewValidationError("FilterModel", "Invalid query specified")
		}
	}

	filters := make([]filter.Node, len(q.filters)+1)
	copy(filters, q.filters)
	filters[len(q.filters)] = node
	q.filters = filters
	return q, nil
}

// Where narrows the query by an already-built predicate.
func (q Query[T]) Where(node filter.Node) Query[T] {
	filters := make([]filter.Node, len(q.filters)+1)
	copy(filters, q.filters)
	filters[len(q.filters)] = node
	q.filters = filters
	return q
}

// ApplyPaging skips the first skip rows and, if limit is non-nil, caps the
// result at limit rows. Paging applies after all filtering, before
// materialization.
func (q Query[T]) ApplyPaging(skip int, limit *int) Query[T] {
	q.skip = skip
	if limit != nil {
		q.limit = *limit
	}
	return q
}

// List executes the query and returns all matching rows, ordered by id.
func (q Query[T]) List(ctx context.Context) ([]T, error) {
	conn, err := q.conn(ctx)
	if err != nil {
		return nil, err
	}

	stmt, args, err := q.compile()
	if err != nil {
		return nil, err
	}

	rows, err := conn.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, sqlite.WrapDBError(err)
	}
	defer rows.Close()

	var all []T
	for rows.Next() {
		t, err := q.binding.Scan(rows)
		if err != nil {
			return nil, sqlite.WrapDBError(err)
		}
		all = append(all, t)
	}
	if err := rows.Err(); err != nil {
		return all, sqlite.WrapDBError(err)
	}
	return all, nil
}

// First executes the query and returns its first row. It returns an error
// matching ErrNotFound if no row matches.
func (q Query[T]) First(ctx context.Context) (T, error) {
	var zero T

	one := 1
	items, err := q.ApplyPaging(q.skip, &one).List(ctx)
	if err != nil {
		return zero, err
	}
	if len(items) == 0 {
		return zero, deliciousfood.NewError(q.binding.Name+" query matched nothing", deliciousfood.ErrNotFound)
	}
	return items[0], nil
}

// Count executes the query and returns the number of matching rows, ignoring
// paging.
func (q Query[T]) Count(ctx context.Context) (int, error) {
	conn, err := q.conn(ctx)
	if err != nil {
		return 0, err
	}

	where, args, err := q.compileWhere()
	if err != nil {
		return 0, err
	}

	stmt := "SELECT COUNT(*) FROM " + q.binding.Table + where
	var count int
	if err := conn.QueryRowContext(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, sqlite.WrapDBError(err)
	}
	return count, nil
}

func (q Query[T]) conn(ctx context.Context) (querier, error) {
	if tx := currentTx(ctx); tx != nil {
		return tx, nil
	}
	if q.untracked {
		return q.store.DB, nil
	}
	return nil, deliciousfood.NewError("tracked query requires an active unit of work", deliciousfood.ErrNoTransaction)
}

func (q Query[T]) compile() (string, []any, error) {
	where, args, err := q.compileWhere()
	if err != nil {
		return "", nil, err
	}

	var sb strings.Builder
	sb.WriteString(selectClause(q.binding))
	sb.WriteString(where)
	sb.WriteString(" ORDER BY id")
	if q.limit >= 0 || q.skip > 0 {
		sb.WriteString(" LIMIT ")
		sb.WriteString(strconv.Itoa(q.limit)) // -1 is SQLite's "no limit"
		if q.skip > 0 {
			sb.WriteString(" OFFSET ")
			sb.WriteString(strconv.Itoa(q.skip))
		}
	}
	return sb.String(), args, nil
}

func (q Query[T]) compileWhere() (string, []any, error) {
	var clauses []string
	var args []any

	for _, sp := range q.scope {
		clauses = append(clauses, sp.column+" = ?")
		args = append(args, sp.value)
	}

	resolve := func(field string) (string, bool) {
		col, ok := q.binding.Fields[field]
		return col, ok
	}
	for _, node := range q.filters {
		clause, nodeArgs, err := node.SQL(resolve)
		if err != nil {
			return "", nil, deliciousfood.NewValidationError("FilterModel", "Invalid query specified")
		}
		clauses = append(clauses, clause)
		args = append(args, nodeArgs...)
	}

	if len(clauses) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args, nil
}

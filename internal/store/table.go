package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/GurgoSoft/MIND-sub001/types"
	"github.com/jmoiron/sqlx"
)

// where accumulates AND-ed predicates with positional placeholders.
type where struct {
	clauses []string
	args    []any
}

// add appends expr, replacing each "?" with the next positional placeholder.
func (w *where) add(expr string, args ...any) {
	for _, arg := range args {
		w.args = append(w.args, arg)
		expr = strings.Replace(expr, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.clauses = append(w.clauses, expr)
}

func (w *where) eq(column, value string) {
	if value != "" {
		w.add(column+" = ?", value)
	}
}

func (w *where) eqBool(column string, value *bool) {
	if value != nil {
		w.add(column+" = ?", *value)
	}
}

func (w *where) between(column string, from, to *time.Time) {
	if from != nil {
		w.add(column+" >= ?", *from)
	}
	if to != nil {
		w.add(column+" <= ?", *to)
	}
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// table implements the row-level operations shared by every entity table.
// columns lists every persisted column; mutable the ones an update rewrites.
type table[T any] struct {
	db      *sqlx.DB
	name    string
	columns []string
	mutable []string
	order   string
}

func (t table[T]) selectSQL() string {
	return fmt.Sprintf("SELECT %s FROM %s", joinColumns(t.columns), t.name)
}

func (t table[T]) get(ctx context.Context, id string) (T, error) {
	var row T
	if err := t.db.GetContext(ctx, &row, t.selectSQL()+" WHERE id = $1", id); err != nil {
		return row, translate(err)
	}
	return row, nil
}

func (t table[T]) first(ctx context.Context, w where) (T, error) {
	var row T
	if err := t.db.GetContext(ctx, &row, t.selectSQL()+w.String()+" LIMIT 1", w.args...); err != nil {
		return row, translate(err)
	}
	return row, nil
}

func (t table[T]) insert(ctx context.Context, row T) error {
	query := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (:%s)",
		t.name,
		strings.Join(t.columns, ", "),
		strings.Join(t.columns, ", :"),
	)
	_, err := t.db.NamedExecContext(ctx, query, row)
	return translate(err)
}

func (t table[T]) update(ctx context.Context, row T) error {
	sets := make([]string, 0, len(t.mutable)+1)
	for _, column := range t.mutable {
		sets = append(sets, column+" = :"+column)
	}
	sets = append(sets, "updated_at = :updated_at")
	query := fmt.Sprintf("UPDATE %s SET %s WHERE id = :id", t.name, strings.Join(sets, ", "))
	result, err := t.db.NamedExecContext(ctx, query, row)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

func (t table[T]) delete(ctx context.Context, id string) error {
	result, err := t.db.ExecContext(ctx, "DELETE FROM "+t.name+" WHERE id = $1", id)
	if err != nil {
		return translate(err)
	}
	return requireAffected(result)
}

func (t table[T]) list(ctx context.Context, w where, page types.Page) ([]T, int, error) {
	total, err := t.count(ctx, w)
	if err != nil {
		return nil, 0, err
	}

	page = page.Normalize()
	args := append(append([]any{}, w.args...), page.Limit, page.Offset())
	query := fmt.Sprintf(
		"%s%s ORDER BY %s LIMIT $%d OFFSET $%d",
		t.selectSQL(), w.String(), t.order, len(w.args)+1, len(w.args)+2,
	)
	items := []T{}
	if err := t.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, translate(err)
	}
	return items, total, nil
}

func (t table[T]) count(ctx context.Context, w where) (int, error) {
	var total int
	if err := t.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM "+t.name+w.String(), w.args...); err != nil {
		return 0, translate(err)
	}
	return total, nil
}

// countRefs sums the rows of each reference whose column equals id.
func countRefs(ctx context.Context, db *sqlx.DB, refs []reference, id string) (int, error) {
	total := 0
	for _, ref := range refs {
		var n int
		query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", ref.table, ref.column)
		if err := db.GetContext(ctx, &n, query, id); err != nil {
			return 0, translate(err)
		}
		total += n
	}
	return total, nil
}

// reference names a column that points at another table's id.
type reference struct {
	table  string
	column string
}

func joinColumns(columns []string) string {
	return strings.Join(columns, ", ")
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

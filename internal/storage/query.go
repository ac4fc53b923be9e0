// Answers filtered, sorted and paginated queries over imported tables.

package storage

import (
	"context"
	"fmt"
	"strings"

	"github.com/maruel/tabserve/internal/tabular"
)

// whereClause encodes conditions into a WHERE clause body and its arguments.
// Every condition goes through tab_match so that the grammar behaves as it
// does on files.
type whereClause struct {
	parts []string
	args  []any
}

func (w *whereClause) add(c tabular.Condition, dtype tabular.ColumnType) {
	w.parts = append(w.parts, fmt.Sprintf("%s(%s, ?, ?, ?)", matchFuncName, quoteIdent(c.Column)))
	w.args = append(w.args, string(dtype), string(c.Op), c.Value)
}

func (w *whereClause) String() string {
	if len(w.parts) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.parts, " AND ")
}

// encodeSort encodes keys into an ORDER BY clause. Nulls sort last in both
// directions and ties keep insertion order.
func encodeSort(keys []tabular.SortKey) string {
	var parts []string
	for _, k := range keys {
		dir := "ASC"
		if k.Desc {
			dir = "DESC"
		}
		col := quoteIdent(k.Column)
		parts = append(parts, col+" IS NULL", col+" "+dir)
	}
	parts = append(parts, quoteIdent(ordColumn))
	return " ORDER BY " + strings.Join(parts, ", ")
}

// QueryTable runs the file query semantics against an imported table: the
// filter keeps matching rows, the sort orders them and the limit and offset
// select a window. maxPageSize bounds the limit.
//
// A filter on a column the table lacks yields an empty page; an unknown sort
// column is ignored.
func (s *Store) QueryTable(ctx context.Context, table string, p tabular.Params, maxPageSize int) (*tabular.Page, error) {
	if maxPageSize <= 0 {
		maxPageSize = tabular.DefaultMaxPageSize
	}
	info, err := s.GetTable(ctx, table)
	if err != nil {
		return nil, err
	}
	conds, err := tabular.ParseFilter(p.Filter)
	if err != nil {
		return nil, err
	}
	cols := info.resultColumns()
	types := make(map[string]tabular.ColumnType, len(cols))
	for _, c := range cols {
		types[c.Name] = c.Type
	}
	limit := min(max(p.Limit, 0), maxPageSize)
	offset := max(p.Offset, 0)
	page := &tabular.Page{Limit: limit, Offset: offset, Items: []tabular.Record{}}

	var where whereClause
	for _, c := range conds {
		if _, err := c.Predicate(); err != nil {
			return nil, err
		}
		dtype, ok := types[c.Column]
		if !ok {
			return page, nil
		}
		where.add(c, dtype)
	}

	from := " FROM " + quoteIdent(info.TableName) + where.String()
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*)"+from, where.args...).Scan(&page.Total); err != nil {
		return nil, fmt.Errorf("failed to count rows of %q: %w", table, err)
	}
	if limit == 0 || offset >= page.Total {
		return page, nil
	}

	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = quoteIdent(c.Name)
	}
	keys := tabular.ParseSort(p.Sort, func(c string) bool { _, ok := types[c]; return ok })
	q := "SELECT " + strings.Join(quoted, ", ") + from + encodeSort(keys) + " LIMIT ? OFFSET ?"
	rows, err := s.db.QueryContext(ctx, q, append(where.args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %q: %w", table, err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		raw := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range raw {
			ptrs[i] = &raw[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to read row of %q: %w", table, err)
		}
		values := make([]tabular.Value, len(cols))
		for i, v := range raw {
			values[i] = fromSQL(v, cols[i].Type)
		}
		page.Items = append(page.Items, tabular.NewRecord(cols, values))
	}
	return page, rows.Err()
}

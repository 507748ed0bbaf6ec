package store

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

// ListParams carries pagination, search, filter and sort options shared by
// every list endpoint. Filters a resource does not support are ignored.
type ListParams struct {
	Page       int
	Limit      int
	Search     string
	Sort       string
	Dir        string
	Status     string
	From       *time.Time
	To         *time.Time
	CategoryID *int64
	CustomerID *int64
	PriceMin   *decimal.Decimal
	PriceMax   *decimal.Decimal
	Published  *bool
}

// Normalize clamps page and limit into range.
func (p *ListParams) Normalize(defaultLimit, maxLimit int) {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit < 1 {
		p.Limit = defaultLimit
	}
	if p.Limit > maxLimit {
		p.Limit = maxLimit
	}
}

func (p ListParams) offset() int {
	return (p.Page - 1) * p.Limit
}

// Meta describes one page of a list.
type Meta struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

// Page is one page of T.
type Page[T any] struct {
	Data []T  `json:"data"`
	Meta Meta `json:"meta"`
}

func newMeta(p ListParams, total int64) Meta {
	pages := 0
	if p.Limit > 0 {
		pages = int(math.Ceil(float64(total) / float64(p.Limit)))
	}
	return Meta{Page: p.Page, Limit: p.Limit, Total: total, TotalPages: pages}
}

// sortSpec whitelists the sortable columns of a resource. Unknown keys fall
// back to the default column instead of failing the request.
type sortSpec struct {
	columns  map[string]string
	fallback string
}

func (s sortSpec) orderBy(key, dir string) string {
	col, ok := s.columns[key]
	if !ok {
		col = s.fallback
	}
	direction := "DESC"
	if strings.EqualFold(dir, "asc") {
		direction = "ASC"
	}
	return fmt.Sprintf("%s %s, id %s", col, direction, direction)
}

// filter accumulates AND-ed conditions written with ? placeholders.
type filter struct {
	conds []string
	args  []interface{}
}

func (f *filter) add(cond string, args ...interface{}) {
	f.conds = append(f.conds, cond)
	f.args = append(f.args, args...)
}

// search adds a case-insensitive substring match over columns.
func (f *filter) search(term string, columns ...string) {
	term = strings.TrimSpace(term)
	if term == "" || len(columns) == 0 {
		return
	}
	pattern := "%" + escapeLike(term) + "%"
	parts := make([]string, len(columns))
	args := make([]interface{}, len(columns))
	for i, col := range columns {
		parts[i] = col + " ILIKE ?"
		args[i] = pattern
	}
	f.add("("+strings.Join(parts, " OR ")+")", args...)
}

func (f *filter) where() string {
	if len(f.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conds, " AND ")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// list runs the count and page queries for table under f.
func list[T any](ctx context.Context, db *sqlx.DB, table string, f filter, order string, p ListParams) (*Page[T], error) {
	var total int64
	countQuery := db.Rebind("SELECT COUNT(*) FROM " + table + f.where())
	if err := db.GetContext(ctx, &total, countQuery, f.args...); err != nil {
		return nil, fmt.Errorf("failed to count %s: %w", table, err)
	}

	query := db.Rebind("SELECT * FROM " + table + f.where() + " ORDER BY " + order + " LIMIT ? OFFSET ?")
	args := append(append([]interface{}{}, f.args...), p.Limit, p.offset())

	items := []T{}
	if err := db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}

	return &Page[T]{Data: items, Meta: newMeta(p, total)}, nil
}

package store

import (
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"storefront/internal/apperr"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListParamsNormalize(t *testing.T) {
	p := ListParams{Page: 0, Limit: 0}
	p.Normalize(10, 100)
	assert.Equal(t, 1, p.Page)
	assert.Equal(t, 10, p.Limit)
	assert.Equal(t, 0, p.offset())

	p = ListParams{Page: 3, Limit: 500}
	p.Normalize(10, 100)
	assert.Equal(t, 100, p.Limit)
	assert.Equal(t, 200, p.offset())
}

func TestNewMeta(t *testing.T) {
	m := newMeta(ListParams{Page: 2, Limit: 12}, 25)
	assert.Equal(t, Meta{Page: 2, Limit: 12, Total: 25, TotalPages: 3}, m)

	assert.Equal(t, 0, newMeta(ListParams{Page: 1, Limit: 10}, 0).TotalPages)
}

func TestSortFallsBackOnUnknownColumn(t *testing.T) {
	assert.Equal(t, "price ASC, id ASC", productSort.orderBy("price", "asc"))
	assert.Equal(t, "created_at DESC, id DESC", productSort.orderBy("password_hash; DROP TABLE products", "asc;"))
	assert.Equal(t, "created_at DESC, id DESC", orderSort.orderBy("", ""))
}

func TestFilterSearch(t *testing.T) {
	var f filter
	f.search("  50%_off ", "name", "slug")
	f.add("status = ?", "active")

	assert.Equal(t, " WHERE (name ILIKE ? OR slug ILIKE ?) AND status = ?", f.where())
	assert.Equal(t, []interface{}{`%50\%\_off%`, `%50\%\_off%`, "active"}, f.args)

	var empty filter
	empty.search("   ", "name")
	assert.Equal(t, "", empty.where())
}

func TestMapError(t *testing.T) {
	assert.Nil(t, mapError(nil, "product"))

	conflict := mapError(&pq.Error{Code: pqUniqueViolation, Constraint: "coupons_code_key"}, "coupon")
	assert.Equal(t, apperr.KindConflict, apperr.KindOf(conflict))
	assert.NotContains(t, conflict.(*apperr.Error).Message, "coupons_code_key")

	fk := mapError(fmt.Errorf("insert: %w", &pq.Error{Code: pqForeignKeyViolation}), "product")
	assert.Equal(t, apperr.KindInvalidRequest, apperr.KindOf(fk))

	other := errors.New("connection reset")
	assert.Equal(t, other, mapError(other, "product"))
}

func TestLoadMigrations(t *testing.T) {
	migrations, err := loadMigrations(migrationFS)
	require.NoError(t, err)
	require.Len(t, migrations, 3)

	for i, m := range migrations {
		assert.Equal(t, i+1, m.version)
		assert.NotEmpty(t, m.up)
		assert.NotEmpty(t, m.down)
	}
	assert.Equal(t, "orders", migrations[2].name)
}

func TestLoadMigrationsRejectsBadNames(t *testing.T) {
	fsys := fstest.MapFS{
		"migrations/create_things.up.sql": {Data: []byte("SELECT 1")},
	}
	_, err := loadMigrations(fsys)
	assert.Error(t, err)

	fsys = fstest.MapFS{
		"migrations/0001_things.down.sql": {Data: []byte("SELECT 1")},
	}
	_, err = loadMigrations(fsys)
	assert.Error(t, err)
}

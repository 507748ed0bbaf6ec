package store

import (
	"context"

	"storefront/internal/apperr"
	"storefront/internal/models"
)

var categorySort = sortSpec{
	columns: map[string]string{
		"name":      "name",
		"code":      "code",
		"createdAt": "created_at",
	},
	fallback: "created_at",
}

// ListCategories retrieves a page of categories
func (s *Store) ListCategories(ctx context.Context, p ListParams) (*Page[models.Category], error) {
	var f filter
	f.search(p.Search, "name", "code")
	if p.Published != nil {
		f.add("published = ?", *p.Published)
	}
	return list[models.Category](ctx, s.db, "categories", f, categorySort.orderBy(p.Sort, p.Dir), p)
}

// GetCategoryByID retrieves a category by ID
func (s *Store) GetCategoryByID(ctx context.Context, id int64) (*models.Category, error) {
	var c models.Category
	if err := s.db.GetContext(ctx, &c, "SELECT * FROM categories WHERE id = $1", id); err != nil {
		return nil, mapError(err, "category")
	}
	return &c, nil
}

// CategoryParentID returns the parent of a category, nil for a root.
func (s *Store) CategoryParentID(ctx context.Context, id int64) (*int64, error) {
	var parent *int64
	if err := s.db.GetContext(ctx, &parent, "SELECT parent_id FROM categories WHERE id = $1", id); err != nil {
		return nil, mapError(err, "category")
	}
	return parent, nil
}

func (s *Store) CreateCategory(ctx context.Context, c *models.Category) error {
	query := `
		INSERT INTO categories (name, code, description, published, parent_id)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query, c.Name, c.Code, c.Description, c.Published, c.ParentID).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err, "category")
}

func (s *Store) UpdateCategory(ctx context.Context, c *models.Category) error {
	query := `
		UPDATE categories
		SET name = $1, code = $2, description = $3, published = $4, parent_id = $5, updated_at = NOW()
		WHERE id = $6
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query, c.Name, c.Code, c.Description, c.Published, c.ParentID, c.ID).
		Scan(&c.UpdatedAt)
	return mapError(err, "category")
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Conflict("category %d is still referenced", id)
		}
		return mapError(err, "category")
	}
	return expectOne(res, "category")
}

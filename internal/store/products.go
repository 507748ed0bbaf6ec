package store

import (
	"context"
	"fmt"

	"storefront/internal/apperr"
	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

var productSort = sortSpec{
	columns: map[string]string{
		"name":      "name",
		"price":     "price",
		"stock":     "stock",
		"status":    "status",
		"createdAt": "created_at",
		"updatedAt": "updated_at",
	},
	fallback: "created_at",
}

// ListProducts retrieves a page of products
func (s *Store) ListProducts(ctx context.Context, p ListParams) (*Page[models.Product], error) {
	var f filter
	f.search(p.Search, "name", "slug")
	if p.CategoryID != nil {
		f.add("category_id = ?", *p.CategoryID)
	}
	if p.PriceMin != nil {
		f.add("COALESCE(sale_price, price) >= ?", *p.PriceMin)
	}
	if p.PriceMax != nil {
		f.add("COALESCE(sale_price, price) <= ?", *p.PriceMax)
	}
	if p.Status != "" {
		f.add("status = ?", p.Status)
	}
	if p.Published != nil {
		f.add("is_published = ?", *p.Published)
	}

	return list[models.Product](ctx, s.db, "products", f, productSort.orderBy(p.Sort, p.Dir), p)
}

// GetProductByID retrieves a product by ID
func (s *Store) GetProductByID(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE id = $1", id)
	if err != nil {
		return nil, mapError(err, "product")
	}
	return &product, nil
}

// GetProductBySlug retrieves a product by slug
func (s *Store) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product, "SELECT * FROM products WHERE slug = $1", slug)
	if err != nil {
		return nil, mapError(err, "product")
	}
	return &product, nil
}

// CreateProduct inserts a product and fills in its generated fields
func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	query := `
		INSERT INTO products (name, slug, description, price, sale_price, stock, category_id, is_published, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Price, p.SalePrice, p.Stock, p.CategoryID, p.IsPublished, p.Status,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	return mapError(err, "product")
}

// UpdateProduct overwrites every editable column of a product
func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	query := `
		UPDATE products
		SET name = $1, slug = $2, description = $3, price = $4, sale_price = $5, stock = $6,
		    category_id = $7, is_published = $8, status = $9, updated_at = NOW()
		WHERE id = $10
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		p.Name, p.Slug, p.Description, p.Price, p.SalePrice, p.Stock, p.CategoryID, p.IsPublished, p.Status, p.ID,
	).Scan(&p.UpdatedAt)
	return mapError(err, "product")
}

// ToggleProductPublished flips is_published and returns the updated row
func (s *Store) ToggleProductPublished(ctx context.Context, id int64) (*models.Product, error) {
	var product models.Product
	err := s.db.GetContext(ctx, &product,
		"UPDATE products SET is_published = NOT is_published, updated_at = NOW() WHERE id = $1 RETURNING *", id)
	if err != nil {
		return nil, mapError(err, "product")
	}
	return &product, nil
}

// DeleteProduct removes a product that no order references
func (s *Store) DeleteProduct(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM products WHERE id = $1", id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return apperr.Conflict("product %d is referenced by orders; archive it instead", id)
		}
		return mapError(err, "product")
	}
	return expectOne(res, "product")
}

// LockPurchasableProducts loads the published, active products among ids
// and takes a row-level write lock on each. Rows are locked in id order so
// that concurrent checkouts over overlapping carts cannot deadlock.
func (t *Tx) LockPurchasableProducts(ctx context.Context, ids []int64) ([]models.Product, error) {
	if len(ids) == 0 {
		return []models.Product{}, nil
	}

	query, args, err := sqlx.In(`
		SELECT * FROM products
		WHERE id IN (?) AND is_published = TRUE AND status = 'active'
		ORDER BY id
		FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}

	products := []models.Product{}
	if err := t.tx.SelectContext(ctx, &products, t.tx.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}
	return products, nil
}

// DecrementStock removes quantity units from a locked product row
func (t *Tx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	res, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock - $1, updated_at = NOW() WHERE id = $2 AND stock >= $1",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to decrement stock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n != 1 {
		return apperr.Newf(apperr.KindInsufficientStock, "insufficient stock for product %d", productID)
	}
	return nil
}

// IncrementStock returns quantity units to a product
func (t *Tx) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	_, err := t.tx.ExecContext(ctx,
		"UPDATE products SET stock = stock + $1, updated_at = NOW() WHERE id = $2",
		quantity, productID)
	if err != nil {
		return fmt.Errorf("failed to increment stock: %w", err)
	}
	return nil
}

package store

import (
	"context"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

var couponSort = sortSpec{
	columns: map[string]string{
		"code":      "code",
		"amount":    "amount",
		"expiresAt": "expires_at",
		"createdAt": "created_at",
	},
	fallback: "created_at",
}

// ListCoupons retrieves a page of coupons. Status accepts "active",
// "inactive" and "expired".
func (s *Store) ListCoupons(ctx context.Context, p ListParams) (*Page[models.Coupon], error) {
	var f filter
	f.search(p.Search, "code", "title")
	switch p.Status {
	case "active":
		f.add("active = TRUE AND (expires_at IS NULL OR expires_at >= NOW())")
	case "inactive":
		f.add("active = FALSE")
	case "expired":
		f.add("expires_at < NOW()")
	}
	return list[models.Coupon](ctx, s.db, "coupons", f, couponSort.orderBy(p.Sort, p.Dir), p)
}

func (s *Store) GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error) {
	var c models.Coupon
	if err := s.db.GetContext(ctx, &c, "SELECT * FROM coupons WHERE id = $1", id); err != nil {
		return nil, mapError(err, "coupon")
	}
	return &c, nil
}

// GetCouponByCode looks up a coupon by its exact, already normalized code
func (s *Store) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return getCouponByCode(ctx, s.db, code)
}

// GetCouponByCode reads a coupon inside the transaction
func (t *Tx) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	return getCouponByCode(ctx, t.tx, code)
}

func getCouponByCode(ctx context.Context, q sqlx.QueryerContext, code string) (*models.Coupon, error) {
	var c models.Coupon
	if err := sqlx.GetContext(ctx, q, &c, "SELECT * FROM coupons WHERE code = $1", code); err != nil {
		return nil, mapError(err, "coupon")
	}
	return &c, nil
}

func (s *Store) CreateCoupon(ctx context.Context, c *models.Coupon) error {
	query := `
		INSERT INTO coupons (code, title, discount_type, amount, min_spend, active, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at, updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		c.Code, c.Title, c.DiscountType, c.Amount, c.MinSpend, c.Active, c.ExpiresAt,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	return mapError(err, "coupon")
}

func (s *Store) UpdateCoupon(ctx context.Context, c *models.Coupon) error {
	query := `
		UPDATE coupons
		SET code = $1, title = $2, discount_type = $3, amount = $4, min_spend = $5,
		    active = $6, expires_at = $7, updated_at = NOW()
		WHERE id = $8
		RETURNING updated_at`

	err := s.db.QueryRowxContext(ctx, query,
		c.Code, c.Title, c.DiscountType, c.Amount, c.MinSpend, c.Active, c.ExpiresAt, c.ID,
	).Scan(&c.UpdatedAt)
	return mapError(err, "coupon")
}

func (s *Store) DeleteCoupon(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM coupons WHERE id = $1", id)
	if err != nil {
		return mapError(err, "coupon")
	}
	return expectOne(res, "coupon")
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/shopspring/decimal"
)

// CouponReason explains why a coupon was rejected.
type CouponReason string

const (
	CouponNotFound      CouponReason = "not_found"
	CouponInactive      CouponReason = "inactive"
	CouponExpired       CouponReason = "expired"
	CouponBelowMinSpend CouponReason = "below_min_spend"
)

var hundred = decimal.NewFromInt(100)

// CouponResult is the outcome of evaluating a coupon against a subtotal.
type CouponResult struct {
	Valid          bool                `json:"valid"`
	Reason         CouponReason        `json:"reason,omitempty"`
	Message        string              `json:"message,omitempty"`
	Code           string              `json:"code,omitempty"`
	DiscountType   models.DiscountType `json:"discountType,omitempty"`
	Amount         *decimal.Decimal    `json:"amount,omitempty"`
	MinSpend       *decimal.Decimal    `json:"minSpend,omitempty"`
	DiscountAmount decimal.Decimal     `json:"discountAmount"`
}

func rejectCoupon(reason CouponReason, message string) CouponResult {
	return CouponResult{Reason: reason, Message: message, DiscountAmount: decimal.Zero}
}

// EvaluateCoupon checks c against subtotal at time now. A nil coupon is
// reported as not found. A coupon expiring exactly at now is still valid.
// The discount never exceeds the subtotal.
func EvaluateCoupon(c *models.Coupon, subtotal decimal.Decimal, now time.Time) CouponResult {
	if c == nil {
		return rejectCoupon(CouponNotFound, "Coupon not found")
	}
	if !c.Active {
		return rejectCoupon(CouponInactive, "Coupon is not active")
	}
	if c.ExpiresAt != nil && c.ExpiresAt.Before(now) {
		return rejectCoupon(CouponExpired, "Coupon has expired")
	}
	if subtotal.LessThan(c.MinSpend) {
		return rejectCoupon(CouponBelowMinSpend,
			fmt.Sprintf("Minimum spend of %s required for this coupon", c.MinSpend.StringFixed(2)))
	}

	var discount decimal.Decimal
	switch c.DiscountType {
	case models.DiscountPercent:
		discount = subtotal.Mul(c.Amount).Div(hundred).Round(2)
	default:
		discount = c.Amount
	}
	discount = decimal.Min(discount, subtotal)
	if discount.IsNegative() {
		discount = decimal.Zero
	}

	amount, minSpend := c.Amount, c.MinSpend
	return CouponResult{
		Valid:          true,
		Code:           c.Code,
		DiscountType:   c.DiscountType,
		Amount:         &amount,
		MinSpend:       &minSpend,
		DiscountAmount: discount,
	}
}

// NormalizeCouponCode trims and upper-cases a code the way it is stored.
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

type CouponRepository interface {
	ListCoupons(ctx context.Context, p store.ListParams) (*store.Page[models.Coupon], error)
	GetCouponByID(ctx context.Context, id int64) (*models.Coupon, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CreateCoupon(ctx context.Context, c *models.Coupon) error
	UpdateCoupon(ctx context.Context, c *models.Coupon) error
	DeleteCoupon(ctx context.Context, id int64) error
}

// CouponService validates coupons for the storefront and manages them for
// the back office.
type CouponService struct {
	repo CouponRepository
	now  func() time.Time
}

func NewCouponService(repo CouponRepository) *CouponService {
	return &CouponService{repo: repo, now: time.Now}
}

// ValidateCouponRequest is the storefront coupon check body
type ValidateCouponRequest struct {
	Code     string          `json:"code" binding:"required"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

// Validate looks up code and evaluates it against subtotal without side
// effects on stored data.
func (s *CouponService) Validate(ctx context.Context, code string, subtotal decimal.Decimal) (CouponResult, error) {
	code = NormalizeCouponCode(code)
	if code == "" {
		return CouponResult{}, apperr.InvalidRequest("coupon code is required")
	}
	if subtotal.IsNegative() {
		return CouponResult{}, apperr.InvalidRequest("subtotal must not be negative")
	}

	coupon, err := lookupCoupon(ctx, s.repo, code)
	if err != nil {
		return CouponResult{}, err
	}

	result := EvaluateCoupon(coupon, subtotal, s.now())
	recordCouponResult(result)
	return result, nil
}

type couponLookup interface {
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// lookupCoupon returns nil without error when no coupon has the code.
func lookupCoupon(ctx context.Context, repo couponLookup, code string) (*models.Coupon, error) {
	coupon, err := repo.GetCouponByCode(ctx, code)
	if apperr.Is(err, apperr.KindNotFound) {
		return nil, nil
	}
	return coupon, err
}

func recordCouponResult(r CouponResult) {
	label := "valid"
	if !r.Valid {
		label = string(r.Reason)
	}
	util.CouponValidationsTotal.WithLabelValues(label).Inc()
}

// CouponInput carries the writable coupon fields. Nil fields are left
// unchanged on update.
type CouponInput struct {
	Code         *string              `json:"code"`
	Title        *string              `json:"title"`
	DiscountType *models.DiscountType `json:"discountType"`
	Amount       *decimal.Decimal     `json:"amount"`
	MinSpend     *decimal.Decimal     `json:"minSpend"`
	Active       *bool                `json:"active"`
	ExpiresAt    Optional[time.Time]  `json:"expiresAt"`
}

func (in *CouponInput) apply(c *models.Coupon) {
	if in.Code != nil {
		c.Code = NormalizeCouponCode(*in.Code)
	}
	if in.Title != nil {
		c.Title = strings.TrimSpace(*in.Title)
	}
	if in.DiscountType != nil {
		c.DiscountType = *in.DiscountType
	}
	if in.Amount != nil {
		c.Amount = *in.Amount
	}
	if in.MinSpend != nil {
		c.MinSpend = *in.MinSpend
	}
	if in.Active != nil {
		c.Active = *in.Active
	}
	if in.ExpiresAt.Set {
		c.ExpiresAt = in.ExpiresAt.Value
	}
}

func validateCoupon(c *models.Coupon) error {
	if c.Code == "" {
		return apperr.InvalidRequest("code is required")
	}
	if !c.DiscountType.Valid() {
		return apperr.InvalidRequest("discountType must be percent or fixed")
	}
	if !c.Amount.IsPositive() {
		return apperr.InvalidRequest("amount must be greater than 0")
	}
	if c.DiscountType == models.DiscountPercent && c.Amount.GreaterThan(hundred) {
		return apperr.InvalidRequest("percent amount must not exceed 100")
	}
	if c.MinSpend.IsNegative() {
		return apperr.InvalidRequest("minSpend must not be negative")
	}
	return nil
}

func (s *CouponService) List(ctx context.Context, p store.ListParams) (*store.Page[models.Coupon], error) {
	return s.repo.ListCoupons(ctx, p)
}

func (s *CouponService) Get(ctx context.Context, id int64) (*models.Coupon, error) {
	return s.repo.GetCouponByID(ctx, id)
}

func (s *CouponService) Create(ctx context.Context, in *CouponInput) (*models.Coupon, error) {
	c := &models.Coupon{Active: true, MinSpend: decimal.Zero}
	in.apply(c)
	if err := validateCoupon(c); err != nil {
		return nil, err
	}
	if err := s.repo.CreateCoupon(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CouponService) Update(ctx context.Context, id int64, in *CouponInput) (*models.Coupon, error) {
	c, err := s.repo.GetCouponByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(c)
	if err := validateCoupon(c); err != nil {
		return nil, err
	}
	if err := s.repo.UpdateCoupon(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *CouponService) Delete(ctx context.Context, id int64) error {
	return s.repo.DeleteCoupon(ctx, id)
}

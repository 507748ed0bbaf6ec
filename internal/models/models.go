package models

import (
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Money fields are rendered as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

// Product represents a product in the catalog
type Product struct {
	ID          int64            `db:"id" json:"id"`
	Name        string           `db:"name" json:"name"`
	Slug        string           `db:"slug" json:"slug"`
	Description string           `db:"description" json:"description"`
	Price       decimal.Decimal  `db:"price" json:"price"`
	SalePrice   *decimal.Decimal `db:"sale_price" json:"salePrice"`
	Stock       int              `db:"stock" json:"stock"`
	CategoryID  *int64           `db:"category_id" json:"categoryId"`
	IsPublished bool             `db:"is_published" json:"isPublished"`
	Status      ProductStatus    `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time        `db:"updated_at" json:"updatedAt"`
}

// UnitPrice is the price charged per unit: the sale price when set,
// otherwise the list price.
func (p *Product) UnitPrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// Purchasable reports whether the storefront may sell the product.
func (p *Product) Purchasable() bool {
	return p.IsPublished && p.Status == ProductStatusActive
}

// Category groups products for browsing
type Category struct {
	ID          int64     `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Code        string    `db:"code" json:"code"`
	Description string    `db:"description" json:"description"`
	Published   bool      `db:"published" json:"published"`
	ParentID    *int64    `db:"parent_id" json:"parentId"`
	CreatedAt   time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time `db:"updated_at" json:"updatedAt"`
}

// Coupon is a discount code redeemable at checkout
type Coupon struct {
	ID           int64           `db:"id" json:"id"`
	Code         string          `db:"code" json:"code"`
	Title        string          `db:"title" json:"title"`
	DiscountType DiscountType    `db:"discount_type" json:"discountType"`
	Amount       decimal.Decimal `db:"amount" json:"amount"`
	MinSpend     decimal.Decimal `db:"min_spend" json:"minSpend"`
	Active       bool            `db:"active" json:"active"`
	ExpiresAt    *time.Time      `db:"expires_at" json:"expiresAt"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updatedAt"`
}

// Order represents a customer order. CustomerID is set only for orders
// placed by an authenticated customer; the contact fields are a snapshot
// taken at checkout and are always present.
type Order struct {
	ID              int64           `db:"id" json:"id"`
	InvoiceNo       string          `db:"invoice_no" json:"invoiceNo"`
	CustomerID      *int64          `db:"customer_id" json:"customerId"`
	CustomerName    string          `db:"customer_name" json:"customerName"`
	CustomerPhone   string          `db:"customer_phone" json:"customerPhone"`
	CustomerAddress string          `db:"customer_address" json:"customerAddress"`
	CustomerNotes   string          `db:"customer_notes" json:"customerNotes"`
	PaymentMethod   PaymentMethod   `db:"payment_method" json:"paymentMethod"`
	Subtotal        decimal.Decimal `db:"subtotal" json:"subtotal"`
	DiscountAmount  decimal.Decimal `db:"discount_amount" json:"discountAmount"`
	TaxAmount       decimal.Decimal `db:"tax_amount" json:"taxAmount"`
	ShippingAmount  decimal.Decimal `db:"shipping_amount" json:"shippingAmount"`
	TotalAmount     decimal.Decimal `db:"total_amount" json:"totalAmount"`
	CouponCode      *string         `db:"coupon_code" json:"couponCode"`
	Status          OrderStatus     `db:"status" json:"status"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
	Items           []OrderItem     `db:"-" json:"items,omitempty"`
}

// OrderItem is an immutable order line; Price is the unit price captured
// when the order was placed.
type OrderItem struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"orderId"`
	ProductID   int64           `db:"product_id" json:"productId"`
	ProductName string          `db:"product_name" json:"productName"`
	Quantity    int             `db:"quantity" json:"quantity"`
	Price       decimal.Decimal `db:"price" json:"price"`
}

// LineTotal returns Price * Quantity.
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Customer is a storefront account
type Customer struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Email        string    `db:"email" json:"email"`
	Phone        string    `db:"phone" json:"phone"`
	Address      string    `db:"address" json:"address"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Staff is a back-office account
type Staff struct {
	ID           int64       `db:"id" json:"id"`
	Name         string      `db:"name" json:"name"`
	Email        string      `db:"email" json:"email"`
	Phone        string      `db:"phone" json:"phone"`
	Role         StaffRole   `db:"role" json:"role"`
	Status       StaffStatus `db:"status" json:"status"`
	Routes       StringList  `db:"routes" json:"routes"`
	PasswordHash string      `db:"password_hash" json:"-"`
	JoiningDate  *time.Time  `db:"joining_date" json:"joiningDate"`
	CreatedAt    time.Time   `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/jmoiron/sqlx"
)

var orderSort = sortSpec{
	columns: map[string]string{
		"invoiceNo":    "invoice_no",
		"customerName": "customer_name",
		"totalAmount":  "total_amount",
		"status":       "status",
		"createdAt":    "created_at",
	},
	fallback: "created_at",
}

// ErrDuplicateInvoice is returned by CreateOrder when the invoice number is
// already taken. The transaction stays usable so the caller can retry.
var ErrDuplicateInvoice = errors.New("duplicate invoice number")

// CreateOrder creates a new order inside the transaction
func (t *Tx) CreateOrder(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (invoice_no, customer_id, customer_name, customer_phone, customer_address,
		                    customer_notes, payment_method, subtotal, discount_amount, tax_amount,
		                    shipping_amount, total_amount, coupon_code, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (invoice_no) DO NOTHING
		RETURNING id, created_at, updated_at`

	err := t.tx.QueryRowxContext(ctx, query,
		order.InvoiceNo, order.CustomerID, order.CustomerName, order.CustomerPhone, order.CustomerAddress,
		order.CustomerNotes, order.PaymentMethod, order.Subtotal, order.DiscountAmount, order.TaxAmount,
		order.ShippingAmount, order.TotalAmount, order.CouponCode, order.Status,
	).Scan(&order.ID, &order.CreatedAt, &order.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrDuplicateInvoice
	}
	if err != nil {
		return mapError(fmt.Errorf("failed to create order: %w", err), "order")
	}
	return nil
}

// CreateOrderItems inserts all lines of an order with one statement and
// fills in their ids.
func (t *Tx) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}

	values := make([]string, 0, len(items))
	args := make([]interface{}, 0, len(items)*5)
	for _, item := range items {
		values = append(values, "(?, ?, ?, ?, ?)")
		args = append(args, item.OrderID, item.ProductID, item.ProductName, item.Quantity, item.Price)
	}

	query := t.tx.Rebind(
		"INSERT INTO order_items (order_id, product_id, product_name, quantity, price) VALUES " +
			strings.Join(values, ", ") + " RETURNING id")

	rows, err := t.tx.QueryxContext(ctx, query, args...)
	if err != nil {
		return mapError(fmt.Errorf("failed to create order items: %w", err), "order item")
	}
	defer rows.Close()

	for i := 0; rows.Next(); i++ {
		if i >= len(items) {
			return fmt.Errorf("unexpected extra order item id")
		}
		if err := rows.Scan(&items[i].ID); err != nil {
			return err
		}
	}
	return rows.Err()
}

// LockOrder loads an order and takes a row-level write lock on it
func (t *Tx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := t.tx.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1 FOR UPDATE", id); err != nil {
		return nil, mapError(err, "order")
	}
	return &order, nil
}

// UpdateOrderStatus updates order status
func (t *Tx) UpdateOrderStatus(ctx context.Context, order *models.Order, status models.OrderStatus) error {
	err := t.tx.QueryRowxContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 RETURNING updated_at",
		status, order.ID).Scan(&order.UpdatedAt)
	if err != nil {
		return mapError(err, "order")
	}
	order.Status = status
	return nil
}

// GetOrderItems retrieves the lines of an order inside the transaction
func (t *Tx) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return getOrderItems(ctx, t.tx, orderID)
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id); err != nil {
		return nil, mapError(err, "order")
	}
	return &order, nil
}

// GetOrderByInvoice retrieves an order by invoice number
func (s *Store) GetOrderByInvoice(ctx context.Context, invoiceNo string) (*models.Order, error) {
	var order models.Order
	if err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE invoice_no = $1", invoiceNo); err != nil {
		return nil, mapError(err, "order")
	}
	return &order, nil
}

// GetOrderItemsByOrderID retrieves all items for an order
func (s *Store) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return getOrderItems(ctx, s.db, orderID)
}

func getOrderItems(ctx context.Context, q sqlx.QueryerContext, orderID int64) ([]models.OrderItem, error) {
	items := []models.OrderItem{}
	err := sqlx.SelectContext(ctx, q, &items,
		"SELECT * FROM order_items WHERE order_id = $1 ORDER BY id", orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order items: %w", err)
	}
	return items, nil
}

// ListOrders retrieves a page of orders. Search matches the customer name,
// phone or invoice number; From/To bound the creation time.
func (s *Store) ListOrders(ctx context.Context, p ListParams) (*Page[models.Order], error) {
	var f filter
	f.search(p.Search, "customer_name", "customer_phone", "invoice_no")
	if p.Status != "" {
		f.add("status = ?", p.Status)
	}
	if p.CustomerID != nil {
		f.add("customer_id = ?", *p.CustomerID)
	}
	if p.From != nil {
		f.add("created_at >= ?", *p.From)
	}
	if p.To != nil {
		f.add("created_at <= ?", *p.To)
	}
	return list[models.Order](ctx, s.db, "orders", f, orderSort.orderBy(p.Sort, p.Dir), p)
}

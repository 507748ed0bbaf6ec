package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"storefront/config"
	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"
	"storefront/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	maxInvoiceAttempts = 3
	idempotencyScope   = "orders"

	// maxLineQuantity is the largest quantity order_items.quantity holds.
	maxLineQuantity = math.MaxInt32
)

// OrderTx is the set of transactional operations order placement and
// status changes need. *store.Tx implements it.
type OrderTx interface {
	LockPurchasableProducts(ctx context.Context, ids []int64) ([]models.Product, error)
	GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error)
	CreateOrder(ctx context.Context, order *models.Order) error
	CreateOrderItems(ctx context.Context, items []models.OrderItem) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	LockOrder(ctx context.Context, id int64) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, order *models.Order, status models.OrderStatus) error
	GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	IncrementStock(ctx context.Context, productID int64, quantity int) error
}

type OrderRepository interface {
	RunInTx(ctx context.Context, fn func(tx OrderTx) error) error
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrderByInvoice(ctx context.Context, invoiceNo string) (*models.Order, error)
	GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error)
	ListOrders(ctx context.Context, p store.ListParams) (*store.Page[models.Order], error)
}

// EventPublisher is implemented by *broker.EventPublisher.
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event *models.OrderPlacedEvent) error
	PublishOrderStatusChanged(ctx context.Context, event *models.OrderStatusChangedEvent) error
}

// IdempotencyStore is implemented by *redisclient.IdempotencyStore.
type IdempotencyStore interface {
	Claim(ctx context.Context, scope, key string) (bool, error)
	Result(ctx context.Context, scope, key string) ([]byte, bool, error)
	Complete(ctx context.Context, scope, key string, result []byte) error
	Release(ctx context.Context, scope, key string) error
}

type sqlOrderRepository struct {
	*store.Store
}

// NewOrderRepository adapts a store to OrderRepository.
func NewOrderRepository(s *store.Store) OrderRepository {
	return sqlOrderRepository{Store: s}
}

func (r sqlOrderRepository) RunInTx(ctx context.Context, fn func(tx OrderTx) error) error {
	return r.Store.RunInTx(ctx, func(tx *store.Tx) error { return fn(tx) })
}

// OrderService handles order business logic
type OrderService struct {
	repo            OrderRepository
	events          EventPublisher
	idempotency     IdempotencyStore
	restockOnCancel bool
	logger          *zap.Logger

	now       func() time.Time
	invoiceNo func(time.Time) string
}

// NewOrderService creates a new order service. events and idempotency may
// be nil.
func NewOrderService(repo OrderRepository, events EventPublisher, idempotency IdempotencyStore, cfg config.BusinessConfig) *OrderService {
	return &OrderService{
		repo:            repo,
		events:          events,
		idempotency:     idempotency,
		restockOnCancel: cfg.RestockOnCancel,
		logger:          util.GetLogger(),
		now:             time.Now,
		invoiceNo:       newInvoiceNo,
	}
}

// newInvoiceNo returns STORE-<unix millis>-<6 hex chars>.
func newInvoiceNo(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("STORE-%d-%s", now.UnixMilli(), strings.ToUpper(suffix))
}

// CustomerContact is the contact snapshot stored on every order
type CustomerContact struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Notes   string `json:"notes"`
}

// OrderItemRequest represents an item in an order
type OrderItemRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"qty"`
}

// PlaceOrderRequest is the storefront checkout body. CustomerID and
// IdempotencyKey come from the request context, not the body.
type PlaceOrderRequest struct {
	Customer       CustomerContact    `json:"customer"`
	PaymentMethod  string             `json:"paymentMethod"`
	Items          []OrderItemRequest `json:"items"`
	CouponCode     string             `json:"couponCode"`
	CustomerID     *int64             `json:"-"`
	IdempotencyKey string             `json:"-"`
}

// OrderSummary is returned after a successful checkout
type OrderSummary struct {
	OrderID       int64                `json:"orderId"`
	InvoiceNo     string               `json:"invoiceNo"`
	Subtotal      decimal.Decimal      `json:"subtotal"`
	Discount      decimal.Decimal      `json:"discount"`
	Tax           decimal.Decimal      `json:"tax"`
	Shipping      decimal.Decimal      `json:"shipping"`
	Total         decimal.Decimal      `json:"total"`
	PaymentMethod models.PaymentMethod `json:"paymentMethod"`
}

// InsufficientStockData is attached to InsufficientStock errors
type InsufficientStockData struct {
	ProductID int64  `json:"productId"`
	Name      string `json:"name"`
	Available int    `json:"available"`
	Requested int    `json:"requested"`
}

type cartLine struct {
	productID int64
	quantity  int
}

// validate checks the request shape and returns the payment method and
// the cart with duplicate products merged, in first-seen order.
func (req *PlaceOrderRequest) validate() (models.PaymentMethod, []cartLine, error) {
	req.Customer.Name = strings.TrimSpace(req.Customer.Name)
	req.Customer.Phone = strings.TrimSpace(req.Customer.Phone)
	req.Customer.Address = strings.TrimSpace(req.Customer.Address)
	req.Customer.Notes = strings.TrimSpace(req.Customer.Notes)

	var missing []string
	if req.Customer.Name == "" {
		missing = append(missing, "customer.name")
	}
	if req.Customer.Phone == "" {
		missing = append(missing, "customer.phone")
	}
	if req.Customer.Address == "" {
		missing = append(missing, "customer.address")
	}
	if len(missing) > 0 {
		return "", nil, apperr.InvalidRequest("%s required", strings.Join(missing, ", ")).
			WithData(fields{"fields": missing})
	}

	method, ok := models.ParsePaymentMethod(req.PaymentMethod)
	if !ok {
		return "", nil, apperr.InvalidRequest("paymentMethod must be one of COD, TRANSFER, EWALLET")
	}

	if len(req.Items) == 0 {
		return "", nil, apperr.InvalidRequest("items must not be empty")
	}

	index := make(map[int64]int, len(req.Items))
	lines := make([]cartLine, 0, len(req.Items))
	for i, item := range req.Items {
		if item.ProductID <= 0 {
			return "", nil, apperr.InvalidRequest("items[%d].productId must be a positive integer", i)
		}
		if item.Quantity < 1 {
			return "", nil, apperr.InvalidRequest("items[%d].qty must be at least 1", i)
		}
		if item.Quantity > maxLineQuantity {
			return "", nil, apperr.InvalidRequest("items[%d].qty must be at most %d", i, maxLineQuantity)
		}
		if at, seen := index[item.ProductID]; seen {
			if lines[at].quantity > maxLineQuantity-item.Quantity {
				return "", nil, apperr.InvalidRequest("total qty for product %d must be at most %d", item.ProductID, maxLineQuantity)
			}
			lines[at].quantity += item.Quantity
			continue
		}
		index[item.ProductID] = len(lines)
		lines = append(lines, cartLine{productID: item.ProductID, quantity: item.Quantity})
	}

	return method, lines, nil
}

// fields is the shape of error data maps.
type fields = map[string]interface{}

// CreateOrder places an order in a single transaction: products are locked,
// stock is checked and decremented, and the coupon is applied. Any failure
// rolls the whole transaction back.
func (s *OrderService) CreateOrder(ctx context.Context, req *PlaceOrderRequest) (summary *OrderSummary, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.CreateOrder")
	defer func() { util.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.OrderPlacementLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			util.OrdersFailedTotal.WithLabelValues(apperr.KindOf(err).String()).Inc()
		}
	}()

	method, lines, err := req.validate()
	if err != nil {
		return nil, err
	}

	key := strings.TrimSpace(req.IdempotencyKey)
	if key != "" && s.idempotency != nil {
		if replay, done := s.replay(ctx, key); done {
			return replay, nil
		}
		claimed, claimErr := s.idempotency.Claim(ctx, idempotencyScope, key)
		switch {
		case claimErr != nil:
			s.logger.Warn("Idempotency claim failed, continuing without it",
				zap.String("idempotency_key", key), zap.Error(claimErr))
			key = ""
		case !claimed:
			if replay, done := s.replay(ctx, key); done {
				return replay, nil
			}
			return nil, apperr.Conflict("a request with this idempotency key is already in progress")
		}
		if key != "" {
			defer func() {
				if err != nil {
					if relErr := s.idempotency.Release(ctx, idempotencyScope, key); relErr != nil {
						s.logger.Warn("Failed to release idempotency key", zap.Error(relErr))
					}
				}
			}()
		}
	} else {
		key = ""
	}

	order := &models.Order{
		CustomerID:      req.CustomerID,
		CustomerName:    req.Customer.Name,
		CustomerPhone:   req.Customer.Phone,
		CustomerAddress: req.Customer.Address,
		CustomerNotes:   req.Customer.Notes,
		PaymentMethod:   method,
		TaxAmount:       decimal.Zero,
		ShippingAmount:  decimal.Zero,
		Status:          models.OrderStatusPending,
	}
	couponCode := NormalizeCouponCode(req.CouponCode)

	err = s.repo.RunInTx(ctx, func(tx OrderTx) error {
		var txErr error
		order.Items, txErr = s.placeOrder(ctx, tx, order, lines, couponCode)
		return txErr
	})
	if err != nil {
		return nil, err
	}

	summary = &OrderSummary{
		OrderID:       order.ID,
		InvoiceNo:     order.InvoiceNo,
		Subtotal:      order.Subtotal,
		Discount:      order.DiscountAmount,
		Tax:           order.TaxAmount,
		Shipping:      order.ShippingAmount,
		Total:         order.TotalAmount,
		PaymentMethod: order.PaymentMethod,
	}

	util.OrdersPlacedTotal.Inc()
	for _, item := range order.Items {
		util.StockUnitsSoldTotal.Add(float64(item.Quantity))
	}

	logger := util.LoggerFromContext(ctx)
	logger.Info("Order placed",
		zap.Int64("order_id", order.ID),
		zap.String("invoice_no", order.InvoiceNo),
		zap.String("total", order.TotalAmount.String()))

	if key != "" {
		s.remember(ctx, key, summary)
	}
	s.publishPlaced(ctx, order)

	return summary, nil
}

// placeOrder runs inside the placement transaction and fills order.
func (s *OrderService) placeOrder(ctx context.Context, tx OrderTx, order *models.Order, lines []cartLine, couponCode string) ([]models.OrderItem, error) {
	ids := make([]int64, len(lines))
	for i, line := range lines {
		ids[i] = line.productID
	}

	products, err := tx.LockPurchasableProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}

	var unavailable []int64
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			unavailable = append(unavailable, id)
		}
	}
	if len(unavailable) > 0 {
		sort.Slice(unavailable, func(i, j int) bool { return unavailable[i] < unavailable[j] })
		return nil, apperr.Newf(apperr.KindProductUnavailable, "products not available: %s", joinIDs(unavailable)).
			WithData(fields{"productIds": unavailable})
	}

	for _, line := range lines {
		p := byID[line.productID]
		if p.Stock < line.quantity {
			return nil, apperr.Newf(apperr.KindInsufficientStock, "insufficient stock for %s", p.Name).
				WithData(InsufficientStockData{
					ProductID: p.ID,
					Name:      p.Name,
					Available: p.Stock,
					Requested: line.quantity,
				})
		}
	}

	items := make([]models.OrderItem, 0, len(lines))
	subtotal := decimal.Zero
	for _, line := range lines {
		p := byID[line.productID]
		item := models.OrderItem{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    line.quantity,
			Price:       p.UnitPrice(),
		}
		subtotal = subtotal.Add(item.LineTotal())
		items = append(items, item)
	}

	discount := decimal.Zero
	if couponCode != "" {
		coupon, err := lookupCoupon(ctx, tx, couponCode)
		if err != nil {
			return nil, err
		}
		result := EvaluateCoupon(coupon, subtotal, s.now())
		recordCouponResult(result)
		if !result.Valid {
			return nil, apperr.New(apperr.KindInvalidCoupon, result.Message).
				WithData(fields{"code": couponCode, "reason": result.Reason})
		}
		discount = result.DiscountAmount
		order.CouponCode = &couponCode
	}

	order.Subtotal = subtotal
	order.DiscountAmount = discount
	order.TotalAmount = decimal.Max(decimal.Zero,
		subtotal.Sub(discount).Add(order.TaxAmount).Add(order.ShippingAmount))

	if err := s.insertOrder(ctx, tx, order); err != nil {
		return nil, err
	}

	for i := range items {
		items[i].OrderID = order.ID
	}
	if err := tx.CreateOrderItems(ctx, items); err != nil {
		return nil, err
	}

	for _, item := range items {
		if err := tx.DecrementStock(ctx, item.ProductID, item.Quantity); err != nil {
			return nil, err
		}
	}

	return items, nil
}

// insertOrder creates the order row, drawing a new invoice number when the
// previous one is already taken.
func (s *OrderService) insertOrder(ctx context.Context, tx OrderTx, order *models.Order) error {
	for attempt := 1; attempt <= maxInvoiceAttempts; attempt++ {
		order.InvoiceNo = s.invoiceNo(s.now())
		err := tx.CreateOrder(ctx, order)
		if err == nil {
			return nil
		}
		if !errors.Is(err, store.ErrDuplicateInvoice) {
			return err
		}
		util.LoggerFromContext(ctx).Warn("Invoice number collision, retrying",
			zap.String("invoice_no", order.InvoiceNo), zap.Int("attempt", attempt))
	}
	return apperr.New(apperr.KindInternal, "could not allocate an invoice number")
}

func (s *OrderService) replay(ctx context.Context, key string) (*OrderSummary, bool) {
	raw, done, err := s.idempotency.Result(ctx, idempotencyScope, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		return nil, false
	}
	if !done {
		return nil, false
	}
	var summary OrderSummary
	if err := json.Unmarshal(raw, &summary); err != nil {
		s.logger.Warn("Stored idempotent result is unreadable", zap.String("idempotency_key", key), zap.Error(err))
		return nil, false
	}
	s.logger.Info("Duplicate order request detected",
		zap.String("idempotency_key", key),
		zap.Int64("order_id", summary.OrderID))
	return &summary, true
}

func (s *OrderService) remember(ctx context.Context, key string, summary *OrderSummary) {
	raw, err := json.Marshal(summary)
	if err == nil {
		err = s.idempotency.Complete(ctx, idempotencyScope, key, raw)
	}
	if err != nil {
		s.logger.Warn("Failed to store idempotent result", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func (s *OrderService) publishPlaced(ctx context.Context, order *models.Order) {
	if s.events == nil {
		return
	}
	event := &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeOrderPlaced,
			Timestamp: s.now(),
		},
		OrderID:     order.ID,
		InvoiceNo:   order.InvoiceNo,
		CustomerID:  order.CustomerID,
		TotalAmount: order.TotalAmount,
		Items:       models.ItemData(order.Items),
	}
	if err := s.events.PublishOrderPlaced(ctx, event); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.Int64("order_id", order.ID), zap.Error(err))
	}
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

// GetOrder retrieves an order with its lines. ref is a numeric id or an
// invoice number.
func (s *OrderService) GetOrder(ctx context.Context, ref string) (*models.Order, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, apperr.NotFound("order")
	}

	var order *models.Order
	var err error
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		order, err = s.repo.GetOrderByID(ctx, id)
	} else {
		order, err = s.repo.GetOrderByInvoice(ctx, ref)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.repo.GetOrderItemsByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	order.Items = items
	return order, nil
}

// GetOrderByID retrieves an order and its lines by id
func (s *OrderService) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	return s.GetOrder(ctx, strconv.FormatInt(id, 10))
}

func (s *OrderService) ListOrders(ctx context.Context, p store.ListParams) (*store.Page[models.Order], error) {
	if p.Status != "" {
		status, ok := models.ParseOrderStatus(p.Status)
		if !ok {
			return nil, apperr.InvalidRequest("unknown order status %q", p.Status)
		}
		p.Status = string(status)
	}
	return s.repo.ListOrders(ctx, p)
}

// ListCustomerOrders lists the orders owned by one customer.
func (s *OrderService) ListCustomerOrders(ctx context.Context, customerID int64, p store.ListParams) (*store.Page[models.Order], error) {
	p.CustomerID = &customerID
	return s.ListOrders(ctx, p)
}

// UpdateStatus moves an order to a new status. Cancelling returns the line
// quantities to stock in the same transaction when restock-on-cancel is on.
func (s *OrderService) UpdateStatus(ctx context.Context, id int64, status string) (order *models.Order, err error) {
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus")
	defer func() { util.EndSpan(span, err) }()

	next, ok := models.ParseOrderStatus(status)
	if !ok {
		names := make([]string, len(models.OrderStatuses))
		for i, st := range models.OrderStatuses {
			names[i] = string(st)
		}
		return nil, apperr.InvalidRequest("status must be one of %s", strings.Join(names, ", "))
	}

	var from models.OrderStatus
	var restocked bool
	err = s.repo.RunInTx(ctx, func(tx OrderTx) error {
		locked, err := tx.LockOrder(ctx, id)
		if err != nil {
			return err
		}
		order = locked
		from = order.Status

		items, err := tx.GetOrderItems(ctx, order.ID)
		if err != nil {
			return err
		}
		order.Items = items

		if from == next {
			return nil
		}
		if !from.CanTransitionTo(next) {
			return apperr.InvalidRequest("cannot change order status from %s to %s", from, next).
				WithData(fields{"from": from, "to": next})
		}

		if err := tx.UpdateOrderStatus(ctx, order, next); err != nil {
			return err
		}

		if next == models.OrderStatusCancelled && s.restockOnCancel {
			for _, item := range items {
				if err := tx.IncrementStock(ctx, item.ProductID, item.Quantity); err != nil {
					return err
				}
			}
			restocked = true
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if from == next {
		return order, nil
	}

	util.OrderStatusChangesTotal.WithLabelValues(string(next)).Inc()
	if restocked {
		for _, item := range order.Items {
			util.StockUnitsRestockedTotal.Add(float64(item.Quantity))
		}
	}
	util.LoggerFromContext(ctx).Info("Order status changed",
		zap.Int64("order_id", order.ID),
		zap.String("from", string(from)),
		zap.String("to", string(next)),
		zap.Bool("restocked", restocked))

	if s.events != nil {
		event := &models.OrderStatusChangedEvent{
			BaseEvent: models.BaseEvent{
				EventID:   uuid.New().String(),
				EventType: models.EventTypeOrderStatusChanged,
				Timestamp: s.now(),
			},
			OrderID:   order.ID,
			From:      from,
			To:        next,
			Restocked: restocked,
			Items:     models.ItemData(order.Items),
		}
		if err := s.events.PublishOrderStatusChanged(ctx, event); err != nil {
			s.logger.Error("Failed to publish OrderStatusChanged event", zap.Int64("order_id", order.ID), zap.Error(err))
		}
	}

	return order, nil
}

package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"storefront/internal/apperr"
	"storefront/internal/models"
	"storefront/internal/store"

	"github.com/shopspring/decimal"
)

// memState is the data of the in-memory database.
type memState struct {
	products    map[int64]models.Product
	coupons     map[string]models.Coupon
	orders      map[int64]models.Order
	items       map[int64][]models.OrderItem
	nextOrderID int64
	nextItemID  int64
}

func (s *memState) clone() *memState {
	c := &memState{
		products:    make(map[int64]models.Product, len(s.products)),
		coupons:     make(map[string]models.Coupon, len(s.coupons)),
		orders:      make(map[int64]models.Order, len(s.orders)),
		items:       make(map[int64][]models.OrderItem, len(s.items)),
		nextOrderID: s.nextOrderID,
		nextItemID:  s.nextItemID,
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.coupons {
		c.coupons[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]models.OrderItem(nil), v...)
	}
	return c
}

// memRepo is an OrderRepository whose transactions run one at a time on a
// private copy of the data, published only on commit. Serializing every
// transaction is a coarser form of the row locks the SQL store takes.
type memRepo struct {
	mu    sync.Mutex
	state *memState
	txs   int

	failCreateItems error
}

func newMemRepo() *memRepo {
	return &memRepo{state: &memState{
		products: map[int64]models.Product{},
		coupons:  map[string]models.Coupon{},
		orders:   map[int64]models.Order{},
		items:    map[int64][]models.OrderItem{},
	}}
}

func (r *memRepo) addProduct(p models.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p.Status == "" {
		p.Status = models.ProductStatusActive
	}
	r.state.products[p.ID] = p
}

func (r *memRepo) addCoupon(c models.Coupon) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.coupons[c.Code] = c
}

func (r *memRepo) addOrder(o models.Order, items []models.OrderItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state.orders[o.ID] = o
	r.state.items[o.ID] = items
	if o.ID > r.state.nextOrderID {
		r.state.nextOrderID = o.ID
	}
}

func (r *memRepo) stock(id int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.products[id].Stock
}

func (r *memRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.orders)
}

func (r *memRepo) itemsOf(orderID int64) []models.OrderItem {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.items[orderID]
}

func (r *memRepo) txCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.txs
}

func (r *memRepo) RunInTx(ctx context.Context, fn func(tx OrderTx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txs++

	tx := &memTx{state: r.state.clone(), failCreateItems: r.failCreateItems}
	if err := fn(tx); err != nil {
		return err
	}
	r.state = tx.state
	return nil
}

func (r *memRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.state.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	return &o, nil
}

func (r *memRepo) GetOrderByInvoice(ctx context.Context, invoiceNo string) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.state.orders {
		if o.InvoiceNo == invoiceNo {
			o := o
			return &o, nil
		}
	}
	return nil, apperr.NotFound("order")
}

func (r *memRepo) GetOrderItemsByOrderID(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return r.itemsOf(orderID), nil
}

func (r *memRepo) ListOrders(ctx context.Context, p store.ListParams) (*store.Page[models.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []models.Order{}
	for _, o := range r.state.orders {
		if p.CustomerID != nil && (o.CustomerID == nil || *o.CustomerID != *p.CustomerID) {
			continue
		}
		if p.Status != "" && string(o.Status) != p.Status {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return &store.Page[models.Order]{Data: out, Meta: store.Meta{Page: 1, Limit: len(out), Total: int64(len(out)), TotalPages: 1}}, nil
}

type memTx struct {
	state           *memState
	failCreateItems error
}

func (t *memTx) LockPurchasableProducts(ctx context.Context, ids []int64) ([]models.Product, error) {
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := t.state.products[id]; ok && p.Purchasable() {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (t *memTx) GetCouponByCode(ctx context.Context, code string) (*models.Coupon, error) {
	c, ok := t.state.coupons[code]
	if !ok {
		return nil, apperr.NotFound("coupon")
	}
	return &c, nil
}

func (t *memTx) CreateOrder(ctx context.Context, order *models.Order) error {
	for _, o := range t.state.orders {
		if o.InvoiceNo == order.InvoiceNo {
			return store.ErrDuplicateInvoice
		}
	}
	t.state.nextOrderID++
	order.ID = t.state.nextOrderID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	saved := *order
	saved.Items = nil
	t.state.orders[order.ID] = saved
	return nil
}

func (t *memTx) CreateOrderItems(ctx context.Context, items []models.OrderItem) error {
	if t.failCreateItems != nil {
		return t.failCreateItems
	}
	for i := range items {
		t.state.nextItemID++
		items[i].ID = t.state.nextItemID
		t.state.items[items[i].OrderID] = append(t.state.items[items[i].OrderID], items[i])
	}
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	p := t.state.products[productID]
	if p.Stock < quantity {
		return apperr.Newf(apperr.KindInsufficientStock, "insufficient stock for product %d", productID)
	}
	p.Stock -= quantity
	t.state.products[productID] = p
	return nil
}

func (t *memTx) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	o, ok := t.state.orders[id]
	if !ok {
		return nil, apperr.NotFound("order")
	}
	return &o, nil
}

func (t *memTx) UpdateOrderStatus(ctx context.Context, order *models.Order, status models.OrderStatus) error {
	o := t.state.orders[order.ID]
	o.Status = status
	o.UpdatedAt = time.Now()
	t.state.orders[order.ID] = o
	order.Status = status
	order.UpdatedAt = o.UpdatedAt
	return nil
}

func (t *memTx) GetOrderItems(ctx context.Context, orderID int64) ([]models.OrderItem, error) {
	return append([]models.OrderItem(nil), t.state.items[orderID]...), nil
}

func (t *memTx) IncrementStock(ctx context.Context, productID int64, quantity int) error {
	p, ok := t.state.products[productID]
	if !ok {
		return errors.New("unknown product")
	}
	p.Stock += quantity
	t.state.products[productID] = p
	return nil
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu      sync.Mutex
	placed  []*models.OrderPlacedEvent
	changed []*models.OrderStatusChangedEvent
	err     error
}

func (p *recordingPublisher) PublishOrderPlaced(ctx context.Context, e *models.OrderPlacedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, e)
	return p.err
}

func (p *recordingPublisher) PublishOrderStatusChanged(ctx context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return p.err
}

// memIdempotency mirrors the redis claim/complete protocol.
type memIdempotency struct {
	mu      sync.Mutex
	pending map[string]bool
	done    map[string][]byte
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{pending: map[string]bool{}, done: map[string][]byte{}}
}

func (m *memIdempotency) Claim(ctx context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	if m.pending[k] || m.done[k] != nil {
		return false, nil
	}
	m.pending[k] = true
	return true, nil
}

func (m *memIdempotency) Result(ctx context.Context, scope, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	raw, ok := m.done[scope+":"+key]
	return raw, ok, nil
}

func (m *memIdempotency) Complete(ctx context.Context, scope, key string, result []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scope + ":" + key
	delete(m.pending, k)
	m.done[k] = result
	return nil
}

func (m *memIdempotency) Release(ctx context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, scope+":"+key)
	return nil
}

func money(v int64) decimal.Decimal {
	return decimal.NewFromInt(v)
}

func moneyPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func defaultParams() store.ListParams {
	return store.ListParams{Page: 1, Limit: 10}
}

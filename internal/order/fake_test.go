package order

import (
	"context"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

type cartRow struct {
	userID string
	line   CartLine
}

type memState struct {
	products    map[int64]catalog.Product
	cart        map[int64]cartRow
	orders      map[int64]Order
	nextOrderID int64
	nextItemID  int64
}

func (s memState) clone() memState {
	c := s
	c.products = maps.Clone(s.products)
	c.cart = maps.Clone(s.cart)
	c.orders = maps.Clone(s.orders)
	return c
}

// memRepo is an in-memory Repository. WithTx works on a copy of the state
// and swaps it in only when fn succeeds, so a failed transaction leaves
// nothing behind. One transaction runs at a time.
type memRepo struct {
	mu    sync.Mutex
	state memState

	deleteErr       error
	missFirstLookup bool
	lookups         int
	commits         int
}

func newMemRepo() *memRepo {
	return &memRepo{state: memState{
		products: map[int64]catalog.Product{},
		cart:     map[int64]cartRow{},
		orders:   map[int64]Order{},
	}}
}

func (r *memRepo) addProduct(id int64, price string, stock int, active bool) {
	r.state.products[id] = catalog.Product{
		ID:            id,
		Name:          "product",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      active,
	}
}

func (r *memRepo) addCartItem(id int64, userID string, productID int64, qty int) {
	r.state.cart[id] = cartRow{userID: userID, line: CartLine{CartItemID: id, ProductID: productID, Quantity: qty}}
}

func (r *memRepo) cartIDs(userID string) []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []int64
	for id, row := range r.state.cart {
		if row.userID == userID {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids
}

func (r *memRepo) stock(productID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state.products[productID].StockQuantity
}

func (r *memRepo) orderCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.orders)
}

func (r *memRepo) WithTx(ctx context.Context, fn func(Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	st := r.state.clone()
	if err := fn(&memTx{st: &st, repo: r}); err != nil {
		return err
	}
	r.state = st
	r.commits++
	return nil
}

func (r *memRepo) FindByIdempotencyKey(ctx context.Context, userID, key string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lookups++
	if r.missFirstLookup && r.lookups == 1 {
		return Order{}, ErrOrderNotFound
	}
	for _, o := range r.state.orders {
		if o.UserID == userID && o.IdempotencyKey == key {
			return o, nil
		}
	}
	return Order{}, ErrOrderNotFound
}

func (r *memRepo) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	orders := []Order{}
	for _, o := range r.state.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	slices.SortFunc(orders, func(a, b Order) int { return int(b.ID - a.ID) })
	return orders, nil
}

func (r *memRepo) GetByID(ctx context.Context, orderID int64) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.state.orders[orderID]
	if !ok {
		return Order{}, ErrOrderNotFound
	}
	return o, nil
}

type memTx struct {
	st   *memState
	repo *memRepo
}

func (t *memTx) LockCartLines(ctx context.Context, userID string, ids []int64) ([]CartLine, error) {
	var lines []CartLine
	for _, id := range ids {
		row, ok := t.st.cart[id]
		if ok && row.userID == userID {
			lines = append(lines, row.line)
		}
	}
	slices.SortFunc(lines, func(a, b CartLine) int { return int(a.CartItemID - b.CartItemID) })
	return lines, nil
}

func (t *memTx) LockProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error) {
	out := map[int64]catalog.Product{}
	for _, id := range ids {
		if p, ok := t.st.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *memTx) InsertOrder(ctx context.Context, o *Order) error {
	if o.IdempotencyKey != "" {
		for _, existing := range t.st.orders {
			if existing.UserID == o.UserID && existing.IdempotencyKey == o.IdempotencyKey {
				return ErrDuplicateIdempotencyKey
			}
		}
	}

	t.st.nextOrderID++
	o.ID = t.st.nextOrderID
	items := make([]Item, len(o.Items))
	for i, it := range o.Items {
		t.st.nextItemID++
		it.ID = t.st.nextItemID
		it.OrderID = o.ID
		items[i] = it
	}
	o.Items = items
	t.st.orders[o.ID] = *o
	return nil
}

func (t *memTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	p, ok := t.st.products[productID]
	if !ok || p.StockQuantity < quantity {
		return apperr.Detail(catalog.ErrInsufficientStock, "insufficient stock for product %d", productID)
	}
	p.StockQuantity -= quantity
	t.st.products[productID] = p
	return nil
}

func (t *memTx) DeleteCartItems(ctx context.Context, userID string, ids []int64) (int64, error) {
	if t.repo.deleteErr != nil {
		return 0, t.repo.deleteErr
	}
	var n int64
	for _, id := range ids {
		if row, ok := t.st.cart[id]; ok && row.userID == userID {
			delete(t.st.cart, id)
			n++
		}
	}
	return n, nil
}

func (t *memTx) LockOrderStatus(ctx context.Context, orderID int64) (Status, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return "", ErrOrderNotFound
	}
	return o.Status, nil
}

func (t *memTx) SetStatus(ctx context.Context, orderID int64, status Status, at time.Time) error {
	o, ok := t.st.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	o.Status = status
	o.UpdatedAt = at
	t.st.orders[orderID] = o
	return nil
}

type PublisherMock struct {
	mu      sync.Mutex
	placed  []Order
	changed []Order
	from    []Status
	err     error
}

func (p *PublisherMock) PublishOrderPlaced(ctx context.Context, o Order) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.placed = append(p.placed, o)
	return p.err
}

func (p *PublisherMock) PublishOrderStatusChanged(ctx context.Context, o Order, from Status) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, o)
	p.from = append(p.from, from)
	return p.err
}

type invalidatorMock struct {
	mu    sync.Mutex
	users []string
}

func (m *invalidatorMock) Invalidate(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, userID)
}

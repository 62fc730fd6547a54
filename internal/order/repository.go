package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

var (
	ErrOrderNotFound = apperr.NotFound("order not found")

	// ErrDuplicateIdempotencyKey reports that another order already holds
	// the (user, idempotency key) pair.
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")
)

const (
	uniqueViolation       = "23505"
	idempotencyConstraint = "orders_user_idempotency_key"
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// Tx is the set of row operations available inside one store transaction.
type Tx interface {
	// LockCartLines returns the cart rows among ids owned by userID, locked
	// for update in id order. Other ids are dropped.
	LockCartLines(ctx context.Context, userID string, ids []int64) ([]CartLine, error)
	LockProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error)
	InsertOrder(ctx context.Context, o *Order) error
	DecrementStock(ctx context.Context, productID int64, quantity int) error
	DeleteCartItems(ctx context.Context, userID string, ids []int64) (int64, error)
	LockOrderStatus(ctx context.Context, orderID int64) (Status, error)
	SetStatus(ctx context.Context, orderID int64, status Status, at time.Time) error
}

type Repository interface {
	// WithTx runs fn in a transaction that commits only when fn returns nil.
	WithTx(ctx context.Context, fn func(Tx) error) error
	FindByIdempotencyKey(ctx context.Context, userID, key string) (Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	GetByID(ctx context.Context, orderID int64) (Order, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) WithTx(ctx context.Context, fn func(Tx) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(pgTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type pgTx struct {
	tx pgx.Tx
}

func (t pgTx) LockCartLines(ctx context.Context, userID string, ids []int64) ([]CartLine, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id, product_id, quantity
		FROM cart_items
		WHERE id = ANY($1) AND user_id = $2
		ORDER BY id
		FOR UPDATE
	`, ids, userID)
	if err != nil {
		return nil, fmt.Errorf("lock cart items: %w", err)
	}
	defer rows.Close()

	var lines []CartLine
	for rows.Next() {
		var l CartLine
		if err := rows.Scan(&l.CartItemID, &l.ProductID, &l.Quantity); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		lines = append(lines, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return lines, nil
}

func (t pgTx) LockProducts(ctx context.Context, ids []int64) (map[int64]catalog.Product, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT `+catalog.SelectColumns("")+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	products := make(map[int64]catalog.Product, len(ids))
	for rows.Next() {
		var p catalog.Product
		if err := rows.Scan(p.ScanTargets()...); err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return products, nil
}

// InsertOrder writes the order and its items, filling in the generated ids.
func (t pgTx) InsertOrder(ctx context.Context, o *Order) error {
	err := t.tx.QueryRow(ctx, `
		INSERT INTO orders (user_id, total_amount, status, shipping_address, payment_method, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $7)
		RETURNING id
	`, o.UserID, o.TotalAmount, string(o.Status), o.ShippingAddress, o.PaymentMethod, o.IdempotencyKey, o.CreatedAt).Scan(&o.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == idempotencyConstraint {
			return ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("insert order: %w", err)
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.OrderID = o.ID
		err := t.tx.QueryRow(ctx, `
			INSERT INTO order_items (order_id, product_id, quantity, price)
			VALUES ($1, $2, $3, $4)
			RETURNING id
		`, o.ID, it.ProductID, it.Quantity, it.Price).Scan(&it.ID)
		if err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}
	return nil
}

func (t pgTx) DecrementStock(ctx context.Context, productID int64, quantity int) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE products
		SET stock_quantity = stock_quantity - $2
		WHERE id = $1 AND stock_quantity >= $2
	`, productID, quantity)
	if err != nil {
		return fmt.Errorf("decrement stock: %w", err)
	}
	if tag.RowsAffected() != 1 {
		return apperr.Detail(catalog.ErrInsufficientStock, "insufficient stock for product %d", productID)
	}
	return nil
}

func (t pgTx) DeleteCartItems(ctx context.Context, userID string, ids []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE id = ANY($1) AND user_id = $2`, ids, userID)
	if err != nil {
		return 0, fmt.Errorf("delete cart items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (t pgTx) LockOrderStatus(ctx context.Context, orderID int64) (Status, error) {
	var s string
	err := t.tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&s)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", fmt.Errorf("lock order: %w", err)
	}
	return Status(s), nil
}

func (t pgTx) SetStatus(ctx context.Context, orderID int64, status Status, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, orderID, string(status), at)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

const orderColumns = `id, user_id, total_amount, status, shipping_address, payment_method, COALESCE(idempotency_key, ''), created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o      Order
		status string
	)
	err := row.Scan(&o.ID, &o.UserID, &o.TotalAmount, &status, &o.ShippingAddress, &o.PaymentMethod,
		&o.IdempotencyKey, &o.CreatedAt, &o.UpdatedAt)
	o.Status = Status(status)
	return o, err
}

func (r *PostgresRepository) FindByIdempotencyKey(ctx context.Context, userID, key string) (Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = $1 AND idempotency_key = $2`, userID, key)
}

func (r *PostgresRepository) GetByID(ctx context.Context, orderID int64) (Order, error) {
	return r.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, args ...any) (Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrOrderNotFound
		}
		return Order{}, fmt.Errorf("select order: %w", err)
	}

	items, err := r.loadItems(ctx, []int64{o.ID})
	if err != nil {
		return Order{}, err
	}
	o.Items = items[o.ID]
	if o.Items == nil {
		o.Items = []Item{}
	}
	return o, nil
}

// ListByUser returns the user's orders newest first.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	ids := make([]int64, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	items, err := r.loadItems(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range orders {
		orders[i].Items = items[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []Item{}
		}
	}
	return orders, nil
}

func (r *PostgresRepository) loadItems(ctx context.Context, orderIDs []int64) (map[int64][]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.price, `+catalog.SelectColumns("p")+`
		FROM order_items oi
		JOIN products p ON p.id = oi.product_id
		WHERE oi.order_id = ANY($1)
		ORDER BY oi.order_id, oi.id
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	byOrder := make(map[int64][]Item, len(orderIDs))
	for rows.Next() {
		var it Item
		p := &catalog.Product{}
		dest := append([]any{&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.Price}, p.ScanTargets()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		it.Product = p
		byOrder[it.OrderID] = append(byOrder[it.OrderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return byOrder, nil
}

package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

var ErrItemNotFound = apperr.NotFound("cart item not found")

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

type Repository interface {
	List(ctx context.Context, userID string) ([]Item, error)
	Add(ctx context.Context, userID string, productID int64, quantity int) (Item, error)
	UpdateQuantity(ctx context.Context, itemID int64, quantity int) (Item, error)
	Remove(ctx context.Context, itemID int64) (Item, error)
	Clear(ctx context.Context, userID string) (int64, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) List(ctx context.Context, userID string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.user_id, c.product_id, c.quantity, `+catalog.SelectColumns("p")+`
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		p := &catalog.Product{}
		dest := append([]any{&it.ID, &it.UserID, &it.ProductID, &it.Quantity}, p.ScanTargets()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		it.Product = p
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

// Add inserts a line or increments the existing (user, product) line. The
// product row is share-locked so checkout cannot change its stock mid-way,
// and the conflict branch only applies when the summed quantity fits in stock.
func (r *PostgresRepository) Add(ctx context.Context, userID string, productID int64, quantity int) (Item, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Item{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		stock  int
		active bool
	)
	err = tx.QueryRow(ctx, `
		SELECT stock_quantity, is_active
		FROM products
		WHERE id = $1
		FOR SHARE
	`, productID).Scan(&stock, &active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, apperr.Detail(catalog.ErrUnavailable, "product %d not found or inactive", productID)
		}
		return Item{}, fmt.Errorf("lock product: %w", err)
	}
	if !active {
		return Item{}, apperr.Detail(catalog.ErrUnavailable, "product %d not found or inactive", productID)
	}
	if quantity > stock {
		return Item{}, apperr.Detail(catalog.ErrInsufficientStock, "insufficient stock for product %d", productID)
	}

	it := Item{UserID: userID, ProductID: productID}
	err = tx.QueryRow(ctx, `
		INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE
		SET quantity = cart_items.quantity + EXCLUDED.quantity, updated_at = now()
		WHERE cart_items.quantity + EXCLUDED.quantity <= $4
		RETURNING id, quantity
	`, userID, productID, quantity, stock).Scan(&it.ID, &it.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, apperr.Detail(catalog.ErrInsufficientStock, "insufficient stock for product %d", productID)
		}
		return Item{}, fmt.Errorf("upsert cart item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Item{}, fmt.Errorf("commit: %w", err)
	}
	return it, nil
}

func (r *PostgresRepository) UpdateQuantity(ctx context.Context, itemID int64, quantity int) (Item, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Item{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	it := Item{ID: itemID}
	var stock int
	err = tx.QueryRow(ctx, `
		SELECT c.user_id, c.product_id, p.stock_quantity
		FROM cart_items c
		JOIN products p ON p.id = c.product_id
		WHERE c.id = $1
		FOR UPDATE OF c
	`, itemID).Scan(&it.UserID, &it.ProductID, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("lock cart item: %w", err)
	}
	if quantity > stock {
		return Item{}, apperr.Detail(catalog.ErrInsufficientStock, "insufficient stock for product %d", it.ProductID)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE cart_items
		SET quantity = $2, updated_at = now()
		WHERE id = $1
	`, itemID, quantity); err != nil {
		return Item{}, fmt.Errorf("update cart item: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Item{}, fmt.Errorf("commit: %w", err)
	}
	it.Quantity = quantity
	return it, nil
}

func (r *PostgresRepository) Remove(ctx context.Context, itemID int64) (Item, error) {
	var it Item
	err := r.pool.QueryRow(ctx, `
		DELETE FROM cart_items
		WHERE id = $1
		RETURNING id, user_id, product_id, quantity
	`, itemID).Scan(&it.ID, &it.UserID, &it.ProductID, &it.Quantity)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrItemNotFound
		}
		return Item{}, fmt.Errorf("delete cart item: %w", err)
	}
	return it, nil
}

func (r *PostgresRepository) Clear(ctx context.Context, userID string) (int64, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	return tag.RowsAffected(), nil
}

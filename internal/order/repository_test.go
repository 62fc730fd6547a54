package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

var (
	orderCols   = []string{"id", "user_id", "total_amount", "status", "shipping_address", "payment_method", "idempotency_key", "created_at", "updated_at"}
	productCols = []string{"id", "name", "description", "price", "category", "image_url", "stock_quantity", "is_active", "created_at"}
	itemCols    = append([]string{"id", "order_id", "product_id", "quantity", "price"}, productCols...)
)

func newMock(t *testing.T) (pgxmock.PgxPoolIface, *PostgresRepository) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, NewPostgresRepository(mock)
}

// inTx runs fn inside WithTx and returns its error.
func inTx(repo *PostgresRepository, fn func(tx Tx) error) error {
	return repo.WithTx(context.Background(), fn)
}

func TestPostgresRepository_WithTx(t *testing.T) {
	t.Run("commits when fn succeeds", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectCommit()

		require.NoError(t, inTx(repo, func(Tx) error { return nil }))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectRollback()

		err := inTx(repo, func(Tx) error { return ErrEmptyOrderRequest })
		assert.ErrorIs(t, err, ErrEmptyOrderRequest)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{}).WillReturnError(errors.New("pool closed"))

		called := false
		err := inTx(repo, func(Tx) error { called = true; return nil })
		require.Error(t, err)
		assert.False(t, called)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTx_LockCartLines(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`FROM cart_items\s+WHERE id = ANY\(\$1\) AND user_id = \$2\s+ORDER BY id\s+FOR UPDATE`).
		WithArgs([]int64{1, 2, 3}, "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "product_id", "quantity"}).
			AddRow(int64(1), int64(10), 2).
			AddRow(int64(3), int64(12), 1))
	mock.ExpectCommit()

	var lines []CartLine
	err := inTx(repo, func(tx Tx) error {
		var err error
		lines, err = tx.LockCartLines(context.Background(), "user-1", []int64{1, 2, 3})
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []CartLine{
		{CartItemID: 1, ProductID: 10, Quantity: 2},
		{CartItemID: 3, ProductID: 12, Quantity: 1},
	}, lines)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTx_LockProducts(t *testing.T) {
	mock, repo := newMock(t)
	created := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectQuery(`FROM products WHERE id = ANY\(\$1\) ORDER BY id FOR UPDATE`).
		WithArgs([]int64{10, 12}).
		WillReturnRows(pgxmock.NewRows(productCols).
			AddRow(int64(10), "Yoga Mat", "", decimal.RequireFromString("39.99"), "Sports & Fitness", "", 60, true, created))
	mock.ExpectCommit()

	var products map[int64]catalog.Product
	err := inTx(repo, func(tx Tx) error {
		var err error
		products, err = tx.LockProducts(context.Background(), []int64{10, 12})
		return err
	})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "Yoga Mat", products[10].Name)
	_, ok := products[12]
	assert.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTx_InsertOrder(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	orderSQL := `(?s)INSERT INTO orders .* RETURNING id`
	itemSQL := `(?s)INSERT INTO order_items .* RETURNING id`

	newOrder := func() *Order {
		return &Order{
			UserID:          "user-1",
			TotalAmount:     decimal.RequireFromString("2649.97"),
			Status:          StatusPending,
			ShippingAddress: "123 Test St",
			PaymentMethod:   "card",
			IdempotencyKey:  "key-1",
			CreatedAt:       now,
			Items: []Item{
				{ProductID: 1, Quantity: 2, Price: decimal.RequireFromString("1299.99")},
				{ProductID: 4, Quantity: 1, Price: decimal.RequireFromString("49.99")},
			},
		}
	}

	t.Run("assigns ids to order and items", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectQuery(orderSQL).
			WithArgs("user-1", pgxmock.AnyArg(), "Pending", "123 Test St", "card", "key-1", now).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
		mock.ExpectQuery(itemSQL).WithArgs(int64(42), int64(1), 2, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(100)))
		mock.ExpectQuery(itemSQL).WithArgs(int64(42), int64(4), 1, pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(101)))
		mock.ExpectCommit()

		o := newOrder()
		require.NoError(t, inTx(repo, func(tx Tx) error { return tx.InsertOrder(context.Background(), o) }))
		assert.Equal(t, int64(42), o.ID)
		assert.Equal(t, int64(100), o.Items[0].ID)
		assert.Equal(t, int64(101), o.Items[1].ID)
		assert.Equal(t, int64(42), o.Items[1].OrderID)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unique violation reports a duplicate key", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectQuery(orderSQL).
			WithArgs("user-1", pgxmock.AnyArg(), "Pending", "123 Test St", "card", "key-1", now).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "orders_user_idempotency_key"})
		mock.ExpectRollback()

		err := inTx(repo, func(tx Tx) error { return tx.InsertOrder(context.Background(), newOrder()) })
		assert.ErrorIs(t, err, ErrDuplicateIdempotencyKey)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("item insert failure aborts", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectQuery(orderSQL).
			WithArgs("user-1", pgxmock.AnyArg(), "Pending", "123 Test St", "card", "key-1", now).
			WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))
		mock.ExpectQuery(itemSQL).WithArgs(int64(42), int64(1), 2, pgxmock.AnyArg()).
			WillReturnError(errors.New("foreign key violation"))
		mock.ExpectRollback()

		err := inTx(repo, func(tx Tx) error { return tx.InsertOrder(context.Background(), newOrder()) })
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrDuplicateIdempotencyKey)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTx_DecrementStock(t *testing.T) {
	decSQL := `UPDATE products\s+SET stock_quantity = stock_quantity - \$2\s+WHERE id = \$1 AND stock_quantity >= \$2`

	t.Run("decrements", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectExec(decSQL).WithArgs(int64(1), 2).WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		require.NoError(t, inTx(repo, func(tx Tx) error { return tx.DecrementStock(context.Background(), 1, 2) }))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("guard rejects oversell", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectExec(decSQL).WithArgs(int64(1), 50).WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mock.ExpectRollback()

		err := inTx(repo, func(tx Tx) error { return tx.DecrementStock(context.Background(), 1, 50) })
		assert.ErrorIs(t, err, catalog.ErrInsufficientStock)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPgTx_DeleteCartItems(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectBeginTx(pgx.TxOptions{})
	mock.ExpectExec(`DELETE FROM cart_items WHERE id = ANY\(\$1\) AND user_id = \$2`).
		WithArgs([]int64{1, 3}, "user-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 2))
	mock.ExpectCommit()

	var n int64
	err := inTx(repo, func(tx Tx) error {
		var err error
		n, err = tx.DeleteCartItems(context.Background(), "user-1", []int64{1, 3})
		return err
	})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPgTx_Status(t *testing.T) {
	lockSQL := `SELECT status FROM orders WHERE id = \$1 FOR UPDATE`
	setSQL := `UPDATE orders SET status = \$2, updated_at = \$3 WHERE id = \$1`
	at := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)

	t.Run("lock then set", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectQuery(lockSQL).WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("Pending"))
		mock.ExpectExec(setSQL).WithArgs(int64(42), "Processing", at).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mock.ExpectCommit()

		var cur Status
		err := inTx(repo, func(tx Tx) error {
			var err error
			if cur, err = tx.LockOrderStatus(context.Background(), 42); err != nil {
				return err
			}
			return tx.SetStatus(context.Background(), 42, StatusProcessing, at)
		})
		require.NoError(t, err)
		assert.Equal(t, StatusPending, cur)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing order", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectBeginTx(pgx.TxOptions{})
		mock.ExpectQuery(lockSQL).WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)
		mock.ExpectRollback()

		err := inTx(repo, func(tx Tx) error {
			_, err := tx.LockOrderStatus(context.Background(), 7)
			return err
		})
		assert.ErrorIs(t, err, ErrOrderNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_GetByID(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("loads order with items", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(`FROM orders WHERE id = \$1`).WithArgs(int64(42)).
			WillReturnRows(pgxmock.NewRows(orderCols).
				AddRow(int64(42), "user-1", decimal.RequireFromString("89.97"), "Shipped", "123 Test St", "card", "", created, created))
		mock.ExpectQuery(`FROM order_items oi\s+JOIN products p ON p.id = oi.product_id\s+WHERE oi.order_id = ANY\(\$1\)`).
			WithArgs([]int64{42}).
			WillReturnRows(pgxmock.NewRows(itemCols).
				AddRow(int64(1), int64(42), int64(10), 3, decimal.RequireFromString("29.99"),
					int64(10), "Yoga Mat", "", decimal.RequireFromString("39.99"), "Sports & Fitness", "", 57, true, created))

		o, err := repo.GetByID(context.Background(), 42)
		require.NoError(t, err)
		assert.Equal(t, StatusShipped, o.Status)
		require.Len(t, o.Items, 1)
		// the line keeps the price paid even though the catalog moved on
		assert.True(t, o.Items[0].Price.Equal(decimal.RequireFromString("29.99")))
		assert.True(t, o.Items[0].Product.Price.Equal(decimal.RequireFromString("39.99")))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(`FROM orders WHERE id = \$1`).WithArgs(int64(7)).WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(context.Background(), 7)
		assert.ErrorIs(t, err, ErrOrderNotFound)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPostgresRepository_FindByIdempotencyKey(t *testing.T) {
	mock, repo := newMock(t)
	mock.ExpectQuery(`FROM orders WHERE user_id = \$1 AND idempotency_key = \$2`).
		WithArgs("user-1", "missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := repo.FindByIdempotencyKey(context.Background(), "user-1", "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepository_ListByUser(t *testing.T) {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	listSQL := `FROM orders\s+WHERE user_id = \$1\s+ORDER BY created_at DESC, id DESC`

	t.Run("newest first with items grouped per order", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(listSQL).WithArgs("user-1").
			WillReturnRows(pgxmock.NewRows(orderCols).
				AddRow(int64(2), "user-1", decimal.RequireFromString("39.99"), "Pending", "a", "card", "", created.Add(time.Hour), created.Add(time.Hour)).
				AddRow(int64(1), "user-1", decimal.RequireFromString("79.98"), "Delivered", "a", "card", "k", created, created))
		mock.ExpectQuery(`WHERE oi.order_id = ANY\(\$1\)`).WithArgs([]int64{2, 1}).
			WillReturnRows(pgxmock.NewRows(itemCols).
				AddRow(int64(1), int64(1), int64(10), 2, decimal.RequireFromString("39.99"),
					int64(10), "Yoga Mat", "", decimal.RequireFromString("39.99"), "Sports & Fitness", "", 57, true, created).
				AddRow(int64(2), int64(2), int64(10), 1, decimal.RequireFromString("39.99"),
					int64(10), "Yoga Mat", "", decimal.RequireFromString("39.99"), "Sports & Fitness", "", 57, true, created))

		orders, err := repo.ListByUser(context.Background(), "user-1")
		require.NoError(t, err)
		require.Len(t, orders, 2)
		assert.Equal(t, int64(2), orders[0].ID)
		assert.Equal(t, "k", orders[1].IdempotencyKey)
		require.Len(t, orders[0].Items, 1)
		assert.Equal(t, 1, orders[0].Items[0].Quantity)
		require.Len(t, orders[1].Items, 1)
		assert.Equal(t, 2, orders[1].Items[0].Quantity)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no orders skips the item query", func(t *testing.T) {
		mock, repo := newMock(t)
		mock.ExpectQuery(listSQL).WithArgs("user-2").WillReturnRows(pgxmock.NewRows(orderCols))

		orders, err := repo.ListByUser(context.Background(), "user-2")
		require.NoError(t, err)
		assert.NotNil(t, orders)
		assert.Empty(t, orders)
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

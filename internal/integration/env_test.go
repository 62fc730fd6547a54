//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/db"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/events"
	httpapi "github.com/andreasstove999/ecommerce-system/storefront-go/internal/http"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/testutil"
)

type env struct {
	pool       *pgxpool.Pool
	sequences  events.SequenceRepository
	server     *httptest.Server
	deliveries <-chan amqp.Delivery
}

func newEnv(t *testing.T) *env {
	t.Helper()

	_, pool := testutil.StartPostgres(t)
	rdb := testutil.StartRedis(t)
	amqpURL, conn := testutil.StartRabbitMQ(t)

	logger := zap.NewNop()

	pubConn, pubCh, err := events.Dial(amqpURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pubConn.Close() })
	sqlDB := db.SQLDB(pool)
	t.Cleanup(func() { _ = sqlDB.Close() })

	sequences := events.NewSequenceRepository(sqlDB)
	publisher, err := events.NewPublisher(pubCh, sequences, events.PublisherOptions{PublishEnveloped: true})
	require.NoError(t, err)
	t.Cleanup(func() { _ = publisher.Close() })

	deliveries := testutil.ConsumeEvents(t, conn, events.EventsExchange, "order.#")

	carts := cart.NewService(cart.NewPostgresRepository(pool), cart.NewRedisCache(rdb, time.Minute), logger)
	engine := order.NewEngine(order.NewPostgresRepository(pool), carts, publisher, logger)

	server := httptest.NewServer(httpapi.NewRouter(httpapi.Deps{
		Logger:  logger,
		Catalog: catalog.NewPostgresRepository(pool),
		Carts:   carts,
		Orders:  engine,
		Readiness: []httpapi.ReadinessCheck{
			{Name: "postgres", Ping: pool.Ping},
			{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
		},
		RequestTimeout: 5 * time.Second,
		AllowOrigins:   []string{"*"},
	}))
	t.Cleanup(server.Close)

	return &env{pool: pool, sequences: sequences, server: server, deliveries: deliveries}
}

func (e *env) do(t *testing.T, method, path string, body any, header map[string]string) (int, http.Header, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, e.server.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, resp.Header, out
}

type productBody struct {
	ID            int64       `json:"id"`
	Price         json.Number `json:"price"`
	StockQuantity int         `json:"stockQuantity"`
	InStock       bool        `json:"inStock"`
}

func (e *env) createProduct(t *testing.T, name, price string, stock int) productBody {
	t.Helper()
	status, _, body := e.do(t, http.MethodPost, "/api/products", map[string]any{
		"name":          name,
		"price":         json.Number(price),
		"category":      "Test",
		"stockQuantity": stock,
	}, nil)
	require.Equal(t, http.StatusCreated, status, string(body))

	var p productBody
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

func (e *env) product(t *testing.T, id int64) productBody {
	t.Helper()
	status, _, body := e.do(t, http.MethodGet, "/api/products/"+strconv.FormatInt(id, 10), nil, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var p productBody
	require.NoError(t, json.Unmarshal(body, &p))
	return p
}

type cartItemBody struct {
	ID        int64 `json:"id"`
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type cartBody struct {
	Items []cartItemBody `json:"items"`
	Total json.Number    `json:"total"`
}

func (e *env) addToCart(t *testing.T, userID string, productID int64, quantity int) (int, []byte) {
	t.Helper()
	status, _, body := e.do(t, http.MethodPost, "/api/cart/add", map[string]any{
		"userId":    userID,
		"productId": productID,
		"quantity":  quantity,
	}, nil)
	return status, body
}

func (e *env) cart(t *testing.T, userID string) cartBody {
	t.Helper()
	status, _, body := e.do(t, http.MethodGet, "/api/cart/"+userID, nil, nil)
	require.Equal(t, http.StatusOK, status, string(body))

	var c cartBody
	require.NoError(t, json.Unmarshal(body, &c))
	return c
}

type orderItemBody struct {
	ProductID int64       `json:"productId"`
	Quantity  int         `json:"quantity"`
	Price     json.Number `json:"price"`
}

type orderBody struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"orderId"`
	UserID      string          `json:"userId"`
	TotalAmount json.Number     `json:"totalAmount"`
	Total       json.Number     `json:"total"`
	Status      string          `json:"status"`
	OrderItems  []orderItemBody `json:"orderItems"`
	Items       []orderItemBody `json:"items"`
}

func (e *env) placeOrder(t *testing.T, userID string, ids []int64, key string) (int, http.Header, []byte) {
	t.Helper()
	var header map[string]string
	if key != "" {
		header = map[string]string{httpapi.HeaderIdempotencyKey: key}
	}
	return e.do(t, http.MethodPost, "/api/orders", map[string]any{
		"userId":          userID,
		"shippingAddress": "123 Test St",
		"paymentMethod":   "card",
		"cartItemIds":     ids,
	}, header)
}

// waitForEvent returns the first delivery with routingKey whose partition
// key is orderID. Unrelated deliveries are skipped.
func (e *env) waitForEvent(t *testing.T, routingKey string, orderID int64) amqp.Delivery {
	t.Helper()
	want := strconv.FormatInt(orderID, 10)
	timeout := time.After(10 * time.Second)
	for {
		select {
		case d := <-e.deliveries:
			if d.RoutingKey != routingKey {
				continue
			}
			var meta struct {
				PartitionKey string `json:"partitionKey"`
			}
			if json.Unmarshal(d.Body, &meta) == nil && meta.PartitionKey == want {
				return d
			}
		case <-timeout:
			t.Fatalf("no %s event for order %d", routingKey, orderID)
		}
	}
}

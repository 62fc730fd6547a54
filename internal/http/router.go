package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/middleware"
)

type Deps struct {
	Logger         *zap.Logger
	Catalog        Catalog
	Carts          Carts
	Orders         Orders
	Readiness      []ReadinessCheck
	RequestTimeout time.Duration
	AllowOrigins   []string
}

func NewRouter(d Deps) http.Handler {
	h := NewHandler(d)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.AccessLog(h.logger))
	r.Use(middleware.Recover(h.logger))
	r.Use(middleware.CORS(d.AllowOrigins))

	r.Get("/health", h.Health)
	r.Get("/ready", h.Ready)

	r.Route("/api/products", func(r chi.Router) {
		r.Get("/", h.ListProducts)
		r.Post("/", h.CreateProduct)
		r.Get("/{id}", h.GetProduct)
	})

	// {id} is a user id on GET and a cart item id on PUT and DELETE.
	r.Route("/api/cart", func(r chi.Router) {
		r.Post("/add", h.AddToCart)
		r.Delete("/user/{userId}", h.ClearCart)
		r.Get("/{id}", h.GetCart)
		r.Put("/{id}", h.UpdateCartItem)
		r.Delete("/{id}", h.RemoveCartItem)
	})

	// {id} is a user id on GET and an order id under /status.
	r.Route("/api/orders", func(r chi.Router) {
		r.Post("/", h.PlaceOrder)
		r.Get("/id/{orderId}", h.GetOrder)
		r.Get("/{id}", h.ListOrders)
		r.Patch("/{id}/status", h.UpdateOrderStatus)
	})

	return otelhttp.NewHandler(r, "storefront-go")
}

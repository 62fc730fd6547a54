package httpapi

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

// money renders an amount as a JSON number with two decimals.
func money(d decimal.Decimal) json.Number {
	return json.Number(d.StringFixed(2))
}

type productResponse struct {
	ID            int64       `json:"id"`
	Name          string      `json:"name"`
	Description   string      `json:"description"`
	Price         json.Number `json:"price"`
	Category      string      `json:"category"`
	ImageURL      string      `json:"imageUrl"`
	StockQuantity int         `json:"stockQuantity"`
	IsActive      bool        `json:"isActive"`
	InStock       bool        `json:"inStock"`
}

func toProduct(p catalog.Product) productResponse {
	return productResponse{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         money(p.Price),
		Category:      p.Category,
		ImageURL:      p.ImageURL,
		StockQuantity: p.StockQuantity,
		IsActive:      p.IsActive,
		InStock:       p.InStock(),
	}
}

func toProductPtr(p *catalog.Product) *productResponse {
	if p == nil {
		return nil
	}
	out := toProduct(*p)
	return &out
}

type productListResponse struct {
	Products []productResponse `json:"products"`
	Total    int               `json:"total"`
	Page     int               `json:"page"`
	Limit    int               `json:"limit"`
}

type createProductRequest struct {
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"imageUrl"`
	StockQuantity int             `json:"stockQuantity"`
}

type cartItemResponse struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"userId"`
	ProductID int64            `json:"productId"`
	Product   *productResponse `json:"product,omitempty"`
	Quantity  int              `json:"quantity"`
}

func toCartItem(it cart.Item) cartItemResponse {
	return cartItemResponse{
		ID:        it.ID,
		UserID:    it.UserID,
		ProductID: it.ProductID,
		Product:   toProductPtr(it.Product),
		Quantity:  it.Quantity,
	}
}

type cartResponse struct {
	Items []cartItemResponse `json:"items"`
	Total json.Number        `json:"total"`
}

func toCart(c *cart.Cart) cartResponse {
	out := cartResponse{Items: make([]cartItemResponse, 0, len(c.Items)), Total: money(c.Total)}
	for _, it := range c.Items {
		out.Items = append(out.Items, toCartItem(it))
	}
	return out
}

type addToCartRequest struct {
	UserID    string `json:"userId"`
	ProductID int64  `json:"productId"`
	// Quantity defaults to 1 when omitted.
	Quantity *int `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type messageResponse struct {
	Message string            `json:"message"`
	Item    *cartItemResponse `json:"item,omitempty"`
}

type orderItemResponse struct {
	ID        int64            `json:"id"`
	ProductID int64            `json:"productId"`
	Product   *productResponse `json:"product,omitempty"`
	Quantity  int              `json:"quantity"`
	Price     json.Number      `json:"price"`
}

// orderResponse carries orderId, total and items as aliases of id,
// totalAmount and orderItems for older clients.
type orderResponse struct {
	ID              int64               `json:"id"`
	OrderID         int64               `json:"orderId"`
	UserID          string              `json:"userId"`
	TotalAmount     json.Number         `json:"totalAmount"`
	Total           json.Number         `json:"total"`
	Status          string              `json:"status"`
	ShippingAddress string              `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	OrderItems      []orderItemResponse `json:"orderItems"`
	Items           []orderItemResponse `json:"items"`
}

func toOrder(o order.Order) orderResponse {
	items := make([]orderItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemResponse{
			ID:        it.ID,
			ProductID: it.ProductID,
			Product:   toProductPtr(it.Product),
			Quantity:  it.Quantity,
			Price:     money(it.Price),
		})
	}
	total := money(o.TotalAmount)
	return orderResponse{
		ID:              o.ID,
		OrderID:         o.ID,
		UserID:          o.UserID,
		TotalAmount:     total,
		Total:           total,
		Status:          string(o.Status),
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
		OrderItems:      items,
		Items:           items,
	}
}

func toOrders(orders []order.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrder(o))
	}
	return out
}

type createOrderRequest struct {
	UserID          string  `json:"userId"`
	ShippingAddress string  `json:"shippingAddress"`
	PaymentMethod   string  `json:"paymentMethod"`
	CartItemIDs     []int64 `json:"cartItemIds"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

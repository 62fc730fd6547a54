package httpapi

import (
	"context"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/order"
)

type fakeCatalog struct {
	listFunc   func(ctx context.Context, f catalog.Filter) (catalog.Page, error)
	getFunc    func(ctx context.Context, id int64) (catalog.Product, error)
	createFunc func(ctx context.Context, np catalog.NewProduct) (catalog.Product, error)
}

func (f *fakeCatalog) List(ctx context.Context, flt catalog.Filter) (catalog.Page, error) {
	if f.listFunc != nil {
		return f.listFunc(ctx, flt)
	}
	return catalog.Page{}, nil
}

func (f *fakeCatalog) Get(ctx context.Context, id int64) (catalog.Product, error) {
	if f.getFunc != nil {
		return f.getFunc(ctx, id)
	}
	return catalog.Product{}, catalog.ErrNotFound
}

func (f *fakeCatalog) Create(ctx context.Context, np catalog.NewProduct) (catalog.Product, error) {
	if f.createFunc != nil {
		return f.createFunc(ctx, np)
	}
	return catalog.Product{}, nil
}

type fakeCarts struct {
	getCartFunc func(ctx context.Context, userID string) (*cart.Cart, error)
	addFunc     func(ctx context.Context, userID string, productID int64, quantity int) (cart.Item, error)
	updateFunc  func(ctx context.Context, itemID int64, quantity int) (cart.Item, error)
	removeFunc  func(ctx context.Context, itemID int64) error
	clearFunc   func(ctx context.Context, userID string) error
}

func (f *fakeCarts) GetCart(ctx context.Context, userID string) (*cart.Cart, error) {
	if f.getCartFunc != nil {
		return f.getCartFunc(ctx, userID)
	}
	return &cart.Cart{UserID: userID, Items: []cart.Item{}}, nil
}

func (f *fakeCarts) AddToCart(ctx context.Context, userID string, productID int64, quantity int) (cart.Item, error) {
	if f.addFunc != nil {
		return f.addFunc(ctx, userID, productID, quantity)
	}
	return cart.Item{}, nil
}

func (f *fakeCarts) UpdateCartItem(ctx context.Context, itemID int64, quantity int) (cart.Item, error) {
	if f.updateFunc != nil {
		return f.updateFunc(ctx, itemID, quantity)
	}
	return cart.Item{}, nil
}

func (f *fakeCarts) RemoveCartItem(ctx context.Context, itemID int64) error {
	if f.removeFunc != nil {
		return f.removeFunc(ctx, itemID)
	}
	return nil
}

func (f *fakeCarts) ClearCart(ctx context.Context, userID string) error {
	if f.clearFunc != nil {
		return f.clearFunc(ctx, userID)
	}
	return nil
}

type fakeOrders struct {
	placeFunc        func(ctx context.Context, req order.PlaceOrderRequest) (order.PlaceOrderResult, error)
	listFunc         func(ctx context.Context, userID string) ([]order.Order, error)
	getFunc          func(ctx context.Context, orderID int64) (order.Order, error)
	updateStatusFunc func(ctx context.Context, orderID int64, to order.Status) (order.Order, error)
}

func (f *fakeOrders) PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (order.PlaceOrderResult, error) {
	if f.placeFunc != nil {
		return f.placeFunc(ctx, req)
	}
	return order.PlaceOrderResult{}, nil
}

func (f *fakeOrders) ListOrders(ctx context.Context, userID string) ([]order.Order, error) {
	if f.listFunc != nil {
		return f.listFunc(ctx, userID)
	}
	return nil, nil
}

func (f *fakeOrders) GetOrder(ctx context.Context, orderID int64) (order.Order, error) {
	if f.getFunc != nil {
		return f.getFunc(ctx, orderID)
	}
	return order.Order{}, order.ErrOrderNotFound
}

func (f *fakeOrders) UpdateStatus(ctx context.Context, orderID int64, to order.Status) (order.Order, error) {
	if f.updateStatusFunc != nil {
		return f.updateStatusFunc(ctx, orderID, to)
	}
	return order.Order{}, nil
}

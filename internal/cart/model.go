package cart

import (
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/catalog"
)

type Item struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"userId"`
	ProductID int64            `json:"productId"`
	Quantity  int              `json:"quantity"`
	Product   *catalog.Product `json:"product,omitempty"`
}

type Cart struct {
	UserID string          `json:"userId"`
	Items  []Item          `json:"items"`
	Total  decimal.Decimal `json:"total"`
}

func newCart(userID string, items []Item) *Cart {
	c := &Cart{UserID: userID, Items: items, Total: decimal.Zero}
	if c.Items == nil {
		c.Items = []Item{}
	}
	for _, it := range c.Items {
		if it.Product == nil {
			continue
		}
		c.Total = c.Total.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	return c
}

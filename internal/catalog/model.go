package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Price         decimal.Decimal `json:"price"`
	Category      string          `json:"category"`
	ImageURL      string          `json:"imageUrl"`
	StockQuantity int             `json:"stockQuantity"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// InStock reports whether the product can currently be sold.
func (p Product) InStock() bool {
	return p.StockQuantity > 0 && p.IsActive
}

// ScanTargets returns pointers in the order of SelectColumns.
func (p *Product) ScanTargets() []any {
	return []any{
		&p.ID, &p.Name, &p.Description, &p.Price, &p.Category,
		&p.ImageURL, &p.StockQuantity, &p.IsActive, &p.CreatedAt,
	}
}

type NewProduct struct {
	Name          string
	Description   string
	Price         decimal.Decimal
	Category      string
	ImageURL      string
	StockQuantity int
}

type Filter struct {
	Search   string
	Category string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     int
	Limit    int
}

type Page struct {
	Products []Product `json:"products"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

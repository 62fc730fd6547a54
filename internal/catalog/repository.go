package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/andreasstove999/ecommerce-system/storefront-go/internal/apperr"
)

var (
	ErrNotFound          = apperr.NotFound("product not found")
	ErrUnavailable       = apperr.Conflict("product is not available")
	ErrInsufficientStock = apperr.Conflict("insufficient stock")
	ErrInvalidFilter     = apperr.Validation("minPrice must not exceed maxPrice")
)

// DBPool matches the methods from *pgxpool.Pool that we use.
type DBPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

type Repository interface {
	List(ctx context.Context, f Filter) (Page, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, np NewProduct) (Product, error)
}

type PostgresRepository struct {
	pool DBPool
}

func NewPostgresRepository(pool DBPool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// SelectColumns lists the product columns in ScanTargets order, qualified by
// alias when one is given.
func SelectColumns(alias string) string {
	cols := []string{"id", "name", "description", "price", "category", "image_url", "stock_quantity", "is_active", "created_at"}
	if alias == "" {
		return strings.Join(cols, ", ")
	}
	for i, c := range cols {
		cols[i] = alias + "." + c
	}
	return strings.Join(cols, ", ")
}

// Normalize applies paging defaults and rejects inverted price bounds.
func (f Filter) Normalize() (Filter, error) {
	if f.Page < 1 {
		f.Page = DefaultPage
	}
	if f.Limit < 1 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return f, ErrInvalidFilter
	}
	f.Search = strings.TrimSpace(f.Search)
	f.Category = strings.TrimSpace(f.Category)
	return f, nil
}

func (f Filter) where() (string, []any) {
	clauses := []string{"is_active = true"}
	var args []any

	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		clauses = append(clauses, fmt.Sprintf("(name ILIKE $%d OR description ILIKE $%d)", len(args), len(args)))
	}
	if f.Category != "" {
		args = append(args, f.Category)
		clauses = append(clauses, fmt.Sprintf("lower(category) = lower($%d)", len(args)))
	}
	if f.MinPrice != nil {
		args = append(args, *f.MinPrice)
		clauses = append(clauses, fmt.Sprintf("price >= $%d", len(args)))
	}
	if f.MaxPrice != nil {
		args = append(args, *f.MaxPrice)
		clauses = append(clauses, fmt.Sprintf("price <= $%d", len(args)))
	}

	return " WHERE " + strings.Join(clauses, " AND "), args
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (r *PostgresRepository) List(ctx context.Context, f Filter) (Page, error) {
	f, err := f.Normalize()
	if err != nil {
		return Page{}, err
	}

	where, args := f.where()

	page := Page{Page: f.Page, Limit: f.Limit, Products: []Product{}}
	if err := r.pool.QueryRow(ctx, `SELECT count(*) FROM products`+where, args...).Scan(&page.Total); err != nil {
		return Page{}, fmt.Errorf("count products: %w", err)
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	query := fmt.Sprintf(`SELECT %s FROM products%s ORDER BY id LIMIT $%d OFFSET $%d`,
		SelectColumns(""), where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return Page{}, fmt.Errorf("select products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p Product
		if err := rows.Scan(p.ScanTargets()...); err != nil {
			return Page{}, fmt.Errorf("scan product: %w", err)
		}
		page.Products = append(page.Products, p)
	}
	if err := rows.Err(); err != nil {
		return Page{}, fmt.Errorf("rows: %w", err)
	}

	return page, nil
}

// Get returns an active product. Inactive products are reported as missing.
func (r *PostgresRepository) Get(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.pool.QueryRow(ctx,
		`SELECT `+SelectColumns("")+` FROM products WHERE id = $1 AND is_active = true`, id,
	).Scan(p.ScanTargets()...)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("select product: %w", err)
	}
	return p, nil
}

func (r *PostgresRepository) Create(ctx context.Context, np NewProduct) (Product, error) {
	if err := np.Validate(); err != nil {
		return Product{}, err
	}

	p := Product{
		Name:          strings.TrimSpace(np.Name),
		Description:   np.Description,
		Price:         np.Price,
		Category:      np.Category,
		ImageURL:      np.ImageURL,
		StockQuantity: np.StockQuantity,
		IsActive:      true,
	}

	err := r.pool.QueryRow(ctx, `
		INSERT INTO products (name, description, price, category, image_url, stock_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING id, created_at
	`, p.Name, p.Description, p.Price, p.Category, p.ImageURL, p.StockQuantity).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

func (np NewProduct) Validate() error {
	if strings.TrimSpace(np.Name) == "" {
		return apperr.Validation("name is required")
	}
	if np.Price.IsNegative() {
		return apperr.Validation("price must not be negative")
	}
	if np.StockQuantity < 0 {
		return apperr.Validation("stockQuantity must not be negative")
	}
	return nil
}

package database

import (
	"context"
	"strings"
	"time"
)

// Product statuses.
const (
	ProductActive   = "active"
	ProductDraft    = "draft"
	ProductArchived = "archived"
)

var productStatuses = map[string]bool{
	ProductActive:   true,
	ProductDraft:    true,
	ProductArchived: true,
}

// Product is a sellable catalog item.
type Product struct {
	ID          int64     `db:"id,readonly" json:"id"`
	CategoryID  *int64    `db:"category_id" json:"category_id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	Fabric      string    `db:"fabric" json:"fabric"`
	Price       float64   `db:"price" json:"price"`
	SalePrice   *float64  `db:"sale_price" json:"sale_price"`
	Stock       int       `db:"stock" json:"stock"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	Status      string    `db:"status" json:"status"`
	Featured    bool      `db:"featured" json:"featured"`
	CreatedAt   time.Time `db:"created_at,readonly" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at,readonly" json:"updated_at"`

	CategoryName *string `db:"category_name,computed" json:"category_name,omitempty"`
}

// EffectivePrice is the sale price when one is set, else the list price.
func (p *Product) EffectivePrice() float64 {
	if p.SalePrice != nil && *p.SalePrice > 0 {
		return *p.SalePrice
	}
	return p.Price
}

// ProductPatch is a partial product update; nil fields are left unchanged.
type ProductPatch struct {
	CategoryID  *int64   `db:"category_id" json:"category_id"`
	Name        *string  `db:"name" json:"name"`
	Slug        *string  `db:"slug" json:"slug"`
	Description *string  `db:"description" json:"description"`
	Fabric      *string  `db:"fabric" json:"fabric"`
	Price       *float64 `db:"price" json:"price"`
	SalePrice   *float64 `db:"sale_price" json:"sale_price"`
	Stock       *int     `db:"stock" json:"stock"`
	ImageURL    *string  `db:"image_url" json:"image_url"`
	Status      *string  `db:"status" json:"status"`
	Featured    *bool    `db:"featured" json:"featured"`
}

// ProductQuery narrows a product listing.
type ProductQuery struct {
	CategoryID *int64
	Status     string
	Featured   *bool
	// InStock drops products with no stock left.
	InStock bool
	Page    Page
}

func (q ProductQuery) filter() Filter {
	f := Filter{}
	if q.CategoryID != nil {
		f["category_id"] = *q.CategoryID
	}
	if q.Status != "" {
		f["status"] = q.Status
	}
	if q.Featured != nil {
		f["featured"] = *q.Featured
	}
	return f
}

// ProductRepo stores catalog products.
type ProductRepo struct {
	*Table[Product]
}

func newProductRepo(m *Manager) *ProductRepo {
	return &ProductRepo{Table: NewTable[Product](m, "products", WithTimestamps())}
}

// WithTx returns a copy of the repo bound to tx.
func (r *ProductRepo) WithTx(tx *Tx) *ProductRepo {
	return &ProductRepo{Table: r.Table.WithTx(tx)}
}

func validateProduct(p *Product) error {
	if err := required("name", p.Name, "slug", p.Slug); err != nil {
		return err
	}
	if p.Price < 0 {
		return invalidf("price must not be negative")
	}
	if p.SalePrice != nil && *p.SalePrice < 0 {
		return invalidf("sale_price must not be negative")
	}
	if p.Stock < 0 {
		return invalidf("stock must not be negative")
	}
	if !productStatuses[p.Status] {
		return invalidf("unknown product status %q", p.Status)
	}
	return nil
}

// Create validates p, fills defaults and inserts it.
func (r *ProductRepo) Create(ctx context.Context, p *Product) (*Product, error) {
	if p.Slug == "" {
		p.Slug = Slugify(p.Name)
	}
	if p.Status == "" {
		p.Status = ProductActive
	}
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	id, err := r.Insert(ctx, p)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Update applies patch to the product with the given id.
func (r *ProductRepo) Update(ctx context.Context, id int64, patch *ProductPatch) (bool, error) {
	if patch.Name != nil {
		if err := required("name", *patch.Name); err != nil {
			return false, err
		}
	}
	if patch.Slug != nil {
		s := Slugify(*patch.Slug)
		if s == "" {
			return false, invalidf("slug is required")
		}
		patch.Slug = &s
	}
	if patch.Price != nil && *patch.Price < 0 {
		return false, invalidf("price must not be negative")
	}
	if patch.Stock != nil && *patch.Stock < 0 {
		return false, invalidf("stock must not be negative")
	}
	if patch.Status != nil && !productStatuses[*patch.Status] {
		return false, invalidf("unknown product status %q", *patch.Status)
	}
	return r.Patch(ctx, id, patch)
}

// Find lists products matching q, newest first.
func (r *ProductRepo) Find(ctx context.Context, q ProductQuery) ([]Product, error) {
	if !q.InStock {
		return r.List(ctx, q.filter(), q.Page)
	}
	where, args, err := r.inStockWhere(q)
	if err != nil {
		return nil, err
	}
	stmt := "SELECT * FROM products" + where + " ORDER BY id DESC"
	if q.Page.Limit > 0 {
		stmt += " LIMIT ? OFFSET ?"
		args = append(args, q.Page.Limit, max(q.Page.Offset, 0))
	}
	return r.Select(ctx, stmt, args...)
}

// CountMatching counts products matching q.
func (r *ProductRepo) CountMatching(ctx context.Context, q ProductQuery) (int64, error) {
	if !q.InStock {
		return r.Count(ctx, q.filter())
	}
	where, args, err := r.inStockWhere(q)
	if err != nil {
		return 0, err
	}
	rec, err := r.Store().QueryOne(ctx, "SELECT COUNT(*) AS n FROM products"+where, args...)
	if err != nil {
		return 0, newQueryError("count", "products", err)
	}
	return rec.Int64("n"), nil
}

func (r *ProductRepo) inStockWhere(q ProductQuery) (string, []any, error) {
	where, args, err := r.Store().where(q.filter())
	if err != nil {
		return "", nil, err
	}
	if where == "" {
		return " WHERE stock > 0", args, nil
	}
	return where + " AND stock > 0", args, nil
}

// BySlug returns the product with the given slug.
func (r *ProductRepo) BySlug(ctx context.Context, slug string) (*Product, error) {
	return r.SelectOne(ctx, `
		SELECT p.*, c.name AS category_name
		FROM products p
		LEFT JOIN categories c ON c.id = p.category_id
		WHERE p.slug = ?
		LIMIT 1
	`, slug)
}

// likePattern escapes LIKE wildcards in term with '!' and wraps it for a
// contains match. Backslash escapes differ between MySQL and SQLite.
func likePattern(term string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(term) + "%"
}

// Search returns active products whose name, description or fabric contains term.
func (r *ProductRepo) Search(ctx context.Context, term string, p Page) ([]Product, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.Find(ctx, ProductQuery{Status: ProductActive, Page: p})
	}
	pattern := likePattern(term)
	q := `
		SELECT * FROM products
		WHERE status = ? AND (name LIKE ? ESCAPE '!' OR description LIKE ? ESCAPE '!' OR fabric LIKE ? ESCAPE '!')
		ORDER BY featured DESC, id DESC`
	args := []any{ProductActive, pattern, pattern, pattern}
	if p.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, max(p.Offset, 0))
	}
	return r.Select(ctx, q, args...)
}

// CountSearch counts the active products Search would return without paging.
func (r *ProductRepo) CountSearch(ctx context.Context, term string) (int64, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return r.CountMatching(ctx, ProductQuery{Status: ProductActive})
	}
	pattern := likePattern(term)
	rec, err := r.Store().QueryOne(ctx, `
		SELECT COUNT(*) AS n FROM products
		WHERE status = ? AND (name LIKE ? ESCAPE '!' OR description LIKE ? ESCAPE '!' OR fabric LIKE ? ESCAPE '!')`,
		ProductActive, pattern, pattern, pattern)
	if err != nil {
		return 0, newQueryError("count", "products", err)
	}
	return rec.Int64("n"), nil
}

// ListByCategorySlug returns the active products in the category with the given slug.
func (r *ProductRepo) ListByCategorySlug(ctx context.Context, slug string, p Page) ([]Product, error) {
	q := `
		SELECT p.*, c.name AS category_name
		FROM products p
		JOIN categories c ON c.id = p.category_id
		WHERE c.slug = ? AND p.status = ?
		ORDER BY p.id DESC`
	args := []any{slug, ProductActive}
	if p.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, max(p.Offset, 0))
	}
	return r.Select(ctx, q, args...)
}

// AdjustStock adds delta to the product's stock. A change that would take
// stock below zero fails with ErrInsufficientStock and leaves the row as is.
func (r *ProductRepo) AdjustStock(ctx context.Context, id int64, delta int) error {
	res, err := r.Store().Exec(ctx,
		"UPDATE products SET stock = stock + ?, updated_at = ? WHERE id = ? AND stock + ? >= 0",
		delta, time.Now().UTC(), id, delta)
	if err != nil {
		return newQueryError("adjust stock of", "products", err)
	}
	ok, err := matched(res, "products")
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return ErrInsufficientStock
}

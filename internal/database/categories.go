package database

import (
	"context"
	"time"
)

// Category groups products in the catalog.
type Category struct {
	ID          int64     `db:"id,readonly" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	SortOrder   int       `db:"sort_order" json:"sort_order"`
	CreatedAt   time.Time `db:"created_at,readonly" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at,readonly" json:"updated_at"`

	ProductCount *int64 `db:"product_count,computed" json:"product_count,omitempty"`
}

// CategoryPatch is a partial category update; nil fields are left unchanged.
type CategoryPatch struct {
	Name        *string `db:"name" json:"name"`
	Slug        *string `db:"slug" json:"slug"`
	Description *string `db:"description" json:"description"`
	ImageURL    *string `db:"image_url" json:"image_url"`
	SortOrder   *int    `db:"sort_order" json:"sort_order"`
}

// CategoryRepo stores product categories.
type CategoryRepo struct {
	*Table[Category]
}

func newCategoryRepo(m *Manager) *CategoryRepo {
	return &CategoryRepo{Table: NewTable[Category](m, "categories", WithTimestamps())}
}

// Create validates c, fills a missing slug from the name and inserts it.
func (r *CategoryRepo) Create(ctx context.Context, c *Category) (*Category, error) {
	if c.Slug == "" {
		c.Slug = Slugify(c.Name)
	}
	if err := required("name", c.Name, "slug", c.Slug); err != nil {
		return nil, err
	}
	id, err := r.Insert(ctx, c)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// Update applies p to the category with the given id.
func (r *CategoryRepo) Update(ctx context.Context, id int64, p *CategoryPatch) (bool, error) {
	if p.Name != nil {
		if err := required("name", *p.Name); err != nil {
			return false, err
		}
	}
	if p.Slug != nil {
		s := Slugify(*p.Slug)
		if s == "" {
			return false, invalidf("slug is required")
		}
		p.Slug = &s
	}
	return r.Patch(ctx, id, p)
}

// BySlug returns the category with the given slug.
func (r *CategoryRepo) BySlug(ctx context.Context, slug string) (*Category, error) {
	return r.SelectOne(ctx, "SELECT * FROM categories WHERE slug = ? LIMIT 1", slug)
}

// ListWithCounts returns every category with the number of active products
// it holds, in display order.
func (r *CategoryRepo) ListWithCounts(ctx context.Context) ([]Category, error) {
	return r.Select(ctx, `
		SELECT c.*, COUNT(p.id) AS product_count
		FROM categories c
		LEFT JOIN products p ON p.category_id = c.id AND p.status = 'active'
		GROUP BY c.id, c.name, c.slug, c.description, c.image_url, c.sort_order, c.created_at, c.updated_at
		ORDER BY c.sort_order, c.name
	`)
}

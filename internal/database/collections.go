package database

import (
	"context"
	"time"
)

// Collection is a curated set of products, such as a seasonal edit.
type Collection struct {
	ID          int64     `db:"id,readonly" json:"id"`
	Name        string    `db:"name" json:"name"`
	Slug        string    `db:"slug" json:"slug"`
	Description string    `db:"description" json:"description"`
	ImageURL    string    `db:"image_url" json:"image_url"`
	Featured    bool      `db:"featured" json:"featured"`
	CreatedAt   time.Time `db:"created_at,readonly" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at,readonly" json:"updated_at"`
}

type CollectionPatch struct {
	Name        *string `db:"name" json:"name"`
	Slug        *string `db:"slug" json:"slug"`
	Description *string `db:"description" json:"description"`
	ImageURL    *string `db:"image_url" json:"image_url"`
	Featured    *bool   `db:"featured" json:"featured"`
}

// collectionProduct is a row of the collection membership table.
type collectionProduct struct {
	CollectionID int64 `db:"collection_id"`
	ProductID    int64 `db:"product_id"`
	SortOrder    int   `db:"sort_order"`
}

// CollectionRepo stores collections and their product membership.
type CollectionRepo struct {
	*Table[Collection]
	m       *Manager
	members *Store
}

func newCollectionRepo(m *Manager) *CollectionRepo {
	return &CollectionRepo{
		Table:   NewTable[Collection](m, "collections", WithTimestamps()),
		m:       m,
		members: mustStore(m, "collection_products", WithColumns(columnsOf[collectionProduct]()...)),
	}
}

func (r *CollectionRepo) Create(ctx context.Context, c *Collection) (*Collection, error) {
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

func (r *CollectionRepo) Update(ctx context.Context, id int64, p *CollectionPatch) (bool, error) {
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

// BySlug returns the collection with the given slug.
func (r *CollectionRepo) BySlug(ctx context.Context, slug string) (*Collection, error) {
	return r.SelectOne(ctx, "SELECT * FROM collections WHERE slug = ? LIMIT 1", slug)
}

// Products returns the active products in a collection in their curated order.
func (r *CollectionRepo) Products(ctx context.Context, collectionID int64) ([]Product, error) {
	recs, err := r.members.Query(ctx, `
		SELECT p.*
		FROM collection_products cp
		JOIN products p ON p.id = cp.product_id
		WHERE cp.collection_id = ? AND p.status = ?
		ORDER BY cp.sort_order, p.id
	`, collectionID, ProductActive)
	if err != nil {
		return nil, newQueryError("list products of", "collections", err)
	}
	return decode[Product](recs)
}

// SetProducts replaces the collection's membership with productIDs, in that
// order. The swap happens in one transaction.
func (r *CollectionRepo) SetProducts(ctx context.Context, collectionID int64, productIDs []int64) error {
	if _, err := r.Get(ctx, collectionID); err != nil {
		return err
	}

	return r.m.Transaction(ctx, func(tx *Tx) error {
		members := r.members.WithTx(tx)
		if _, err := members.Exec(ctx, "DELETE FROM collection_products WHERE collection_id = ?", collectionID); err != nil {
			return newQueryError("clear", "collection_products", err)
		}

		seen := make(map[int64]bool, len(productIDs))
		for i, pid := range productIDs {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			rec, err := toRecord(collectionProduct{CollectionID: collectionID, ProductID: pid, SortOrder: i})
			if err != nil {
				return err
			}
			if _, err := members.Create(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

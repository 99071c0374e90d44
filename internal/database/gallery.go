package database

import (
	"context"
	"time"
)

// GalleryItem is an image shown on the lookbook page.
type GalleryItem struct {
	ID           int64     `db:"id,readonly" json:"id"`
	Title        string    `db:"title" json:"title"`
	ImageURL     string    `db:"image_url" json:"image_url"`
	Caption      string    `db:"caption" json:"caption"`
	CollectionID *int64    `db:"collection_id" json:"collection_id"`
	SortOrder    int       `db:"sort_order" json:"sort_order"`
	CreatedAt    time.Time `db:"created_at,readonly" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at,readonly" json:"updated_at"`
}

// GalleryPatch is a partial update. DetachCollection clears the item's
// collection and cannot be combined with CollectionID.
type GalleryPatch struct {
	Title            *string `db:"title" json:"title"`
	ImageURL         *string `db:"image_url" json:"image_url"`
	Caption          *string `db:"caption" json:"caption"`
	CollectionID     *int64  `db:"collection_id" json:"collection_id"`
	SortOrder        *int    `db:"sort_order" json:"sort_order"`
	DetachCollection bool    `db:"-" json:"detach_collection"`
}

type GalleryRepo struct {
	*Table[GalleryItem]
}

func newGalleryRepo(m *Manager) *GalleryRepo {
	return &GalleryRepo{Table: NewTable[GalleryItem](m, "gallery", WithTimestamps())}
}

func (r *GalleryRepo) Create(ctx context.Context, g *GalleryItem) (*GalleryItem, error) {
	if err := required("title", g.Title, "image_url", g.ImageURL); err != nil {
		return nil, err
	}
	id, err := r.Insert(ctx, g)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *GalleryRepo) Update(ctx context.Context, id int64, p *GalleryPatch) (bool, error) {
	if p.Title != nil {
		if err := required("title", *p.Title); err != nil {
			return false, err
		}
	}
	if p.ImageURL != nil {
		if err := required("image_url", *p.ImageURL); err != nil {
			return false, err
		}
	}
	if !p.DetachCollection {
		return r.Patch(ctx, id, p)
	}
	if p.CollectionID != nil {
		return false, invalidf("collection_id cannot be set while detaching the collection")
	}

	rec, err := toRecord(p)
	if err != nil {
		return false, err
	}
	rec["collection_id"] = nil
	return r.Store().Update(ctx, id, rec)
}

// Ordered returns gallery items in display order, optionally limited to one collection.
func (r *GalleryRepo) Ordered(ctx context.Context, collectionID *int64, p Page) ([]GalleryItem, error) {
	q := "SELECT * FROM gallery"
	var args []any
	if collectionID != nil {
		q += " WHERE collection_id = ?"
		args = append(args, *collectionID)
	}
	q += " ORDER BY sort_order, id"
	if p.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, p.Limit, max(p.Offset, 0))
	}
	return r.Select(ctx, q, args...)
}

package database

import (
	"context"
	"net/mail"
	"time"
)

// Review is a customer product review. New reviews wait for approval before
// they are shown.
type Review struct {
	ID           int64     `db:"id,readonly" json:"id"`
	ProductID    int64     `db:"product_id" json:"product_id"`
	CustomerName string    `db:"customer_name" json:"customer_name"`
	Email        string    `db:"email" json:"email,omitempty"`
	Rating       int       `db:"rating" json:"rating"`
	Comment      string    `db:"comment" json:"comment"`
	Approved     bool      `db:"approved" json:"approved"`
	CreatedAt    time.Time `db:"created_at,readonly" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at,readonly" json:"updated_at"`
}

// ReviewSummary aggregates the approved reviews of one product.
type ReviewSummary struct {
	ProductID int64   `json:"product_id"`
	Count     int64   `json:"count"`
	Average   float64 `json:"average"`
}

type ReviewRepo struct {
	*Table[Review]
	products *ProductRepo
}

func newReviewRepo(m *Manager, products *ProductRepo) *ReviewRepo {
	return &ReviewRepo{Table: NewTable[Review](m, "reviews", WithTimestamps()), products: products}
}

// Submit stores a review for moderation. Reviews always start unapproved.
func (r *ReviewRepo) Submit(ctx context.Context, rv *Review) (*Review, error) {
	if err := required("customer_name", rv.CustomerName); err != nil {
		return nil, err
	}
	if rv.Rating < 1 || rv.Rating > 5 {
		return nil, invalidf("rating must be between 1 and 5")
	}
	if rv.Email != "" {
		if _, err := mail.ParseAddress(rv.Email); err != nil {
			return nil, invalidf("email is not valid")
		}
	}
	if _, err := r.products.Get(ctx, rv.ProductID); err != nil {
		return nil, err
	}
	rv.Approved = false
	id, err := r.Insert(ctx, rv)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// ForProduct returns the approved reviews of a product, newest first.
func (r *ReviewRepo) ForProduct(ctx context.Context, productID int64, p Page) ([]Review, error) {
	return r.List(ctx, Filter{"product_id": productID, "approved": true}, p)
}

// Pending returns reviews awaiting moderation.
func (r *ReviewRepo) Pending(ctx context.Context, p Page) ([]Review, error) {
	return r.List(ctx, Filter{"approved": false}, p)
}

// Summary returns the approved review count and average rating of a product.
func (r *ReviewRepo) Summary(ctx context.Context, productID int64) (*ReviewSummary, error) {
	rec, err := r.Store().QueryOne(ctx, `
		SELECT COUNT(*) AS review_count, COALESCE(AVG(rating), 0) AS average_rating
		FROM reviews
		WHERE product_id = ? AND approved = ?
	`, productID, true)
	if err != nil {
		return nil, newQueryError("summarize", "reviews", err)
	}
	return &ReviewSummary{
		ProductID: productID,
		Count:     rec.Int64("review_count"),
		Average:   rec.Float64("average_rating"),
	}, nil
}

// SetApproved publishes or hides a review.
func (r *ReviewRepo) SetApproved(ctx context.Context, id int64, approved bool) (bool, error) {
	return r.Store().Update(ctx, id, Record{"approved": approved})
}

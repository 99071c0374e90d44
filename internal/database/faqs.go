package database

import (
	"context"
	"time"
)

type FAQ struct {
	ID        int64     `db:"id,readonly" json:"id"`
	Question  string    `db:"question" json:"question"`
	Answer    string    `db:"answer" json:"answer"`
	Category  string    `db:"category" json:"category"`
	SortOrder int       `db:"sort_order" json:"sort_order"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at,readonly" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at,readonly" json:"updated_at"`
}

type FAQPatch struct {
	Question  *string `db:"question" json:"question"`
	Answer    *string `db:"answer" json:"answer"`
	Category  *string `db:"category" json:"category"`
	SortOrder *int    `db:"sort_order" json:"sort_order"`
	Active    *bool   `db:"active" json:"active"`
}

type FAQRepo struct {
	*Table[FAQ]
}

func newFAQRepo(m *Manager) *FAQRepo {
	return &FAQRepo{Table: NewTable[FAQ](m, "faqs", WithTimestamps())}
}

func (r *FAQRepo) Create(ctx context.Context, f *FAQ) (*FAQ, error) {
	if err := required("question", f.Question, "answer", f.Answer); err != nil {
		return nil, err
	}
	id, err := r.Insert(ctx, f)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

func (r *FAQRepo) Update(ctx context.Context, id int64, p *FAQPatch) (bool, error) {
	if p.Question != nil {
		if err := required("question", *p.Question); err != nil {
			return false, err
		}
	}
	if p.Answer != nil {
		if err := required("answer", *p.Answer); err != nil {
			return false, err
		}
	}
	return r.Patch(ctx, id, p)
}

// Active returns the published FAQs in display order. An empty category
// returns every category.
func (r *FAQRepo) Active(ctx context.Context, category string) ([]FAQ, error) {
	if category == "" {
		return r.Select(ctx, "SELECT * FROM faqs WHERE active = ? ORDER BY sort_order, id", true)
	}
	return r.Select(ctx, "SELECT * FROM faqs WHERE active = ? AND category = ? ORDER BY sort_order, id", true, category)
}

package database

import (
	"context"
	"net/mail"
	"time"
)

// Inquiry statuses, in workflow order.
const (
	InquiryNew      = "new"
	InquiryRead     = "read"
	InquiryResolved = "resolved"
)

var inquiryRank = map[string]int{
	InquiryNew:      0,
	InquiryRead:     1,
	InquiryResolved: 2,
}

// Inquiry is a contact-form submission.
type Inquiry struct {
	ID        int64     `db:"id,readonly" json:"id"`
	Name      string    `db:"name" json:"name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Subject   string    `db:"subject" json:"subject"`
	Message   string    `db:"message" json:"message"`
	ProductID *int64    `db:"product_id" json:"product_id"`
	Status    string    `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at,readonly" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at,readonly" json:"updated_at"`
}

type InquiryRepo struct {
	*Table[Inquiry]
}

func newInquiryRepo(m *Manager) *InquiryRepo {
	return &InquiryRepo{Table: NewTable[Inquiry](m, "inquiries", WithTimestamps())}
}

// Submit stores a new inquiry.
func (r *InquiryRepo) Submit(ctx context.Context, in *Inquiry) (*Inquiry, error) {
	if err := required("name", in.Name, "email", in.Email, "message", in.Message); err != nil {
		return nil, err
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return nil, invalidf("email is not valid")
	}
	in.Status = InquiryNew
	id, err := r.Insert(ctx, in)
	if err != nil {
		return nil, err
	}
	return r.Get(ctx, id)
}

// SetStatus moves an inquiry forward through new, read and resolved.
// Moving backwards is rejected.
func (r *InquiryRepo) SetStatus(ctx context.Context, id int64, status string) error {
	next, ok := inquiryRank[status]
	if !ok {
		return invalidf("unknown inquiry status %q", status)
	}
	cur, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if next < inquiryRank[cur.Status] {
		return invalidf("inquiry cannot move from %s to %s", cur.Status, status)
	}
	if next == inquiryRank[cur.Status] {
		return nil
	}
	ok, err = r.Store().Update(ctx, id, Record{"status": status})
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

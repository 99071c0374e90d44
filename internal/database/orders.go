package database

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/mail"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Order statuses.
const (
	OrderPending    = "pending"
	OrderConfirmed  = "confirmed"
	OrderProcessing = "processing"
	OrderShipped    = "shipped"
	OrderDelivered  = "delivered"
	OrderCancelled  = "cancelled"
)

// OrderStatuses lists every valid order status.
var OrderStatuses = []string{
	OrderPending, OrderConfirmed, OrderProcessing, OrderShipped, OrderDelivered, OrderCancelled,
}

func validOrderStatus(s string) bool {
	for _, v := range OrderStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Order is a placed storefront order.
type Order struct {
	ID              int64     `db:"id,readonly" json:"id"`
	Reference       string    `db:"reference" json:"reference"`
	CustomerName    string    `db:"customer_name" json:"customer_name"`
	Email           string    `db:"email" json:"email"`
	Phone           string    `db:"phone" json:"phone"`
	ShippingAddress string    `db:"shipping_address" json:"shipping_address"`
	Notes           string    `db:"notes" json:"notes"`
	Status          string    `db:"status" json:"status"`
	Subtotal        float64   `db:"subtotal" json:"subtotal"`
	Total           float64   `db:"total" json:"total"`
	CreatedAt       time.Time `db:"created_at,readonly" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at,readonly" json:"updated_at"`

	Items []OrderItem `db:"-" json:"items,omitempty"`
}

// OrderItem is one product line of an order. Name and price are copied at
// placement so later catalog edits do not rewrite history.
type OrderItem struct {
	ID          int64   `db:"id,readonly" json:"id"`
	OrderID     int64   `db:"order_id" json:"order_id"`
	ProductID   *int64  `db:"product_id" json:"product_id"`
	ProductName string  `db:"product_name" json:"product_name"`
	UnitPrice   float64 `db:"unit_price" json:"unit_price"`
	Quantity    int     `db:"quantity" json:"quantity"`
	LineTotal   float64 `db:"line_total" json:"line_total"`
}

// OrderLine is one requested line of a new order.
type OrderLine struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// NewOrder is the customer input for Place.
type NewOrder struct {
	CustomerName    string      `json:"customer_name"`
	Email           string      `json:"email"`
	Phone           string      `json:"phone"`
	ShippingAddress string      `json:"shipping_address"`
	Notes           string      `json:"notes"`
	Items           []OrderLine `json:"items"`
}

func (n *NewOrder) validate() error {
	if err := required("customer_name", n.CustomerName, "email", n.Email, "shipping_address", n.ShippingAddress); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(n.Email); err != nil {
		return invalidf("email is not valid")
	}
	if len(n.Items) == 0 {
		return invalidf("order has no items")
	}
	for _, it := range n.Items {
		if it.Quantity <= 0 {
			return invalidf("quantity for product %d must be positive", it.ProductID)
		}
	}
	return nil
}

// OrderStats summarizes orders for the admin dashboard.
type OrderStats struct {
	Total    int64            `json:"total"`
	ByStatus map[string]int64 `json:"by_status"`
	Revenue  float64          `json:"revenue"`
}

type OrderRepo struct {
	*Table[Order]
	m        *Manager
	items    *Table[OrderItem]
	products *ProductRepo
}

func newOrderRepo(m *Manager, products *ProductRepo) *OrderRepo {
	return &OrderRepo{
		Table:    NewTable[Order](m, "orders", WithTimestamps()),
		m:        m,
		items:    NewTable[OrderItem](m, "order_items"),
		products: products,
	}
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Place records an order with its items and takes the ordered units out of
// stock. Everything happens in one transaction: if any product is missing or
// short on stock nothing is written.
func (r *OrderRepo) Place(ctx context.Context, in *NewOrder) (*Order, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	var orderID int64
	err := r.m.Transaction(ctx, func(tx *Tx) error {
		products := r.products.WithTx(tx)
		orders := r.Table.WithTx(tx)
		items := r.items.WithTx(tx)

		var lines []OrderItem
		var subtotal float64
		for _, line := range in.Items {
			p, err := products.Get(ctx, line.ProductID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					return invalidf("product %d does not exist", line.ProductID)
				}
				return err
			}
			if p.Status != ProductActive {
				return invalidf("product %d is not available", line.ProductID)
			}
			if err := products.AdjustStock(ctx, p.ID, -line.Quantity); err != nil {
				if errors.Is(err, ErrInsufficientStock) {
					return fmt.Errorf("%w: %s has %d left", ErrInsufficientStock, p.Name, p.Stock)
				}
				return err
			}

			unit := p.EffectivePrice()
			total := roundCents(unit * float64(line.Quantity))
			subtotal += total
			pid := p.ID
			lines = append(lines, OrderItem{
				ProductID:   &pid,
				ProductName: p.Name,
				UnitPrice:   unit,
				Quantity:    line.Quantity,
				LineTotal:   total,
			})
		}

		subtotal = roundCents(subtotal)
		id, err := orders.Insert(ctx, &Order{
			Reference:       uuid.NewString(),
			CustomerName:    in.CustomerName,
			Email:           in.Email,
			Phone:           in.Phone,
			ShippingAddress: in.ShippingAddress,
			Notes:           in.Notes,
			Status:          OrderPending,
			Subtotal:        subtotal,
			Total:           subtotal,
		})
		if err != nil {
			return err
		}

		for i := range lines {
			lines[i].OrderID = id
			if _, err := items.Insert(ctx, &lines[i]); err != nil {
				return err
			}
		}
		orderID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Int64("order_id", orderID).Int("lines", len(in.Items)).Msg("Order placed")
	return r.WithItems(ctx, orderID)
}

// WithItems returns an order together with its line items.
func (r *OrderRepo) WithItems(ctx context.Context, id int64) (*Order, error) {
	o, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	items, err := r.items.Select(ctx, "SELECT * FROM order_items WHERE order_id = ? ORDER BY id", id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return o, nil
}

// ByReference returns the order with the given public reference, with items.
func (r *OrderRepo) ByReference(ctx context.Context, ref string) (*Order, error) {
	if _, err := uuid.Parse(ref); err != nil {
		return nil, ErrNotFound
	}
	o, err := r.SelectOne(ctx, "SELECT * FROM orders WHERE reference = ? LIMIT 1", ref)
	if err != nil {
		return nil, err
	}
	return r.WithItems(ctx, o.ID)
}

// UpdateStatus moves an order to status. Cancelling an order that was not
// already cancelled puts its units back in stock in the same transaction.
// Delivered and cancelled orders are final.
func (r *OrderRepo) UpdateStatus(ctx context.Context, id int64, status string) (*Order, error) {
	if !validOrderStatus(status) {
		return nil, invalidf("unknown order status %q", status)
	}

	err := r.m.Transaction(ctx, func(tx *Tx) error {
		orders := r.Table.WithTx(tx)
		o, err := orders.Get(ctx, id)
		if err != nil {
			return err
		}
		if o.Status == status {
			return nil
		}
		if o.Status == OrderDelivered || o.Status == OrderCancelled {
			return invalidf("order is already %s", o.Status)
		}

		if status == OrderCancelled {
			products := r.products.WithTx(tx)
			items, err := r.items.WithTx(tx).Select(ctx, "SELECT * FROM order_items WHERE order_id = ?", id)
			if err != nil {
				return err
			}
			for _, it := range items {
				if it.ProductID == nil {
					continue
				}
				err := products.AdjustStock(ctx, *it.ProductID, it.Quantity)
				if err != nil && !errors.Is(err, ErrNotFound) {
					return err
				}
			}
		}

		_, err = orders.Store().Update(ctx, id, Record{"status": status})
		return err
	})
	if err != nil {
		return nil, err
	}
	return r.WithItems(ctx, id)
}

// Stats counts orders per status and sums the revenue of orders that were not cancelled.
func (r *OrderRepo) Stats(ctx context.Context) (*OrderStats, error) {
	recs, err := r.Store().Query(ctx, `
		SELECT status, COUNT(*) AS order_count, COALESCE(SUM(total), 0) AS revenue
		FROM orders
		GROUP BY status
	`)
	if err != nil {
		return nil, newQueryError("summarize", "orders", err)
	}

	stats := &OrderStats{ByStatus: make(map[string]int64, len(OrderStatuses))}
	for _, s := range OrderStatuses {
		stats.ByStatus[s] = 0
	}
	for _, rec := range recs {
		n := rec.Int64("order_count")
		status := rec.String("status")
		stats.ByStatus[status] = n
		stats.Total += n
		if status != OrderCancelled {
			stats.Revenue += rec.Float64("revenue")
		}
	}
	stats.Revenue = roundCents(stats.Revenue)
	return stats, nil
}

package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/config"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
)

// OrderPlace places a storefront order. Stock is reserved atomically; a
// short line fails the whole order with 409.
func (h *Handlers) OrderPlace(w http.ResponseWriter, r *http.Request) {
	if !config.NewLoader(r.Context(), h.db.Settings).BoolDefaultTrue("orders.accepting") {
		JSONError(w, http.StatusServiceUnavailable, "the store is not accepting orders right now")
		return
	}

	var in database.NewOrder
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.db.Orders.Place(r.Context(), &in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, order)
}

// OrderTrack returns an order by its public reference.
func (h *Handlers) OrderTrack(w http.ResponseWriter, r *http.Request) {
	order, err := h.db.Orders.ByReference(r.Context(), chi.URLParam(r, "reference"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, order)
}

// OrdersList lists orders, newest first, optionally by status.
func (h *Handlers) OrdersList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f := database.Filter{}
	if s := r.URL.Query().Get("status"); s != "" {
		f["status"] = s
	}
	orders, err := h.db.Orders.List(r.Context(), f, p.Page())
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.db.Orders.Count(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, orders, p, total)
}

func (h *Handlers) OrderGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.db.Orders.WithItems(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, order)
}

type statusRequest struct {
	Status string `json:"status"`
}

// OrderUpdateStatus moves an order through its workflow.
func (h *Handlers) OrderUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	order, err := h.db.Orders.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, order)
}

// OrderStats summarizes orders for the dashboard.
func (h *Handlers) OrderStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.db.Orders.Stats(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, stats)
}

// ReviewSubmit stores a customer review for moderation.
func (h *Handlers) ReviewSubmit(w http.ResponseWriter, r *http.Request) {
	var rv database.Review
	if err := decodeJSON(w, r, &rv); err != nil {
		respondError(w, r, err)
		return
	}
	review, err := h.db.Reviews.Submit(r.Context(), &rv)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !config.NewLoader(r.Context(), h.db.Settings).BoolDefaultTrue("reviews.require_approval") {
		if _, err := h.db.Reviews.SetApproved(r.Context(), review.ID, true); err != nil {
			respondError(w, r, err)
			return
		}
		review.Approved = true
	}
	respond(w, http.StatusCreated, review)
}

// ReviewsPending lists reviews awaiting moderation.
func (h *Handlers) ReviewsPending(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	reviews, err := h.db.Reviews.Pending(r.Context(), p.Page())
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.db.Reviews.Count(r.Context(), database.Filter{"approved": false})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, reviews, p, total)
}

type approveRequest struct {
	Approved bool `json:"approved"`
}

// ReviewSetApproved publishes or hides a review.
func (h *Handlers) ReviewSetApproved(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req approveRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Reviews.SetApproved(r.Context(), id, req.Approved)
	respondMatched(w, r, ok, err, func() (*database.Review, error) {
		return h.db.Reviews.Get(r.Context(), id)
	})
}

func (h *Handlers) ReviewDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Reviews.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err)
}

// InquirySubmit stores a contact-form message.
func (h *Handlers) InquirySubmit(w http.ResponseWriter, r *http.Request) {
	var in database.Inquiry
	if err := decodeJSON(w, r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	inquiry, err := h.db.Inquiries.Submit(r.Context(), &in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, inquiry)
}

func (h *Handlers) InquiriesList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	f := database.Filter{}
	if s := r.URL.Query().Get("status"); s != "" {
		f["status"] = s
	}
	items, err := h.db.Inquiries.List(r.Context(), f, p.Page())
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.db.Inquiries.Count(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, p, total)
}

func (h *Handlers) InquiryGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	inquiry, err := h.db.Inquiries.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, inquiry)
}

// InquirySetStatus moves an inquiry forward through new, read and resolved.
func (h *Handlers) InquirySetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.db.Inquiries.SetStatus(r.Context(), id, req.Status); err != nil {
		respondError(w, r, err)
		return
	}
	inquiry, err := h.db.Inquiries.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, inquiry)
}

func (h *Handlers) InquiryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Inquiries.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err)
}

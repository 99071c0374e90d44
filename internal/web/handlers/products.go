package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/config"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/web/middleware"
)

func isAdmin(r *http.Request) bool {
	u := middleware.GetUser(r.Context())
	return u != nil && u.IsAdmin()
}

// ProductsList lists products. Anonymous callers only see active products;
// admins may filter by status. A q parameter runs a text search.
func (h *Handlers) ProductsList(w http.ResponseWriter, r *http.Request) {
	settings := config.NewLoader(r.Context(), h.db.Settings)
	p, err := parsePageDefault(r, settings.Int("catalog.products_per_page", DefaultPageLimit))
	if err != nil {
		respondError(w, r, err)
		return
	}

	if term := strings.TrimSpace(r.URL.Query().Get("q")); term != "" {
		items, err := h.db.Products.Search(r.Context(), term, p.Page())
		if err != nil {
			respondError(w, r, err)
			return
		}
		total, err := h.db.Products.CountSearch(r.Context(), term)
		if err != nil {
			respondError(w, r, err)
			return
		}
		respondPage(w, items, p, total)
		return
	}

	q := database.ProductQuery{Status: database.ProductActive, Page: p.Page()}
	if q.CategoryID, err = queryInt64(r, "category_id"); err != nil {
		respondError(w, r, err)
		return
	}
	if q.Featured, err = queryBool(r, "featured"); err != nil {
		respondError(w, r, err)
		return
	}
	if isAdmin(r) {
		q.Status = r.URL.Query().Get("status")
	} else {
		q.InStock = !settings.Bool("catalog.show_out_of_stock", true)
	}

	items, err := h.db.Products.Find(r.Context(), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.db.Products.CountMatching(r.Context(), q)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, p, total)
}

// ProductGet returns one product by id. Non-active products are hidden from
// anonymous callers.
func (h *Handlers) ProductGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	product, err := h.db.Products.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if product.Status != database.ProductActive && !isAdmin(r) {
		JSONError(w, http.StatusNotFound, "not found")
		return
	}
	respond(w, http.StatusOK, product)
}

// ProductBySlug returns one product by its URL slug.
func (h *Handlers) ProductBySlug(w http.ResponseWriter, r *http.Request) {
	product, err := h.db.Products.BySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if product.Status != database.ProductActive && !isAdmin(r) {
		JSONError(w, http.StatusNotFound, "not found")
		return
	}
	respond(w, http.StatusOK, product)
}

// ProductCreate adds a product.
func (h *Handlers) ProductCreate(w http.ResponseWriter, r *http.Request) {
	var p database.Product
	if err := decodeJSON(w, r, &p); err != nil {
		respondError(w, r, err)
		return
	}
	created, err := h.db.Products.Create(r.Context(), &p)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, created)
}

// ProductUpdate applies a partial update.
func (h *Handlers) ProductUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var patch database.ProductPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Products.Update(r.Context(), id, &patch)
	respondMatched(w, r, ok, err, func() (*database.Product, error) {
		return h.db.Products.Get(r.Context(), id)
	})
}

// ProductDelete removes a product.
func (h *Handlers) ProductDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Products.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err)
}

type stockRequest struct {
	Delta int `json:"delta"`
}

// ProductAdjustStock adds a signed delta to a product's stock.
func (h *Handlers) ProductAdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req stockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.db.Products.AdjustStock(r.Context(), id, req.Delta); err != nil {
		respondError(w, r, err)
		return
	}
	product, err := h.db.Products.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, product)
}

type productReviews struct {
	Summary *database.ReviewSummary `json:"summary"`
	Reviews []database.Review       `json:"reviews"`
}

// ProductReviews returns the approved reviews of a product and their summary.
func (h *Handlers) ProductReviews(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if _, err := h.db.Products.Get(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	reviews, err := h.db.Reviews.ForProduct(r.Context(), id, p.Page())
	if err != nil {
		respondError(w, r, err)
		return
	}
	summary, err := h.db.Reviews.Summary(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, productReviews{Summary: summary, Reviews: reviews}, p, summary.Count)
}

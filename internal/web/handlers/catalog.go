package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Dhavaldave121002/Rumi-By-Manishs-sub001/internal/database"
)

// CategoriesList returns every category with its active product count.
func (h *Handlers) CategoriesList(w http.ResponseWriter, r *http.Request) {
	cats, err := h.db.Categories.ListWithCounts(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, cats)
}

func (h *Handlers) CategoryGet(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	cat, err := h.db.Categories.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, cat)
}

// CategoryProducts lists the active products of the category with the given slug.
func (h *Handlers) CategoryProducts(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	slug := chi.URLParam(r, "slug")
	cat, err := h.db.Categories.BySlug(r.Context(), slug)
	if err != nil {
		respondError(w, r, err)
		return
	}
	items, err := h.db.Products.ListByCategorySlug(r.Context(), slug, p.Page())
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.db.Products.CountMatching(r.Context(), database.ProductQuery{CategoryID: &cat.ID, Status: database.ProductActive})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, p, total)
}

func (h *Handlers) CategoryCreate(w http.ResponseWriter, r *http.Request) {
	var c database.Category
	if err := decodeJSON(w, r, &c); err != nil {
		respondError(w, r, err)
		return
	}
	created, err := h.db.Categories.Create(r.Context(), &c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, created)
}

func (h *Handlers) CategoryUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var patch database.CategoryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Categories.Update(r.Context(), id, &patch)
	respondMatched(w, r, ok, err, func() (*database.Category, error) {
		return h.db.Categories.Get(r.Context(), id)
	})
}

func (h *Handlers) CategoryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Categories.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err)
}

// CollectionsList lists collections, optionally only featured ones.
func (h *Handlers) CollectionsList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	featured, err := queryBool(r, "featured")
	if err != nil {
		respondError(w, r, err)
		return
	}
	f := database.Filter{}
	if featured != nil {
		f["featured"] = *featured
	}
	items, err := h.db.Collections.List(r.Context(), f, p.Page())
	if err != nil {
		respondError(w, r, err)
		return
	}
	total, err := h.db.Collections.Count(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, p, total)
}

type collectionDetail struct {
	*database.Collection
	Products []database.Product `json:"products"`
}

// CollectionBySlug returns a collection with its products in curated order.
func (h *Handlers) CollectionBySlug(w http.ResponseWriter, r *http.Request) {
	c, err := h.db.Collections.BySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	products, err := h.db.Collections.Products(r.Context(), c.ID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, collectionDetail{Collection: c, Products: products})
}

func (h *Handlers) CollectionCreate(w http.ResponseWriter, r *http.Request) {
	var c database.Collection
	if err := decodeJSON(w, r, &c); err != nil {
		respondError(w, r, err)
		return
	}
	created, err := h.db.Collections.Create(r.Context(), &c)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, created)
}

func (h *Handlers) CollectionUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var patch database.CollectionPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Collections.Update(r.Context(), id, &patch)
	respondMatched(w, r, ok, err, func() (*database.Collection, error) {
		return h.db.Collections.Get(r.Context(), id)
	})
}

func (h *Handlers) CollectionDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Collections.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err)
}

type membershipRequest struct {
	ProductIDs []int64 `json:"product_ids"`
}

// CollectionSetProducts replaces a collection's products.
func (h *Handlers) CollectionSetProducts(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var req membershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}
	if err := h.db.Collections.SetProducts(r.Context(), id, req.ProductIDs); err != nil {
		respondError(w, r, err)
		return
	}
	products, err := h.db.Collections.Products(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, products)
}

// GalleryList returns gallery items in display order.
func (h *Handlers) GalleryList(w http.ResponseWriter, r *http.Request) {
	p, err := parsePage(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	collectionID, err := queryInt64(r, "collection_id")
	if err != nil {
		respondError(w, r, err)
		return
	}
	items, err := h.db.Gallery.Ordered(r.Context(), collectionID, p.Page())
	if err != nil {
		respondError(w, r, err)
		return
	}
	f := database.Filter{}
	if collectionID != nil {
		f["collection_id"] = *collectionID
	}
	total, err := h.db.Gallery.Count(r.Context(), f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondPage(w, items, p, total)
}

func (h *Handlers) GalleryCreate(w http.ResponseWriter, r *http.Request) {
	var g database.GalleryItem
	if err := decodeJSON(w, r, &g); err != nil {
		respondError(w, r, err)
		return
	}
	created, err := h.db.Gallery.Create(r.Context(), &g)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, created)
}

func (h *Handlers) GalleryUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var patch database.GalleryPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Gallery.Update(r.Context(), id, &patch)
	respondMatched(w, r, ok, err, func() (*database.GalleryItem, error) {
		return h.db.Gallery.Get(r.Context(), id)
	})
}

func (h *Handlers) GalleryDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.Gallery.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err)
}

// FAQsList returns the published FAQs. Admins get every FAQ with all=true.
func (h *Handlers) FAQsList(w http.ResponseWriter, r *http.Request) {
	if all, _ := queryBool(r, "all"); all != nil && *all && isAdmin(r) {
		faqs, err := h.db.FAQs.List(r.Context(), nil, database.Page{})
		if err != nil {
			respondError(w, r, err)
			return
		}
		respond(w, http.StatusOK, faqs)
		return
	}
	faqs, err := h.db.FAQs.Active(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusOK, faqs)
}

func (h *Handlers) FAQCreate(w http.ResponseWriter, r *http.Request) {
	f := database.FAQ{Active: true}
	if err := decodeJSON(w, r, &f); err != nil {
		respondError(w, r, err)
		return
	}
	created, err := h.db.FAQs.Create(r.Context(), &f)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respond(w, http.StatusCreated, created)
}

func (h *Handlers) FAQUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	var patch database.FAQPatch
	if err := decodeJSON(w, r, &patch); err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.FAQs.Update(r.Context(), id, &patch)
	respondMatched(w, r, ok, err, func() (*database.FAQ, error) {
		return h.db.FAQs.Get(r.Context(), id)
	})
}

func (h *Handlers) FAQDelete(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	ok, err := h.db.FAQs.Delete(r.Context(), id)
	respondDeleted(w, r, ok, err)
}

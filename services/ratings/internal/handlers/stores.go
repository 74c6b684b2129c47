package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/store-rating/internal/platform/api"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/service"
)

func (h *handler) storeQuery(r *http.Request) (domain.StoreQuery, error) {
	q := r.URL.Query()
	paging, err := h.Limits.Paging(q.Get("page"), q.Get("limit"))
	if err != nil {
		return domain.StoreQuery{}, err
	}
	sortBy, err := domain.ParseStoreSort(q.Get("sortBy"))
	if err != nil {
		return domain.StoreQuery{}, err
	}
	order, err := domain.ParseSortOrder(q.Get("sortOrder"))
	if err != nil {
		return domain.StoreQuery{}, err
	}
	return domain.StoreQuery{
		Search:    strings.TrimSpace(q.Get("search")),
		SortBy:    sortBy,
		SortOrder: order,
		Paging:    paging,
	}, nil
}

// listStores handles GET /stores and GET /admin/stores
func (h *handler) listStores(w http.ResponseWriter, r *http.Request) {
	q, err := h.storeQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.Stores.List(r.Context(), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, page)
}

// getStore handles GET /stores/{id}
func (h *handler) getStore(w http.ResponseWriter, r *http.Request) {
	st, err := h.Stores.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, st)
}

// createStore handles POST /stores and POST /admin/stores
func (h *handler) createStore(w http.ResponseWriter, r *http.Request) {
	var req service.StoreInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.Stores.Create(r.Context(), principal(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, st)
}

type updateStoreRequest struct {
	Name    *string `json:"name"`
	Email   *string `json:"email"`
	Address *string `json:"address"`
	// OwnerID is raw so an explicit null can be told apart from absence.
	OwnerID json.RawMessage `json:"ownerId"`
}

func (req updateStoreRequest) patch() (service.StorePatch, error) {
	p := service.StorePatch{Name: req.Name, Email: req.Email, Address: req.Address}
	if len(req.OwnerID) == 0 {
		return p, nil
	}
	p.OwnerSet = true
	if string(req.OwnerID) == "null" {
		return p, nil
	}
	var id string
	if err := json.Unmarshal(req.OwnerID, &id); err != nil {
		return service.StorePatch{}, domain.Invalid("INVALID_OWNER", "ownerId must be a string or null", map[string]string{"ownerId": "must be a string or null"})
	}
	p.OwnerID = &id
	return p, nil
}

// updateStore handles PUT /stores/{id}
func (h *handler) updateStore(w http.ResponseWriter, r *http.Request) {
	var req updateStoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	st, err := h.Stores.Update(r.Context(), principal(r), chi.URLParam(r, "id"), patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, st)
}

// deleteStore handles DELETE /stores/{id}
func (h *handler) deleteStore(w http.ResponseWriter, r *http.Request) {
	if err := h.Stores.Delete(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

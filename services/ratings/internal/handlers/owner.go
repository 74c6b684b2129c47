package handlers

import (
	"net/http"
)

// ownerDashboard handles GET /owner/dashboard
func (h *handler) ownerDashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Stores.OwnerDashboard(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, d)
}

// ownerStores handles GET /owner/stores
func (h *handler) ownerStores(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stores.OwnerStores(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, out)
}

// ownerRaters handles GET /owner/raters
func (h *handler) ownerRaters(w http.ResponseWriter, r *http.Request) {
	out, err := h.Stores.OwnerRaters(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, out)
}

package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/store-rating/internal/platform/api"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/service"
)

// adminDashboard handles GET /admin/dashboard
func (h *handler) adminDashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Accounts.Dashboard(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, stats)
}

func (h *handler) userQuery(r *http.Request) (domain.UserQuery, error) {
	q := r.URL.Query()
	paging, err := h.Limits.Paging(q.Get("page"), q.Get("limit"))
	if err != nil {
		return domain.UserQuery{}, err
	}
	sortBy, err := domain.ParseUserSort(q.Get("sortBy"))
	if err != nil {
		return domain.UserQuery{}, err
	}
	order, err := domain.ParseSortOrder(q.Get("sortOrder"))
	if err != nil {
		return domain.UserQuery{}, err
	}
	var role domain.Role
	if raw := strings.TrimSpace(q.Get("role")); raw != "" {
		parsed, ok := domain.ParseRole(raw)
		if !ok {
			return domain.UserQuery{}, domain.Invalid("INVALID_ROLE", "unknown role filter", map[string]string{"role": "must be one of admin, user, store_owner"})
		}
		role = parsed
	}
	return domain.UserQuery{
		Name:      strings.TrimSpace(q.Get("name")),
		Email:     strings.TrimSpace(q.Get("email")),
		Address:   strings.TrimSpace(q.Get("address")),
		Role:      role,
		SortBy:    sortBy,
		SortOrder: order,
		Paging:    paging,
	}, nil
}

// listUsers handles GET /admin/users
func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	q, err := h.userQuery(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page, err := h.Accounts.ListUsers(r.Context(), principal(r), q)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, page)
}

// createUser handles POST /admin/users
func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	var req service.UserInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.Accounts.CreateUser(r.Context(), principal(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, u)
}

// getUser handles GET /admin/users/{id}
func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := h.Accounts.GetUser(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, u)
}

// updateUser handles PUT /admin/users/{id}
func (h *handler) updateUser(w http.ResponseWriter, r *http.Request) {
	var req service.UserPatch
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.Accounts.UpdateUser(r.Context(), principal(r), chi.URLParam(r, "id"), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, u)
}

// deleteUser handles DELETE /admin/users/{id}
func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.Accounts.DeleteUser(r.Context(), principal(r), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

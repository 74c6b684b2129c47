package handlers

import (
	"net/http"

	"github.com/example/store-rating/internal/platform/api"
	"github.com/example/store-rating/services/ratings/internal/service"
)

// register handles POST /auth/register
func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Accounts.Register(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, res)
}

// login handles POST /auth/login
func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	res, err := h.Accounts.Login(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, res)
}

// me handles GET /me
func (h *handler) me(w http.ResponseWriter, r *http.Request) {
	u, err := h.Accounts.Me(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, u)
}

type updateMeRequest struct {
	Name     *string `json:"name"`
	Address  *string `json:"address"`
	Password *string `json:"password"`
}

// updateMe handles PUT /me
func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	var req updateMeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	u, err := h.Accounts.UpdateMe(r.Context(), principal(r), service.UserPatch{
		Name: req.Name, Address: req.Address, Password: req.Password,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, u)
}

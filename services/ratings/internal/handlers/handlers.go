// Package handlers exposes the ratings service over HTTP.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/store-rating/internal/platform/api"
	"github.com/example/store-rating/internal/platform/auth"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/service"
)

type Deps struct {
	Ratings  *service.Ratings
	Stores   *service.Stores
	Accounts *service.Accounts
	Limits   service.Limits
	Verifier auth.JWTVerifier
	Log      *zap.Logger
}

type handler struct {
	Deps
}

// Mount registers every ratings route on r. Call httpserver.SetupRouter first.
func Mount(r chi.Router, d Deps) {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handler{Deps: d}

	// Public
	r.Post("/auth/register", h.register)
	r.Post("/auth/login", h.login)
	r.Get("/stores", h.listStores)
	r.Get("/stores/{id}", h.getStore)
	r.Get("/stores/{id}/aggregate", h.storeAggregate)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireUser(d.Verifier))

		r.Get("/me", h.me)
		r.Put("/me", h.updateMe)

		r.Get("/stores/ratings/my", h.myRatings)
		r.Post("/stores/{id}/rate", h.rateStore)
		r.Get("/stores/{id}/ratings", h.storeRatings)

		r.Post("/ratings", h.submitRating)
		r.Put("/ratings/{id}", h.updateRating)
		r.Get("/ratings/my-ratings", h.myRatings)
		r.Get("/ratings/store/{id}", h.storeRatings)

		r.With(auth.RequireRole(string(domain.RoleAdmin), string(domain.RoleStoreOwner))).Post("/stores", h.createStore)
		// Store writes check existence before role, so they are gated in the service.
		r.Put("/stores/{id}", h.updateStore)
		r.Delete("/stores/{id}", h.deleteStore)

		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireAdmin)
			r.Get("/dashboard", h.adminDashboard)
			r.Get("/users", h.listUsers)
			r.Post("/users", h.createUser)
			r.Get("/users/{id}", h.getUser)
			r.Put("/users/{id}", h.updateUser)
			r.Delete("/users/{id}", h.deleteUser)
			r.Get("/stores", h.listStores)
			r.Post("/stores", h.createStore)
		})

		r.Route("/owner", func(r chi.Router) {
			r.Use(auth.RequireRole(string(domain.RoleStoreOwner)))
			r.Get("/dashboard", h.ownerDashboard)
			r.Get("/stores", h.ownerStores)
			r.Get("/raters", h.ownerRaters)
		})
	})
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, h.Log, err)
}

func (h *handler) ok(w http.ResponseWriter, v any) {
	api.WriteJSON(w, http.StatusOK, v)
}

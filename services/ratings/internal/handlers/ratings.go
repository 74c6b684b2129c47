package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/store-rating/services/ratings/internal/domain"
)

type rateRequest struct {
	Rating *int `json:"rating"`
}

type submitRatingRequest struct {
	StoreID string `json:"storeId"`
	Rating  *int   `json:"rating"`
}

func ratingValue(v *int) (int, error) {
	if v == nil {
		return 0, domain.Invalid("INVALID_RATING", "rating is required", map[string]string{"rating": "is required"})
	}
	return *v, nil
}

// rateStore handles POST /stores/{id}/rate
func (h *handler) rateStore(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := ratingValue(req.Rating)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rating, err := h.Ratings.Submit(r.Context(), principal(r), chi.URLParam(r, "id"), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, rating)
}

// submitRating handles POST /ratings
func (h *handler) submitRating(w http.ResponseWriter, r *http.Request) {
	var req submitRatingRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := ratingValue(req.Rating)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rating, err := h.Ratings.Submit(r.Context(), principal(r), req.StoreID, v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, rating)
}

// updateRating handles PUT /ratings/{id}
func (h *handler) updateRating(w http.ResponseWriter, r *http.Request) {
	var req rateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, r, err)
		return
	}
	v, err := ratingValue(req.Rating)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	rating, err := h.Ratings.UpdateByID(r.Context(), principal(r), chi.URLParam(r, "id"), v)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, rating)
}

// myRatings handles GET /stores/ratings/my and GET /ratings/my-ratings
func (h *handler) myRatings(w http.ResponseWriter, r *http.Request) {
	out, err := h.Ratings.MyRatings(r.Context(), principal(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, out)
}

// storeRatings handles GET /stores/{id}/ratings and GET /ratings/store/{id}
func (h *handler) storeRatings(w http.ResponseWriter, r *http.Request) {
	out, err := h.Ratings.StoreRatings(r.Context(), principal(r), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, out)
}

// storeAggregate handles GET /stores/{id}/aggregate
func (h *handler) storeAggregate(w http.ResponseWriter, r *http.Request) {
	agg, err := h.Ratings.Aggregate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, agg)
}

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/example/store-rating/internal/platform/api"
	"github.com/example/store-rating/internal/platform/auth"
	"github.com/example/store-rating/internal/platform/httpserver"
	"github.com/example/store-rating/services/ratings/internal/domain"
)

const maxBodyBytes = 1 << 20

// writeError maps domain error kinds to HTTP statuses. Anything outside the
// taxonomy is logged and reported as 500.
func writeError(w http.ResponseWriter, r *http.Request, log *zap.Logger, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())

	var status int
	switch {
	case errors.Is(err, domain.ErrValidation):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		status = http.StatusConflict
	default:
		log.Error("request failed",
			zap.String("request_id", rid),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		api.Internal(w, rid)
		return
	}

	var de *domain.Error
	if errors.As(err, &de) {
		api.Error(w, status, de.Code, de.Message, rid, api.FieldDetails(de.Fields))
		return
	}
	api.Error(w, status, "", "", rid, nil)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return domain.Invalid("INVALID_JSON", "invalid JSON body", nil)
	}
	return nil
}

// principal converts the verified token principal into the domain type.
// An unknown role yields a principal no policy grants anything to.
func principal(r *http.Request) domain.Principal {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		return domain.Principal{}
	}
	role, _ := domain.ParseRole(p.Role)
	return domain.Principal{ID: p.UserID, Role: role}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/store-rating/internal/platform/analytics"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/policy"
	"github.com/example/store-rating/services/ratings/internal/store"
)

// Ratings owns rating submission and per-store aggregates.
type Ratings struct {
	repo   store.Repository
	events EventPublisher
	log    *zap.Logger
}

func NewRatings(repo store.Repository, events EventPublisher, log *zap.Logger) *Ratings {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ratings{repo: repo, events: publisherOrNop(events), log: log}
}

func validateRatingValue(v int) error {
	if v < domain.MinRating || v > domain.MaxRating {
		return domain.Invalid("INVALID_RATING", "rating must be an integer between 1 and 5",
			map[string]string{"rating": "must be between 1 and 5"})
	}
	return nil
}

// Submit creates p's rating for storeID or overwrites its value.
// A unique-constraint race on first insert is retried once before it
// surfaces as a conflict.
func (s *Ratings) Submit(ctx context.Context, p domain.Principal, storeID string, value int) (domain.Rating, error) {
	if err := requirePrincipal(p); err != nil {
		return domain.Rating{}, err
	}
	if !policy.CanRate(p) {
		return domain.Rating{}, domain.Forbidden("RATING_FORBIDDEN", "not allowed to rate stores")
	}
	if err := validateID("storeId", storeID); err != nil {
		return domain.Rating{}, err
	}
	if err := validateRatingValue(value); err != nil {
		return domain.Rating{}, err
	}
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return domain.Rating{}, notFoundAs(err, "STORE_NOT_FOUND", "store not found")
	}
	if err := s.requireAccount(ctx, p); err != nil {
		return domain.Rating{}, err
	}
	return s.upsert(ctx, p.ID, storeID, value)
}

// requireAccount rejects a still-valid token whose user has been deleted.
func (s *Ratings) requireAccount(ctx context.Context, p domain.Principal) error {
	_, err := s.repo.GetUserByID(ctx, p.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Unauthenticated("ACCOUNT_NOT_FOUND", "account no longer exists")
	}
	return err
}

// UpdateByID changes the value of an existing rating owned by p.
func (s *Ratings) UpdateByID(ctx context.Context, p domain.Principal, ratingID string, value int) (domain.Rating, error) {
	if err := requirePrincipal(p); err != nil {
		return domain.Rating{}, err
	}
	if err := validateID("id", ratingID); err != nil {
		return domain.Rating{}, err
	}
	if err := validateRatingValue(value); err != nil {
		return domain.Rating{}, err
	}
	existing, err := s.repo.GetRating(ctx, ratingID)
	if err != nil {
		return domain.Rating{}, notFoundAs(err, "RATING_NOT_FOUND", "rating not found")
	}
	if existing.UserID != p.ID {
		return domain.Rating{}, domain.Forbidden("RATING_FORBIDDEN", "not authorized to modify this rating")
	}
	return s.upsert(ctx, p.ID, existing.StoreID, value)
}

func (s *Ratings) upsert(ctx context.Context, userID, storeID string, value int) (domain.Rating, error) {
	r, err := s.repo.UpsertRating(ctx, userID, storeID, value)
	if errors.Is(err, domain.ErrConflict) {
		s.log.Info("rating upsert conflict, retrying", zap.String("store_id", storeID), zap.String("user_id", userID))
		r, err = s.repo.UpsertRating(ctx, userID, storeID, value)
	}
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrConflict):
		return domain.Rating{}, domain.Conflict("RATING_CONFLICT", "rating was modified concurrently, retry as an update")
	case errors.Is(err, domain.ErrNotFound):
		return domain.Rating{}, domain.NotFound("STORE_NOT_FOUND", "store not found")
	default:
		return domain.Rating{}, fmt.Errorf("upsert rating: %w", err)
	}

	s.events.Publish(analytics.SubjectRatingSubmitted, "rating_submitted", userID, map[string]any{
		"store_id": storeID,
		"rating":   value,
	})
	return r, nil
}

// Aggregate returns the live average and count for storeID.
func (s *Ratings) Aggregate(ctx context.Context, storeID string) (domain.Aggregate, error) {
	if err := validateID("id", storeID); err != nil {
		return domain.Aggregate{}, err
	}
	if _, err := s.repo.GetStore(ctx, storeID); err != nil {
		return domain.Aggregate{}, notFoundAs(err, "STORE_NOT_FOUND", "store not found")
	}
	return computeStoreAggregate(ctx, s.repo, storeID)
}

// computeStoreAggregate is the single read path for a store's average and
// count; nothing caches its result.
func computeStoreAggregate(ctx context.Context, repo store.RatingStore, storeID string) (domain.Aggregate, error) {
	agg, err := repo.GetAggregate(ctx, storeID)
	if err != nil {
		return domain.Aggregate{}, fmt.Errorf("store aggregate: %w", err)
	}
	return agg, nil
}

// MyRatings lists every rating p has submitted.
func (s *Ratings) MyRatings(ctx context.Context, p domain.Principal) ([]domain.UserRating, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	return s.repo.ListRatingsByUser(ctx, p.ID)
}

// StoreRatings lists the individual ratings of storeID with rater identity.
// Existence is checked before authorization.
func (s *Ratings) StoreRatings(ctx context.Context, p domain.Principal, storeID string) ([]domain.StoreRating, error) {
	if err := requirePrincipal(p); err != nil {
		return nil, err
	}
	if err := validateID("id", storeID); err != nil {
		return nil, err
	}
	st, err := s.repo.GetStore(ctx, storeID)
	if err != nil {
		return nil, notFoundAs(err, "STORE_NOT_FOUND", "store not found")
	}
	if !policy.CanReadRatings(p, st) {
		return nil, domain.Forbidden("STORE_FORBIDDEN", "not authorized to view ratings for this store")
	}
	return s.repo.ListRatingsByStore(ctx, storeID)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/example/store-rating/internal/platform/analytics"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/policy"
	"github.com/example/store-rating/services/ratings/internal/store"
)

// Stores is the store query and store management service.
type Stores struct {
	repo   store.Repository
	events EventPublisher
	log    *zap.Logger
}

func NewStores(repo store.Repository, events EventPublisher, log *zap.Logger) *Stores {
	if log == nil {
		log = zap.NewNop()
	}
	return &Stores{repo: repo, events: publisherOrNop(events), log: log}
}

// StoreInput is a create or full-update payload. OwnerID is honoured only
// for admins.
type StoreInput struct {
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Address string  `json:"address"`
	OwnerID *string `json:"ownerId,omitempty"`
}

// StorePatch is a partial update. OwnerSet distinguishes an explicit
// "ownerId": null from an absent field.
type StorePatch struct {
	Name     *string
	Email    *string
	Address  *string
	OwnerSet bool
	OwnerID  *string
}

// List returns one page of stores with live aggregates.
func (s *Stores) List(ctx context.Context, q domain.StoreQuery) (domain.Page[domain.StoreWithAggregate], error) {
	q.Search = strings.TrimSpace(q.Search)
	data, total, err := s.repo.ListStores(ctx, q)
	if err != nil {
		return domain.Page[domain.StoreWithAggregate]{}, fmt.Errorf("list stores: %w", err)
	}
	return domain.Page[domain.StoreWithAggregate]{Data: data, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// Get returns the store with its aggregate.
func (s *Stores) Get(ctx context.Context, id string) (domain.StoreWithAggregate, error) {
	if err := validateID("id", id); err != nil {
		return domain.StoreWithAggregate{}, err
	}
	st, err := s.repo.GetStore(ctx, id)
	if err != nil {
		return domain.StoreWithAggregate{}, notFoundAs(err, "STORE_NOT_FOUND", "store not found")
	}
	agg, err := computeStoreAggregate(ctx, s.repo, id)
	if err != nil {
		return domain.StoreWithAggregate{}, err
	}
	return domain.StoreWithAggregate{Store: st, Aggregate: agg}, nil
}

func validateStoreFields(f fieldErrors, name, email, address *string) {
	if name != nil {
		n := runeLen(*name)
		f.check(n > 0, "name", "is required")
		f.check(n <= domain.MaxStoreNameLen, "name", "must be at most 60 characters")
	}
	if email != nil {
		f.check(validEmail(*email), "email", "must be a valid email")
	}
	if address != nil {
		n := runeLen(*address)
		f.check(n > 0, "address", "is required")
		f.check(n <= domain.MaxAddressLen, "address", "must be at most 400 characters")
	}
}

func (in *StoreInput) normalize() {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Address = strings.TrimSpace(in.Address)
	if in.OwnerID != nil && strings.TrimSpace(*in.OwnerID) == "" {
		in.OwnerID = nil
	}
}

// Create adds a store. A store owner always owns what it creates; an admin
// may assign any store owner, or none.
func (s *Stores) Create(ctx context.Context, p domain.Principal, in StoreInput) (domain.Store, error) {
	if err := requirePrincipal(p); err != nil {
		return domain.Store{}, err
	}
	if !policy.CanCreateStore(p) {
		return domain.Store{}, domain.Forbidden("STORE_FORBIDDEN", "not authorized to create stores")
	}
	in.normalize()
	f := fieldErrors{}
	validateStoreFields(f, &in.Name, &in.Email, &in.Address)
	if err := f.err("INVALID_STORE", "invalid store"); err != nil {
		return domain.Store{}, err
	}

	var owner *string
	if policy.CanAssignOwner(p) {
		if in.OwnerID != nil {
			if err := s.checkOwner(ctx, *in.OwnerID); err != nil {
				return domain.Store{}, err
			}
			owner = in.OwnerID
		}
	} else {
		id := p.ID
		owner = &id
	}

	st, err := s.repo.CreateStore(ctx, store.CreateStoreParams{Name: in.Name, Email: in.Email, Address: in.Address, OwnerID: owner})
	if err != nil {
		return domain.Store{}, storeWriteError(err)
	}
	s.events.Publish(analytics.SubjectStoreCreated, "store_created", p.ID, map[string]any{"store_id": st.ID})
	return st, nil
}

// checkOwner requires ownerID to reference a store_owner account.
func (s *Stores) checkOwner(ctx context.Context, ownerID string) error {
	if err := validateID("ownerId", ownerID); err != nil {
		return err
	}
	u, err := s.repo.GetUserByID(ctx, ownerID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Invalid("INVALID_OWNER", "owner does not exist", map[string]string{"ownerId": "unknown user"})
		}
		return err
	}
	if u.Role != domain.RoleStoreOwner {
		return domain.Invalid("INVALID_OWNER", "owner must be a store owner", map[string]string{"ownerId": "must have role store_owner"})
	}
	return nil
}

// Update patches a store. Existence is checked before authorization.
func (s *Stores) Update(ctx context.Context, p domain.Principal, id string, patch StorePatch) (domain.Store, error) {
	if err := requirePrincipal(p); err != nil {
		return domain.Store{}, err
	}
	if err := validateID("id", id); err != nil {
		return domain.Store{}, err
	}
	st, err := s.repo.GetStore(ctx, id)
	if err != nil {
		return domain.Store{}, notFoundAs(err, "STORE_NOT_FOUND", "store not found")
	}
	if err := policy.AuthorizeStoreWrite(p, st); err != nil {
		return domain.Store{}, err
	}

	params := store.UpdateStoreParams{}
	if patch.Name != nil {
		v := strings.TrimSpace(*patch.Name)
		params.Name = &v
	}
	if patch.Email != nil {
		v := normalizeEmail(*patch.Email)
		params.Email = &v
	}
	if patch.Address != nil {
		v := strings.TrimSpace(*patch.Address)
		params.Address = &v
	}
	f := fieldErrors{}
	validateStoreFields(f, params.Name, params.Email, params.Address)
	if err := f.err("INVALID_STORE", "invalid store"); err != nil {
		return domain.Store{}, err
	}

	if patch.OwnerSet {
		if !policy.CanAssignOwner(p) {
			return domain.Store{}, domain.Forbidden("OWNER_FORBIDDEN", "only admins can reassign store owners")
		}
		params.SetOwner = true
		if patch.OwnerID != nil && strings.TrimSpace(*patch.OwnerID) != "" {
			if err := s.checkOwner(ctx, *patch.OwnerID); err != nil {
				return domain.Store{}, err
			}
			params.OwnerID = patch.OwnerID
		}
	}

	out, err := s.repo.UpdateStore(ctx, id, params)
	if err != nil {
		return domain.Store{}, storeWriteError(err)
	}
	return out, nil
}

// Delete removes a store and its ratings. Existence is checked before
// authorization.
func (s *Stores) Delete(ctx context.Context, p domain.Principal, id string) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	if err := validateID("id", id); err != nil {
		return err
	}
	st, err := s.repo.GetStore(ctx, id)
	if err != nil {
		return notFoundAs(err, "STORE_NOT_FOUND", "store not found")
	}
	if err := policy.AuthorizeStoreWrite(p, st); err != nil {
		return err
	}
	if err := s.repo.DeleteStore(ctx, id); err != nil {
		return storeWriteError(err)
	}
	s.events.Publish(analytics.SubjectStoreDeleted, "store_deleted", p.ID, map[string]any{"store_id": id})
	return nil
}

func storeWriteError(err error) error {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return domain.Conflict("STORE_EMAIL_TAKEN", "a store with this email already exists")
	case errors.Is(err, domain.ErrNotFound):
		return notFoundAs(err, "STORE_NOT_FOUND", "store not found")
	case errors.Is(err, domain.ErrValidation):
		return domain.Invalid("INVALID_STORE", "invalid store", nil)
	default:
		return fmt.Errorf("write store: %w", err)
	}
}

// OwnerDashboard summarises every store p owns.
func (s *Stores) OwnerDashboard(ctx context.Context, p domain.Principal) (domain.OwnerDashboard, error) {
	if err := s.requireOwner(p); err != nil {
		return domain.OwnerDashboard{}, err
	}
	stores, err := s.repo.ListStoresByOwner(ctx, p.ID)
	if err != nil {
		return domain.OwnerDashboard{}, err
	}
	agg, err := s.repo.OwnerAggregate(ctx, p.ID)
	if err != nil {
		return domain.OwnerDashboard{}, err
	}
	return domain.OwnerDashboard{TotalStores: len(stores), TotalRatings: agg.RatingsCount, AvgRating: agg.AvgRating}, nil
}

// OwnerStores lists the stores p owns with aggregates.
func (s *Stores) OwnerStores(ctx context.Context, p domain.Principal) ([]domain.StoreWithAggregate, error) {
	if err := s.requireOwner(p); err != nil {
		return nil, err
	}
	return s.repo.ListStoresByOwner(ctx, p.ID)
}

// OwnerRaters lists everyone who rated a store p owns.
func (s *Stores) OwnerRaters(ctx context.Context, p domain.Principal) ([]domain.OwnerRater, error) {
	if err := s.requireOwner(p); err != nil {
		return nil, err
	}
	return s.repo.ListRatersByOwner(ctx, p.ID)
}

func (s *Stores) requireOwner(p domain.Principal) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	if !policy.CanViewOwnerDashboard(p) {
		return domain.Forbidden("FORBIDDEN_ROLE", "store owner role required")
	}
	return nil
}

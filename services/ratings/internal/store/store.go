// Package store persists users, stores and ratings. Uniqueness of user
// email, store email and (user, store) ratings is enforced here.
package store

import (
	"context"

	"github.com/example/store-rating/services/ratings/internal/domain"
)

type CreateUserParams struct {
	Name         string
	Email        string
	Address      string
	PasswordHash string
	Role         domain.Role
}

// UpdateUserParams leaves nil fields untouched.
type UpdateUserParams struct {
	Name         *string
	Email        *string
	Address      *string
	PasswordHash *string
	Role         *domain.Role
}

// UserRow is a user together with its password hash, for credential checks.
type UserRow struct {
	User         domain.User
	PasswordHash string
}

type CreateStoreParams struct {
	Name    string
	Email   string
	Address string
	OwnerID *string
}

// UpdateStoreParams leaves nil fields untouched. OwnerID is applied only
// when SetOwner is true, so an owner can be cleared with a nil OwnerID.
type UpdateStoreParams struct {
	Name     *string
	Email    *string
	Address  *string
	SetOwner bool
	OwnerID  *string
}

type UserStore interface {
	CreateUser(ctx context.Context, p CreateUserParams) (domain.User, error)
	GetUserByID(ctx context.Context, id string) (domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (UserRow, error)
	UpdateUser(ctx context.Context, id string, p UpdateUserParams) (domain.User, error)
	// DeleteUser removes the user's ratings and clears ownership of its stores.
	DeleteUser(ctx context.Context, id string) error
	ListUsers(ctx context.Context, q domain.UserQuery) ([]domain.User, int, error)
	CountUsersByRole(ctx context.Context, role domain.Role) (int, error)
}

type StoreStore interface {
	CreateStore(ctx context.Context, p CreateStoreParams) (domain.Store, error)
	GetStore(ctx context.Context, id string) (domain.Store, error)
	UpdateStore(ctx context.Context, id string, p UpdateStoreParams) (domain.Store, error)
	// DeleteStore removes the store and its ratings.
	DeleteStore(ctx context.Context, id string) error
	// ListStores returns one page of matches with live aggregates and the total match count.
	ListStores(ctx context.Context, q domain.StoreQuery) ([]domain.StoreWithAggregate, int, error)
	ListStoresByOwner(ctx context.Context, ownerID string) ([]domain.StoreWithAggregate, error)
	CountStores(ctx context.Context) (int, error)
}

type RatingStore interface {
	// UpsertRating creates the (user, store) rating or overwrites its value.
	UpsertRating(ctx context.Context, userID, storeID string, value int) (domain.Rating, error)
	GetRating(ctx context.Context, id string) (domain.Rating, error)
	GetAggregate(ctx context.Context, storeID string) (domain.Aggregate, error)
	ListRatingsByUser(ctx context.Context, userID string) ([]domain.UserRating, error)
	ListRatingsByStore(ctx context.Context, storeID string) ([]domain.StoreRating, error)
	ListRatersByOwner(ctx context.Context, ownerID string) ([]domain.OwnerRater, error)
	// OwnerAggregate aggregates every rating of every store owned by ownerID.
	OwnerAggregate(ctx context.Context, ownerID string) (domain.Aggregate, error)
	CountRatings(ctx context.Context) (int, error)
}

// Repository is the full persistence surface used by the service layer.
type Repository interface {
	UserStore
	StoreStore
	RatingStore
	Ping(ctx context.Context) error
}

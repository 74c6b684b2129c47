package domain

import (
	"strings"
	"time"
)

type Role string

const (
	RoleAdmin      Role = "admin"
	RoleUser       Role = "user"
	RoleStoreOwner Role = "store_owner"
)

// ParseRole normalizes s and reports whether it names a known role.
func ParseRole(s string) (Role, bool) {
	switch r := Role(strings.ToLower(strings.TrimSpace(s))); r {
	case RoleAdmin, RoleUser, RoleStoreOwner:
		return r, true
	default:
		return "", false
	}
}

// Principal is the authenticated actor making a request.
type Principal struct {
	ID   string
	Role Role
}

// User never carries the password hash; see store.UserRow.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Store is a rated listing. OwnerID is nil for stores created by an admin
// without an owner, or whose owner was deleted.
type Store struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	OwnerID   *string   `json:"ownerId"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

const (
	MinRating = 1
	MaxRating = 5

	MaxStoreNameLen = 60
	MaxAddressLen   = 400
)

type Rating struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	StoreID   string    `json:"storeId"`
	Rating    int       `json:"rating"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Aggregate is derived from a store's ratings on every read.
// AvgRating is 0 when RatingsCount is 0.
type Aggregate struct {
	AvgRating    float64 `json:"avgRating"`
	RatingsCount int     `json:"ratingsCount"`
}

type StoreWithAggregate struct {
	Store
	Aggregate
}

// UserRating is the caller's own rating for a store.
type UserRating struct {
	StoreID string `json:"storeId"`
	Rating  int    `json:"rating"`
}

// Rater identifies the user behind a rating.
type Rater struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// StoreRating is a single rating with the rater attached.
type StoreRating struct {
	Rating
	User Rater `json:"user"`
}

// OwnerRater is one row of a store owner's raters view.
type OwnerRater struct {
	UserID    string `json:"userId"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	StoreID   string `json:"storeId"`
	StoreName string `json:"storeName"`
	Rating    int    `json:"rating"`
}

type DashboardStats struct {
	TotalUsers   int `json:"totalUsers"`
	TotalStores  int `json:"totalStores"`
	TotalRatings int `json:"totalRatings"`
}

type OwnerDashboard struct {
	TotalStores  int     `json:"totalStores"`
	TotalRatings int     `json:"totalRatings"`
	AvgRating    float64 `json:"avgRating"`
}

// UserDetail is the admin view of a user. AvgRating is set for store owners.
type UserDetail struct {
	User
	AvgRating *float64 `json:"avgRating,omitempty"`
}

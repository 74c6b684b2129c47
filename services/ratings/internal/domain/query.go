package domain

import (
	"strings"
)

type SortOrder string

const (
	SortAsc  SortOrder = "ASC"
	SortDesc SortOrder = "DESC"
)

// Store sort keys.
const (
	StoreSortName         = "name"
	StoreSortEmail        = "email"
	StoreSortAddress      = "address"
	StoreSortCreatedAt    = "createdAt"
	StoreSortUpdatedAt    = "updatedAt"
	StoreSortAvgRating    = "avgRating"
	StoreSortRatingsCount = "ratingsCount"
)

// User sort keys.
const (
	UserSortName      = "name"
	UserSortEmail     = "email"
	UserSortAddress   = "address"
	UserSortRole      = "role"
	UserSortCreatedAt = "createdAt"
)

var storeSortKeys = map[string]struct{}{
	StoreSortName: {}, StoreSortEmail: {}, StoreSortAddress: {},
	StoreSortCreatedAt: {}, StoreSortUpdatedAt: {},
	StoreSortAvgRating: {}, StoreSortRatingsCount: {},
}

var userSortKeys = map[string]struct{}{
	UserSortName: {}, UserSortEmail: {}, UserSortAddress: {},
	UserSortRole: {}, UserSortCreatedAt: {},
}

// Paging is a 1-indexed page window.
type Paging struct {
	Page  int
	Limit int
}

func (p Paging) Offset() int {
	return (p.Page - 1) * p.Limit
}

type StoreQuery struct {
	Search    string
	SortBy    string
	SortOrder SortOrder
	Paging
}

type UserQuery struct {
	Name      string
	Email     string
	Address   string
	Role      Role
	SortBy    string
	SortOrder SortOrder
	Paging
}

// Page is a paginated result; Total counts every match, not just Data.
type Page[T any] struct {
	Data  []T `json:"data"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// ParseSortOrder accepts asc/desc in any case; empty means ASC.
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", string(SortAsc):
		return SortAsc, nil
	case string(SortDesc):
		return SortDesc, nil
	default:
		return "", Invalid("INVALID_SORT_ORDER", "sortOrder must be ASC or DESC", map[string]string{"sortOrder": "must be ASC or DESC"})
	}
}

// ParseStoreSort validates a store sort key; empty means name.
func ParseStoreSort(s string) (string, error) {
	return parseSortKey(s, StoreSortName, storeSortKeys)
}

// ParseUserSort validates a user sort key; empty means name.
func ParseUserSort(s string) (string, error) {
	return parseSortKey(s, UserSortName, userSortKeys)
}

func parseSortKey(s, def string, allowed map[string]struct{}) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	if _, ok := allowed[s]; !ok {
		return "", Invalid("INVALID_SORT_FIELD", "unsupported sortBy field", map[string]string{"sortBy": s})
	}
	return s, nil
}

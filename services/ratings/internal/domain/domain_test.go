package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestParseRole(t *testing.T) {
	r, ok := ParseRole(" Store_Owner ")
	if !ok || r != RoleStoreOwner {
		t.Fatalf("expected store_owner, got %q %v", r, ok)
	}
	if _, ok := ParseRole("superuser"); ok {
		t.Fatal("expected unknown role to be rejected")
	}
}

func TestErrorKinds(t *testing.T) {
	err := fmt.Errorf("submit: %w", Invalid("INVALID_RATING", "rating must be 1-5", nil))
	if !errors.Is(err, ErrValidation) {
		t.Fatal("expected ErrValidation through wrapping")
	}
	var de *Error
	if !errors.As(err, &de) || de.Code != "INVALID_RATING" {
		t.Fatalf("expected *Error with code, got %v", err)
	}
	if errors.Is(NotFound("STORE_NOT_FOUND", "store not found"), ErrForbidden) {
		t.Fatal("not found must be distinct from forbidden")
	}
}

func TestParseSortOrder(t *testing.T) {
	if o, err := ParseSortOrder("desc"); err != nil || o != SortDesc {
		t.Fatalf("expected DESC, got %q %v", o, err)
	}
	if o, err := ParseSortOrder(""); err != nil || o != SortAsc {
		t.Fatalf("expected ASC default, got %q %v", o, err)
	}
	if _, err := ParseSortOrder("sideways"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestParseStoreSort(t *testing.T) {
	if k, err := ParseStoreSort(""); err != nil || k != StoreSortName {
		t.Fatalf("expected default name, got %q %v", k, err)
	}
	if k, err := ParseStoreSort("avgRating"); err != nil || k != StoreSortAvgRating {
		t.Fatalf("expected avgRating, got %q %v", k, err)
	}
	if _, err := ParseStoreSort("password"); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPagingOffset(t *testing.T) {
	if off := (Paging{Page: 3, Limit: 10}).Offset(); off != 20 {
		t.Fatalf("expected offset 20, got %d", off)
	}
}

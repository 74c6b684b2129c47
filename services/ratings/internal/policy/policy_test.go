package policy

import (
	"errors"
	"testing"

	"github.com/example/store-rating/services/ratings/internal/domain"
)

func ownedBy(id string) domain.Store {
	return domain.Store{ID: "s1", OwnerID: &id}
}

func TestCanWrite_StoreOwnerOtherStore(t *testing.T) {
	a := domain.Principal{ID: "A", Role: domain.RoleStoreOwner}
	if CanWrite(a, ownedBy("B")) {
		t.Fatal("owner A must not write store owned by B")
	}
}

func TestCanWrite_StoreOwnerOwnStore(t *testing.T) {
	a := domain.Principal{ID: "A", Role: domain.RoleStoreOwner}
	if !CanWrite(a, ownedBy("A")) {
		t.Fatal("owner A must write own store")
	}
}

func TestCanWrite_AdminAnyStore(t *testing.T) {
	admin := domain.Principal{ID: "X", Role: domain.RoleAdmin}
	if !CanWrite(admin, ownedBy("B")) {
		t.Fatal("admin must write any store")
	}
	if !CanWrite(admin, domain.Store{ID: "s2"}) {
		t.Fatal("admin must write unowned store")
	}
}

func TestCanWrite_UserNever(t *testing.T) {
	u := domain.Principal{ID: "A", Role: domain.RoleUser}
	if CanWrite(u, ownedBy("A")) {
		t.Fatal("plain user must never write a store, even with matching owner id")
	}
}

func TestCanWrite_UnownedStoreOwner(t *testing.T) {
	a := domain.Principal{ID: "A", Role: domain.RoleStoreOwner}
	if CanWrite(a, domain.Store{ID: "s1"}) {
		t.Fatal("store owner must not write an unowned store")
	}
}

func TestCanRate(t *testing.T) {
	for _, r := range []domain.Role{domain.RoleUser, domain.RoleStoreOwner, domain.RoleAdmin} {
		if !CanRate(domain.Principal{ID: "u", Role: r}) {
			t.Fatalf("role %s must be able to rate", r)
		}
	}
	if CanRate(domain.Principal{ID: "u", Role: "guest"}) {
		t.Fatal("unknown role must not rate")
	}
	if CanRate(domain.Principal{Role: domain.RoleUser}) {
		t.Fatal("anonymous principal must not rate")
	}
}

func TestCanEditUser(t *testing.T) {
	if !CanEditUser(domain.Principal{ID: "u1", Role: domain.RoleUser}, "u1") {
		t.Fatal("self edit must be allowed")
	}
	if CanEditUser(domain.Principal{ID: "u1", Role: domain.RoleUser}, "u2") {
		t.Fatal("editing someone else must be denied")
	}
	if !CanEditUser(domain.Principal{ID: "a", Role: domain.RoleAdmin}, "u2") {
		t.Fatal("admin must edit anyone")
	}
}

func TestAuthorizeStoreWrite(t *testing.T) {
	err := AuthorizeStoreWrite(domain.Principal{ID: "A", Role: domain.RoleStoreOwner}, ownedBy("B"))
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if err := AuthorizeStoreWrite(domain.Principal{ID: "B", Role: domain.RoleStoreOwner}, ownedBy("B")); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

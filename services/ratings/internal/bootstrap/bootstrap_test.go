package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/example/store-rating/services/ratings/internal/config"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/store"
)

func plainHash(pw string) (string, error) { return "hashed:" + pw, nil }

func TestEnsureAdmin_Disabled(t *testing.T) {
	repo := store.NewInMemoryStore()
	if err := EnsureAdmin(context.Background(), repo, plainHash, config.BootstrapAdmin{Email: "a@example.com"}, nil); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	if n, _ := repo.CountUsersByRole(context.Background(), domain.RoleAdmin); n != 0 {
		t.Fatalf("expected no admin, got %d", n)
	}
}

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	ctx := context.Background()
	repo := store.NewInMemoryStore()
	cfg := config.BootstrapAdmin{Email: "root@example.com", Password: "Secret1!", Name: "System Administrator Account"}

	for i := 0; i < 2; i++ {
		if err := EnsureAdmin(ctx, repo, plainHash, cfg, nil); err != nil {
			t.Fatalf("EnsureAdmin #%d: %v", i, err)
		}
	}
	row, err := repo.FindUserByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("FindUserByEmail: %v", err)
	}
	if row.User.Role != domain.RoleAdmin || row.PasswordHash != "hashed:Secret1!" {
		t.Fatalf("unexpected admin row %+v", row)
	}
	if n, _ := repo.CountUsersByRole(ctx, domain.RoleAdmin); n != 1 {
		t.Fatalf("expected exactly one admin, got %d", n)
	}
}

func TestEnsureAdmin_PromotesExisting(t *testing.T) {
	ctx := context.Background()
	repo := store.NewInMemoryStore()
	u, err := repo.CreateUser(ctx, store.CreateUserParams{Name: "Existing", Email: "root@example.com", PasswordHash: "keep", Role: domain.RoleUser})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	cfg := config.BootstrapAdmin{Email: "root@example.com", Password: "ignored", Name: "x"}
	if err := EnsureAdmin(ctx, repo, plainHash, cfg, nil); err != nil {
		t.Fatalf("EnsureAdmin: %v", err)
	}
	row, _ := repo.FindUserByEmail(ctx, "root@example.com")
	if row.User.ID != u.ID || row.User.Role != domain.RoleAdmin {
		t.Fatalf("expected %s promoted, got %+v", u.ID, row.User)
	}
	if row.PasswordHash != "keep" {
		t.Fatal("promotion must not replace the password")
	}
}

func TestEnsureAdmin_HashError(t *testing.T) {
	boom := errors.New("boom")
	cfg := config.BootstrapAdmin{Email: "root@example.com", Password: "x"}
	err := EnsureAdmin(context.Background(), store.NewInMemoryStore(), func(string) (string, error) { return "", boom }, cfg, nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped hash error, got %v", err)
	}
}

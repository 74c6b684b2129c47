package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/example/store-rating/services/ratings/internal/config"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/store"
)

// HashFunc turns a plaintext password into a stored hash.
type HashFunc func(password string) (string, error)

// EnsureAdmin makes sure an admin account exists for cfg.Email. An existing
// account with that email is promoted and keeps its password; otherwise a new
// admin is created. Disabled configs are a no-op.
func EnsureAdmin(ctx context.Context, repo store.UserStore, hash HashFunc, cfg config.BootstrapAdmin, log *zap.Logger) error {
	if !cfg.Enabled() {
		return nil
	}
	if log == nil {
		log = zap.NewNop()
	}

	row, err := repo.FindUserByEmail(ctx, cfg.Email)
	switch {
	case err == nil:
		if row.User.Role == domain.RoleAdmin {
			return nil
		}
		role := domain.RoleAdmin
		if _, err := repo.UpdateUser(ctx, row.User.ID, store.UpdateUserParams{Role: &role}); err != nil {
			return fmt.Errorf("promote admin: %w", err)
		}
		log.Info("bootstrap admin promoted", zap.String("email", cfg.Email), zap.String("user_id", row.User.ID))
		return nil
	case !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("lookup admin: %w", err)
	}

	pw, err := hash(cfg.Password)
	if err != nil {
		return fmt.Errorf("hash admin password: %w", err)
	}
	u, err := repo.CreateUser(ctx, store.CreateUserParams{
		Name:         cfg.Name,
		Email:        cfg.Email,
		PasswordHash: pw,
		Role:         domain.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	log.Info("bootstrap admin created", zap.String("email", u.Email), zap.String("user_id", u.ID))
	return nil
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/store-rating/internal/platform/analytics"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/policy"
	"github.com/example/store-rating/services/ratings/internal/store"
)

// TokenIssuer is satisfied by tokens.Service.
type TokenIssuer interface {
	NewAccessToken(userID, role, email string, now time.Time) (string, time.Time, error)
}

// Accounts handles registration, login, self-service profile edits and
// admin user management.
type Accounts struct {
	repo       store.Repository
	tokens     TokenIssuer
	events     EventPublisher
	log        *zap.Logger
	bcryptCost int
	now        func() time.Time
}

type AccountsOptions struct {
	Tokens     TokenIssuer
	Events     EventPublisher
	Logger     *zap.Logger
	BcryptCost int
}

func NewAccounts(repo store.Repository, opts AccountsOptions) *Accounts {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	cost := opts.BcryptCost
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Accounts{
		repo:       repo,
		tokens:     opts.Tokens,
		events:     publisherOrNop(opts.Events),
		log:        log,
		bcryptCost: cost,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	AccessToken string      `json:"access_token"`
	ExpiresAt   time.Time   `json:"expires_at"`
	User        domain.User `json:"user"`
}

type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UserInput is the admin create payload.
type UserInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Address  string `json:"address"`
	Role     string `json:"role"`
}

// UserPatch is a partial user update. Role is ignored for self edits.
type UserPatch struct {
	Name     *string `json:"name"`
	Email    *string `json:"email"`
	Password *string `json:"password"`
	Address  *string `json:"address"`
	Role     *string `json:"role"`
}

const (
	registerNameMin = 20
	adminNameMin    = 2
	nameMax         = 60
	passwordMin     = 8
	passwordMax     = 16
	adminPassMin    = 6
	bcryptMaxBytes  = 72
	passwordSpecial = "!@#$%^&*"
)

func checkStrongPassword(f fieldErrors, pw string) {
	n := runeLen(pw)
	f.check(n >= passwordMin && n <= passwordMax, "password", "must be 8-16 characters")
	f.check(strings.ContainsAny(pw, "ABCDEFGHIJKLMNOPQRSTUVWXYZ"), "password", "must contain an uppercase letter")
	f.check(strings.ContainsAny(pw, passwordSpecial), "password", "must contain one of !@#$%^&*")
}

func checkName(f fieldErrors, name string, min int) {
	n := runeLen(name)
	f.check(n >= min && n <= nameMax, "name", fmt.Sprintf("must be %d-%d characters", min, nameMax))
}

func checkAddress(f fieldErrors, address string) {
	f.check(runeLen(address) <= domain.MaxAddressLen, "address", "must be at most 400 characters")
}

// HashPassword hashes pw with the configured bcrypt cost.
func (a *Accounts) HashPassword(pw string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(pw), a.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *Accounts) issue(u domain.User) (AuthResult, error) {
	if a.tokens == nil {
		return AuthResult{}, errors.New("token issuer not configured")
	}
	tok, exp, err := a.tokens.NewAccessToken(u.ID, string(u.Role), u.Email, a.now())
	if err != nil {
		return AuthResult{}, fmt.Errorf("issue token: %w", err)
	}
	return AuthResult{AccessToken: tok, ExpiresAt: exp, User: u}, nil
}

// Register creates a role=user account and signs it in.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (AuthResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Address = strings.TrimSpace(in.Address)

	f := fieldErrors{}
	checkName(f, in.Name, registerNameMin)
	f.check(validEmail(in.Email), "email", "must be a valid email")
	checkStrongPassword(f, in.Password)
	checkAddress(f, in.Address)
	if err := f.err("INVALID_REGISTRATION", "invalid registration"); err != nil {
		return AuthResult{}, err
	}

	hash, err := a.HashPassword(in.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := a.repo.CreateUser(ctx, store.CreateUserParams{
		Name: in.Name, Email: in.Email, Address: in.Address, PasswordHash: hash, Role: domain.RoleUser,
	})
	if err != nil {
		return AuthResult{}, userWriteError(err)
	}
	a.events.Publish(analytics.SubjectAuthRegistered, "user_registered", u.ID, nil)
	return a.issue(u)
}

// Login verifies credentials. Unknown email and wrong password are
// indistinguishable to the caller.
func (a *Accounts) Login(ctx context.Context, in LoginInput) (AuthResult, error) {
	email := normalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return AuthResult{}, domain.Invalid("INVALID_LOGIN", "email and password are required", nil)
	}
	row, err := a.repo.FindUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return AuthResult{}, domain.Unauthenticated("INVALID_CREDENTIALS", "invalid email or password")
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(row.PasswordHash), []byte(in.Password)); err != nil {
		return AuthResult{}, domain.Unauthenticated("INVALID_CREDENTIALS", "invalid email or password")
	}
	a.events.Publish(analytics.SubjectAuthLoggedIn, "user_logged_in", row.User.ID, nil)
	return a.issue(row.User)
}

// Me returns the caller's own profile.
func (a *Accounts) Me(ctx context.Context, p domain.Principal) (domain.User, error) {
	if err := requirePrincipal(p); err != nil {
		return domain.User{}, err
	}
	u, err := a.repo.GetUserByID(ctx, p.ID)
	if err != nil {
		return domain.User{}, notFoundAs(err, "USER_NOT_FOUND", "user not found")
	}
	return u, nil
}

// UpdateMe lets the caller change its name, address and password. Email and
// role are not self-editable.
func (a *Accounts) UpdateMe(ctx context.Context, p domain.Principal, patch UserPatch) (domain.User, error) {
	if err := requirePrincipal(p); err != nil {
		return domain.User{}, err
	}
	if !policy.CanEditUser(p, p.ID) {
		return domain.User{}, domain.Forbidden("USER_FORBIDDEN", "not authorized to edit this user")
	}
	params := store.UpdateUserParams{}
	f := fieldErrors{}
	if patch.Name != nil {
		v := strings.TrimSpace(*patch.Name)
		checkName(f, v, registerNameMin)
		params.Name = &v
	}
	if patch.Address != nil {
		v := strings.TrimSpace(*patch.Address)
		checkAddress(f, v)
		params.Address = &v
	}
	if patch.Password != nil {
		checkStrongPassword(f, *patch.Password)
	}
	if err := f.err("INVALID_USER", "invalid user"); err != nil {
		return domain.User{}, err
	}
	if patch.Password != nil {
		hash, err := a.HashPassword(*patch.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		params.PasswordHash = &hash
	}
	u, err := a.repo.UpdateUser(ctx, p.ID, params)
	if err != nil {
		return domain.User{}, userWriteError(err)
	}
	return u, nil
}

func (a *Accounts) requireAdmin(p domain.Principal) error {
	if err := requirePrincipal(p); err != nil {
		return err
	}
	if !policy.CanManageUsers(p) {
		return domain.Forbidden("FORBIDDEN_ROLE", "admin role required")
	}
	return nil
}

// CreateUser is the admin path for creating an account of any role.
func (a *Accounts) CreateUser(ctx context.Context, p domain.Principal, in UserInput) (domain.User, error) {
	if err := a.requireAdmin(p); err != nil {
		return domain.User{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	in.Email = normalizeEmail(in.Email)
	in.Address = strings.TrimSpace(in.Address)

	f := fieldErrors{}
	checkName(f, in.Name, adminNameMin)
	f.check(validEmail(in.Email), "email", "must be a valid email")
	f.check(runeLen(in.Password) >= adminPassMin, "password", "must be at least 6 characters")
	f.check(len(in.Password) <= bcryptMaxBytes, "password", "must be at most 72 bytes")
	checkAddress(f, in.Address)
	role, ok := domain.ParseRole(in.Role)
	f.check(ok, "role", "must be one of admin, user, store_owner")
	if err := f.err("INVALID_USER", "invalid user"); err != nil {
		return domain.User{}, err
	}

	hash, err := a.HashPassword(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	u, err := a.repo.CreateUser(ctx, store.CreateUserParams{
		Name: in.Name, Email: in.Email, Address: in.Address, PasswordHash: hash, Role: role,
	})
	if err != nil {
		return domain.User{}, userWriteError(err)
	}
	return u, nil
}

// ListUsers returns one filtered page of users.
func (a *Accounts) ListUsers(ctx context.Context, p domain.Principal, q domain.UserQuery) (domain.Page[domain.User], error) {
	if err := a.requireAdmin(p); err != nil {
		return domain.Page[domain.User]{}, err
	}
	data, total, err := a.repo.ListUsers(ctx, q)
	if err != nil {
		return domain.Page[domain.User]{}, fmt.Errorf("list users: %w", err)
	}
	return domain.Page[domain.User]{Data: data, Total: total, Page: q.Page, Limit: q.Limit}, nil
}

// GetUser returns a user; for store owners it also carries the average
// rating across their stores.
func (a *Accounts) GetUser(ctx context.Context, p domain.Principal, id string) (domain.UserDetail, error) {
	if err := a.requireAdmin(p); err != nil {
		return domain.UserDetail{}, err
	}
	if err := validateID("id", id); err != nil {
		return domain.UserDetail{}, err
	}
	u, err := a.repo.GetUserByID(ctx, id)
	if err != nil {
		return domain.UserDetail{}, notFoundAs(err, "USER_NOT_FOUND", "user not found")
	}
	out := domain.UserDetail{User: u}
	if u.Role == domain.RoleStoreOwner {
		agg, err := a.repo.OwnerAggregate(ctx, u.ID)
		if err != nil {
			return domain.UserDetail{}, fmt.Errorf("owner aggregate: %w", err)
		}
		avg := agg.AvgRating
		out.AvgRating = &avg
	}
	return out, nil
}

// UpdateUser is the admin path for editing any field of a user.
func (a *Accounts) UpdateUser(ctx context.Context, p domain.Principal, id string, patch UserPatch) (domain.User, error) {
	if err := a.requireAdmin(p); err != nil {
		return domain.User{}, err
	}
	if err := validateID("id", id); err != nil {
		return domain.User{}, err
	}
	if _, err := a.repo.GetUserByID(ctx, id); err != nil {
		return domain.User{}, notFoundAs(err, "USER_NOT_FOUND", "user not found")
	}

	params := store.UpdateUserParams{}
	f := fieldErrors{}
	if patch.Name != nil {
		v := strings.TrimSpace(*patch.Name)
		checkName(f, v, adminNameMin)
		params.Name = &v
	}
	if patch.Email != nil {
		v := normalizeEmail(*patch.Email)
		f.check(validEmail(v), "email", "must be a valid email")
		params.Email = &v
	}
	if patch.Address != nil {
		v := strings.TrimSpace(*patch.Address)
		checkAddress(f, v)
		params.Address = &v
	}
	if patch.Password != nil {
		f.check(runeLen(*patch.Password) >= adminPassMin, "password", "must be at least 6 characters")
		f.check(len(*patch.Password) <= bcryptMaxBytes, "password", "must be at most 72 bytes")
	}
	if patch.Role != nil {
		role, ok := domain.ParseRole(*patch.Role)
		f.check(ok, "role", "must be one of admin, user, store_owner")
		params.Role = &role
	}
	if err := f.err("INVALID_USER", "invalid user"); err != nil {
		return domain.User{}, err
	}
	if patch.Password != nil {
		hash, err := a.HashPassword(*patch.Password)
		if err != nil {
			return domain.User{}, fmt.Errorf("hash password: %w", err)
		}
		params.PasswordHash = &hash
	}

	u, err := a.repo.UpdateUser(ctx, id, params)
	if err != nil {
		return domain.User{}, userWriteError(err)
	}
	return u, nil
}

// DeleteUser removes a user and its ratings; stores it owned become
// unowned. Admins cannot delete themselves.
func (a *Accounts) DeleteUser(ctx context.Context, p domain.Principal, id string) error {
	if err := a.requireAdmin(p); err != nil {
		return err
	}
	if err := validateID("id", id); err != nil {
		return err
	}
	if id == p.ID {
		return domain.Forbidden("SELF_DELETE", "admins cannot delete their own account")
	}
	if err := a.repo.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return notFoundAs(err, "USER_NOT_FOUND", "user not found")
		}
		return fmt.Errorf("delete user: %w", err)
	}
	a.events.Publish(analytics.SubjectUserDeleted, "user_deleted", p.ID, map[string]any{"deleted_user_id": id})
	return nil
}

// Dashboard returns platform-wide counts. TotalUsers counts role=user
// accounts only.
func (a *Accounts) Dashboard(ctx context.Context, p domain.Principal) (domain.DashboardStats, error) {
	if err := a.requireAdmin(p); err != nil {
		return domain.DashboardStats{}, err
	}
	users, err := a.repo.CountUsersByRole(ctx, domain.RoleUser)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	stores, err := a.repo.CountStores(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	ratings, err := a.repo.CountRatings(ctx)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	return domain.DashboardStats{TotalUsers: users, TotalStores: stores, TotalRatings: ratings}, nil
}

func userWriteError(err error) error {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return domain.Conflict("EMAIL_TAKEN", "a user with this email already exists")
	case errors.Is(err, domain.ErrNotFound):
		return notFoundAs(err, "USER_NOT_FOUND", "user not found")
	case errors.Is(err, domain.ErrValidation):
		return domain.Invalid("INVALID_USER", "invalid user", nil)
	default:
		return fmt.Errorf("write user: %w", err)
	}
}

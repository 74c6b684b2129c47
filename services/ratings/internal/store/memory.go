package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/example/store-rating/services/ratings/internal/domain"
)

type ratingKey struct {
	userID  string
	storeID string
}

type userRecord struct {
	user domain.User
	hash string
}

// InMemoryStore is a development-only Repository. A single mutex makes
// every operation atomic, which gives the same uniqueness guarantees as the
// Postgres constraints.
type InMemoryStore struct {
	mu      sync.RWMutex
	users   map[string]userRecord
	stores  map[string]domain.Store
	ratings map[ratingKey]domain.Rating
	now     func() time.Time
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		users:   make(map[string]userRecord),
		stores:  make(map[string]domain.Store),
		ratings: make(map[ratingKey]domain.Rating),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (s *InMemoryStore) Ping(context.Context) error { return nil }

// ── Users ─────────────────────────────────────────────────────────────────

func (s *InMemoryStore) emailTakenLocked(email, exceptID string) bool {
	for id, rec := range s.users {
		if id != exceptID && strings.EqualFold(rec.user.Email, email) {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) CreateUser(_ context.Context, p CreateUserParams) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.emailTakenLocked(p.Email, "") {
		return domain.User{}, domain.ErrConflict
	}
	now := s.now()
	u := domain.User{
		ID:        uuid.NewString(),
		Name:      p.Name,
		Email:     p.Email,
		Address:   p.Address,
		Role:      p.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.users[u.ID] = userRecord{user: u, hash: p.PasswordHash}
	return u, nil
}

func (s *InMemoryStore) GetUserByID(_ context.Context, id string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	return rec.user, nil
}

func (s *InMemoryStore) FindUserByEmail(_ context.Context, email string) (UserRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.users {
		if strings.EqualFold(rec.user.Email, email) {
			return UserRow{User: rec.user, PasswordHash: rec.hash}, nil
		}
	}
	return UserRow{}, domain.ErrNotFound
}

func (s *InMemoryStore) UpdateUser(_ context.Context, id string, p UpdateUserParams) (domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[id]
	if !ok {
		return domain.User{}, domain.ErrNotFound
	}
	if p.Email != nil && s.emailTakenLocked(*p.Email, id) {
		return domain.User{}, domain.ErrConflict
	}
	if p.Name != nil {
		rec.user.Name = *p.Name
	}
	if p.Email != nil {
		rec.user.Email = *p.Email
	}
	if p.Address != nil {
		rec.user.Address = *p.Address
	}
	if p.Role != nil {
		rec.user.Role = *p.Role
	}
	if p.PasswordHash != nil {
		rec.hash = *p.PasswordHash
	}
	rec.user.UpdatedAt = s.now()
	s.users[id] = rec
	return rec.user, nil
}

func (s *InMemoryStore) DeleteUser(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.users, id)
	for k := range s.ratings {
		if k.userID == id {
			delete(s.ratings, k)
		}
	}
	for sid, st := range s.stores {
		if st.OwnerID != nil && *st.OwnerID == id {
			st.OwnerID = nil
			s.stores[sid] = st
		}
	}
	return nil
}

func (s *InMemoryStore) ListUsers(_ context.Context, q domain.UserQuery) ([]domain.User, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.User
	for _, rec := range s.users {
		u := rec.user
		if !containsFold(u.Name, q.Name) || !containsFold(u.Email, q.Email) || !containsFold(u.Address, q.Address) {
			continue
		}
		if q.Role != "" && u.Role != q.Role {
			continue
		}
		matched = append(matched, u)
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var c int
		switch q.SortBy {
		case domain.UserSortEmail:
			c = strings.Compare(a.Email, b.Email)
		case domain.UserSortAddress:
			c = strings.Compare(a.Address, b.Address)
		case domain.UserSortRole:
			c = strings.Compare(string(a.Role), string(b.Role))
		case domain.UserSortCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		default:
			c = strings.Compare(a.Name, b.Name)
		}
		return ordered(c, a.ID, b.ID, q.SortOrder)
	})

	return window(matched, q.Paging), len(matched), nil
}

func (s *InMemoryStore) CountUsersByRole(_ context.Context, role domain.Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, rec := range s.users {
		if rec.user.Role == role {
			n++
		}
	}
	return n, nil
}

// ── Stores ────────────────────────────────────────────────────────────────

func (s *InMemoryStore) storeEmailTakenLocked(email, exceptID string) bool {
	for id, st := range s.stores {
		if id != exceptID && strings.EqualFold(st.Email, email) {
			return true
		}
	}
	return false
}

func (s *InMemoryStore) CreateStore(_ context.Context, p CreateStoreParams) (domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.storeEmailTakenLocked(p.Email, "") {
		return domain.Store{}, domain.ErrConflict
	}
	if p.OwnerID != nil {
		if _, ok := s.users[*p.OwnerID]; !ok {
			return domain.Store{}, domain.ErrNotFound
		}
	}
	now := s.now()
	st := domain.Store{
		ID:        uuid.NewString(),
		Name:      p.Name,
		Email:     p.Email,
		Address:   p.Address,
		OwnerID:   copyString(p.OwnerID),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.stores[st.ID] = st
	return st, nil
}

func (s *InMemoryStore) GetStore(_ context.Context, id string) (domain.Store, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.stores[id]
	if !ok {
		return domain.Store{}, domain.ErrNotFound
	}
	return st, nil
}

func (s *InMemoryStore) UpdateStore(_ context.Context, id string, p UpdateStoreParams) (domain.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.stores[id]
	if !ok {
		return domain.Store{}, domain.ErrNotFound
	}
	if p.Email != nil && s.storeEmailTakenLocked(*p.Email, id) {
		return domain.Store{}, domain.ErrConflict
	}
	if p.SetOwner && p.OwnerID != nil {
		if _, ok := s.users[*p.OwnerID]; !ok {
			return domain.Store{}, domain.ErrNotFound
		}
	}
	if p.Name != nil {
		st.Name = *p.Name
	}
	if p.Email != nil {
		st.Email = *p.Email
	}
	if p.Address != nil {
		st.Address = *p.Address
	}
	if p.SetOwner {
		st.OwnerID = copyString(p.OwnerID)
	}
	st.UpdatedAt = s.now()
	s.stores[id] = st
	return st, nil
}

func (s *InMemoryStore) DeleteStore(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.stores, id)
	for k := range s.ratings {
		if k.storeID == id {
			delete(s.ratings, k)
		}
	}
	return nil
}

func (s *InMemoryStore) ListStores(_ context.Context, q domain.StoreQuery) ([]domain.StoreWithAggregate, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []domain.StoreWithAggregate
	for _, st := range s.stores {
		if q.Search != "" && !containsFold(st.Name, q.Search) && !containsFold(st.Address, q.Search) {
			continue
		}
		matched = append(matched, domain.StoreWithAggregate{Store: st, Aggregate: s.aggregateLocked(st.ID)})
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		var c int
		switch q.SortBy {
		case domain.StoreSortEmail:
			c = strings.Compare(a.Email, b.Email)
		case domain.StoreSortAddress:
			c = strings.Compare(a.Address, b.Address)
		case domain.StoreSortCreatedAt:
			c = a.CreatedAt.Compare(b.CreatedAt)
		case domain.StoreSortUpdatedAt:
			c = a.UpdatedAt.Compare(b.UpdatedAt)
		case domain.StoreSortAvgRating:
			c = compareFloat(a.AvgRating, b.AvgRating)
		case domain.StoreSortRatingsCount:
			c = a.RatingsCount - b.RatingsCount
		default:
			c = strings.Compare(a.Name, b.Name)
		}
		return ordered(c, a.ID, b.ID, q.SortOrder)
	})

	return window(matched, q.Paging), len(matched), nil
}

func (s *InMemoryStore) ListStoresByOwner(_ context.Context, ownerID string) ([]domain.StoreWithAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.StoreWithAggregate{}
	for _, st := range s.stores {
		if st.OwnerID != nil && *st.OwnerID == ownerID {
			out = append(out, domain.StoreWithAggregate{Store: st, Aggregate: s.aggregateLocked(st.ID)})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return ordered(strings.Compare(out[i].Name, out[j].Name), out[i].ID, out[j].ID, domain.SortAsc)
	})
	return out, nil
}

func (s *InMemoryStore) CountStores(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.stores), nil
}

// ── Ratings ───────────────────────────────────────────────────────────────

func (s *InMemoryStore) UpsertRating(_ context.Context, userID, storeID string, value int) (domain.Rating, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.stores[storeID]; !ok {
		return domain.Rating{}, domain.ErrNotFound
	}
	if _, ok := s.users[userID]; !ok {
		return domain.Rating{}, domain.ErrNotFound
	}
	now := s.now()
	k := ratingKey{userID: userID, storeID: storeID}
	r, ok := s.ratings[k]
	if !ok {
		r = domain.Rating{ID: uuid.NewString(), UserID: userID, StoreID: storeID, CreatedAt: now}
	}
	r.Rating = value
	r.UpdatedAt = now
	s.ratings[k] = r
	return r, nil
}

func (s *InMemoryStore) GetRating(_ context.Context, id string) (domain.Rating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.ratings {
		if r.ID == id {
			return r, nil
		}
	}
	return domain.Rating{}, domain.ErrNotFound
}

func (s *InMemoryStore) GetAggregate(_ context.Context, storeID string) (domain.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.aggregateLocked(storeID), nil
}

// aggregateLocked is the single aggregate computation shared by the
// single-store and listing paths.
func (s *InMemoryStore) aggregateLocked(storeID string) domain.Aggregate {
	total, n := 0, 0
	for k, r := range s.ratings {
		if k.storeID == storeID {
			total += r.Rating
			n++
		}
	}
	return newAggregate(total, n)
}

func (s *InMemoryStore) ListRatingsByUser(_ context.Context, userID string) ([]domain.UserRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.UserRating{}
	for k, r := range s.ratings {
		if k.userID == userID {
			out = append(out, domain.UserRating{StoreID: r.StoreID, Rating: r.Rating})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StoreID < out[j].StoreID })
	return out, nil
}

func (s *InMemoryStore) ListRatingsByStore(_ context.Context, storeID string) ([]domain.StoreRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.StoreRating{}
	for k, r := range s.ratings {
		if k.storeID != storeID {
			continue
		}
		u := s.users[r.UserID].user
		out = append(out, domain.StoreRating{Rating: r, User: domain.Rater{ID: u.ID, Name: u.Name, Email: u.Email}})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) ListRatersByOwner(_ context.Context, ownerID string) ([]domain.OwnerRater, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []domain.OwnerRater{}
	for _, r := range s.ratings {
		st := s.stores[r.StoreID]
		if st.OwnerID == nil || *st.OwnerID != ownerID {
			continue
		}
		u := s.users[r.UserID].user
		out = append(out, domain.OwnerRater{
			UserID: u.ID, Name: u.Name, Email: u.Email,
			StoreID: st.ID, StoreName: st.Name, Rating: r.Rating,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StoreName != out[j].StoreName {
			return out[i].StoreName < out[j].StoreName
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *InMemoryStore) OwnerAggregate(_ context.Context, ownerID string) (domain.Aggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total, n := 0, 0
	for _, r := range s.ratings {
		st := s.stores[r.StoreID]
		if st.OwnerID != nil && *st.OwnerID == ownerID {
			total += r.Rating
			n++
		}
	}
	return newAggregate(total, n), nil
}

func (s *InMemoryStore) CountRatings(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.ratings), nil
}

// ── helpers ───────────────────────────────────────────────────────────────

func newAggregate(total, n int) domain.Aggregate {
	if n == 0 {
		return domain.Aggregate{}
	}
	return domain.Aggregate{AvgRating: float64(total) / float64(n), RatingsCount: n}
}

func containsFold(s, sub string) bool {
	return sub == "" || strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// ordered applies the sort direction to c and breaks ties by id.
func ordered(c int, idA, idB string, order domain.SortOrder) bool {
	if c == 0 {
		return idA < idB
	}
	if order == domain.SortDesc {
		return c > 0
	}
	return c < 0
}

func window[T any](items []T, p domain.Paging) []T {
	if p.Limit <= 0 {
		if items == nil {
			return []T{}
		}
		return items
	}
	off := p.Offset()
	if off < 0 || off >= len(items) {
		return []T{}
	}
	end := off + p.Limit
	if end > len(items) {
		end = len(items)
	}
	return items[off:end]
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/example/store-rating/services/ratings/internal/domain"
)

// PostgresStore is the production Repository backed by pgx.
type PostgresStore struct {
	db *pgxpool.Pool
}

func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// translate maps Postgres failures onto domain error kinds.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return domain.ErrConflict
		case "23503", "22P02": // foreign_key_violation, invalid_text_representation
			return domain.ErrNotFound
		case "23514": // check_violation
			return domain.ErrValidation
		}
	}
	return err
}

// ── Users ─────────────────────────────────────────────────────────────────

const userColumns = `id::text, name, email, address, role, created_at, updated_at`

func scanUser(row pgx.Row, extra ...any) (domain.User, error) {
	var u domain.User
	var role string
	dest := append([]any{&u.ID, &u.Name, &u.Email, &u.Address, &role, &u.CreatedAt, &u.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.User{}, err
	}
	u.Role = domain.Role(role)
	return u, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, p CreateUserParams) (domain.User, error) {
	q := `
INSERT INTO users (id, name, email, address, password_hash, role)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + userColumns + `;`
	u, err := scanUser(s.db.QueryRow(ctx, q, uuid.New(), p.Name, p.Email, p.Address, p.PasswordHash, string(p.Role)))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return u, nil
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (domain.User, error) {
	q := `SELECT ` + userColumns + ` FROM users WHERE id = $1::uuid LIMIT 1;`
	u, err := scanUser(s.db.QueryRow(ctx, q, id))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return u, nil
}

func (s *PostgresStore) FindUserByEmail(ctx context.Context, email string) (UserRow, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return UserRow{}, domain.ErrNotFound
	}
	q := `SELECT ` + userColumns + `, password_hash FROM users WHERE lower(email) = lower($1) LIMIT 1;`
	var row UserRow
	u, err := scanUser(s.db.QueryRow(ctx, q, email), &row.PasswordHash)
	if err != nil {
		return UserRow{}, translate(err)
	}
	row.User = u
	return row, nil
}

func (s *PostgresStore) UpdateUser(ctx context.Context, id string, p UpdateUserParams) (domain.User, error) {
	var role *string
	if p.Role != nil {
		r := string(*p.Role)
		role = &r
	}
	q := `
UPDATE users SET
  name = COALESCE($2, name),
  email = COALESCE($3, email),
  address = COALESCE($4, address),
  password_hash = COALESCE($5, password_hash),
  role = COALESCE($6, role),
  updated_at = now()
WHERE id = $1::uuid
RETURNING ` + userColumns + `;`
	u, err := scanUser(s.db.QueryRow(ctx, q, id, p.Name, p.Email, p.Address, p.PasswordHash, role))
	if err != nil {
		return domain.User{}, translate(err)
	}
	return u, nil
}

// DeleteUser relies on the ratings cascade and the stores.owner_id SET NULL rule.
func (s *PostgresStore) DeleteUser(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM users WHERE id = $1::uuid;`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var userSortColumns = map[string]string{
	domain.UserSortName:      "name",
	domain.UserSortEmail:     "email",
	domain.UserSortAddress:   "address",
	domain.UserSortRole:      "role",
	domain.UserSortCreatedAt: "created_at",
}

func (s *PostgresStore) ListUsers(ctx context.Context, q domain.UserQuery) ([]domain.User, int, error) {
	var w where
	w.ilike("name", q.Name)
	w.ilike("email", q.Email)
	w.ilike("address", q.Address)
	if q.Role != "" {
		w.add("role = %s", string(q.Role))
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	sql := `SELECT ` + userColumns + ` FROM users` + w.sql() +
		orderBy(userSortColumns, q.SortBy, "name", q.SortOrder, "id") +
		w.page(q.Paging)
	rows, err := s.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	out := []domain.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, u)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) CountUsersByRole(ctx context.Context, role domain.Role) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role = $1;`, string(role)).Scan(&n)
	return n, translate(err)
}

// ── Stores ────────────────────────────────────────────────────────────────

const storeColumns = `s.id::text, s.name, s.email, s.address, s.owner_id::text, s.created_at, s.updated_at`

// storeAggregateSelect attaches the same AVG/COUNT that GetAggregate
// computes, with 0 for stores without ratings.
const storeAggregateSelect = `
SELECT ` + storeColumns + `,
  COALESCE(AVG(r.rating), 0)::float8 AS avg_rating,
  COUNT(r.id) AS ratings_count
FROM stores s
LEFT JOIN ratings r ON r.store_id = s.id`

func scanStore(row pgx.Row, extra ...any) (domain.Store, error) {
	var st domain.Store
	dest := append([]any{&st.ID, &st.Name, &st.Email, &st.Address, &st.OwnerID, &st.CreatedAt, &st.UpdatedAt}, extra...)
	if err := row.Scan(dest...); err != nil {
		return domain.Store{}, err
	}
	return st, nil
}

func scanStoreWithAggregate(row pgx.Row) (domain.StoreWithAggregate, error) {
	var out domain.StoreWithAggregate
	st, err := scanStore(row, &out.AvgRating, &out.RatingsCount)
	if err != nil {
		return domain.StoreWithAggregate{}, err
	}
	out.Store = st
	return out, nil
}

func (s *PostgresStore) CreateStore(ctx context.Context, p CreateStoreParams) (domain.Store, error) {
	q := `
INSERT INTO stores AS s (id, name, email, address, owner_id)
VALUES ($1, $2, $3, $4, $5::uuid)
RETURNING ` + storeColumns + `;`
	st, err := scanStore(s.db.QueryRow(ctx, q, uuid.New(), p.Name, p.Email, p.Address, p.OwnerID))
	if err != nil {
		return domain.Store{}, translate(err)
	}
	return st, nil
}

func (s *PostgresStore) GetStore(ctx context.Context, id string) (domain.Store, error) {
	q := `SELECT ` + storeColumns + ` FROM stores s WHERE s.id = $1::uuid LIMIT 1;`
	st, err := scanStore(s.db.QueryRow(ctx, q, id))
	if err != nil {
		return domain.Store{}, translate(err)
	}
	return st, nil
}

func (s *PostgresStore) UpdateStore(ctx context.Context, id string, p UpdateStoreParams) (domain.Store, error) {
	q := `
UPDATE stores AS s SET
  name = COALESCE($2, s.name),
  email = COALESCE($3, s.email),
  address = COALESCE($4, s.address),
  owner_id = CASE WHEN $5::bool THEN $6::uuid ELSE s.owner_id END,
  updated_at = now()
WHERE s.id = $1::uuid
RETURNING ` + storeColumns + `;`
	st, err := scanStore(s.db.QueryRow(ctx, q, id, p.Name, p.Email, p.Address, p.SetOwner, p.OwnerID))
	if err != nil {
		return domain.Store{}, translate(err)
	}
	return st, nil
}

func (s *PostgresStore) DeleteStore(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM stores WHERE id = $1::uuid;`, id)
	if err != nil {
		return translate(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

var storeSortColumns = map[string]string{
	domain.StoreSortName:         "s.name",
	domain.StoreSortEmail:        "s.email",
	domain.StoreSortAddress:      "s.address",
	domain.StoreSortCreatedAt:    "s.created_at",
	domain.StoreSortUpdatedAt:    "s.updated_at",
	domain.StoreSortAvgRating:    "avg_rating",
	domain.StoreSortRatingsCount: "ratings_count",
}

func (s *PostgresStore) ListStores(ctx context.Context, q domain.StoreQuery) ([]domain.StoreWithAggregate, int, error) {
	var w where
	if q.Search != "" {
		w.add("(s.name ILIKE %[1]s OR s.address ILIKE %[1]s)", "%"+escapeLike(q.Search)+"%")
	}

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM stores s`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, translate(err)
	}

	sql := storeAggregateSelect + w.sql() + ` GROUP BY s.id` +
		orderBy(storeSortColumns, q.SortBy, "s.name", q.SortOrder, "s.id") +
		w.page(q.Paging)
	rows, err := s.db.Query(ctx, sql, w.args...)
	if err != nil {
		return nil, 0, translate(err)
	}
	defer rows.Close()

	out := []domain.StoreWithAggregate{}
	for rows.Next() {
		st, err := scanStoreWithAggregate(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, st)
	}
	return out, total, rows.Err()
}

func (s *PostgresStore) ListStoresByOwner(ctx context.Context, ownerID string) ([]domain.StoreWithAggregate, error) {
	rows, err := s.db.Query(ctx, storeAggregateSelect+` WHERE s.owner_id = $1::uuid GROUP BY s.id ORDER BY s.name ASC, s.id ASC;`, ownerID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []domain.StoreWithAggregate{}
	for rows.Next() {
		st, err := scanStoreWithAggregate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountStores(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM stores;`).Scan(&n)
	return n, translate(err)
}

// ── Ratings ───────────────────────────────────────────────────────────────

func (s *PostgresStore) UpsertRating(ctx context.Context, userID, storeID string, value int) (domain.Rating, error) {
	q := `
INSERT INTO ratings (id, user_id, store_id, rating)
VALUES ($1, $2::uuid, $3::uuid, $4)
ON CONFLICT (user_id, store_id) DO UPDATE SET rating = EXCLUDED.rating, updated_at = now()
RETURNING id::text, user_id::text, store_id::text, rating, created_at, updated_at;`
	var r domain.Rating
	err := s.db.QueryRow(ctx, q, uuid.New(), userID, storeID, value).
		Scan(&r.ID, &r.UserID, &r.StoreID, &r.Rating, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.Rating{}, translate(err)
	}
	return r, nil
}

func (s *PostgresStore) GetRating(ctx context.Context, id string) (domain.Rating, error) {
	var r domain.Rating
	err := s.db.QueryRow(ctx, `
SELECT id::text, user_id::text, store_id::text, rating, created_at, updated_at
FROM ratings WHERE id = $1::uuid LIMIT 1;`, id).
		Scan(&r.ID, &r.UserID, &r.StoreID, &r.Rating, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return domain.Rating{}, translate(err)
	}
	return r, nil
}

func (s *PostgresStore) GetAggregate(ctx context.Context, storeID string) (domain.Aggregate, error) {
	var a domain.Aggregate
	err := s.db.QueryRow(ctx, `
SELECT COALESCE(AVG(rating), 0)::float8, COUNT(id)
FROM ratings WHERE store_id = $1::uuid;`, storeID).Scan(&a.AvgRating, &a.RatingsCount)
	if err != nil {
		return domain.Aggregate{}, translate(err)
	}
	return a, nil
}

func (s *PostgresStore) ListRatingsByUser(ctx context.Context, userID string) ([]domain.UserRating, error) {
	rows, err := s.db.Query(ctx, `SELECT store_id::text, rating FROM ratings WHERE user_id = $1::uuid ORDER BY store_id;`, userID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []domain.UserRating{}
	for rows.Next() {
		var ur domain.UserRating
		if err := rows.Scan(&ur.StoreID, &ur.Rating); err != nil {
			return nil, err
		}
		out = append(out, ur)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListRatingsByStore(ctx context.Context, storeID string) ([]domain.StoreRating, error) {
	rows, err := s.db.Query(ctx, `
SELECT r.id::text, r.user_id::text, r.store_id::text, r.rating, r.created_at, r.updated_at,
       u.id::text, u.name, u.email
FROM ratings r
JOIN users u ON u.id = r.user_id
WHERE r.store_id = $1::uuid
ORDER BY r.updated_at DESC, r.id ASC;`, storeID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []domain.StoreRating{}
	for rows.Next() {
		var sr domain.StoreRating
		if err := rows.Scan(&sr.ID, &sr.UserID, &sr.StoreID, &sr.Rating.Rating, &sr.CreatedAt, &sr.UpdatedAt,
			&sr.User.ID, &sr.User.Name, &sr.User.Email); err != nil {
			return nil, err
		}
		out = append(out, sr)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListRatersByOwner(ctx context.Context, ownerID string) ([]domain.OwnerRater, error) {
	rows, err := s.db.Query(ctx, `
SELECT u.id::text, u.name, u.email, s.id::text, s.name, r.rating
FROM ratings r
JOIN stores s ON s.id = r.store_id
JOIN users u ON u.id = r.user_id
WHERE s.owner_id = $1::uuid
ORDER BY s.name ASC, u.name ASC;`, ownerID)
	if err != nil {
		return nil, translate(err)
	}
	defer rows.Close()

	out := []domain.OwnerRater{}
	for rows.Next() {
		var or domain.OwnerRater
		if err := rows.Scan(&or.UserID, &or.Name, &or.Email, &or.StoreID, &or.StoreName, &or.Rating); err != nil {
			return nil, err
		}
		out = append(out, or)
	}
	return out, rows.Err()
}

func (s *PostgresStore) OwnerAggregate(ctx context.Context, ownerID string) (domain.Aggregate, error) {
	var a domain.Aggregate
	err := s.db.QueryRow(ctx, `
SELECT COALESCE(AVG(r.rating), 0)::float8, COUNT(r.id)
FROM ratings r
JOIN stores s ON s.id = r.store_id
WHERE s.owner_id = $1::uuid;`, ownerID).Scan(&a.AvgRating, &a.RatingsCount)
	if err != nil {
		return domain.Aggregate{}, translate(err)
	}
	return a, nil
}

func (s *PostgresStore) CountRatings(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM ratings;`).Scan(&n)
	return n, translate(err)
}

// ── query building ────────────────────────────────────────────────────────

// where accumulates AND-ed predicates with positional arguments.
type where struct {
	clauses []string
	args    []any
}

// add appends a predicate; every %s (or %[1]s) in format is replaced by the
// placeholder for v.
func (w *where) add(format string, v any) {
	w.args = append(w.args, v)
	w.clauses = append(w.clauses, fmt.Sprintf(format, fmt.Sprintf("$%d", len(w.args))))
}

func (w *where) ilike(column, v string) {
	if v = strings.TrimSpace(v); v != "" {
		w.add(column+" ILIKE %s", "%"+escapeLike(v)+"%")
	}
}

func (w *where) sql() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

// page appends LIMIT/OFFSET placeholders. Call it after the count query,
// since it extends args.
func (w *where) page(p domain.Paging) string {
	if p.Limit <= 0 {
		return ";"
	}
	w.args = append(w.args, p.Limit, p.Offset())
	return fmt.Sprintf(" LIMIT $%d OFFSET $%d;", len(w.args)-1, len(w.args))
}

// orderBy renders a whitelisted ORDER BY with a deterministic tiebreaker.
func orderBy(columns map[string]string, key, def string, order domain.SortOrder, tiebreak string) string {
	col, ok := columns[key]
	if !ok {
		col = def
	}
	dir := "ASC"
	if order == domain.SortDesc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, %s ASC", col, dir, tiebreak)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

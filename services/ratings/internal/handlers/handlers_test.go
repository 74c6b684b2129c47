package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/crypto/bcrypt"

	"github.com/example/store-rating/internal/platform/api"
	"github.com/example/store-rating/internal/platform/httpserver"
	"github.com/example/store-rating/services/ratings/internal/domain"
	"github.com/example/store-rating/services/ratings/internal/service"
	"github.com/example/store-rating/services/ratings/internal/store"
	"github.com/example/store-rating/services/ratings/internal/tokens"
)

type testEnv struct {
	router chi.Router
	repo   *store.InMemoryStore
	tokens tokens.Service
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	repo := store.NewInMemoryStore()
	tok := tokens.Service{Secret: []byte("handler-test-secret"), AccessTokenTTL: time.Hour}
	r := chi.NewRouter()
	httpserver.SetupRouter(r)
	Mount(r, Deps{
		Ratings: service.NewRatings(repo, nil, nil),
		Stores:  service.NewStores(repo, nil, nil),
		Accounts: service.NewAccounts(repo, service.AccountsOptions{
			Tokens: tok, BcryptCost: bcrypt.MinCost,
		}),
		Limits:   service.Limits{DefaultPageLimit: 10, MaxPageLimit: 100},
		Verifier: tok.Verifier(),
	})
	return &testEnv{router: r, repo: repo, tokens: tok}
}

// login creates a user directly in the store and returns a bearer token.
func (e *testEnv) login(t *testing.T, email string, role domain.Role) (domain.User, string) {
	t.Helper()
	u, err := e.repo.CreateUser(context.Background(), store.CreateUserParams{Name: "Test " + email, Email: email, PasswordHash: "x", Role: role})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	tok, _, err := e.tokens.NewAccessToken(u.ID, string(u.Role), u.Email, time.Now())
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	return u, tok
}

func (e *testEnv) store(t *testing.T, name, email, address string, owner *string) domain.Store {
	t.Helper()
	st, err := e.repo.CreateStore(context.Background(), store.CreateStoreParams{Name: name, Email: email, Address: address, OwnerID: owner})
	if err != nil {
		t.Fatalf("CreateStore: %v", err)
	}
	return st
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rr.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rr.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rr.Code, rr.Body.String())
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[api.ErrorResponse](t, rr).Error.Code
}

// ─── End-to-end ──────────────────────────────────────────────────────────────

func TestEndToEnd_RegisterLoginRateResubmit(t *testing.T) {
	e := newEnv(t)
	st := e.store(t, "Store X", "x@example.com", "1 Main St", nil)

	rr := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"name": "Rating Person Full Name", "email": "rater@example.com", "password": "Secret1!", "address": "2 Side St",
	})
	expectStatus(t, rr, http.StatusCreated)

	rr = e.do(t, http.MethodPost, "/auth/login", "", map[string]string{"email": "rater@example.com", "password": "Secret1!"})
	expectStatus(t, rr, http.StatusOK)
	login := decode[service.AuthResult](t, rr)
	if login.AccessToken == "" {
		t.Fatal("expected access token")
	}

	rr = e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", login.AccessToken, map[string]int{"rating": 4})
	expectStatus(t, rr, http.StatusOK)

	rr = e.do(t, http.MethodGet, "/stores/"+st.ID, "", nil)
	expectStatus(t, rr, http.StatusOK)
	got := decode[domain.StoreWithAggregate](t, rr)
	if got.AvgRating != 4.0 || got.RatingsCount != 1 {
		t.Fatalf("expected avg=4 count=1, got %+v", got.Aggregate)
	}

	rr = e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", login.AccessToken, map[string]int{"rating": 2})
	expectStatus(t, rr, http.StatusOK)

	rr = e.do(t, http.MethodGet, "/stores/"+st.ID, "", nil)
	got = decode[domain.StoreWithAggregate](t, rr)
	if got.AvgRating != 2.0 || got.RatingsCount != 1 {
		t.Fatalf("expected avg=2 count=1, got %+v", got.Aggregate)
	}

	rr = e.do(t, http.MethodGet, "/stores/ratings/my", login.AccessToken, nil)
	expectStatus(t, rr, http.StatusOK)
	mine := decode[[]domain.UserRating](t, rr)
	if len(mine) != 1 || mine[0].StoreID != st.ID || mine[0].Rating != 2 {
		t.Fatalf("unexpected my ratings %+v", mine)
	}
}

// ─── Ratings ─────────────────────────────────────────────────────────────────

func TestRate_Unauthenticated(t *testing.T) {
	e := newEnv(t)
	st := e.store(t, "Alpha", "a@example.com", "x", nil)
	rr := e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", "", map[string]int{"rating": 4})
	expectStatus(t, rr, http.StatusUnauthorized)
}

func TestRate_OutOfRange(t *testing.T) {
	e := newEnv(t)
	_, tok := e.login(t, "u@example.com", domain.RoleUser)
	st := e.store(t, "Alpha", "a@example.com", "x", nil)

	rr := e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", tok, map[string]int{"rating": 6})
	expectStatus(t, rr, http.StatusBadRequest)
	if code := errorCode(t, rr); code != "INVALID_RATING" {
		t.Fatalf("expected INVALID_RATING, got %s", code)
	}

	rr = e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", tok, `{"rating": 4.5}`)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", tok, `{}`)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestRate_UnknownStore(t *testing.T) {
	e := newEnv(t)
	_, tok := e.login(t, "u@example.com", domain.RoleUser)
	rr := e.do(t, http.MethodPost, "/stores/00000000-0000-0000-0000-000000000001/rate", tok, map[string]int{"rating": 3})
	expectStatus(t, rr, http.StatusNotFound)
}

func TestSubmitRating_BodyStoreID(t *testing.T) {
	e := newEnv(t)
	_, tok := e.login(t, "u@example.com", domain.RoleUser)
	st := e.store(t, "Alpha", "a@example.com", "x", nil)

	rr := e.do(t, http.MethodPost, "/ratings", tok, map[string]any{"storeId": st.ID, "rating": 5})
	expectStatus(t, rr, http.StatusOK)
	r := decode[domain.Rating](t, rr)

	rr = e.do(t, http.MethodPut, "/ratings/"+r.ID, tok, map[string]int{"rating": 1})
	expectStatus(t, rr, http.StatusOK)
	if got := decode[domain.Rating](t, rr); got.Rating != 1 || got.ID != r.ID {
		t.Fatalf("unexpected update %+v", got)
	}

	_, other := e.login(t, "other@example.com", domain.RoleUser)
	rr = e.do(t, http.MethodPut, "/ratings/"+r.ID, other, map[string]int{"rating": 3})
	expectStatus(t, rr, http.StatusForbidden)
}

func TestStoreRatings_OwnerOnly(t *testing.T) {
	e := newEnv(t)
	owner, ownerTok := e.login(t, "owner@example.com", domain.RoleStoreOwner)
	_, userTok := e.login(t, "u@example.com", domain.RoleUser)
	st := e.store(t, "Alpha", "a@example.com", "x", &owner.ID)
	e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", userTok, map[string]int{"rating": 5})

	rr := e.do(t, http.MethodGet, "/stores/"+st.ID+"/ratings", ownerTok, nil)
	expectStatus(t, rr, http.StatusOK)
	list := decode[[]domain.StoreRating](t, rr)
	if len(list) != 1 || list[0].User.Email != "u@example.com" {
		t.Fatalf("unexpected ratings %+v", list)
	}

	rr = e.do(t, http.MethodGet, "/stores/"+st.ID+"/ratings", userTok, nil)
	expectStatus(t, rr, http.StatusForbidden)
}

// ─── Stores ──────────────────────────────────────────────────────────────────

func TestListStores_SearchCaseInsensitive(t *testing.T) {
	e := newEnv(t)
	e.store(t, "Coffee Corner", "c@example.com", "Elm Street", nil)
	e.store(t, "Tea House", "t@example.com", "12 COFFEE Lane", nil)
	e.store(t, "Bakery", "b@example.com", "Oak Road", nil)

	rr := e.do(t, http.MethodGet, "/stores?search=coffee", "", nil)
	expectStatus(t, rr, http.StatusOK)
	page := decode[domain.Page[domain.StoreWithAggregate]](t, rr)
	if page.Total != 2 || len(page.Data) != 2 {
		t.Fatalf("expected 2 matches, got %+v", page)
	}
	for _, s := range page.Data {
		if s.Name == "Bakery" {
			t.Fatal("Bakery should not match")
		}
	}
	if page.Page != 1 || page.Limit != 10 {
		t.Fatalf("expected default paging, got page=%d limit=%d", page.Page, page.Limit)
	}
}

func TestListStores_BadQuery(t *testing.T) {
	e := newEnv(t)
	for _, q := range []string{"sortBy=password", "sortOrder=sideways", "page=0", "limit=-5", "page=abc"} {
		rr := e.do(t, http.MethodGet, "/stores?"+q, "", nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", q, rr.Code)
		}
	}
}

func TestGetStore_MalformedID(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodGet, "/stores/not-a-uuid", "", nil)
	expectStatus(t, rr, http.StatusBadRequest)
}

func TestCreateStore_Roles(t *testing.T) {
	e := newEnv(t)
	owner, ownerTok := e.login(t, "owner@example.com", domain.RoleStoreOwner)
	_, userTok := e.login(t, "u@example.com", domain.RoleUser)
	body := map[string]string{"name": "Alpha", "email": "alpha@example.com", "address": "1 Main St"}

	rr := e.do(t, http.MethodPost, "/stores", userTok, body)
	expectStatus(t, rr, http.StatusForbidden)

	rr = e.do(t, http.MethodPost, "/stores", ownerTok, body)
	expectStatus(t, rr, http.StatusCreated)
	st := decode[domain.Store](t, rr)
	if st.OwnerID == nil || *st.OwnerID != owner.ID {
		t.Fatalf("expected owner %s, got %v", owner.ID, st.OwnerID)
	}

	rr = e.do(t, http.MethodPost, "/stores", ownerTok, body)
	expectStatus(t, rr, http.StatusConflict)
}

func TestUpdateStore_NotFoundThenForbidden(t *testing.T) {
	e := newEnv(t)
	_, aTok := e.login(t, "a@example.com", domain.RoleStoreOwner)
	b, bTok := e.login(t, "b@example.com", domain.RoleStoreOwner)
	st := e.store(t, "Alpha", "alpha@example.com", "x", &b.ID)
	body := map[string]string{"name": "Renamed"}

	rr := e.do(t, http.MethodPut, "/stores/00000000-0000-0000-0000-000000000001", aTok, body)
	expectStatus(t, rr, http.StatusNotFound)

	rr = e.do(t, http.MethodPut, "/stores/"+st.ID, aTok, body)
	expectStatus(t, rr, http.StatusForbidden)

	rr = e.do(t, http.MethodPut, "/stores/"+st.ID, bTok, body)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[domain.Store](t, rr); got.Name != "Renamed" {
		t.Fatalf("expected rename, got %s", got.Name)
	}
}

func TestDeleteStore_Admin(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.login(t, "admin@example.com", domain.RoleAdmin)
	st := e.store(t, "Alpha", "alpha@example.com", "x", nil)

	rr := e.do(t, http.MethodDelete, "/stores/"+st.ID, adminTok, nil)
	expectStatus(t, rr, http.StatusNoContent)
	rr = e.do(t, http.MethodGet, "/stores/"+st.ID, "", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestUpdateStoreRequest_OwnerNullVsAbsent(t *testing.T) {
	var absent updateStoreRequest
	_ = json.Unmarshal([]byte(`{"name":"x"}`), &absent)
	p, err := absent.patch()
	if err != nil || p.OwnerSet {
		t.Fatalf("expected owner untouched, got %+v %v", p, err)
	}

	var null updateStoreRequest
	_ = json.Unmarshal([]byte(`{"ownerId":null}`), &null)
	p, err = null.patch()
	if err != nil || !p.OwnerSet || p.OwnerID != nil {
		t.Fatalf("expected owner cleared, got %+v %v", p, err)
	}

	var set updateStoreRequest
	_ = json.Unmarshal([]byte(`{"ownerId":"abc"}`), &set)
	p, err = set.patch()
	if err != nil || !p.OwnerSet || p.OwnerID == nil || *p.OwnerID != "abc" {
		t.Fatalf("expected owner abc, got %+v %v", p, err)
	}

	var bad updateStoreRequest
	_ = json.Unmarshal([]byte(`{"ownerId":42}`), &bad)
	if _, err := bad.patch(); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

// ─── Admin & owner ───────────────────────────────────────────────────────────

func TestAdminRoutes_RequireAdmin(t *testing.T) {
	e := newEnv(t)
	_, userTok := e.login(t, "u@example.com", domain.RoleUser)
	_, adminTok := e.login(t, "admin@example.com", domain.RoleAdmin)

	rr := e.do(t, http.MethodGet, "/admin/dashboard", userTok, nil)
	expectStatus(t, rr, http.StatusForbidden)

	rr = e.do(t, http.MethodGet, "/admin/dashboard", adminTok, nil)
	expectStatus(t, rr, http.StatusOK)
	stats := decode[domain.DashboardStats](t, rr)
	if stats.TotalUsers != 1 {
		t.Fatalf("expected 1 role=user account, got %+v", stats)
	}
}

func TestAdminUsers_CreateListDelete(t *testing.T) {
	e := newEnv(t)
	_, adminTok := e.login(t, "admin@example.com", domain.RoleAdmin)

	rr := e.do(t, http.MethodPost, "/admin/users", adminTok, map[string]string{
		"name": "Owner", "email": "owner@example.com", "password": "secret", "address": "x", "role": "store_owner",
	})
	expectStatus(t, rr, http.StatusCreated)
	u := decode[domain.User](t, rr)

	rr = e.do(t, http.MethodGet, "/admin/users?role=store_owner", adminTok, nil)
	expectStatus(t, rr, http.StatusOK)
	page := decode[domain.Page[domain.User]](t, rr)
	if page.Total != 1 || page.Data[0].ID != u.ID {
		t.Fatalf("unexpected page %+v", page)
	}

	rr = e.do(t, http.MethodGet, "/admin/users?role=root", adminTok, nil)
	expectStatus(t, rr, http.StatusBadRequest)

	rr = e.do(t, http.MethodPost, "/admin/stores", adminTok, map[string]any{
		"name": "Owned", "email": "owned@example.com", "address": "x", "ownerId": u.ID,
	})
	expectStatus(t, rr, http.StatusCreated)
	st := decode[domain.Store](t, rr)

	rr = e.do(t, http.MethodDelete, "/admin/users/"+u.ID, adminTok, nil)
	expectStatus(t, rr, http.StatusNoContent)

	rr = e.do(t, http.MethodGet, "/stores/"+st.ID, "", nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[domain.StoreWithAggregate](t, rr); got.OwnerID != nil {
		t.Fatalf("expected orphaned store, got owner %v", *got.OwnerID)
	}
}

func TestOwnerRoutes(t *testing.T) {
	e := newEnv(t)
	owner, ownerTok := e.login(t, "owner@example.com", domain.RoleStoreOwner)
	_, userTok := e.login(t, "u@example.com", domain.RoleUser)
	st := e.store(t, "Alpha", "alpha@example.com", "x", &owner.ID)
	e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", userTok, map[string]int{"rating": 3})

	rr := e.do(t, http.MethodGet, "/owner/dashboard", ownerTok, nil)
	expectStatus(t, rr, http.StatusOK)
	d := decode[domain.OwnerDashboard](t, rr)
	if d.TotalStores != 1 || d.TotalRatings != 1 || d.AvgRating != 3 {
		t.Fatalf("unexpected dashboard %+v", d)
	}

	rr = e.do(t, http.MethodGet, "/owner/raters", ownerTok, nil)
	expectStatus(t, rr, http.StatusOK)
	if raters := decode[[]domain.OwnerRater](t, rr); len(raters) != 1 || raters[0].Rating != 3 {
		t.Fatalf("unexpected raters %+v", raters)
	}

	rr = e.do(t, http.MethodGet, "/owner/stores", userTok, nil)
	expectStatus(t, rr, http.StatusForbidden)
}

func TestMe_GetAndUpdate(t *testing.T) {
	e := newEnv(t)
	u, tok := e.login(t, "u@example.com", domain.RoleUser)

	rr := e.do(t, http.MethodGet, "/me", tok, nil)
	expectStatus(t, rr, http.StatusOK)
	if got := decode[domain.User](t, rr); got.ID != u.ID {
		t.Fatalf("expected %s, got %s", u.ID, got.ID)
	}

	rr = e.do(t, http.MethodPut, "/me", tok, map[string]string{"address": "99 New Road"})
	expectStatus(t, rr, http.StatusOK)
	if got := decode[domain.User](t, rr); got.Address != "99 New Road" {
		t.Fatalf("expected address update, got %q", got.Address)
	}
}

// ─── Error mapping ───────────────────────────────────────────────────────────

func TestWriteError_Mapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.Invalid("X", "bad", map[string]string{"f": "bad"}), http.StatusBadRequest},
		{domain.Unauthenticated("X", "who"), http.StatusUnauthorized},
		{domain.Forbidden("X", "no"), http.StatusForbidden},
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.Conflict("X", "dup"), http.StatusConflict},
	}
	for _, c := range cases {
		rr := httptest.NewRecorder()
		writeError(rr, httptest.NewRequest(http.MethodGet, "/", nil), zap.NewNop(), c.err)
		if rr.Code != c.want {
			t.Fatalf("%v: expected %d, got %d", c.err, c.want, rr.Code)
		}
	}
}

func TestWriteError_UnexpectedIsLoggedAs500(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	rr := httptest.NewRecorder()
	writeError(rr, httptest.NewRequest(http.MethodGet, "/stores", nil), zap.New(core), errors.New("connection reset"))

	expectStatus(t, rr, http.StatusInternalServerError)
	if code := errorCode(t, rr); code != "INTERNAL" {
		t.Fatalf("expected INTERNAL, got %s", code)
	}
	if strings.Contains(rr.Body.String(), "connection reset") {
		t.Fatal("internal error detail leaked to client")
	}
	if logs.Len() != 1 {
		t.Fatalf("expected one error log, got %d", logs.Len())
	}
}

func TestMalformedJSON(t *testing.T) {
	e := newEnv(t)
	rr := e.do(t, http.MethodPost, "/auth/login", "", `{"email":`)
	expectStatus(t, rr, http.StatusBadRequest)
	if code := errorCode(t, rr); code != "INVALID_JSON" {
		t.Fatalf("expected INVALID_JSON, got %s", code)
	}
}

func TestStoreWrites_UserRoleNotFoundBeforeForbidden(t *testing.T) {
	e := newEnv(t)
	_, userTok := e.login(t, "u@example.com", domain.RoleUser)
	st := e.store(t, "Alpha", "alpha@example.com", "x", nil)
	missing := "/stores/00000000-0000-0000-0000-000000000001"

	rr := e.do(t, http.MethodPut, missing, userTok, map[string]string{"name": "Renamed"})
	expectStatus(t, rr, http.StatusNotFound)
	rr = e.do(t, http.MethodDelete, missing, userTok, nil)
	expectStatus(t, rr, http.StatusNotFound)

	rr = e.do(t, http.MethodPut, "/stores/"+st.ID, userTok, map[string]string{"name": "Renamed"})
	expectStatus(t, rr, http.StatusForbidden)
	rr = e.do(t, http.MethodDelete, "/stores/"+st.ID, userTok, nil)
	expectStatus(t, rr, http.StatusForbidden)
}

func TestStoreAggregate(t *testing.T) {
	e := newEnv(t)
	_, tok := e.login(t, "u@example.com", domain.RoleUser)
	st := e.store(t, "Alpha", "alpha@example.com", "x", nil)

	rr := e.do(t, http.MethodGet, "/stores/"+st.ID+"/aggregate", "", nil)
	expectStatus(t, rr, http.StatusOK)
	if agg := decode[domain.Aggregate](t, rr); agg.AvgRating != 0 || agg.RatingsCount != 0 {
		t.Fatalf("expected zero aggregate, got %+v", agg)
	}

	e.do(t, http.MethodPost, "/stores/"+st.ID+"/rate", tok, map[string]int{"rating": 5})
	rr = e.do(t, http.MethodGet, "/stores/"+st.ID+"/aggregate", "", nil)
	if agg := decode[domain.Aggregate](t, rr); agg.AvgRating != 5 || agg.RatingsCount != 1 {
		t.Fatalf("expected avg=5 count=1, got %+v", agg)
	}

	rr = e.do(t, http.MethodGet, "/stores/00000000-0000-0000-0000-000000000001/aggregate", "", nil)
	expectStatus(t, rr, http.StatusNotFound)
}

func TestListStores_HugePageRejected(t *testing.T) {
	e := newEnv(t)
	e.store(t, "Alpha", "alpha@example.com", "x", nil)
	rr := e.do(t, http.MethodGet, "/stores?page=4611686018427387905&limit=4", "", nil)
	expectStatus(t, rr, http.StatusBadRequest)
	if code := errorCode(t, rr); code != "INVALID_PAGINATION" {
		t.Fatalf("expected INVALID_PAGINATION, got %s", code)
	}
}

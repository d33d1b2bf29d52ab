package auth_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-rbac/internal/auth"
	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	"github.com/odyssey-erp/odyssey-rbac/internal/token"
	_ "github.com/odyssey-erp/odyssey-rbac/testing"
)

type stubUser struct {
	creds auth.Credentials
	roles []string
}

type stubRepo struct {
	mu      sync.Mutex
	users   map[string]*stubUser
	nextID  int64
	created int
}

func newStubRepo(t *testing.T) *stubRepo {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.MinCost)
	require.NoError(t, err)
	return &stubRepo{
		users: map[string]*stubUser{
			"admin": {creds: auth.Credentials{UserID: 1, Username: "admin", Email: "admin@admin.com", PasswordHash: string(hash), IsActive: true}, roles: []string{shared.RoleAdmin}},
			"gone":  {creds: auth.Credentials{UserID: 2, Username: "gone", Email: "gone@x.io", PasswordHash: string(hash), IsActive: false}, roles: []string{shared.RoleUser}},
		},
		nextID: 10,
	}
}

func (s *stubRepo) FindByUsername(_ context.Context, username string) (*auth.Credentials, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[username]
	if !ok {
		return nil, shared.ErrNotFound
	}
	c := u.creds
	return &c, nil
}

func (s *stubRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.users[username]
	return ok, nil
}

func (s *stubRepo) EmailExists(_ context.Context, email string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.creds.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (s *stubRepo) CreateUser(_ context.Context, username, email, hash string, roles []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.created++
	s.users[username] = &stubUser{creds: auth.Credentials{UserID: id, Username: username, Email: email, PasswordHash: hash, IsActive: true}, roles: roles}
	return id, nil
}

func (s *stubRepo) LoadPrincipal(_ context.Context, id int64) (rbac.Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.creds.UserID != id {
			continue
		}
		p := rbac.Principal{ID: id, Username: u.creds.Username, Email: u.creds.Email, Active: u.creds.IsActive}
		for _, name := range u.roles {
			role := rbac.Role{Name: name}
			if name == shared.RoleAdmin {
				role.Permissions = []rbac.Permission{{Name: shared.PermViewUser}}
			}
			p.Roles = append(p.Roles, role)
		}
		return p, nil
	}
	return rbac.Principal{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
}

func (s *stubRepo) counts() (users, created int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.users), s.created
}

func (s *stubRepo) rolesOf(username string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[username].roles
}

func newAuthRouter(t *testing.T) (http.Handler, *stubRepo, *token.Issuer) {
	t.Helper()
	repo := newStubRepo(t)
	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	svc := auth.NewService(repo, repo, issuer, nil, nil, auth.WithHashCost(bcrypt.MinCost))
	r := chi.NewRouter()
	r.Route("/api/auth", auth.NewHandler(nil, svc).MountRoutes)
	return r, repo, issuer
}

func post(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestSignInReturnsTokenAndAuthorities(t *testing.T) {
	h, _, issuer := newAuthRouter(t)

	rr := post(h, "/api/auth/signin", `{"username":"admin","password":"admin123"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var session auth.Session
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &session))
	assert.Equal(t, "Bearer", session.Type)
	assert.Equal(t, int64(1), session.ID)
	assert.Equal(t, "admin@admin.com", session.Email)
	assert.Equal(t, []string{shared.PermViewUser, shared.RoleAdmin}, session.Authorities)

	id, err := issuer.Validate(session.Token)
	require.NoError(t, err)
	assert.Equal(t, "admin", id.Username)
}

func TestSignInFailuresAreIndistinguishable(t *testing.T) {
	h, _, _ := newAuthRouter(t)

	bodies := []string{
		`{"username":"admin","password":"wrong"}`,
		`{"username":"nobody","password":"admin123"}`,
		`{"username":"gone","password":"admin123"}`,
	}
	var details []string
	for _, body := range bodies {
		rr := post(h, "/api/auth/signin", body)
		require.Equal(t, http.StatusUnauthorized, rr.Code, body)
		var p httpx.ProblemDetail
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
		details = append(details, p.Detail)
	}
	assert.Equal(t, details[0], details[1])
	assert.Equal(t, details[0], details[2])
}

func TestSignInValidatesPayload(t *testing.T) {
	h, _, _ := newAuthRouter(t)
	assert.Equal(t, http.StatusBadRequest, post(h, "/api/auth/signin", `{"username":"admin"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(h, "/api/auth/signin", `not json`).Code)
}

func TestSignUpDefaultsToBaseRole(t *testing.T) {
	h, repo, _ := newAuthRouter(t)

	rr := post(h, "/api/auth/signup", `{"username":"newbie","email":"newbie@x.io","password":"secret1"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, []string{shared.RoleUser}, repo.rolesOf("newbie"))

	rr = post(h, "/api/auth/signin", `{"username":"newbie","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestSignUpMapsRoleHints(t *testing.T) {
	h, repo, _ := newAuthRouter(t)

	rr := post(h, "/api/auth/signup", `{"username":"hana","email":"hana@x.io","password":"secret1","roles":["HR","wizard"]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, []string{shared.RoleHR, shared.RoleUser}, repo.rolesOf("hana"))
}

func TestSignUpConflicts(t *testing.T) {
	h, repo, _ := newAuthRouter(t)

	rr := post(h, "/api/auth/signup", `{"username":"admin","email":"fresh@x.io","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "username is already taken")

	rr = post(h, "/api/auth/signup", `{"username":"fresh","email":"ADMIN@admin.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Contains(t, rr.Body.String(), "email is already in use")

	users, created := repo.counts()
	assert.Equal(t, 2, users)
	assert.Zero(t, created)
	assert.Equal(t, []string{shared.RoleAdmin}, repo.rolesOf("admin"))
}

func TestResolveRoleHints(t *testing.T) {
	svc := auth.NewService(nil, nil, nil, nil, nil)
	assert.Equal(t, []string{shared.RoleUser}, svc.ResolveRoleHints(nil))
	assert.Equal(t, []string{shared.RoleUser}, svc.ResolveRoleHints([]string{"mod"}))
	assert.Equal(t, []string{shared.RoleAdmin}, svc.ResolveRoleHints([]string{" Admin "}))
	assert.Equal(t, []string{shared.RoleAdmin, shared.RoleHR}, svc.ResolveRoleHints([]string{"hr", "admin", "hr"}))
}

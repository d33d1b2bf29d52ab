package users

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	"github.com/odyssey-erp/odyssey-rbac/internal/token"
)

type principals map[int64]rbac.Principal

func (p principals) LoadPrincipal(_ context.Context, id int64) (rbac.Principal, error) {
	if pr, ok := p[id]; ok {
		return pr, nil
	}
	return rbac.Principal{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
}

type usersFixture struct {
	router http.Handler
	issuer *token.Issuer
}

func newUsersFixture(t *testing.T) usersFixture {
	t.Helper()
	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	mw := rbac.Middleware{Tokens: issuer, Principals: principals{
		100: {ID: 100, Username: "admin", Active: true, Roles: []rbac.Role{{Name: shared.RoleAdmin}}},
		101: {ID: 101, Username: "viewer", Active: true, Roles: []rbac.Role{{Name: shared.RoleUser, Permissions: []rbac.Permission{{Name: shared.PermViewUser}}}}},
	}}
	handler := NewHandler(nil, newTestService(newMemoryRepo(), nil), mw)
	r := chi.NewRouter()
	r.Use(mw.Identify)
	r.Route("/api/users", handler.MountRoutes)
	return usersFixture{router: r, issuer: issuer}
}

func (f usersFixture) do(t *testing.T, method, path string, userID int64, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if userID != 0 {
		tok, err := f.issuer.Issue(token.Subject{UserID: userID, Username: "caller"})
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+tok.Value)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func TestUsersHandlerLifecycle(t *testing.T) {
	f := newUsersFixture(t)

	rr := f.do(t, http.MethodPost, "/api/users/", 100, `{"username":"frank","email":"frank@example.com","password":"secret1","roles":["ROLE_HR"]}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created User
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, []string{shared.RoleHR}, created.Roles)
	assert.NotContains(t, rr.Body.String(), "password")

	rr = f.do(t, http.MethodPost, "/api/users/", 100, `{"username":"frank","email":"frank2@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/users/", 101, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var page ListResult
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &page))
	assert.Equal(t, 1, page.Meta.Total)

	rr = f.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d", created.ID), 101, `{"is_active":false}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodPut, fmt.Sprintf("/api/users/%d", created.ID), 100, `{"is_active":false}`)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"is_active":false`)

	rr = f.do(t, http.MethodDelete, fmt.Sprintf("/api/users/%d", created.ID), 100, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, fmt.Sprintf("/api/users/%d", created.ID), 101, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUsersHandlerRejectsInvalidPayload(t *testing.T) {
	f := newUsersFixture(t)

	rr := f.do(t, http.MethodPost, "/api/users/", 100, `{"username":"x","email":"not-an-email","password":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/users/", 100, `{"username":"frank","unknown":true}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUsersHandlerRequiresIdentity(t *testing.T) {
	f := newUsersFixture(t)

	rr := f.do(t, http.MethodGet, "/api/users/", 0, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/users/1", 101, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, rr.Body.String(), string(rbac.OpDeleteUser))
}

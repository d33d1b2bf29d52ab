package roles

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

func newRolesRouter(t *testing.T) (http.Handler, func(id int64) string) {
	t.Helper()
	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	mw := rbac.Middleware{Tokens: issuer, Principals: principals{
		1: {ID: 1, Username: "admin", Active: true, Roles: []rbac.Role{{Name: shared.RoleAdmin}}},
		2: {ID: 2, Username: "editor", Active: true, Roles: []rbac.Role{{Name: shared.RoleHR, Permissions: []rbac.Permission{
			{Name: shared.PermViewRole}, {Name: shared.PermUpdateRole},
		}}}},
	}}
	handler := NewHandler(nil, NewService(newMemoryRepo(), nil, nil), mw)
	r := chi.NewRouter()
	r.Use(mw.Identify)
	r.Route("/api/roles", handler.MountRoutes)
	bearer := func(id int64) string {
		tok, err := issuer.Issue(token.Subject{UserID: id, Username: "caller"})
		require.NoError(t, err)
		return "Bearer " + tok.Value
	}
	return r, bearer
}

func call(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRolesHandler(t *testing.T) {
	h, bearer := newRolesRouter(t)
	admin, editor := bearer(1), bearer(2)

	rr := call(h, http.MethodPost, "/api/roles/", editor, `{"name":"auditor"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = call(h, http.MethodPost, "/api/roles/", admin, `{"name":"auditor"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	var created Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &created))
	assert.Equal(t, "ROLE_AUDITOR", created.Name)

	rr = call(h, http.MethodPut, fmt.Sprintf("/api/roles/%d/permissions", created.ID), editor, `{"permission_ids":[12]}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Contains(t, rr.Body.String(), shared.PermViewMenu)

	rr = call(h, http.MethodPut, "/api/roles/99/permissions", editor, `{"permission_ids":[12]}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = call(h, http.MethodGet, "/api/roles/", editor, "")
	require.Equal(t, http.StatusOK, rr.Code)
	var list []Role
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	assert.Len(t, list, 3)

	rr = call(h, http.MethodDelete, fmt.Sprintf("/api/roles/%d", created.ID), editor, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = call(h, http.MethodDelete, fmt.Sprintf("/api/roles/%d", created.ID), admin, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = call(h, http.MethodGet, fmt.Sprintf("/api/roles/%d", created.ID), admin, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

package rbac

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	"github.com/odyssey-erp/odyssey-rbac/internal/token"
)

type memoryPermissions struct {
	items  map[int64]Permission
	nextID int64
}

func newMemoryPermissions() *memoryPermissions {
	return &memoryPermissions{items: map[int64]Permission{}, nextID: 1}
}

func (m *memoryPermissions) ListPermissions(context.Context) ([]Permission, error) {
	out := make([]Permission, 0, len(m.items))
	for _, p := range m.items {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memoryPermissions) GetPermission(_ context.Context, id int64) (Permission, error) {
	p, ok := m.items[id]
	if !ok {
		return Permission{}, fmt.Errorf("permission %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (m *memoryPermissions) CreatePermission(_ context.Context, name, description string) (Permission, error) {
	for _, p := range m.items {
		if p.Name == name {
			return Permission{}, fmt.Errorf("permission %q: %w", name, shared.ErrConflict)
		}
	}
	p := Permission{ID: m.nextID, Name: name, Description: description}
	m.items[p.ID] = p
	m.nextID++
	return p, nil
}

func (m *memoryPermissions) UpdatePermission(_ context.Context, id int64, name, description string) (Permission, error) {
	if _, ok := m.items[id]; !ok {
		return Permission{}, fmt.Errorf("permission %d: %w", id, shared.ErrNotFound)
	}
	p := Permission{ID: id, Name: name, Description: description}
	m.items[id] = p
	return p, nil
}

func (m *memoryPermissions) DeletePermission(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return fmt.Errorf("permission %d: %w", id, shared.ErrNotFound)
	}
	delete(m.items, id)
	return nil
}

type captureAudit struct{ logs []shared.AuditLog }

func (c *captureAudit) Record(_ context.Context, log shared.AuditLog) error {
	c.logs = append(c.logs, log)
	return nil
}

func TestPermissionServiceCreateRecordsAudit(t *testing.T) {
	audit := &captureAudit{}
	svc := NewPermissionService(newMemoryPermissions(), audit, nil)
	ctx := shared.ContextWithIdentity(context.Background(), &shared.Identity{UserID: 7})

	p, err := svc.CreatePermission(ctx, PermissionInput{Name: "  CAN_EXPORT_REPORT ", Description: "Export"})
	require.NoError(t, err)
	assert.Equal(t, "CAN_EXPORT_REPORT", p.Name)

	require.Len(t, audit.logs, 1)
	assert.Equal(t, "permission.create", audit.logs[0].Action)
	assert.Equal(t, int64(7), audit.logs[0].ActorID)

	_, err = svc.CreatePermission(ctx, PermissionInput{Name: "CAN_EXPORT_REPORT"})
	assert.ErrorIs(t, err, shared.ErrConflict)
}

func TestPermissionServiceRejectsBadNames(t *testing.T) {
	svc := NewPermissionService(newMemoryPermissions(), nil, nil)
	for _, name := range []string{"", "  ", "CAN VIEW", "ROLE_SNEAKY"} {
		_, err := svc.CreatePermission(context.Background(), PermissionInput{Name: name})
		assert.ErrorIs(t, err, shared.ErrValidation, name)
	}
}

func TestPermissionServiceMissingIsNotFound(t *testing.T) {
	svc := NewPermissionService(newMemoryPermissions(), nil, nil)
	_, err := svc.UpdatePermission(context.Background(), 5, PermissionInput{Name: "CAN_X"})
	assert.ErrorIs(t, err, shared.ErrNotFound)
	assert.ErrorIs(t, svc.DeletePermission(context.Background(), 5), shared.ErrNotFound)
}

func newPermissionsRouter(t *testing.T) (http.Handler, func(id int64, name string) string) {
	t.Helper()
	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour)
	require.NoError(t, err)
	principals := stubPrincipals{
		1: {ID: 1, Username: "admin", Active: true, Roles: []Role{{Name: shared.RoleAdmin}}},
		2: {ID: 2, Username: "reader", Active: true, Roles: []Role{{Name: shared.RoleUser, Permissions: []Permission{{Name: shared.PermViewPermission}}}}},
	}
	mw := Middleware{Tokens: issuer, Principals: principals}
	handler := NewPermissionsHandler(nil, NewPermissionService(newMemoryPermissions(), nil, nil), mw)

	r := chi.NewRouter()
	r.Use(mw.Identify)
	r.Route("/api/permissions", handler.MountRoutes)

	bearer := func(id int64, name string) string {
		tok, err := issuer.Issue(token.Subject{UserID: id, Username: name})
		require.NoError(t, err)
		return "Bearer " + tok.Value
	}
	return r, bearer
}

func doRequest(h http.Handler, method, path, auth, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestPermissionsHandlerCRUD(t *testing.T) {
	h, bearer := newPermissionsRouter(t)
	admin := bearer(1, "admin")
	reader := bearer(2, "reader")

	rr := doRequest(h, http.MethodPost, "/api/permissions/", admin, `{"name":"CAN_AUDIT","description":"Audit"}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())

	rr = doRequest(h, http.MethodPost, "/api/permissions/", reader, `{"name":"CAN_OTHER"}`)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(h, http.MethodGet, "/api/permissions/", reader, "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "CAN_AUDIT")

	rr = doRequest(h, http.MethodGet, "/api/permissions/99", reader, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doRequest(h, http.MethodDelete, "/api/permissions/99", reader, "")
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = doRequest(h, http.MethodPut, "/api/permissions/1", admin, `{"name":"CAN_AUDIT_ALL"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doRequest(h, http.MethodDelete, "/api/permissions/1", admin, "")
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = doRequest(h, http.MethodGet, "/api/permissions/abc", admin, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doRequest(h, http.MethodGet, "/api/permissions/", "", "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

package rbac

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	"github.com/odyssey-erp/odyssey-rbac/internal/token"
)

type stubPrincipals map[int64]Principal

func (s stubPrincipals) LoadPrincipal(_ context.Context, id int64) (Principal, error) {
	p, ok := s[id]
	if !ok {
		return Principal{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

type recordingObserver struct {
	tokens    []string
	decisions map[string]bool
}

func (o *recordingObserver) ObserveTokenValidation(result string) {
	o.tokens = append(o.tokens, result)
}

func (o *recordingObserver) ObserveDecision(op string, allowed bool) {
	if o.decisions == nil {
		o.decisions = map[string]bool{}
	}
	o.decisions[op] = allowed
}

type middlewareFixture struct {
	mw     Middleware
	issuer *token.Issuer
	clock  *time.Time
	obs    *recordingObserver
}

func newMiddlewareFixture(t *testing.T) middlewareFixture {
	t.Helper()
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := &now
	issuer, err := token.NewIssuer([]byte("0123456789abcdef0123456789abcdef"), time.Hour,
		token.WithClock(func() time.Time { return *clock }))
	require.NoError(t, err)
	obs := &recordingObserver{}
	principals := stubPrincipals{
		1: {ID: 1, Username: "admin", Active: true, Roles: []Role{{Name: shared.RoleAdmin}}},
		2: {ID: 2, Username: "viewer", Active: true, Roles: []Role{{Name: shared.RoleUser, Permissions: []Permission{{Name: shared.PermViewUser}}}}},
		3: {ID: 3, Username: "disabled", Active: false, Roles: []Role{{Name: shared.RoleAdmin}}},
	}
	return middlewareFixture{
		mw:     Middleware{Tokens: issuer, Principals: principals, Observer: obs},
		issuer: issuer,
		clock:  clock,
		obs:    obs,
	}
}

func (f middlewareFixture) bearer(t *testing.T, id int64, username string) string {
	t.Helper()
	tok, err := f.issuer.Issue(token.Subject{UserID: id, Username: username})
	require.NoError(t, err)
	return "Bearer " + tok.Value
}

func (f middlewareFixture) serve(op Operation, authorization string) *httptest.ResponseRecorder {
	handler := f.mw.Identify(f.mw.Require(op)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, shared.IdentityFromContext(r.Context()))
	})))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func problemOf(t *testing.T, rr *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &p))
	return p
}

func TestRequireAllowsGrantedPermission(t *testing.T) {
	f := newMiddlewareFixture(t)
	rr := f.serve(OpViewUser, f.bearer(t, 2, "viewer"))

	require.Equal(t, http.StatusOK, rr.Code)
	var identity shared.Identity
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &identity))
	assert.Equal(t, []string{shared.PermViewUser, shared.RoleUser}, identity.Authorities)
	assert.True(t, f.obs.decisions[string(OpViewUser)])
	assert.Equal(t, []string{"valid"}, f.obs.tokens)
}

func TestRequireDeniesWithOperationName(t *testing.T) {
	f := newMiddlewareFixture(t)
	rr := f.serve(OpDeleteUser, f.bearer(t, 2, "viewer"))

	require.Equal(t, http.StatusForbidden, rr.Code)
	assert.Contains(t, problemOf(t, rr).Detail, "users.delete")
	assert.False(t, f.obs.decisions[string(OpDeleteUser)])
}

func TestRequireAdminPassesEverything(t *testing.T) {
	f := newMiddlewareFixture(t)
	for _, op := range Operations() {
		rr := f.serve(op, f.bearer(t, 1, "admin"))
		assert.Equal(t, http.StatusOK, rr.Code, op)
	}
}

func TestRequireWithoutTokenIsUnauthorized(t *testing.T) {
	f := newMiddlewareFixture(t)
	rr := f.serve(OpViewUser, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.serve(OpViewUser, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestIdentifyDistinguishesExpiredFromInvalid(t *testing.T) {
	f := newMiddlewareFixture(t)
	header := f.bearer(t, 2, "viewer")
	*f.clock = f.clock.Add(2 * time.Hour)

	rr := f.serve(OpViewUser, header)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Token Expired", problemOf(t, rr).Title)

	rr = f.serve(OpViewUser, "Bearer garbage")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Token Invalid", problemOf(t, rr).Title)
	assert.Equal(t, []string{"expired", "malformed"}, f.obs.tokens)
}

func TestTokenProblemDetailIsFixed(t *testing.T) {
	f := newMiddlewareFixture(t)
	rr := f.serve(OpViewUser, "Bearer not.a.token")
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "token invalid", problemOf(t, rr).Detail)

	rr = f.serve(OpViewUser, f.bearer(t, 3, "disabled"))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "token invalid", problemOf(t, rr).Detail)
}

func TestIdentifyRejectsDisabledOrDeletedSubject(t *testing.T) {
	f := newMiddlewareFixture(t)
	assert.Equal(t, http.StatusUnauthorized, f.serve(OpViewUser, f.bearer(t, 3, "disabled")).Code)
	assert.Equal(t, http.StatusUnauthorized, f.serve(OpViewUser, f.bearer(t, 99, "ghost")).Code)
}

func TestIdentifyLetsAnonymousThroughForOpenOperation(t *testing.T) {
	f := newMiddlewareFixture(t)
	handler := f.mw.Identify(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Zero(t, AuthoritiesFromContext(r.Context()).Len())
		w.WriteHeader(http.StatusNoContent)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rr.Code)
}

func TestExtractBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer   abc.def.ghi ")
	raw, ok := extractBearerToken(req)
	assert.True(t, ok)
	assert.Equal(t, "abc.def.ghi", raw)

	req.Header.Set("Authorization", "Bearer")
	_, ok = extractBearerToken(req)
	assert.False(t, ok)
}

package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

func TestStatusForKeepsNotFoundAndForbiddenDistinct(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{fmt.Errorf("menu 3: %w", shared.ErrNotFound), http.StatusNotFound},
		{fmt.Errorf("users.delete: %w", shared.ErrAccessDenied), http.StatusForbidden},
		{shared.ErrTokenExpired, http.StatusUnauthorized},
		{shared.ErrTokenInvalid, http.StatusUnauthorized},
		{shared.ErrInvalidCredentials, http.StatusUnauthorized},
		{shared.ErrConflict, http.StatusConflict},
		{shared.ErrValidation, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		status, _ := StatusFor(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
	}
}

func TestRespondErrorWritesProblem(t *testing.T) {
	rr := httptest.NewRecorder()
	RespondError(rr, fmt.Errorf("role 7: %w", shared.ErrNotFound))

	require.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "application/problem+json", rr.Header().Get("Content-Type"))
	var body ProblemDetail
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "Not Found", body.Title)
	assert.Equal(t, "role 7: not found", body.Detail)
}

func TestDecodeAndValidate(t *testing.T) {
	type payload struct {
		Name string `json:"name" validate:"required,min=3"`
	}

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"ab"}`))
	var p payload
	err := DecodeAndValidate(req, &p)
	require.Error(t, err)
	assert.ErrorIs(t, err, shared.ErrValidation)
	assert.Contains(t, err.Error(), "name failed min")

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"abc","extra":1}`))
	assert.ErrorIs(t, DecodeAndValidate(req, &p), shared.ErrValidation)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"abc"}`))
	require.NoError(t, DecodeAndValidate(req, &p))
	assert.Equal(t, "abc", p.Name)
}

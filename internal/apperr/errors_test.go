package apperr

import (
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusByKind(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{Validation("device_code is required"), http.StatusBadRequest},
		{NotFound("device not found"), http.StatusNotFound},
		{Conflict("device code already exists"), http.StatusConflict},
		{Unauthorized("invalid credentials"), http.StatusUnauthorized},
		{Forbidden("admin role required"), http.StatusForbidden},
		{Internal(sql.ErrConnDone, "insert reading"), http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestErrorsIsMatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("resolve alert 7: %w", NotFound("alert not found"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrValidation))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestPublicMessageHidesInternalDetail(t *testing.T) {
	err := Internal(errors.New("pq: connection refused"), "list devices")
	assert.Equal(t, "internal server error", PublicMessage(err))
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, "temperature is required", PublicMessage(Validation("temperature is required")))
}

func TestInternalUnwrapsCause(t *testing.T) {
	err := Internal(sql.ErrConnDone, "insert reading")
	assert.True(t, errors.Is(err, sql.ErrConnDone))
	assert.True(t, errors.Is(err, ErrInternal))
}

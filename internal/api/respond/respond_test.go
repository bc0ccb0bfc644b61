package respond

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"iot-climate-monitor/internal/apperr"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestErrorMapsKindsToStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, zap.NewNop(), apperr.Conflict("device code already exists"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	env := decode(t, rec)
	assert.False(t, env.Success)
	assert.Equal(t, "device code already exists", env.Message)
}

func TestErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	Error(rec, zap.NewNop(), errors.New("dial tcp 10.0.0.5:5432: connection refused"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	env := decode(t, rec)
	assert.Equal(t, "internal server error", env.Message)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestPageParams(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/alerts?page=2&limit=500", nil)
	page, limit, err := PageParams(req)
	require.NoError(t, err)
	assert.Equal(t, 2, page)
	assert.Equal(t, MaxLimit, limit)

	req = httptest.NewRequest(http.MethodGet, "/api/alerts", nil)
	page, limit, err = PageParams(req)
	require.NoError(t, err)
	assert.Equal(t, DefaultPage, page)
	assert.Equal(t, DefaultLimit, limit)

	req = httptest.NewRequest(http.MethodGet, "/api/alerts?page=zero", nil)
	_, _, err = PageParams(req)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestPageParamsRejectsOffsetOverflow(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/iot/logs?page=9223372036854775807&limit=100", nil)
	_, _, err := PageParams(req)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	req = httptest.NewRequest(http.MethodGet, "/api/iot/logs?page=1000000&limit=100", nil)
	page, limit, err := PageParams(req)
	require.NoError(t, err)
	assert.Equal(t, 99_999_900, (page-1)*limit)
}

func TestNewPagination(t *testing.T) {
	p := NewPagination(1, 10, 21)
	assert.Equal(t, 3, p.TotalPages)
	assert.Equal(t, 0, NewPagination(1, 10, 0).TotalPages)
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/rooms", strings.NewReader("{"))
	var dst map[string]any
	err := DecodeJSON(req, &dst)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

// Package respond writes the JSON envelope used by every API endpoint.
package respond

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"iot-climate-monitor/internal/apperr"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
	MaxPage      = 1_000_000
)

// Envelope is the response body shape.
type Envelope struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message,omitempty"`
	Data       any         `json:"data,omitempty"`
	Pagination *Pagination `json:"pagination,omitempty"`
}

// Pagination describes a paged listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// NewPagination computes page counts.
func NewPagination(page, limit, total int) *Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return &Pagination{Page: page, Limit: limit, Total: total, TotalPages: pages}
}

// JSON writes a success envelope with data.
func JSON(w http.ResponseWriter, status int, data any) {
	write(w, status, Envelope{Success: true, Data: data})
}

// Message writes a success envelope with a message and optional data.
func Message(w http.ResponseWriter, status int, message string, data any) {
	write(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Page writes a paginated success envelope.
func Page(w http.ResponseWriter, data any, pagination *Pagination) {
	write(w, http.StatusOK, Envelope{Success: true, Data: data, Pagination: pagination})
}

// Error maps err onto the taxonomy and writes a failure envelope.
// Internal errors are logged and replaced with a generic message.
func Error(w http.ResponseWriter, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError && logger != nil {
		logger.Error("request failed", zap.Error(err))
	}
	write(w, status, Envelope{Success: false, Message: apperr.PublicMessage(err)})
}

func write(w http.ResponseWriter, status int, body Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// DecodeJSON reads a JSON body into dst. Malformed bodies are validation errors.
func DecodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return apperr.Validation("request body required")
	}
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return apperr.Validation("request body required")
		}
		return apperr.Validation("invalid json body")
	}
	return nil
}

// PageParams parses page and limit with defaults and an upper bound.
func PageParams(r *http.Request) (page, limit int, err error) {
	page, err = positiveQueryInt(r, "page", DefaultPage)
	if err != nil {
		return 0, 0, err
	}
	if page > MaxPage {
		return 0, 0, apperr.Validationf("page must be at most %d", MaxPage)
	}
	limit, err = positiveQueryInt(r, "limit", DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	return page, limit, nil
}

// OptionalInt64Query parses an optional int64 query parameter.
func OptionalInt64Query(r *http.Request, key string) (*int64, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return nil, apperr.Validationf("%s must be a positive integer", key)
	}
	return &parsed, nil
}

// PathID parses the {id} route variable.
func PathID(r *http.Request) (int64, error) {
	value := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("id must be a positive integer")
	}
	return id, nil
}

func positiveQueryInt(r *http.Request, key string, fallback int) (int, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return fallback, nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed <= 0 {
		return 0, apperr.Validationf("%s must be a positive integer", key)
	}
	return parsed, nil
}

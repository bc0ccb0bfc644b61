package http

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	alertapp "iot-climate-monitor/internal/alerts/application"
	alerts "iot-climate-monitor/internal/alerts/domain"
	"iot-climate-monitor/internal/api/respond"
	"iot-climate-monitor/internal/apperr"
)

// Handler provides alert endpoints.
type Handler struct {
	service *alertapp.Service
	stream  *StreamHandler
	logger  *zap.Logger
}

// NewHandler constructs a handler. stream may be nil.
func NewHandler(service *alertapp.Service, stream *StreamHandler, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("alerts handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, stream: stream, logger: logger}, nil
}

// Mount registers routes under /api/alerts.
func (h *Handler) Mount(r *mux.Router) {
	r.HandleFunc("/api/alerts", h.list).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts/recent", h.recent).Methods(http.MethodGet)
	if h.stream != nil {
		r.Handle("/api/alerts/stream", h.stream).Methods(http.MethodGet)
	}
	r.HandleFunc("/api/alerts/{id:[0-9]+}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/alerts/{id:[0-9]+}", h.update).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/api/alerts/{id:[0-9]+}", h.delete).Methods(http.MethodDelete)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, limit, err := respond.PageParams(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	roomID, err := respond.OptionalInt64Query(r, "room_id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	filter := alerts.Filter{
		RoomID: roomID,
		Limit:  limit,
		Offset: (page - 1) * limit,
	}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := alerts.ParseStatus(raw)
		if !ok {
			respond.Error(w, h.logger, apperr.Validation("status must be ACTIVE or RESOLVED"))
			return
		}
		filter.Status = status
	}
	list, total, err := h.service.List(r.Context(), filter)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Page(w, list, respond.NewPagination(page, limit, total))
}

func (h *Handler) recent(w http.ResponseWriter, r *http.Request) {
	limit := 5
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			respond.Error(w, h.logger, apperr.Validation("limit must be a positive integer"))
			return
		}
		limit = min(parsed, respond.MaxLimit)
	}
	list, err := h.service.Recent(r.Context(), limit)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	alert, err := h.service.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, alert)
}

type statusRequest struct {
	Status string `json:"alert_status"`
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	var req statusRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	alert, err := h.service.UpdateStatus(r.Context(), id, req.Status)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusOK, "alert resolved", alert)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusOK, "alert deleted", nil)
}

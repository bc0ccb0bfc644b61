package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	alerts "iot-climate-monitor/internal/alerts/domain"
	analyticsapp "iot-climate-monitor/internal/analytics/application"
	"iot-climate-monitor/internal/analytics/export"
	"iot-climate-monitor/internal/api/respond"
	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/observability/metrics"
)

// AlertLister lists alerts for the PDF export.
type AlertLister interface {
	List(ctx context.Context, filter alerts.Filter) ([]alerts.Alert, int, error)
}

// Handler serves dashboard and export endpoints.
type Handler struct {
	dashboard *analyticsapp.DashboardService
	stats     *analyticsapp.StatsService
	alerts    AlertLister
	now       func() time.Time
	logger    *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(dashboard *analyticsapp.DashboardService, stats *analyticsapp.StatsService, alertLister AlertLister, logger *zap.Logger) (*Handler, error) {
	if dashboard == nil || stats == nil || alertLister == nil {
		return nil, errors.New("analytics handler: nil dependency")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{dashboard: dashboard, stats: stats, alerts: alertLister, now: time.Now, logger: logger}, nil
}

// Mount registers dashboard and export routes.
func (h *Handler) Mount(r *mux.Router) {
	r.HandleFunc("/api/dashboard", h.overview).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/latest", h.latest).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/stats", h.statsHandler).Methods(http.MethodGet)
	r.HandleFunc("/api/dashboard/chart", h.chart).Methods(http.MethodGet)

	r.HandleFunc("/api/exports/readings.csv", h.exportReadings("csv")).Methods(http.MethodGet)
	r.HandleFunc("/api/exports/readings.xlsx", h.exportReadings("xlsx")).Methods(http.MethodGet)
	r.HandleFunc("/api/exports/alerts.pdf", h.exportAlerts).Methods(http.MethodGet)
}

func (h *Handler) overview(w http.ResponseWriter, r *http.Request) {
	overview, err := h.dashboard.Overview(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, overview)
}

func (h *Handler) latest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.dashboard.Latest(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, latest)
}

func (h *Handler) statsHandler(w http.ResponseWriter, r *http.Request) {
	query, err := statsQuery(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	summary, err := h.stats.Stats(r.Context(), query)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, summary)
}

func (h *Handler) chart(w http.ResponseWriter, r *http.Request) {
	query, err := statsQuery(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	series, err := h.stats.Chart(r.Context(), query)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, series)
}

func (h *Handler) exportReadings(format string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query, err := statsQuery(r)
		if err != nil {
			respond.Error(w, h.logger, err)
			return
		}
		readings, err := h.stats.Window(r.Context(), query)
		if err != nil {
			metrics.IncExport(format, metrics.ResultError)
			respond.Error(w, h.logger, err)
			return
		}
		var (
			buf         bytes.Buffer
			contentType string
		)
		switch format {
		case "xlsx":
			contentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
			err = export.ReadingsXLSX(&buf, readings)
		default:
			contentType = "text/csv; charset=utf-8"
			err = export.ReadingsCSV(&buf, readings)
		}
		if err != nil {
			metrics.IncExport(format, metrics.ResultError)
			respond.Error(w, h.logger, apperr.Internal(err, "export failed"))
			return
		}
		metrics.IncExport(format, metrics.ResultSuccess)
		h.attachment(w, contentType, "readings", format, buf.Bytes())
	}
}

func (h *Handler) exportAlerts(w http.ResponseWriter, r *http.Request) {
	roomID, err := respond.OptionalInt64Query(r, "room_id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	filter := alerts.Filter{RoomID: roomID}
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		status, ok := alerts.ParseStatus(raw)
		if !ok {
			respond.Error(w, h.logger, apperr.Validation("status must be ACTIVE or RESOLVED"))
			return
		}
		filter.Status = status
	}
	list, _, err := h.alerts.List(r.Context(), filter)
	if err != nil {
		metrics.IncExport("pdf", metrics.ResultError)
		respond.Error(w, h.logger, err)
		return
	}
	var buf bytes.Buffer
	if err := export.AlertsPDF(&buf, list, h.now()); err != nil {
		metrics.IncExport("pdf", metrics.ResultError)
		respond.Error(w, h.logger, apperr.Internal(err, "export failed"))
		return
	}
	metrics.IncExport("pdf", metrics.ResultSuccess)
	h.attachment(w, "application/pdf", "alerts", "pdf", buf.Bytes())
}

func (h *Handler) attachment(w http.ResponseWriter, contentType, name, ext string, body []byte) {
	filename := fmt.Sprintf("%s-%s.%s", name, h.now().UTC().Format("20060102-150405"), ext)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func statsQuery(r *http.Request) (analyticsapp.StatsQuery, error) {
	deviceID, err := respond.OptionalInt64Query(r, "device_id")
	if err != nil {
		return analyticsapp.StatsQuery{}, err
	}
	query := analyticsapp.StatsQuery{DeviceID: deviceID}
	if raw := strings.TrimSpace(r.URL.Query().Get("hours")); raw != "" {
		hours, err := strconv.Atoi(raw)
		if err != nil || hours <= 0 {
			return analyticsapp.StatsQuery{}, apperr.Validation("hours must be a positive integer")
		}
		query.Hours = hours
	}
	return query, nil
}

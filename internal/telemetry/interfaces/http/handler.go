package http

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	alerts "iot-climate-monitor/internal/alerts/domain"
	"iot-climate-monitor/internal/api/respond"
	"iot-climate-monitor/internal/apperr"
	telemetryapp "iot-climate-monitor/internal/telemetry/application"
	telemetry "iot-climate-monitor/internal/telemetry/domain"
	"iot-climate-monitor/internal/telemetry/interfaces/payload"
)

const maxIngestBody = 64 << 10

// Handler provides reading ingest and query endpoints.
type Handler struct {
	ingest *telemetryapp.IngestService
	query  *telemetryapp.QueryService
	logger *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(ingest *telemetryapp.IngestService, query *telemetryapp.QueryService, logger *zap.Logger) (*Handler, error) {
	if ingest == nil {
		return nil, errors.New("telemetry handler: nil ingest service")
	}
	if query == nil {
		return nil, errors.New("telemetry handler: nil query service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ingest: ingest, query: query, logger: logger}, nil
}

// Mount registers routes. ingestWrap guards the device endpoint.
func (h *Handler) Mount(r *mux.Router, ingestWrap func(http.Handler) http.Handler) {
	var ingest http.Handler = http.HandlerFunc(h.handleIngest)
	if ingestWrap != nil {
		ingest = ingestWrap(ingest)
	}
	r.Handle("/api/iot/data", ingest).Methods(http.MethodPost)
	r.HandleFunc("/api/iot/latest", h.handleLatest).Methods(http.MethodGet)
	r.HandleFunc("/api/iot/logs", h.handleLogs).Methods(http.MethodGet)
	r.HandleFunc("/api/iot/logs", h.handlePrune).Methods(http.MethodDelete)
}

type ingestResponse struct {
	LogID       int64         `json:"log_id"`
	DeviceID    int64         `json:"device_id"`
	DeviceCode  string        `json:"device_code"`
	Temperature float64       `json:"temperature"`
	Humidity    float64       `json:"humidity"`
	Light       *float64      `json:"light"`
	RecordedAt  time.Time     `json:"recorded_at"`
	Alert       *alerts.Alert `json:"alert"`
}

func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		respond.Error(w, h.logger, apperr.Validation("read body error"))
		return
	}
	defer r.Body.Close()

	decoded, err := payload.Decode(body)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	result, err := h.ingest.Ingest(r.Context(), telemetryapp.IngestCommand{
		DeviceCode:  decoded.DeviceCode,
		Temperature: decoded.Temperature,
		Humidity:    decoded.Humidity,
		Light:       decoded.Light,
		Transport:   "http",
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			h.logger.Debug("ingest rejected", zap.String("device_code", decoded.DeviceCode), zap.Error(err))
		}
		respond.Error(w, h.logger, err)
		return
	}

	respond.Message(w, http.StatusCreated, "reading stored", ingestResponse{
		LogID:       result.Reading.ID,
		DeviceID:    result.Reading.DeviceID,
		DeviceCode:  result.Device.Code,
		Temperature: result.Reading.Temperature,
		Humidity:    result.Reading.Humidity,
		Light:       result.Reading.Light,
		RecordedAt:  result.Reading.RecordedAt,
		Alert:       result.Alert,
	})
}

func (h *Handler) handleLatest(w http.ResponseWriter, r *http.Request) {
	latest, err := h.query.Latest(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, latest)
}

func (h *Handler) handleLogs(w http.ResponseWriter, r *http.Request) {
	page, limit, err := respond.PageParams(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	deviceID, err := respond.OptionalInt64Query(r, "device_id")
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	from, err := parseDateQuery(r, "start_date", false)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	to, err := parseDateQuery(r, "end_date", true)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}

	readings, total, err := h.query.Logs(r.Context(), telemetry.ReadingFilter{
		DeviceID: deviceID,
		From:     from,
		To:       to,
		Limit:    limit,
		Offset:   (page - 1) * limit,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Page(w, readings, respond.NewPagination(page, limit, total))
}

func (h *Handler) handlePrune(w http.ResponseWriter, r *http.Request) {
	days := telemetryapp.DefaultRetentionDays
	if value := strings.TrimSpace(r.URL.Query().Get("days")); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 1 {
			respond.Error(w, h.logger, apperr.Validation("days must be a positive integer"))
			return
		}
		days = parsed
	}
	deleted, err := h.query.Prune(r.Context(), days)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	h.logger.Info("readings pruned", zap.Int("days", days), zap.Int64("deleted", deleted))
	respond.Message(w, http.StatusOK, "old readings deleted", map[string]int64{"deleted": deleted})
}

// parseDateQuery accepts RFC3339 or YYYY-MM-DD. A bare end date covers the whole day.
func parseDateQuery(r *http.Request, key string, endOfDay bool) (time.Time, error) {
	value := strings.TrimSpace(r.URL.Query().Get(key))
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed.UTC(), nil
	}
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return time.Time{}, apperr.Validationf("%s must be RFC3339 or YYYY-MM-DD", key)
	}
	if endOfDay {
		parsed = parsed.Add(24*time.Hour - time.Nanosecond)
	}
	return parsed.UTC(), nil
}

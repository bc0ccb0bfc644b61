package apihttp

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	alerthttp "iot-climate-monitor/internal/alerts/interfaces/http"
	analyticshttp "iot-climate-monitor/internal/analytics/interfaces/http"
	"iot-climate-monitor/internal/api/respond"
	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/auth"
	mdhttp "iot-climate-monitor/internal/masterdata/interfaces/http"
	telemetryhttp "iot-climate-monitor/internal/telemetry/interfaces/http"
	userhttp "iot-climate-monitor/internal/users/interfaces/http"
)

// Version is reported by /api/health.
const Version = "1.0.0"

// Modules are the feature handlers mounted by the router. Nil modules are skipped.
type Modules struct {
	Users      *userhttp.Handler
	MasterData *mdhttp.Handler
	Telemetry  *telemetryhttp.Handler
	Alerts     *alerthttp.Handler
	Analytics  *analyticshttp.Handler
	Live       http.Handler
}

// Options configure cross-cutting middleware.
type Options struct {
	JWTSecret     []byte
	IngestSecret  []byte
	IngestMaxSkew time.Duration
	CORSOrigins   []string
	WebDir        string
	// Ping reports storage health; nil means always healthy.
	Ping   func(ctx context.Context) error
	Logger *zap.Logger
}

// Paths reachable without a token.
var publicPaths = []string{
	"/healthz",
	"/metrics",
	"/api",
	"/api/health",
	"/api/auth/login",
	"/api/iot/data",
}

// NewRouter assembles the API: routes, auth, CORS, access log and panic recovery.
func NewRouter(modules Modules, opts Options) (http.Handler, error) {
	if len(opts.JWTSecret) == 0 {
		return nil, errors.New("router: empty jwt secret")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)
	r.HandleFunc("/api/health", healthHandler(opts.Ping, logger)).Methods(http.MethodGet)
	r.HandleFunc("/api", indexHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	if modules.Users != nil {
		modules.Users.Mount(r)
	}
	if modules.MasterData != nil {
		modules.MasterData.Mount(r)
	}
	if modules.Telemetry != nil {
		ingestAuth := auth.NewIngestAuthMiddleware(opts.IngestSecret, opts.IngestMaxSkew)
		modules.Telemetry.Mount(r, ingestAuth.Wrap)
	}
	if modules.Alerts != nil {
		modules.Alerts.Mount(r)
	}
	if modules.Analytics != nil {
		modules.Analytics.Mount(r)
	}
	if modules.Live != nil {
		r.Handle("/api/live/ws", modules.Live).Methods(http.MethodGet)
	}

	r.PathPrefix("/api/").Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		respond.Error(w, logger, apperr.NotFound("endpoint not found"))
	}))
	if opts.WebDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(opts.WebDir)))
	}

	policy := auth.NewDefaultPolicy(publicPaths, nil)
	authMiddleware := auth.NewMiddleware(opts.JWTSecret, policy, logger)

	var handler http.Handler = authMiddleware.Wrap(r)
	handler = accessLog(handler, logger)
	handler = handlers.CORS(
		handlers.AllowedOrigins(corsOrigins(opts.CORSOrigins)),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Authorization", "Content-Type", "X-Ingest-Timestamp", "X-Ingest-Signature", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)(handler)
	handler = handlers.RecoveryHandler(
		handlers.RecoveryLogger(zapRecoveryLogger{logger: logger}),
	)(handler)
	return handler, nil
}

func corsOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"*"}
	}
	return origins
}

type healthResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Database  string    `json:"database"`
}

func healthHandler(ping func(ctx context.Context) error, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				logger.Warn("health check failed", zap.Error(err))
				status = "unavailable"
			}
		}
		code := http.StatusOK
		if status != "ok" {
			code = http.StatusServiceUnavailable
		}
		respond.Message(w, code, "IoT Monitoring API is running", healthResponse{
			Timestamp: time.Now().UTC(),
			Version:   Version,
			Database:  status,
		})
	}
}

var endpointIndex = map[string][]string{
	"auth": {
		"POST /api/auth/login",
		"GET /api/auth/profile",
		"POST /api/auth/register",
		"GET /api/auth/users",
	},
	"iot": {
		"POST /api/iot/data",
		"GET /api/iot/latest",
		"GET /api/iot/logs",
		"DELETE /api/iot/logs",
	},
	"dashboard": {
		"GET /api/dashboard",
		"GET /api/dashboard/latest",
		"GET /api/dashboard/stats",
		"GET /api/dashboard/chart",
	},
	"alerts": {
		"GET /api/alerts",
		"GET /api/alerts/recent",
		"GET /api/alerts/stream",
		"PUT /api/alerts/{id}",
		"DELETE /api/alerts/{id}",
	},
	"devices": {
		"GET /api/devices",
		"GET /api/devices/{id}",
		"POST /api/devices",
		"PUT /api/devices/{id}",
		"DELETE /api/devices/{id}",
	},
	"rooms": {
		"GET /api/rooms",
		"GET /api/rooms/{id}",
		"POST /api/rooms",
		"PUT /api/rooms/{id}",
		"DELETE /api/rooms/{id}",
	},
	"exports": {
		"GET /api/exports/readings.csv",
		"GET /api/exports/readings.xlsx",
		"GET /api/exports/alerts.pdf",
	},
	"live": {
		"GET /api/live/ws",
	},
}

func indexHandler(w http.ResponseWriter, _ *http.Request) {
	respond.Message(w, http.StatusOK, "IoT Temperature & Humidity Monitoring System API", map[string]any{
		"version":   Version,
		"endpoints": endpointIndex,
	})
}

type zapRecoveryLogger struct {
	logger *zap.Logger
}

func (l zapRecoveryLogger) Println(v ...any) {
	l.logger.Error("panic recovered", zap.Any("panic", v))
}

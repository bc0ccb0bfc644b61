package http

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"iot-climate-monitor/internal/api/respond"
	"iot-climate-monitor/internal/apperr"
	"iot-climate-monitor/internal/auth"
	userapp "iot-climate-monitor/internal/users/application"
)

// Handler provides authentication and user endpoints.
type Handler struct {
	service *userapp.Service
	logger  *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(service *userapp.Service, logger *zap.Logger) (*Handler, error) {
	if service == nil {
		return nil, errors.New("users handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}, nil
}

// Mount registers routes under /api/auth.
func (h *Handler) Mount(r *mux.Router) {
	r.HandleFunc("/api/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/api/auth/profile", h.profile).Methods(http.MethodGet)
	r.HandleFunc("/api/auth/users", h.list).Methods(http.MethodGet)
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type registerRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	session, err := h.service.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusOK, "login successful", session)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	user, err := h.service.Register(r.Context(), userapp.RegisterCommand{
		Username: req.Username,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusCreated, "user registered", user)
}

func (h *Handler) profile(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		respond.Error(w, h.logger, apperr.Unauthorized("access token required"))
		return
	}
	user, err := h.service.Profile(r.Context(), identity.UserID)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, user)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, list)
}

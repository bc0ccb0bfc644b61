package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"iot-climate-monitor/internal/api/respond"
	"iot-climate-monitor/internal/apperr"
	mdapp "iot-climate-monitor/internal/masterdata/application"
	masterdata "iot-climate-monitor/internal/masterdata/domain"
)

// Handler provides room and device endpoints.
type Handler struct {
	rooms   *mdapp.RoomService
	devices *mdapp.DeviceService
	logger  *zap.Logger
}

// NewHandler constructs a handler.
func NewHandler(rooms *mdapp.RoomService, devices *mdapp.DeviceService, logger *zap.Logger) (*Handler, error) {
	if rooms == nil || devices == nil {
		return nil, errors.New("masterdata handler: nil service")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{rooms: rooms, devices: devices, logger: logger}, nil
}

// Mount registers routes under /api.
func (h *Handler) Mount(r *mux.Router) {
	r.HandleFunc("/api/rooms", h.listRooms).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms", h.createRoom).Methods(http.MethodPost)
	r.HandleFunc("/api/rooms/{id}", h.getRoom).Methods(http.MethodGet)
	r.HandleFunc("/api/rooms/{id}", h.updateRoom).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/api/rooms/{id}", h.deleteRoom).Methods(http.MethodDelete)

	r.HandleFunc("/api/devices", h.listDevices).Methods(http.MethodGet)
	r.HandleFunc("/api/devices", h.createDevice).Methods(http.MethodPost)
	r.HandleFunc("/api/devices/{id}", h.getDevice).Methods(http.MethodGet)
	r.HandleFunc("/api/devices/{id}", h.updateDevice).Methods(http.MethodPut, http.MethodPatch)
	r.HandleFunc("/api/devices/{id}", h.deleteDevice).Methods(http.MethodDelete)
}

type roomRequest struct {
	Name        *string `json:"room_name"`
	Location    *string `json:"location"`
	Description *string `json:"description"`
}

func (h *Handler) listRooms(w http.ResponseWriter, r *http.Request) {
	rooms, err := h.rooms.List(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, rooms)
}

func (h *Handler) getRoom(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	room, err := h.rooms.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, room)
}

func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	var req roomRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	room := masterdata.Room{}
	masterdata.RoomPatch{Name: req.Name, Location: req.Location, Description: req.Description}.Apply(&room)
	created, err := h.rooms.Create(r.Context(), room)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusCreated, "room created", created)
}

func (h *Handler) updateRoom(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	var req roomRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	updated, err := h.rooms.Update(r.Context(), id, masterdata.RoomPatch{
		Name:        req.Name,
		Location:    req.Location,
		Description: req.Description,
	})
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusOK, "room updated", updated)
}

func (h *Handler) deleteRoom(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if err := h.rooms.Delete(r.Context(), id); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusOK, "room deleted", nil)
}

type deviceRequest struct {
	Code      *string         `json:"device_code"`
	Name      *string         `json:"device_name"`
	IPAddress *string         `json:"ip_address"`
	RoomID    json.RawMessage `json:"room_id"`
}

func (req deviceRequest) patch() (masterdata.DevicePatch, error) {
	patch := masterdata.DevicePatch{Code: req.Code, Name: req.Name, IPAddress: req.IPAddress}
	if len(req.RoomID) == 0 {
		return patch, nil
	}
	patch.RoomSet = true
	if bytes.Equal(bytes.TrimSpace(req.RoomID), []byte("null")) {
		return patch, nil
	}
	var roomID int64
	if err := json.Unmarshal(req.RoomID, &roomID); err != nil || roomID <= 0 {
		return patch, apperr.Validation("room_id must be a positive integer or null")
	}
	patch.RoomID = &roomID
	return patch, nil
}

func (h *Handler) listDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := h.devices.List(r.Context())
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, devices)
}

func (h *Handler) getDevice(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	device, err := h.devices.Get(r.Context(), id)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.JSON(w, http.StatusOK, device)
}

func (h *Handler) createDevice(w http.ResponseWriter, r *http.Request) {
	var req deviceRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	device := masterdata.Device{}
	patch.Apply(&device)
	created, err := h.devices.Create(r.Context(), device)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusCreated, "device created", created)
}

func (h *Handler) updateDevice(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	var req deviceRequest
	if err := respond.DecodeJSON(r, &req); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	patch, err := req.patch()
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	updated, err := h.devices.Update(r.Context(), id, patch)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusOK, "device updated", updated)
}

func (h *Handler) deleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := respond.PathID(r)
	if err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	if err := h.devices.Delete(r.Context(), id); err != nil {
		respond.Error(w, h.logger, err)
		return
	}
	respond.Message(w, http.StatusOK, "device deleted", nil)
}

package handlers

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/contactdesk/server/internal/auth"
	"github.com/contactdesk/server/internal/middleware"
	"github.com/contactdesk/server/internal/model"
	"github.com/contactdesk/server/internal/validate"
)

// Device request types
const (
	typeNewDevice      = "new_device"
	typeNewCode        = "new_code"
	typeLogin          = "login"
	typeRefresh        = "refresh"
	typeUpdatePresence = "update_presence"
)

// DeviceFlow is the device pairing and session service
type DeviceFlow interface {
	NewDevice(ctx context.Context, userID uuid.UUID, name string) (model.Device, string, error)
	NewCode(ctx context.Context, userID, deviceID uuid.UUID) (model.Device, string, error)
	Login(ctx context.Context, code string, status model.Status, availability model.Availability) (auth.Session, error)
	Refresh(ctx context.Context, refreshToken string, status model.Status, availability model.Availability) (auth.Session, error)
	UpdatePresence(ctx context.Context, refreshToken string, status model.Status, availability model.Availability) error
}

// DeviceHandler handles POST /devices
type DeviceHandler struct {
	flow DeviceFlow
	log  *slog.Logger
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(flow DeviceFlow) *DeviceHandler {
	return &DeviceHandler{
		flow: flow,
		log:  slog.Default().With("component", "devices"),
	}
}

// deviceRequest is the union of all /devices request bodies, discriminated by Type
type deviceRequest struct {
	Type         string  `json:"type"`
	Name         *string `json:"name"`
	DeviceID     *string `json:"device_id"`
	Code         *string `json:"code"`
	RefreshToken *string `json:"refreshToken"`
	Status       *string `json:"status"`
	Availability *string `json:"availability"`
}

type deviceResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type newDeviceResponse struct {
	Device     deviceResponse `json:"device"`
	DeviceCode string         `json:"deviceCode"`
}

// HandleDevices dispatches on the request type
func (h *DeviceHandler) HandleDevices(w http.ResponseWriter, r *http.Request) {
	raw, err := readBody(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req deviceRequest
	if err := validate.DecodeJSON(bytes.NewReader(raw), &req); err != nil {
		h.respondInvalid(w, err)
		return
	}
	v := validate.New()
	v.Required("type", req.Type)
	if err := v.Err(); err != nil {
		h.respondInvalid(w, err)
		return
	}

	switch req.Type {
	case typeNewDevice:
		h.handleNewDevice(w, r, req)
	case typeNewCode:
		h.handleNewCode(w, r, req)
	case typeLogin:
		h.handleLogin(w, r, req)
	case typeRefresh:
		h.handleRefresh(w, r, req)
	case typeUpdatePresence:
		h.handleUpdatePresence(w, r, req)
	default:
		respondWithError(w, http.StatusNotImplemented, "Type not implemented")
	}
}

func (h *DeviceHandler) handleNewDevice(w http.ResponseWriter, r *http.Request, req deviceRequest) {
	v := validate.New()
	required(v, "name", req.Name)
	if err := v.Err(); err != nil {
		h.respondInvalid(w, err)
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Error getting user")
		return
	}

	device, code, err := h.flow.NewDevice(r.Context(), userID, *req.Name)
	if err != nil {
		h.log.Error("error creating device", "user_id", userID, "err", err)
		respondWithError(w, http.StatusInternalServerError, "Error creating device")
		return
	}
	respondJSON(w, http.StatusOK, newDeviceResponse{
		Device:     deviceResponse{ID: device.ID.String(), Name: device.DeviceName},
		DeviceCode: code,
	})
}

func (h *DeviceHandler) handleNewCode(w http.ResponseWriter, r *http.Request, req deviceRequest) {
	v := validate.New()
	required(v, "device_id", req.DeviceID)
	var deviceID uuid.UUID
	if req.DeviceID != nil {
		var err error
		if deviceID, err = uuid.Parse(*req.DeviceID); err != nil {
			v.Add("device_id", "invalid_string", "Invalid uuid")
		}
	}
	if err := v.Err(); err != nil {
		h.respondInvalid(w, err)
		return
	}

	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Error getting user")
		return
	}

	device, code, err := h.flow.NewCode(r.Context(), userID, deviceID)
	if err != nil {
		if errors.Is(err, auth.ErrUnauthorizedDevice) {
			respondWithError(w, http.StatusNotFound, "Error getting device")
			return
		}
		h.log.Error("error creating device code", "device_id", deviceID, "err", err)
		respondWithError(w, http.StatusInternalServerError, "Error creating device code")
		return
	}
	respondJSON(w, http.StatusOK, newDeviceResponse{
		Device:     deviceResponse{ID: device.ID.String(), Name: device.DeviceName},
		DeviceCode: code,
	})
}

func (h *DeviceHandler) handleLogin(w http.ResponseWriter, r *http.Request, req deviceRequest) {
	v := validate.New()
	required(v, "code", req.Code)
	status, availability := presenceFields(v, req, true)
	if err := v.Err(); err != nil {
		h.respondInvalid(w, err)
		return
	}

	session, err := h.flow.Login(r.Context(), *req.Code, status, availability)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidDeviceCode) {
			respondWithError(w, http.StatusForbidden, "Invalid device code")
			return
		}
		h.log.Error("error logging in with device code", "err", err)
		respondWithError(w, http.StatusInternalServerError, "Internal server error: device code login")
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *DeviceHandler) handleRefresh(w http.ResponseWriter, r *http.Request, req deviceRequest) {
	v := validate.New()
	required(v, "refreshToken", req.RefreshToken)
	status, availability := presenceFields(v, req, true)
	if err := v.Err(); err != nil {
		h.respondInvalid(w, err)
		return
	}

	session, err := h.flow.Refresh(r.Context(), *req.RefreshToken, status, availability)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidRefreshToken) {
			respondWithError(w, http.StatusForbidden, "Invalid refresh token")
			return
		}
		h.log.Error("error refreshing device session", "err", err)
		respondWithError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (h *DeviceHandler) handleUpdatePresence(w http.ResponseWriter, r *http.Request, req deviceRequest) {
	v := validate.New()
	required(v, "refreshToken", req.RefreshToken)
	status, availability := presenceFields(v, req, false)
	if err := v.Err(); err != nil {
		h.respondInvalid(w, err)
		return
	}

	if err := h.flow.UpdatePresence(r.Context(), *req.RefreshToken, status, availability); err != nil {
		respondWithError(w, http.StatusForbidden, "Invalid refresh token")
		return
	}
	respondText(w, http.StatusOK, "OK")
}

func (h *DeviceHandler) respondInvalid(w http.ResponseWriter, err error) {
	issues, ok := validate.Issues(err)
	if !ok {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.log.Warn("invalid devices request", "err", err)
	respondJSON(w, http.StatusBadRequest, map[string]interface{}{"error": issues})
}

// presenceFields validates status and availability. With defaults, missing values become
// AVAILABLE and ALL; without, they are required.
func presenceFields(v *validate.Checker, req deviceRequest, defaults bool) (model.Status, model.Availability) {
	status, availability := model.StatusAvailable, model.AvailabilityAll
	if !defaults {
		required(v, "status", req.Status)
		required(v, "availability", req.Availability)
	}
	if req.Status != nil {
		status = model.Status(*req.Status)
		v.Required("status", *req.Status)
		v.OneOf("status", *req.Status, string(model.StatusAvailable), string(model.StatusOffline),
			string(model.StatusBusy), string(model.StatusDoNotDisturb))
	}
	if req.Availability != nil {
		availability = model.Availability(*req.Availability)
		v.Required("availability", *req.Availability)
		v.OneOf("availability", *req.Availability, string(model.AvailabilityVoice),
			string(model.AvailabilityChat), string(model.AvailabilityAll))
	}
	return status, availability
}

func required(v *validate.Checker, path string, value *string) {
	if value == nil {
		v.Add(path, "invalid_type", "Required")
	}
}

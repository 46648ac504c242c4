package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/wrenchway/backend/internal/db"
	"github.com/wrenchway/backend/internal/models"
	"github.com/wrenchway/backend/internal/service"
)

type Handler struct {
	Store        *db.Store
	Requests     *service.RequestService
	Registry     *service.RegistryService
	Assigner     *service.AssignmentService
	Appointments *service.AppointmentService
	Syncer       *service.SyncService
	Tracker      *service.TrackingService
	Validator    *validator.Validate
	Logger       zerolog.Logger
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type CreateRequestBody struct {
	CustomerID string   `json:"customer_id" validate:"required"`
	Address    string   `json:"address"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
}

// @Summary Create roadside request
// @Tags requests
// @Accept json
// @Produce json
// @Success 201 {object} models.Request
// @Failure 400 {object} map[string]any
// @Router /api/requests [post]
func (h *Handler) CreateRequest(c *gin.Context) {
	var body CreateRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	if (body.Lat == nil) != (body.Lng == nil) {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "lat and lng must be provided together", nil)
		return
	}

	r, err := h.Requests.Create(c.Request.Context(), body.CustomerID, body.Address, body.Lat, body.Lng)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h *Handler) GetRequest(c *gin.Context) {
	r, err := h.Requests.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h *Handler) ListRequests(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.Store.ListRequests(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list requests", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

type TransitionBody struct {
	Status string `json:"status" validate:"required,oneof=assigned in_progress completed cancelled"`
}

// @Summary Transition request status
// @Tags requests
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.Request
// @Failure 409 {object} map[string]any
// @Router /api/requests/{id}/status [post]
func (h *Handler) TransitionRequest(c *gin.Context) {
	var body TransitionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	r, err := h.Requests.Transition(c.Request.Context(), c.Param("id"), models.RequestStatus(body.Status))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type PushLocationBody struct {
	Role       string    `json:"role" validate:"required,oneof=customer technician"`
	Lat        float64   `json:"lat" validate:"min=-90,max=90"`
	Lng        float64   `json:"lng" validate:"min=-180,max=180"`
	ObservedAt time.Time `json:"observed_at" validate:"required"`
}

// @Summary Push live location
// @Description Record the last known position for one role of a request. Stale pushes are dropped, not rejected.
// @Tags tracking
// @Accept json
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} map[string]any
// @Router /api/requests/{id}/location [post]
func (h *Handler) PushLocation(c *gin.Context) {
	var body PushLocationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	accepted, err := h.Tracker.Push(c.Request.Context(), c.Param("id"), models.Role(body.Role), models.Location{
		Lat:        body.Lat,
		Lng:        body.Lng,
		ObservedAt: body.ObservedAt.UTC(),
	})
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"accepted": accepted})
}

// @Summary Tracking view
// @Tags tracking
// @Produce json
// @Param id path string true "Request ID"
// @Success 200 {object} models.TrackingView
// @Router /api/requests/{id}/tracking [get]
func (h *Handler) TrackingView(c *gin.Context) {
	view, err := h.Tracker.View(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	items, err := h.Store.ListAppointments(c.Request.Context(), c.Query("status"), limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list appointments", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

func (h *Handler) GetAppointment(c *gin.Context) {
	a, err := h.Store.GetAppointment(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Appointment not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to get appointment", err.Error())
		return
	}
	c.JSON(http.StatusOK, a)
}

type TransitionAppointmentBody struct {
	Status string `json:"status" validate:"required,oneof=scheduled inprocess finished"`
}

// @Summary Transition appointment status
// @Tags appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} models.Appointment
// @Failure 409 {object} map[string]any
// @Router /api/appointments/{id}/status [post]
func (h *Handler) TransitionAppointment(c *gin.Context) {
	var body TransitionAppointmentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	a, err := h.Appointments.Transition(c.Request.Context(), c.Param("id"), models.AppointmentStatus(body.Status))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) ListTechnicians(c *gin.Context) {
	items, err := h.Registry.List(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// @Summary Available technicians
// @Description Technicians with no assigned task intersecting the window.
// @Tags technicians
// @Produce json
// @Param from query string true "Window start (RFC3339)"
// @Param to query string true "Window end (RFC3339)"
// @Success 200 {object} map[string]any
// @Router /api/technicians/available [get]
func (h *Handler) ListAvailableTechnicians(c *gin.Context) {
	from, to, err := parseWindow(c.Query("from"), c.Query("to"))
	if err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error(), nil)
		return
	}
	items, err := h.Registry.ListAvailable(c.Request.Context(), from, to)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list technicians", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "from": from, "to": to})
}

type RegisterTechnicianBody struct {
	Name  string `json:"name" validate:"required"`
	Phone string `json:"phone"`
}

func (h *Handler) RegisterTechnician(c *gin.Context) {
	var body RegisterTechnicianBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	t, err := h.Registry.Register(c.Request.Context(), body.Name, body.Phone)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to register technician", err.Error())
		return
	}
	c.JSON(http.StatusCreated, t)
}

type AssignBody struct {
	TechnicianID string `json:"technician_id" validate:"required"`
	Reassign     bool   `json:"reassign"`
}

// @Summary Assign technician to appointment
// @Tags assignment
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} models.Appointment
// @Failure 409 {object} map[string]any
// @Router /api/appointments/{id}/assign [post]
func (h *Handler) AssignAppointment(c *gin.Context) {
	var body AssignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	a, err := h.Assigner.AssignAppointment(c.Request.Context(), c.Param("id"), body.TechnicianID, body.Reassign)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

func (h *Handler) AssignRequest(c *gin.Context) {
	var body AssignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(body); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}
	r, err := h.Assigner.AssignRequest(c.Request.Context(), c.Param("id"), body.TechnicianID, body.Reassign)
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// @Summary Sync appointments from upstream
// @Tags sync
// @Produce json
// @Param full query string false "Fetch the full upstream set instead of only new records"
// @Success 200 {object} models.SyncSummary
// @Failure 502 {object} map[string]any
// @Router /api/sync [post]
func (h *Handler) Sync(c *gin.Context) {
	full := c.Query("full")
	summary, err := h.Syncer.Sync(c.Request.Context(), full == "1" || strings.EqualFold(full, "true"))
	if err != nil {
		h.writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (h *Handler) SyncRunsLatest(c *gin.Context) {
	run, err := h.Store.GetLatestSyncRun(c.Request.Context())
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "No sync runs found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load sync run", err.Error())
		return
	}
	c.JSON(http.StatusOK, run)
}

func parseWindow(fromStr, toStr string) (time.Time, time.Time, error) {
	if strings.TrimSpace(fromStr) == "" || strings.TrimSpace(toStr) == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("from and to are required")
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be RFC3339")
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be RFC3339")
	}
	if !to.After(from) {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be after from")
	}
	return from, to, nil
}

func (h *Handler) writeServiceError(c *gin.Context, err error) {
	var nf *service.NotFoundError
	var it *service.InvalidTransitionError
	switch {
	case errors.As(err, &nf):
		writeError(c, http.StatusNotFound, "NOT_FOUND", nf.Error(), nil)
	case errors.As(err, &it):
		writeError(c, http.StatusConflict, "INVALID_TRANSITION", it.Error(), nil)
	case errors.Is(err, service.ErrAlreadyAssigned):
		writeError(c, http.StatusConflict, "ALREADY_ASSIGNED", "Technician already assigned", nil)
	case errors.Is(err, service.ErrTechnicianUnavailable):
		writeError(c, http.StatusConflict, "TECHNICIAN_UNAVAILABLE", "Technician unavailable for requested window", nil)
	case errors.Is(err, service.ErrUpstreamUnavailable):
		writeError(c, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE", "Upstream appointments source unavailable", err.Error())
	default:
		h.Logger.Error().Err(err).Msg("unhandled service error")
		writeError(c, http.StatusInternalServerError, "INTERNAL", "Internal error", err.Error())
	}
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}

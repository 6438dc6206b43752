package booking

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/api"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/auth"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/logger"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create godoc
// @Summary      Create booking
// @Description  Books a master's service at the requested time. Auto-confirming services skip the pending state.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateRequest  true  "Booking request"
// @Success      201      {object}  Result
// @Failure      400      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /bookings [post]
func (h *Handler) Create(c *gin.Context) {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithBindError(c, err)
		return
	}

	result, err := h.service.Create(c.Request.Context(), identity, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, result)
}

// List godoc
// @Summary      List bookings
// @Description  Lists the caller's bookings. Admins may filter by client_id or master_id.
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        status     query     string  false  "Booking status"
// @Param        from       query     string  false  "Scheduled start from (RFC3339)"
// @Param        to         query     string  false  "Scheduled start before (RFC3339)"
// @Param        search     query     string  false  "Search in service name"
// @Param        page       query     int     false  "Page number"
// @Param        page_size  query     int     false  "Page size"
// @Success      200        {object}  Page
// @Failure      400        {object}  api.ErrorResponse
// @Router       /bookings [get]
func (h *Handler) List(c *gin.Context) {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	filter, err := parseListFilter(c)
	if err != nil {
		respondError(c, err)
		return
	}

	page, err := h.service.List(c.Request.Context(), identity, filter)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, page)
}

// Get godoc
// @Summary      Get booking
// @Tags         bookings
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Booking ID"
// @Success      200  {object}  Booking
// @Failure      403  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /bookings/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	b, err := h.service.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, b)
}

// Manage godoc
// @Summary      Manage booking
// @Description  Applies a lifecycle action: confirm, cancel, reschedule, start or complete.
// @Tags         bookings
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string         true  "Booking ID"
// @Param        request  body      ManageRequest  true  "Action"
// @Success      200      {object}  Result
// @Failure      400      {object}  api.ErrorResponse
// @Failure      403      {object}  api.ErrorResponse
// @Failure      404      {object}  api.ErrorResponse
// @Failure      409      {object}  api.ErrorResponse
// @Router       /bookings/{id} [post]
func (h *Handler) Manage(c *gin.Context) {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	var req ManageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondWithBindError(c, err)
		return
	}

	result, err := h.service.Manage(c.Request.Context(), identity, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// AvailableSlots godoc
// @Summary      Available slots
// @Description  Free start times of a master's service on a given day.
// @Tags         masters
// @Security     BearerAuth
// @Produce      json
// @Param        masterID          path      string  true   "Master ID"
// @Param        service_id        query     string  true   "Service ID"
// @Param        date              query     string  true   "Day (YYYY-MM-DD)"
// @Param        duration_minutes  query     int     false  "Duration override"
// @Success      200               {array}   schedule.Slot
// @Failure      400               {object}  api.ErrorResponse
// @Failure      404               {object}  api.ErrorResponse
// @Router       /masters/{masterID}/slots [get]
func (h *Handler) AvailableSlots(c *gin.Context) {
	serviceID := c.Query("service_id")
	if serviceID == "" {
		respondError(c, validationError("service_id query param is required"))
		return
	}

	date, err := time.Parse(time.DateOnly, c.Query("date"))
	if err != nil {
		respondError(c, validationError("date must be YYYY-MM-DD"))
		return
	}

	duration := 0
	if v := c.Query("duration_minutes"); v != "" {
		if duration, err = strconv.Atoi(v); err != nil {
			respondError(c, validationError("duration_minutes must be a number"))
			return
		}
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), SlotsRequest{
		MasterID:        c.Param("masterID"),
		ServiceID:       serviceID,
		Date:            date,
		DurationMinutes: duration,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, slots)
}

func parseListFilter(c *gin.Context) (ListFilter, error) {
	filter := ListFilter{
		ClientID: c.Query("client_id"),
		MasterID: c.Query("master_id"),
		Status:   Status(c.Query("status")),
		Search:   c.Query("search"),
	}

	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &filter.From}, {"to", &filter.To}} {
		v := c.Query(p.name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return ListFilter{}, validationError("invalid %s format, use RFC3339", p.name)
		}
		*p.dst = &t
	}

	var err error
	if v := c.Query("page"); v != "" {
		if filter.Page, err = strconv.Atoi(v); err != nil {
			return ListFilter{}, validationError("page must be a number")
		}
	}
	if v := c.Query("page_size"); v != "" {
		if filter.PageSize, err = strconv.Atoi(v); err != nil {
			return ListFilter{}, validationError("page_size must be a number")
		}
	}

	return filter, nil
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrExpired), errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrPermission):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).Error("booking request failed", "path", c.FullPath())
		c.JSON(status, api.ErrorResponse{Error: "internal error", Code: Code(err)})
		return
	}
	c.JSON(status, api.ErrorResponse{Error: err.Error(), Code: Code(err)})
}

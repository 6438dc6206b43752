package payment

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/api"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/auth"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/booking"
	"github.com/mahmut0ff/Modern-HandShakeMeApp-sub006/internal/logger"
)

type Handler struct {
	bookings booking.Service
	repo     Repository
}

func NewHandler(bookings booking.Service, repo Repository) *Handler {
	return &Handler{bookings: bookings, repo: repo}
}

// ListTransactions godoc
// @Summary Money movements of a booking
// @Tags bookings
// @Produce json
// @Param id path string true "Booking ID"
// @Param limit query int false "Page size"
// @Param offset query int false "Offset"
// @Success 200 {array} Transaction
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /bookings/{id}/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	identity, ok := auth.GetIdentity(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, api.ErrorResponse{Error: "User not authenticated"})
		return
	}

	// Visibility follows the booking.
	b, err := h.bookings.Get(c.Request.Context(), identity, c.Param("id"))
	if err != nil {
		status := booking.StatusFor(err)
		msg := err.Error()
		if status == http.StatusInternalServerError {
			msg = "internal error"
		}
		c.JSON(status, api.ErrorResponse{Error: msg, Code: booking.Code(err)})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	txs, err := h.repo.GetTransactions(c.Request.Context(), b.ID, limit, offset)
	if err != nil {
		logger.WithError(err).Error("failed to load transactions", "booking_id", b.ID)
		c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, txs)
}

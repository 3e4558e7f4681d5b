package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"shortstay/internal/app/commands"
	"shortstay/internal/app/dto"
	bookingapp "shortstay/internal/app/handlers/booking"
	"shortstay/internal/app/queries"
	domainbooking "shortstay/internal/domain/booking"
	"shortstay/internal/domain/listings"
)

type BookingHandler struct {
	Commands commands.Bus
	Queries  queries.Bus
}

type createBookingRequest struct {
	ListingID  string `json:"listing_id" binding:"required"`
	CheckIn    string `json:"check_in" binding:"required"`
	CheckOut   string `json:"check_out" binding:"required"`
	Guests     int    `json:"guests" binding:"required"`
	GuestEmail string `json:"guest_email"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	cmd := bookingapp.RequestBookingCommand{
		CommandID:       uuid.NewString(),
		ListingID:       req.ListingID,
		GuestID:         principal(c),
		GuestEmail:      req.GuestEmail,
		CheckIn:         req.CheckIn,
		CheckOut:        req.CheckOut,
		Guests:          req.Guests,
		IdempotencyKeyV: c.GetHeader("Idempotency-Key"),
	}
	result, err := commands.Dispatch[bookingapp.RequestBookingCommand, *bookingapp.RequestBookingResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h BookingHandler) Get(c *gin.Context) {
	query := bookingapp.GetBookingQuery{BookingID: c.Param("id")}
	result, err := queries.Ask[bookingapp.GetBookingQuery, dto.Booking](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Approve(c *gin.Context) {
	cmd := bookingapp.ApproveBookingCommand{BookingID: c.Param("id"), HostID: principal(c)}
	result, err := commands.Dispatch[bookingapp.ApproveBookingCommand, *bookingapp.DecisionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type declineBookingRequest struct {
	Reason string `json:"reason"`
}

func (h BookingHandler) Decline(c *gin.Context) {
	var req declineBookingRequest
	_ = c.ShouldBindJSON(&req)
	cmd := bookingapp.DeclineBookingCommand{BookingID: c.Param("id"), HostID: principal(c), Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.DeclineBookingCommand, *bookingapp.DecisionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	var req declineBookingRequest
	_ = c.ShouldBindJSON(&req)
	cmd := bookingapp.CancelBookingCommand{BookingID: c.Param("id"), GuestID: principal(c), Reason: req.Reason}
	result, err := commands.Dispatch[bookingapp.CancelBookingCommand, *bookingapp.DecisionResult](c.Request.Context(), h.Commands, cmd)
	if err != nil {
		respondBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// principal is the stand-in for the auth collaborator: the verified user id
// arrives in a trusted header set by the edge.
func principal(c *gin.Context) string {
	return c.GetHeader("X-User-ID")
}

func respondBookingError(c *gin.Context, err error) {
	var rejected bookingapp.RangeRejectedError
	switch {
	case errors.As(err, &rejected):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "stay range rejected", "reason": string(rejected.Reason)})
	case errors.Is(err, domainbooking.ErrBookingNotFound), errors.Is(err, listings.ErrListingNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domainbooking.ErrInvalidState):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, bookingapp.ErrNotBookingHost):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, bookingapp.ErrListingInactive):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

var _ BookingHTTP = BookingHandler{}

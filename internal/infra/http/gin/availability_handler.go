package ginserver

import (
	"errors"
	"net/http"

	gin "github.com/gin-gonic/gin"

	"shortstay/internal/app/dto"
	availabilityapp "shortstay/internal/app/handlers/availability"
	"shortstay/internal/app/queries"
	"shortstay/internal/domain/listings"
)

type AvailabilityHandler struct {
	Queries queries.Bus
}

func (h AvailabilityHandler) Calendar(c *gin.Context) {
	query := availabilityapp.GetCalendarQuery{
		ListingID: c.Param("id"),
		From:      c.Query("from"),
		To:        c.Query("to"),
	}
	result, err := queries.Ask[availabilityapp.GetCalendarQuery, dto.Calendar](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) Validate(c *gin.Context) {
	query := availabilityapp.ValidateStayQuery{
		ListingID: c.Param("id"),
		CheckIn:   c.Query("check_in"),
		CheckOut:  c.Query("check_out"),
	}
	result, err := queries.Ask[availabilityapp.ValidateStayQuery, dto.StayVerdict](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h AvailabilityHandler) NextCheckout(c *gin.Context) {
	query := availabilityapp.NextCheckoutQuery{
		ListingID: c.Param("id"),
		CheckIn:   c.Query("check_in"),
	}
	result, err := queries.Ask[availabilityapp.NextCheckoutQuery, dto.CheckoutSuggestion](c.Request.Context(), h.Queries, query)
	if err != nil {
		respondQueryError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func respondQueryError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, listings.ErrListingNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

var _ AvailabilityHTTP = AvailabilityHandler{}

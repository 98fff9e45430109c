package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/farellandr/spoticket-checkin/internal/checkin"
	"github.com/farellandr/spoticket-checkin/internal/helpers"
	"github.com/farellandr/spoticket-checkin/internal/ledger"
	"github.com/farellandr/spoticket-checkin/internal/middleware"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

type ValidateRequest struct {
	TicketID string `json:"ticket_id" binding:"required"`
	EventID  string `json:"event_id" binding:"required"`
}

type VerifyRequest struct {
	RequestID string `json:"request_id" binding:"required"`
	EventID   string `json:"event_id" binding:"required"`
}

// ValidateTicket is the authoritative check-and-mark. Ticket-state verdicts
// come back as 200 with a ScanResult body; only a malformed request or an
// unreachable ledger produce an error status. A scanned string that is not
// even a ticket id is a NOT_FOUND verdict, not a client error.
func ValidateTicket(c *gin.Context) {
	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event ID.")
		return
	}

	svc := middleware.GetCheckInService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Validation service not found.")
		return
	}

	ticketID, err := uuid.Parse(req.TicketID)
	if err != nil {
		c.JSON(http.StatusOK, &models.ScanResult{
			Outcome: models.OutcomeNotFound,
			Message: "Ticket not found.",
		})
		return
	}

	result, err := svc.Validate(c.Request.Context(), ticketID, eventID, stationID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// VerifyTicket is the idempotent variant keyed by the caller's request id,
// used both for live scans and reconciliation replay.
func VerifyTicket(c *gin.Context) {
	var req VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload.")
		return
	}

	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request ID.")
		return
	}
	eventID, err := uuid.Parse(req.EventID)
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event ID.")
		return
	}

	svc := middleware.GetCheckInService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Validation service not found.")
		return
	}

	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusOK, &models.ScanResult{
			Outcome: models.OutcomeNotFound,
			Message: "Ticket not found.",
		})
		return
	}

	result, err := svc.Verify(c.Request.Context(), requestID, ticketID, eventID, stationID(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UndoCheckIn reverses a staff error. The route is operator-only.
func UndoCheckIn(c *gin.Context) {
	ticketID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid ticket ID.")
		return
	}

	svc := middleware.GetCheckInService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Validation service not found.")
		return
	}

	ticket, err := svc.UndoCheckIn(c.Request.Context(), ticketID, stationID(c))
	if err != nil {
		if errors.Is(err, checkin.ErrNotCheckedIn) {
			helpers.RespondWithError(c, http.StatusConflict, "Ticket is not checked in.")
			return
		}
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Check-in undone.",
		"ticket":  ticket,
	})
}

// EventSnapshot serves a station's pre-event snapshot pull: every ticket id
// currently valid for the event, stamped with generation time.
func EventSnapshot(c *gin.Context) {
	eventID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid event ID.")
		return
	}

	svc := middleware.GetCheckInService(c)
	if svc == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Validation service not found.")
		return
	}

	snapshot, err := svc.Snapshot(c.Request.Context(), eventID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func stationID(c *gin.Context) string {
	id, exists := c.Get("station_id")
	if !exists {
		return "unknown"
	}
	return id.(string)
}

func respondServiceError(c *gin.Context, err error) {
	if errors.Is(err, checkin.ErrUnavailable) {
		helpers.RespondWithError(c, http.StatusServiceUnavailable, "Ledger unavailable. Try again.")
		return
	}
	if errors.Is(err, checkin.ErrNotCheckedIn) {
		helpers.RespondWithError(c, http.StatusConflict, "Ticket is not checked in.")
		return
	}
	if errors.Is(err, ledger.ErrNotFound) {
		helpers.RespondWithError(c, http.StatusNotFound, "Not found.")
		return
	}
	helpers.RespondWithError(c, http.StatusInternalServerError, "Unexpected error.")
}

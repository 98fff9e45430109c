package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/farellandr/spoticket-checkin/internal/helpers"
	"github.com/farellandr/spoticket-checkin/internal/middleware"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

type AlertRequest struct {
	TicketID   uuid.UUID `json:"ticket_id" binding:"required"`
	EventID    uuid.UUID `json:"event_id" binding:"required"`
	StationID  string    `json:"station_id" binding:"required"`
	Message    string    `json:"message" binding:"required"`
	ReportedAt time.Time `json:"reported_at"`
}

// CreateAlert records a reconciliation conflict reported by a station: an
// offline-accepted ticket that turned out to be checked in elsewhere. These
// are double-entry incidents needing human follow-up, so they are persisted,
// never just logged.
func CreateAlert(c *gin.Context) {
	var req AlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	reportedAt := req.ReportedAt
	if reportedAt.IsZero() {
		reportedAt = time.Now().UTC()
	}

	alert := models.Alert{
		ID:         uuid.New(),
		TicketID:   req.TicketID,
		EventID:    req.EventID,
		StationID:  req.StationID,
		Message:    req.Message,
		ReportedAt: reportedAt,
	}

	if err := gormDB.Create(&alert).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to record alert.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Alert recorded.",
		"alert_id": alert.ID,
	})
}

// ListAlerts returns unresolved reconciliation alerts for the operator view.
func ListAlerts(c *gin.Context) {
	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var alerts []models.Alert
	if err := gormDB.Where("resolved = ?", false).Order("reported_at DESC").Find(&alerts).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving alerts.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

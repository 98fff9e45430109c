package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/farellandr/spoticket-checkin/internal/helpers"
	"github.com/farellandr/spoticket-checkin/internal/middleware"
	"github.com/farellandr/spoticket-checkin/internal/models"
)

type TicketRequest struct {
	EventID      uuid.UUID `json:"event_id" binding:"required"`
	TierID       uuid.UUID `json:"tier_id"`
	TierName     string    `json:"tier_name" binding:"required"`
	OwnerID      uuid.UUID `json:"owner_id" binding:"required"`
	AttendeeName string    `json:"attendee_name" binding:"required"`
	PricePaid    int       `json:"price_paid"`
	PurchaseDate time.Time `json:"purchase_date"`
}

// CreateTicket ingests a ticket sold upstream into the ledger. Pricing and
// ownership are taken as given; this endpoint exists so the ledger has rows
// to validate against, not to sell tickets.
func CreateTicket(c *gin.Context) {
	var req TicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid input. Please check your fields.")
		return
	}

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var event models.Event
	if err := gormDB.Where("id = ?", req.EventID).First(&event).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Event not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error verifying event.")
		return
	}

	purchaseDate := req.PurchaseDate
	if purchaseDate.IsZero() {
		purchaseDate = time.Now().UTC()
	}

	ticket := models.Ticket{
		ID:           uuid.New(),
		EventID:      req.EventID,
		TierID:       req.TierID,
		TierName:     req.TierName,
		OwnerID:      req.OwnerID,
		AttendeeName: req.AttendeeName,
		PricePaid:    req.PricePaid,
		PurchaseDate: purchaseDate,
		State:        models.TicketStateValid,
	}

	if err := gormDB.Create(&ticket).Error; err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to create ticket.")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":   "Ticket created successfully.",
		"ticket_id": ticket.ID,
	})
}

func GetTicket(c *gin.Context) {
	ticketID := c.Param("id")

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var ticket models.Ticket
	if err := gormDB.Where("id = ?", ticketID).First(&ticket).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Ticket not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving ticket.")
		return
	}

	c.JSON(http.StatusOK, ticket)
}

// GetTicketQR renders the ticket's id as a QR PNG. The id string is the exact
// payload a gate scanner decodes. Used tickets are refused so a spent QR
// cannot keep circulating.
func GetTicketQR(c *gin.Context) {
	ticketID := c.Param("id")

	gormDB := middleware.GetDB(c)
	if gormDB == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	var ticket models.Ticket
	if err := gormDB.Where("id = ?", ticketID).First(&ticket).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			helpers.RespondWithError(c, http.StatusNotFound, "Ticket not found.")
			return
		}
		helpers.RespondWithError(c, http.StatusInternalServerError, "Error retrieving ticket.")
		return
	}

	if ticket.State == models.TicketStateUsed {
		helpers.RespondWithError(c, http.StatusForbidden, "Ticket already used.")
		return
	}

	qrImage, err := qrcode.Encode(ticket.ID.String(), qrcode.Medium, 256)
	if err != nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Failed to generate QR code.")
		return
	}

	c.Data(http.StatusOK, "image/png", qrImage)
}

package server

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/farellandr/spoticket-checkin/config"
	"github.com/farellandr/spoticket-checkin/internal/checkin"
	"github.com/farellandr/spoticket-checkin/internal/handlers"
	"github.com/farellandr/spoticket-checkin/internal/ledger"
	"github.com/farellandr/spoticket-checkin/internal/middleware"
)

func Start() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %v", err)
	}

	db, err := config.InitDatabase(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %v", err)
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	checkInCfg := config.LoadCheckInConfig()
	store := ledger.NewGormStore(db)
	svc := checkin.NewService(store, checkInCfg.Retry, checkInCfg.EventWindowSlack, logrus.NewEntry(log))

	r := gin.Default()

	setupRoutes(r, db, svc)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	return r.Run(":" + port)
}

func setupRoutes(r *gin.Engine, db *gorm.DB, svc *checkin.Service) {
	r.Use(middleware.DatabaseMiddleware(db))
	r.Use(middleware.CheckInMiddleware(svc))

	public := r.Group("/v1")
	{
		public.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok"})
		})
		public.POST("/auth/login", handlers.Login)
	}

	// Scanning stations: staff and operator tokens both pass.
	station := r.Group("/v1")
	station.Use(middleware.JWTAuthMiddleware())
	{
		station.POST("/tickets/validate", handlers.ValidateTicket)
		station.POST("/tickets/:id/verify", handlers.VerifyTicket)
		station.GET("/tickets/:id", handlers.GetTicket)
		station.GET("/tickets/:id/qr", handlers.GetTicketQR)
		station.GET("/events/:id/snapshot", handlers.EventSnapshot)
		station.POST("/alerts", handlers.CreateAlert)
	}

	operator := r.Group("/v1")
	operator.Use(middleware.JWTAuthMiddleware(), middleware.RequireRole("operator"))
	{
		operator.POST("/auth/register", handlers.Register)
		operator.POST("/tickets", handlers.CreateTicket)
		operator.POST("/tickets/:id/undo-checkin", handlers.UndoCheckIn)
		operator.GET("/alerts", handlers.ListAlerts)
	}
}

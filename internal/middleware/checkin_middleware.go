package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/farellandr/spoticket-checkin/internal/checkin"
)

func CheckInMiddleware(svc *checkin.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("checkin_service", svc)
		c.Next()
	}
}

func GetCheckInService(c *gin.Context) *checkin.Service {
	svc, exists := c.Get("checkin_service")
	if !exists {
		return nil
	}
	return svc.(*checkin.Service)
}

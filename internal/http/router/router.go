package router

import (
	"github.com/gin-gonic/gin"

	"notepush.app/notepush/internal/http/handler/webhook"
)

func SetupRoutes(router *gin.Engine, lineHandler *webhook.LineWebhookHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	router.GET("/webhook", lineHandler.Health)
	router.POST("/webhook", lineHandler.HandleEvents)
}

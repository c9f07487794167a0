package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/chiangyiyang/sr-twrw-line-bot/internal/config"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/handler"
	"github.com/chiangyiyang/sr-twrw-line-bot/internal/middleware"
)

// Handlers bundles everything the router mounts.
type Handlers struct {
	Webhook  *handler.WebhookHandler
	Events   *handler.EventHandler
	Rainfall *handler.RainfallHandler
	CCTV     *handler.CCTVHandler
	Auth     *handler.AuthHandler
}

// SetupRouter wires all routes and middleware.
func SetupRouter(cfg *config.Config, h Handlers, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(logger), gin.Recovery())

	// CORS for the public map pages.
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "sr-twrw-line-bot is running",
		})
	})

	// Chat platform callback.
	r.POST("/callback", middleware.RateLimit(120, time.Minute), h.Webhook.HandleWebhook)

	// Event photos and raw camera inventory for the public map pages.
	r.Static("/pictures", cfg.PicturesDir)
	r.StaticFile("/cctv.json", cfg.CCTVPath)

	api := r.Group("/api/v1")
	{
		api.POST("/auth/login", middleware.RateLimit(10, time.Minute), h.Auth.Login)

		rainfall := api.Group("/rainfall")
		{
			rainfall.GET("/latest", h.Rainfall.GetLatest)
			rainfall.GET("/search", h.Rainfall.Search)
			rainfall.GET("/summary", h.Rainfall.GetSummary)
			rainfall.GET("/stations/:id", h.Rainfall.GetStation)
		}

		api.GET("/cctv", h.CCTV.GetCameras)

		events := api.Group("/events")
		{
			events.GET("", h.Events.GetEvents)
			events.GET("/export", h.Events.ExportEventsCSV)
			events.GET("/:id", h.Events.GetEventByID)

			// Mutations require an admin token.
			authed := events.Group("", middleware.JWTAuth(cfg.JWTSecret))
			{
				authed.POST("", h.Events.CreateEvent)
				authed.PUT("/:id", h.Events.UpdateEvent)
				authed.DELETE("/:id", h.Events.DeleteEvent)
			}
		}
	}

	return r
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/skillswap-signaling/config"
	"github.com/mossy-p/skillswap-signaling/internal/middleware"
	"github.com/mossy-p/skillswap-signaling/internal/signaling"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the HTTP surface of the signaling server
func NewRouter(cfg *config.Config, hub *signaling.Hub, pub Publisher) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestLogger())

	// Global CORS middleware (runs before routing)
	router.Use(OriginFilter(cfg.AllowedOrigins))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := router.Group("/api")
	{
		if !cfg.IsProduction() {
			apiGroup.POST("/auth/token", IssueDevToken(cfg.JWTSecret))
		}

		authenticated := apiGroup.Group("", middleware.JWTAuth(cfg.JWTSecret))
		authenticated.GET("/rooms", ListRooms(hub))
		authenticated.GET("/rooms/:roomName", GetRoom(hub))
		authenticated.POST("/notifications/:userId", PushNotification(pub, cfg.ServiceUserID))
	}

	// WebSocket signaling
	router.GET("/ws",
		middleware.OptionalJWTAuth(cfg.JWTSecret),
		HandleSignaling(hub, SignalingOptions{
			RequireAuth:    cfg.RequireAuth,
			MaxMessageSize: cfg.WebSocket.MaxMessageSize,
		}),
	)

	return router
}

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/mossy-p/skillswap-signaling/internal/middleware"
	"github.com/mossy-p/skillswap-signaling/internal/models"
	"github.com/mossy-p/skillswap-signaling/internal/signaling"
	"github.com/rs/zerolog/log"
)

// Publisher routes a notification to the private channel of a user
type Publisher interface {
	Publish(ctx context.Context, userID string, payload []byte) error
}

// HubPublisher delivers notifications straight to the local hub. Used when
// the server runs as a single instance without Redis.
type HubPublisher struct {
	Hub *signaling.Hub
}

func (p HubPublisher) Publish(_ context.Context, userID string, payload []byte) error {
	p.Hub.NotifyUser(userID, payload)
	return nil
}

// NotificationRequest is the body of a notification push
type NotificationRequest struct {
	Type    string `json:"type" binding:"required"`
	Title   string `json:"title" binding:"required"`
	Message string `json:"message"`
	Link    string `json:"link"`
}

// PushNotification sends a new-notification event to every connection of a user.
// Only the service identity may notify other users.
func PushNotification(pub Publisher, serviceUserID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.Param("userId")
		caller := middleware.CurrentUser(c)
		if caller != userID && (serviceUserID == "" || caller != serviceUserID) {
			log.Warn().Str("user", userID).Str("by", caller).Msg("notification push forbidden")
			c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to notify this user"})
			return
		}

		var req NotificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		notification := models.Notification{
			ID:        uuid.New().String(),
			Type:      req.Type,
			Title:     req.Title,
			Message:   req.Message,
			Link:      req.Link,
			CreatedAt: time.Now().UTC().Format(time.RFC3339),
		}
		payload, err := json.Marshal(notification)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to encode notification"})
			return
		}

		if err := pub.Publish(c.Request.Context(), userID, payload); err != nil {
			log.Error().Err(err).Str("user", userID).Msg("failed to publish notification")
			c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to publish notification"})
			return
		}

		log.Info().Str("user", userID).Str("type", req.Type).Str("by", caller).Msg("notification published")
		c.JSON(http.StatusAccepted, gin.H{"id": notification.ID})
	}
}

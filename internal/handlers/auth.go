package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/skillswap-signaling/internal/middleware"
)

const devTokenTTL = 24 * time.Hour

// TokenRequest represents the dev token request body
type TokenRequest struct {
	UserID string `json:"userId" binding:"required"`
}

// TokenResponse represents the dev token response
type TokenResponse struct {
	Token  string `json:"token"`
	UserID string `json:"userId"`
}

// IssueDevToken signs a token for any user id. Real tokens come from the
// marketplace API; this endpoint is only mounted outside production.
func IssueDevToken(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req TokenRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Invalid request body",
			})
			return
		}

		token, err := middleware.IssueToken(jwtSecret, req.UserID, devTokenTTL)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to generate token",
			})
			return
		}

		c.JSON(http.StatusOK, TokenResponse{
			Token:  token,
			UserID: req.UserID,
		})
	}
}

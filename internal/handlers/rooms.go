package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mossy-p/skillswap-signaling/internal/signaling"
)

// ListRooms lists every live room
func ListRooms(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		rooms := hub.Rooms()
		c.JSON(http.StatusOK, gin.H{"rooms": rooms, "count": len(rooms)})
	}
}

// GetRoom returns membership and readiness of one room
func GetRoom(hub *signaling.Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		room, ok := hub.Room(c.Param("roomName"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "Room not found"})
			return
		}
		c.JSON(http.StatusOK, room)
	}
}

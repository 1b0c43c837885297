package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/mossy-p/skillswap-signaling/internal/middleware"
	"github.com/mossy-p/skillswap-signaling/internal/models"
	"github.com/mossy-p/skillswap-signaling/internal/signaling"
	"github.com/rs/zerolog/log"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Origin checking is handled by middleware
		return true
	},
}

// SignalingOptions configures the WebSocket endpoint
type SignalingOptions struct {
	RequireAuth    bool
	MaxMessageSize int64
}

// Client pumps frames between one WebSocket and its hub connection
type Client struct {
	hub     *signaling.Hub
	session *signaling.Conn
	conn    *websocket.Conn
	opts    SignalingOptions
}

// HandleSignaling upgrades the request and attaches the socket to the hub
func HandleSignaling(hub *signaling.Hub, opts SignalingOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		authUserID := middleware.CurrentUser(c)
		if opts.RequireAuth && authUserID == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			log.Error().Err(err).Msg("failed to upgrade connection")
			return
		}

		session, err := hub.Connect(authUserID)
		if err != nil {
			log.Warn().Err(err).Msg("rejecting connection")
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "server is shutting down"),
				time.Now().Add(writeWait))
			conn.Close()
			return
		}

		client := &Client{
			hub:     hub,
			session: session,
			conn:    conn,
			opts:    opts,
		}
		log.Info().Str("conn", string(session.ID)).Str("remote", conn.RemoteAddr().String()).Msg("peer connected")

		go client.writePump()
		go client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c.session.ID)
		c.conn.Close()
		log.Info().Str("conn", string(c.session.ID)).Msg("peer disconnected")
	}()

	if c.opts.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.opts.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Warn().Err(err).Str("conn", string(c.session.ID)).Msg("websocket error")
			}
			return
		}

		var msg models.Envelope
		if err := json.Unmarshal(message, &msg); err != nil {
			log.Debug().Err(err).Str("conn", string(c.session.ID)).Msg("failed to parse message")
			c.sendError(models.ErrCodeBadMessage, "", fmt.Errorf("malformed message: %w", err))
			continue
		}

		if err := c.dispatch(msg); err != nil {
			log.Debug().Err(err).Str("conn", string(c.session.ID)).Str("event", string(msg.Type)).
				Str("room", msg.Room).Msg("event failed")
			c.sendError(signaling.ErrorCode(err), msg.Room, err)
		}
	}
}

func (c *Client) dispatch(msg models.Envelope) error {
	id := c.session.ID

	switch msg.Type {
	case models.EventIdentify:
		return c.hub.Identify(id, msg.UserID)

	case models.EventJoinRoom:
		kind := msg.Kind
		if kind == "" {
			kind, _ = models.KindFromRoom(msg.Room)
		}
		if msg.Room == "" && msg.PeerID != "" {
			_, err := c.hub.JoinPeer(id, kind, msg.PeerID)
			return err
		}
		return c.hub.Join(id, kind, msg.Room)

	case models.EventLeaveRoom:
		return c.hub.Leave(id, msg.Room)

	case models.EventReadyNudge:
		return c.hub.Nudge(id, msg.Room)

	case models.EventChatMessage:
		return c.hub.Chat(id, msg.Room, msg.Content)
	}

	if msg.Type.IsRelayed() {
		return c.hub.Relay(id, msg.Type, msg.Room, msg.Payload)
	}
	return fmt.Errorf("%w: %q", signaling.ErrUnsupportedEvent, msg.Type)
}

func (c *Client) sendError(code, room string, err error) {
	c.hub.Send(c.session.ID, models.Envelope{
		Type:  models.EventError,
		Room:  room,
		Code:  code,
		Error: err.Error(),
	})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	messages := c.session.Messages()
	for {
		select {
		case message, ok := <-messages:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Warn().Err(err).Str("conn", string(c.session.ID)).Msg("failed to write message")
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

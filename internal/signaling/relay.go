package signaling

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mossy-p/skillswap-signaling/internal/models"
	"github.com/mossy-p/skillswap-signaling/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Relay forwards a signaling payload from the connection to every other member
// of room. The payload is never inspected. Relaying into a room the sender is
// not part of, or that has no other members, does nothing.
func (h *Hub) Relay(id ConnID, eventType models.EventType, room string, payload json.RawMessage) error {
	if !eventType.IsRelayed() {
		return fmt.Errorf("%w: %s", ErrUnsupportedEvent, eventType)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.identified(id)
	if err != nil {
		return err
	}
	if !h.members.Has(room, c.ID) {
		log.Debug().Str("conn", string(id)).Str("room", room).Str("event", string(eventType)).Msg("relay from non-member dropped")
		return nil
	}

	env := models.Envelope{Type: eventType, Room: room}
	// clear resets the canvas on every receiver, it carries nothing else
	if eventType != models.EventWhiteboardClear {
		env.Payload = payload
	}

	n := h.broadcast(room, env, c.ID)
	telemetry.MessageRelayed(string(eventType), n)
	return nil
}

// Chat broadcasts a text message to every member of a conversation room,
// the sender included.
func (h *Hub) Chat(id ConnID, room, content string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyMessage
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.identified(id)
	if err != nil {
		return err
	}
	if !h.members.Has(room, c.ID) || h.kinds[room] != models.RoomKindConversation {
		log.Debug().Str("conn", string(id)).Str("room", room).Msg("chat message outside a joined conversation dropped")
		return nil
	}

	payload, err := json.Marshal(models.ChatMessage{
		ID:        uuid.New().String(),
		Room:      room,
		SenderID:  c.userID,
		Content:   content,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal chat message: %w", err)
	}

	n := h.broadcast(room, models.Envelope{Type: models.EventNewMessage, Room: room, Payload: payload}, "")
	telemetry.MessageRelayed(string(models.EventNewMessage), n)
	return nil
}

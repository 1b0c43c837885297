package signaling

import (
	"github.com/mossy-p/skillswap-signaling/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// Leave removes the connection from a single room. Other rooms are untouched.
func (h *Hub) Leave(id ConnID, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.registry.get(id)
	if err != nil {
		return err
	}
	h.leave(c, room)
	return nil
}

// Disconnect prunes the connection from every room it joined, drops its
// record and closes its outbound queue. Unknown ids are ignored.
func (h *Hub) Disconnect(id ConnID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.registry.get(id)
	if err != nil {
		return
	}
	h.disconnect(c)
}

// Close disconnects every connection. The hub accepts no connections afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	for _, c := range h.registry.all() {
		h.disconnect(c)
	}
	h.closed = true
	log.Info().Msg("signaling hub closed")
}

func (h *Hub) disconnect(c *Conn) {
	for room := range c.rooms {
		h.leave(c, room)
	}

	h.registry.remove(c)
	if !c.closed {
		c.closed = true
		close(c.send)
	}
	telemetry.ConnectionClosed()
	log.Debug().Str("conn", string(c.ID)).Str("user", c.userID).Msg("connection removed")
}

func (h *Hub) leave(c *Conn, room string) {
	delete(c.rooms, room)
	kind := h.kinds[room]

	removed, emptied := h.members.Leave(room, c.ID)
	if !removed {
		return
	}

	if emptied {
		delete(h.kinds, room)
		h.ready.forget(room)
		telemetry.RoomRemoved()
		log.Info().Str("room", room).Msg("removed empty room")
	} else if kind.Paired() {
		h.ready.observe(room, h.members.Count(room))
	}
	log.Info().Str("conn", string(c.ID)).Str("user", c.userID).Str("room", room).Msg("left room")
}

package signaling

import (
	"github.com/mossy-p/skillswap-signaling/internal/models"
	"github.com/mossy-p/skillswap-signaling/internal/telemetry"
	"github.com/rs/zerolog/log"
)

// readiness remembers which paired rooms were already told both parties are present.
// The flag lives as long as the current pair: it is cleared as soon as the
// room drops below quorum so the next pair gets its own signal.
type readiness struct {
	signaled map[string]bool
}

func newReadiness() *readiness {
	return &readiness{signaled: make(map[string]bool)}
}

// observe records the member count of room and reports whether both-ready must fire now.
func (r *readiness) observe(room string, count int) bool {
	if count < models.PairCapacity {
		delete(r.signaled, room)
		return false
	}
	if count == models.PairCapacity && !r.signaled[room] {
		r.signaled[room] = true
		return true
	}
	return false
}

func (r *readiness) ready(room string) bool {
	return r.signaled[room]
}

func (r *readiness) forget(room string) {
	delete(r.signaled, room)
}

// checkReady runs the quorum check for a paired room. Must be called with h.mu held,
// in the same critical section as the membership change that triggered it.
func (h *Hub) checkReady(room string, requester *Conn) {
	count := h.members.Count(room)

	if h.ready.observe(room, count) {
		n := h.broadcast(room, models.Envelope{Type: models.EventBothReady, Room: room}, "")
		telemetry.ReadySignaled()
		log.Info().Str("room", room).Int("members", n).Msg("both parties ready")
		return
	}

	if count < models.PairCapacity && requester != nil {
		h.send(requester, models.Envelope{Type: models.EventWaitingForPeer, Room: room})
	}
}

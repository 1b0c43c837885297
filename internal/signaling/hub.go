package signaling

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/mossy-p/skillswap-signaling/internal/models"
	"github.com/mossy-p/skillswap-signaling/internal/telemetry"
	"github.com/rs/zerolog/log"
)

const defaultSendBuffer = 256

// Hub owns every piece of signaling state: connections, room membership and
// readiness flags. Each operation runs to completion under a single lock, so a
// membership change and the checks that depend on it are observed atomically.
type Hub struct {
	mu       sync.Mutex
	registry *registry
	members  *Membership
	ready    *readiness
	kinds    map[string]models.RoomKind
	closed   bool
}

// Option configures a Hub.
type Option func(*hubOptions)

type hubOptions struct {
	sendBuffer int
}

// WithSendBuffer sets the outbound queue length of each connection.
func WithSendBuffer(n int) Option {
	return func(o *hubOptions) {
		if n > 0 {
			o.sendBuffer = n
		}
	}
}

// NewHub creates an empty hub.
func NewHub(opts ...Option) *Hub {
	o := hubOptions{sendBuffer: defaultSendBuffer}
	for _, opt := range opts {
		opt(&o)
	}

	return &Hub{
		registry: newRegistry(o.sendBuffer),
		members:  NewMembership(),
		ready:    newReadiness(),
		kinds:    make(map[string]models.RoomKind),
	}
}

// RoomInfo is a snapshot of a live room
type RoomInfo struct {
	Name    string          `json:"name"`
	Kind    models.RoomKind `json:"kind"`
	Members int             `json:"members"`
	Ready   bool            `json:"ready"`
}

// Connect registers a new connection. authUserID is the identity proven at
// handshake time, or empty when the handshake carried none.
func (h *Hub) Connect(authUserID string) (*Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	c := h.registry.add(authUserID)
	telemetry.ConnectionOpened()
	log.Debug().Str("conn", string(c.ID)).Str("auth_user", authUserID).Msg("connection registered")
	return c, nil
}

// Identify binds a user to the connection and subscribes it to the user's private channel.
func (h *Hub) Identify(id ConnID, userID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.registry.get(id)
	if err != nil {
		return err
	}
	previous := c.userID
	if err := h.registry.identify(c, userID); err != nil {
		return err
	}
	if previous != "" && previous != userID {
		// paired room names are derived from the participants, so they do not follow a rebind
		for room, kind := range c.rooms {
			if kind.Paired() {
				h.leave(c, room)
			}
		}
	}

	log.Info().Str("conn", string(id)).Str("user", userID).Msg("connection identified")
	h.send(c, models.Envelope{Type: models.EventIdentified, UserID: userID, Room: models.UserChannel(userID)})
	return nil
}

// Join adds the connection to room. Paired rooms accept at most two members and
// run the readiness check right after the membership change.
func (h *Hub) Join(id ConnID, kind models.RoomKind, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.identified(id)
	if err != nil {
		return err
	}
	return h.join(c, kind, room)
}

// JoinPeer joins the paired room shared between the connection's user and peerID.
func (h *Hub) JoinPeer(id ConnID, kind models.RoomKind, peerID string) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.identified(id)
	if err != nil {
		return "", err
	}
	room, err := models.RoomName(kind, c.userID, peerID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidRoom, err)
	}
	return room, h.join(c, kind, room)
}

func (h *Hub) join(c *Conn, kind models.RoomKind, room string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidRoom, kind)
	}
	if room == "" {
		return fmt.Errorf("%w: empty room name", ErrInvalidRoom)
	}
	// a recognised prefix fixes the kind, explicit kinds only apply to free-form names
	if named, ok := models.KindFromRoom(room); ok && named != kind {
		telemetry.JoinRejected("kind")
		return fmt.Errorf("%w: %s is a %s room", ErrInvalidRoom, room, named)
	}
	if existing, ok := h.kinds[room]; ok && existing != kind {
		telemetry.JoinRejected("kind")
		return fmt.Errorf("%w: %s is a %s room", ErrInvalidRoom, room, existing)
	}
	if kind.Paired() && !h.members.Has(room, c.ID) && h.members.Count(room) >= models.PairCapacity {
		telemetry.JoinRejected("full")
		log.Warn().Str("conn", string(c.ID)).Str("user", c.userID).Str("room", room).Msg("join rejected, room is full")
		return fmt.Errorf("%w: %s", ErrRoomFull, room)
	}

	created := h.members.Count(room) == 0
	if h.members.Join(room, c.ID) {
		log.Info().Str("conn", string(c.ID)).Str("user", c.userID).Str("room", room).
			Int("members", h.members.Count(room)).Msg("joined room")
	}
	if created {
		h.kinds[room] = kind
		telemetry.RoomCreated()
	}
	c.rooms[room] = kind

	if kind.Paired() {
		h.checkReady(room, c)
	}
	return nil
}

// Nudge re-runs the readiness check of a paired room on behalf of one of its members.
func (h *Hub) Nudge(id ConnID, room string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.identified(id)
	if err != nil {
		return err
	}
	if !h.members.Has(room, c.ID) || !h.kinds[room].Paired() {
		log.Debug().Str("conn", string(id)).Str("room", room).Msg("ignoring ready nudge")
		return nil
	}
	h.checkReady(room, c)
	return nil
}

// NotifyUser delivers a notification to every connection bound to userID and
// returns how many connections received it.
func (h *Hub) NotifyUser(userID string, payload json.RawMessage) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	data, err := json.Marshal(models.Envelope{
		Type:    models.EventNewNotification,
		Room:    models.UserChannel(userID),
		Payload: payload,
	})
	if err != nil {
		log.Error().Err(err).Str("user", userID).Msg("failed to marshal notification")
		return 0
	}

	n := 0
	for _, c := range h.registry.userConns(userID) {
		if h.enqueue(c, data) {
			n++
		}
	}
	telemetry.NotificationDelivered(n)
	return n
}

// Send queues a message for a single connection, used to report errors back
// to the connection that caused them.
func (h *Hub) Send(id ConnID, env models.Envelope) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.registry.get(id)
	if err != nil {
		return err
	}
	h.send(c, env)
	return nil
}

// MemberCount returns the number of connections joined to room.
func (h *Hub) MemberCount(room string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.members.Count(room)
}

// Room returns a snapshot of a live room.
func (h *Hub) Room(name string) (RoomInfo, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.members.Count(name) == 0 {
		return RoomInfo{}, false
	}
	return h.roomInfo(name), true
}

// Rooms returns snapshots of all live rooms ordered by name.
func (h *Hub) Rooms() []RoomInfo {
	h.mu.Lock()
	defer h.mu.Unlock()

	names := h.members.Rooms()
	out := make([]RoomInfo, 0, len(names))
	for _, name := range names {
		out = append(out, h.roomInfo(name))
	}
	return out
}

// RoomsOf lists the rooms a connection is joined to.
func (h *Hub) RoomsOf(id ConnID) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	c, err := h.registry.get(id)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(c.rooms))
	for room := range c.rooms {
		out = append(out, room)
	}
	sort.Strings(out)
	return out
}

func (h *Hub) roomInfo(name string) RoomInfo {
	return RoomInfo{
		Name:    name,
		Kind:    h.kinds[name],
		Members: h.members.Count(name),
		Ready:   h.ready.ready(name),
	}
}

func (h *Hub) identified(id ConnID) (*Conn, error) {
	c, err := h.registry.get(id)
	if err != nil {
		return nil, err
	}
	if c.userID == "" {
		return nil, ErrNotIdentified
	}
	return c, nil
}

// broadcast sends env to every member of room except exclude and returns the
// number of connections it was queued for.
func (h *Hub) broadcast(room string, env models.Envelope, exclude ConnID) int {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("room", room).Str("event", string(env.Type)).Msg("failed to marshal message")
		return 0
	}

	n := 0
	for _, id := range h.members.Members(room) {
		if id == exclude {
			continue
		}
		c, err := h.registry.get(id)
		if err != nil {
			continue
		}
		if h.enqueue(c, data) {
			n++
		}
	}
	return n
}

func (h *Hub) send(c *Conn, env models.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("conn", string(c.ID)).Str("event", string(env.Type)).Msg("failed to marshal message")
		return
	}
	h.enqueue(c, data)
}

func (h *Hub) enqueue(c *Conn, data []byte) bool {
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		telemetry.MessageDropped()
		log.Warn().Str("conn", string(c.ID)).Msg("failed to send message, buffer full")
		return false
	}
}

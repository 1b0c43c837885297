package signaling

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/mossy-p/skillswap-signaling/internal/models"
)

// ConnID identifies one live transport session
type ConnID string

// Conn is the server side state of a client connection. All fields are
// guarded by the owning Hub.
type Conn struct {
	ID ConnID

	authUserID string
	userID     string
	rooms      map[string]models.RoomKind
	send       chan []byte
	closed     bool
}

// Messages returns the outbound queue of the connection. It is closed when the
// connection is disconnected from the hub.
func (c *Conn) Messages() <-chan []byte {
	return c.send
}

type registry struct {
	conns      map[ConnID]*Conn
	byUser     map[string]map[ConnID]*Conn
	sendBuffer int
}

func newRegistry(sendBuffer int) *registry {
	return &registry{
		conns:      make(map[ConnID]*Conn),
		byUser:     make(map[string]map[ConnID]*Conn),
		sendBuffer: sendBuffer,
	}
}

func (r *registry) add(authUserID string) *Conn {
	c := &Conn{
		ID:         ConnID(uuid.New().String()),
		authUserID: authUserID,
		rooms:      make(map[string]models.RoomKind),
		send:       make(chan []byte, r.sendBuffer),
	}
	r.conns[c.ID] = c
	return c
}

func (r *registry) get(id ConnID) (*Conn, error) {
	c, ok := r.conns[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownConnection, id)
	}
	return c, nil
}

// identify binds userID to c. Rebinding is allowed, the last call wins.
func (r *registry) identify(c *Conn, userID string) error {
	if userID == "" {
		return ErrInvalidUser
	}
	if c.authUserID != "" && c.authUserID != userID {
		return fmt.Errorf("%w: token is for %s", ErrIdentityMismatch, c.authUserID)
	}

	if c.userID != "" && c.userID != userID {
		r.unindex(c)
	}
	c.userID = userID

	conns, ok := r.byUser[userID]
	if !ok {
		conns = make(map[ConnID]*Conn)
		r.byUser[userID] = conns
	}
	conns[c.ID] = c
	return nil
}

func (r *registry) userConns(userID string) []*Conn {
	conns := r.byUser[userID]
	out := make([]*Conn, 0, len(conns))
	for _, c := range conns {
		out = append(out, c)
	}
	return out
}

func (r *registry) remove(c *Conn) {
	r.unindex(c)
	delete(r.conns, c.ID)
}

func (r *registry) unindex(c *Conn) {
	if c.userID == "" {
		return
	}
	if conns, ok := r.byUser[c.userID]; ok {
		delete(conns, c.ID)
		if len(conns) == 0 {
			delete(r.byUser, c.userID)
		}
	}
}

func (r *registry) all() []*Conn {
	out := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		out = append(out, c)
	}
	return out
}

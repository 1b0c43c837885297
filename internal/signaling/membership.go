package signaling

import "sort"

// Membership tracks which connections are joined to which room. A room exists
// only while it has at least one member.
//
// Membership is not safe for concurrent use; the Hub serializes access.
type Membership struct {
	rooms map[string]map[ConnID]struct{}
}

// NewMembership creates an empty tracker.
func NewMembership() *Membership {
	return &Membership{rooms: make(map[string]map[ConnID]struct{})}
}

// Join adds id to room and reports whether it was not a member before.
func (m *Membership) Join(room string, id ConnID) bool {
	members, ok := m.rooms[room]
	if !ok {
		members = make(map[ConnID]struct{})
		m.rooms[room] = members
	}
	if _, ok := members[id]; ok {
		return false
	}
	members[id] = struct{}{}
	return true
}

// Leave removes id from room. emptied is true when the room was deleted as a result.
func (m *Membership) Leave(room string, id ConnID) (removed, emptied bool) {
	members, ok := m.rooms[room]
	if !ok {
		return false, false
	}
	if _, ok := members[id]; !ok {
		return false, false
	}
	delete(members, id)
	if len(members) == 0 {
		delete(m.rooms, room)
		return true, true
	}
	return true, false
}

// Count returns the number of members of room, zero for unknown rooms.
func (m *Membership) Count(room string) int {
	return len(m.rooms[room])
}

// Has reports whether id is a member of room.
func (m *Membership) Has(room string, id ConnID) bool {
	_, ok := m.rooms[room][id]
	return ok
}

// Members returns the members of room in no particular order.
func (m *Membership) Members(room string) []ConnID {
	members := m.rooms[room]
	out := make([]ConnID, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Rooms returns the names of all live rooms in lexical order.
func (m *Membership) Rooms() []string {
	out := make([]string, 0, len(m.rooms))
	for name := range m.rooms {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

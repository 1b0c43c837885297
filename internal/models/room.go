package models

import (
	"fmt"
	"strconv"
	"strings"
)

// RoomKind is the purpose a room is joined for
type RoomKind string

const (
	RoomKindCall         RoomKind = "call"
	RoomKindVoice        RoomKind = "voice"
	RoomKindWhiteboard   RoomKind = "whiteboard"
	RoomKindConversation RoomKind = "conversation"
)

// PairCapacity is the member limit of paired rooms
const PairCapacity = 2

var roomPrefixes = map[RoomKind]string{
	RoomKindCall:         "call_",
	RoomKindVoice:        "call_voice_",
	RoomKindWhiteboard:   "whiteboard_",
	RoomKindConversation: "conversation_",
}

// Valid reports whether k is a known room kind.
func (k RoomKind) Valid() bool {
	_, ok := roomPrefixes[k]
	return ok
}

// Paired reports whether rooms of this kind hold exactly two parties and
// take part in readiness detection.
func (k RoomKind) Paired() bool {
	return k == RoomKindCall || k == RoomKindVoice || k == RoomKindWhiteboard
}

// Prefix returns the room name prefix of the kind.
func (k RoomKind) Prefix() string {
	return roomPrefixes[k]
}

// KindFromRoom infers the kind of a room from its name prefix.
func KindFromRoom(name string) (RoomKind, bool) {
	// call_voice_ must win over call_
	for _, k := range []RoomKind{RoomKindVoice, RoomKindCall, RoomKindWhiteboard, RoomKindConversation} {
		if strings.HasPrefix(name, k.Prefix()) && len(name) > len(k.Prefix()) {
			return k, true
		}
	}
	return "", false
}

// RoomName derives the room shared by two participants. Both sides compute the
// same name regardless of argument order.
func RoomName(kind RoomKind, a, b string) (string, error) {
	if !kind.Paired() {
		return "", fmt.Errorf("room kind %q is not a paired kind", kind)
	}
	if a == "" || b == "" {
		return "", fmt.Errorf("both participant ids are required")
	}
	lo, hi := SortPair(a, b)
	return kind.Prefix() + lo + "_" + hi, nil
}

// ConversationRoom returns the room name of a conversation.
func ConversationRoom(conversationID string) string {
	return RoomKindConversation.Prefix() + conversationID
}

// UserChannel returns the private channel name of a user.
func UserChannel(userID string) string {
	return "user_" + userID
}

// SortPair orders two identifiers ascending, numerically when both are integers.
func SortPair(a, b string) (string, string) {
	if lessID(b, a) {
		return b, a
	}
	return a, b
}

// Offerer returns which of the two participants initiates the offer: the lower id.
func Offerer(a, b string) string {
	lo, _ := SortPair(a, b)
	return lo
}

func lessID(a, b string) bool {
	ai, aErr := strconv.ParseInt(a, 10, 64)
	bi, bErr := strconv.ParseInt(b, 10, 64)
	if aErr == nil && bErr == nil {
		return ai < bi
	}
	return strings.Compare(a, b) < 0
}

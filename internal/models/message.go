package models

import "encoding/json"

// EventType names a signaling event on the WebSocket
type EventType string

// Inbound events
const (
	EventIdentify         EventType = "identify"
	EventJoinRoom         EventType = "join-room"
	EventLeaveRoom        EventType = "leave-room"
	EventReadyNudge       EventType = "ready-nudge"
	EventOffer            EventType = "offer"
	EventAnswer           EventType = "answer"
	EventICECandidate     EventType = "ice-candidate"
	EventWhiteboardStroke EventType = "whiteboard-stroke"
	EventWhiteboardClear  EventType = "whiteboard-clear"
	EventChatMessage      EventType = "chat-message"
)

// Outbound events
const (
	EventIdentified      EventType = "identified"
	EventBothReady       EventType = "both-ready"
	EventWaitingForPeer  EventType = "waiting-for-peer"
	EventNewMessage      EventType = "new-message"
	EventNewNotification EventType = "new-notification"
	EventError           EventType = "error"
)

// IsRelayed reports whether the event is forwarded verbatim to the other room members.
func (t EventType) IsRelayed() bool {
	switch t {
	case EventOffer, EventAnswer, EventICECandidate, EventWhiteboardStroke, EventWhiteboardClear:
		return true
	}
	return false
}

// Error codes carried in error events
const (
	ErrCodeBadMessage       = "bad-message"
	ErrCodeUnknownEvent     = "unknown-event"
	ErrCodeNotIdentified    = "not-identified"
	ErrCodeIdentityMismatch = "identity-mismatch"
	ErrCodeInvalidRoom      = "invalid-room"
	ErrCodeRoomFull         = "room-full"
	ErrCodeInternal         = "internal"
)

// Envelope is one JSON frame exchanged over the signaling WebSocket
type Envelope struct {
	Type    EventType       `json:"type"`
	Room    string          `json:"room,omitempty"`
	Kind    RoomKind        `json:"kind,omitempty"`
	PeerID  string          `json:"peerId,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Content string          `json:"content,omitempty"`
	Code    string          `json:"code,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ChatMessage is the payload of a new-message event
type ChatMessage struct {
	ID        string `json:"id"`
	Room      string `json:"room"`
	SenderID  string `json:"senderId"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

// Notification is pushed to a user's private channel by the service API
type Notification struct {
	ID        string `json:"id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Link      string `json:"link,omitempty"`
	CreatedAt string `json:"createdAt"`
}

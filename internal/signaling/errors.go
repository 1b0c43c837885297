package signaling

import (
	"errors"

	"github.com/mossy-p/skillswap-signaling/internal/models"
)

var (
	ErrHubClosed         = errors.New("hub is closed")
	ErrUnknownConnection = errors.New("unknown connection")
	ErrNotIdentified     = errors.New("connection is not identified")
	ErrInvalidUser       = errors.New("invalid user id")
	ErrIdentityMismatch  = errors.New("identity does not match the authenticated user")
	ErrInvalidRoom       = errors.New("invalid room")
	ErrRoomFull          = errors.New("room is full")
	ErrEmptyMessage      = errors.New("empty message")
	ErrUnsupportedEvent  = errors.New("unsupported event")
)

// ErrorCode maps an error returned by the Hub to the code sent in error events.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotIdentified):
		return models.ErrCodeNotIdentified
	case errors.Is(err, ErrIdentityMismatch):
		return models.ErrCodeIdentityMismatch
	case errors.Is(err, ErrInvalidRoom):
		return models.ErrCodeInvalidRoom
	case errors.Is(err, ErrRoomFull):
		return models.ErrCodeRoomFull
	case errors.Is(err, ErrInvalidUser), errors.Is(err, ErrEmptyMessage):
		return models.ErrCodeBadMessage
	case errors.Is(err, ErrUnsupportedEvent):
		return models.ErrCodeUnknownEvent
	}
	return models.ErrCodeInternal
}

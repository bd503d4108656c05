package room

import (
	"errors"
)

var (
	ErrSystemNotFound  = errors.New("room system not found")
	ErrSystemExists    = errors.New("trigger channel already has a room system")
	ErrRoomNotFound    = errors.New("room not found")
	ErrRoomExists      = errors.New("room already exists for voice channel")
	ErrNoModeratorRole = errors.New("moderator role is not configured")
	ErrForbidden       = errors.New("caller is not the room owner or a moderator")
	ErrInvalidName     = errors.New("invalid room name")
	ErrNotInRoom       = errors.New("caller is not in a room")
	ErrNotGuildMember  = errors.New("user is not a guild member")
	ErrSessionNotFound = errors.New("scheduled session not found")
	ErrNoAttendees     = errors.New("scheduled session has no attendees")

	// Returned by Platform implementations
	ErrNotFound           = errors.New("platform resource not found")
	ErrMemberDisconnected = errors.New("member is not connected to voice")
)

const genericApology = "Sorry, something went wrong on my side."

// UserError carries a message that is safe to show to the person who
// triggered the operation
type UserError struct {
	Message string
	Err     error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func userError(msg string, cause error) error {
	return &UserError{Message: msg, Err: cause}
}

// UserMessage turns any error returned by the Manager into a reply.
// Anything that is not a UserError becomes an apology pointing at support.
func UserMessage(err error, supportHint string) string {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue.Message
	}
	if supportHint == "" {
		return genericApology
	}
	return genericApology + " " + supportHint
}

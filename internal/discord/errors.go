package discord

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/rx3lixir/tempvoice/internal/room"
)

// Discord returns 40032 when moving a member that is not in voice
const errCodeTargetNotConnected = 40032

var notFoundCodes = map[int]bool{
	discordgo.ErrCodeUnknownChannel: true,
	discordgo.ErrCodeUnknownRole:    true,
	discordgo.ErrCodeUnknownMember:  true,
	discordgo.ErrCodeUnknownMessage: true,
	discordgo.ErrCodeUnknownUser:    true,
}

// translate maps discordgo errors onto the room package sentinels while
// keeping the original error in the chain
func translate(op string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, discordgo.ErrStateNotFound) {
		return fmt.Errorf("%s: %w: %w", op, room.ErrNotFound, err)
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			if restErr.Message.Code == errCodeTargetNotConnected {
				return fmt.Errorf("%s: %w: %w", op, room.ErrMemberDisconnected, err)
			}
			if notFoundCodes[restErr.Message.Code] {
				return fmt.Errorf("%s: %w: %w", op, room.ErrNotFound, err)
			}
		}
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return fmt.Errorf("%s: %w: %w", op, room.ErrNotFound, err)
		}
	}

	return fmt.Errorf("%s: %w", op, err)
}

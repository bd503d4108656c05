package schedule

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

const maxTitleLength = 100

var ErrInvalidSession = errors.New("invalid session")

type CreateSessionRequest struct {
	GuildID     string    `json:"guild_id"`
	Title       string    `json:"title"`
	Link        string    `json:"link"`
	SchedulerID string    `json:"scheduler_id"`
	StartsAt    time.Time `json:"starts_at"`
}

func (r *CreateSessionRequest) Validate() error {
	r.Title = strings.TrimSpace(r.Title)
	switch {
	case r.Title == "":
		return errors.Join(ErrInvalidSession, errors.New("title is required"))
	case utf8.RuneCountInString(r.Title) > maxTitleLength:
		return errors.Join(ErrInvalidSession, errors.New("title is too long"))
	case r.SchedulerID == "":
		return errors.Join(ErrInvalidSession, errors.New("scheduler_id is required"))
	case r.StartsAt.IsZero():
		return errors.Join(ErrInvalidSession, errors.New("starts_at is required"))
	}
	return nil
}

package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rx3lixir/tempvoice/internal/room"
)

const pgForeignKeyViolation = "23503"

// PostgresStore keeps scheduled sessions and their RSVPs. It is the
// room.AttendeeSource used by reminders.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool}
}

// CreateSession stores a new scheduled session
func (s *PostgresStore) CreateSession(ctx context.Context, req CreateSessionRequest) (*room.ScheduledSession, error) {
	query := `
		INSERT INTO scheduled_sessions (id, guild_id, title, link, scheduler_id, starts_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	session := &room.ScheduledSession{
		ID:          uuid.New(),
		GuildID:     req.GuildID,
		Title:       req.Title,
		Link:        req.Link,
		SchedulerID: req.SchedulerID,
		StartsAt:    req.StartsAt,
	}

	_, err := s.pool.Exec(ctx, query,
		session.ID,
		session.GuildID,
		session.Title,
		session.Link,
		session.SchedulerID,
		session.StartsAt,
		time.Now(),
	)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return session, nil
}

// Session retrieves a scheduled session by id
func (s *PostgresStore) Session(ctx context.Context, id uuid.UUID) (*room.ScheduledSession, error) {
	query := `
		SELECT id, guild_id, title, link, scheduler_id, starts_at
		FROM scheduled_sessions
		WHERE id = $1
	`
	session := &room.ScheduledSession{}
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&session.ID,
		&session.GuildID,
		&session.Title,
		&session.Link,
		&session.SchedulerID,
		&session.StartsAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, room.ErrSessionNotFound
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("operation cancelled: %w", ctx.Err())
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return session, nil
}

// ListUpcoming lists sessions of a guild that start after since
func (s *PostgresStore) ListUpcoming(ctx context.Context, guildID string, since time.Time) ([]*room.ScheduledSession, error) {
	query := `
		SELECT id, guild_id, title, link, scheduler_id, starts_at
		FROM scheduled_sessions
		WHERE guild_id = $1 AND starts_at >= $2
		ORDER BY starts_at ASC
	`
	rows, err := s.pool.Query(ctx, query, guildID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	defer rows.Close()

	sessions := []*room.ScheduledSession{}
	for rows.Next() {
		session := &room.ScheduledSession{}
		err := rows.Scan(
			&session.ID,
			&session.GuildID,
			&session.Title,
			&session.Link,
			&session.SchedulerID,
			&session.StartsAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sessions: %w", err)
	}

	return sessions, nil
}

// AddRSVP records that userID attends the session. Repeats are no-ops.
func (s *PostgresStore) AddRSVP(ctx context.Context, sessionID uuid.UUID, userID string) error {
	query := `
		INSERT INTO session_rsvps (session_id, user_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, user_id) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, query, sessionID, userID, time.Now())
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation {
			return room.ErrSessionNotFound
		}
		return fmt.Errorf("failed to add rsvp: %w", err)
	}
	return nil
}

// Attendees lists user ids that RSVPed, in RSVP order
func (s *PostgresStore) Attendees(ctx context.Context, sessionID uuid.UUID) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT user_id
		FROM session_rsvps
		WHERE session_id = $1
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendees: %w", err)
	}
	defer rows.Close()

	attendees := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan attendee: %w", err)
		}
		attendees = append(attendees, id)
	}

	return attendees, rows.Err()
}

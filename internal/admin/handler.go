package admin

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rx3lixir/tempvoice/internal/auth"
	"github.com/rx3lixir/tempvoice/internal/moderation"
	"github.com/rx3lixir/tempvoice/internal/room"
	"github.com/rx3lixir/tempvoice/internal/schedule"
	"github.com/rx3lixir/tempvoice/pkg/httputil"
)

type Handler struct {
	rooms     Rooms
	settings  moderation.Store
	sessions  Sessions
	archive   ArchiveReader
	auth      Authenticator
	log       *slog.Logger
	dbTimeout time.Duration
}

type Deps struct {
	Rooms    Rooms
	Settings moderation.Store
	Sessions Sessions
	// Archive may be nil when object storage is disabled
	Archive ArchiveReader
	Auth    Authenticator
}

func NewHandler(deps Deps, log *slog.Logger, dbTimeout time.Duration) *Handler {
	if dbTimeout == 0 {
		dbTimeout = time.Second * 5
	}
	return &Handler{
		rooms:     deps.Rooms,
		settings:  deps.Settings,
		sessions:  deps.Sessions,
		archive:   deps.Archive,
		auth:      deps.Auth,
		log:       log,
		dbTimeout: dbTimeout,
	}
}

// RegisterRoutes mounts the authenticated operator routes
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/guilds/{guildID}/systems", httputil.Handler(h.HandleListSystems, h.log))
	r.Post("/guilds/{guildID}/systems", httputil.Handler(h.HandleCreateSystem, h.log))
	r.Delete("/systems/{systemID}", httputil.Handler(h.HandleDeleteSystem, h.log))
	r.Get("/systems/{systemID}/rooms", httputil.Handler(h.HandleListRooms, h.log))

	r.Put("/guilds/{guildID}/moderator-role", httputil.Handler(h.HandleSetModeratorRole, h.log))
	r.Put("/guilds/{guildID}/support-channel", httputil.Handler(h.HandleSetSupportChannel, h.log))

	r.Get("/guilds/{guildID}/sessions", httputil.Handler(h.HandleListSessions, h.log))
	r.Post("/guilds/{guildID}/sessions", httputil.Handler(h.HandleCreateSession, h.log))
	r.Post("/sessions/{sessionID}/rsvps", httputil.Handler(h.HandleAddRSVP, h.log))

	r.Get("/archive", httputil.Handler(h.HandleListArchive, h.log))
	r.Post("/reconcile", httputil.Handler(h.HandleReconcile, h.log))
}

func (h *Handler) dbCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), h.dbTimeout)
}

// HandleLogin exchanges the admin credentials for an access token
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) error {
	req := new(LoginRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}

	token, expiresAt, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			h.log.Warn("failed admin login", "username", req.Username)
			return httputil.Unauthorized("Invalid username or password")
		}
		return httputil.Internal(err)
	}

	h.log.Info("admin logged in", "username", req.Username)

	return httputil.RespondJSON(w, http.StatusOK, TokenResponse{
		AccessToken: token,
		ExpiresAt:   expiresAt,
	})
}

func (h *Handler) HandleCreateSystem(w http.ResponseWriter, r *http.Request) error {
	guildID, err := httputil.URLParam(r, "guildID")
	if err != nil {
		return err
	}

	req := new(CreateSystemRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}
	if req.TriggerChannelID == "" || req.ParentID == "" {
		return httputil.BadRequest("trigger_channel_id and parent_id are required")
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	system, err := h.rooms.CreateSystem(ctx, guildID, req.TriggerChannelID, req.ParentID)
	if err != nil {
		if errors.Is(err, room.ErrSystemExists) {
			return httputil.Conflict("Trigger channel already has a room system")
		}
		return httputil.Internal(err)
	}

	return httputil.RespondJSON(w, http.StatusCreated, SystemResponse{System: system})
}

func (h *Handler) HandleListSystems(w http.ResponseWriter, r *http.Request) error {
	guildID, err := httputil.URLParam(r, "guildID")
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	systems, err := h.rooms.ListSystems(ctx, guildID)
	if err != nil {
		return httputil.Internal(err)
	}
	if systems == nil {
		systems = []*room.RoomSystem{}
	}

	return httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"systems": systems,
		"count":   len(systems),
	})
}

// HandleDeleteSystem tears down every room of the system, occupied or not.
// The platform calls can be slow so it gets a longer deadline than plain reads.
func (h *Handler) HandleDeleteSystem(w http.ResponseWriter, r *http.Request) error {
	systemID, err := httputil.ParseUUID(r, "systemID")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(r.Context(), 6*h.dbTimeout)
	defer cancel()

	if err := h.rooms.DeleteSystem(ctx, systemID); err != nil {
		if errors.Is(err, room.ErrSystemNotFound) {
			return httputil.NotFound("Room system not found")
		}
		return httputil.Internal(err)
	}

	h.log.Info("room system deleted via admin api", "system_id", systemID)

	return httputil.RespondNoContent(w)
}

func (h *Handler) HandleListRooms(w http.ResponseWriter, r *http.Request) error {
	systemID, err := httputil.ParseUUID(r, "systemID")
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	rooms, err := h.rooms.ListRooms(ctx, systemID)
	if err != nil {
		if errors.Is(err, room.ErrSystemNotFound) {
			return httputil.NotFound("Room system not found")
		}
		return httputil.Internal(err)
	}
	if rooms == nil {
		rooms = []*room.Room{}
	}

	return httputil.RespondJSON(w, http.StatusOK, RoomsResponse{Rooms: rooms, Count: len(rooms)})
}

func (h *Handler) HandleSetModeratorRole(w http.ResponseWriter, r *http.Request) error {
	guildID, err := httputil.URLParam(r, "guildID")
	if err != nil {
		return err
	}

	req := new(SetRoleRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}
	if req.RoleID == "" {
		return httputil.BadRequest("role_id is required")
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	settings, err := h.settings.SetModeratorRole(ctx, guildID, req.RoleID)
	if err != nil {
		return httputil.Internal(err)
	}

	h.log.Info("moderator role updated",
		"guild_id", guildID,
		"role_id", req.RoleID)

	return httputil.RespondJSON(w, http.StatusOK, settings)
}

func (h *Handler) HandleSetSupportChannel(w http.ResponseWriter, r *http.Request) error {
	guildID, err := httputil.URLParam(r, "guildID")
	if err != nil {
		return err
	}

	req := new(SetChannelRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}
	if req.ChannelID == "" {
		return httputil.BadRequest("channel_id is required")
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	settings, err := h.settings.SetSupportChannel(ctx, guildID, req.ChannelID)
	if err != nil {
		return httputil.Internal(err)
	}

	return httputil.RespondJSON(w, http.StatusOK, settings)
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) error {
	guildID, err := httputil.URLParam(r, "guildID")
	if err != nil {
		return err
	}

	req := new(schedule.CreateSessionRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}
	req.GuildID = guildID

	if err := req.Validate(); err != nil {
		return httputil.BadRequest("Invalid session", err.Error())
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	session, err := h.sessions.CreateSession(ctx, *req)
	if err != nil {
		return httputil.Internal(err)
	}

	h.log.Info("session scheduled",
		"session_id", session.ID,
		"guild_id", guildID,
		"starts_at", session.StartsAt)

	return httputil.RespondJSON(w, http.StatusCreated, session)
}

// HandleListSessions lists sessions that start from now on
func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) error {
	guildID, err := httputil.URLParam(r, "guildID")
	if err != nil {
		return err
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	sessions, err := h.sessions.ListUpcoming(ctx, guildID, time.Now())
	if err != nil {
		return httputil.Internal(err)
	}
	if sessions == nil {
		sessions = []*room.ScheduledSession{}
	}

	return httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

func (h *Handler) HandleAddRSVP(w http.ResponseWriter, r *http.Request) error {
	sessionID, err := httputil.ParseUUID(r, "sessionID")
	if err != nil {
		return err
	}

	req := new(RSVPRequest)
	if err := httputil.DecodeJSON(r, req); err != nil {
		return err
	}
	if req.UserID == "" {
		return httputil.BadRequest("user_id is required")
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	if err := h.sessions.AddRSVP(ctx, sessionID, req.UserID); err != nil {
		if errors.Is(err, room.ErrSessionNotFound) {
			return httputil.NotFound("Session not found")
		}
		return httputil.Internal(err)
	}

	return httputil.RespondNoContent(w)
}

// HandleListArchive returns archived session records for one UTC day,
// ?date=2006-01-02 with an optional &guild_id= filter
func (h *Handler) HandleListArchive(w http.ResponseWriter, r *http.Request) error {
	if h.archive == nil {
		return httputil.NotFound("Session archive is disabled")
	}

	dateStr := strings.TrimSpace(r.URL.Query().Get("date"))
	if dateStr == "" {
		return httputil.BadRequest("date parameter required")
	}
	day, err := time.Parse(time.DateOnly, dateStr)
	if err != nil {
		return httputil.BadRequest("date must look like 2006-01-02")
	}

	ctx, cancel := h.dbCtx(r)
	defer cancel()

	records, err := h.archive.ListDay(ctx, day, r.URL.Query().Get("guild_id"))
	if err != nil {
		return httputil.Internal(err)
	}
	if records == nil {
		records = []room.SessionRecord{}
	}

	return httputil.RespondJSON(w, http.StatusOK, map[string]any{
		"records": records,
		"count":   len(records),
	})
}

// HandleReconcile runs one sweep right away instead of waiting for the worker
func (h *Handler) HandleReconcile(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 12*h.dbTimeout)
	defer cancel()

	report, err := h.rooms.Reconcile(ctx)
	if err != nil {
		return httputil.Internal(err)
	}

	h.log.Info("manual reconcile finished",
		"checked", report.Checked,
		"torn_down", report.TornDown,
		"failed", report.Failed)

	return httputil.RespondJSON(w, http.StatusOK, report)
}

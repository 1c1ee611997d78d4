package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/playtime-tracker/internal/backup"
	"github.com/playtime-tracker/internal/config"
	"github.com/playtime-tracker/internal/domain"
	"github.com/playtime-tracker/internal/leaderboard"
	"github.com/playtime-tracker/internal/presence"
	"github.com/playtime-tracker/internal/tracker"
	"github.com/playtime-tracker/internal/websocket"
)

// Handler provides HTTP handlers for the play time API
type Handler struct {
	tracker    *tracker.Service
	aggregator *leaderboard.Aggregator
	snapshots  *leaderboard.SnapshotStore
	backups    *backup.Service
	settings   *config.Manager
	presence   *presence.Registry
	hub        *websocket.Hub
	clock      quartz.Clock
	logger     *slog.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(
	trk *tracker.Service,
	aggregator *leaderboard.Aggregator,
	snapshots *leaderboard.SnapshotStore,
	backups *backup.Service,
	settings *config.Manager,
	registry *presence.Registry,
	hub *websocket.Hub,
	clock quartz.Clock,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		tracker:    trk,
		aggregator: aggregator,
		snapshots:  snapshots,
		backups:    backups,
		settings:   settings,
		presence:   registry,
		hub:        hub,
		clock:      clock,
		logger:     logger,
	}
}

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Router creates and configures the HTTP router
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)

	// Health check
	r.Get("/health", h.HealthCheck)
	r.Get("/ready", h.ReadyCheck)

	// WebSocket endpoint
	r.Get("/ws", h.HandleWebSocket)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/players", func(r chi.Router) {
			r.Get("/", h.ListOnline)

			r.Route("/{playerID}", func(r chi.Router) {
				r.Post("/join", h.Join)
				r.Post("/leave", h.Leave)
				r.Post("/move", h.Move)
				r.Post("/interact", h.Interact)

				r.Get("/playtime/{category}", h.GetPlaytime)
				r.Put("/playtime/{category}", h.SetPlaytime)
				r.Post("/playtime/{category}/add", h.AddPlaytime)
				r.Post("/playtime/{category}/remove", h.RemovePlaytime)
				r.Post("/playtime/{category}/reset", h.ResetPlaytime)

				r.Put("/exempt", h.SetExempt)
				r.Put("/hidden", h.SetHidden)
				r.Post("/afk/toggle", h.ToggleAFK)
			})
		})

		r.Route("/leaderboards/{category}", func(r chi.Router) {
			r.Get("/", h.GetLeaderboard)
			r.Get("/durable", h.GetDurableLeaderboard)
			r.Get("/position/{n}", h.GetPosition)
			r.Post("/snapshot", h.CreateSnapshot)
		})

		r.Get("/snapshots", h.ListSnapshots)
		r.Get("/snapshots/{name}", h.GetSnapshot)

		r.Route("/admin", func(r chi.Router) {
			r.Post("/backup", h.BackupNow)
			r.Post("/reload", h.ReloadSettings)
			r.Post("/reset", h.ResetAll)
			r.Post("/save", h.SaveAll)
		})

		// WebSocket info endpoint
		r.Get("/ws/stats", h.GetWebSocketStats)
	})

	return r
}

// corsMiddleware adds CORS headers
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-Request-ID")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response
func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeSuccess writes a successful JSON response
func (h *Handler) writeSuccess(w http.ResponseWriter, data interface{}) {
	h.writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// writeError writes an error JSON response
func (h *Handler) writeError(w http.ResponseWriter, status int, err error) {
	h.writeJSON(w, status, APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// writeDomainError maps a domain error onto an HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFoundError(err) || errors.Is(err, domain.ErrPositionOutOfRange):
		h.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrUnknownCategory) || errors.Is(err, domain.ErrNegativeSeconds) ||
		errors.Is(err, domain.ErrInvalidRequest):
		h.writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrConfigInvalid):
		h.writeError(w, http.StatusServiceUnavailable, err)
	default:
		h.logger.Error("request failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, domain.ErrInternalError)
	}
}

// playerID extracts and parses the player id path parameter.
func (h *Handler) playerID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "playerID"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return uuid.Nil, false
	}
	return id, true
}

// category extracts and parses the category path parameter.
func (h *Handler) category(w http.ResponseWriter, r *http.Request) (domain.Category, bool) {
	category, err := domain.ParseCategory(chi.URLParam(r, "category"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return "", false
	}
	return category, true
}

// HandleWebSocket handles WebSocket upgrade requests
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.ServeWs(h.hub, h.logger, w, r)
}

// GetWebSocketStats returns WebSocket connection statistics
func (h *Handler) GetWebSocketStats(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]interface{}{
		"total_connections": h.hub.GetTotalConnections(),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, map[string]string{"status": "healthy"})
}

// ReadyCheck returns service readiness status
func (h *Handler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	if _, err := h.settings.Current(); err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "ready"})
}

// ListOnline returns the currently online players.
func (h *Handler) ListOnline(w http.ResponseWriter, r *http.Request) {
	h.writeSuccess(w, h.presence.Online())
}

// Join loads a player into the session cache.
func (h *Handler) Join(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}

	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	record, err := h.tracker.Load(r.Context(), id, req.Name)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"player_id": record.ID,
		"name":      record.Name,
	})
}

// Leave persists and unloads a player.
func (h *Handler) Leave(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}

	if err := h.tracker.Unload(r.Context(), id); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "unloaded"})
}

// Move records a movement observation.
func (h *Handler) Move(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}

	var req struct {
		From domain.BlockPos `json:"from"`
		To   domain.BlockPos `json:"to"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	h.tracker.RecordMovement(id, req.From, req.To)
	h.writeSuccess(w, map[string]string{"status": "recorded"})
}

// Interact records an interaction observation.
func (h *Handler) Interact(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}

	h.tracker.RecordInteraction(id)
	h.writeSuccess(w, map[string]string{"status": "recorded"})
}

// GetPlaytime returns a player's counter for a category.
func (h *Handler) GetPlaytime(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	seconds, err := h.tracker.Playtime(id, category)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, map[string]interface{}{
		"category": category,
		"seconds":  seconds,
	})
}

type secondsRequest struct {
	Seconds int64 `json:"seconds"`
}

// AddPlaytime adds seconds to a player's category.
func (h *Handler) AddPlaytime(w http.ResponseWriter, r *http.Request) {
	h.adjustPlaytime(w, r, h.tracker.AddPlaytime)
}

// RemovePlaytime subtracts seconds from a player's category.
func (h *Handler) RemovePlaytime(w http.ResponseWriter, r *http.Request) {
	h.adjustPlaytime(w, r, h.tracker.RemovePlaytime)
}

func (h *Handler) adjustPlaytime(w http.ResponseWriter, r *http.Request, op func(uuid.UUID, domain.Category, int64) error) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	var req secondsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := op(id, category, req.Seconds); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "applied"})
}

// SetPlaytime assigns a player's category counter.
func (h *Handler) SetPlaytime(w http.ResponseWriter, r *http.Request) {
	h.adjustPlaytime(w, r, h.tracker.SetPlaytime)
}

// ResetPlaytime zeroes a player's category.
func (h *Handler) ResetPlaytime(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	if err := h.tracker.ResetPlaytime(id, category); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "reset"})
}

// SetExempt flips a player's leaderboard exemption.
func (h *Handler) SetExempt(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}

	var req struct {
		Exempt bool `json:"exempt"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.tracker.SetExempt(id, req.Exempt); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]interface{}{"exempt": req.Exempt})
}

// SetHidden flips a player's vanish flag.
func (h *Handler) SetHidden(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}

	var req struct {
		Hidden bool `json:"hidden"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	h.presence.SetHidden(id, req.Hidden)
	h.writeSuccess(w, map[string]interface{}{"hidden": req.Hidden})
}

// ToggleAFK flips a player's AFK state.
func (h *Handler) ToggleAFK(w http.ResponseWriter, r *http.Request) {
	id, ok := h.playerID(w, r)
	if !ok {
		return
	}

	result := h.tracker.ToggleAFK(id)
	switch result {
	case domain.ToggleError:
		h.writeError(w, http.StatusNotFound, domain.ErrNoPlayerData)
	case domain.ToggleConfigError:
		h.writeError(w, http.StatusServiceUnavailable, domain.ErrConfigInvalid)
	default:
		h.writeSuccess(w, map[string]interface{}{"result": result})
	}
}

// GetLeaderboard returns a category's combined standings.
func (h *Handler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	top, err := h.aggregator.Combined(category)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, LeaderboardResponse{
		Category:  category.Resolve(),
		Positions: top.Positions(),
	})
}

// LeaderboardResponse is the wire shape of a leaderboard view.
type LeaderboardResponse struct {
	Category  domain.Category   `json:"category"`
	Positions []domain.Position `json:"positions"`
}

// GetDurableLeaderboard returns a category's durable-only standings.
func (h *Handler) GetDurableLeaderboard(w http.ResponseWriter, r *http.Request) {
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	positions, err := h.aggregator.Durable(category)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeSuccess(w, LeaderboardResponse{
		Category:  category.Resolve(),
		Positions: positions,
	})
}

// GetPosition returns the n-th combined entry of a category.
func (h *Handler) GetPosition(w http.ResponseWriter, r *http.Request) {
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	position, err := h.aggregator.PositionAt(category, n)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, position)
}

// CreateSnapshot writes a snapshot of a category's combined standings.
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	category, ok := h.category(w, r)
	if !ok {
		return
	}

	name, err := h.aggregator.Snapshot(category)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	h.writeJSON(w, http.StatusCreated, APIResponse{
		Success: true,
		Data:    map[string]string{"snapshot": name},
	})
}

// ListSnapshots enumerates available snapshot identities.
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	names, err := h.snapshots.List()
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, names)
}

// GetSnapshot returns a stored snapshot by exact name.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.snapshots.Load(chi.URLParam(r, "name"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, snapshot)
}

// BackupNow exports the durable store immediately.
func (h *Handler) BackupNow(w http.ResponseWriter, r *http.Request) {
	if err := h.backups.BackupNow(r.Context()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "backed_up"})
}

// ReloadSettings re-reads the settings file.
func (h *Handler) ReloadSettings(w http.ResponseWriter, r *http.Request) {
	if err := h.settings.Load(); err != nil {
		h.writeError(w, http.StatusBadRequest, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "reloaded"})
}

// ResetAll runs the full reset sequence for a category across every
// player.
func (h *Handler) ResetAll(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Category domain.Category `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Category.Valid() {
		h.writeError(w, http.StatusBadRequest, domain.ErrInvalidRequest)
		return
	}

	if err := h.tracker.ExecuteReset(r.Context(), req.Category.Expand(), h.clock.Now()); err != nil {
		h.writeDomainError(w, err)
		return
	}
	h.writeSuccess(w, map[string]string{"status": "reset"})
}

// SaveAll persists every loaded record and reports per-player success.
func (h *Handler) SaveAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.tracker.SaveAll(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	saved, failed := 0, 0
	for _, ok := range results {
		if ok {
			saved++
		} else {
			failed++
		}
	}
	h.writeSuccess(w, map[string]int{"saved": saved, "failed": failed})
}

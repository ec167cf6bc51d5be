package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pokerforge/tourney/internal/store"
	"github.com/pokerforge/tourney/internal/tournament"
)

// Admin is the operator-facing HTTP API: tournament lifecycle, registration
// on behalf of users, and blind-level overrides.
type Admin struct {
	logger  *log.Logger
	gateway *Gateway
	runCtx  context.Context

	httpServer *http.Server
}

// NewAdmin creates the admin API. runCtx is the lifetime given to controllers
// created through this API.
func NewAdmin(addr string, logger *log.Logger, gateway *Gateway, runCtx context.Context) *Admin {
	a := &Admin{
		logger:  logger.WithPrefix("admin"),
		gateway: gateway,
		runCtx:  runCtx,
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /tournaments", a.handleList)
	mux.HandleFunc("POST /tournaments", a.handleCreate)
	mux.HandleFunc("GET /tournaments/{id}", a.handleGet)
	mux.HandleFunc("POST /tournaments/{id}/open-registration", a.lifecycle(func(ctx context.Context, c *tournament.Controller) error {
		return c.OpenRegistration(ctx)
	}))
	mux.HandleFunc("POST /tournaments/{id}/close-registration", a.lifecycle(func(ctx context.Context, c *tournament.Controller) error {
		return c.CloseRegistration(ctx)
	}))
	mux.HandleFunc("POST /tournaments/{id}/start", a.lifecycle(func(ctx context.Context, c *tournament.Controller) error {
		return c.Start(ctx)
	}))
	mux.HandleFunc("POST /tournaments/{id}/cancel", a.lifecycle(func(ctx context.Context, c *tournament.Controller) error {
		return c.Cancel(ctx)
	}))
	mux.HandleFunc("POST /tournaments/{id}/advance-blind", a.lifecycle(func(ctx context.Context, c *tournament.Controller) error {
		return c.ForceAdvanceBlinds(ctx)
	}))
	mux.HandleFunc("POST /tournaments/{id}/register", a.handleRegister)
	a.httpServer = &http.Server{Addr: addr, Handler: mux}
	return a
}

// Handler exposes the mux, mainly for tests.
func (a *Admin) Handler() http.Handler { return a.httpServer.Handler }

// Start runs the admin listener. It blocks.
func (a *Admin) Start() error {
	a.logger.Info("starting admin server", "addr", a.httpServer.Addr)
	if err := a.httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the admin listener down.
func (a *Admin) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return a.httpServer.Shutdown(ctx)
}

// CreateTournamentRequest is the POST /tournaments body.
type CreateTournamentRequest struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	MaxPlayers    int           `json:"max_players"`
	SeatsPerTable int           `json:"seats_per_table"`
	StartingChips int           `json:"starting_chips"`
	PrizePlaces   int           `json:"prize_places"`
	Levels        []LevelConfig `json:"levels"`
}

// RegisterRequest is the POST /tournaments/{id}/register body.
type RegisterRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	IsBot  bool   `json:"is_bot"`
}

func (a *Admin) handleHealth(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *Admin) handleList(w http.ResponseWriter, r *http.Request) {
	var out []tournament.Snapshot
	for _, ctrl := range a.gateway.Tournaments() {
		snap, err := ctrl.Snapshot(r.Context())
		if err != nil {
			a.writeError(w, err)
			return
		}
		out = append(out, snap)
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *Admin) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req CreateTournamentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	schedule := make(tournament.Schedule, len(req.Levels))
	for i, lvl := range req.Levels {
		schedule[i] = tournament.BlindLevel{
			SmallBlind: lvl.SmallBlind,
			BigBlind:   lvl.BigBlind,
			Duration:   time.Duration(lvl.DurationSeconds) * time.Second,
			BreakAfter: time.Duration(lvl.BreakAfterSeconds) * time.Second,
		}
	}
	cfg := tournament.Config{
		ID:            req.ID,
		Name:          req.Name,
		MaxPlayers:    req.MaxPlayers,
		SeatsPerTable: req.SeatsPerTable,
		StartingChips: req.StartingChips,
		PrizePlaces:   req.PrizePlaces,
		Schedule:      schedule,
	}
	ctrl, err := a.gateway.CreateTournament(a.runCtx, cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, err := ctrl.Snapshot(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.logger.Info("tournament created", "id", req.ID, "name", req.Name)
	a.writeJSON(w, http.StatusCreated, snap)
}

func (a *Admin) handleGet(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.gateway.Tournament(r.PathValue("id"))
	if !ok {
		http.Error(w, "tournament not found", http.StatusNotFound)
		return
	}
	snap, err := ctrl.Snapshot(r.Context())
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, snap)
}

func (a *Admin) handleRegister(w http.ResponseWriter, r *http.Request) {
	ctrl, ok := a.gateway.Tournament(r.PathValue("id"))
	if !ok {
		http.Error(w, "tournament not found", http.StatusNotFound)
		return
	}
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.UserID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		req.Name = req.UserID
	}
	err := ctrl.Register(r.Context(), tournament.Player{
		UserID: req.UserID,
		Name:   req.Name,
		IsBot:  req.IsBot,
	})
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "registered"})
}

// lifecycle wraps a controller operation that takes no body.
func (a *Admin) lifecycle(op func(context.Context, *tournament.Controller) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctrl, ok := a.gateway.Tournament(r.PathValue("id"))
		if !ok {
			http.Error(w, "tournament not found", http.StatusNotFound)
			return
		}
		if err := op(r.Context(), ctrl); err != nil {
			a.writeError(w, err)
			return
		}
		snap, err := ctrl.Snapshot(r.Context())
		if err != nil {
			a.writeError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, snap)
	}
}

func (a *Admin) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("failed to encode response", "error", err)
	}
}

func (a *Admin) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, tournament.ErrInvalidState),
		errors.Is(err, tournament.ErrTournamentFull),
		errors.Is(err, tournament.ErrInsufficientPlayers):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

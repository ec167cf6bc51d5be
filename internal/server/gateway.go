package server

import (
	"context"
	"fmt"
	rand "math/rand/v2"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/pokerforge/tourney/internal/broadcast"
	"github.com/pokerforge/tourney/internal/game"
	"github.com/pokerforge/tourney/internal/gameid"
	"github.com/pokerforge/tourney/internal/store"
	"github.com/pokerforge/tourney/internal/table"
	"github.com/pokerforge/tourney/internal/timer"
	"github.com/pokerforge/tourney/internal/tournament"
)

// Gateway owns the tournament controllers and connects them to the
// broadcast hub: table events become per-viewer wire messages, client
// commands are routed to the right actor.
type Gateway struct {
	logger *log.Logger
	hub    *broadcast.Hub
	timers *timer.Service
	ids    *gameid.Generator
	store  store.Repository
	rng    *rand.Rand

	mu          sync.RWMutex
	tournaments map[string]*tournament.Controller
}

// NewGateway creates a gateway. store may be nil to run without persistence.
func NewGateway(logger *log.Logger, hub *broadcast.Hub, timers *timer.Service,
	ids *gameid.Generator, repo store.Repository, rng *rand.Rand) *Gateway {
	return &Gateway{
		logger:      logger.WithPrefix("gateway"),
		hub:         hub,
		timers:      timers,
		ids:         ids,
		store:       repo,
		rng:         rng,
		tournaments: make(map[string]*tournament.Controller),
	}
}

// CreateTournament builds and starts a controller for the given settings.
// The returned controller is SCHEDULED; lifecycle operations drive it from
// there.
func (g *Gateway) CreateTournament(ctx context.Context, cfg tournament.Config) (*tournament.Controller, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.tournaments[cfg.ID]; ok {
		return nil, fmt.Errorf("tournament %s already exists", cfg.ID)
	}

	fan := &fanout{g: g, tournamentID: cfg.ID}
	cfg.Logger = g.logger
	cfg.Timers = g.timers
	cfg.IDs = g.ids
	cfg.Store = g.store
	cfg.Observer = fan
	cfg.TableListener = fan
	if cfg.RNG == nil {
		cfg.RNG = rand.New(rand.NewPCG(g.rng.Uint64(), g.rng.Uint64()))
	}

	ctrl, err := tournament.NewController(cfg)
	if err != nil {
		return nil, err
	}
	g.tournaments[cfg.ID] = ctrl
	go ctrl.Run(ctx)
	return ctrl, nil
}

// Tournament looks up a controller by id.
func (g *Gateway) Tournament(id string) (*tournament.Controller, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ctrl, ok := g.tournaments[id]
	return ctrl, ok
}

// Tournaments returns all controllers ordered by id.
func (g *Gateway) Tournaments() []*tournament.Controller {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := make([]string, 0, len(g.tournaments))
	for id := range g.tournaments {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*tournament.Controller, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.tournaments[id])
	}
	return out
}

// findTable resolves a table id to its actor and owning tournament.
func (g *Gateway) findTable(ctx context.Context, tableID string) (*table.Table, string, error) {
	for _, ctrl := range g.Tournaments() {
		if tbl, err := ctrl.TableByID(ctx, tableID); err == nil {
			return tbl, ctrl.ID(), nil
		}
	}
	return nil, "", fmt.Errorf("table %s: %w", tableID, store.ErrNotFound)
}

// Register enters a user into a tournament and subscribes them to its state
// feed.
func (g *Gateway) Register(ctx context.Context, tournamentID string, p tournament.Player, sub broadcast.Subscriber) error {
	ctrl, ok := g.Tournament(tournamentID)
	if !ok {
		return store.ErrNotFound
	}
	if err := ctrl.Register(ctx, p); err != nil {
		return err
	}
	snap, err := ctrl.Snapshot(ctx)
	if err != nil {
		return err
	}
	g.hub.Subscribe(tournamentID, sub, func(string) any {
		return mustMessage(MessageTypeTournamentState, tournamentStateData(snap))
	})
	return nil
}

// Unregister withdraws a user while registration is open.
func (g *Gateway) Unregister(ctx context.Context, tournamentID, userID string) error {
	ctrl, ok := g.Tournament(tournamentID)
	if !ok {
		return store.ErrNotFound
	}
	if err := ctrl.Unregister(ctx, userID); err != nil {
		return err
	}
	g.hub.Unsubscribe(tournamentID, userID)
	return nil
}

// SubscribeTable attaches a viewer to a table's event feed, delivering a
// redacted snapshot first.
func (g *Gateway) SubscribeTable(ctx context.Context, tableID string, sub broadcast.Subscriber) error {
	tbl, tournamentID, err := g.findTable(ctx, tableID)
	if err != nil {
		return err
	}
	state, err := tbl.Snapshot(ctx)
	if err != nil {
		return err
	}
	g.hub.Subscribe(tableID, sub, func(viewerID string) any {
		return mustMessage(MessageTypeTableState, tableStateData(tournamentID, state, viewerID, nil))
	})
	return nil
}

// UnsubscribeTable detaches a viewer from a table feed.
func (g *Gateway) UnsubscribeTable(tableID, viewerID string) {
	g.hub.Unsubscribe(tableID, viewerID)
}

// SubmitAction routes a player action to the table actor.
func (g *Gateway) SubmitAction(ctx context.Context, tableID, userID string, action game.Action, amount int) error {
	tbl, _, err := g.findTable(ctx, tableID)
	if err != nil {
		return err
	}
	return tbl.SubmitAction(ctx, userID, action, amount)
}

// tableStateData converts a table snapshot into the wire shape, redacted for
// one viewer: hole cards appear only for the viewer's own seat or seats in
// the reveal set.
func tableStateData(tournamentID string, state table.State, viewerID string, revealed map[int]bool) *TableStateData {
	out := &TableStateData{
		TableID:         state.TableID,
		TournamentID:    tournamentID,
		TableNumber:     state.TableNumber,
		Street:          state.Street,
		Pot:             state.Pot,
		CurrentBet:      state.CurrentBet,
		MinimumRaise:    state.MinRaise,
		SmallBlind:      state.SmallBlind,
		BigBlind:        state.BigBlind,
		DealerSeat:      state.DealerSeat,
		SBSeat:          state.SBSeat,
		BBSeat:          state.BBSeat,
		CurrentTurnSeat: state.CurrentTurn,
		CommunityCards:  state.Board,
	}
	for _, seat := range state.Seats {
		view := SeatState{
			SeatNumber:   seat.Number,
			UserID:       seat.UserID,
			DisplayName:  seat.Name,
			Chips:        seat.Chips,
			Status:       seat.Status,
			Contribution: seat.Bet,
		}
		if seat.UserID == viewerID || revealed[seat.Number] {
			view.HoleCards = seat.HoleCards
		}
		out.Seats = append(out.Seats, view)
	}
	return out
}

func tournamentStateData(snap tournament.Snapshot) TournamentStateData {
	return TournamentStateData{
		ID:               snap.ID,
		Status:           snap.Status,
		CurrentLevel:     snap.Level,
		RemainingPlayers: snap.Remaining,
		Standings:        snap.Standings,
	}
}

// fanout turns one tournament's events into hub publications. Its methods
// run on table and controller goroutines; the hub is safe for that.
type fanout struct {
	g            *Gateway
	tournamentID string
}

func (f *fanout) clock() quartz.Clock { return f.g.timers.Clock() }

func (f *fanout) HandStarted(ev table.HandStartEvent) {
	f.g.hub.PublishEach(ev.TableID, func(viewerID string) any {
		return mustMessage(MessageTypeTableState, tableStateData(f.tournamentID, ev.State, viewerID, nil))
	})
}

func (f *fanout) TurnBegan(ev table.TurnEvent) {
	f.g.hub.Publish(ev.TableID, mustMessage(MessageTypeTurnBegin, TurnBeginData{
		TableID:        ev.TableID,
		UserID:         ev.UserID,
		DeadlineEpochs: ev.Deadline.UnixMilli(),
		DurationMS:     ev.Deadline.Sub(f.clock().Now()).Milliseconds(),
		Countdown:      ev.Countdown,
	}))
}

func (f *fanout) ActionApplied(ev table.ActionEvent) {
	f.g.hub.PublishEach(ev.TableID, func(viewerID string) any {
		return mustMessage(MessageTypeActionApplied, ActionAppliedData{
			TableID: ev.TableID,
			UserID:  ev.UserID,
			Action:  ev.Action,
			Amount:  ev.Amount,
			Auto:    ev.Auto,
			State:   tableStateData(f.tournamentID, ev.State, viewerID, nil),
		})
	})
}

func (f *fanout) StreetDealt(ev table.StreetEvent) {
	f.g.hub.Publish(ev.TableID, mustMessage(MessageTypeStreetDealt, StreetDealtData{
		TableID:        ev.TableID,
		Street:         ev.Street,
		CommunityCards: ev.Board,
		Pot:            ev.Pot,
	}))
}

func (f *fanout) HandEnded(ev table.HandEndEvent) {
	if ev.Result == nil {
		return
	}
	result := HandResultData{TableID: ev.TableID}
	revealed := map[int]bool{}
	for _, w := range ev.Result.Winners {
		result.Winners = append(result.Winners, HandWinner{
			UserID: w.UserID, Amount: w.Amount, Category: w.Category,
		})
	}
	for _, r := range ev.Result.Reveals {
		revealed[r.SeatNumber] = true
		result.Reveals = append(result.Reveals, HandReveal{UserID: r.UserID, Cards: r.Cards})
	}
	f.g.hub.Publish(ev.TableID, mustMessage(MessageTypeHandResult, result))

	// Final state of the hand, with showdown hands face up.
	f.g.hub.PublishEach(ev.TableID, func(viewerID string) any {
		return mustMessage(MessageTypeTableState, tableStateData(f.tournamentID, ev.State, viewerID, revealed))
	})
}

func (f *fanout) TournamentChanged(snap tournament.Snapshot) {
	msg := mustMessage(MessageTypeTournamentState, tournamentStateData(snap))
	f.g.hub.Publish(f.tournamentID, msg)

	// Terminal states reach table viewers too, then their topics close.
	if snap.Status == "cancelled" || snap.Status == "completed" {
		for _, info := range snap.Tables {
			f.g.hub.Publish(info.ID, msg)
			f.g.hub.CloseTopic(info.ID)
		}
	}
}

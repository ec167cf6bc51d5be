package tournament

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"sort"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/pokerforge/tourney/internal/game"
	"github.com/pokerforge/tourney/internal/gameid"
	"github.com/pokerforge/tourney/internal/store"
	"github.com/pokerforge/tourney/internal/table"
	"github.com/pokerforge/tourney/internal/timer"
)

var (
	ErrInvalidState        = errors.New("operation not valid in current tournament state")
	ErrTournamentFull      = errors.New("tournament is full")
	ErrInsufficientPlayers = errors.New("not enough players to start")
	ErrNotRegistered       = errors.New("user is not registered")
)

// Status is the tournament lifecycle state.
type Status int

const (
	Scheduled Status = iota
	Registering
	Seated
	Running
	Completed
	Cancelled
)

func (s Status) String() string {
	return [...]string{"scheduled", "registering", "seated", "running", "completed", "cancelled"}[s]
}

// Player is a registrant.
type Player struct {
	UserID string
	Name   string
	IsBot  bool
}

// Standing is one place in the final result, champion first.
type Standing struct {
	Place  int    `json:"place"`
	UserID string `json:"user_id"`
}

// TableInfo summarises one active table for snapshots.
type TableInfo struct {
	Number  int    `json:"table_number"`
	ID      string `json:"table_id"`
	Players int    `json:"players"`
}

// Snapshot is a point-in-time view of the tournament.
type Snapshot struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Status     string      `json:"status"`
	Registered int         `json:"registered"`
	Remaining  int         `json:"remaining_players"`
	Level      int         `json:"current_blind_level"`
	SmallBlind int         `json:"small_blind"`
	BigBlind   int         `json:"big_blind"`
	Tables     []TableInfo `json:"tables,omitempty"`
	Standings  []Standing  `json:"standings,omitempty"`
}

// Observer is notified after every tournament-level state change.
type Observer interface {
	TournamentChanged(Snapshot)
}

// NopObserver discards notifications.
type NopObserver struct{}

func (NopObserver) TournamentChanged(Snapshot) {}

// Config configures a tournament controller.
type Config struct {
	ID            string
	Name          string
	StartTime     time.Time
	MaxPlayers    int
	SeatsPerTable int
	StartingChips int
	PrizePlaces   int
	Schedule      Schedule

	Logger   *log.Logger
	Timers   *timer.Service
	IDs      *gameid.Generator
	Store    store.Repository // nil disables persistence
	RNG      *rand.Rand
	Observer Observer

	// TableListener receives every table event, already processed by the
	// controller, for fan-out to clients.
	TableListener table.Listener

	// Passed through to tables.
	HandPause     time.Duration
	TurnGrace     time.Duration
	TurnCountdown time.Duration
	BotDelay      time.Duration

	// TickInterval is the blind clock resolution. Defaults to one minute.
	TickInterval time.Duration
}

// Controller owns one tournament: registration, seating, blind progression,
// consolidation, and completion. Like a table it is an actor; every mutation
// runs on the goroutine inside Run. Table event callbacks arrive on table
// goroutines and are enqueued, never handled inline, so a table is never
// called back while it is still delivering an event.
type Controller struct {
	id            string
	name          string
	startTime     time.Time
	maxPlayers    int
	seatsPerTable int
	startingChips int
	prizePlaces   int
	schedule      Schedule

	logger        *log.Logger
	timers        *timer.Service
	ids           *gameid.Generator
	store         store.Repository
	rng           *rand.Rand
	observer      Observer
	tableListener table.Listener

	handPause     time.Duration
	turnGrace     time.Duration
	turnCountdown time.Duration
	botDelay      time.Duration
	tickInterval  time.Duration

	mailbox chan func()
	done    chan struct{}
	runCtx  context.Context

	// level is read by table Blinds closures on their own goroutines.
	level atomic.Int32

	status      Status
	regs        map[string]Player
	actualStart time.Time
	tables      map[int]*tableEntry
	remaining   int
	finished    []string // elimination order, first out first
	standings   []Standing
	rebalance   bool // a consolidation attempt was deferred by a live hand
	tickCancel  context.CancelFunc
}

type tableEntry struct {
	number  int
	id      string
	tbl     *table.Table
	cancel  context.CancelFunc
	players map[int]string // seat number -> user id, non-eliminated
	names   map[string]Player
	lastBB  int // big blind seat of the most recent hand
}

// NewController validates the configuration and builds a controller in the
// SCHEDULED state. Call Run to start it.
func NewController(cfg Config) (*Controller, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("tournament id is required")
	}
	if cfg.SeatsPerTable < 2 || cfg.SeatsPerTable > 10 {
		return nil, fmt.Errorf("seats per table must be in 2..10, got %d", cfg.SeatsPerTable)
	}
	if cfg.MaxPlayers < 2 {
		return nil, fmt.Errorf("max players must be at least 2, got %d", cfg.MaxPlayers)
	}
	if cfg.StartingChips <= 0 {
		return nil, fmt.Errorf("starting chips must be positive, got %d", cfg.StartingChips)
	}
	if cfg.PrizePlaces < 1 {
		return nil, fmt.Errorf("prize places must be at least 1, got %d", cfg.PrizePlaces)
	}
	if err := cfg.Schedule.Validate(); err != nil {
		return nil, fmt.Errorf("invalid blind schedule: %w", err)
	}
	if cfg.Observer == nil {
		cfg.Observer = NopObserver{}
	}
	if cfg.TableListener == nil {
		cfg.TableListener = table.NopListener{}
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = time.Minute
	}
	return &Controller{
		id:            cfg.ID,
		name:          cfg.Name,
		startTime:     cfg.StartTime,
		maxPlayers:    cfg.MaxPlayers,
		seatsPerTable: cfg.SeatsPerTable,
		startingChips: cfg.StartingChips,
		prizePlaces:   cfg.PrizePlaces,
		schedule:      cfg.Schedule,
		logger:        cfg.Logger.WithPrefix("tournament").With("tournament", cfg.ID),
		timers:        cfg.Timers,
		ids:           cfg.IDs,
		store:         cfg.Store,
		rng:           cfg.RNG,
		observer:      cfg.Observer,
		tableListener: cfg.TableListener,
		handPause:     cfg.HandPause,
		turnGrace:     cfg.TurnGrace,
		turnCountdown: cfg.TurnCountdown,
		botDelay:      cfg.BotDelay,
		tickInterval:  cfg.TickInterval,
		mailbox:       make(chan func(), 256),
		done:          make(chan struct{}),
		status:        Scheduled,
		regs:          make(map[string]Player),
		tables:        make(map[int]*tableEntry),
	}, nil
}

// ID returns the tournament id.
func (c *Controller) ID() string { return c.id }

// Run executes the actor loop until ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.runCtx = ctx
	defer close(c.done)
	c.persist("create", func(ctx context.Context) error {
		return c.store.SaveTournament(ctx, c.record())
	})
	for {
		select {
		case fn := <-c.mailbox:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

func (c *Controller) do(fn func()) error {
	select {
	case c.mailbox <- fn:
		return nil
	case <-c.done:
		return table.ErrStopped
	}
}

func (c *Controller) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if err := c.do(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-c.done:
		return table.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// OpenRegistration moves SCHEDULED to REGISTERING.
func (c *Controller) OpenRegistration(ctx context.Context) error {
	var err error
	cerr := c.call(ctx, func() {
		if c.status != Scheduled {
			err = fmt.Errorf("%w: cannot open registration while %s", ErrInvalidState, c.status)
			return
		}
		c.status = Registering
		c.logger.Info("registration open")
		c.persistTournament()
		c.notify()
	})
	return firstErr(cerr, err)
}

// Register adds a player while registration is open. Registering the same
// user twice is a no-op.
func (c *Controller) Register(ctx context.Context, p Player) error {
	var err error
	cerr := c.call(ctx, func() {
		if c.status != Registering {
			err = fmt.Errorf("%w: cannot register while %s", ErrInvalidState, c.status)
			return
		}
		if _, ok := c.regs[p.UserID]; ok {
			return
		}
		if len(c.regs) >= c.maxPlayers {
			err = ErrTournamentFull
			return
		}
		c.regs[p.UserID] = p
		c.logger.Info("player registered", "user", p.UserID, "count", len(c.regs))
		c.persist("register", func(ctx context.Context) error {
			return c.store.UpsertRegistration(ctx, store.RegistrationRecord{
				TournamentID: c.id, UserID: p.UserID, Status: "confirmed",
			})
		})
		c.notify()
	})
	return firstErr(cerr, err)
}

// Unregister removes a registration while registration is open.
func (c *Controller) Unregister(ctx context.Context, userID string) error {
	var err error
	cerr := c.call(ctx, func() {
		if c.status != Registering {
			err = fmt.Errorf("%w: cannot unregister while %s", ErrInvalidState, c.status)
			return
		}
		if _, ok := c.regs[userID]; !ok {
			err = ErrNotRegistered
			return
		}
		delete(c.regs, userID)
		c.logger.Info("player unregistered", "user", userID, "count", len(c.regs))
		c.persist("unregister", func(ctx context.Context) error {
			return c.store.DeleteRegistration(ctx, c.id, userID)
		})
		c.notify()
	})
	return firstErr(cerr, err)
}

// CloseRegistration moves REGISTERING to SEATED: registrants are shuffled
// into balanced tables and the table actors are created, idle.
func (c *Controller) CloseRegistration(ctx context.Context) error {
	var err error
	cerr := c.call(ctx, func() {
		if c.status != Registering {
			err = fmt.Errorf("%w: cannot close registration while %s", ErrInvalidState, c.status)
			return
		}
		err = c.seatPlayers(ctx)
		if err != nil {
			return
		}
		c.status = Seated
		c.logger.Info("registration closed", "players", c.remaining, "tables", len(c.tables))
		c.persistTournament()
		c.notify()
	})
	return firstErr(cerr, err)
}

// Start moves SEATED to RUNNING: all tables begin dealing and the blind
// clock starts.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	cerr := c.call(ctx, func() {
		if c.status != Seated {
			err = fmt.Errorf("%w: cannot start while %s", ErrInvalidState, c.status)
			return
		}
		if c.remaining < 2 {
			err = ErrInsufficientPlayers
			return
		}
		c.status = Running
		c.actualStart = c.timers.Clock().Now()
		c.level.Store(0)

		for _, e := range c.tables {
			if serr := e.tbl.StartPlay(ctx); serr != nil {
				c.logger.Error("failed to start table", "table", e.id, "error", serr)
			}
		}

		tickCtx, cancel := context.WithCancel(c.runCtx)
		c.tickCancel = cancel
		c.timers.Tick(tickCtx, c.tickInterval, func() {
			_ = c.do(c.checkBlinds)
		}, "blinds:"+c.id)

		c.logger.Info("tournament started", "players", c.remaining, "tables", len(c.tables))
		c.persistTournament()
		c.notify()
	})
	return firstErr(cerr, err)
}

// Cancel aborts the tournament from any state except COMPLETED.
func (c *Controller) Cancel(ctx context.Context) error {
	var err error
	cerr := c.call(ctx, func() {
		if c.status == Completed {
			err = fmt.Errorf("%w: tournament already completed", ErrInvalidState)
			return
		}
		c.status = Cancelled
		c.teardown()
		c.logger.Info("tournament cancelled")
		c.persistTournament()
		c.notify()
	})
	return firstErr(cerr, err)
}

// ForceAdvanceBlinds bumps the blind level by one, for tournament directors.
// The scheduled clock never lowers it back.
func (c *Controller) ForceAdvanceBlinds(ctx context.Context) error {
	var err error
	cerr := c.call(ctx, func() {
		if c.status != Running {
			err = fmt.Errorf("%w: cannot advance blinds while %s", ErrInvalidState, c.status)
			return
		}
		cur := int(c.level.Load())
		if cur >= len(c.schedule)-1 {
			return
		}
		c.setLevel(cur + 1)
	})
	return firstErr(cerr, err)
}

// Snapshot returns the current tournament view.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.call(ctx, func() {
		snap = c.snapshot()
	})
	return snap, err
}

// Table returns the table actor a user is seated at, for routing actions.
func (c *Controller) Table(ctx context.Context, userID string) (*table.Table, error) {
	var tbl *table.Table
	err := c.call(ctx, func() {
		for _, e := range c.tables {
			for _, uid := range e.players {
				if uid == userID {
					tbl = e.tbl
					return
				}
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if tbl == nil {
		return nil, ErrNotRegistered
	}
	return tbl, nil
}

// TableByID returns the table actor with the given id.
func (c *Controller) TableByID(ctx context.Context, tableID string) (*table.Table, error) {
	var tbl *table.Table
	err := c.call(ctx, func() {
		for _, e := range c.tables {
			if e.id == tableID {
				tbl = e.tbl
				return
			}
		}
	})
	if err != nil {
		return nil, err
	}
	if tbl == nil {
		return nil, fmt.Errorf("unknown table %s", tableID)
	}
	return tbl, nil
}

// --- actor-goroutine internals ---

func (c *Controller) seatPlayers(ctx context.Context) error {
	ids := make([]string, 0, len(c.regs))
	for id := range c.regs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	assignments := AssignSeating(ids, c.seatsPerTable, c.rng)

	byTable := make(map[int][]SeatAssignment)
	for _, a := range assignments {
		byTable[a.TableNumber] = append(byTable[a.TableNumber], a)
	}
	numbers := make([]int, 0, len(byTable))
	for n := range byTable {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)

	for _, number := range numbers {
		entry := &tableEntry{
			number:  number,
			id:      c.ids.Table(),
			players: make(map[int]string),
			names:   make(map[string]Player),
		}
		tableCtx, cancel := context.WithCancel(c.runCtx)
		entry.cancel = cancel
		// Each table gets its own RNG stream; tables run on separate
		// goroutines and rand.Rand is not safe for concurrent use.
		entry.tbl = table.New(table.Config{
			ID:            entry.id,
			Number:        number,
			Logger:        c.logger,
			Clock:         c.timers.Clock(),
			Timers:        c.timers,
			Listener:      &tableEvents{c: c},
			IDs:           c.ids,
			Blinds:        c.currentBlinds,
			RNG:           rand.New(rand.NewPCG(c.rng.Uint64(), c.rng.Uint64())),
			HandPause:     c.handPause,
			TurnGrace:     c.turnGrace,
			TurnCountdown: c.turnCountdown,
			BotDelay:      c.botDelay,
		})
		go entry.tbl.Run(tableCtx)

		for _, a := range byTable[number] {
			p := c.regs[a.UserID]
			seat := game.Seat{
				Number: a.SeatNumber,
				UserID: p.UserID,
				Name:   p.Name,
				Chips:  c.startingChips,
				IsBot:  p.IsBot,
			}
			if err := entry.tbl.AddSeat(ctx, seat); err != nil {
				cancel()
				return fmt.Errorf("seating %s at table %d: %w", p.UserID, number, err)
			}
			entry.players[a.SeatNumber] = p.UserID
			entry.names[p.UserID] = p
		}
		c.tables[number] = entry
		c.remaining += len(byTable[number])

		sb, bb := c.currentBlinds()
		c.persist("save_game", func(ctx context.Context) error {
			return c.store.SaveGame(ctx, store.GameRecord{
				ID: entry.id, TournamentID: c.id, TableNumber: number,
				Status: "active", CurrentBlindLevel: 0, SmallBlind: sb, BigBlind: bb,
			})
		})
		for seatNum, userID := range entry.players {
			c.persistSeat(entry.id, userID, seatNum, c.startingChips, "active")
		}
	}
	return nil
}

// currentBlinds is handed to tables as their Blinds callback. It runs on
// table goroutines, so it only touches immutable config and the atomic level.
func (c *Controller) currentBlinds() (int, int) {
	lvl := c.schedule[c.level.Load()]
	return lvl.SmallBlind, lvl.BigBlind
}

// checkBlinds advances the level from elapsed play time. Runs every tick.
func (c *Controller) checkBlinds() {
	if c.status != Running {
		return
	}
	elapsed := c.timers.Clock().Now().Sub(c.actualStart)
	want := c.schedule.LevelAt(elapsed)
	if want > int(c.level.Load()) {
		c.setLevel(want)
	}
}

func (c *Controller) setLevel(level int) {
	c.level.Store(int32(level))
	lvl := c.schedule[level]
	c.logger.Info("blind level advanced", "level", level, "sb", lvl.SmallBlind, "bb", lvl.BigBlind)
	for _, e := range c.tables {
		entry := e
		c.persist("save_game_level", func(ctx context.Context) error {
			return c.store.SaveGame(ctx, store.GameRecord{
				ID: entry.id, TournamentID: c.id, TableNumber: entry.number,
				Status: "active", CurrentBlindLevel: level,
				SmallBlind: lvl.SmallBlind, BigBlind: lvl.BigBlind,
			})
		})
	}
	c.notify()
}

// handleHandEnd processes a completed hand: persistence, eliminations,
// completion, consolidation.
func (c *Controller) handleHandEnd(ev table.HandEndEvent) {
	entry := c.entryByID(ev.TableID)
	if entry == nil {
		return
	}
	if ev.State.BBSeat > 0 {
		entry.lastBB = ev.State.BBSeat
	}
	c.persistHand(entry, ev)
	for _, view := range ev.State.Seats {
		c.persistSeat(entry.id, view.UserID, view.Number, view.Chips, view.Status)
	}

	if ev.Result != nil {
		for _, el := range ev.Result.Eliminated {
			c.eliminate(entry, el.Number)
		}
	}

	if c.status != Running {
		return
	}
	if c.remaining <= 1 {
		c.complete()
		return
	}
	if (ev.Result != nil && len(ev.Result.Eliminated) > 0) || c.rebalance {
		c.consolidate()
	}
}

func (c *Controller) eliminate(entry *tableEntry, seatNum int) {
	userID, ok := entry.players[seatNum]
	if !ok {
		return
	}
	delete(entry.players, seatNum)
	c.remaining--
	c.finished = append(c.finished, userID)
	place := c.remaining + 1
	c.logger.Info("player eliminated", "user", userID, "table", entry.number, "place", place)

	// Free the seat so an incoming player can take it. Best effort: if the
	// next hand already started the dealt-in filter skips the busted seat
	// anyway.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := entry.tbl.RemoveUser(ctx, userID); err != nil {
		c.logger.Debug("could not unseat eliminated player", "user", userID, "error", err)
	}
	c.persistSeat(entry.id, userID, seatNum, 0, "eliminated")
	c.notify()
}

// complete finishes the tournament: the sole survivor is the champion and
// the rest rank in reverse elimination order.
func (c *Controller) complete() {
	c.status = Completed
	champion := ""
	for _, e := range c.tables {
		for _, userID := range e.players {
			champion = userID
		}
	}
	c.standings = []Standing{{Place: 1, UserID: champion}}
	for i := len(c.finished) - 1; i >= 0; i-- {
		c.standings = append(c.standings, Standing{Place: len(c.standings) + 1, UserID: c.finished[i]})
	}
	c.logger.Info("tournament completed", "champion", champion, "places", len(c.standings))

	c.teardown()
	c.persist("save_standings", func(ctx context.Context) error {
		records := make([]store.StandingRecord, len(c.standings))
		for i, s := range c.standings {
			records[i] = store.StandingRecord{TournamentID: c.id, UserID: s.UserID, Place: s.Place}
		}
		return c.store.SaveStandings(ctx, c.id, records)
	})
	c.persistTournament()
	c.notify()
}

// consolidate breaks surplus tables and rebalances uneven ones. It runs
// between hands and backs off whenever a table is mid-hand; the next hand
// end retries.
func (c *Controller) consolidate() {
	c.rebalance = false
	for {
		donor := pickBreaking(c.activeCounts(), c.seatsPerTable)
		if donor == -1 {
			break
		}
		if !c.breakTable(donor) {
			c.rebalance = true
			return
		}
	}
	for {
		donor, receiver := balanceMove(c.activeCounts())
		if donor == -1 {
			break
		}
		if !c.moveBigBlindOut(donor, receiver) {
			c.rebalance = true
			return
		}
	}
	c.notify()
}

func (c *Controller) activeCounts() []tableCount {
	counts := make([]tableCount, 0, len(c.tables))
	for _, e := range c.tables {
		if len(e.players) > 0 {
			counts = append(counts, tableCount{Number: e.number, Players: len(e.players)})
		}
	}
	return counts
}

// breakTable drains the donor table, each player to the currently smallest
// table, then closes it. Returns false if any move was blocked by a live
// hand.
func (c *Controller) breakTable(number int) bool {
	entry := c.tables[number]
	if entry == nil {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := entry.tbl.StopPlay(ctx); err != nil {
		return false
	}

	seats := make([]int, 0, len(entry.players))
	for s := range entry.players {
		seats = append(seats, s)
	}
	sort.Ints(seats)
	for _, seatNum := range seats {
		receiver := pickReceiving(c.activeCounts(), number)
		if receiver == -1 || !c.movePlayer(entry, seatNum, c.tables[receiver]) {
			// A live hand blocked the drain. Resume the donor so its
			// remaining players keep playing until the retry.
			_ = entry.tbl.StartPlay(ctx)
			return false
		}
	}
	c.logger.Info("table closed", "table", number)
	entry.cancel()
	delete(c.tables, number)
	c.persist("close_game", func(ctx context.Context) error {
		sb, bb := c.currentBlinds()
		return c.store.SaveGame(ctx, store.GameRecord{
			ID: entry.id, TournamentID: c.id, TableNumber: entry.number,
			Status: "closed", CurrentBlindLevel: int(c.level.Load()),
			SmallBlind: sb, BigBlind: bb,
		})
	})
	return true
}

// moveBigBlindOut moves one player from donor to receiver: the next player
// clockwise from the donor's big blind, so nobody loses a posted blind.
func (c *Controller) moveBigBlindOut(donor, receiver int) bool {
	entry := c.tables[donor]
	if entry == nil {
		return true
	}
	seats := make([]int, 0, len(entry.players))
	for s := range entry.players {
		seats = append(seats, s)
	}
	seatNum := nextClockwiseSeat(seats, entry.lastBB)
	if seatNum == 0 {
		return true
	}
	return c.movePlayer(entry, seatNum, c.tables[receiver])
}

// movePlayer reseats one player at the receiver's lowest vacant seat. Both
// tables must be between hands.
func (c *Controller) movePlayer(from *tableEntry, seatNum int, to *tableEntry) bool {
	if to == nil {
		return false
	}
	userID := from.players[seatNum]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	seat, err := from.tbl.RemoveUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, table.ErrHandInProgress) {
			c.logger.Error("failed to unseat player for move", "user", userID, "error", err)
		}
		return false
	}
	occupied := make([]int, 0, len(to.players))
	for s := range to.players {
		occupied = append(occupied, s)
	}
	dest := lowestVacantSeat(occupied, c.seatsPerTable)
	if dest == 0 {
		// Receiver filled up under us; put the player back.
		_ = from.tbl.AddSeat(ctx, seat)
		return false
	}
	seat.Number = dest
	if err := to.tbl.AddSeat(ctx, seat); err != nil {
		c.logger.Error("failed to reseat moved player", "user", userID, "error", err)
		seat.Number = seatNum
		_ = from.tbl.AddSeat(ctx, seat)
		return false
	}

	delete(from.players, seatNum)
	to.players[dest] = userID
	p := from.names[userID]
	delete(from.names, userID)
	to.names[userID] = p
	c.logger.Info("player moved",
		"user", userID, "from_table", from.number, "from_seat", seatNum,
		"to_table", to.number, "to_seat", dest)

	c.persist("move_seat", func(ctx context.Context) error {
		if err := c.store.DeleteSeat(ctx, from.id, userID); err != nil {
			return err
		}
		return c.store.SaveSeat(ctx, store.SeatRecord{
			GameID: to.id, UserID: userID, SeatNumber: dest,
			Chips: seat.Chips, Status: "active",
		})
	})
	return true
}

// teardown stops the blind clock and all table actors.
func (c *Controller) teardown() {
	if c.tickCancel != nil {
		c.tickCancel()
		c.tickCancel = nil
	}
	for _, e := range c.tables {
		e.cancel()
	}
}

func (c *Controller) entryByID(tableID string) *tableEntry {
	for _, e := range c.tables {
		if e.id == tableID {
			return e
		}
	}
	return nil
}

func (c *Controller) snapshot() Snapshot {
	sb, bb := c.currentBlinds()
	snap := Snapshot{
		ID:         c.id,
		Name:       c.name,
		Status:     c.status.String(),
		Registered: len(c.regs),
		Remaining:  c.remaining,
		Level:      int(c.level.Load()),
		SmallBlind: sb,
		BigBlind:   bb,
		Standings:  append([]Standing(nil), c.standings...),
	}
	numbers := make([]int, 0, len(c.tables))
	for n := range c.tables {
		numbers = append(numbers, n)
	}
	sort.Ints(numbers)
	for _, n := range numbers {
		e := c.tables[n]
		snap.Tables = append(snap.Tables, TableInfo{Number: n, ID: e.id, Players: len(e.players)})
	}
	return snap
}

func (c *Controller) notify() {
	c.observer.TournamentChanged(c.snapshot())
}

func (c *Controller) record() store.TournamentRecord {
	scheduleJSON, _ := json.Marshal(c.schedule)
	rec := store.TournamentRecord{
		ID:                c.id,
		Name:              c.name,
		StartTime:         c.startTime,
		MaxPlayers:        c.maxPlayers,
		SeatsPerTable:     c.seatsPerTable,
		StartingChips:     c.startingChips,
		PrizePlaces:       c.prizePlaces,
		BlindScheduleJSON: string(scheduleJSON),
		Status:            c.status.String(),
	}
	if !c.actualStart.IsZero() {
		at := c.actualStart
		rec.ActualStartTime = &at
	}
	return rec
}

func (c *Controller) persistTournament() {
	c.persist("save_tournament", func(ctx context.Context) error {
		return c.store.SaveTournament(ctx, c.record())
	})
}

func (c *Controller) persistSeat(gameID, userID string, seatNum, chips int, status string) {
	c.persist("save_seat", func(ctx context.Context) error {
		return c.store.SaveSeat(ctx, store.SeatRecord{
			GameID: gameID, UserID: userID, SeatNumber: seatNum,
			Chips: chips, Status: status,
		})
	})
}

func (c *Controller) persistHand(entry *tableEntry, ev table.HandEndEvent) {
	if ev.Result == nil {
		return
	}
	board, _ := json.Marshal(ev.State.Board)
	history, _ := json.Marshal(ev.Result)
	winners := make([]string, 0, len(ev.Result.Winners))
	for _, w := range ev.Result.Winners {
		winners = append(winners, w.UserID)
	}
	winnersJSON, _ := json.Marshal(winners)
	c.persist("append_hand", func(ctx context.Context) error {
		return c.store.AppendHandRecord(ctx, store.HandRecord{
			ID:                 ev.HandID,
			GameID:             entry.id,
			HandNumber:         ev.State.HandNumber,
			Pot:                ev.Result.Pot,
			CommunityCardsJSON: string(board),
			HistoryJSON:        string(history),
			WinnerUserIDsJSON:  string(winnersJSON),
			CreatedAt:          c.timers.Clock().Now(),
		})
	})
}

// persist runs a store write on the actor goroutine with its own deadline.
// Failures are logged, never fatal: play continues and the next write for
// the same record repairs the row.
func (c *Controller) persist(op string, fn func(context.Context) error) {
	if c.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fn(ctx); err != nil {
		c.logger.Error("persist failed", "op", op, "error", err)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// tableEvents adapts the controller to table.Listener. Callbacks run on
// table goroutines: controller work is enqueued, then the event is forwarded
// to the external sink.
type tableEvents struct {
	c *Controller
}

func (te *tableEvents) HandStarted(ev table.HandStartEvent) {
	te.c.tableListener.HandStarted(ev)
}

func (te *tableEvents) TurnBegan(ev table.TurnEvent) {
	te.c.tableListener.TurnBegan(ev)
}

func (te *tableEvents) ActionApplied(ev table.ActionEvent) {
	te.c.tableListener.ActionApplied(ev)
}

func (te *tableEvents) StreetDealt(ev table.StreetEvent) {
	te.c.tableListener.StreetDealt(ev)
}

func (te *tableEvents) HandEnded(ev table.HandEndEvent) {
	_ = te.c.do(func() { te.c.handleHandEnd(ev) })
	te.c.tableListener.HandEnded(ev)
}

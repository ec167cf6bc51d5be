// Package table runs one poker table as an actor: a single goroutine owns
// the seats and the live hand, and everything else talks to it through a
// mailbox. Turn timeouts and bot delays arrive through the timer service on
// the same mailbox, so there is no locking anywhere in the hand path.
package table

import (
	"context"
	"errors"
	"fmt"
	rand "math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/pokerforge/tourney/internal/game"
	"github.com/pokerforge/tourney/internal/gameid"
	"github.com/pokerforge/tourney/internal/timer"
	"github.com/pokerforge/tourney/poker"
)

var (
	ErrHandInProgress = errors.New("hand in progress")
	ErrSeatTaken      = errors.New("seat already taken")
	ErrNotSeated      = errors.New("user not seated at this table")
	ErrStopped        = errors.New("table is stopped")
)

// Config configures a table actor.
type Config struct {
	ID       string
	Number   int // table number within the tournament
	Logger   *log.Logger
	Clock    quartz.Clock
	Timers   *timer.Service
	Listener Listener
	IDs      *gameid.Generator

	// Blinds is consulted at the start of every hand, so level changes
	// between hands need no table involvement.
	Blinds func() (smallBlind, bigBlind int)

	// RNG drives the first-hand dealer pick and bot decisions. Required.
	RNG *rand.Rand

	HandPause     time.Duration // pause between hands
	TurnGrace     time.Duration // quiet period before the countdown warning
	TurnCountdown time.Duration // countdown after the warning, then auto-action
	BotDelay      time.Duration // thinking time before a bot acts
}

// Table is the actor. All fields below the mailbox are owned by Run's
// goroutine.
type Table struct {
	id       string
	number   int
	logger   *log.Logger
	clock    quartz.Clock
	timers   *timer.Service
	listener Listener
	ids      *gameid.Generator
	blinds   func() (int, int)
	rng      *rand.Rand

	handPause     time.Duration
	turnGrace     time.Duration
	turnCountdown time.Duration
	botDelay      time.Duration

	mailbox chan func()
	done    chan struct{}

	seats      []*game.Seat
	hand       *game.Hand
	handID     string
	handNum    int
	prevDealer int
	running    bool
	turnSeq    uint64
	lastAction appliedAction
}

// appliedAction remembers the most recent applied action for duplicate
// detection: a client resubmitting after a dropped ack matches this slot and
// gets a clean nil instead of out-of-turn. A user can never legitimately act
// twice in a row while out of turn, so one slot suffices.
type appliedAction struct {
	handNum int
	userID  string
	action  game.Action
	amount  int
}

// New creates a table actor. Call Run to start it.
func New(cfg Config) *Table {
	if cfg.Listener == nil {
		cfg.Listener = NopListener{}
	}
	if cfg.HandPause <= 0 {
		cfg.HandPause = 2 * time.Second
	}
	if cfg.TurnGrace <= 0 {
		cfg.TurnGrace = 10 * time.Second
	}
	if cfg.TurnCountdown <= 0 {
		cfg.TurnCountdown = 10 * time.Second
	}
	if cfg.BotDelay <= 0 {
		cfg.BotDelay = 3 * time.Second
	}
	return &Table{
		id:            cfg.ID,
		number:        cfg.Number,
		logger:        cfg.Logger.WithPrefix("table").With("table", cfg.ID),
		clock:         cfg.Clock,
		timers:        cfg.Timers,
		listener:      cfg.Listener,
		ids:           cfg.IDs,
		blinds:        cfg.Blinds,
		rng:           cfg.RNG,
		handPause:     cfg.HandPause,
		turnGrace:     cfg.TurnGrace,
		turnCountdown: cfg.TurnCountdown,
		botDelay:      cfg.BotDelay,
		mailbox:       make(chan func(), 64),
		done:          make(chan struct{}),
	}
}

// ID returns the table id.
func (t *Table) ID() string { return t.id }

// Run executes the actor loop until ctx is cancelled.
func (t *Table) Run(ctx context.Context) {
	defer close(t.done)
	defer t.timers.Cancel(t.timerKey())
	defer t.timers.Cancel(t.dealKey())
	for {
		select {
		case fn := <-t.mailbox:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// do enqueues fn for the actor goroutine.
func (t *Table) do(fn func()) error {
	select {
	case t.mailbox <- fn:
		return nil
	case <-t.done:
		return ErrStopped
	}
}

// call enqueues fn and waits for it to run.
func (t *Table) call(ctx context.Context, fn func()) error {
	ran := make(chan struct{})
	if err := t.do(func() {
		defer close(ran)
		fn()
	}); err != nil {
		return err
	}
	select {
	case <-ran:
		return nil
	case <-t.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AddSeat seats a player. Only allowed between hands.
func (t *Table) AddSeat(ctx context.Context, seat game.Seat) error {
	var err error
	cerr := t.call(ctx, func() {
		if t.hand != nil {
			err = ErrHandInProgress
			return
		}
		for _, s := range t.seats {
			if s.Number == seat.Number {
				err = ErrSeatTaken
				return
			}
			if s.UserID == seat.UserID {
				err = fmt.Errorf("%w: user %s already at seat %d", ErrSeatTaken, seat.UserID, s.Number)
				return
			}
		}
		s := seat
		t.seats = append(t.seats, &s)
	})
	if cerr != nil {
		return cerr
	}
	return err
}

// RemoveUser unseats a player between hands, returning the seat as it was
// (chips intact) so the tournament can move it to another table.
func (t *Table) RemoveUser(ctx context.Context, userID string) (game.Seat, error) {
	var (
		out game.Seat
		err error
	)
	cerr := t.call(ctx, func() {
		if t.hand != nil {
			err = ErrHandInProgress
			return
		}
		for i, s := range t.seats {
			if s.UserID == userID {
				out = *s
				t.seats = append(t.seats[:i], t.seats[i+1:]...)
				return
			}
		}
		err = ErrNotSeated
	})
	if cerr != nil {
		return game.Seat{}, cerr
	}
	return out, err
}

// StartPlay begins dealing hands. Idempotent.
func (t *Table) StartPlay(ctx context.Context) error {
	return t.call(ctx, func() {
		if t.running {
			return
		}
		t.running = true
		if t.hand == nil {
			t.startHand()
		}
	})
}

// StopPlay stops dealing after the current hand finishes.
func (t *Table) StopPlay(ctx context.Context) error {
	return t.call(ctx, func() {
		t.running = false
		t.timers.Cancel(t.dealKey())
	})
}

// SubmitAction applies a player action. A resubmission of the action that
// was just applied for the same user returns nil, so a client retrying over
// a flaky connection does not see a spurious out-of-turn error.
func (t *Table) SubmitAction(ctx context.Context, userID string, action game.Action, amount int) error {
	var err error
	cerr := t.call(ctx, func() {
		err = t.applyUserAction(userID, action, amount)
	})
	if cerr != nil {
		return cerr
	}
	return err
}

// Snapshot returns the current table state.
func (t *Table) Snapshot(ctx context.Context) (State, error) {
	var state State
	err := t.call(ctx, func() {
		state = t.snapshot()
	})
	return state, err
}

// --- actor-goroutine internals ---

func (t *Table) timerKey() string { return "table:" + t.id + ":turn" }
func (t *Table) dealKey() string  { return "table:" + t.id + ":deal" }

func (t *Table) applyUserAction(userID string, action game.Action, amount int) error {
	if t.hand == nil || t.hand.Complete() {
		return game.ErrHandComplete
	}
	seat := t.seatByUser(userID)
	if seat == nil {
		return ErrNotSeated
	}
	if seat.Number != t.hand.CurrentTurn {
		dup := appliedAction{t.handNum, userID, action, amount}
		if dup == t.lastAction {
			return nil
		}
		return game.ErrOutOfTurn
	}
	return t.applyAction(seat, action, amount, false)
}

// applyAction runs one action through the hand and emits the follow-up
// events. Caller has already validated the turn.
func (t *Table) applyAction(seat *game.Seat, action game.Action, amount int, auto bool) error {
	out, err := t.hand.Apply(seat.Number, action, amount)
	if err != nil {
		return err
	}
	t.lastAction = appliedAction{t.handNum, seat.UserID, action, amount}
	t.afterOutcome(seat, action, out.Committed, auto, out)
	return nil
}

func (t *Table) afterOutcome(seat *game.Seat, action game.Action, committed int, auto bool, out game.Outcome) {
	t.timers.Cancel(t.timerKey())
	t.listener.ActionApplied(ActionEvent{
		TableID:    t.id,
		HandID:     t.handID,
		SeatNumber: seat.Number,
		UserID:     seat.UserID,
		Action:     action.String(),
		Amount:     committed,
		Auto:       auto,
		State:      t.snapshot(),
	})
	if out.Err != nil {
		t.logger.Error("hand aborted", "hand", t.handID, "error", out.Err)
	}
	if out.StreetAdvanced && !out.Complete {
		t.listener.StreetDealt(StreetEvent{
			TableID: t.id,
			HandID:  t.handID,
			Street:  t.hand.Street.String(),
			Board:   append([]poker.Card{}, t.hand.Board...),
			Pot:     t.hand.Pot,
		})
	}
	if out.Complete {
		t.finishHand(out.Result)
		return
	}
	t.beginTurn()
}

func (t *Table) startHand() {
	if !t.running {
		return
	}
	sb, bb := t.blinds()
	t.handNum++
	hand, err := game.NewHand(game.HandConfig{
		Number:     t.handNum,
		Seats:      t.seats,
		PrevDealer: t.prevDealer,
		SmallBlind: sb,
		BigBlind:   bb,
		RNG:        t.rng,
	})
	if err != nil {
		if errors.Is(err, game.ErrTooFewPlayers) {
			t.logger.Debug("not enough players to deal, idling")
		} else {
			t.logger.Error("failed to start hand", "error", err)
		}
		t.running = false
		t.handNum--
		return
	}
	t.hand = hand
	t.handID = t.ids.Hand()
	t.logger.Info("hand started",
		"hand", t.handID, "number", t.handNum,
		"players", len(hand.Seats()), "sb", sb, "bb", bb,
		"dealer", hand.Dealer)

	t.listener.HandStarted(HandStartEvent{TableID: t.id, State: t.snapshot()})

	if hand.Complete() {
		// Blinds put everyone all-in and the board ran out on the deal.
		t.finishHand(hand.Result())
		return
	}
	t.beginTurn()
}

// beginTurn announces the turn and arms the grace timer. The timer sequence
// number guards against a timer that was in flight when the turn changed.
func (t *Table) beginTurn() {
	seat := t.seatByNumber(t.hand.CurrentTurn)
	if seat == nil {
		t.logger.Error("no seat for current turn", "turn", t.hand.CurrentTurn)
		return
	}
	t.turnSeq++
	seq := t.turnSeq

	if seat.IsBot {
		t.timers.Schedule(t.timerKey(), t.botDelay, func() {
			_ = t.do(func() { t.botAct(seq, seat) })
		})
		return
	}

	deadline := t.clock.Now().Add(t.turnGrace + t.turnCountdown)
	t.listener.TurnBegan(TurnEvent{
		TableID:    t.id,
		HandID:     t.handID,
		SeatNumber: seat.Number,
		UserID:     seat.UserID,
		Deadline:   deadline,
	})
	t.timers.Schedule(t.timerKey(), t.turnGrace, func() {
		_ = t.do(func() { t.warnTurn(seq, seat, deadline) })
	})
}

// warnTurn emits the countdown notice and arms the final timeout.
func (t *Table) warnTurn(seq uint64, seat *game.Seat, deadline time.Time) {
	if seq != t.turnSeq || t.hand == nil || t.hand.Complete() {
		return
	}
	t.listener.TurnBegan(TurnEvent{
		TableID:    t.id,
		HandID:     t.handID,
		SeatNumber: seat.Number,
		UserID:     seat.UserID,
		Deadline:   deadline,
		Countdown:  true,
	})
	t.timers.Schedule(t.timerKey(), t.turnCountdown, func() {
		_ = t.do(func() { t.timeoutTurn(seq, seat) })
	})
}

// timeoutTurn applies the forced action: check when free, fold when facing a
// bet.
func (t *Table) timeoutTurn(seq uint64, seat *game.Seat) {
	if seq != t.turnSeq || t.hand == nil || t.hand.Complete() {
		return
	}
	action := game.Fold
	if seat.Bet == t.hand.Betting.CurrentBet {
		action = game.Check
	}
	t.logger.Info("turn timed out", "hand", t.handID, "seat", seat.Number, "action", action)
	if err := t.applyAction(seat, action, 0, true); err != nil {
		t.logger.Error("forced action failed", "seat", seat.Number, "error", err)
	}
}

func (t *Table) finishHand(result *game.Result) {
	t.timers.Cancel(t.timerKey())
	t.turnSeq++
	t.prevDealer = t.hand.Dealer
	handID := t.handID
	t.listener.HandEnded(HandEndEvent{
		TableID: t.id,
		HandID:  handID,
		Result:  result,
		State:   t.snapshot(),
	})
	t.hand = nil
	t.handID = ""

	if t.running {
		t.timers.Schedule(t.dealKey(), t.handPause, func() {
			_ = t.do(t.startHand)
		})
	}
}

func (t *Table) seatByUser(userID string) *game.Seat {
	for _, s := range t.seats {
		if s.UserID == userID {
			return s
		}
	}
	return nil
}

func (t *Table) seatByNumber(number int) *game.Seat {
	for _, s := range t.seats {
		if s.Number == number {
			return s
		}
	}
	return nil
}

func (t *Table) snapshot() State {
	state := State{
		TableID:     t.id,
		TableNumber: t.number,
		HandNumber:  t.handNum,
		Street:      game.Idle.String(),
	}
	for _, s := range t.seats {
		view := SeatView{
			Number:     s.Number,
			UserID:     s.UserID,
			Name:       s.Name,
			Chips:      s.Chips,
			Bet:        s.Bet,
			TotalBet:   s.TotalBet,
			Status:     s.Status.String(),
			IsBot:      s.IsBot,
			LastAction: s.LastAction,
		}
		if len(s.HoleCards) > 0 {
			view.HoleCards = append([]poker.Card{}, s.HoleCards...)
		}
		state.Seats = append(state.Seats, view)
	}
	if t.hand != nil {
		state.HandID = t.handID
		state.Street = t.hand.Street.String()
		state.Board = append([]poker.Card{}, t.hand.Board...)
		state.Pot = t.hand.Pot
		state.CurrentBet = t.hand.Betting.CurrentBet
		state.MinRaise = t.hand.Betting.MinRaise
		state.SmallBlind = t.hand.Betting.SmallBlind
		state.BigBlind = t.hand.Betting.BigBlind
		state.DealerSeat = t.hand.Dealer
		state.SBSeat = t.hand.SBSeat
		state.BBSeat = t.hand.BBSeat
		state.CurrentTurn = t.hand.CurrentTurn
	}
	return state
}

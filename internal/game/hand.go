package game

import (
	"fmt"
	rand "math/rand/v2"
	"sort"

	"github.com/pokerforge/tourney/poker"
)

// Street is the phase of a hand.
type Street int

const (
	Idle Street = iota
	Preflop
	Flop
	Turn
	River
)

func (s Street) String() string {
	return [...]string{"idle", "preflop", "flop", "turn", "river"}[s]
}

// Winner is one seat's share of an awarded pot.
type Winner struct {
	SeatNumber int
	UserID     string
	Amount     int
	Category   string // empty when the pot was won without showdown
}

// Reveal is a seat's hole cards shown at showdown.
type Reveal struct {
	SeatNumber int
	UserID     string
	Cards      []poker.Card
}

// Result is the terminal outcome of a hand.
type Result struct {
	Winners    []Winner
	Reveals    []Reveal
	Showdown   bool
	Pot        int
	Eliminated []*Seat // busted seats, lowest finisher first
}

// Outcome describes what a single applied action caused.
type Outcome struct {
	Committed      int
	StreetAdvanced bool
	Complete       bool
	Result         *Result
	Err            error // non-nil when the hand aborted mid-deal
}

// HandConfig configures a new deal.
type HandConfig struct {
	Number     int
	Seats      []*Seat
	PrevDealer int // 0 picks a random dealer (first hand of a table)
	SmallBlind int
	BigBlind   int
	Deck       *poker.Deck // optional stacked deck for tests
	RNG        *rand.Rand  // used only for the first-hand dealer pick
}

// Hand drives one deal from blinds to pot award. It is a pure state machine:
// timers, actors and broadcasting live above it.
type Hand struct {
	Number      int
	Dealer      int
	SBSeat      int
	BBSeat      int
	Street      Street
	Board       []poker.Card
	Pot         int
	CurrentTurn int // seat number owing action, 0 when none
	Betting     *BettingRound

	dealt      []*Seat // seats dealt into this hand, ascending seat number
	deck       *poker.Deck
	startChips map[int]int
	result     *Result
}

// NewHand deals a new hand: picks positions, posts blinds and deals hole
// cards. If the blinds leave no seat with a live decision the board is run
// out immediately and the hand completes inside the constructor.
func NewHand(cfg HandConfig) (*Hand, error) {
	var dealt []*Seat
	for _, s := range cfg.Seats {
		if s.Status != SeatEliminated && s.Status != SeatSittingOut && s.Chips > 0 {
			dealt = append(dealt, s)
		}
	}
	if len(dealt) < 2 {
		return nil, ErrTooFewPlayers
	}
	sort.Slice(dealt, func(i, j int) bool { return dealt[i].Number < dealt[j].Number })

	deck := cfg.Deck
	if deck == nil {
		deck = poker.NewDeck()
	}

	h := &Hand{
		Number:     cfg.Number,
		Street:     Preflop,
		Betting:    NewBettingRound(cfg.SmallBlind, cfg.BigBlind),
		dealt:      dealt,
		deck:       deck,
		startChips: make(map[int]int, len(dealt)),
	}
	for _, s := range dealt {
		s.resetForHand()
		h.startChips[s.Number] = s.Chips
	}

	if cfg.PrevDealer == 0 {
		rng := cfg.RNG
		if rng == nil {
			return nil, fmt.Errorf("hand %d: first deal needs an RNG for the dealer pick", cfg.Number)
		}
		h.Dealer = dealt[rng.IntN(len(dealt))].Number
	} else {
		h.Dealer = h.clockwise(cfg.PrevDealer).Number
	}

	if len(dealt) == 2 {
		// Heads-up: the dealer posts the small blind and acts first preflop.
		h.SBSeat = h.Dealer
		h.BBSeat = h.clockwise(h.Dealer).Number
	} else {
		h.SBSeat = h.clockwise(h.Dealer).Number
		h.BBSeat = h.clockwise(h.SBSeat).Number
	}

	// Hole cards go out in two passes starting at the small blind.
	holes, err := deck.DealHoleCards(len(dealt))
	if err != nil {
		return nil, err
	}
	order := h.clockwiseOrder(h.SBSeat)
	for i, s := range order {
		s.HoleCards = []poker.Card{holes[i][0], holes[i][1]}
	}

	h.Betting.PostBlinds(h.seat(h.SBSeat), h.seat(h.BBSeat))

	var first int
	if len(dealt) == 2 {
		first = h.Dealer
	} else {
		first = h.clockwise(h.BBSeat).Number
	}
	// A lone live seat still gets the turn when the blinds leave it facing a
	// call: it may fold rather than pay off a short all-in blind.
	next := h.nextToAct(h.seat(first))
	if next != nil && (h.countCanAct() >= 2 || next.Bet < h.Betting.CurrentBet) {
		h.CurrentTurn = next.Number
	} else {
		// No seat has a live decision; run the board out.
		var out Outcome
		h.advance(&out)
	}
	return h, nil
}

// Complete reports whether the hand has been resolved.
func (h *Hand) Complete() bool {
	return h.Street == Idle
}

// Result returns the hand result, nil until the hand completes.
func (h *Hand) Result() *Result {
	return h.result
}

// Seats returns the seats dealt into this hand.
func (h *Hand) Seats() []*Seat {
	return h.dealt
}

// TotalChips returns stacks plus pot plus uncollected bets, for conservation
// checks.
func (h *Hand) TotalChips() int {
	total := h.Pot
	for _, s := range h.dealt {
		total += s.Chips + s.Bet
	}
	return total
}

// StartingChips returns the chips the seat held when the hand began.
func (h *Hand) StartingChips(seatNumber int) int {
	return h.startChips[seatNumber]
}

// Apply validates and applies an action by the seat currently owing action.
func (h *Hand) Apply(seatNumber int, action Action, amount int) (Outcome, error) {
	if h.Complete() {
		return Outcome{}, ErrHandComplete
	}
	if seatNumber != h.CurrentTurn {
		return Outcome{}, ErrOutOfTurn
	}
	seat := h.seat(seatNumber)
	committed, err := h.Betting.Apply(seat, action, amount)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{Committed: committed}
	h.afterAction(seatNumber, &out)
	return out, nil
}

// ForceFold folds the seat regardless of whose turn it is. Used for
// disconnects and for seats that time out while a different seat holds the
// turn. Returns a zero Outcome if the seat was not in the hand.
func (h *Hand) ForceFold(seatNumber int) Outcome {
	seat := h.seat(seatNumber)
	if seat == nil || !seat.CanAct() || h.Complete() {
		return Outcome{}
	}
	seat.Status = SeatFolded
	seat.LastAction = "fold"
	h.Betting.MarkActed(seatNumber)

	var out Outcome
	h.afterAction(seatNumber, &out)
	return out
}

// afterAction advances the turn, ends the hand on a last-player-standing
// fold, or advances the street when the round closes.
func (h *Hand) afterAction(seatNumber int, out *Outcome) {
	if inHand := h.inHandSeats(); len(inHand) == 1 {
		h.collectBets()
		h.awardUncontested(inHand[0], out)
		return
	}

	if seatNumber == h.CurrentTurn {
		if next := h.nextToAct(h.clockwise(seatNumber)); next != nil {
			h.CurrentTurn = next.Number
			return
		}
	} else if h.CurrentTurn != 0 {
		// Out-of-turn forced fold: the turn holder keeps the action unless
		// the round is now closed.
		if !h.Betting.Complete(h.dealt) {
			return
		}
	}
	h.CurrentTurn = 0
	h.advance(out)
}

// advance collects bets and deals streets until betting can resume or the
// hand reaches showdown.
func (h *Hand) advance(out *Outcome) {
	for {
		h.collectBets()
		h.Betting.ResetForStreet()

		switch h.Street {
		case Preflop:
			cards, err := h.deck.DealFlop()
			if err != nil {
				h.abortf(out, "dealing flop: %v", err)
				return
			}
			h.Board = append(h.Board, cards...)
			h.Street = Flop
		case Flop:
			card, err := h.deck.DealTurn()
			if err != nil {
				h.abortf(out, "dealing turn: %v", err)
				return
			}
			h.Board = append(h.Board, card)
			h.Street = Turn
		case Turn:
			card, err := h.deck.DealRiver()
			if err != nil {
				h.abortf(out, "dealing river: %v", err)
				return
			}
			h.Board = append(h.Board, card)
			h.Street = River
		case River:
			h.showdown(out)
			return
		default:
			return
		}

		out.StreetAdvanced = true
		if h.countCanAct() >= 2 {
			if first := h.nextToAct(h.clockwise(h.Dealer)); first != nil {
				h.CurrentTurn = first.Number
				return
			}
		}
		// Everyone left is all-in: keep dealing.
	}
}

// collectBets moves street contributions into the pot.
func (h *Hand) collectBets() {
	for _, s := range h.dealt {
		h.Pot += s.Bet
		s.Bet = 0
	}
}

// awardUncontested gives the whole pot to the last seat in the hand. No
// cards are revealed.
func (h *Hand) awardUncontested(winner *Seat, out *Outcome) {
	winner.Chips += h.Pot
	res := &Result{
		Winners: []Winner{{
			SeatNumber: winner.Number,
			UserID:     winner.UserID,
			Amount:     h.Pot,
		}},
		Pot: h.Pot,
	}
	h.finish(res, out)
}

// showdown evaluates the live seats against the board, awards each pot and
// splits ties, giving odd chips to the earliest clockwise seat from the
// dealer.
func (h *Hand) showdown(out *Outcome) {
	pots := BuildPots(h.dealt)
	values := make(map[int]poker.HandValue)
	res := &Result{Showdown: true, Pot: h.Pot}

	for _, s := range h.inHandSeats() {
		cards := append(append([]poker.Card{}, s.HoleCards...), h.Board...)
		v, err := poker.Evaluate(cards)
		if err != nil {
			h.abortf(out, "evaluating seat %d: %v", s.Number, err)
			return
		}
		values[s.Number] = v
		res.Reveals = append(res.Reveals, Reveal{
			SeatNumber: s.Number,
			UserID:     s.UserID,
			Cards:      s.HoleCards,
		})
	}

	payouts := make(map[int]int)
	categories := make(map[int]string)
	for _, pot := range pots {
		best := poker.HandValue(-1)
		var winners []int
		for _, num := range pot.Eligible {
			v := values[num]
			if v > best {
				best = v
				winners = []int{num}
			} else if v == best {
				winners = append(winners, num)
			}
		}
		if len(winners) == 0 {
			continue
		}
		share := pot.Amount / len(winners)
		odd := pot.Amount - share*len(winners)
		ordered := h.clockwiseWinners(winners)
		for i, num := range ordered {
			amount := share
			if i < odd {
				amount++
			}
			h.seat(num).Chips += amount
			payouts[num] += amount
			categories[num] = best.String()
		}
	}

	for _, s := range h.clockwiseOrder(h.clockwise(h.Dealer).Number) {
		if amount, ok := payouts[s.Number]; ok {
			res.Winners = append(res.Winners, Winner{
				SeatNumber: s.Number,
				UserID:     s.UserID,
				Amount:     amount,
				Category:   categories[s.Number],
			})
		}
	}
	h.finish(res, out)
}

// finish records eliminations and closes out the hand.
func (h *Hand) finish(res *Result, out *Outcome) {
	var busted []*Seat
	for _, s := range h.dealt {
		if s.Chips == 0 && s.Status != SeatEliminated {
			s.Status = SeatEliminated
			busted = append(busted, s)
		}
	}
	// Shorter starting stacks finish lower when several seats bust at once.
	sort.Slice(busted, func(i, j int) bool {
		return h.startChips[busted[i].Number] < h.startChips[busted[j].Number]
	})
	res.Eliminated = busted

	h.Pot = 0
	h.Street = Idle
	h.CurrentTurn = 0
	h.result = res
	out.Complete = true
	out.Result = res
}

// Abort cancels the hand and refunds every seat its full contribution.
// Used when an internal invariant is violated mid-hand.
func (h *Hand) Abort() {
	for _, s := range h.dealt {
		s.Chips += s.TotalBet
		s.Bet = 0
		s.TotalBet = 0
		if (s.Status == SeatFolded || s.Status == SeatAllIn) && s.Chips > 0 {
			s.Status = SeatActive
		}
	}
	h.Pot = 0
	h.Street = Idle
	h.CurrentTurn = 0
	h.result = &Result{}
}

func (h *Hand) abortf(out *Outcome, format string, args ...any) {
	h.Abort()
	h.result = &Result{}
	out.Complete = true
	out.Result = h.result
	out.Err = fmt.Errorf(format, args...)
}

// seat returns the dealt seat with the given number, nil if absent.
func (h *Hand) seat(number int) *Seat {
	for _, s := range h.dealt {
		if s.Number == number {
			return s
		}
	}
	return nil
}

// inHandSeats returns seats still contesting the pot.
func (h *Hand) inHandSeats() []*Seat {
	var in []*Seat
	for _, s := range h.dealt {
		if s.InHand() {
			in = append(in, s)
		}
	}
	return in
}

func (h *Hand) countCanAct() int {
	n := 0
	for _, s := range h.dealt {
		if s.CanAct() {
			n++
		}
	}
	return n
}

// clockwise returns the next dealt seat clockwise from the given seat
// number. Clockwise is decreasing seat number, wrapping from the lowest
// dealt seat to the highest.
func (h *Hand) clockwise(from int) *Seat {
	// dealt is ascending; scan downward from just below `from`, then wrap.
	for i := len(h.dealt) - 1; i >= 0; i-- {
		if h.dealt[i].Number < from {
			return h.dealt[i]
		}
	}
	return h.dealt[len(h.dealt)-1]
}

// clockwiseOrder returns the dealt seats starting at the given seat number
// and proceeding clockwise.
func (h *Hand) clockwiseOrder(start int) []*Seat {
	order := make([]*Seat, 0, len(h.dealt))
	s := h.seat(start)
	if s == nil {
		s = h.clockwise(start)
	}
	for range h.dealt {
		order = append(order, s)
		s = h.clockwise(s.Number)
	}
	return order
}

// nextToAct finds the first seat from `from` clockwise (inclusive) that
// still owes action this round.
func (h *Hand) nextToAct(from *Seat) *Seat {
	s := from
	for range h.dealt {
		if s.CanAct() && (s.Bet < h.Betting.CurrentBet || !h.Betting.HasActed(s.Number)) {
			return s
		}
		s = h.clockwise(s.Number)
	}
	return nil
}

// clockwiseWinners orders the given seat numbers by clockwise distance from
// the dealer, earliest first.
func (h *Hand) clockwiseWinners(winners []int) []int {
	set := make(map[int]bool, len(winners))
	for _, n := range winners {
		set[n] = true
	}
	var ordered []int
	for _, s := range h.clockwiseOrder(h.clockwise(h.Dealer).Number) {
		if set[s.Number] {
			ordered = append(ordered, s.Number)
		}
	}
	return ordered
}

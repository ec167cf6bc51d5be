package game

// BettingRound tracks per-street betting state for one hand: the bet to
// match, the minimum raise increment, and which seats have acted since the
// last full raise. Contributions live on the seats themselves (Seat.Bet).
type BettingRound struct {
	SmallBlind int
	BigBlind   int
	CurrentBet int
	MinRaise   int

	// LastAggressor is the seat number of the last full bet or raise, 0 if
	// none. Short all-ins move CurrentBet without changing it.
	LastAggressor int

	acted map[int]bool
}

// NewBettingRound creates betting state for a hand at the given blind level.
func NewBettingRound(smallBlind, bigBlind int) *BettingRound {
	return &BettingRound{
		SmallBlind: smallBlind,
		BigBlind:   bigBlind,
		MinRaise:   bigBlind,
		acted:      make(map[int]bool),
	}
}

// PostBlinds commits the forced bets. The blind seats are not marked as
// having acted, so both retain their option when action returns to them.
func (br *BettingRound) PostBlinds(sb, bb *Seat) {
	br.commit(sb, min(br.SmallBlind, sb.Chips))
	br.commit(bb, min(br.BigBlind, bb.Chips))
	br.CurrentBet = br.BigBlind
	br.MinRaise = br.BigBlind
	sb.LastAction = "post_small_blind"
	bb.LastAction = "post_big_blind"
}

// Apply validates and applies an action for the seat. It returns the number
// of chips the seat committed. Turn order is the caller's responsibility.
func (br *BettingRound) Apply(seat *Seat, action Action, amount int) (int, error) {
	if !seat.CanAct() {
		return 0, ErrInvalidAction
	}

	switch action {
	case Fold:
		seat.Status = SeatFolded
		seat.LastAction = "fold"
		br.acted[seat.Number] = true
		return 0, nil

	case Check:
		if seat.Bet != br.CurrentBet {
			return 0, ErrInvalidAction
		}
		seat.LastAction = "check"
		br.acted[seat.Number] = true
		return 0, nil

	case Call:
		if br.CurrentBet <= seat.Bet {
			return 0, ErrInvalidAction
		}
		delta := min(br.CurrentBet-seat.Bet, seat.Chips)
		br.commit(seat, delta)
		seat.LastAction = "call"
		br.acted[seat.Number] = true
		return delta, nil

	case Bet:
		if br.CurrentBet != 0 {
			return 0, ErrInvalidAction
		}
		if amount < br.BigBlind {
			return 0, ErrBelowMinimumRaise
		}
		if amount > seat.Chips {
			return 0, ErrInsufficientChips
		}
		br.commit(seat, amount)
		br.CurrentBet = amount
		br.MinRaise = amount
		br.reopen(seat)
		seat.LastAction = "bet"
		return amount, nil

	case Raise:
		if br.acted[seat.Number] {
			// The seat already acted against the last full raise; a short
			// all-in since then raises the price but not the right to
			// re-raise. Call or fold only.
			return 0, ErrInvalidAction
		}
		if amount <= br.CurrentBet {
			return 0, ErrInvalidAction
		}
		delta := amount - seat.Bet
		if delta > seat.Chips {
			return 0, ErrInsufficientChips
		}
		incr := amount - br.CurrentBet
		short := delta == seat.Chips && incr < br.MinRaise
		if incr < br.MinRaise && !short {
			return 0, ErrBelowMinimumRaise
		}
		br.commit(seat, delta)
		br.CurrentBet = amount
		if short {
			// Short all-in: raises the price to call but does not reopen
			// action for seats that already faced the previous raise.
			br.acted[seat.Number] = true
		} else {
			br.MinRaise = incr
			br.reopen(seat)
		}
		seat.LastAction = "raise"
		return delta, nil

	case AllIn:
		if seat.Chips <= 0 {
			return 0, ErrInvalidAction
		}
		if br.acted[seat.Number] && seat.Bet+seat.Chips > br.CurrentBet {
			// An all-in above the price to call is a raise; same restriction.
			return 0, ErrInvalidAction
		}
		delta := seat.Chips
		total := seat.Bet + delta
		br.commit(seat, delta)
		if total > br.CurrentBet {
			incr := total - br.CurrentBet
			br.CurrentBet = total
			if incr >= br.MinRaise {
				br.MinRaise = incr
				br.reopen(seat)
			} else {
				br.acted[seat.Number] = true
			}
		} else {
			br.acted[seat.Number] = true
		}
		seat.LastAction = "allin"
		return delta, nil

	default:
		return 0, ErrInvalidAction
	}
}

// commit moves chips from the seat's stack into its street contribution.
func (br *BettingRound) commit(seat *Seat, amount int) {
	seat.Chips -= amount
	seat.Bet += amount
	seat.TotalBet += amount
	if seat.Chips == 0 {
		seat.Status = SeatAllIn
	}
}

// reopen resets the acted set after a full bet or raise; every other live
// seat owes action again.
func (br *BettingRound) reopen(seat *Seat) {
	br.acted = map[int]bool{seat.Number: true}
	br.LastAggressor = seat.Number
}

// HasActed reports whether the seat has acted since the last full raise.
func (br *BettingRound) HasActed(seatNumber int) bool {
	return br.acted[seatNumber]
}

// MarkActed records an action for completion purposes without betting
// effects. Used for forced folds applied outside normal turn order.
func (br *BettingRound) MarkActed(seatNumber int) {
	br.acted[seatNumber] = true
}

// Complete reports whether the round is finished: every seat still able to
// act has matched the current bet and acted since the last full raise.
func (br *BettingRound) Complete(seats []*Seat) bool {
	for _, s := range seats {
		if !s.CanAct() {
			continue
		}
		if s.Bet != br.CurrentBet || !br.acted[s.Number] {
			return false
		}
	}
	return true
}

// ResetForStreet prepares the next street: bets are assumed collected by the
// hand, the bet to match returns to zero and the minimum raise to one big
// blind.
func (br *BettingRound) ResetForStreet() {
	br.CurrentBet = 0
	br.MinRaise = br.BigBlind
	br.LastAggressor = 0
	br.acted = make(map[int]bool)
}

package game

import "github.com/pokerforge/tourney/poker"

// SeatStatus represents a seat's standing within the current hand and tournament.
type SeatStatus int

const (
	SeatActive SeatStatus = iota
	SeatFolded
	SeatAllIn
	SeatSittingOut
	SeatEliminated
)

func (s SeatStatus) String() string {
	return [...]string{"active", "folded", "allin", "sitting_out", "eliminated"}[s]
}

// Action is a player action within a betting round.
type Action int

const (
	Fold Action = iota
	Check
	Call
	Bet
	Raise
	AllIn
)

func (a Action) String() string {
	return [...]string{"fold", "check", "call", "bet", "raise", "allin"}[a]
}

// ParseAction parses a wire action string.
func ParseAction(s string) (Action, bool) {
	switch s {
	case "fold":
		return Fold, true
	case "check":
		return Check, true
	case "call":
		return Call, true
	case "bet":
		return Bet, true
	case "raise":
		return Raise, true
	case "allin":
		return AllIn, true
	default:
		return Fold, false
	}
}

// Seat is one position at a table. Seat numbers run 1..seatsPerTable and
// "clockwise" means decreasing seat number, wrapping from the lowest occupied
// seat back to the highest.
type Seat struct {
	Number    int
	UserID    string
	Name      string
	Chips     int
	Status    SeatStatus
	IsBot     bool
	HoleCards []poker.Card

	// Per-hand betting state, owned by the Hand.
	Bet        int // contribution this street
	TotalBet   int // contribution this hand
	LastAction string
}

// InHand reports whether the seat is still contesting the current hand.
func (s *Seat) InHand() bool {
	return s.Status == SeatActive || s.Status == SeatAllIn
}

// CanAct reports whether the seat can still take betting actions.
func (s *Seat) CanAct() bool {
	return s.Status == SeatActive
}

// resetForHand clears per-hand state ahead of a new deal.
func (s *Seat) resetForHand() {
	s.Bet = 0
	s.TotalBet = 0
	s.HoleCards = nil
	s.LastAction = ""
	if s.Status == SeatFolded || s.Status == SeatAllIn {
		s.Status = SeatActive
	}
}

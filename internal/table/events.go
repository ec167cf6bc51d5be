package table

import (
	"time"

	"github.com/pokerforge/tourney/internal/game"
	"github.com/pokerforge/tourney/poker"
)

// SeatView is a copy of a seat's public state plus its hole cards. Consumers
// that fan events out to clients are responsible for redacting HoleCards for
// everyone but their owner.
type SeatView struct {
	Number     int          `json:"number"`
	UserID     string       `json:"user_id"`
	Name       string       `json:"name"`
	Chips      int          `json:"chips"`
	Bet        int          `json:"bet"`
	TotalBet   int          `json:"total_bet"`
	Status     string       `json:"status"`
	IsBot      bool         `json:"is_bot"`
	LastAction string       `json:"last_action,omitempty"`
	HoleCards  []poker.Card `json:"hole_cards,omitempty"`
}

// State is a point-in-time snapshot of a table, complete enough to rebuild a
// client's view from scratch.
type State struct {
	TableID     string       `json:"table_id"`
	TableNumber int          `json:"table_number"`
	HandID      string       `json:"hand_id,omitempty"`
	HandNumber  int          `json:"hand_number"`
	Street      string       `json:"street"`
	Board       []poker.Card `json:"board"`
	Pot         int          `json:"pot"`
	CurrentBet  int          `json:"current_bet"`
	MinRaise    int          `json:"min_raise"`
	SmallBlind  int          `json:"small_blind"`
	BigBlind    int          `json:"big_blind"`
	DealerSeat  int          `json:"dealer_seat"`
	SBSeat      int          `json:"sb_seat"`
	BBSeat      int          `json:"bb_seat"`
	CurrentTurn int          `json:"current_turn"`
	Seats       []SeatView   `json:"seats"`
}

// HandStartEvent announces a new deal.
type HandStartEvent struct {
	TableID string
	State   State
}

// TurnEvent announces whose turn it is and when it expires.
type TurnEvent struct {
	TableID    string
	HandID     string
	SeatNumber int
	UserID     string
	Deadline   time.Time
	Countdown  bool // true for the final-countdown warning
}

// ActionEvent reports an applied action.
type ActionEvent struct {
	TableID    string
	HandID     string
	SeatNumber int
	UserID     string
	Action     string
	Amount     int
	Auto       bool // applied by the turn timer, not the player
	State      State
}

// StreetEvent reports newly dealt community cards.
type StreetEvent struct {
	TableID string
	HandID  string
	Street  string
	Board   []poker.Card
	Pot     int
}

// HandEndEvent reports a completed hand.
type HandEndEvent struct {
	TableID string
	HandID  string
	Result  *game.Result
	State   State
}

// Listener receives table lifecycle events on the table's actor goroutine.
// Implementations must not call back into the table synchronously.
type Listener interface {
	HandStarted(HandStartEvent)
	TurnBegan(TurnEvent)
	ActionApplied(ActionEvent)
	StreetDealt(StreetEvent)
	HandEnded(HandEndEvent)
}

// NopListener discards all events.
type NopListener struct{}

func (NopListener) HandStarted(HandStartEvent) {}
func (NopListener) TurnBegan(TurnEvent)        {}
func (NopListener) ActionApplied(ActionEvent)  {}
func (NopListener) StreetDealt(StreetEvent)    {}
func (NopListener) HandEnded(HandEndEvent)     {}

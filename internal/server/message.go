package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/pokerforge/tourney/internal/game"
	"github.com/pokerforge/tourney/internal/store"
	"github.com/pokerforge/tourney/internal/table"
	"github.com/pokerforge/tourney/internal/tournament"
	"github.com/pokerforge/tourney/poker"
)

// MessageType identifies the payload carried in Data.
type MessageType string

const (
	// Client to server.
	MessageTypeAuth             MessageType = "auth"
	MessageTypeRegister         MessageType = "register"
	MessageTypeUnregister       MessageType = "unregister"
	MessageTypeSubscribeTable   MessageType = "subscribe-table"
	MessageTypeUnsubscribeTable MessageType = "unsubscribe-table"
	MessageTypePlayerAction     MessageType = "player-action"

	// Server to client.
	MessageTypeAuthResponse    MessageType = "auth-response"
	MessageTypeTableState      MessageType = "table-state"
	MessageTypeTurnBegin       MessageType = "turn-begin"
	MessageTypeActionApplied   MessageType = "action-applied"
	MessageTypeStreetDealt     MessageType = "street-dealt"
	MessageTypeHandResult      MessageType = "hand-result"
	MessageTypeTournamentState MessageType = "tournament-state"
	MessageTypeError           MessageType = "error"
)

// Message is the websocket envelope.
type Message struct {
	Type      MessageType     `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
	RequestID string          `json:"request_id,omitempty"`
}

// NewMessage creates a message with the current timestamp.
func NewMessage(messageType MessageType, data any) (*Message, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Message{
		Type:      messageType,
		Data:      dataBytes,
		Timestamp: time.Now(),
	}, nil
}

// mustMessage is NewMessage for payloads that cannot fail to marshal.
func mustMessage(messageType MessageType, data any) *Message {
	msg, err := NewMessage(messageType, data)
	if err != nil {
		panic(err)
	}
	return msg
}

// Client to server payloads.

type AuthData struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

type RegisterData struct {
	TournamentID string `json:"tournament_id"`
}

type SubscribeTableData struct {
	TableID string `json:"table_id"`
}

type PlayerActionData struct {
	TableID string `json:"table_id"`
	Action  string `json:"action"` // FOLD, CHECK, CALL, BET, RAISE, ALL_IN
	Amount  int    `json:"amount"`
}

// Server to client payloads.

type AuthResponseData struct {
	Success bool   `json:"success"`
	UserID  string `json:"user_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

type ErrorData struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// SeatState is one seat in a table-state snapshot, redacted per recipient.
type SeatState struct {
	SeatNumber   int          `json:"seat_number"`
	UserID       string       `json:"user_id"`
	DisplayName  string       `json:"display_name"`
	Chips        int          `json:"chips"`
	Status       string       `json:"status"`
	Contribution int          `json:"contribution_this_round"`
	HoleCards    []poker.Card `json:"hole_cards,omitempty"`
}

// TableStateData is the full table snapshot.
type TableStateData struct {
	TableID         string       `json:"table_id"`
	TournamentID    string       `json:"tournament_id"`
	TableNumber     int          `json:"table_number"`
	Street          string       `json:"street"`
	Pot             int          `json:"pot"`
	CurrentBet      int          `json:"current_bet"`
	MinimumRaise    int          `json:"minimum_raise"`
	SmallBlind      int          `json:"small_blind"`
	BigBlind        int          `json:"big_blind"`
	DealerSeat      int          `json:"dealer_seat"`
	SBSeat          int          `json:"sb_seat"`
	BBSeat          int          `json:"bb_seat"`
	CurrentTurnSeat int          `json:"current_turn_seat,omitempty"`
	CommunityCards  []poker.Card `json:"community_cards"`
	Seats           []SeatState  `json:"seats"`
}

type TurnBeginData struct {
	TableID        string `json:"table_id"`
	UserID         string `json:"user_id"`
	DeadlineEpochs int64  `json:"deadline_epoch_ms"`
	DurationMS     int64  `json:"duration_ms"`
	Countdown      bool   `json:"countdown,omitempty"`
}

type ActionAppliedData struct {
	TableID string          `json:"table_id"`
	UserID  string          `json:"user_id"`
	Action  string          `json:"action"`
	Amount  int             `json:"amount"`
	Auto    bool            `json:"auto,omitempty"`
	State   *TableStateData `json:"state,omitempty"`
}

type StreetDealtData struct {
	TableID        string       `json:"table_id"`
	Street         string       `json:"street"`
	CommunityCards []poker.Card `json:"community_cards"`
	Pot            int          `json:"pot"`
}

type HandWinner struct {
	UserID   string `json:"user_id"`
	Amount   int    `json:"amount"`
	Category string `json:"category,omitempty"`
}

type HandReveal struct {
	UserID string       `json:"user_id"`
	Cards  []poker.Card `json:"cards"`
}

type HandResultData struct {
	TableID string       `json:"table_id"`
	Winners []HandWinner `json:"winners"`
	Reveals []HandReveal `json:"reveals,omitempty"`
}

type TournamentStateData struct {
	ID               string               `json:"id"`
	Status           string               `json:"status"`
	CurrentLevel     int                  `json:"current_blind_level"`
	RemainingPlayers int                  `json:"remaining_players"`
	Standings        []tournament.Standing `json:"standings,omitempty"`
}

// parseWireAction maps the wire's upper-case action names onto game actions.
func parseWireAction(s string) (game.Action, bool) {
	switch s {
	case "FOLD":
		return game.Fold, true
	case "CHECK":
		return game.Check, true
	case "CALL":
		return game.Call, true
	case "BET":
		return game.Bet, true
	case "RAISE":
		return game.Raise, true
	case "ALL_IN":
		return game.AllIn, true
	default:
		return game.ParseAction(s)
	}
}

// errorCode maps engine errors onto the stable wire codes.
func errorCode(err error) string {
	switch {
	case errors.Is(err, game.ErrInvalidAction):
		return "invalid_action"
	case errors.Is(err, game.ErrBelowMinimumRaise):
		return "below_minimum_raise"
	case errors.Is(err, game.ErrInsufficientChips):
		return "insufficient_chips"
	case errors.Is(err, game.ErrOutOfTurn):
		return "out_of_turn"
	case errors.Is(err, game.ErrHandComplete):
		return "invalid_action"
	case errors.Is(err, tournament.ErrNotRegistered):
		return "not_registered"
	case errors.Is(err, tournament.ErrTournamentFull):
		return "tournament_full"
	case errors.Is(err, tournament.ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, tournament.ErrInsufficientPlayers):
		return "invalid_state"
	case errors.Is(err, store.ErrNotFound), errors.Is(err, table.ErrNotSeated):
		return "not_found"
	default:
		return "internal"
	}
}

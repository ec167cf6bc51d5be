package game

import "errors"

// Betting rule violations. The server layer maps these to stable wire codes,
// so they are sentinel values rather than ad hoc fmt.Errorf strings.
var (
	ErrInvalidAction     = errors.New("invalid action")
	ErrBelowMinimumRaise = errors.New("raise below minimum")
	ErrInsufficientChips = errors.New("insufficient chips")
	ErrOutOfTurn         = errors.New("not your turn")
	ErrHandComplete      = errors.New("hand is complete")
	ErrTooFewPlayers     = errors.New("need at least 2 players with chips")
)

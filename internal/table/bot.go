package table

import "github.com/pokerforge/tourney/internal/game"

// botAct decides and applies a bot's action. The mixed policy is 30% fold,
// 40% passive (check or call), 30% aggressive (half-pot sized bet or raise),
// drawn from the table's seeded RNG so runs are reproducible.
func (t *Table) botAct(seq uint64, seat *game.Seat) {
	if seq != t.turnSeq || t.hand == nil || t.hand.Complete() {
		return
	}
	action, amount := t.botDecision(seat)
	if err := t.applyAction(seat, action, amount, false); err != nil {
		// The aggressive branch can collide with betting rules in corner
		// cases; degrade to the passive line rather than stall the hand.
		t.logger.Debug("bot action rejected, falling back", "seat", seat.Number, "action", action, "error", err)
		fallback := game.Check
		if seat.Bet < t.hand.Betting.CurrentBet {
			fallback = game.Call
		}
		if err := t.applyAction(seat, fallback, 0, false); err != nil {
			t.logger.Error("bot fallback failed, folding", "seat", seat.Number, "error", err)
			_ = t.applyAction(seat, game.Fold, 0, false)
		}
	}
}

func (t *Table) botDecision(seat *game.Seat) (game.Action, int) {
	br := t.hand.Betting
	facing := seat.Bet < br.CurrentBet
	roll := t.rng.Float64()

	switch {
	case roll < 0.30:
		if facing {
			return game.Fold, 0
		}
		return game.Check, 0

	case roll < 0.70:
		if facing {
			return game.Call, 0
		}
		return game.Check, 0

	default:
		// Half the pot including live bets, floored at a minimum-sized
		// bet or raise, going all-in when short.
		pot := t.hand.Pot
		for _, s := range t.hand.Seats() {
			pot += s.Bet
		}
		if br.CurrentBet == 0 {
			amount := max(br.BigBlind, pot/2)
			if amount >= seat.Chips+seat.Bet {
				return game.AllIn, 0
			}
			return game.Bet, amount
		}
		amount := br.CurrentBet + max(br.MinRaise, pot/2)
		if amount-seat.Bet >= seat.Chips {
			return game.AllIn, 0
		}
		return game.Raise, amount
	}
}

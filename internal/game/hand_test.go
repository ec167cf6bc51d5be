package game

import (
	rand "math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pokerforge/tourney/poker"
)

func stackedDeck(t *testing.T, cards string) *poker.Deck {
	t.Helper()
	parsed, err := poker.ParseCards(cards)
	require.NoError(t, err)
	deck, err := poker.NewStackedDeck(parsed...)
	require.NoError(t, err)
	return deck
}

func mustApply(t *testing.T, h *Hand, seat int, action Action, amount int) Outcome {
	t.Helper()
	out, err := h.Apply(seat, action, amount)
	require.NoError(t, err)
	return out
}

func TestNewHandRejectsSinglePlayer(t *testing.T) {
	seats := []*Seat{{Number: 1, Chips: 1000, Status: SeatActive}}
	_, err := NewHand(HandConfig{Number: 1, Seats: seats, PrevDealer: 1, SmallBlind: 10, BigBlind: 20})
	assert.ErrorIs(t, err, ErrTooFewPlayers)
}

func TestNewHandSkipsEliminatedAndBrokeSeats(t *testing.T) {
	seats := []*Seat{
		{Number: 1, Chips: 1000, Status: SeatActive},
		{Number: 2, Chips: 0, Status: SeatActive},
		{Number: 3, Chips: 500, Status: SeatEliminated},
		{Number: 4, Chips: 800, Status: SeatActive},
	}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: seats, PrevDealer: 4, SmallBlind: 10, BigBlind: 20,
		Deck: stackedDeck(t, ""),
	})
	require.NoError(t, err)
	assert.Len(t, h.Seats(), 2)
}

func TestHeadsUpPositions(t *testing.T) {
	seats := []*Seat{
		{Number: 1, UserID: "alice", Chips: 1000, Status: SeatActive},
		{Number: 2, UserID: "bob", Chips: 1000, Status: SeatActive},
	}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: seats, PrevDealer: 1, SmallBlind: 10, BigBlind: 20,
		Deck: stackedDeck(t, ""),
	})
	require.NoError(t, err)

	// Clockwise from seat 1 wraps to seat 2.
	assert.Equal(t, 2, h.Dealer)
	assert.Equal(t, 2, h.SBSeat, "heads-up dealer posts the small blind")
	assert.Equal(t, 1, h.BBSeat)
	assert.Equal(t, 2, h.CurrentTurn, "heads-up dealer acts first preflop")
}

func TestFirstHandRandomDealer(t *testing.T) {
	seats := []*Seat{
		{Number: 1, Chips: 1000, Status: SeatActive},
		{Number: 2, Chips: 1000, Status: SeatActive},
		{Number: 3, Chips: 1000, Status: SeatActive},
	}
	rng := rand.New(rand.NewPCG(7, 7))
	h, err := NewHand(HandConfig{
		Number: 1, Seats: seats, SmallBlind: 10, BigBlind: 20,
		Deck: stackedDeck(t, ""), RNG: rng,
	})
	require.NoError(t, err)
	assert.Contains(t, []int{1, 2, 3}, h.Dealer)
	assert.NotEqual(t, h.Dealer, h.SBSeat)
	assert.NotEqual(t, h.SBSeat, h.BBSeat)
}

// Full heads-up hand to showdown: blinds, betting on every street, pot award.
func TestHeadsUpHandToShowdown(t *testing.T) {
	alice := &Seat{Number: 1, UserID: "alice", Chips: 1000, Status: SeatActive}
	bob := &Seat{Number: 2, UserID: "bob", Chips: 1000, Status: SeatActive}

	// Hole cards go out clockwise from the small blind (seat 2) in two
	// passes, so bob gets cards 1 and 3, alice cards 2 and 4.
	deck := stackedDeck(t, "AhKhAsKs"+"3c"+"7d8d9d"+"5c"+"2h"+"6c"+"3h")
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{alice, bob}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: deck,
	})
	require.NoError(t, err)

	assert.Equal(t, []poker.Card{poker.MustParseCard("Ah"), poker.MustParseCard("As")}, bob.HoleCards)
	assert.Equal(t, []poker.Card{poker.MustParseCard("Kh"), poker.MustParseCard("Ks")}, alice.HoleCards)

	// Preflop: dealer limps, big blind checks the option.
	out := mustApply(t, h, 2, Call, 0)
	assert.Equal(t, 10, out.Committed)
	assert.Equal(t, 1, h.CurrentTurn)
	out = mustApply(t, h, 1, Check, 0)
	assert.True(t, out.StreetAdvanced)
	assert.Equal(t, Flop, h.Street)
	assert.Len(t, h.Board, 3)
	assert.Equal(t, 40, h.Pot)
	assert.Equal(t, 1, h.CurrentTurn, "big blind acts first postflop heads-up")

	// Flop: check, bet, call.
	mustApply(t, h, 1, Check, 0)
	mustApply(t, h, 2, Bet, 40)
	out = mustApply(t, h, 1, Call, 0)
	assert.True(t, out.StreetAdvanced)
	assert.Equal(t, Turn, h.Street)
	assert.Equal(t, 120, h.Pot)

	// Turn: check through.
	mustApply(t, h, 1, Check, 0)
	out = mustApply(t, h, 2, Check, 0)
	assert.Equal(t, River, h.Street)
	assert.Len(t, h.Board, 5)

	// River: bet, raise, call, showdown.
	mustApply(t, h, 1, Bet, 100)
	mustApply(t, h, 2, Raise, 250)
	out = mustApply(t, h, 1, Call, 0)

	require.True(t, out.Complete)
	res := out.Result
	require.NotNil(t, res)
	assert.True(t, res.Showdown)
	assert.Equal(t, 620, res.Pot)
	require.Len(t, res.Winners, 1)
	assert.Equal(t, "bob", res.Winners[0].UserID)
	assert.Equal(t, 620, res.Winners[0].Amount)
	assert.Equal(t, "Pair", res.Winners[0].Category)
	assert.Len(t, res.Reveals, 2)
	assert.Empty(t, res.Eliminated)

	assert.Equal(t, 1310, bob.Chips)
	assert.Equal(t, 690, alice.Chips)
	assert.Equal(t, 2000, alice.Chips+bob.Chips, "chips are conserved")
	assert.True(t, h.Complete())
}

// A short-stacked big blind posting all-in must not end betting: the dealer
// still owes a call and keeps the decision to pay it off or fold.
func TestShortBlindAllInLeavesDealerTheAction(t *testing.T) {
	alice := &Seat{Number: 1, UserID: "alice", Chips: 15, Status: SeatActive}
	bob := &Seat{Number: 2, UserID: "bob", Chips: 1000, Status: SeatActive}

	deck := stackedDeck(t, "AhKhAsKs"+"3c"+"7d8d9d"+"5c"+"2h"+"6c"+"3h")
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{alice, bob}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: deck,
	})
	require.NoError(t, err)

	require.False(t, h.Complete(), "dealer still owes a call")
	assert.Equal(t, 2, h.CurrentTurn)
	assert.False(t, h.Betting.Complete(h.Seats()))

	out := mustApply(t, h, 2, Call, 0)
	require.True(t, out.Complete)
	res := out.Result
	require.NotNil(t, res)
	assert.True(t, res.Showdown)

	// Main pot 30, uncalled 5 back to bob as a single-seat side pot.
	assert.Equal(t, 1015, bob.Chips)
	assert.Equal(t, 0, alice.Chips)
	require.Len(t, res.Eliminated, 1)
	assert.Equal(t, "alice", res.Eliminated[0].UserID)
}

func TestDealerMayFoldToShortBlindAllIn(t *testing.T) {
	alice := &Seat{Number: 1, UserID: "alice", Chips: 15, Status: SeatActive}
	bob := &Seat{Number: 2, UserID: "bob", Chips: 1000, Status: SeatActive}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{alice, bob}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: stackedDeck(t, "AhKhAsKs"),
	})
	require.NoError(t, err)

	out := mustApply(t, h, 2, Fold, 0)
	require.True(t, out.Complete)
	assert.False(t, out.Result.Showdown)
	assert.Equal(t, 25, alice.Chips, "big blind collects both blinds")
	assert.Equal(t, 990, bob.Chips)
}

// Both blinds all-in from posting leaves no decision at all; the board runs
// out inside the constructor.
func TestBlindsAllInRunsBoardOut(t *testing.T) {
	alice := &Seat{Number: 1, UserID: "alice", Chips: 15, Status: SeatActive}
	bob := &Seat{Number: 2, UserID: "bob", Chips: 8, Status: SeatActive}

	deck := stackedDeck(t, "AhKhAsKs"+"3c"+"7d8d9d"+"5c"+"2h"+"6c"+"3h")
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{alice, bob}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: deck,
	})
	require.NoError(t, err)

	require.True(t, h.Complete())
	assert.Equal(t, 0, h.CurrentTurn)
	res := h.Result()
	require.NotNil(t, res)
	assert.True(t, res.Showdown)

	// Main pot 16 to bob's aces; alice's uncalled 7 comes back.
	assert.Equal(t, 16, bob.Chips)
	assert.Equal(t, 7, alice.Chips)
	assert.Empty(t, res.Eliminated)
}

func TestFoldEndsHandUncontested(t *testing.T) {
	alice := &Seat{Number: 1, UserID: "alice", Chips: 1000, Status: SeatActive}
	bob := &Seat{Number: 2, UserID: "bob", Chips: 1000, Status: SeatActive}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{alice, bob}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: stackedDeck(t, ""),
	})
	require.NoError(t, err)

	// Dealer folds preflop; big blind collects both blinds without showdown.
	out := mustApply(t, h, 2, Fold, 0)
	require.True(t, out.Complete)
	res := out.Result
	assert.False(t, res.Showdown)
	assert.Empty(t, res.Reveals)
	require.Len(t, res.Winners, 1)
	assert.Equal(t, "alice", res.Winners[0].UserID)
	assert.Equal(t, 30, res.Winners[0].Amount)
	assert.Empty(t, res.Winners[0].Category)

	assert.Equal(t, 1010, alice.Chips)
	assert.Equal(t, 990, bob.Chips)
}

func TestOutOfTurnRejected(t *testing.T) {
	alice := &Seat{Number: 1, Chips: 1000, Status: SeatActive}
	bob := &Seat{Number: 2, Chips: 1000, Status: SeatActive}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{alice, bob}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: stackedDeck(t, ""),
	})
	require.NoError(t, err)

	require.Equal(t, 2, h.CurrentTurn)
	_, err = h.Apply(1, Call, 0)
	assert.ErrorIs(t, err, ErrOutOfTurn)

	// State unchanged after the rejected action.
	assert.Equal(t, 2, h.CurrentTurn)
	assert.Equal(t, Preflop, h.Street)
}

func TestApplyAfterCompleteRejected(t *testing.T) {
	alice := &Seat{Number: 1, Chips: 1000, Status: SeatActive}
	bob := &Seat{Number: 2, Chips: 1000, Status: SeatActive}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{alice, bob}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: stackedDeck(t, ""),
	})
	require.NoError(t, err)

	mustApply(t, h, 2, Fold, 0)
	_, err = h.Apply(1, Check, 0)
	assert.ErrorIs(t, err, ErrHandComplete)
}

// Three-way all-in preflop: the short stack triples through the main pot
// while the covering stack takes the side pot.
func TestThreeWayAllInSidePots(t *testing.T) {
	s1 := &Seat{Number: 1, UserID: "big", Chips: 1000, Status: SeatActive}
	s2 := &Seat{Number: 2, UserID: "mid", Chips: 300, Status: SeatActive}
	s3 := &Seat{Number: 3, UserID: "short", Chips: 150, Status: SeatActive}

	// Dealer 3, SB 2, BB 1. Hole cards clockwise from seat 2: mid gets KK,
	// big QQ, short AA.
	deck := stackedDeck(t, "KhQhAhKsQsAs"+"3c"+"2c7d8h"+"3d"+"Th"+"3h"+"4s")
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{s1, s2, s3}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: deck,
	})
	require.NoError(t, err)

	require.Equal(t, 3, h.Dealer)
	require.Equal(t, 2, h.SBSeat)
	require.Equal(t, 1, h.BBSeat)
	require.Equal(t, 3, h.CurrentTurn, "seat after the big blind opens")

	mustApply(t, h, 3, AllIn, 0)
	mustApply(t, h, 2, AllIn, 0)
	out := mustApply(t, h, 1, Call, 0)

	// Everyone all-in or matched: board runs out and the hand completes.
	require.True(t, out.Complete)
	res := out.Result
	require.NotNil(t, res)
	assert.True(t, res.Showdown)
	assert.Equal(t, 750, res.Pot)

	require.Len(t, res.Winners, 2)
	byUser := make(map[string]Winner)
	for _, w := range res.Winners {
		byUser[w.UserID] = w
	}
	assert.Equal(t, 450, byUser["short"].Amount, "main pot: 150 from each seat")
	assert.Equal(t, 300, byUser["mid"].Amount, "side pot between the two covering seats")
	assert.Equal(t, "Pair", byUser["short"].Category)

	assert.Equal(t, 450, s3.Chips)
	assert.Equal(t, 300, s2.Chips)
	assert.Equal(t, 700, s1.Chips)
	assert.Equal(t, 1450, s1.Chips+s2.Chips+s3.Chips)
	assert.Empty(t, res.Eliminated)
}

func TestEliminationOrderByStartingChips(t *testing.T) {
	s1 := &Seat{Number: 1, UserID: "big", Chips: 1000, Status: SeatActive}
	s2 := &Seat{Number: 2, UserID: "mid", Chips: 300, Status: SeatActive}
	s3 := &Seat{Number: 3, UserID: "short", Chips: 150, Status: SeatActive}

	// Same positions as above, but the covering stack holds the aces.
	deck := stackedDeck(t, "KhAhQhKsAsQs"+"3c"+"2c7d8h"+"3d"+"Th"+"3h"+"4s")
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{s1, s2, s3}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: deck,
	})
	require.NoError(t, err)

	mustApply(t, h, 3, AllIn, 0)
	mustApply(t, h, 2, AllIn, 0)
	out := mustApply(t, h, 1, Call, 0)

	require.True(t, out.Complete)
	res := out.Result
	require.Len(t, res.Winners, 1)
	assert.Equal(t, "big", res.Winners[0].UserID)
	assert.Equal(t, 750, res.Winners[0].Amount)

	require.Len(t, res.Eliminated, 2)
	assert.Equal(t, "short", res.Eliminated[0].UserID, "shorter start stack finishes lower")
	assert.Equal(t, "mid", res.Eliminated[1].UserID)
	assert.Equal(t, SeatEliminated, s2.Status)
	assert.Equal(t, SeatEliminated, s3.Status)
	assert.Equal(t, 1450, s1.Chips)
}

func TestSplitPotOddChip(t *testing.T) {
	s1 := &Seat{Number: 1, UserID: "a", Chips: 1000, Status: SeatActive}
	s2 := &Seat{Number: 2, UserID: "b", Chips: 1000, Status: SeatActive}
	s3 := &Seat{Number: 3, UserID: "c", Chips: 1000, Status: SeatActive}

	// Seats 1 and 3 both play the broadway straight on the board; the folded
	// small blind leaves an odd pot behind.
	deck := stackedDeck(t, "9c2c2d9d3c3d"+"4c"+"TsJsQs"+"4d"+"Kh"+"4h"+"Ah")
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{s1, s2, s3}, PrevDealer: 1,
		SmallBlind: 15, BigBlind: 30, Deck: deck,
	})
	require.NoError(t, err)

	require.Equal(t, 3, h.Dealer)
	mustApply(t, h, 3, Raise, 75)
	mustApply(t, h, 2, Fold, 0)
	mustApply(t, h, 1, Call, 0)
	for !h.Complete() {
		mustApply(t, h, h.CurrentTurn, Check, 0)
	}

	res := h.Result()
	require.NotNil(t, res)
	assert.Equal(t, 165, res.Pot)
	require.Len(t, res.Winners, 2)
	assert.Equal(t, "Straight", res.Winners[0].Category)

	// 165 splits 82/82 with one odd chip to the earliest clockwise seat
	// from the dealer.
	byUser := make(map[string]int)
	for _, w := range res.Winners {
		byUser[w.UserID] = w.Amount
	}
	assert.Equal(t, 83, byUser["a"])
	assert.Equal(t, 82, byUser["c"])
	assert.Equal(t, 3000, s1.Chips+s2.Chips+s3.Chips)
}

func TestForceFoldAdvancesHand(t *testing.T) {
	seats := []*Seat{
		{Number: 1, UserID: "a", Chips: 1000, Status: SeatActive},
		{Number: 2, UserID: "b", Chips: 1000, Status: SeatActive},
		{Number: 3, UserID: "c", Chips: 1000, Status: SeatActive},
		{Number: 4, UserID: "d", Chips: 1000, Status: SeatActive},
	}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: seats, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: stackedDeck(t, ""),
	})
	require.NoError(t, err)

	// Dealer 4, SB 3, BB 2; seat 1 opens. A disconnecting seat that does not
	// hold the turn folds without moving the action.
	require.Equal(t, 1, h.CurrentTurn)
	out := h.ForceFold(3)
	assert.False(t, out.Complete)
	assert.Equal(t, SeatFolded, seats[2].Status)
	assert.Equal(t, 1, h.CurrentTurn, "turn holder keeps the action")

	// Folding the turn holder passes action on.
	out = h.ForceFold(1)
	assert.False(t, out.Complete)
	assert.Equal(t, 4, h.CurrentTurn)

	mustApply(t, h, 4, Call, 0)
	out = mustApply(t, h, 2, Check, 0)
	assert.True(t, out.StreetAdvanced)
	require.Equal(t, 2, h.CurrentTurn, "first live seat clockwise of the dealer")

	h.ForceFold(2)
	res := h.Result()
	require.NotNil(t, res)
	require.Len(t, res.Winners, 1)
	assert.Equal(t, "d", res.Winners[0].UserID, "last unfolded seat wins")
	assert.Equal(t, 1030, seats[3].Chips, "pot holds both blinds and the call")
}

func TestChipConservationThroughHand(t *testing.T) {
	seats := []*Seat{
		{Number: 1, UserID: "a", Chips: 500, Status: SeatActive},
		{Number: 2, UserID: "b", Chips: 1500, Status: SeatActive},
		{Number: 3, UserID: "c", Chips: 1000, Status: SeatActive},
	}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: seats, PrevDealer: 1,
		SmallBlind: 25, BigBlind: 50, Deck: stackedDeck(t, ""),
	})
	require.NoError(t, err)

	assert.Equal(t, 3000, h.TotalChips())
	mustApply(t, h, 3, Call, 0)
	assert.Equal(t, 3000, h.TotalChips())
	mustApply(t, h, 2, Call, 0)
	mustApply(t, h, 1, Check, 0)
	assert.Equal(t, 3000, h.TotalChips())

	for !h.Complete() {
		mustApply(t, h, h.CurrentTurn, Check, 0)
	}

	total := 0
	for _, s := range seats {
		total += s.Chips
	}
	assert.Equal(t, 3000, total)
}

func TestAbortRefundsContributions(t *testing.T) {
	alice := &Seat{Number: 1, Chips: 1000, Status: SeatActive}
	bob := &Seat{Number: 2, Chips: 1000, Status: SeatActive}
	h, err := NewHand(HandConfig{
		Number: 1, Seats: []*Seat{alice, bob}, PrevDealer: 1,
		SmallBlind: 10, BigBlind: 20, Deck: stackedDeck(t, ""),
	})
	require.NoError(t, err)

	mustApply(t, h, 2, Raise, 100)
	h.Abort()

	assert.Equal(t, 1000, alice.Chips)
	assert.Equal(t, 1000, bob.Chips)
	assert.Equal(t, 0, h.Pot)
	assert.True(t, h.Complete())
}

package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func contributed(number, total int, status SeatStatus) *Seat {
	return &Seat{Number: number, Chips: 1000, Status: status, TotalBet: total}
}

func TestBuildPotsSingle(t *testing.T) {
	seats := []*Seat{
		contributed(1, 100, SeatActive),
		contributed(2, 100, SeatActive),
		contributed(3, 100, SeatActive),
	}
	pots := BuildPots(seats)
	require.Len(t, pots, 1)
	assert.Equal(t, 300, pots[0].Amount)
	assert.Equal(t, []int{1, 2, 3}, pots[0].Eligible)
}

func TestBuildPotsSidePot(t *testing.T) {
	// Short stack all-in for 50, two others contest 200 each.
	seats := []*Seat{
		contributed(1, 50, SeatAllIn),
		contributed(2, 200, SeatActive),
		contributed(3, 200, SeatActive),
	}
	pots := BuildPots(seats)
	require.Len(t, pots, 2)

	assert.Equal(t, 150, pots[0].Amount)
	assert.Equal(t, []int{1, 2, 3}, pots[0].Eligible)

	assert.Equal(t, 300, pots[1].Amount)
	assert.Equal(t, []int{2, 3}, pots[1].Eligible)
}

func TestBuildPotsFoldedChipsStay(t *testing.T) {
	// A folded seat's partial contribution fills the layers it reaches but
	// earns no eligibility.
	seats := []*Seat{
		contributed(1, 30, SeatFolded),
		contributed(2, 100, SeatAllIn),
		contributed(3, 250, SeatActive),
		contributed(4, 250, SeatActive),
	}
	pots := BuildPots(seats)
	require.Len(t, pots, 2)

	// Layer up to 100: 30 + 100 + 100 + 100.
	assert.Equal(t, 330, pots[0].Amount)
	assert.Equal(t, []int{2, 3, 4}, pots[0].Eligible)

	// Layer 100..250 from the two live seats only.
	assert.Equal(t, 300, pots[1].Amount)
	assert.Equal(t, []int{3, 4}, pots[1].Eligible)

	total := 0
	for _, p := range pots {
		total += p.Amount
	}
	assert.Equal(t, 30+100+250+250, total, "every committed chip lands in a pot")
}

func TestBuildPotsThreeWayLadder(t *testing.T) {
	seats := []*Seat{
		contributed(1, 100, SeatAllIn),
		contributed(2, 300, SeatAllIn),
		contributed(3, 600, SeatActive),
	}
	pots := BuildPots(seats)
	require.Len(t, pots, 3)
	assert.Equal(t, 300, pots[0].Amount)
	assert.Equal(t, []int{1, 2, 3}, pots[0].Eligible)
	assert.Equal(t, 400, pots[1].Amount)
	assert.Equal(t, []int{2, 3}, pots[1].Eligible)
	assert.Equal(t, 300, pots[2].Amount)
	assert.Equal(t, []int{3}, pots[2].Eligible)
}

func TestBuildPotsNoContributions(t *testing.T) {
	seats := []*Seat{contributed(1, 0, SeatActive), contributed(2, 0, SeatActive)}
	assert.Empty(t, BuildPots(seats))
}

package game

import "sort"

// Pot is a main or side pot built from the hand's committed contributions.
// Pots are ordered main first; each later pot has a strictly smaller set of
// eligible seats.
type Pot struct {
	Amount   int
	Eligible []int // seat numbers, ascending
}

// BuildPots layers the total contributions of the hand into side pots.
// Commitment levels are the distinct totals of seats still in the hand;
// folded seats' chips fill the layers they reach but earn no eligibility.
func BuildPots(seats []*Seat) []Pot {
	levelSet := make(map[int]bool)
	for _, s := range seats {
		if s.InHand() && s.TotalBet > 0 {
			levelSet[s.TotalBet] = true
		}
	}
	levels := make([]int, 0, len(levelSet))
	for l := range levelSet {
		levels = append(levels, l)
	}
	sort.Ints(levels)

	var pots []Pot
	prev := 0
	for _, level := range levels {
		pot := Pot{}
		for _, s := range seats {
			contrib := min(s.TotalBet, level) - prev
			if contrib > 0 {
				pot.Amount += contrib
			}
			if s.InHand() && s.TotalBet >= level {
				pot.Eligible = append(pot.Eligible, s.Number)
			}
		}
		if pot.Amount > 0 {
			sort.Ints(pot.Eligible)
			pots = append(pots, pot)
		}
		prev = level
	}
	return pots
}

package tournament

import (
	"math"
	"math/rand/v2"
	"sort"
)

// SeatAssignment places one player at a table and seat for the initial deal.
type SeatAssignment struct {
	TableNumber int
	SeatNumber  int
	UserID      string
}

// AssignSeating shuffles the registrants and deals them into
// ceil(N/seatsPerTable) tables, balanced within one player of each other.
// Table numbers start at 1 and seat numbers fill 1..seatsPerTable from the
// bottom.
func AssignSeating(userIDs []string, seatsPerTable int, rng *rand.Rand) []SeatAssignment {
	n := len(userIDs)
	if n == 0 {
		return nil
	}
	shuffled := make([]string, n)
	copy(shuffled, userIDs)
	rng.Shuffle(n, func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	tables := tablesFor(n, seatsPerTable)
	base := n / tables
	extra := n % tables // the first extra tables take one more player

	out := make([]SeatAssignment, 0, n)
	idx := 0
	for tbl := 1; tbl <= tables; tbl++ {
		size := base
		if tbl <= extra {
			size++
		}
		for seat := 1; seat <= size; seat++ {
			out = append(out, SeatAssignment{TableNumber: tbl, SeatNumber: seat, UserID: shuffled[idx]})
			idx++
		}
	}
	return out
}

func tablesFor(players, seatsPerTable int) int {
	return int(math.Ceil(float64(players) / float64(seatsPerTable)))
}

// tableCount is the player census of one active table, used by the
// consolidation planner.
type tableCount struct {
	Number  int
	Players int
}

// pickBreaking chooses the table to break: fewest remaining players, largest
// table number on a tie. Returns -1 when no break is needed, i.e. the active
// table count already matches ceil(remaining/seatsPerTable).
func pickBreaking(counts []tableCount, seatsPerTable int) int {
	remaining := 0
	for _, c := range counts {
		remaining += c.Players
	}
	if len(counts) <= tablesFor(remaining, seatsPerTable) {
		return -1
	}
	best := -1
	for _, c := range counts {
		if best == -1 {
			best = c.Number
			continue
		}
		bp := playersAt(counts, best)
		if c.Players < bp || (c.Players == bp && c.Number > best) {
			best = c.Number
		}
	}
	return best
}

// pickReceiving chooses the destination for a moved player: fewest players,
// smallest table number on a tie. exclude is the donor table.
func pickReceiving(counts []tableCount, exclude int) int {
	best := -1
	for _, c := range counts {
		if c.Number == exclude {
			continue
		}
		if best == -1 {
			best = c.Number
			continue
		}
		bp := playersAt(counts, best)
		if c.Players < bp || (c.Players == bp && c.Number < best) {
			best = c.Number
		}
	}
	return best
}

// balanceMove returns the donor and receiver table numbers when two active
// tables differ by more than one player, or (-1, -1) when balanced.
func balanceMove(counts []tableCount) (donor, receiver int) {
	if len(counts) < 2 {
		return -1, -1
	}
	sorted := make([]tableCount, len(counts))
	copy(sorted, counts)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Players != sorted[j].Players {
			return sorted[i].Players > sorted[j].Players
		}
		return sorted[i].Number < sorted[j].Number
	})
	largest, smallest := sorted[0], sorted[len(sorted)-1]
	if largest.Players-smallest.Players <= 1 {
		return -1, -1
	}
	return largest.Number, smallest.Number
}

func playersAt(counts []tableCount, number int) int {
	for _, c := range counts {
		if c.Number == number {
			return c.Players
		}
	}
	return 0
}

// lowestVacantSeat returns the smallest seat number in 1..seatsPerTable not
// present in occupied, or 0 when the table is full.
func lowestVacantSeat(occupied []int, seatsPerTable int) int {
	taken := make(map[int]bool, len(occupied))
	for _, s := range occupied {
		taken[s] = true
	}
	for seat := 1; seat <= seatsPerTable; seat++ {
		if !taken[seat] {
			return seat
		}
	}
	return 0
}

// nextClockwiseSeat returns the first seat in occupied strictly clockwise
// from the given seat. Clockwise runs toward decreasing seat numbers, wrapping
// from the lowest back to the highest.
func nextClockwiseSeat(occupied []int, from int) int {
	if len(occupied) == 0 {
		return 0
	}
	sorted := make([]int, len(occupied))
	copy(sorted, occupied)
	sort.Sort(sort.Reverse(sort.IntSlice(sorted)))
	for _, s := range sorted {
		if s < from {
			return s
		}
	}
	return sorted[0]
}

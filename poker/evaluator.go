package poker

import (
	"errors"
	"sort"
)

// ErrTooFewCards is returned when fewer than five cards are given to Evaluate.
var ErrTooFewCards = errors.New("poker: need at least 5 cards to evaluate")

// HandCategory enumerates hand categories in ascending strength.
type HandCategory int

const (
	HighCard HandCategory = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns a human-readable category name.
func (c HandCategory) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// HandValue is a totally ordered hand strength. Higher values beat lower
// values; equal values tie. The category occupies the top bits and up to five
// ranked kickers occupy a nibble each below it, so integer comparison gives
// exactly the poker ordering.
type HandValue int32

// Category returns the hand category encoded in the value.
func (v HandValue) Category() HandCategory {
	return HandCategory(v >> 20)
}

// String returns the category name of the hand value.
func (v HandValue) String() string {
	return v.Category().String()
}

func packValue(cat HandCategory, kickers ...Rank) HandValue {
	v := HandValue(cat) << 20
	shift := 16
	for _, k := range kickers {
		v |= HandValue(k) << shift
		shift -= 4
	}
	return v
}

// Evaluate returns the value of the best five-card hand available from the
// given cards. Accepts 5, 6 or 7 cards.
func Evaluate(cards []Card) (HandValue, error) {
	if len(cards) < 5 {
		return 0, ErrTooFewCards
	}
	if len(cards) == 5 {
		return evaluate5(cards), nil
	}

	// Best of all 5-card combinations (6 for six cards, 21 for seven).
	var best HandValue
	combo := make([]Card, 5)
	n := len(cards)
	for a := 0; a < n-4; a++ {
		for b := a + 1; b < n-3; b++ {
			for c := b + 1; c < n-2; c++ {
				for d := c + 1; d < n-1; d++ {
					for e := d + 1; e < n; e++ {
						combo[0], combo[1], combo[2], combo[3], combo[4] =
							cards[a], cards[b], cards[c], cards[d], cards[e]
						if v := evaluate5(combo); v > best {
							best = v
						}
					}
				}
			}
		}
	}
	return best, nil
}

// evaluate5 scores exactly five cards.
func evaluate5(cards []Card) HandValue {
	var counts [15]int
	flush := true
	for i, c := range cards {
		counts[c.Rank]++
		if i > 0 && c.Suit != cards[0].Suit {
			flush = false
		}
	}

	// Ranks grouped by multiplicity, each group sorted descending.
	var quads, trips, pairs, singles []Rank
	for r := Ace; r >= Two; r-- {
		switch counts[r] {
		case 4:
			quads = append(quads, r)
		case 3:
			trips = append(trips, r)
		case 2:
			pairs = append(pairs, r)
		case 1:
			singles = append(singles, r)
		}
	}

	straightHigh, isStraight := straightHighCard(counts)

	switch {
	case flush && isStraight:
		if straightHigh == Ace {
			return packValue(RoyalFlush)
		}
		return packValue(StraightFlush, straightHigh)
	case len(quads) == 1:
		return packValue(FourOfAKind, quads[0], singles[0])
	case len(trips) == 1 && len(pairs) >= 1:
		return packValue(FullHouse, trips[0], pairs[0])
	case flush:
		return packValue(Flush, singles...)
	case isStraight:
		return packValue(Straight, straightHigh)
	case len(trips) == 1:
		return packValue(ThreeOfAKind, trips[0], singles[0], singles[1])
	case len(pairs) >= 2:
		return packValue(TwoPair, pairs[0], pairs[1], singles[0])
	case len(pairs) == 1:
		return packValue(OnePair, pairs[0], singles[0], singles[1], singles[2])
	default:
		return packValue(HighCard, singles...)
	}
}

// straightHighCard reports whether five distinct ranks form a straight and
// returns its high card. The wheel A-2-3-4-5 counts with high card five.
func straightHighCard(counts [15]int) (Rank, bool) {
	distinct := 0
	var ranks []Rank
	for r := Two; r <= Ace; r++ {
		if counts[r] > 0 {
			distinct++
			ranks = append(ranks, r)
		}
	}
	if distinct != 5 {
		return 0, false
	}
	sort.Slice(ranks, func(i, j int) bool { return ranks[i] < ranks[j] })

	if ranks[4]-ranks[0] == 4 {
		return ranks[4], true
	}
	// Wheel: A,2,3,4,5
	if ranks[4] == Ace && ranks[0] == Two && ranks[3] == Five {
		return Five, true
	}
	return 0, false
}

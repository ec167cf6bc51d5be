package poker

import (
	crand "crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	rand "math/rand/v2"
)

// ErrDeckExhausted is returned when a deal would consume more cards than remain.
var ErrDeckExhausted = errors.New("poker: deck exhausted")

// Deck is an ordered sequence of the 52 distinct cards. Decks are created
// shuffled and are consumed front to back by Draw.
type Deck struct {
	cards [52]Card
	next  int
	rng   *rand.Rand
}

// NewDeck creates a deck shuffled with a fresh secure seed. Each deal gets its
// own deck so shuffle entropy is never shared across hands.
func NewDeck() *Deck {
	var seed [16]byte
	if _, err := crand.Read(seed[:]); err != nil {
		panic("poker: failed to read shuffle seed: " + err.Error())
	}
	rng := rand.New(rand.NewPCG(
		binary.LittleEndian.Uint64(seed[:8]),
		binary.LittleEndian.Uint64(seed[8:]),
	))
	return NewDeckWithRand(rng)
}

// NewDeckWithRand creates a shuffled deck using the provided RNG.
// Intended for deterministic tests; production decks come from NewDeck.
func NewDeckWithRand(rng *rand.Rand) *Deck {
	d := &Deck{rng: rng}
	i := 0
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			d.cards[i] = NewCard(rank, suit)
			i++
		}
	}
	d.shuffle()
	return d
}

// NewStackedDeck creates an unshuffled deck that deals the given cards in
// order. Tests use it to script exact boards and hole cards.
func NewStackedDeck(cards ...Card) (*Deck, error) {
	if len(cards) > 52 {
		return nil, fmt.Errorf("poker: stacked deck has %d cards, max 52", len(cards))
	}
	seen := make(map[Card]bool, len(cards))
	d := &Deck{}
	for i, c := range cards {
		if seen[c] {
			return nil, fmt.Errorf("poker: duplicate card %s in stacked deck", c)
		}
		seen[c] = true
		d.cards[i] = c
	}
	// Fill the tail with the remaining cards in canonical order.
	i := len(cards)
	for suit := Clubs; suit <= Spades; suit++ {
		for rank := Two; rank <= Ace; rank++ {
			c := NewCard(rank, suit)
			if !seen[c] {
				d.cards[i] = c
				i++
			}
		}
	}
	return d, nil
}

// shuffle performs a Fisher-Yates shuffle
func (d *Deck) shuffle() {
	d.next = 0
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rng.IntN(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw deals n cards from the top of the deck.
func (d *Deck) Draw(n int) ([]Card, error) {
	if d.next+n > len(d.cards) {
		return nil, ErrDeckExhausted
	}
	cards := make([]Card, n)
	copy(cards, d.cards[d.next:d.next+n])
	d.next += n
	return cards, nil
}

// Remaining returns the number of undealt cards.
func (d *Deck) Remaining() int {
	return len(d.cards) - d.next
}

// burn discards one card
func (d *Deck) burn() error {
	_, err := d.Draw(1)
	return err
}

// DealHoleCards deals two cards to each of n positions in two passes, so
// position 0 receives the 1st and the (n+1)th card off the deck.
func (d *Deck) DealHoleCards(n int) ([][2]Card, error) {
	if n < 1 {
		return nil, fmt.Errorf("poker: cannot deal hole cards to %d players", n)
	}
	holes := make([][2]Card, n)
	for pass := 0; pass < 2; pass++ {
		cards, err := d.Draw(n)
		if err != nil {
			return nil, err
		}
		for i, c := range cards {
			holes[i][pass] = c
		}
	}
	return holes, nil
}

// DealFlop burns one card and deals three.
func (d *Deck) DealFlop() ([]Card, error) {
	if err := d.burn(); err != nil {
		return nil, err
	}
	return d.Draw(3)
}

// DealTurn burns one card and deals one.
func (d *Deck) DealTurn() (Card, error) {
	return d.burnAndDealOne()
}

// DealRiver burns one card and deals one.
func (d *Deck) DealRiver() (Card, error) {
	return d.burnAndDealOne()
}

func (d *Deck) burnAndDealOne() (Card, error) {
	if err := d.burn(); err != nil {
		return Card{}, err
	}
	cards, err := d.Draw(1)
	if err != nil {
		return Card{}, err
	}
	return cards[0], nil
}

package deck

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

// HandSize is the number of cards each seat holds after dealing.
const HandSize = 8

// FutureDepth is how many cards a See the Future reveals.
const FutureDepth = 3

// ErrTooManySeats is returned when the catalog cannot give every seat a defuse.
var ErrTooManySeats = errors.New("not enough defuse cards for every seat")

// Deck is the shared draw pile. The top of the pile is the end of the slice.
type Deck struct {
	numDecks          int
	drawPile          []cards.Card
	lastDiscardedType cards.Type
	rng               *rand.Rand
}

// New creates an empty deck scaled by numDecks. A nil rng uses a time-seeded source.
func New(numDecks int, rng *rand.Rand) *Deck {
	if numDecks < 1 {
		numDecks = 1
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	return &Deck{
		numDecks: numDecks,
		drawPile: make([]cards.Card, 0, 64*numDecks),
		rng:      rng,
	}
}

// NumDecks returns the catalog multiplier.
func (d *Deck) NumDecks() int {
	return d.numDecks
}

// Deal fills the pile and gives every hand one defuse plus seven other
// cards, then mixes in one exploding card fewer than there are seats.
func (d *Deck) Deal(hands []*cards.Hand) error {
	if len(hands) > cards.TypeDefuse.Props().Count*d.numDecks {
		return fmt.Errorf("%w: %d seats, %d decks", ErrTooManySeats, len(hands), d.numDecks)
	}
	if len(hands)*HandSize > d.catalogSize() {
		return fmt.Errorf("%w: %d seats, %d decks", ErrTooManySeats, len(hands), d.numDecks)
	}

	d.drawPile = d.drawPile[:0]
	for _, t := range cards.AllTypes() {
		d.add(t, t.Props().Count)
	}

	// Defuse cards sit on top, so one draw per hand hands out a defuse.
	for _, h := range hands {
		c, _ := d.Draw()
		h.Add(c)
	}

	d.Shuffle()
	for i := 0; i < HandSize-1; i++ {
		for _, h := range hands {
			c, _ := d.Draw()
			h.Add(c)
		}
	}

	d.add(cards.TypeExploding, len(hands)-1)
	d.Shuffle()
	return nil
}

func (d *Deck) catalogSize() int {
	n := 0
	for _, t := range cards.AllTypes() {
		n += t.Props().Count
	}
	return n * d.numDecks
}

// add pushes count copies per deck multiplier of the type.
func (d *Deck) add(t cards.Type, count int) {
	index := 1
	for deck := 0; deck < d.numDecks; deck++ {
		for i := 0; i < count; i++ {
			d.drawPile = append(d.drawPile, cards.New(t, index))
			index++
		}
	}
}

// Draw pops the top card. ok is false when the pile is empty.
func (d *Deck) Draw() (cards.Card, bool) {
	if len(d.drawPile) == 0 {
		return cards.Card{}, false
	}
	idx := len(d.drawPile) - 1
	c := d.drawPile[idx]
	d.drawPile = d.drawPile[:idx]
	return c, true
}

// Discard records the type of a played card. The card itself is not kept.
func (d *Deck) Discard(c cards.Card) {
	d.lastDiscardedType = c.Type
}

// LastDiscardedType returns the type of the most recently played card.
func (d *Deck) LastDiscardedType() cards.Type {
	return d.lastDiscardedType
}

// Insert places a card at a 0-based depth from the top of the pile.
// Out of range positions are clamped to the top or bottom.
func (d *Deck) Insert(c cards.Card, position int) {
	if position < 0 {
		position = 0
	}
	if position > len(d.drawPile) {
		position = len(d.drawPile)
	}
	idx := len(d.drawPile) - position
	d.drawPile = append(d.drawPile, cards.Card{})
	copy(d.drawPile[idx+1:], d.drawPile[idx:])
	d.drawPile[idx] = c
}

// Shuffle permutes the pile in place (Fisher-Yates).
func (d *Deck) Shuffle() {
	for i := len(d.drawPile) - 1; i > 0; i-- {
		j := d.rng.Intn(i + 1)
		d.drawPile[i], d.drawPile[j] = d.drawPile[j], d.drawPile[i]
	}
}

// SeeFuture returns up to three cards from the top, most imminent first.
func (d *Deck) SeeFuture() []cards.Card {
	n := FutureDepth
	if n > len(d.drawPile) {
		n = len(d.drawPile)
	}
	out := make([]cards.Card, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, d.drawPile[len(d.drawPile)-1-i])
	}
	return out
}

// Len returns the number of cards left to draw.
func (d *Deck) Len() int {
	return len(d.drawPile)
}

// CountType returns how many cards of the type remain in the pile.
func (d *Deck) CountType(t cards.Type) int {
	n := 0
	for _, c := range d.drawPile {
		if c.Type == t {
			n++
		}
	}
	return n
}

// Cards returns a copy of the pile, bottom first.
func (d *Deck) Cards() []cards.Card {
	out := make([]cards.Card, len(d.drawPile))
	copy(out, d.drawPile)
	return out
}

// Rand exposes the deck's random source so callers share one seeded stream.
func (d *Deck) Rand() *rand.Rand {
	return d.rng
}

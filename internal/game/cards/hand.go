package cards

import (
	"math/rand"
	"slices"
)

// Hand groups a player's cards by type. Not safe for concurrent use.
type Hand struct {
	cards map[Type][]Card
}

// NewHand creates a hand holding the given cards.
func NewHand(cs ...Card) *Hand {
	h := &Hand{cards: make(map[Type][]Card)}
	for _, c := range cs {
		h.Add(c)
	}
	return h
}

// Add puts a card into the hand.
func (h *Hand) Add(c Card) {
	h.cards[c.Type] = append(h.cards[c.Type], c)
}

// Has reports whether the hand holds at least n cards of the type.
func (h *Hand) Has(t Type, n int) bool {
	return len(h.cards[t]) >= n
}

// Count returns how many cards of the type the hand holds.
func (h *Hand) Count(t Type) int {
	return len(h.cards[t])
}

// Take removes and returns the oldest card of the type.
func (h *Hand) Take(t Type) (Card, bool) {
	group := h.cards[t]
	if len(group) == 0 {
		return Card{}, false
	}
	c := group[0]
	if len(group) == 1 {
		delete(h.cards, t)
	} else {
		h.cards[t] = group[1:]
	}
	return c, true
}

// Types returns the held card types in catalog order.
func (h *Hand) Types() []Type {
	out := make([]Type, 0, len(h.cards))
	for _, t := range allTypes {
		if len(h.cards[t]) > 0 {
			out = append(out, t)
		}
	}
	return out
}

// Cards returns every held card, grouped by type in catalog order.
func (h *Hand) Cards() []Card {
	out := make([]Card, 0, h.Len())
	for _, t := range h.Types() {
		out = append(out, h.cards[t]...)
	}
	return out
}

// Len returns the number of cards held.
func (h *Hand) Len() int {
	n := 0
	for _, group := range h.cards {
		n += len(group)
	}
	return n
}

// RandomType picks the type of a uniformly random held card, ignoring the
// excluded types.
func (h *Hand) RandomType(rng *rand.Rand, except ...Type) (Type, bool) {
	var pool []Card
	for _, c := range h.Cards() {
		if !slices.Contains(except, c.Type) {
			pool = append(pool, c)
		}
	}
	if len(pool) == 0 {
		return "", false
	}
	return pool[rng.Intn(len(pool))].Type, true
}

// Counts returns a copy of the per-type counts.
func (h *Hand) Counts() map[Type]int {
	out := make(map[Type]int, len(h.cards))
	for t, group := range h.cards {
		out[t] = len(group)
	}
	return out
}

// Remove takes a specific card instance out of the hand.
func (h *Hand) Remove(c Card) bool {
	group := h.cards[c.Type]
	for i, held := range group {
		if held == c {
			h.cards[c.Type] = append(group[:i:i], group[i+1:]...)
			if len(h.cards[c.Type]) == 0 {
				delete(h.cards, c.Type)
			}
			return true
		}
	}
	return false
}

package rules

import (
	"sync"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

// StackItem is one played card waiting for the interrupt window to close.
type StackItem struct {
	Card     cards.Card
	PlayerID string
}

// CardStack holds the cards played since the last resolution pass.
type CardStack struct {
	mu    sync.Mutex
	items []StackItem
}

// NewCardStack creates an empty card stack.
func NewCardStack() *CardStack {
	return &CardStack{
		items: make([]StackItem, 0, 8),
	}
}

// Push adds a played card to the top of the stack.
func (cs *CardStack) Push(item StackItem) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.items = append(cs.items, item)
}

// Peek returns the most recent play without removing it.
func (cs *CardStack) Peek() (StackItem, bool) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if len(cs.items) == 0 {
		return StackItem{}, false
	}
	return cs.items[len(cs.items)-1], true
}

// List returns a copy of all stack items (topmost last).
func (cs *CardStack) List() []StackItem {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cpy := make([]StackItem, len(cs.items))
	copy(cpy, cs.items)
	return cpy
}

// Drain empties the stack and returns what it held (topmost last).
func (cs *CardStack) Drain() []StackItem {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := cs.items
	cs.items = make([]StackItem, 0, 8)
	return out
}

// Len returns the number of cards on the stack.
func (cs *CardStack) Len() int {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return len(cs.items)
}

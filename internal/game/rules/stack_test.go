package rules

import (
	"testing"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

func TestCardStackPeek(t *testing.T) {
	cs := NewCardStack()
	if _, ok := cs.Peek(); ok {
		t.Fatalf("expected nothing on an empty stack")
	}

	cs.Push(StackItem{Card: cards.New(cards.TypeSkip, 1), PlayerID: "alice"})
	cs.Push(StackItem{Card: cards.New(cards.TypeNope, 1), PlayerID: "bob"})

	top, ok := cs.Peek()
	if !ok || top.PlayerID != "bob" || top.Card.Type != cards.TypeNope {
		t.Fatalf("expected bob's nope on top, got %+v", top)
	}
	if cs.Len() != 2 {
		t.Fatalf("peek must not remove, got %d items", cs.Len())
	}
}

func TestCardStackDrain(t *testing.T) {
	cs := NewCardStack()
	cs.Push(StackItem{Card: cards.New(cards.TypeCat1, 1), PlayerID: "alice"})
	cs.Push(StackItem{Card: cards.New(cards.TypeCat1, 2), PlayerID: "alice"})

	items := cs.Drain()
	if len(items) != 2 {
		t.Fatalf("expected 2 drained items, got %d", len(items))
	}
	if items[1].Card.Index != 2 {
		t.Fatalf("expected topmost last, got %+v", items)
	}
	if cs.Len() != 0 {
		t.Fatalf("expected stack to be empty after drain")
	}

	list := cs.List()
	if len(list) != 0 {
		t.Fatalf("expected empty list, got %d", len(list))
	}
}

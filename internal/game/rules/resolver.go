package rules

import (
	"errors"
	"fmt"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/actions"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

// ErrIncompleteCollapse means a card on the stack was not consumed by any
// collapse rule. No legal stack can produce it.
var ErrIncompleteCollapse = errors.New("card stack not fully consumed")

// Collapse turns the played cards (topmost last, as returned by
// CardStack.Drain) into the actions they produce, in play order.
//
// The scan starts at the most recent play, so the card "after" a nope is the
// play it answers and the card "after" a defuse is the exploding card it
// defuses. Every card is consumed by exactly one rule.
func Collapse(items []StackItem) ([]*actions.Action, error) {
	n := len(items)
	newestFirst := make([]StackItem, n)
	for i, item := range items {
		newestFirst[n-1-i] = item
	}

	var produced []*actions.Action
	consumed := 0
	for i := 0; i < n; {
		item := newestFirst[i]
		step := 1

		switch t := item.Card.Type; {
		case t == cards.TypeNope:
			if i+1 < n {
				step += playLength(newestFirst, i+1)
			}

		case t == cards.TypeDefuse:
			if i+1 < n && defuses(item, newestFirst[i+1]) {
				bomb := newestFirst[i+1].Card
				produced = append(produced, actions.NewDefuse(item.PlayerID, &bomb))
				step = 2
			} else {
				produced = append(produced, actions.NewDefuse(item.PlayerID, nil))
			}

		case t.IsCat():
			step = playLength(newestFirst, i)
			// The group belongs to whoever laid its first card.
			actor := newestFirst[i+step-1].PlayerID
			switch step {
			case 2:
				produced = append(produced, actions.NewTransfer(actor, actions.TransferPair))
			case 3:
				produced = append(produced, actions.NewTransfer(actor, actions.TransferTriple))
			}

		case t == cards.TypeFavor:
			produced = append(produced, actions.NewTransfer(item.PlayerID, actions.TransferFavor))

		default:
			kind, ok := kindFor(t)
			if !ok {
				return nil, fmt.Errorf("no action for card type %q", t)
			}
			produced = append(produced, actions.New(kind, item.PlayerID))
		}

		i += step
		consumed += step
	}

	if consumed != n {
		return nil, fmt.Errorf("%w: consumed %d of %d", ErrIncompleteCollapse, consumed, n)
	}

	// Back to play order.
	for l, r := 0, len(produced)-1; l < r; l, r = l+1, r-1 {
		produced[l], produced[r] = produced[r], produced[l]
	}
	return produced, nil
}

// playLength returns how many cards starting at i form one play: a triple,
// a pair, or a single card. Four matching cats read as two pairs.
func playLength(items []StackItem, i int) int {
	n := len(items)
	if i+1 < n && defuses(items[i], items[i+1]) {
		return 2
	}
	if i+1 >= n || !stacks(items[i], items[i+1]) {
		return 1
	}
	if i+2 < n && stacks(items[i+1], items[i+2]) {
		if i+3 < n && stacks(items[i+2], items[i+3]) {
			return 2
		}
		return 3
	}
	return 2
}

// stacks reports whether a completes a group with b. Cats group by type
// alone, whoever played them.
func stacks(a, b StackItem) bool {
	return a.Card.StacksOn(b.Card)
}

func defuses(a, b StackItem) bool {
	return a.Card.Type == cards.TypeDefuse && b.Card.Type == cards.TypeExploding && a.PlayerID == b.PlayerID
}

func kindFor(t cards.Type) (actions.Kind, bool) {
	switch t {
	case cards.TypeAttack:
		return actions.KindAttack, true
	case cards.TypeSkip:
		return actions.KindSkip, true
	case cards.TypeShuffle:
		return actions.KindShuffle, true
	case cards.TypeFuture:
		return actions.KindFuture, true
	case cards.TypeExploding:
		return actions.KindExploding, true
	default:
		return 0, false
	}
}

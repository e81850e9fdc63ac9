package rules

import (
	"testing"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

func hand(types ...cards.Type) *cards.Hand {
	h := cards.NewHand()
	for i, t := range types {
		h.Add(cards.New(t, i+1))
	}
	return h
}

func myTurn(h *cards.Hand) PlayView {
	return PlayView{PlayerID: "me", CurrentPlayerID: "me", Alive: true, Hand: h}
}

func offTurn(h *cards.Hand) PlayView {
	return PlayView{PlayerID: "me", CurrentPlayerID: "them", Alive: true, Hand: h}
}

func TestActionCardsOnlyOnMyTurn(t *testing.T) {
	h := hand(cards.TypeSkip, cards.TypeAttack, cards.TypeFavor, cards.TypeFuture, cards.TypeShuffle)

	for _, ct := range []cards.Type{cards.TypeSkip, cards.TypeAttack, cards.TypeFavor, cards.TypeFuture, cards.TypeShuffle} {
		if !CanPlay(myTurn(h), ct) {
			t.Fatalf("expected %s playable on my turn", ct)
		}
		if CanPlay(offTurn(h), ct) {
			t.Fatalf("expected %s not playable off turn", ct)
		}
	}
}

func TestNothingPlayableWhenNotHeld(t *testing.T) {
	playable := Playable(myTurn(hand()))
	for ct, ok := range playable {
		if ok {
			t.Fatalf("expected %s not playable with empty hand", ct)
		}
	}
}

func TestDeadPlayersCannotPlay(t *testing.T) {
	v := myTurn(hand(cards.TypeSkip))
	v.Alive = false
	if CanPlay(v, cards.TypeSkip) {
		t.Fatalf("expected eliminated player to be unable to play")
	}
}

func TestExplodingBlocksOtherCards(t *testing.T) {
	v := myTurn(hand(cards.TypeSkip, cards.TypeDefuse, cards.TypeExploding))
	v.LastTypeDrawn = cards.TypeExploding

	if CanPlay(v, cards.TypeSkip) {
		t.Fatalf("expected skip blocked after drawing exploding")
	}
	if !CanPlay(v, cards.TypeDefuse) {
		t.Fatalf("expected defuse playable after drawing exploding")
	}
	if !CanPlay(v, cards.TypeExploding) {
		t.Fatalf("expected exploding playable after drawing it")
	}

	v.LastTypeDrawn = cards.TypeSkip
	v.LastTypePlayed = cards.TypeExploding
	v.LastPlayerID = "me"
	if CanPlay(v, cards.TypeSkip) {
		t.Fatalf("expected skip blocked after exploding was played")
	}
	if !CanPlay(v, cards.TypeDefuse) {
		t.Fatalf("expected defuse playable after playing exploding")
	}
}

func TestDefuseNeedsOwnBomb(t *testing.T) {
	v := myTurn(hand(cards.TypeDefuse))
	if CanPlay(v, cards.TypeDefuse) {
		t.Fatalf("expected defuse unplayable without a bomb")
	}

	v.LastTypePlayed = cards.TypeExploding
	v.LastPlayerID = "them"
	if CanPlay(v, cards.TypeDefuse) {
		t.Fatalf("expected defuse unplayable on someone else's bomb")
	}
}

func TestCatPairing(t *testing.T) {
	v := myTurn(hand(cards.TypeCat1))
	if CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected single cat unplayable")
	}

	v = myTurn(hand(cards.TypeCat1, cards.TypeCat1))
	if !CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected cat pair playable")
	}

	v = myTurn(hand(cards.TypeCat1))
	v.CoolingDown = true
	v.LastTypePlayed = cards.TypeCat1
	v.LastPlayerID = "me"
	if !CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected second cat of a pair playable during the window")
	}

	v.LastTypePlayed = cards.TypeCat2
	if CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected cat1 unplayable after cat2")
	}
}

func TestCatPairingOffTurn(t *testing.T) {
	v := offTurn(hand(cards.TypeCat1))
	v.CoolingDown = true
	v.LastTypePlayed = cards.TypeCat1
	v.LastPlayerID = "them"
	if !CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected a lone cat playable onto someone else's cat during the window")
	}

	v.CoolingDown = false
	if CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected off-turn cat unplayable once the window closes")
	}

	v.CoolingDown = true
	v.LastTypePlayed = cards.TypeCat2
	if CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected off-turn cat1 unplayable after cat2")
	}

	v = offTurn(hand(cards.TypeCat1, cards.TypeCat1))
	if CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected off-turn pair unplayable without a matching play")
	}

	v.CoolingDown = true
	v.LastTypePlayed = cards.TypeCat1
	v.LastPlayerID = "me"
	if CanPlay(v, cards.TypeCat1) {
		t.Fatalf("expected off-turn cat unplayable onto my own play")
	}
}

func TestNopeRules(t *testing.T) {
	v := offTurn(hand(cards.TypeNope))
	v.LastTypePlayed = cards.TypeSkip
	v.LastPlayerID = "them"
	v.OriginPlayerID = "them"

	if CanPlay(v, cards.TypeNope) {
		t.Fatalf("expected nope unplayable with the window closed")
	}

	v.CoolingDown = true
	if !CanPlay(v, cards.TypeNope) {
		t.Fatalf("expected nope playable against another player's skip")
	}

	own := v
	own.LastPlayerID = "me"
	if CanPlay(own, cards.TypeNope) {
		t.Fatalf("expected nope unplayable on my own play")
	}

	for _, ct := range []cards.Type{cards.TypeDefuse, cards.TypeExploding} {
		blocked := v
		blocked.LastTypePlayed = ct
		if CanPlay(blocked, cards.TypeNope) {
			t.Fatalf("expected nope unplayable against %s", ct)
		}
	}
}

func TestYupRestrictedToTurnOwnerOrActor(t *testing.T) {
	v := offTurn(hand(cards.TypeNope))
	v.CoolingDown = true
	v.LastTypePlayed = cards.TypeNope
	v.LastPlayerID = "third"
	v.OriginPlayerID = "them"

	if CanPlay(v, cards.TypeNope) {
		t.Fatalf("expected bystander unable to answer a nope")
	}

	v.OriginPlayerID = "me"
	if !CanPlay(v, cards.TypeNope) {
		t.Fatalf("expected original actor able to answer a nope")
	}

	v.OriginPlayerID = "them"
	v.CurrentPlayerID = "me"
	if !CanPlay(v, cards.TypeNope) {
		t.Fatalf("expected turn owner able to answer a nope")
	}
}

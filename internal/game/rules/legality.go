package rules

import (
	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

// PlayView is everything one player knows that decides which cards they may
// play right now. The server builds it from the authoritative state; bots
// and clients build it from the broadcast stream.
type PlayView struct {
	PlayerID        string
	CurrentPlayerID string
	Alive           bool
	Hand            *cards.Hand

	// LastTypeDrawn is the type of the last card this player drew.
	LastTypeDrawn cards.Type
	// LastTypePlayed and LastPlayerID describe the most recent play by anyone.
	LastTypePlayed cards.Type
	LastPlayerID   string
	// OriginPlayerID played the most recent card that was not a nope.
	OriginPlayerID string
	// CoolingDown is true while the interrupt window is open.
	CoolingDown bool
}

// IsMyTurn reports whether the viewing player is the current player.
func (v PlayView) IsMyTurn() bool {
	return v.PlayerID != "" && v.PlayerID == v.CurrentPlayerID
}

// Playable returns, for every card type, whether the viewing player may play
// one now. Cards not held are never playable.
func Playable(v PlayView) map[cards.Type]bool {
	out := make(map[cards.Type]bool, len(cards.AllTypes()))
	for _, t := range cards.AllTypes() {
		out[t] = CanPlay(v, t)
	}
	return out
}

// CanPlay reports whether the viewing player may play one card of type t.
func CanPlay(v PlayView, t cards.Type) bool {
	if !v.Alive || v.Hand == nil || !v.Hand.Has(t, 1) {
		return false
	}

	switch t {
	case cards.TypeNope:
		return canNope(v)

	case cards.TypeExploding:
		return v.IsMyTurn() && v.LastTypeDrawn == cards.TypeExploding

	case cards.TypeDefuse:
		if !v.IsMyTurn() {
			return false
		}
		if v.LastTypeDrawn == cards.TypeExploding {
			return true
		}
		return v.LastTypePlayed == cards.TypeExploding && v.LastPlayerID == v.PlayerID

	default:
		if !v.IsMyTurn() {
			// Someone else's lone cat may be paired from any seat.
			return t.IsCat() && v.CoolingDown && v.LastTypePlayed == t &&
				v.LastPlayerID != "" && v.LastPlayerID != v.PlayerID
		}
		if v.LastTypeDrawn == cards.TypeExploding || v.LastTypePlayed == cards.TypeExploding {
			return false
		}
		if t.IsCat() {
			if v.Hand.Has(t, 2) {
				return true
			}
			return v.CoolingDown && v.LastTypePlayed == t
		}
		return true
	}
}

func canNope(v PlayView) bool {
	if !v.CoolingDown || v.LastPlayerID == "" || v.LastPlayerID == v.PlayerID {
		return false
	}
	switch v.LastTypePlayed {
	case cards.TypeDefuse, cards.TypeExploding:
		return false
	case cards.TypeNope:
		return v.IsMyTurn() || v.OriginPlayerID == v.PlayerID
	default:
		return true
	}
}

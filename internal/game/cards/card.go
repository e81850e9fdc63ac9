package cards

import (
	"fmt"
	"strings"
)

// Type identifies a card variant.
type Type string

const (
	TypeAttack    Type = "attack"
	TypeDefuse    Type = "defuse"
	TypeExploding Type = "exploding"
	TypeFavor     Type = "favor"
	TypeFuture    Type = "future"
	TypeNope      Type = "nope"
	TypeShuffle   Type = "shuffle"
	TypeSkip      Type = "skip"
	TypeCat1      Type = "cat1"
	TypeCat2      Type = "cat2"
	TypeCat3      Type = "cat3"
	TypeCat4      Type = "cat4"
	TypeCat5      Type = "cat5"
)

// Properties describes the static, per-type catalog entry.
type Properties struct {
	Name   string
	Flavor string
	// Count is the number of copies in a single deck. Exploding cards are
	// added separately at deal time and have a zero count.
	Count int
	Cat   bool
}

var catalog = map[Type]Properties{
	TypeAttack:    {Name: "Attack", Flavor: "End your turn without drawing. The next player takes two turns.", Count: 4},
	TypeDefuse:    {Name: "Defuse", Flavor: "Put the exploding pony back anywhere in the deck.", Count: 6},
	TypeExploding: {Name: "Exploding Pony", Flavor: "Defuse it or you are out.", Count: 0},
	TypeFavor:     {Name: "Favor", Flavor: "Someone has to give you a card of their choice.", Count: 4},
	TypeFuture:    {Name: "See the Future", Flavor: "Peek at the top three cards.", Count: 5},
	TypeNope:      {Name: "Nope", Flavor: "Stop the last action. Nope a nope to undo it.", Count: 5},
	TypeShuffle:   {Name: "Shuffle", Flavor: "Shuffle the draw pile.", Count: 4},
	TypeSkip:      {Name: "Skip", Flavor: "End one turn without drawing.", Count: 4},
	TypeCat1:      {Name: "Cat Pony 1", Flavor: "Useless alone. Play a pair to steal.", Count: 4, Cat: true},
	TypeCat2:      {Name: "Cat Pony 2", Flavor: "Useless alone. Play a pair to steal.", Count: 4, Cat: true},
	TypeCat3:      {Name: "Cat Pony 3", Flavor: "Useless alone. Play a pair to steal.", Count: 4, Cat: true},
	TypeCat4:      {Name: "Cat Pony 4", Flavor: "Useless alone. Play a pair to steal.", Count: 4, Cat: true},
	TypeCat5:      {Name: "Cat Pony 5", Flavor: "Useless alone. Play a pair to steal.", Count: 4, Cat: true},
}

// allTypes is the catalog in deal order.
var allTypes = []Type{
	TypeAttack,
	TypeCat1, TypeCat2, TypeCat3, TypeCat4, TypeCat5,
	TypeFavor,
	TypeFuture,
	TypeNope,
	TypeShuffle,
	TypeSkip,
	TypeDefuse,
	TypeExploding,
}

// AllTypes returns every card type in catalog order.
func AllTypes() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}

// ParseType converts a wire string into a Type.
func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := catalog[t]; !ok {
		return "", fmt.Errorf("unknown card type: %q", s)
	}
	return t, nil
}

// Props returns the catalog entry for the type.
func (t Type) Props() Properties {
	return catalog[t]
}

// Valid reports whether t is part of the catalog.
func (t Type) Valid() bool {
	_, ok := catalog[t]
	return ok
}

// IsCat reports whether t is one of the pairable cat types.
func (t Type) IsCat() bool {
	return catalog[t].Cat
}

func (t Type) String() string {
	return string(t)
}

// Card is an immutable card instance.
type Card struct {
	Type  Type `json:"cardType"`
	Index int  `json:"index"`
}

// New creates a card of the given type.
func New(t Type, index int) Card {
	return Card{Type: t, Index: index}
}

// ID returns a stable identifier, unique within one dealt deck.
func (c Card) ID() string {
	return fmt.Sprintf("%s%d", c.Type, c.Index)
}

// StacksOn reports whether c pairs with other: only matching cat types stack.
func (c Card) StacksOn(other Card) bool {
	return c.Type.IsCat() && c.Type == other.Type
}

func (c Card) String() string {
	return c.ID()
}

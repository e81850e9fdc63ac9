package actions

import (
	"errors"
	"fmt"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/state"
)

// Kind identifies an action variant.
type Kind int

const (
	KindAttack Kind = iota
	KindDefuse
	KindExploding
	KindFuture
	KindShuffle
	KindSkip
	KindTransfer
)

var kindNames = map[Kind]string{
	KindAttack:    "ATTACK",
	KindDefuse:    "DEFUSE",
	KindExploding: "EXPLODING",
	KindFuture:    "FUTURE",
	KindShuffle:   "SHUFFLE",
	KindSkip:      "SKIP",
	KindTransfer:  "TRANSFER",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// TransferMode records which play produced a transfer and so who picks the card.
type TransferMode string

const (
	// TransferFavor lets the target pick the card they give away.
	TransferFavor TransferMode = "favor"
	// TransferPair steals a card blindly from the target.
	TransferPair TransferMode = "pair"
	// TransferTriple lets the actor name the card type to take.
	TransferTriple TransferMode = "triple"
)

// InputName names a value an action needs before it can run.
type InputName string

const (
	InputTarget    InputName = "target"
	InputCardType  InputName = "cardType"
	InputPosition  InputName = "position"
	InputExploding InputName = "exploding"
)

var (
	// ErrInputFilled is returned when a write-once input is written twice.
	ErrInputFilled = errors.New("input already provided")
	// ErrInputType is returned when a provided value has the wrong type.
	ErrInputType = errors.New("input has wrong type")
	// ErrNotReady is returned when Run is called with inputs missing.
	ErrNotReady = errors.New("action inputs missing")
	// ErrAlreadyRun is returned when an action is run twice.
	ErrAlreadyRun = errors.New("action already run")
)

// Slot is a write-once input value.
type Slot[T any] struct {
	value T
	set   bool
}

// Set fills the slot. It fails if the slot already holds a value.
func (s *Slot[T]) Set(v T) error {
	if s.set {
		return ErrInputFilled
	}
	s.value = v
	s.set = true
	return nil
}

// Get returns the value and whether it has been provided.
func (s *Slot[T]) Get() (T, bool) {
	return s.value, s.set
}

// Filled reports whether the slot holds a value.
func (s *Slot[T]) Filled() bool {
	return s.set
}

// Action is one resolved effect produced by collapsing the card stack.
type Action struct {
	Kind     Kind
	PlayerID string
	Mode     TransferMode

	Target    Slot[string]
	CardType  Slot[cards.Type]
	Position  Slot[int]
	Exploding Slot[cards.Card]

	Changes Changes
	ran     bool
}

// New creates an action of the given kind for the acting player.
func New(kind Kind, playerID string) *Action {
	return &Action{Kind: kind, PlayerID: playerID}
}

// NewTransfer creates a transfer action.
func NewTransfer(playerID string, mode TransferMode) *Action {
	return &Action{Kind: KindTransfer, PlayerID: playerID, Mode: mode}
}

// NewDefuse creates a defuse action. A zero exploding card leaves the slot open.
func NewDefuse(playerID string, exploding *cards.Card) *Action {
	a := &Action{Kind: KindDefuse, PlayerID: playerID}
	if exploding != nil {
		_ = a.Exploding.Set(*exploding)
	}
	return a
}

// Required lists the inputs the action needs, in the order they are collected.
func (a *Action) Required() []InputName {
	switch a.Kind {
	case KindTransfer:
		if a.Mode == TransferPair {
			return []InputName{InputTarget}
		}
		return []InputName{InputTarget, InputCardType}
	case KindDefuse:
		return []InputName{InputExploding, InputPosition}
	default:
		return nil
	}
}

// Filled reports whether the named input has a value.
func (a *Action) Filled(name InputName) bool {
	switch name {
	case InputTarget:
		return a.Target.Filled()
	case InputCardType:
		return a.CardType.Filled()
	case InputPosition:
		return a.Position.Filled()
	case InputExploding:
		return a.Exploding.Filled()
	default:
		return false
	}
}

// Missing lists required inputs that have no value yet.
func (a *Action) Missing() []InputName {
	var out []InputName
	for _, name := range a.Required() {
		if !a.Filled(name) {
			out = append(out, name)
		}
	}
	return out
}

// Ready reports whether every required input has a value.
func (a *Action) Ready() bool {
	return len(a.Missing()) == 0
}

// Supplier returns the player expected to provide the named input, or ""
// when it cannot be known yet.
func (a *Action) Supplier(name InputName) string {
	if name == InputCardType && a.Mode == TransferFavor {
		target, _ := a.Target.Get()
		return target
	}
	return a.PlayerID
}

// Provide writes a value into the named input slot.
func (a *Action) Provide(name InputName, value any) error {
	switch name {
	case InputTarget:
		v, ok := value.(string)
		if !ok {
			return fmt.Errorf("%w: %s wants string, got %T", ErrInputType, name, value)
		}
		return a.Target.Set(v)
	case InputCardType:
		v, ok := value.(cards.Type)
		if !ok {
			return fmt.Errorf("%w: %s wants card type, got %T", ErrInputType, name, value)
		}
		return a.CardType.Set(v)
	case InputPosition:
		v, ok := value.(int)
		if !ok {
			return fmt.Errorf("%w: %s wants int, got %T", ErrInputType, name, value)
		}
		return a.Position.Set(v)
	case InputExploding:
		v, ok := value.(cards.Card)
		if !ok {
			return fmt.Errorf("%w: %s wants card, got %T", ErrInputType, name, value)
		}
		return a.Exploding.Set(v)
	default:
		return fmt.Errorf("unknown input %q", name)
	}
}

// Run applies the effect to the game state and records what changed.
func (a *Action) Run(s *state.State) (Changes, error) {
	if a.ran {
		return a.Changes, ErrAlreadyRun
	}
	if !a.Ready() {
		return Changes{}, fmt.Errorf("%w: %s needs %v", ErrNotReady, a.Kind, a.Missing())
	}
	a.ran = true

	switch a.Kind {
	case KindAttack:
		s.PassTurn()
		if s.Draws == 1 {
			s.Draws = 2
		} else {
			s.Draws += 2
		}
		a.Changes.Turn = true
		a.Changes.Draws = true

	case KindSkip:
		s.AdvanceTurn()
		a.Changes.Turn = true
		a.Changes.Draws = true

	case KindShuffle:
		s.Deck.Shuffle()
		a.Changes.Shuffled = true

	case KindFuture:
		a.Changes.Future = &FutureChange{PlayerID: a.PlayerID, Cards: s.Deck.SeeFuture()}

	case KindTransfer:
		a.runTransfer(s)

	case KindDefuse:
		bomb, _ := a.Exploding.Get()
		position, _ := a.Position.Get()
		if p, ok := s.Player(a.PlayerID); ok {
			p.Hand.Remove(bomb)
		}
		s.Deck.Insert(bomb, position)
		s.PassTurn()
		s.Draws = 1
		a.Changes.Turn = true
		a.Changes.Draws = true
		a.Changes.Deck = true

	case KindExploding:
		if s.Eliminate(a.PlayerID) {
			a.Changes.Eliminated = a.PlayerID
		}
		s.Draws = 1
		a.Changes.Turn = true
		a.Changes.Draws = true

	default:
		return Changes{}, fmt.Errorf("unknown action kind %s", a.Kind)
	}

	return a.Changes, nil
}

func (a *Action) runTransfer(s *state.State) {
	targetID, _ := a.Target.Get()
	cardType, _ := a.CardType.Get()

	change := &TransferChange{From: targetID, To: a.PlayerID, Mode: a.Mode}
	a.Changes.Transfer = change

	target, ok := s.Player(targetID)
	actor, actorOK := s.Player(a.PlayerID)
	if !ok || !actorOK || targetID == a.PlayerID {
		return
	}
	if a.Mode == TransferPair && !a.CardType.Filled() {
		picked, ok := target.Hand.RandomType(s.Deck.Rand(), cards.TypeExploding)
		if !ok {
			return
		}
		cardType = picked
		_ = a.CardType.Set(picked)
	}
	// An exploding card stays with whoever drew it.
	if cardType == cards.TypeExploding {
		return
	}
	c, ok := target.Hand.Take(cardType)
	if !ok {
		return
	}
	actor.Hand.Add(c)
	change.Card = c
	change.Moved = true
}

// Changes describes what running an action did.
type Changes struct {
	Turn       bool
	Draws      bool
	Shuffled   bool
	Deck       bool
	Eliminated string
	Transfer   *TransferChange
	Future     *FutureChange
}

// TransferChange records one card moving between hands.
type TransferChange struct {
	From  string
	To    string
	Mode  TransferMode
	Card  cards.Card
	Moved bool
}

// FutureChange is a private peek at the top of the draw pile.
type FutureChange struct {
	PlayerID string
	Cards    []cards.Card
}

// Merge folds other into c. Later transfer and future details win.
func (c *Changes) Merge(other Changes) {
	c.Turn = c.Turn || other.Turn
	c.Draws = c.Draws || other.Draws
	c.Shuffled = c.Shuffled || other.Shuffled
	c.Deck = c.Deck || other.Deck
	if other.Eliminated != "" {
		c.Eliminated = other.Eliminated
	}
	if other.Transfer != nil {
		c.Transfer = other.Transfer
	}
	if other.Future != nil {
		c.Future = other.Future
	}
}

package actions

import (
	"math/rand"
	"testing"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/deck"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newState(t *testing.T, ids ...string) *state.State {
	t.Helper()
	s := state.New(deck.New(1, rand.New(rand.NewSource(11))))
	for _, id := range ids {
		_, err := s.AddPlayer(id, id)
		require.NoError(t, err)
	}
	return s
}

func TestSlotWriteOnce(t *testing.T) {
	var s Slot[int]
	_, ok := s.Get()
	assert.False(t, ok)

	require.NoError(t, s.Set(3))
	assert.ErrorIs(t, s.Set(4), ErrInputFilled)
	v, ok := s.Get()
	assert.True(t, ok)
	assert.Equal(t, 3, v)
}

func TestAttackStacks(t *testing.T) {
	s := newState(t, "a", "b", "c")

	changes, err := New(KindAttack, "a").Run(s)
	require.NoError(t, err)
	assert.True(t, changes.Turn)
	assert.Equal(t, "b", s.CurrentPlayerID)
	assert.Equal(t, 2, s.Draws)

	_, err = New(KindAttack, "b").Run(s)
	require.NoError(t, err)
	assert.Equal(t, "c", s.CurrentPlayerID)
	assert.Equal(t, 4, s.Draws)
}

func TestSkip(t *testing.T) {
	s := newState(t, "a", "b")
	s.Draws = 2

	_, err := New(KindSkip, "a").Run(s)
	require.NoError(t, err)
	assert.Equal(t, "a", s.CurrentPlayerID)
	assert.Equal(t, 1, s.Draws)

	_, err = New(KindSkip, "a").Run(s)
	require.NoError(t, err)
	assert.Equal(t, "b", s.CurrentPlayerID)
	assert.Equal(t, 1, s.Draws)
}

func TestRunTwiceFails(t *testing.T) {
	s := newState(t, "a", "b")
	a := New(KindShuffle, "a")
	_, err := a.Run(s)
	require.NoError(t, err)
	_, err = a.Run(s)
	assert.ErrorIs(t, err, ErrAlreadyRun)
}

func TestFutureReportsTopThree(t *testing.T) {
	s := newState(t, "a", "b")
	s.Deck.Insert(cards.New(cards.TypeSkip, 1), 0)
	s.Deck.Insert(cards.New(cards.TypeNope, 1), 0)

	changes, err := New(KindFuture, "a").Run(s)
	require.NoError(t, err)
	require.NotNil(t, changes.Future)
	assert.Equal(t, "a", changes.Future.PlayerID)
	assert.Equal(t, []cards.Card{cards.New(cards.TypeNope, 1), cards.New(cards.TypeSkip, 1)}, changes.Future.Cards)
	assert.False(t, changes.Turn)
}

func TestFavorTransferNeedsInputs(t *testing.T) {
	s := newState(t, "a", "b")
	s.Players["b"].Hand.Add(cards.New(cards.TypeFuture, 1))

	a := NewTransfer("a", TransferFavor)
	assert.Equal(t, []InputName{InputTarget, InputCardType}, a.Missing())
	assert.Equal(t, "", a.Supplier(InputCardType))

	_, err := a.Run(s)
	assert.ErrorIs(t, err, ErrNotReady)

	require.NoError(t, a.Provide(InputTarget, "b"))
	assert.Equal(t, "b", a.Supplier(InputCardType))
	assert.ErrorIs(t, a.Provide(InputCardType, "future"), ErrInputType)
	require.NoError(t, a.Provide(InputCardType, cards.TypeFuture))

	changes, err := a.Run(s)
	require.NoError(t, err)
	require.NotNil(t, changes.Transfer)
	assert.True(t, changes.Transfer.Moved)
	assert.Equal(t, "b", changes.Transfer.From)
	assert.Equal(t, 1, s.Players["a"].Hand.Count(cards.TypeFuture))
	assert.Zero(t, s.Players["b"].Hand.Len())
}

func TestTransferMissingTypeIsNoop(t *testing.T) {
	s := newState(t, "a", "b")
	s.Players["b"].Hand.Add(cards.New(cards.TypeSkip, 1))

	a := NewTransfer("a", TransferTriple)
	require.NoError(t, a.Provide(InputTarget, "b"))
	require.NoError(t, a.Provide(InputCardType, cards.TypeDefuse))

	changes, err := a.Run(s)
	require.NoError(t, err)
	assert.False(t, changes.Transfer.Moved)
	assert.Equal(t, 1, s.Players["b"].Hand.Len())
	assert.Zero(t, s.Players["a"].Hand.Len())
}

func TestPairTransferStealsBlind(t *testing.T) {
	s := newState(t, "a", "b")
	s.Players["b"].Hand.Add(cards.New(cards.TypeAttack, 1))

	a := NewTransfer("a", TransferPair)
	assert.Equal(t, []InputName{InputTarget}, a.Required())
	require.NoError(t, a.Provide(InputTarget, "b"))

	changes, err := a.Run(s)
	require.NoError(t, err)
	assert.True(t, changes.Transfer.Moved)
	assert.Equal(t, cards.TypeAttack, changes.Transfer.Card.Type)
}

func TestExplodingCardNeverChangesHands(t *testing.T) {
	s := newState(t, "a", "b")
	s.Players["b"].Hand.Add(cards.New(cards.TypeExploding, 1))

	named := NewTransfer("a", TransferTriple)
	require.NoError(t, named.Provide(InputTarget, "b"))
	require.NoError(t, named.Provide(InputCardType, cards.TypeExploding))
	changes, err := named.Run(s)
	require.NoError(t, err)
	assert.False(t, changes.Transfer.Moved)

	blind := NewTransfer("a", TransferPair)
	require.NoError(t, blind.Provide(InputTarget, "b"))
	changes, err = blind.Run(s)
	require.NoError(t, err)
	assert.False(t, changes.Transfer.Moved)
	assert.Equal(t, 1, s.Players["b"].Hand.Count(cards.TypeExploding))
}

func TestDefuseReinsertsBomb(t *testing.T) {
	s := newState(t, "a", "b")
	s.Deck.Insert(cards.New(cards.TypeSkip, 1), 0)
	s.Deck.Insert(cards.New(cards.TypeSkip, 2), 0)
	bomb := cards.New(cards.TypeExploding, 1)
	s.Players["a"].Hand.Add(bomb)
	s.Draws = 2

	a := NewDefuse("a", nil)
	assert.Equal(t, []InputName{InputExploding, InputPosition}, a.Missing())
	require.NoError(t, a.Provide(InputExploding, bomb))
	require.NoError(t, a.Provide(InputPosition, 1))

	changes, err := a.Run(s)
	require.NoError(t, err)
	assert.True(t, changes.Deck)
	assert.Equal(t, "b", s.CurrentPlayerID)
	assert.Equal(t, 1, s.Draws)
	assert.Zero(t, s.Players["a"].Hand.Count(cards.TypeExploding))
	assert.Equal(t, bomb, s.Deck.SeeFuture()[1])
}

func TestExplodingEliminates(t *testing.T) {
	s := newState(t, "a", "b", "c")
	s.Draws = 3

	changes, err := New(KindExploding, "a").Run(s)
	require.NoError(t, err)
	assert.Equal(t, "a", changes.Eliminated)
	assert.False(t, s.Players["a"].IsAlive)
	assert.Equal(t, "b", s.CurrentPlayerID)
	assert.Equal(t, 1, s.Draws)
	require.NoError(t, s.CheckRing())
}

func TestChangesMerge(t *testing.T) {
	var total Changes
	total.Merge(Changes{Turn: true})
	total.Merge(Changes{Shuffled: true, Eliminated: "x"})

	assert.True(t, total.Turn)
	assert.True(t, total.Shuffled)
	assert.False(t, total.Draws)
	assert.Equal(t, "x", total.Eliminated)
}

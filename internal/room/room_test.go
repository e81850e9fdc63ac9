package room

import (
	"testing"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func newTestRegistry(t *testing.T) (*Registry, *game.Manager) {
	t.Helper()
	// Bots and timers may still log briefly after a test returns.
	logger := zap.NewNop()
	games := game.NewManager(logger, game.ManagerOptions{})
	reg := NewRegistry(games, Options{BotDelayScale: 0.001}, logger)
	t.Cleanup(func() {
		reg.CloseAll()
		games.CloseAll()
	})
	return reg, games
}

func drain(ch chan protocol.Message) []protocol.Message {
	var out []protocol.Message
	for {
		select {
		case m := <-ch:
			out = append(out, m)
		default:
			return out
		}
	}
}

func types(msgs []protocol.Message) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, m.Type)
	}
	return out
}

func TestSettingsNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   Settings
		want Settings
	}{
		{"zero", Settings{}, Settings{Capacity: 1, Bots: 0, NumDecks: 1, Cooldown: game.DefaultCooldown}},
		{"too big", Settings{Capacity: 9, Bots: 2, NumDecks: 2, Cooldown: time.Second}, Settings{Capacity: 5, Bots: 2, NumDecks: 2, Cooldown: time.Second}},
		{"all bots", Settings{Capacity: 3, Bots: 3, NumDecks: 1, Cooldown: time.Second}, Settings{Capacity: 3, Bots: 2, NumDecks: 1, Cooldown: time.Second}},
		{"negative bots", Settings{Capacity: 4, Bots: -1}, Settings{Capacity: 4, Bots: 0, NumDecks: 1, Cooldown: game.DefaultCooldown}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.Normalize())
		})
	}
}

func TestJoinAndHostPromotion(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rm, err := reg.Create()
	require.NoError(t, err)
	_, err = rm.Edit(Settings{Capacity: 3, Bots: 1})
	require.NoError(t, err)

	a := make(chan protocol.Message, 16)
	b := make(chan protocol.Message, 16)
	c := make(chan protocol.Message, 16)

	require.NoError(t, rm.Join("a", "Alice", a))
	assert.Equal(t, []string{protocol.MsgInit, protocol.MsgPromote}, types(drain(a)))

	require.NoError(t, rm.Join("b", "Bob", b))
	assert.Equal(t, []string{protocol.MsgInit}, types(drain(b)))
	assert.Equal(t, []string{protocol.MsgJoin}, types(drain(a)))

	assert.ErrorIs(t, rm.Join("b", "Bob", b), ErrAlreadyJoined)
	assert.ErrorIs(t, rm.Join("c", "Carol", c), ErrRoomFull)
	assert.ErrorIs(t, rm.Join("", "Nobody", c), ErrMissingIdentifier)
	assert.Equal(t, "a", rm.Host())

	rm.Leave("a")
	assert.Equal(t, "b", rm.Host())
	assert.Equal(t, []string{protocol.MsgLeave, protocol.MsgPromote}, types(drain(b)))

	rm.Leave("b")
	assert.Equal(t, StateClosed, rm.State())
	assert.Equal(t, 0, reg.Count())
}

func TestEditRejectsShrinkingBelowMembers(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rm, err := reg.Create()
	require.NoError(t, err)

	require.NoError(t, rm.Join("a", "Alice", make(chan protocol.Message, 16)))
	require.NoError(t, rm.Join("b", "Bob", make(chan protocol.Message, 16)))

	_, err = reg.Edit(rm.ID, Settings{Capacity: 2, Bots: 1})
	assert.ErrorIs(t, err, ErrRoomFull)

	got, err := reg.Edit(rm.ID, Settings{Capacity: 4, Bots: 2, NumDecks: 2, Cooldown: time.Second})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Bots)
	assert.Equal(t, got, rm.Settings())

	_, err = reg.Edit("missing", Settings{})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestStartSeatsHumansAndBots(t *testing.T) {
	reg, games := newTestRegistry(t)
	rm, err := reg.Create()
	require.NoError(t, err)

	out := make(chan protocol.Message, 256)
	require.NoError(t, rm.Join("a", "Alice", out))
	_, err = rm.Start()
	assert.ErrorIs(t, err, ErrNotEnoughPlayers)

	_, err = rm.Edit(Settings{Capacity: 3, Bots: 2, Cooldown: 5 * time.Millisecond})
	require.NoError(t, err)
	drain(out)

	assert.ErrorIs(t, rm.Handle(protocol.New("ghost", protocol.MsgStart, nil)), ErrNotHost)
	assert.ErrorIs(t, rm.Handle(protocol.New("a", protocol.MsgReady, nil)), ErrNoHandInProgress)

	require.NoError(t, rm.Handle(protocol.New("a", protocol.MsgStart, nil)))
	assert.Equal(t, StatePlaying, rm.State())
	g, ok := rm.Game()
	require.True(t, ok)
	assert.Len(t, g.Seats(), 3)
	assert.Equal(t, 1, games.Count())

	msgs := drain(out)
	require.NotEmpty(t, msgs)
	assert.Equal(t, protocol.MsgStart, msgs[0].Type)

	_, err = rm.Start()
	assert.ErrorIs(t, err, ErrInProgress)
	assert.ErrorIs(t, rm.Join("b", "Bob", make(chan protocol.Message, 1)), ErrInProgress)

	require.NoError(t, rm.Handle(protocol.New("a", protocol.MsgReady, nil)))
	require.Eventually(t, func() bool { return g.Phase() != game.PhaseWaiting }, 5*time.Second, time.Millisecond)
	assert.ErrorIs(t, rm.Handle(protocol.New("ghost", protocol.MsgDrawCard, nil)), ErrNotMember)

	summary := rm.Summary()
	assert.Equal(t, g.ID, summary.GameID)
	assert.Equal(t, 1, summary.Hands)
	assert.Equal(t, "PLAYING", summary.State)
}

func TestLeavingDuringAHandEliminatesAndCloses(t *testing.T) {
	reg, games := newTestRegistry(t)
	rm, err := reg.Create()
	require.NoError(t, err)
	_, err = rm.Edit(Settings{Capacity: 3, Bots: 2, Cooldown: time.Hour})
	require.NoError(t, err)

	require.NoError(t, rm.Join("a", "Alice", make(chan protocol.Message, 256)))
	g, err := rm.Start()
	require.NoError(t, err)

	rm.Leave("a")
	assert.Equal(t, StateClosed, rm.State())
	assert.Equal(t, 0, games.Count())
	assert.Equal(t, game.PhaseOver, g.Phase())
}

func TestFinishedHandReturnsToLobby(t *testing.T) {
	reg, _ := newTestRegistry(t)
	rm, err := reg.Create()
	require.NoError(t, err)
	_, err = rm.Edit(Settings{Capacity: 2, Bots: 1, Cooldown: time.Hour})
	require.NoError(t, err)

	require.NoError(t, rm.Join("a", "Alice", make(chan protocol.Message, 256)))
	g, err := rm.Start()
	require.NoError(t, err)

	rm.finished(game.Result{GameID: "other"})
	assert.Equal(t, StatePlaying, rm.State())

	rm.finished(game.Result{GameID: g.ID, WinnerID: "a"})
	assert.Equal(t, StateWaiting, rm.State())
	_, ok := rm.Game()
	assert.False(t, ok)
}

func TestRegistryListsOldestFirst(t *testing.T) {
	reg, _ := newTestRegistry(t)
	first, err := reg.Create()
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := reg.Create()
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, first.ID, list[0].ID)
	assert.Equal(t, second.ID, list[1].ID)
	assert.Equal(t, 4, list[0].Capacity)

	got, ok := reg.Get(second.ID)
	require.True(t, ok)
	assert.Same(t, second, got)

	reg.Remove(first.ID)
	_, ok = reg.Get(first.ID)
	assert.False(t, ok)
}

func TestRegistryRoomLimit(t *testing.T) {
	logger := zaptest.NewLogger(t)
	reg := NewRegistry(game.NewManager(logger, game.ManagerOptions{}), Options{MaxRooms: 1}, logger)
	_, err := reg.Create()
	require.NoError(t, err)
	_, err = reg.Create()
	assert.ErrorIs(t, err, ErrRoomFull)
}

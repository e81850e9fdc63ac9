package bot

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

type recordingSink struct {
	mu   sync.Mutex
	msgs []protocol.Message
}

func (s *recordingSink) Handle(msg protocol.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.msgs = append(s.msgs, msg)
	return nil
}

func (s *recordingSink) ofType(msgType string) []protocol.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []protocol.Message
	for _, m := range s.msgs {
		if m.Type == msgType {
			out = append(out, m)
		}
	}
	return out
}

// plays lists the card types the bot tried to play, in order.
func (s *recordingSink) plays(t *testing.T) []string {
	t.Helper()
	var out []string
	for _, m := range s.ofType(protocol.MsgPlayCard) {
		var p protocol.PlayCard
		require.NoError(t, m.Decode(&p))
		out = append(out, p.CardType)
	}
	return out
}

func calmPersonality() *Personality {
	p := NewPersonality(rand.New(rand.NewSource(1)))
	p.DesiredReduction = 0.3
	p.FutureReduction = 0.2
	p.FavorDamping = 1
	p.NopeForFun = 0
	p.NopeDefence = 1
	p.CounterNope = 1
	return p
}

func startBot(t *testing.T, p *Personality) (*Bot, *recordingSink) {
	t.Helper()
	sink := &recordingSink{}
	b := New("me", "Me", sink, Options{Rand: rand.New(rand.NewSource(2)), Personality: p}, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = b.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-b.done
	})
	return b, sink
}

func deliver(b *Bot, msgType string, payload any) {
	b.Inbox() <- protocol.New("server", msgType, payload)
}

func dealTo(hand ...cards.Type) protocol.Deal {
	cs := make([]cards.Card, 0, len(hand))
	for i, t := range hand {
		cs = append(cs, cards.New(t, i))
	}
	return protocol.Deal{
		Hand:           cs,
		DrawPileLength: 30,
		Players: []protocol.PlayerInfo{
			{UUID: "me", Username: "Me", HandSize: len(cs), IsAlive: true},
			{UUID: "p2", Username: "Two", HandSize: 8, IsAlive: true},
			{UUID: "p3", Username: "Three", HandSize: 8, IsAlive: true},
		},
	}
}

func TestPersonalityRanges(t *testing.T) {
	for seed := int64(0); seed < 50; seed++ {
		p := NewPersonality(rand.New(rand.NewSource(seed)))
		assert.GreaterOrEqual(t, p.DesiredReduction, 0.0)
		assert.Less(t, p.DesiredReduction, 0.4)
		assert.GreaterOrEqual(t, p.FavorDamping, 0.8)
		assert.GreaterOrEqual(t, p.NopeDefence, 0.4)
		assert.GreaterOrEqual(t, p.CounterNope, 0.8)
		assert.Equal(t, -1.0, p.Value(cards.TypeExploding))
		assert.Less(t, p.Value(cards.TypeDefuse), 5.0)
		assert.Less(t, p.Value(cards.TypeCat1), 0.5)
	}
}

func TestPersonalityValuation(t *testing.T) {
	p := calmPersonality()
	for _, typ := range cards.AllTypes() {
		p.values[typ] = 1
	}
	p.values[cards.TypeExploding] = -1
	p.values[cards.TypeCat2] = 0.1

	assert.InDelta(t, 1.0, p.AverageValue(0), 1e-9)
	assert.Less(t, p.AverageValue(4), 1.0, "exploding cards drag the average down")

	least, ok := p.LeastValued([]cards.Type{cards.TypeSkip, cards.TypeCat2, cards.TypeDefuse})
	require.True(t, ok)
	assert.Equal(t, cards.TypeCat2, least)

	_, ok = p.LeastValued(nil)
	assert.False(t, ok)
}

func TestBeliefsTrackTheFuture(t *testing.T) {
	b := newBeliefs("me")
	require.NoError(t, b.apply(protocol.New("server", protocol.MsgDeal, dealTo(cards.TypeDefuse))))
	assert.InDelta(t, 2.0/30.0, b.explodeProbability(), 1e-9)

	shown := []cards.Card{cards.New(cards.TypeExploding, 0), cards.New(cards.TypeSkip, 0)}
	require.NoError(t, b.apply(protocol.New("server", protocol.MsgShow, shown)))
	assert.Equal(t, 1.0, b.explodeProbability())

	require.NoError(t, b.apply(protocol.New("server", protocol.MsgDrawCard, protocol.Drew{UUID: "p2", HandSize: 9, Length: 29})))
	assert.Equal(t, 0.0, b.explodeProbability(), "the bomb went to p2")
	assert.Equal(t, 9, b.seats["p2"].handSize)

	require.NoError(t, b.apply(protocol.New("server", protocol.MsgShuffle, nil)))
	assert.InDelta(t, 2.0/29.0, b.explodeProbability(), 1e-9)
}

func TestBeliefsTrackTransfers(t *testing.T) {
	b := newBeliefs("me")
	require.NoError(t, b.apply(protocol.New("server", protocol.MsgDeal, dealTo(cards.TypeNope, cards.TypeFavor))))

	require.NoError(t, b.apply(protocol.New("server", protocol.MsgGive, protocol.Give{Card: cards.New(cards.TypeNope, 0), To: "p2"})))
	assert.False(t, b.hand.Has(cards.TypeNope, 1))
	assert.Equal(t, 1, b.seats["me"].handSize)
	assert.Equal(t, 9, b.seats["p2"].handSize)

	require.NoError(t, b.apply(protocol.New("server", protocol.MsgReceive, protocol.Receive{Card: cards.New(cards.TypeSkip, 3), From: "p3"})))
	assert.True(t, b.hand.Has(cards.TypeSkip, 1))
	assert.Equal(t, 7, b.seats["p3"].handSize)

	require.NoError(t, b.apply(protocol.New("server", protocol.MsgTransfer, protocol.Transfer{From: "p2", To: "p3"})))
	assert.Equal(t, 8, b.seats["p2"].handSize)
	assert.Equal(t, 8, b.seats["p3"].handSize)

	require.NoError(t, b.apply(protocol.New("server", protocol.MsgEliminate, protocol.Eliminate{UUID: "p3"})))
	assert.Equal(t, 1, b.explodingLeft())
	assert.Equal(t, []string{"p2"}, b.targets())
}

func TestBeliefsCountBombsPerDeck(t *testing.T) {
	b := newBeliefs("me")
	deal := dealTo(cards.TypeSkip)
	deal.Decks = 2
	require.NoError(t, b.apply(protocol.New("server", protocol.MsgDeal, deal)))
	assert.Equal(t, 4, b.explodingLeft())
	assert.InDelta(t, 4.0/30.0, b.explodeProbability(), 1e-9)

	require.NoError(t, b.apply(protocol.New("server", protocol.MsgEliminate, protocol.Eliminate{UUID: "p2"})))
	assert.Equal(t, 3, b.explodingLeft())
}

func TestBotDrawsWhenSafe(t *testing.T) {
	b, sink := startBot(t, calmPersonality())
	deliver(b, protocol.MsgDeal, dealTo(cards.TypeSkip))
	deliver(b, protocol.MsgNewTurn, protocol.Turn{UUID: "me"})

	require.Eventually(t, func() bool { return len(sink.ofType(protocol.MsgDrawCard)) == 1 }, time.Second, time.Millisecond)
	assert.Empty(t, sink.plays(t))
	assert.Len(t, sink.ofType(protocol.MsgReady), 1)
}

func TestBotSkipsAKnownBomb(t *testing.T) {
	b, sink := startBot(t, calmPersonality())
	deliver(b, protocol.MsgDeal, dealTo(cards.TypeSkip, cards.TypeCat3))
	deliver(b, protocol.MsgShow, []cards.Card{cards.New(cards.TypeExploding, 0)})
	deliver(b, protocol.MsgNewTurn, protocol.Turn{UUID: "me"})

	require.Eventually(t, func() bool { return len(sink.plays(t)) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"skip"}, sink.plays(t))
	assert.Empty(t, sink.ofType(protocol.MsgDrawCard))
}

func TestBotDefusesItsBomb(t *testing.T) {
	p := calmPersonality()
	p.DesiredReduction = 1
	b, sink := startBot(t, p)
	deliver(b, protocol.MsgDeal, dealTo(cards.TypeDefuse))
	deliver(b, protocol.MsgNewTurn, protocol.Turn{UUID: "me"})

	bomb := cards.New(cards.TypeExploding, 0)
	deliver(b, protocol.MsgDrawCard, protocol.Drew{Card: &bomb, UUID: "me", HandSize: 2, Length: 29})

	require.Eventually(t, func() bool { return len(sink.plays(t)) == 2 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"exploding", "defuse"}, sink.plays(t))
}

func TestBotAnswersRequests(t *testing.T) {
	p := calmPersonality()
	p.values[cards.TypeDefuse] = 3
	p.values[cards.TypeCat1] = 0.1
	b, sink := startBot(t, p)
	deliver(b, protocol.MsgDeal, dealTo(cards.TypeDefuse, cards.TypeCat1))
	deliver(b, protocol.MsgNewTurn, protocol.Turn{UUID: "p2"})

	deliver(b, protocol.MsgRequestInput, protocol.RequestInput{Input: "cardType", Types: []string{"defuse", "cat1"}})
	require.Eventually(t, func() bool { return len(sink.ofType(protocol.MsgProvideInput)) == 1 }, time.Second, time.Millisecond)

	var given protocol.ProvideInput
	require.NoError(t, sink.ofType(protocol.MsgProvideInput)[0].Decode(&given))
	require.NotNil(t, given.CardType)
	assert.Equal(t, "cat1", *given.CardType, "gives away the card it values least")

	deliver(b, protocol.MsgRequestInput, protocol.RequestInput{Input: "position", Length: 5})
	require.Eventually(t, func() bool { return len(sink.ofType(protocol.MsgProvideInput)) == 2 }, time.Second, time.Millisecond)

	var placed protocol.ProvideInput
	require.NoError(t, sink.ofType(protocol.MsgProvideInput)[1].Decode(&placed))
	require.NotNil(t, placed.Position)
	assert.GreaterOrEqual(t, *placed.Position, 0)
	assert.Less(t, *placed.Position, 5)

	deliver(b, protocol.MsgRequestInput, protocol.RequestInput{Input: "target", Players: []protocol.PlayerInfo{
		{UUID: "me", IsAlive: true, HandSize: 2},
		{UUID: "p2", IsAlive: true, HandSize: 0},
		{UUID: "p3", IsAlive: true, HandSize: 4},
	}})
	require.Eventually(t, func() bool { return len(sink.ofType(protocol.MsgProvideInput)) == 3 }, time.Second, time.Millisecond)

	var targeted protocol.ProvideInput
	require.NoError(t, sink.ofType(protocol.MsgProvideInput)[2].Decode(&targeted))
	require.NotNil(t, targeted.Target)
	assert.Equal(t, "p3", *targeted.Target)
}

func TestBotNopesWhenTargeted(t *testing.T) {
	b, sink := startBot(t, calmPersonality())
	deliver(b, protocol.MsgDeal, dealTo(cards.TypeNope))
	deliver(b, protocol.MsgNewTurn, protocol.Turn{UUID: "p2"})
	deliver(b, protocol.MsgPlayCard, protocol.Played{Card: cards.New(cards.TypeFavor, 0), UUID: "p2", CoolingDown: true})
	deliver(b, protocol.MsgProvideInput, protocol.Provided{UUID: "p2", Target: "me"})

	require.Eventually(t, func() bool { return len(sink.plays(t)) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, []string{"nope"}, sink.plays(t))
}

func TestBotIgnoresPlaysNotAimedAtIt(t *testing.T) {
	b, sink := startBot(t, calmPersonality())
	deliver(b, protocol.MsgDeal, dealTo(cards.TypeNope))
	deliver(b, protocol.MsgNewTurn, protocol.Turn{UUID: "p2"})
	deliver(b, protocol.MsgPlayCard, protocol.Played{Card: cards.New(cards.TypeFavor, 0), UUID: "p2", CoolingDown: true})
	deliver(b, protocol.MsgProvideInput, protocol.Provided{UUID: "p2", Target: "p3"})

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, sink.plays(t))
}

func TestBotsFinishAHand(t *testing.T) {
	seats := []game.Seat{
		{ID: "b1", Username: "Applejack", Bot: true},
		{ID: "b2", Username: "Rarity", Bot: true},
		{ID: "b3", Username: "Fluttershy", Bot: true},
	}
	g, err := game.NewGame("bots", seats, game.Options{
		Cooldown:     5 * time.Millisecond,
		InputTimeout: 200 * time.Millisecond,
		FuseTimeout:  200 * time.Millisecond,
		Rand:         rand.New(rand.NewSource(11)),
	}, zap.NewNop())
	require.NoError(t, err)
	defer g.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	for i, s := range seats {
		b := New(s.ID, s.Username, g, Options{DelayScale: 0.001, Rand: rand.New(rand.NewSource(int64(i)))}, zap.NewNop())
		require.NoError(t, g.Attach(s.ID, b.Inbox()))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Run(ctx)
		}()
	}

	require.Eventually(t, func() bool {
		_, ok := g.Winner()
		return ok
	}, 25*time.Second, 10*time.Millisecond)

	wg.Wait()
	assert.Equal(t, game.PhaseOver, g.Phase())
}

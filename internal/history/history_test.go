package history

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func notification(gameID string, seq uint64, playerID, msgType string, payload any) game.GameNotification {
	return game.GameNotification{
		Seq:       seq,
		GameID:    gameID,
		PlayerID:  playerID,
		Timestamp: time.Now(),
		Message:   protocol.New("", msgType, payload),
	}
}

func TestNewEntry(t *testing.T) {
	card := cards.New(cards.TypeDefuse, 2)
	e, err := NewEntry(notification("g1", 7, "p1", protocol.MsgDrawCard, protocol.Drew{Card: &card, UUID: "p1", HandSize: 9, Length: 20}))
	require.NoError(t, err)

	assert.Equal(t, uint64(7), e.Seq)
	assert.Equal(t, protocol.MsgDrawCard, e.Type)
	assert.False(t, e.Broadcast())

	var drew protocol.Drew
	require.NoError(t, json.Unmarshal(e.Payload, &drew))
	require.NotNil(t, drew.Card)
	assert.Equal(t, cards.TypeDefuse, drew.Card.Type)
	assert.Equal(t, 20, drew.Length)

	e, err = NewEntry(notification("g1", 8, "", protocol.MsgShuffle, nil))
	require.NoError(t, err)
	assert.True(t, e.Broadcast())
	assert.Empty(t, e.Payload)
}

func TestKeysAreNamespaced(t *testing.T) {
	l := NewLog(nil, "", 0, nil)
	assert.Equal(t, "ponies:game:abc:log", l.ListKey("abc"))
	assert.Equal(t, "ponies:game:abc:events", l.Channel("abc"))

	l = NewLog(nil, "staging", 0, nil)
	assert.Equal(t, "staging:game:abc:log", l.ListKey("abc"))
}

// TestLogAgainstRedis needs a scratch Redis, e.g.
// PONIES_TEST_REDIS_URL=redis://localhost:6379/15
func TestLogAgainstRedis(t *testing.T) {
	url := os.Getenv("PONIES_TEST_REDIS_URL")
	if url == "" {
		t.Skip("PONIES_TEST_REDIS_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := NewClient(ctx, url)
	require.NoError(t, err)
	defer client.Close()

	l := NewLog(client, "ponies-test", time.Minute, zaptest.NewLogger(t))
	gameID := uuid.NewString()
	defer l.Delete(context.Background(), gameID)

	live, err := l.Subscribe(ctx, gameID)
	require.NoError(t, err)

	require.NoError(t, l.Append(ctx, notification(gameID, 1, "", protocol.MsgNewTurn, protocol.Turn{UUID: "p1"})))
	require.NoError(t, l.Append(ctx, notification(gameID, 2, "p1", protocol.MsgDraws, protocol.Draws{Draws: 2})))

	entries, err := l.Entries(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, protocol.MsgNewTurn, entries[0].Type)
	assert.Equal(t, "p1", entries[1].PlayerID)

	select {
	case e := <-live:
		assert.Equal(t, uint64(1), e.Seq)
	case <-ctx.Done():
		t.Fatal("no live entry")
	}

	// Entries come back by Seq even if they were pushed out of order.
	require.NoError(t, l.Append(ctx, notification(gameID, 4, "", protocol.MsgShuffle, nil)))
	require.NoError(t, l.Append(ctx, notification(gameID, 3, "", protocol.MsgDeck, protocol.DeckLength{Length: 9})))
	entries, err = l.Entries(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for i, e := range entries {
		assert.Equal(t, uint64(i+1), e.Seq)
	}

	ttl, err := client.TTL(ctx, l.ListKey(gameID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}

package protocol

import (
	"testing"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKeepsPayloadRaw(t *testing.T) {
	msg, err := Parse([]byte(`{"sender":"p1","type":"playcard","payload":{"cardType":"nope"}}`))
	require.NoError(t, err)
	assert.Equal(t, "p1", msg.Sender)
	assert.Equal(t, MsgPlayCard, msg.Type)

	var p PlayCard
	require.NoError(t, msg.Decode(&p))
	assert.Equal(t, "nope", p.CardType)
}

func TestParseRejectsMissingType(t *testing.T) {
	_, err := Parse([]byte(`{"sender":"p1"}`))
	assert.Error(t, err)

	_, err = Parse([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeTypedPayload(t *testing.T) {
	target := "p2"
	msg := New("p1", MsgProvideInput, ProvideInput{Target: &target})

	var p ProvideInput
	require.NoError(t, msg.Decode(&p))
	require.NotNil(t, p.Target)
	assert.Equal(t, "p2", *p.Target)
	assert.Nil(t, p.CardType)
	assert.Nil(t, p.Position)
}

func TestDecodeNoPayload(t *testing.T) {
	msg := New("p1", MsgDrawCard, nil)
	var p PlayCard
	assert.NoError(t, msg.Decode(&p))
}

func TestEncodeRoundTripsCards(t *testing.T) {
	msg := New("", MsgShow, []cards.Card{cards.New(cards.TypeExploding, 2)})
	data, err := msg.Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"sender":"","type":"show","payload":[{"cardType":"exploding","index":2}]}`, string(data))

	parsed, err := Parse(data)
	require.NoError(t, err)
	var shown []cards.Card
	require.NoError(t, parsed.Decode(&shown))
	assert.Equal(t, []cards.Card{cards.New(cards.TypeExploding, 2)}, shown)
}

func TestResolveAlwaysCarriesCoolingDown(t *testing.T) {
	data, err := New("", MsgResolve, Resolve{}).Encode()
	require.NoError(t, err)
	assert.JSONEq(t, `{"sender":"","type":"resolve","payload":{"coolingDown":false}}`, string(data))
}

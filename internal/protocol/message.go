package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

// Message types sent by players.
const (
	MsgReady        = "ready"
	MsgPlayCard     = "playcard"
	MsgDrawCard     = "drawcard"
	MsgProvideInput = "provideinput"
)

// Message types sent by the game.
const (
	MsgDeal         = "deal"
	MsgNewTurn      = "newturn"
	MsgDraws        = "draws"
	MsgResolve      = "resolve"
	MsgRequestInput = "requestinput"
	MsgGive         = "give"
	MsgReceive      = "receive"
	MsgTransfer     = "transfer"
	MsgShuffle      = "shuffle"
	MsgDeck         = "deck"
	MsgShow         = "show"
	MsgEliminate    = "eliminate"
	MsgEliminated   = "eliminated"
	MsgWin          = "win"
)

// Room lobby message types.
const (
	MsgInit    = "init"
	MsgJoin    = "join"
	MsgLeave   = "leave"
	MsgPromote = "promote"
	MsgEdit    = "edit"
	MsgStart   = "start"
)

// Message is the envelope for everything exchanged with a player.
type Message struct {
	Sender  string `json:"sender"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

type wireMessage struct {
	Sender  string          `json:"sender"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// New builds a message.
func New(sender, msgType string, payload any) Message {
	return Message{Sender: sender, Type: msgType, Payload: payload}
}

// Parse decodes a message received over the wire. The payload is kept raw
// until Decode is called.
func Parse(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return Message{}, fmt.Errorf("failed to parse message: %w", err)
	}
	if w.Type == "" {
		return Message{}, fmt.Errorf("message has no type")
	}
	msg := Message{Sender: w.Sender, Type: w.Type}
	if len(w.Payload) > 0 {
		msg.Payload = w.Payload
	}
	return msg, nil
}

// Encode serializes the message for the wire.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode fills dst from the payload, whether it arrived raw from the wire
// or as a typed value from an in-process sender.
func (m Message) Decode(dst any) error {
	switch p := m.Payload.(type) {
	case nil:
		return nil
	case json.RawMessage:
		return json.Unmarshal(p, dst)
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to re-encode %s payload: %w", m.Type, err)
		}
		return json.Unmarshal(data, dst)
	}
}

// PlayerInfo is the public view of a seat.
type PlayerInfo struct {
	UUID     string `json:"uuid"`
	Username string `json:"username"`
	HandSize int    `json:"handSize"`
	IsAlive  bool   `json:"isAlive"`
	IsBot    bool   `json:"isBot,omitempty"`
}

// PlayCard is the payload of an inbound playcard.
type PlayCard struct {
	CardType string `json:"cardType"`
}

// ProvideInput is the payload of an inbound provideinput. Exactly the
// fields being answered are set.
type ProvideInput struct {
	Target   *string `json:"target,omitempty"`
	CardType *string `json:"cardType,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// Deal is sent privately to each player when the hand starts.
type Deal struct {
	Hand           []cards.Card `json:"hand"`
	DrawPileLength int          `json:"drawPileLength"`
	Players        []PlayerInfo `json:"players"`
	// Decks is the catalog multiplier the pile was built with.
	Decks int `json:"decks"`
}

// Turn announces the current player.
type Turn struct {
	UUID string `json:"uuid"`
}

// Draws announces how many draw-turns the current player owes.
type Draws struct {
	Draws int `json:"draws"`
}

// Played announces a card entering the stack.
type Played struct {
	Card        cards.Card `json:"card"`
	UUID        string     `json:"uuid"`
	CoolingDown bool       `json:"coolingDown"`
}

// Resolve announces that the interrupt window closed.
type Resolve struct {
	CoolingDown bool `json:"coolingDown"`
}

// RequestInput asks one player for a value.
type RequestInput struct {
	Input   string       `json:"input"`
	Players []PlayerInfo `json:"players,omitempty"`
	Types   []string     `json:"types,omitempty"`
	Length  int          `json:"length,omitempty"`
	Mode    string       `json:"mode,omitempty"`
}

// Provided echoes a choice to every player.
type Provided struct {
	UUID     string `json:"uuid"`
	Target   string `json:"target,omitempty"`
	CardType string `json:"cardType,omitempty"`
}

// Drew announces a draw. Card is only filled for the drawer, or for
// everyone when it is an exploding card.
type Drew struct {
	Card     *cards.Card `json:"card,omitempty"`
	UUID     string      `json:"uuid"`
	HandSize int         `json:"handSize"`
	Length   int         `json:"length"`
}

// Give tells the giver which card left their hand.
type Give struct {
	Card cards.Card `json:"card"`
	To   string     `json:"to"`
}

// Receive tells the receiver which card they got.
type Receive struct {
	Card cards.Card `json:"card"`
	From string     `json:"from"`
}

// Transfer tells everyone else that a card changed hands.
type Transfer struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// DeckLength announces the draw pile size.
type DeckLength struct {
	Length int `json:"length"`
}

// Eliminate announces a player leaving the ring.
type Eliminate struct {
	UUID string `json:"uuid"`
}

// Win announces the winner.
type Win struct {
	UUID string `json:"uuid"`
}

// RoomSettings describes a room's table. Cooldown is in milliseconds.
type RoomSettings struct {
	Capacity int `json:"capacity"`
	Bots     int `json:"bots"`
	Decks    int `json:"decks"`
	Cooldown int `json:"cooldown"`
}

// RoomInit is sent to a member when they join a room.
type RoomInit struct {
	RoomID   string       `json:"roomId"`
	Host     string       `json:"host"`
	Players  []PlayerInfo `json:"players"`
	Settings RoomSettings `json:"settings"`
}

// Started tells room members that a hand has begun.
type Started struct {
	GameID   string `json:"gameId"`
	Cooldown int    `json:"cooldown"`
}

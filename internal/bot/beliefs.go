package bot

import (
	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/rules"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
)

type seat struct {
	username string
	alive    bool
	handSize int
}

// beliefs is what the bot has learned from the message stream. It is only
// touched from the bot's run loop.
type beliefs struct {
	self    string
	alive   bool
	hand    *cards.Hand
	seats   map[string]*seat
	order   []string
	current string
	draws   int

	drawPile int
	upcoming []cards.Card
	// bombs is how many exploding cards were shuffled in at the deal.
	bombs int

	lastDrawn    cards.Type
	lastPlayed   cards.Type
	lastPlayer   string
	originPlayer string
	coolingDown  bool
	resolving    bool
	defusing     bool
	over         bool
}

func newBeliefs(self string) *beliefs {
	return &beliefs{
		self:  self,
		alive: true,
		hand:  cards.NewHand(),
		seats: make(map[string]*seat),
		draws: 1,
	}
}

func (b *beliefs) view() rules.PlayView {
	return rules.PlayView{
		PlayerID:        b.self,
		CurrentPlayerID: b.current,
		Alive:           b.alive,
		Hand:            b.hand,
		LastTypeDrawn:   b.lastDrawn,
		LastTypePlayed:  b.lastPlayed,
		LastPlayerID:    b.lastPlayer,
		OriginPlayerID:  b.originPlayer,
		CoolingDown:     b.coolingDown,
	}
}

func (b *beliefs) canPlay(t cards.Type) bool {
	return !b.resolving && rules.CanPlay(b.view(), t)
}

func (b *beliefs) myTurn() bool {
	return b.alive && b.current == b.self
}

func (b *beliefs) aliveCount() int {
	n := 0
	for _, s := range b.seats {
		if s.alive {
			n++
		}
	}
	return n
}

// explodingLeft assumes every elimination spent one exploding card and the
// rest are still in the pile.
func (b *beliefs) explodingLeft() int {
	n := b.bombs - (len(b.seats) - b.aliveCount())
	if n < 0 {
		return 0
	}
	return n
}

// explodeProbability is the chance the next draw explodes.
func (b *beliefs) explodeProbability() float64 {
	if len(b.upcoming) > 0 {
		if b.upcoming[0].Type == cards.TypeExploding {
			return 1
		}
		return 0
	}
	return b.baseProbability()
}

func (b *beliefs) baseProbability() float64 {
	if b.drawPile <= 0 {
		return 0
	}
	return float64(b.explodingLeft()) / float64(b.drawPile)
}

// targets lists opponents worth stealing from.
func (b *beliefs) targets() []string {
	var out, fallback []string
	for _, id := range b.order {
		s := b.seats[id]
		if id == b.self || !s.alive {
			continue
		}
		fallback = append(fallback, id)
		if s.handSize > 0 {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

// apply folds one message into the beliefs.
func (b *beliefs) apply(msg protocol.Message) error {
	switch msg.Type {
	case protocol.MsgDeal:
		var p protocol.Deal
		if err := msg.Decode(&p); err != nil {
			return err
		}
		b.hand = cards.NewHand(p.Hand...)
		b.drawPile = p.DrawPileLength
		b.seats = make(map[string]*seat, len(p.Players))
		b.order = b.order[:0]
		for _, info := range p.Players {
			b.seats[info.UUID] = &seat{username: info.Username, alive: info.IsAlive, handSize: info.HandSize}
			b.order = append(b.order, info.UUID)
		}
		b.bombs = (b.aliveCount() - 1) * max(p.Decks, 1)

	case protocol.MsgNewTurn:
		var p protocol.Turn
		if err := msg.Decode(&p); err != nil {
			return err
		}
		b.current = p.UUID
		if b.defusing && b.resolving {
			b.hand.Take(cards.TypeExploding)
			b.defusing = false
			b.lastDrawn = ""
		}
		b.resolving = false

	case protocol.MsgDraws:
		var p protocol.Draws
		if err := msg.Decode(&p); err != nil {
			return err
		}
		b.draws = p.Draws

	case protocol.MsgPlayCard:
		var p protocol.Played
		if err := msg.Decode(&p); err != nil {
			return err
		}
		if s, ok := b.seats[p.UUID]; ok {
			s.handSize--
		}
		if p.UUID == b.self {
			b.hand.Remove(p.Card)
			switch p.Card.Type {
			case cards.TypeDefuse:
				b.defusing = true
			case cards.TypeExploding:
				b.lastDrawn = ""
			}
		}
		b.lastPlayer = p.UUID
		b.lastPlayed = p.Card.Type
		if p.Card.Type != cards.TypeNope {
			b.originPlayer = p.UUID
		}
		b.coolingDown = p.CoolingDown

	case protocol.MsgResolve:
		b.coolingDown = false
		b.resolving = true
		b.lastPlayed = ""
		b.lastPlayer = ""
		b.originPlayer = ""

	case protocol.MsgDrawCard:
		var p protocol.Drew
		if err := msg.Decode(&p); err != nil {
			return err
		}
		if s, ok := b.seats[p.UUID]; ok {
			s.handSize = p.HandSize
		}
		b.drawPile = p.Length
		if len(b.upcoming) > 0 {
			b.upcoming = b.upcoming[1:]
		}
		if p.UUID == b.self && p.Card != nil {
			b.hand.Add(*p.Card)
			b.lastDrawn = p.Card.Type
		}

	case protocol.MsgGive:
		var p protocol.Give
		if err := msg.Decode(&p); err != nil {
			return err
		}
		b.hand.Remove(p.Card)
		b.moved(b.self, p.To)

	case protocol.MsgReceive:
		var p protocol.Receive
		if err := msg.Decode(&p); err != nil {
			return err
		}
		b.hand.Add(p.Card)
		b.moved(p.From, b.self)

	case protocol.MsgTransfer:
		var p protocol.Transfer
		if err := msg.Decode(&p); err != nil {
			return err
		}
		b.moved(p.From, p.To)

	case protocol.MsgShuffle:
		b.upcoming = nil

	case protocol.MsgDeck:
		var p protocol.DeckLength
		if err := msg.Decode(&p); err != nil {
			return err
		}
		if p.Length != b.drawPile {
			// Something was inserted; what we saw is no longer reliable.
			b.upcoming = nil
		}
		b.drawPile = p.Length

	case protocol.MsgShow:
		var shown []cards.Card
		if err := msg.Decode(&shown); err != nil {
			return err
		}
		b.upcoming = shown

	case protocol.MsgEliminate, protocol.MsgEliminated:
		var p protocol.Eliminate
		if err := msg.Decode(&p); err != nil {
			return err
		}
		if s, ok := b.seats[p.UUID]; ok {
			s.alive = false
		}
		if p.UUID == b.self {
			b.alive = false
		}

	case protocol.MsgWin:
		b.over = true
	}
	return nil
}

func (b *beliefs) moved(from, to string) {
	if s, ok := b.seats[from]; ok {
		s.handSize--
	}
	if s, ok := b.seats[to]; ok {
		s.handSize++
	}
}

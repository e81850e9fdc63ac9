// Package bot implements an autonomous player that speaks the same message
// protocol as a human client.
package bot

import (
	"context"
	"math/rand"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"go.uber.org/zap"
)

const inboxSize = 256

// Sink accepts the bot's outbound messages. *game.Game satisfies it.
type Sink interface {
	Handle(msg protocol.Message) error
}

// Options tune a bot.
type Options struct {
	// DelayScale multiplies every think and reaction delay. Zero acts
	// immediately.
	DelayScale  float64
	Rand        *rand.Rand
	Personality *Personality
}

// Bot plays one seat. All decisions happen on the goroutine running Run.
type Bot struct {
	ID       string
	Username string

	logger      *zap.Logger
	sink        Sink
	rng         *rand.Rand
	scale       float64
	personality *Personality

	inbox  chan protocol.Message
	events chan func()
	done   chan struct{}

	b       *beliefs
	turnGen uint64
	nopeGen uint64
}

// New creates a bot that sends to sink.
func New(id, username string, sink Sink, opts Options, logger *zap.Logger) *Bot {
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p := opts.Personality
	if p == nil {
		p = NewPersonality(rng)
	}
	scale := opts.DelayScale
	if scale < 0 {
		scale = 0
	}
	return &Bot{
		ID:          id,
		Username:    username,
		logger:      logger,
		sink:        sink,
		rng:         rng,
		scale:       scale,
		personality: p,
		inbox:       make(chan protocol.Message, inboxSize),
		events:      make(chan func(), 16),
		done:        make(chan struct{}),
		b:           newBeliefs(id),
	}
}

// Inbox is the channel the game delivers this seat's messages to.
func (bot *Bot) Inbox() chan<- protocol.Message {
	return bot.inbox
}

// Run announces the bot ready and plays until the hand is won or ctx ends.
func (bot *Bot) Run(ctx context.Context) error {
	defer close(bot.done)

	if err := bot.sink.Handle(protocol.New(bot.ID, protocol.MsgReady, nil)); err != nil && bot.logger != nil {
		bot.logger.Warn("bot could not ready up", zap.String("player_id", bot.ID), zap.Error(err))
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-bot.inbox:
			bot.onMessage(msg)
			if bot.b.over {
				return nil
			}
		case fn := <-bot.events:
			fn()
		}
	}
}

// after runs fn on the bot goroutine once the scaled delay elapses.
func (bot *Bot) after(ms float64, fn func()) {
	d := time.Duration(ms * bot.scale * float64(time.Millisecond))
	time.AfterFunc(d, func() {
		select {
		case bot.events <- fn:
		case <-bot.done:
		}
	})
}

func (bot *Bot) send(msgType string, payload any) {
	err := bot.sink.Handle(protocol.New(bot.ID, msgType, payload))
	if err != nil && bot.logger != nil {
		bot.logger.Debug("bot action rejected",
			zap.String("player_id", bot.ID),
			zap.String("type", msgType),
			zap.Error(err),
		)
	}
}

func (bot *Bot) onMessage(msg protocol.Message) {
	if err := bot.b.apply(msg); err != nil {
		if bot.logger != nil {
			bot.logger.Warn("bot could not read message",
				zap.String("player_id", bot.ID),
				zap.String("type", msg.Type),
				zap.Error(err),
			)
		}
		return
	}
	if !bot.b.alive || bot.b.over {
		return
	}

	switch msg.Type {
	case protocol.MsgNewTurn:
		bot.turnGen++
		bot.nopeGen++
		if bot.b.myTurn() {
			gen := bot.turnGen
			bot.after(1000+1500*bot.rng.Float64(), func() { bot.decide(gen) })
		}

	case protocol.MsgPlayCard:
		var p protocol.Played
		if err := msg.Decode(&p); err != nil || p.UUID == bot.ID {
			return
		}
		chance := bot.personality.NopeForFun
		if p.Card.Type == cards.TypeNope && bot.b.originPlayer == bot.ID {
			chance = bot.personality.CounterNope
		}
		bot.considerNope(chance)

	case protocol.MsgResolve:
		bot.nopeGen++

	case protocol.MsgProvideInput:
		var p protocol.Provided
		if err := msg.Decode(&p); err != nil {
			return
		}
		if p.Target == bot.ID && p.UUID != bot.ID {
			bot.considerNope(bot.personality.NopeDefence)
		}

	case protocol.MsgRequestInput:
		var p protocol.RequestInput
		if err := msg.Decode(&p); err != nil {
			return
		}
		bot.after(500+1000*bot.rng.Float64(), func() { bot.answer(p) })

	case protocol.MsgDrawCard:
		var p protocol.Drew
		if err := msg.Decode(&p); err != nil || p.UUID != bot.ID || p.Card == nil {
			return
		}
		if p.Card.Type == cards.TypeExploding {
			delay := 1000 + 500*bot.rng.Float64()
			bot.after(delay, func() { bot.playType(cards.TypeExploding) })
			if bot.b.hand.Has(cards.TypeDefuse, 1) {
				bot.after(delay+500, func() { bot.playType(cards.TypeDefuse) })
			}
		}
	}
}

// considerNope schedules a reflex nope. Only the latest reflex counts.
func (bot *Bot) considerNope(chance float64) {
	bot.nopeGen++
	gen := bot.nopeGen
	bot.after(1000+1500*bot.rng.Float64(), func() {
		if gen != bot.nopeGen {
			return
		}
		if bot.b.canPlay(cards.TypeNope) && bot.rng.Float64() < chance {
			bot.playType(cards.TypeNope)
		}
	})
}

func (bot *Bot) playType(t cards.Type) bool {
	if !bot.b.canPlay(t) {
		return false
	}
	bot.send(protocol.MsgPlayCard, protocol.PlayCard{CardType: string(t)})
	return true
}

// decide picks the bot's move for its turn: play the first card that buys
// enough safety or value, otherwise draw.
func (bot *Bot) decide(gen uint64) {
	b := bot.b
	if gen != bot.turnGen || !b.myTurn() || b.coolingDown || b.resolving {
		return
	}
	if b.lastDrawn == cards.TypeExploding && b.hand.Has(cards.TypeExploding, 1) {
		return
	}

	p := bot.personality
	risk := b.explodeProbability()
	if risk >= p.DesiredReduction {
		average := p.AverageValue(b.explodingLeft())
		for _, t := range b.hand.Types() {
			if !b.canPlay(t) {
				continue
			}
			after := risk
			surplus := -p.Value(t)
			switch {
			case t == cards.TypeNope:
			case t == cards.TypeAttack, t == cards.TypeSkip, t == cards.TypeDefuse:
				after = 0
			case t == cards.TypeShuffle:
				after = b.baseProbability()
			case t == cards.TypeFuture:
				after = risk - p.FutureReduction
			case t == cards.TypeFavor:
				surplus += average * p.FavorDamping
			case t.IsCat():
				surplus += average - p.Value(t)
			}

			if risk-after <= p.DesiredReduction && surplus <= 0 {
				continue
			}
			if t.IsCat() && !b.hand.Has(t, 2) {
				continue
			}
			bot.play(t)
			return
		}
	}

	bot.send(protocol.MsgDrawCard, nil)
}

// play commits to a card; cats go down as a pair and steals name a target
// straight away.
func (bot *Bot) play(t cards.Type) {
	if !bot.playType(t) {
		return
	}
	if t.IsCat() {
		bot.after(500, func() { bot.playType(t) })
	}
	if t == cards.TypeFavor || t.IsCat() {
		if target, ok := bot.chooseTarget(nil); ok {
			bot.send(protocol.MsgProvideInput, protocol.ProvideInput{Target: &target})
		}
	}
	if bot.logger != nil {
		bot.logger.Debug("bot played", zap.String("player_id", bot.ID), zap.String("card", string(t)))
	}
}

func (bot *Bot) answer(req protocol.RequestInput) {
	if !bot.b.alive || bot.b.over {
		return
	}
	var in protocol.ProvideInput
	switch req.Input {
	case "target":
		target, ok := bot.chooseTarget(req.Players)
		if !ok {
			return
		}
		in.Target = &target
	case "cardType":
		t, ok := bot.chooseCard(req.Types)
		if !ok {
			return
		}
		s := string(t)
		in.CardType = &s
	case "position":
		pos := 0
		if req.Length > 0 {
			pos = bot.rng.Intn(req.Length)
		}
		in.Position = &pos
	default:
		return
	}
	bot.send(protocol.MsgProvideInput, in)
}

// chooseTarget picks a random opponent holding cards. It uses the offered
// players when given, otherwise its own beliefs.
func (bot *Bot) chooseTarget(offered []protocol.PlayerInfo) (string, bool) {
	var ids []string
	if len(offered) > 0 {
		for _, info := range offered {
			if info.UUID != bot.ID && info.IsAlive && info.HandSize > 0 {
				ids = append(ids, info.UUID)
			}
		}
		if len(ids) == 0 {
			for _, info := range offered {
				if info.UUID != bot.ID && info.IsAlive {
					ids = append(ids, info.UUID)
				}
			}
		}
	} else {
		ids = bot.b.targets()
	}
	if len(ids) == 0 {
		return "", false
	}
	return ids[bot.rng.Intn(len(ids))], true
}

// chooseCard gives away, or asks for, the least valued offered type. When
// naming a card to steal it asks for the most valued one instead.
func (bot *Bot) chooseCard(offered []string) (cards.Type, bool) {
	types := make([]cards.Type, 0, len(offered))
	for _, s := range offered {
		if t, err := cards.ParseType(s); err == nil {
			types = append(types, t)
		}
	}
	if len(types) == 0 {
		return "", false
	}
	if !bot.b.myTurn() {
		return bot.personality.LeastValued(types)
	}
	best := types[0]
	for _, t := range types[1:] {
		if bot.personality.Value(t) > bot.personality.Value(best) {
			best = t
		}
	}
	return best, true
}

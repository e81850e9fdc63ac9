package bot

import (
	"math/rand"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

// Personality holds the weights that make one bot play differently from
// another. Every field is drawn once when the bot is created.
type Personality struct {
	// DesiredReduction is the drop in explode probability a card must buy
	// before the bot plays it instead of drawing.
	DesiredReduction float64
	// FutureReduction is how much the bot expects seeing the future to lower
	// its risk.
	FutureReduction float64
	// FavorDamping discounts the card expected back from a favor.
	FavorDamping float64
	// NopeForFun is the chance of noping someone else's play unprovoked.
	NopeForFun float64
	// NopeDefence is the chance of noping a play that targets the bot.
	NopeDefence float64
	// CounterNope is the chance of noping a nope aimed at the bot's own play.
	CounterNope float64

	values map[cards.Type]float64
}

// NewPersonality draws a personality from rng.
func NewPersonality(rng *rand.Rand) *Personality {
	p := &Personality{
		DesiredReduction: rng.Float64() * 0.4,
		FutureReduction:  rng.Float64() * 0.4,
		FavorDamping:     0.8 + rng.Float64()*0.2,
		NopeForFun:       rng.Float64() * 0.4,
		NopeDefence:      0.4 + rng.Float64()*0.6,
		CounterNope:      0.8 + rng.Float64()*0.2,
		values:           make(map[cards.Type]float64),
	}
	for _, t := range cards.AllTypes() {
		switch {
		case t == cards.TypeExploding:
			p.values[t] = -1
		case t == cards.TypeDefuse:
			p.values[t] = rng.Float64() * 5
		case t.IsCat():
			p.values[t] = rng.Float64() * 0.5
		default:
			p.values[t] = rng.Float64()
		}
	}
	return p
}

// Value is how much the bot likes holding one card of the type.
func (p *Personality) Value(t cards.Type) float64 {
	return p.values[t]
}

// AverageValue is the expected value of a card drawn from a fresh deck in
// which explodingCount exploding cards are mixed.
func (p *Personality) AverageValue(explodingCount int) float64 {
	total, n := 0.0, 0
	for _, t := range cards.AllTypes() {
		count := t.Props().Count
		if t == cards.TypeExploding {
			count = explodingCount
		}
		total += p.values[t] * float64(count)
		n += count
	}
	if n == 0 {
		return 0
	}
	return total / float64(n)
}

// LeastValued returns the type the bot would most happily give away.
func (p *Personality) LeastValued(types []cards.Type) (cards.Type, bool) {
	if len(types) == 0 {
		return "", false
	}
	best := types[0]
	for _, t := range types[1:] {
		if p.values[t] < p.values[best] {
			best = t
		}
	}
	return best, true
}

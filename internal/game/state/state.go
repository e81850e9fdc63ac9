package state

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/deck"
)

// ErrRingCorrupted signals that the successor links no longer form a single
// cycle over the alive players.
var ErrRingCorrupted = errors.New("turn ring corrupted")

// Player is one seat in a hand of the game.
type Player struct {
	ID           string
	Username     string
	Hand         *cards.Hand
	IsAlive      bool
	IsBot        bool
	NextPlayerID string
}

// State is the authoritative state of one hand: players, turn ring, draws
// owed and the deck. Callers serialize access.
type State struct {
	Players         map[string]*Player
	CurrentPlayerID string
	Draws           int
	Deck            *deck.Deck

	order []string
}

// New creates an empty state around the given deck.
func New(d *deck.Deck) *State {
	return &State{
		Players: make(map[string]*Player),
		Draws:   1,
		Deck:    d,
	}
}

// AddPlayer seats a player. The first player becomes current; every later
// player is spliced in as the current player's predecessor.
func (s *State) AddPlayer(id, username string) (*Player, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("player id is required")
	}
	if _, exists := s.Players[id]; exists {
		return nil, fmt.Errorf("player %s already seated", id)
	}

	p := &Player{
		ID:       id,
		Username: username,
		Hand:     cards.NewHand(),
		IsAlive:  true,
	}

	if s.CurrentPlayerID == "" {
		p.NextPlayerID = id
		s.CurrentPlayerID = id
	} else {
		for _, other := range s.Players {
			if other.IsAlive && other.NextPlayerID == s.CurrentPlayerID {
				other.NextPlayerID = id
				break
			}
		}
		p.NextPlayerID = s.CurrentPlayerID
	}

	s.Players[id] = p
	s.order = append(s.order, id)
	return p, nil
}

// Player returns a seated player by id.
func (s *State) Player(id string) (*Player, bool) {
	p, ok := s.Players[id]
	return p, ok
}

// Current returns the player whose turn it is.
func (s *State) Current() *Player {
	return s.Players[s.CurrentPlayerID]
}

// SeatOrder returns player ids in the order they were seated.
func (s *State) SeatOrder() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Hands returns every player's hand in seat order.
func (s *State) Hands() []*cards.Hand {
	out := make([]*cards.Hand, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.Players[id].Hand)
	}
	return out
}

// AlivePlayers returns the alive player ids in seat order.
func (s *State) AlivePlayers() []string {
	out := make([]string, 0, len(s.order))
	for _, id := range s.order {
		if s.Players[id].IsAlive {
			out = append(out, id)
		}
	}
	return out
}

// Eliminate removes a player from the ring. Predecessors are pointed at the
// eliminated player's successor and the current pointer moves off them.
func (s *State) Eliminate(id string) bool {
	p, ok := s.Players[id]
	if !ok || !p.IsAlive {
		return false
	}
	p.IsAlive = false

	next := p.NextPlayerID
	for _, other := range s.Players {
		if other.IsAlive && other.NextPlayerID == id {
			other.NextPlayerID = next
		}
	}
	if s.CurrentPlayerID == id {
		s.CurrentPlayerID = next
	}
	return true
}

// AdvanceTurn consumes one owed draw-turn, passing the turn when none remain.
func (s *State) AdvanceTurn() {
	if s.Draws > 1 {
		s.Draws--
		return
	}
	s.Draws = 1
	if cur := s.Current(); cur != nil {
		s.CurrentPlayerID = cur.NextPlayerID
	}
}

// PassTurn moves to the current player's successor without consuming owed
// draws. Used by attacks, which hand the whole turn over.
func (s *State) PassTurn() {
	if cur := s.Current(); cur != nil {
		s.CurrentPlayerID = cur.NextPlayerID
	}
}

// Winner reports the last alive player once the ring has collapsed to one.
func (s *State) Winner() (string, bool) {
	cur := s.Current()
	if cur == nil || !cur.IsAlive {
		return "", false
	}
	if cur.NextPlayerID == cur.ID {
		return cur.ID, true
	}
	return "", false
}

// Walk follows successor links from start and returns the visited ids,
// stopping when it returns to start or after visiting every seat.
func (s *State) Walk(start string) []string {
	visited := make([]string, 0, len(s.Players))
	id := start
	for i := 0; i < len(s.Players); i++ {
		p, ok := s.Players[id]
		if !ok {
			break
		}
		visited = append(visited, id)
		id = p.NextPlayerID
		if id == start {
			break
		}
	}
	return visited
}

// CheckRing verifies that the successor links form exactly one cycle over
// the alive players and that the current player is alive.
func (s *State) CheckRing() error {
	alive := s.AlivePlayers()
	if len(alive) == 0 {
		return fmt.Errorf("%w: no alive players", ErrRingCorrupted)
	}
	cur := s.Current()
	if cur == nil || !cur.IsAlive {
		return fmt.Errorf("%w: current player %q is not alive", ErrRingCorrupted, s.CurrentPlayerID)
	}

	walk := s.Walk(s.CurrentPlayerID)
	if len(walk) != len(alive) {
		return fmt.Errorf("%w: ring visits %d of %d alive players", ErrRingCorrupted, len(walk), len(alive))
	}
	seen := make(map[string]bool, len(walk))
	for _, id := range walk {
		if seen[id] || !s.Players[id].IsAlive {
			return fmt.Errorf("%w: bad ring member %q", ErrRingCorrupted, id)
		}
		seen[id] = true
	}
	if last := s.Players[walk[len(walk)-1]]; last.NextPlayerID != s.CurrentPlayerID {
		return fmt.Errorf("%w: ring does not close", ErrRingCorrupted)
	}
	return nil
}

// CardTotal counts every card in hands and the draw pile.
func (s *State) CardTotal() int {
	n := s.Deck.Len()
	for _, p := range s.Players {
		n += p.Hand.Len()
	}
	return n
}

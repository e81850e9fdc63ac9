package game

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
)

// PlayerSnapshot is a copy of one seat at a point in time.
type PlayerSnapshot struct {
	ID           string
	Username     string
	Hand         []cards.Card
	IsAlive      bool
	IsBot        bool
	NextPlayerID string
}

// HandSnapshot is a deep copy of a hand of the game, used for replays.
type HandSnapshot struct {
	GameID          string
	Phase           Phase
	CurrentPlayerID string
	Draws           int
	DrawPile        []cards.Card
	Stack           []string
	Players         map[string]PlayerSnapshot
	SeatOrder       []string
	Pass            int
	Timestamp       time.Time
}

// Snapshot copies the current state of the hand.
func (g *Game) Snapshot() *HandSnapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snapshotLocked()
}

func (g *Game) snapshotLocked() *HandSnapshot {
	snap := &HandSnapshot{
		GameID:          g.ID,
		Phase:           g.phase,
		CurrentPlayerID: g.state.CurrentPlayerID,
		Draws:           g.state.Draws,
		DrawPile:        g.state.Deck.Cards(),
		Players:         make(map[string]PlayerSnapshot, len(g.state.Players)),
		SeatOrder:       g.state.SeatOrder(),
		Pass:            g.passes,
		Timestamp:       time.Now(),
	}
	for _, item := range g.stack.List() {
		snap.Stack = append(snap.Stack, item.PlayerID+":"+item.Card.ID())
	}
	for id, p := range g.state.Players {
		snap.Players[id] = PlayerSnapshot{
			ID:           p.ID,
			Username:     p.Username,
			Hand:         p.Hand.Cards(),
			IsAlive:      p.IsAlive,
			IsBot:        p.IsBot,
			NextPlayerID: p.NextPlayerID,
		}
	}
	return snap
}

// CardCount counts every card in hands and the draw pile.
func (s *HandSnapshot) CardCount() int {
	n := len(s.DrawPile)
	for _, p := range s.Players {
		n += len(p.Hand)
	}
	return n
}

// SnapshotChecksum identifies a snapshot's content independent of map order
// and timestamps.
type SnapshotChecksum struct {
	Hash    string
	Version int
}

// ComputeChecksum hashes a canonical rendering of the snapshot.
func (s *HandSnapshot) ComputeChecksum() (*SnapshotChecksum, error) {
	hash := sha256.New()
	if _, err := hash.Write([]byte(s.canonical())); err != nil {
		return nil, fmt.Errorf("failed to compute hash: %w", err)
	}
	return &SnapshotChecksum{
		Hash:    hex.EncodeToString(hash.Sum(nil)),
		Version: 1,
	}, nil
}

func (s *HandSnapshot) canonical() string {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "GAME:%s|%s|%s|%d|%d\n", s.GameID, s.Phase, s.CurrentPlayerID, s.Draws, s.Pass)

	ids := make([]string, 0, len(s.Players))
	for id := range s.Players {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		p := s.Players[id]
		fmt.Fprintf(&buf, "PLAYER:%s|%s|%t|%s\n", id, p.Username, p.IsAlive, p.NextPlayerID)
		hand := make([]string, len(p.Hand))
		for i, c := range p.Hand {
			hand[i] = c.ID()
		}
		sort.Strings(hand)
		buf.WriteString("  HAND:" + strings.Join(hand, ",") + "\n")
	}

	// Pile and stack order is significant.
	pile := make([]string, len(s.DrawPile))
	for i, c := range s.DrawPile {
		pile[i] = c.ID()
	}
	buf.WriteString("PILE:" + strings.Join(pile, ",") + "\n")
	buf.WriteString("STACK:" + strings.Join(s.Stack, ",") + "\n")
	buf.WriteString("SEATS:" + strings.Join(s.SeatOrder, ",") + "\n")

	return buf.String()
}

package game

import (
	"slices"
	"sync"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"go.uber.org/zap"
)

// GameNotification mirrors one outbound message for observers such as the
// action log. PlayerID is empty for broadcasts.
type GameNotification struct {
	Seq       uint64
	GameID    string
	PlayerID  string
	Timestamp time.Time
	Message   protocol.Message
}

// NotificationHandler receives every message a game sends.
type NotificationHandler func(notification GameNotification)

// notifier feeds a handler from one goroutine, in the order notifications
// were queued. Queueing never blocks, so a slow handler cannot stall the
// game lock.
type notifier struct {
	handler NotificationHandler

	mu     sync.Mutex
	queue  []GameNotification
	closed bool

	wake chan struct{}
	done chan struct{}
}

func newNotifier(handler NotificationHandler) *notifier {
	n := &notifier{
		handler: handler,
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go n.run()
	return n
}

// push queues a notification. It is a no-op once the notifier is closed.
func (n *notifier) push(gn GameNotification) {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.queue = append(n.queue, gn)
	n.mu.Unlock()
	n.signal()
}

// close lets the queue drain and then stops the delivery goroutine.
func (n *notifier) close() {
	n.mu.Lock()
	n.closed = true
	n.mu.Unlock()
	n.signal()
}

func (n *notifier) signal() {
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *notifier) run() {
	defer close(n.done)
	for range n.wake {
		n.mu.Lock()
		batch := n.queue
		n.queue = nil
		closed := n.closed
		n.mu.Unlock()

		for _, gn := range batch {
			n.handler(gn)
		}
		if closed {
			return
		}
	}
}

// emitNotification queues a copy of an outbound message for the handler.
func (g *Game) emitNotification(playerID string, msg protocol.Message) {
	if g.notifier == nil {
		return
	}
	g.notifySeq++
	g.notifier.push(GameNotification{
		Seq:       g.notifySeq,
		GameID:    g.ID,
		PlayerID:  playerID,
		Timestamp: time.Now(),
		Message:   msg,
	})
}

// send delivers a message to one player without blocking the game.
func (g *Game) send(playerID string, msgType string, payload any) {
	msg := protocol.New("", msgType, payload)
	g.emitNotification(playerID, msg)

	out, ok := g.conns[playerID]
	if !ok {
		return
	}
	select {
	case out <- msg:
	default:
		if g.logger != nil {
			g.logger.Warn("player outbox full, dropping message",
				zap.String("game_id", g.ID),
				zap.String("player_id", playerID),
				zap.String("type", msgType),
			)
		}
	}
}

// broadcast sends a message to every connected player except those listed.
func (g *Game) broadcast(msgType string, payload any, except ...string) {
	msg := protocol.New("", msgType, payload)
	g.emitNotification("", msg)

	for id, out := range g.conns {
		if slices.Contains(except, id) {
			continue
		}
		select {
		case out <- msg:
		default:
			if g.logger != nil {
				g.logger.Warn("player outbox full, dropping message",
					zap.String("game_id", g.ID),
					zap.String("player_id", id),
					zap.String("type", msgType),
				)
			}
		}
	}
}

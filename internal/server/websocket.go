package server

import (
	"errors"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/config"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"github.com/Hester-Clapp/exploding-ponies/internal/room"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler receives a connected player's messages.
type Handler interface {
	Handle(msg protocol.Message) error
	Leave(playerID string)
}

var _ Handler = (*room.Room)(nil)

// Client is one player's WebSocket. The room and game write to Send; the
// write pump drains it onto the socket.
type Client struct {
	PlayerID string
	Send     chan protocol.Message

	conn   *websocket.Conn
	cfg    config.WebSocketConfig
	logger *zap.Logger
	done   chan struct{}
}

func newClient(conn *websocket.Conn, playerID string, cfg config.WebSocketConfig, logger *zap.Logger) *Client {
	size := cfg.SendBuffer
	if size <= 0 {
		size = 256
	}
	return &Client{
		PlayerID: playerID,
		Send:     make(chan protocol.Message, size),
		conn:     conn,
		cfg:      cfg,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (c *Client) pongWait() time.Duration {
	if c.cfg.PongTimeout > 0 {
		return c.cfg.PongTimeout
	}
	return 60 * time.Second
}

func (c *Client) writeWait() time.Duration {
	if c.cfg.WriteTimeout > 0 {
		return c.cfg.WriteTimeout
	}
	return 10 * time.Second
}

// readPump forwards inbound messages to h until the socket closes, then
// tells h the player left. The sender is always the authenticated player.
func (c *Client) readPump(h Handler) {
	defer func() {
		close(c.done)
		h.Leave(c.PlayerID)
		c.conn.Close()
	}()

	if c.cfg.MaxMessageSize > 0 {
		c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	}
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) && c.logger != nil {
				c.logger.Debug("websocket read error", zap.String("player_id", c.PlayerID), zap.Error(err))
			}
			return
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			if c.logger != nil {
				c.logger.Debug("unreadable message", zap.String("player_id", c.PlayerID), zap.Error(err))
			}
			continue
		}
		msg.Sender = c.PlayerID

		if err := h.Handle(msg); err != nil && c.logger != nil {
			c.logger.Debug("message rejected",
				zap.String("player_id", c.PlayerID),
				zap.String("type", msg.Type),
				zap.Error(err),
			)
		}
	}
}

// writePump writes queued messages and keeps the connection alive with
// pings until the read side stops.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.pongWait() * 9 / 10)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return

		case msg := <-c.Send:
			data, err := msg.Encode()
			if err != nil {
				if c.logger != nil {
					c.logger.Warn("failed to encode message", zap.String("player_id", c.PlayerID), zap.String("type", msg.Type), zap.Error(err))
				}
				continue
			}
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait()))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// reject closes a socket that could not join, giving the reason.
func reject(conn *websocket.Conn, reason error, writeWait time.Duration) {
	code := websocket.ClosePolicyViolation
	if errors.Is(reason, room.ErrRoomFull) || errors.Is(reason, room.ErrInProgress) {
		code = websocket.CloseTryAgainLater
	}
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason.Error()), time.Now().Add(writeWait))
	conn.Close()
}

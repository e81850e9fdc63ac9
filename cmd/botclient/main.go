// Command botclient seats a bot in a room on a running server, playing over
// the same WebSocket a browser would use.
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/bot"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	ServerURL  string
	RoomID     string
	Username   string
	Hands      int
	AutoStart  bool
	DelayScale float64
)

var Version = "dev"

var errSendBufferFull = errors.New("send buffer full")

func main() {
	app := &cli.App{
		Name:  "botclient",
		Usage: "join a room and let a bot play the seat",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "server",
				Aliases:     []string{"s"},
				Value:       "ws://localhost:3000",
				Destination: &ServerURL,
			}, &cli.StringFlag{
				Name:        "room",
				Aliases:     []string{"r"},
				Required:    true,
				Destination: &RoomID,
			}, &cli.StringFlag{
				Name:        "username",
				Aliases:     []string{"u"},
				Value:       "Derpy",
				Destination: &Username,
			}, &cli.IntFlag{
				Name:        "hands",
				Usage:       "leave after this many hands",
				Value:       1,
				Destination: &Hands,
			}, &cli.BoolFlag{
				Name:        "start",
				Usage:       "start hands whenever this seat is host",
				Destination: &AutoStart,
			}, &cli.Float64Flag{
				Name:        "delay-scale",
				Value:       1,
				Destination: &DelayScale,
			},
		},
		Version: Version,
	}

	app.Action = func(c *cli.Context) error {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, logger)
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// client is the bot's side of the socket. It satisfies bot.Sink.
type client struct {
	conn *websocket.Conn
	send chan protocol.Message
}

func (c *client) Handle(msg protocol.Message) error {
	select {
	case c.send <- msg:
		return nil
	default:
		return errSendBufferFull
	}
}

func (c *client) readPump(out chan<- protocol.Message, logger *zap.Logger) {
	defer close(out)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseTryAgainLater, websocket.ClosePolicyViolation) {
				logger.Warn("server refused the seat", zap.Error(err))
			}
			return
		}

		msg, err := protocol.Parse(data)
		if err != nil {
			logger.Warn("unreadable message", zap.Error(err))
			continue
		}
		out <- msg
	}
}

func (c *client) writePump(ctx context.Context, logger *zap.Logger) {
	defer c.conn.Close()

	for {
		select {
		case <-ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			return
		case msg := <-c.send:
			data, err := msg.Encode()
			if err != nil {
				logger.Warn("failed to encode message", zap.String("type", msg.Type), zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		}
	}
}

func run(ctx context.Context, logger *zap.Logger) error {
	playerID := uuid.NewString()
	u, err := url.Parse(ServerURL)
	if err != nil {
		return fmt.Errorf("invalid server url: %w", err)
	}
	u = u.JoinPath("rooms", RoomID, "join")
	u.RawQuery = url.Values{"uuid": {playerID}, "username": {Username}}.Encode()

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to join room %s: %w", RoomID, err)
	}
	logger.Info("joined room", zap.String("room_id", RoomID), zap.String("player_id", playerID))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c := &client{conn: conn, send: make(chan protocol.Message, 256)}
	incoming := make(chan protocol.Message, 256)
	go c.readPump(incoming, logger)
	go c.writePump(ctx, logger)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	startHand := func() {
		c.Handle(protocol.New(playerID, protocol.MsgStart, nil))
	}

	var (
		current *bot.Bot
		stopBot context.CancelFunc = func() {}
		played  int
		isHost  bool
	)
	defer func() { stopBot() }()

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-incoming:
			if !ok {
				return errors.New("connection closed by server")
			}

			switch msg.Type {
			case protocol.MsgPromote:
				isHost = true
				if AutoStart {
					startHand()
				}

			case protocol.MsgStart:
				stopBot()
				current = bot.New(playerID, Username, c, bot.Options{
					DelayScale: DelayScale,
					Rand:       rand.New(rand.NewSource(rng.Int63())),
				}, logger.Named("bot"))
				var botCtx context.Context
				botCtx, stopBot = context.WithCancel(ctx)
				go current.Run(botCtx)
				played++
				logger.Info("hand started", zap.Int("hand", played))
				continue
			}

			if current == nil {
				continue
			}
			select {
			case current.Inbox() <- msg:
			default:
				logger.Warn("bot inbox full, dropping message", zap.String("type", msg.Type))
			}

			if msg.Type != protocol.MsgWin {
				continue
			}
			var win protocol.Win
			if err := msg.Decode(&win); err == nil {
				logger.Info("hand over", zap.String("winner", win.UUID), zap.Bool("won", win.UUID == playerID))
			}
			current = nil
			if played >= Hands {
				return nil
			}
			if isHost && AutoStart {
				// The room accepts a new start once it has recorded the result.
				time.AfterFunc(time.Second, startHand)
			}
		}
	}
}

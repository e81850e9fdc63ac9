package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/bot"
	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MinCapacity = 1
	MaxCapacity = 5
)

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomFull          = errors.New("room is full")
	ErrAlreadyJoined     = errors.New("player already joined")
	ErrNotMember         = errors.New("player is not in the room")
	ErrInProgress        = errors.New("hand already in progress")
	ErrNotEnoughPlayers  = errors.New("not enough players")
	ErrNotHost           = errors.New("only the host can do that")
	ErrNoHandInProgress  = errors.New("no hand in progress")
	ErrMissingIdentifier = errors.New("missing player id")
)

// State is where a room is in its lifecycle.
type State int

const (
	StateWaiting State = iota
	StatePlaying
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "WAITING"
	case StatePlaying:
		return "PLAYING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// Settings configure the table a room deals.
type Settings struct {
	// Capacity counts every seat, bots included.
	Capacity int
	Bots     int
	NumDecks int
	Cooldown time.Duration
}

// Normalize clamps the settings into their legal ranges. At least one seat
// is always left for a human.
func (s Settings) Normalize() Settings {
	s.Capacity = min(max(s.Capacity, MinCapacity), MaxCapacity)
	s.Bots = min(max(s.Bots, 0), s.Capacity-1)
	if s.NumDecks < 1 {
		s.NumDecks = 1
	}
	if s.Cooldown <= 0 {
		s.Cooldown = game.DefaultCooldown
	}
	return s
}

// HumanSeats is how many humans may join.
func (s Settings) HumanSeats() int {
	return s.Capacity - s.Bots
}

func (s Settings) wire() protocol.RoomSettings {
	return protocol.RoomSettings{
		Capacity: s.Capacity,
		Bots:     s.Bots,
		Decks:    s.NumDecks,
		Cooldown: int(s.Cooldown / time.Millisecond),
	}
}

// Member is a human connected to a room.
type Member struct {
	ID       string
	Username string
	out      chan<- protocol.Message
}

// Summary is the public view of a room.
type Summary struct {
	ID         string        `json:"roomId"`
	State      string        `json:"state"`
	Capacity   int           `json:"capacity"`
	NumPlayers int           `json:"numPlayers"`
	NumBots    int           `json:"numBots"`
	Decks      int           `json:"decks"`
	Cooldown   time.Duration `json:"cooldown"`
	GameID     string        `json:"gameId,omitempty"`
	Hands      int           `json:"hands"`
	CreateTime time.Time     `json:"createTime"`
}

// Room gathers players before a hand and carries their messages to the game
// once it starts.
type Room struct {
	ID         string
	CreateTime time.Time

	registry *Registry
	logger   *zap.Logger

	mu       sync.Mutex
	state    State
	settings Settings
	members  []*Member // join order; the first is the host
	game     *game.Game
	stopBots context.CancelFunc
	hands    int
}

func newRoom(r *Registry, settings Settings) *Room {
	return &Room{
		ID:         uuid.New().String(),
		CreateTime: time.Now(),
		registry:   r,
		logger:     r.logger,
		state:      StateWaiting,
		settings:   settings.Normalize(),
	}
}

// Join adds a human. out receives both lobby and game messages.
func (rm *Room) Join(id, username string, out chan<- protocol.Message) error {
	if id == "" {
		return ErrMissingIdentifier
	}

	rm.mu.Lock()
	defer rm.mu.Unlock()

	switch {
	case rm.state == StateClosed:
		return ErrRoomNotFound
	case rm.state == StatePlaying:
		return ErrInProgress
	case rm.memberLocked(id) != nil:
		return ErrAlreadyJoined
	case len(rm.members) >= rm.settings.HumanSeats():
		return ErrRoomFull
	}

	m := &Member{ID: id, Username: username, out: out}
	rm.members = append(rm.members, m)

	rm.sendLocked(m, protocol.MsgInit, protocol.RoomInit{
		RoomID:   rm.ID,
		Host:     rm.members[0].ID,
		Players:  rm.playersLocked(),
		Settings: rm.settings.wire(),
	})
	rm.publishLocked(protocol.MsgJoin, protocol.PlayerInfo{UUID: id, Username: username, IsAlive: true}, id)
	if len(rm.members) == 1 {
		rm.sendLocked(m, protocol.MsgPromote, rm.settings.wire())
	}

	if rm.logger != nil {
		rm.logger.Info("player joined room",
			zap.String("room_id", rm.ID),
			zap.String("player_id", id),
			zap.String("username", username),
		)
	}
	return nil
}

// Leave removes a human. During a hand the departure counts as an
// elimination. An empty room closes itself.
func (rm *Room) Leave(id string) {
	rm.mu.Lock()

	idx := -1
	for i, m := range rm.members {
		if m.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		rm.mu.Unlock()
		return
	}
	wasHost := idx == 0
	rm.members = append(rm.members[:idx], rm.members[idx+1:]...)
	g := rm.game
	empty := len(rm.members) == 0

	rm.publishLocked(protocol.MsgLeave, protocol.PlayerInfo{UUID: id})
	if wasHost && !empty {
		rm.sendLocked(rm.members[0], protocol.MsgPromote, rm.settings.wire())
	}
	rm.mu.Unlock()

	if rm.logger != nil {
		rm.logger.Info("player left room", zap.String("room_id", rm.ID), zap.String("player_id", id))
	}

	if g != nil {
		g.Leave(id)
	}
	if empty {
		rm.registry.Remove(rm.ID)
	}
}

// Edit replaces the room's settings between hands.
func (rm *Room) Edit(s Settings) (Settings, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	switch rm.state {
	case StateClosed:
		return Settings{}, ErrRoomNotFound
	case StatePlaying:
		return Settings{}, ErrInProgress
	}
	s = s.Normalize()
	if len(rm.members) > s.HumanSeats() {
		return Settings{}, fmt.Errorf("%w: %d players already joined", ErrRoomFull, len(rm.members))
	}
	rm.settings = s
	rm.publishLocked(protocol.MsgEdit, s.wire())
	return s, nil
}

// Settings returns the current settings.
func (rm *Room) Settings() Settings {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.settings
}

// State returns the room's lifecycle state.
func (rm *Room) State() State {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.state
}

// Host returns the id of the member allowed to start and edit.
func (rm *Room) Host() string {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	if len(rm.members) == 0 {
		return ""
	}
	return rm.members[0].ID
}

// Game returns the hand in progress, if any.
func (rm *Room) Game() (*game.Game, bool) {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return rm.game, rm.game != nil
}

// Start seats the members and bots in a new hand and starts the bots.
// Humans are dealt in once every seat has sent ready.
func (rm *Room) Start() (*game.Game, error) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	switch rm.state {
	case StateClosed:
		return nil, ErrRoomNotFound
	case StatePlaying:
		return nil, ErrInProgress
	}
	if len(rm.members)+rm.settings.Bots < 2 {
		return nil, ErrNotEnoughPlayers
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	seats := make([]game.Seat, 0, len(rm.members)+rm.settings.Bots)
	for _, m := range rm.members {
		seats = append(seats, game.Seat{ID: m.ID, Username: m.Username})
	}
	botSeats := make([]game.Seat, 0, rm.settings.Bots)
	for i := 0; i < rm.settings.Bots; i++ {
		s := game.Seat{ID: uuid.New().String(), Username: botName(rng, i), Bot: true}
		botSeats = append(botSeats, s)
	}
	seats = append(seats, botSeats...)
	rng.Shuffle(len(seats), func(i, j int) { seats[i], seats[j] = seats[j], seats[i] })

	opts := rm.registry.opts
	g, err := rm.registry.games.CreateGame(seats, game.Options{
		Cooldown:     rm.settings.Cooldown,
		NumDecks:     rm.settings.NumDecks,
		InputTimeout: opts.InputTimeout,
		FuseTimeout:  opts.FuseTimeout,
		Rand:         rand.New(rand.NewSource(rng.Int63())),
		OnFinish:     rm.finished,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	for _, m := range rm.members {
		if err := g.Attach(m.ID, m.out); err != nil {
			rm.registry.games.Remove(g.ID)
			return nil, fmt.Errorf("failed to attach %s: %w", m.ID, err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	for i, s := range botSeats {
		b := bot.New(s.ID, s.Username, g, bot.Options{
			DelayScale: opts.BotDelayScale,
			Rand:       rand.New(rand.NewSource(rng.Int63() + int64(i))),
		}, rm.logger)
		if err := g.Attach(s.ID, b.Inbox()); err != nil {
			cancel()
			rm.registry.games.Remove(g.ID)
			return nil, fmt.Errorf("failed to attach bot %s: %w", s.ID, err)
		}
		go func() {
			if err := b.Run(ctx); err != nil && !errors.Is(err, context.Canceled) && rm.logger != nil {
				rm.logger.Warn("bot stopped", zap.String("room_id", rm.ID), zap.String("player_id", b.ID), zap.Error(err))
			}
		}()
	}

	rm.game = g
	rm.stopBots = cancel
	rm.state = StatePlaying
	rm.hands++

	rm.publishLocked(protocol.MsgStart, protocol.Started{
		GameID:   g.ID,
		Cooldown: int(rm.settings.Cooldown / time.Millisecond),
	})

	if rm.logger != nil {
		rm.logger.Info("hand started",
			zap.String("room_id", rm.ID),
			zap.String("game_id", g.ID),
			zap.Int("humans", len(rm.members)),
			zap.Int("bots", len(botSeats)),
		)
	}
	return g, nil
}

// Handle routes a message from a member: start requests to the room,
// everything else to the hand in progress.
func (rm *Room) Handle(msg protocol.Message) error {
	if msg.Type == protocol.MsgStart {
		if rm.Host() != msg.Sender {
			return ErrNotHost
		}
		_, err := rm.Start()
		return err
	}

	rm.mu.Lock()
	if rm.memberLocked(msg.Sender) == nil {
		rm.mu.Unlock()
		return ErrNotMember
	}
	g := rm.game
	rm.mu.Unlock()

	if g == nil {
		return ErrNoHandInProgress
	}
	return g.Handle(msg)
}

// Summary returns the public view of the room.
func (rm *Room) Summary() Summary {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	s := Summary{
		ID:         rm.ID,
		State:      rm.state.String(),
		Capacity:   rm.settings.Capacity,
		NumPlayers: len(rm.members),
		NumBots:    rm.settings.Bots,
		Decks:      rm.settings.NumDecks,
		Cooldown:   rm.settings.Cooldown,
		Hands:      rm.hands,
		CreateTime: rm.CreateTime,
	}
	if rm.game != nil {
		s.GameID = rm.game.ID
	}
	return s
}

// finished returns the room to the lobby once its hand ends.
func (rm *Room) finished(res game.Result) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	if rm.game == nil || rm.game.ID != res.GameID {
		return
	}
	if rm.stopBots != nil {
		rm.stopBots()
		rm.stopBots = nil
	}
	rm.game = nil
	if rm.state == StatePlaying {
		rm.state = StateWaiting
	}
}

// close ends any hand in progress and marks the room closed.
func (rm *Room) close() {
	rm.mu.Lock()
	g := rm.game
	rm.game = nil
	if rm.stopBots != nil {
		rm.stopBots()
		rm.stopBots = nil
	}
	rm.state = StateClosed
	rm.members = nil
	rm.mu.Unlock()

	if g != nil {
		rm.registry.games.Remove(g.ID)
	}
}

func (rm *Room) memberLocked(id string) *Member {
	for _, m := range rm.members {
		if m.ID == id {
			return m
		}
	}
	return nil
}

func (rm *Room) playersLocked() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(rm.members))
	for _, m := range rm.members {
		out = append(out, protocol.PlayerInfo{UUID: m.ID, Username: m.Username, IsAlive: true})
	}
	return out
}

func (rm *Room) sendLocked(m *Member, msgType string, payload any) {
	select {
	case m.out <- protocol.New("", msgType, payload):
	default:
		if rm.logger != nil {
			rm.logger.Warn("member outbox full, dropping message",
				zap.String("room_id", rm.ID),
				zap.String("player_id", m.ID),
				zap.String("type", msgType),
			)
		}
	}
}

func (rm *Room) publishLocked(msgType string, payload any, except ...string) {
	for _, m := range rm.members {
		if !slices.Contains(except, m.ID) {
			rm.sendLocked(m, msgType, payload)
		}
	}
}

var botNames = []string{
	"Applejack", "Rarity", "Fluttershy", "Pinkie Pie", "Rainbow Dash",
	"Twilight", "Spike", "Big Mac", "Derpy", "Trixie",
}

func botName(rng *rand.Rand, i int) string {
	return fmt.Sprintf("%s (bot %d)", botNames[rng.Intn(len(botNames))], i+1)
}

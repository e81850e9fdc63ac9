package game

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/actions"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/deck"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/rules"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/state"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"go.uber.org/zap"
)

// DefaultCooldown is the interrupt window used when none is configured.
const DefaultCooldown = 3 * time.Second

// Phase is where a hand of the game currently is.
type Phase int

const (
	PhaseWaiting Phase = iota
	PhaseAwaitingPlay
	PhaseInterrupt
	PhaseResolving
	PhaseOver
)

var phaseNames = map[Phase]string{
	PhaseWaiting:      "WAITING",
	PhaseAwaitingPlay: "AWAITING_PLAY",
	PhaseInterrupt:    "INTERRUPT_WINDOW",
	PhaseResolving:    "RESOLVING",
	PhaseOver:         "GAME_OVER",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

// Errors returned for actions the game refuses. None of them are fatal;
// the caller resynchronizes the player and carries on.
var (
	ErrGameNotStarted  = errors.New("game not started")
	ErrAlreadyStarted  = errors.New("game already started")
	ErrGameOver        = errors.New("game is over")
	ErrUnknownPlayer   = errors.New("player not seated")
	ErrPlayerOut       = errors.New("player is eliminated")
	ErrNotYourTurn     = errors.New("not your turn")
	ErrWindowOpen      = errors.New("interrupt window is open")
	ErrResolving       = errors.New("resolution in progress")
	ErrMustResolveBomb = errors.New("exploding card must be played or defused first")
	ErrCardNotHeld     = errors.New("card not held")
	ErrNotPlayable     = errors.New("card not playable now")
	ErrBadInput        = errors.New("invalid input")
	ErrUnknownMessage  = errors.New("unknown message type")
	ErrCardsLost       = errors.New("cards out of balance")
)

// Seat describes one player taking part in a hand.
type Seat struct {
	ID       string
	Username string
	Bot      bool
}

// Options tune a single game.
type Options struct {
	// Cooldown is the interrupt window, restarted by every play.
	Cooldown time.Duration
	NumDecks int
	// InputTimeout, when positive, answers outstanding input requests at
	// random once it elapses. Zero waits forever.
	InputTimeout time.Duration
	// FuseTimeout, when positive, plays a drawn exploding card on the
	// holder's behalf if they neither play it nor defuse in time.
	FuseTimeout time.Duration
	Rand        *rand.Rand
	Notify      NotificationHandler
	Recorder    *ReplayRecorder
	OnFinish    func(Result)
}

// Result summarizes a finished hand.
type Result struct {
	GameID           string
	WinnerID         string
	WinnerName       string
	Players          []Seat
	EliminationOrder []string
	Passes           int
	StartedAt        time.Time
	FinishedAt       time.Time
	Aborted          bool
	Reason           string
}

// Game orchestrates one hand: it owns the state, the card stack, the
// interrupt timer and the pending inputs, and is the only thing that talks
// to player channels. Every exported method is safe for concurrent use.
type Game struct {
	ID string

	logger *zap.Logger
	opts   Options
	rng    *rand.Rand
	seats  []Seat

	notifier *notifier

	mu        sync.Mutex
	notifySeq uint64
	phase     Phase
	state     *state.State
	stack     *rules.CardStack
	inputs    *inputRegistry
	pending   []*actions.Action
	void      map[*actions.Action]bool

	conns map[string]chan<- protocol.Message
	ready map[string]bool
	left  map[string]bool

	lastDrawn    map[string]cards.Type
	originPlayer string

	// circulating is how many cards hands and the draw pile should hold.
	circulating int

	windowGen   uint64
	windowTimer *time.Timer
	inputGen    uint64
	inputTimer  *time.Timer
	fuseGen     uint64
	fuseTimer   *time.Timer

	passes     int
	eliminated []string
	startedAt  time.Time
	winner     string
}

// NewGame seats the players for a new hand. Dealing happens once every seat
// is ready or Start is called.
func NewGame(id string, seats []Seat, opts Options, logger *zap.Logger) (*Game, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("game id is required")
	}
	if len(seats) < 2 {
		return nil, fmt.Errorf("at least 2 players required")
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = DefaultCooldown
	}
	if opts.NumDecks < 1 {
		opts.NumDecks = 1
	}
	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	st := state.New(deck.New(opts.NumDecks, rng))
	for _, seat := range seats {
		p, err := st.AddPlayer(seat.ID, seat.Username)
		if err != nil {
			return nil, fmt.Errorf("failed to seat player: %w", err)
		}
		p.IsBot = seat.Bot
	}

	g := &Game{
		ID:        id,
		logger:    logger,
		opts:      opts,
		rng:       rng,
		seats:     append([]Seat(nil), seats...),
		phase:     PhaseWaiting,
		state:     st,
		stack:     rules.NewCardStack(),
		inputs:    newInputRegistry(),
		void:      make(map[*actions.Action]bool),
		conns:     make(map[string]chan<- protocol.Message),
		ready:     make(map[string]bool),
		left:      make(map[string]bool),
		lastDrawn: make(map[string]cards.Type),
	}
	if opts.Notify != nil {
		g.notifier = newNotifier(opts.Notify)
	}
	return g, nil
}

// Attach connects a player's outbound channel. Messages are dropped, not
// queued, if the channel is full.
func (g *Game) Attach(playerID string, out chan<- protocol.Message) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.state.Player(playerID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	g.conns[playerID] = out
	return nil
}

// Handle routes an inbound message. The sender must already be verified by
// the transport.
func (g *Game) Handle(msg protocol.Message) error {
	var err error
	switch msg.Type {
	case protocol.MsgReady:
		err = g.Ready(msg.Sender)
	case protocol.MsgDrawCard:
		err = g.DrawCard(msg.Sender)
	case protocol.MsgPlayCard:
		var p protocol.PlayCard
		if err = msg.Decode(&p); err != nil {
			err = fmt.Errorf("%w: %v", ErrBadInput, err)
			break
		}
		err = g.PlayCard(msg.Sender, p.CardType)
	case protocol.MsgProvideInput:
		var p protocol.ProvideInput
		if err = msg.Decode(&p); err != nil {
			err = fmt.Errorf("%w: %v", ErrBadInput, err)
			break
		}
		err = g.ProvideInput(msg.Sender, p)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownMessage, msg.Type)
	}

	if err != nil {
		if g.logger != nil {
			g.logger.Debug("ignored player message",
				zap.String("game_id", g.ID),
				zap.String("player_id", msg.Sender),
				zap.String("type", msg.Type),
				zap.Error(err),
			)
		}
		g.Resync(msg.Sender)
	}
	return err
}

// Ready marks a seat ready. The hand is dealt when every seat is ready.
func (g *Game) Ready(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.state.Player(playerID); !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	g.ready[playerID] = true
	if g.phase != PhaseWaiting {
		return nil
	}
	for _, id := range g.state.AlivePlayers() {
		if !g.ready[id] {
			return nil
		}
	}
	return g.startLocked()
}

// Start deals immediately, without waiting for every seat to be ready.
func (g *Game) Start() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.startLocked()
}

func (g *Game) startLocked() error {
	if g.phase != PhaseWaiting {
		return ErrAlreadyStarted
	}

	alive := g.state.AlivePlayers()
	hands := make([]*cards.Hand, 0, len(alive))
	for _, id := range alive {
		hands = append(hands, g.state.Players[id].Hand)
	}
	if err := g.state.Deck.Deal(hands); err != nil {
		return fmt.Errorf("failed to deal: %w", err)
	}
	g.circulating = g.state.CardTotal()

	g.phase = PhaseAwaitingPlay
	g.startedAt = time.Now()
	if g.opts.Recorder != nil {
		g.opts.Recorder.StartRecording(g.ID)
	}

	players := g.publicPlayersLocked()
	for _, id := range g.state.SeatOrder() {
		g.send(id, protocol.MsgDeal, protocol.Deal{
			Hand:           g.state.Players[id].Hand.Cards(),
			DrawPileLength: g.state.Deck.Len(),
			Players:        players,
			Decks:          g.state.Deck.NumDecks(),
		})
	}
	g.announceTurnLocked()
	g.recordLocked()

	if g.logger != nil {
		g.logger.Info("hand dealt",
			zap.String("game_id", g.ID),
			zap.Int("players", len(alive)),
			zap.Int("num_decks", g.opts.NumDecks),
			zap.Int("draw_pile", g.state.Deck.Len()),
		)
	}

	if winner, ok := g.state.Winner(); ok {
		g.finishLocked(winner)
	}
	return nil
}

// DrawCard draws for the current player. An exploding card stays in hand
// and holds the turn until it is defused or explodes.
func (g *Game) DrawCard(playerID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, err := g.activePlayerLocked(playerID)
	if err != nil {
		return err
	}
	switch g.phase {
	case PhaseInterrupt:
		return ErrWindowOpen
	case PhaseResolving:
		return ErrResolving
	}
	if g.state.CurrentPlayerID != playerID {
		return ErrNotYourTurn
	}
	if g.lastDrawn[playerID] == cards.TypeExploding && p.Hand.Has(cards.TypeExploding, 1) {
		return ErrMustResolveBomb
	}

	card, ok := g.state.Deck.Draw()
	if !ok {
		if g.logger != nil {
			g.logger.Warn("draw pile empty", zap.String("game_id", g.ID), zap.String("player_id", playerID))
		}
		return nil
	}
	p.Hand.Add(card)
	g.lastDrawn[playerID] = card.Type

	bomb := card.Type == cards.TypeExploding
	for _, id := range g.state.SeatOrder() {
		drew := protocol.Drew{UUID: playerID, HandSize: p.Hand.Len(), Length: g.state.Deck.Len()}
		if id == playerID || bomb {
			c := card
			drew.Card = &c
		}
		g.send(id, protocol.MsgDrawCard, drew)
	}

	if bomb {
		if _, err := g.inputs.provide(inputKey{Name: actions.InputExploding, PlayerID: playerID}, card); err != nil {
			return err
		}
		g.armFuseLocked(playerID)
		if g.logger != nil {
			g.logger.Info("player drew an exploding card",
				zap.String("game_id", g.ID),
				zap.String("player_id", playerID),
				zap.Bool("has_defuse", p.Hand.Has(cards.TypeDefuse, 1)),
			)
		}
	} else {
		g.state.AdvanceTurn()
		g.announceTurnLocked()
	}
	g.recordLocked()
	return nil
}

// PlayCard moves a held card onto the stack and restarts the interrupt window.
func (g *Game) PlayCard(playerID, cardType string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	t, err := cards.ParseType(cardType)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadInput, err)
	}
	return g.playLocked(playerID, t)
}

func (g *Game) playLocked(playerID string, t cards.Type) error {
	p, err := g.activePlayerLocked(playerID)
	if err != nil {
		return err
	}
	if g.phase == PhaseResolving {
		return ErrResolving
	}
	if !p.Hand.Has(t, 1) {
		return fmt.Errorf("%w: %s", ErrCardNotHeld, t)
	}
	if !rules.CanPlay(g.viewLocked(playerID), t) {
		return fmt.Errorf("%w: %s", ErrNotPlayable, t)
	}

	card, _ := p.Hand.Take(t)
	g.state.Deck.Discard(card)
	g.stack.Push(rules.StackItem{Card: card, PlayerID: playerID})
	g.circulating--
	if t != cards.TypeNope {
		g.originPlayer = playerID
	}
	if t == cards.TypeExploding || t == cards.TypeDefuse {
		g.stopFuseLocked()
	}

	g.phase = PhaseInterrupt
	g.armWindowLocked()
	g.broadcast(protocol.MsgPlayCard, protocol.Played{Card: card, UUID: playerID, CoolingDown: true})

	if g.logger != nil {
		g.logger.Debug("card played",
			zap.String("game_id", g.ID),
			zap.String("player_id", playerID),
			zap.String("card", card.ID()),
			zap.Int("stack_size", g.stack.Len()),
		)
	}
	return nil
}

// ProvideInput answers, possibly ahead of time, a choice an action needs.
func (g *Game) ProvideInput(playerID string, in protocol.ProvideInput) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, err := g.activePlayerLocked(playerID); err != nil {
		return err
	}
	if in.Target == nil && in.CardType == nil && in.Position == nil {
		return fmt.Errorf("%w: empty answer", ErrBadInput)
	}

	echo := protocol.Provided{UUID: playerID}
	if in.Target != nil {
		target := strings.TrimSpace(*in.Target)
		if err := g.deliverLocked(inputKey{Name: actions.InputTarget, PlayerID: playerID}, target); err != nil {
			return err
		}
		echo.Target = target
	}
	if in.CardType != nil {
		t, err := cards.ParseType(*in.CardType)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrBadInput, err)
		}
		if err := g.deliverLocked(inputKey{Name: actions.InputCardType, PlayerID: playerID}, t); err != nil {
			return err
		}
		echo.CardType = string(t)
	}
	if in.Position != nil {
		if err := g.deliverLocked(inputKey{Name: actions.InputPosition, PlayerID: playerID}, *in.Position); err != nil {
			return err
		}
	}

	if echo.Target != "" || echo.CardType != "" {
		g.broadcast(protocol.MsgProvideInput, echo)
	}
	// A freshly named target gets a full window to answer with a nope.
	if echo.Target != "" && g.phase == PhaseInterrupt {
		g.armWindowLocked()
	}
	if g.phase == PhaseResolving {
		g.pumpLocked()
	}
	return nil
}

// deliverLocked validates an answer and either hands it to the waiting
// action or caches it.
func (g *Game) deliverLocked(key inputKey, value any) error {
	if a, ok := g.inputs.waiting[key]; ok {
		if !g.validInputLocked(a, key.Name, value) {
			return fmt.Errorf("%w: %s=%v", ErrBadInput, key.Name, value)
		}
	} else if key.Name == actions.InputTarget && !g.validTargetLocked(key.PlayerID, value) {
		return fmt.Errorf("%w: %s=%v", ErrBadInput, key.Name, value)
	}
	_, err := g.inputs.provide(key, value)
	return err
}

// Leave treats a departure as an elimination and answers anything the
// departed player still owed so resolution never stalls on them.
func (g *Game) Leave(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	p, ok := g.state.Player(playerID)
	if !ok {
		return
	}
	delete(g.conns, playerID)
	g.left[playerID] = true

	if g.phase == PhaseOver || !p.IsAlive {
		return
	}

	wasCurrent := g.state.CurrentPlayerID == playerID
	g.state.Eliminate(playerID)
	g.eliminated = append(g.eliminated, playerID)
	delete(g.lastDrawn, playerID)
	delete(g.ready, playerID)
	if wasCurrent {
		g.state.Draws = 1
		g.stopFuseLocked()
	}

	if g.logger != nil {
		g.logger.Info("player left the hand",
			zap.String("game_id", g.ID),
			zap.String("player_id", playerID),
			zap.String("phase", g.phase.String()),
		)
	}

	if g.phase == PhaseWaiting {
		for _, id := range g.state.AlivePlayers() {
			if !g.ready[id] {
				return
			}
		}
		if err := g.startLocked(); err != nil && g.logger != nil {
			g.logger.Warn("failed to start after departure", zap.String("game_id", g.ID), zap.Error(err))
		}
		return
	}

	g.broadcast(protocol.MsgEliminate, protocol.Eliminate{UUID: playerID})

	switch g.phase {
	case PhaseResolving:
		for _, key := range g.inputs.waitingOn(playerID) {
			a := g.inputs.waiting[key]
			delete(g.inputs.waiting, key)
			g.answerForLocked(a, key.Name)
		}
		g.pumpLocked()
	default:
		if winner, ok := g.state.Winner(); ok {
			g.finishLocked(winner)
			return
		}
		if g.phase == PhaseAwaitingPlay && wasCurrent {
			g.announceTurnLocked()
		}
	}
}

// Resync re-sends the authoritative turn state to one player, along with
// any input request still waiting on them.
func (g *Game) Resync(playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.phase {
	case PhaseWaiting:
		return
	case PhaseResolving:
		// The turn is announced again once the pass finishes.
		for _, key := range g.inputs.waitingOn(playerID) {
			g.requestLocked(g.inputs.waiting[key], key.Name, playerID)
		}
		return
	}
	g.send(playerID, protocol.MsgDraws, protocol.Draws{Draws: g.state.Draws})
	g.send(playerID, protocol.MsgNewTurn, protocol.Turn{UUID: g.state.CurrentPlayerID})
}

// Close stops every timer. The game accepts no further actions; queued
// notifications are still delivered.
func (g *Game) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopTimersLocked()
	if g.phase != PhaseOver {
		g.phase = PhaseOver
	}
	if g.notifier != nil {
		g.notifier.close()
	}
}

// Phase returns the current phase.
func (g *Game) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// CurrentPlayer returns the id of the player whose turn it is.
func (g *Game) CurrentPlayer() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.CurrentPlayerID
}

// Draws returns how many draw-turns the current player owes.
func (g *Game) Draws() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state.Draws
}

// Winner returns the winner once the hand is over.
func (g *Game) Winner() (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.winner, g.winner != ""
}

// Seats returns the seated players.
func (g *Game) Seats() []Seat {
	return append([]Seat(nil), g.seats...)
}

func (g *Game) activePlayerLocked(playerID string) (*state.Player, error) {
	switch g.phase {
	case PhaseWaiting:
		return nil, ErrGameNotStarted
	case PhaseOver:
		return nil, ErrGameOver
	}
	p, ok := g.state.Player(playerID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlayer, playerID)
	}
	if !p.IsAlive {
		return nil, ErrPlayerOut
	}
	return p, nil
}

func (g *Game) viewLocked(playerID string) rules.PlayView {
	v := rules.PlayView{
		PlayerID:        playerID,
		CurrentPlayerID: g.state.CurrentPlayerID,
		LastTypeDrawn:   g.lastDrawn[playerID],
		OriginPlayerID:  g.originPlayer,
		CoolingDown:     g.phase == PhaseInterrupt,
	}
	if top, ok := g.stack.Peek(); ok {
		v.LastTypePlayed = top.Card.Type
		v.LastPlayerID = top.PlayerID
	}
	if p, ok := g.state.Player(playerID); ok {
		v.Alive = p.IsAlive
		v.Hand = p.Hand
	}
	return v
}

func (g *Game) publicPlayersLocked() []protocol.PlayerInfo {
	out := make([]protocol.PlayerInfo, 0, len(g.state.Players))
	for _, id := range g.state.SeatOrder() {
		p := g.state.Players[id]
		out = append(out, protocol.PlayerInfo{
			UUID:     p.ID,
			Username: p.Username,
			HandSize: p.Hand.Len(),
			IsAlive:  p.IsAlive,
			IsBot:    p.IsBot,
		})
	}
	return out
}

func (g *Game) announceTurnLocked() {
	g.broadcast(protocol.MsgDraws, protocol.Draws{Draws: g.state.Draws})
	g.broadcast(protocol.MsgNewTurn, protocol.Turn{UUID: g.state.CurrentPlayerID})
}

func (g *Game) recordLocked() {
	if g.opts.Recorder != nil {
		g.opts.Recorder.RecordState(g.ID, g.snapshotLocked())
	}
}

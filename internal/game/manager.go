package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ResultSink stores finished hands.
type ResultSink interface {
	SaveResult(ctx context.Context, res Result) error
}

// ActionLog receives every outbound message of every game.
type ActionLog interface {
	Append(ctx context.Context, n GameNotification) error
}

// ManagerOptions wires the optional back ends shared by all games.
type ManagerOptions struct {
	Recorder *ReplayRecorder
	Results  ResultSink
	Log      ActionLog
	// SinkTimeout bounds each call into Results and Log.
	SinkTimeout time.Duration
}

// Manager owns every running game.
type Manager struct {
	logger *zap.Logger
	opts   ManagerOptions

	mu    sync.RWMutex
	games map[string]*Game
}

// NewManager creates an empty manager.
func NewManager(logger *zap.Logger, opts ManagerOptions) *Manager {
	if opts.SinkTimeout <= 0 {
		opts.SinkTimeout = 5 * time.Second
	}
	return &Manager{
		logger: logger,
		opts:   opts,
		games:  make(map[string]*Game),
	}
}

// CreateGame seats players in a new game. The manager installs its own
// notification, recording and finish hooks; an OnFinish set by the caller
// still runs after them.
func (m *Manager) CreateGame(seats []Seat, opts Options) (*Game, error) {
	id := uuid.New().String()

	callerFinish := opts.OnFinish
	opts.Recorder = m.opts.Recorder
	opts.OnFinish = func(res Result) {
		m.finished(res)
		if callerFinish != nil {
			callerFinish(res)
		}
	}
	if m.opts.Log != nil {
		opts.Notify = m.appendLog
	}

	g, err := NewGame(id, seats, opts, m.logger)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.games[id] = g
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("game created",
			zap.String("game_id", id),
			zap.Int("seats", len(seats)),
			zap.Duration("cooldown", g.opts.Cooldown),
			zap.Int("num_decks", g.opts.NumDecks),
		)
	}
	return g, nil
}

// Game looks up a running game.
func (m *Manager) Game(id string) (*Game, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.games[id]
	return g, ok
}

// Remove stops and forgets a game.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	g, ok := m.games[id]
	delete(m.games, id)
	m.mu.Unlock()

	if ok {
		g.Close()
	}
}

// Count returns the number of games held.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.games)
}

// CloseAll stops every game.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	games := m.games
	m.games = make(map[string]*Game)
	m.mu.Unlock()

	for _, g := range games {
		g.Close()
	}
}

func (m *Manager) appendLog(n GameNotification) {
	ctx, cancel := context.WithTimeout(context.Background(), m.opts.SinkTimeout)
	defer cancel()

	if err := m.opts.Log.Append(ctx, n); err != nil && m.logger != nil {
		m.logger.Warn("failed to append action log",
			zap.String("game_id", n.GameID),
			zap.String("type", n.Message.Type),
			zap.Error(err),
		)
	}
}

func (m *Manager) finished(res Result) {
	if m.opts.Recorder != nil && res.StartedAt.IsZero() {
		// Never dealt; there is nothing worth keeping.
		m.opts.Recorder.ClearReplay(res.GameID)
	} else if m.opts.Recorder != nil {
		if err := m.opts.Recorder.SaveReplay(res.GameID); err != nil && m.logger != nil {
			m.logger.Warn("failed to save replay", zap.String("game_id", res.GameID), zap.Error(err))
		}
	}

	if m.opts.Results != nil {
		ctx, cancel := context.WithTimeout(context.Background(), m.opts.SinkTimeout)
		defer cancel()
		if err := m.opts.Results.SaveResult(ctx, res); err != nil && m.logger != nil {
			m.logger.Error("failed to save hand result", zap.String("game_id", res.GameID), zap.Error(err))
		}
	}

	m.mu.Lock()
	delete(m.games, res.GameID)
	m.mu.Unlock()

	if m.logger != nil {
		m.logger.Info("game finished",
			zap.String("game_id", res.GameID),
			zap.String("winner_id", res.WinnerID),
			zap.Bool("aborted", res.Aborted),
			zap.Duration("duration", res.FinishedAt.Sub(res.StartedAt)),
		)
	}
}

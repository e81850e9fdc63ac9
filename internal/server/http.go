package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/config"
	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/Hester-Clapp/exploding-ponies/internal/history"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"github.com/Hester-Clapp/exploding-ponies/internal/repository"
	"github.com/Hester-Clapp/exploding-ponies/internal/room"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// ResultReader serves stored hands.
type ResultReader interface {
	Recent(ctx context.Context, limit int) ([]repository.HandRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]repository.LeaderboardEntry, error)
}

// LogReader serves a game's action log.
type LogReader interface {
	Entries(ctx context.Context, gameID string) ([]history.Entry, error)
}

// ReplayReader loads the recording of a finished hand.
type ReplayReader interface {
	LoadReplay(gameID string) (*game.Replay, error)
}

// HTTPOptions wires the optional read endpoints.
type HTTPOptions struct {
	Results ResultReader
	History LogReader
	Replays ReplayReader
}

// HTTPServer serves the room API and the player WebSocket.
type HTTPServer struct {
	cfg      config.ServerConfig
	rooms    *room.Registry
	opts     HTTPOptions
	upgrader websocket.Upgrader
	logger   *zap.Logger
	mux      *http.ServeMux
}

// NewHTTPServer builds the routes.
func NewHTTPServer(cfg config.ServerConfig, rooms *room.Registry, opts HTTPOptions, logger *zap.Logger) *HTTPServer {
	s := &HTTPServer{
		cfg:    cfg,
		rooms:  rooms,
		opts:   opts,
		logger: logger,
		mux:    http.NewServeMux(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.WebSocket.ReadBufferSize,
			WriteBufferSize: cfg.WebSocket.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /rooms", s.handleCreateRoom)
	s.mux.HandleFunc("GET /rooms", s.handleListRooms)
	s.mux.HandleFunc("GET /rooms/{id}", s.handleGetRoom)
	s.mux.HandleFunc("PUT /rooms/{id}", s.handleEditRoom)
	s.mux.HandleFunc("POST /rooms/{id}/start", s.handleStartRoom)
	s.mux.HandleFunc("GET /rooms/{id}/join", s.handleJoin)
	s.mux.HandleFunc("GET /hands", s.handleRecentHands)
	s.mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)
	s.mux.HandleFunc("GET /games/{id}/log", s.handleGameLog)
	s.mux.HandleFunc("GET /games/{id}/replay", s.handleReplay)
	if cfg.HTTP.StaticDir != "" {
		s.mux.Handle("GET /", http.FileServer(http.Dir(cfg.HTTP.StaticDir)))
	}
	return s
}

// Handler returns the root handler.
func (s *HTTPServer) Handler() http.Handler {
	return s.mux
}

// Server returns an http.Server bound to the configured address.
func (s *HTTPServer) Server() *http.Server {
	return &http.Server{
		Addr:              s.cfg.HTTP.Address,
		Handler:           s.mux,
		ReadHeaderTimeout: s.cfg.HTTP.ReadTimeout,
	}
}

func (s *HTTPServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "rooms": s.rooms.Count()})
}

func (s *HTTPServer) handleCreateRoom(w http.ResponseWriter, r *http.Request) {
	rm, err := s.rooms.Create()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"roomId": rm.ID})
}

func (s *HTTPServer) handleListRooms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": s.rooms.List()})
}

func (s *HTTPServer) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.rooms.Get(r.PathValue("id"))
	if !ok {
		writeError(w, room.ErrRoomNotFound)
		return
	}
	writeJSON(w, http.StatusOK, rm.Summary())
}

func (s *HTTPServer) handleEditRoom(w http.ResponseWriter, r *http.Request) {
	var body protocol.RoomSettings
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid settings: "+err.Error(), http.StatusBadRequest)
		return
	}

	got, err := s.rooms.Edit(r.PathValue("id"), room.Settings{
		Capacity: body.Capacity,
		Bots:     body.Bots,
		NumDecks: body.Decks,
		Cooldown: time.Duration(body.Cooldown) * time.Millisecond,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.RoomSettings{
		Capacity: got.Capacity,
		Bots:     got.Bots,
		Decks:    got.NumDecks,
		Cooldown: int(got.Cooldown / time.Millisecond),
	})
}

func (s *HTTPServer) handleStartRoom(w http.ResponseWriter, r *http.Request) {
	rm, ok := s.rooms.Get(r.PathValue("id"))
	if !ok {
		writeError(w, room.ErrRoomNotFound)
		return
	}
	g, err := rm.Start()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"gameId": g.ID})
}

func (s *HTTPServer) handleJoin(w http.ResponseWriter, r *http.Request) {
	playerID := r.URL.Query().Get("uuid")
	username := r.URL.Query().Get("username")
	if playerID == "" {
		http.Error(w, "missing uuid", http.StatusBadRequest)
		return
	}
	if username == "" {
		username = playerID
	}
	rm, ok := s.rooms.Get(r.PathValue("id"))
	if !ok {
		writeError(w, room.ErrRoomNotFound)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		if s.logger != nil {
			s.logger.Debug("websocket upgrade failed", zap.Error(err))
		}
		return
	}

	c := newClient(conn, playerID, s.cfg.WebSocket, s.logger)
	if err := rm.Join(playerID, username, c.Send); err != nil {
		if s.logger != nil {
			s.logger.Info("join refused",
				zap.String("room_id", rm.ID),
				zap.String("player_id", playerID),
				zap.Error(err),
			)
		}
		reject(conn, err, c.writeWait())
		return
	}

	go c.writePump()
	c.readPump(rm)
}

func (s *HTTPServer) handleRecentHands(w http.ResponseWriter, r *http.Request) {
	if s.opts.Results == nil {
		http.Error(w, "results are not stored", http.StatusNotFound)
		return
	}
	hands, err := s.opts.Results.Recent(r.Context(), queryLimit(r, 20))
	if err != nil {
		s.internalError(w, "failed to list hands", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"hands": hands})
}

func (s *HTTPServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if s.opts.Results == nil {
		http.Error(w, "results are not stored", http.StatusNotFound)
		return
	}
	entries, err := s.opts.Results.Leaderboard(r.Context(), queryLimit(r, 20))
	if err != nil {
		s.internalError(w, "failed to build leaderboard", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"leaderboard": entries})
}

func (s *HTTPServer) handleGameLog(w http.ResponseWriter, r *http.Request) {
	if s.opts.History == nil {
		http.Error(w, "action log is disabled", http.StatusNotFound)
		return
	}
	entries, err := s.opts.History.Entries(r.Context(), r.PathValue("id"))
	if err != nil {
		s.internalError(w, "failed to read action log", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// replayStep summarizes one recorded snapshot.
type replayStep struct {
	Index         int       `json:"index"`
	Phase         string    `json:"phase"`
	CurrentPlayer string    `json:"currentPlayer"`
	Draws         int       `json:"draws"`
	Pass          int       `json:"pass"`
	DrawPile      int       `json:"drawPile"`
	Cards         int       `json:"cards"`
	Stack         []string  `json:"stack,omitempty"`
	Checksum      string    `json:"checksum"`
	Timestamp     time.Time `json:"timestamp"`
}

// handleReplay lists a finished hand's snapshots, or returns one in full
// when ?state=N is given.
func (s *HTTPServer) handleReplay(w http.ResponseWriter, r *http.Request) {
	if s.opts.Replays == nil {
		http.Error(w, "replays are disabled", http.StatusNotFound)
		return
	}
	replay, err := s.opts.Replays.LoadReplay(r.PathValue("id"))
	if errors.Is(err, os.ErrNotExist) || errors.Is(err, game.ErrBadReplayID) {
		http.Error(w, "replay not found", http.StatusNotFound)
		return
	}
	if err != nil {
		s.internalError(w, "failed to load replay", err)
		return
	}

	if q := r.URL.Query().Get("state"); q != "" {
		i, err := strconv.Atoi(q)
		if err != nil {
			http.Error(w, "invalid state index", http.StatusBadRequest)
			return
		}
		snap := replay.StateAt(i)
		if snap == nil {
			http.Error(w, "state out of range", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, snap)
		return
	}

	steps := make([]replayStep, 0, replay.Size())
	replay.Start()
	for snap := replay.Next(); snap != nil; snap = replay.Next() {
		sum, err := snap.ComputeChecksum()
		if err != nil {
			s.internalError(w, "failed to checksum replay", err)
			return
		}
		steps = append(steps, replayStep{
			Index:         len(steps),
			Phase:         snap.Phase.String(),
			CurrentPlayer: snap.CurrentPlayerID,
			Draws:         snap.Draws,
			Pass:          snap.Pass,
			DrawPile:      len(snap.DrawPile),
			Cards:         snap.CardCount(),
			Stack:         snap.Stack,
			Checksum:      sum.Hash,
			Timestamp:     snap.Timestamp,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"gameId": replay.GameID, "states": steps})
}

func (s *HTTPServer) internalError(w http.ResponseWriter, msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, zap.Error(err))
	}
	http.Error(w, msg, http.StatusInternalServerError)
}

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, 200)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, room.ErrRoomNotFound):
		status = http.StatusNotFound
	case errors.Is(err, room.ErrRoomFull),
		errors.Is(err, room.ErrInProgress),
		errors.Is(err, room.ErrNotEnoughPlayers):
		status = http.StatusConflict
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

package room

import (
	"sort"
	"sync"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"go.uber.org/zap"
)

// Options apply to every room in a registry.
type Options struct {
	Defaults      Settings
	MaxRooms      int
	InputTimeout  time.Duration
	FuseTimeout   time.Duration
	BotDelayScale float64
}

// Registry holds the open rooms.
type Registry struct {
	logger *zap.Logger
	games  *game.Manager
	opts   Options

	mu    sync.RWMutex
	rooms map[string]*Room
}

// NewRegistry creates an empty registry whose rooms create hands in games.
func NewRegistry(games *game.Manager, opts Options, logger *zap.Logger) *Registry {
	if opts.Defaults.Capacity == 0 {
		opts.Defaults.Capacity = 4
	}
	opts.Defaults = opts.Defaults.Normalize()
	return &Registry{
		logger: logger,
		games:  games,
		opts:   opts,
		rooms:  make(map[string]*Room),
	}
}

// Create opens a room with the default settings.
func (r *Registry) Create() (*Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.opts.MaxRooms > 0 && len(r.rooms) >= r.opts.MaxRooms {
		return nil, ErrRoomFull
	}
	rm := newRoom(r, r.opts.Defaults)
	r.rooms[rm.ID] = rm

	if r.logger != nil {
		r.logger.Info("room created",
			zap.String("room_id", rm.ID),
			zap.Int("capacity", rm.settings.Capacity),
		)
	}
	return rm, nil
}

// Get looks up an open room.
func (r *Registry) Get(id string) (*Room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rm, ok := r.rooms[id]
	return rm, ok
}

// Edit changes an open room's settings.
func (r *Registry) Edit(id string, s Settings) (Settings, error) {
	rm, ok := r.Get(id)
	if !ok {
		return Settings{}, ErrRoomNotFound
	}
	return rm.Edit(s)
}

// List returns a summary of every open room, oldest first.
func (r *Registry) List() []Summary {
	r.mu.RLock()
	rooms := make([]*Room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.RUnlock()

	out := make([]Summary, 0, len(rooms))
	for _, rm := range rooms {
		out = append(out, rm.Summary())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreateTime.Before(out[j].CreateTime) })
	return out
}

// Count returns the number of open rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Remove closes a room and ends its hand.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	rm, ok := r.rooms[id]
	delete(r.rooms, id)
	r.mu.Unlock()

	if !ok {
		return
	}
	rm.close()
	if r.logger != nil {
		r.logger.Info("room closed", zap.String("room_id", id))
	}
}

// CloseAll closes every room.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*Room)
	r.mu.Unlock()

	for _, rm := range rooms {
		rm.close()
	}
}

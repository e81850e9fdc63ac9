package game

import (
	"github.com/Hester-Clapp/exploding-ponies/internal/game/actions"
)

// inputKey names one answer from one player.
type inputKey struct {
	Name     actions.InputName
	PlayerID string
}

// inputRegistry holds answers that arrived before they were asked for, and
// the actions currently waiting on an answer. Only the Game touches it, under
// the game lock.
type inputRegistry struct {
	cached  map[inputKey]any
	waiting map[inputKey]*actions.Action
}

func newInputRegistry() *inputRegistry {
	return &inputRegistry{
		cached:  make(map[inputKey]any),
		waiting: make(map[inputKey]*actions.Action),
	}
}

// provide hands the value to the waiting action if there is one, otherwise
// caches it for the action that will ask later. It returns the action that
// received the value, if any.
func (r *inputRegistry) provide(key inputKey, value any) (*actions.Action, error) {
	if a, ok := r.waiting[key]; ok {
		if err := a.Provide(key.Name, value); err != nil {
			return nil, err
		}
		delete(r.waiting, key)
		return a, nil
	}
	r.cached[key] = value
	return nil, nil
}

// take removes and returns a cached value.
func (r *inputRegistry) take(key inputKey) (any, bool) {
	v, ok := r.cached[key]
	if ok {
		delete(r.cached, key)
	}
	return v, ok
}

// await records that a is waiting on key. It reports false when another
// action already waits on the same key.
func (r *inputRegistry) await(key inputKey, a *actions.Action) bool {
	if other, ok := r.waiting[key]; ok && other != a {
		return false
	}
	r.waiting[key] = a
	return true
}

// isWaiting reports whether a waits on key.
func (r *inputRegistry) isWaiting(key inputKey, a *actions.Action) bool {
	return r.waiting[key] == a
}

// waitingOn lists keys whose supplier is playerID.
func (r *inputRegistry) waitingOn(playerID string) []inputKey {
	var out []inputKey
	for key := range r.waiting {
		if key.PlayerID == playerID {
			out = append(out, key)
		}
	}
	return out
}

// keys lists every waiting key.
func (r *inputRegistry) keys() []inputKey {
	out := make([]inputKey, 0, len(r.waiting))
	for key := range r.waiting {
		out = append(out, key)
	}
	return out
}

// reset clears everything after a resolution pass. Values listed in keep
// survive, such as an exploding card drawn for the next pass.
func (r *inputRegistry) reset(keep ...inputKey) {
	saved := make(map[inputKey]any, len(keep))
	for _, key := range keep {
		if v, ok := r.cached[key]; ok {
			saved[key] = v
		}
	}
	r.cached = saved
	r.waiting = make(map[inputKey]*actions.Action)
}

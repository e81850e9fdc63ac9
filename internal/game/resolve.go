package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game/actions"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/cards"
	"github.com/Hester-Clapp/exploding-ponies/internal/game/rules"
	"github.com/Hester-Clapp/exploding-ponies/internal/protocol"
	"go.uber.org/zap"
)

// armWindowLocked (re)starts the interrupt window. Older timers that still
// fire see a stale generation and do nothing.
func (g *Game) armWindowLocked() {
	g.windowGen++
	gen := g.windowGen
	if g.windowTimer != nil {
		g.windowTimer.Stop()
	}
	g.windowTimer = time.AfterFunc(g.opts.Cooldown, func() {
		g.closeWindow(gen)
	})
}

func (g *Game) closeWindow(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.windowGen || g.phase != PhaseInterrupt {
		return
	}
	g.resolveLocked()
}

// resolveNow closes the interrupt window without waiting for the timer.
func (g *Game) resolveNow() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseInterrupt {
		return
	}
	g.windowGen++
	if g.windowTimer != nil {
		g.windowTimer.Stop()
	}
	g.resolveLocked()
}

func (g *Game) resolveLocked() {
	g.phase = PhaseResolving
	g.broadcast(protocol.MsgResolve, protocol.Resolve{CoolingDown: false})

	items := g.stack.Drain()
	acts, err := rules.Collapse(items)
	if err != nil {
		g.abortLocked("stack collapse failed", err)
		return
	}
	g.pending = acts
	g.void = make(map[*actions.Action]bool)
	g.passes++

	if g.logger != nil {
		g.logger.Debug("resolving stack",
			zap.String("game_id", g.ID),
			zap.Int("cards", len(items)),
			zap.Int("actions", len(acts)),
			zap.Int("pass", g.passes),
		)
	}
	g.pumpLocked()
}

// pumpLocked collects whatever inputs can be collected and runs the pass
// once every action is ready.
func (g *Game) pumpLocked() {
	if g.phase != PhaseResolving {
		return
	}

	waiting := false
	for _, a := range g.pending {
		if g.void[a] {
			continue
		}
		if p, ok := g.state.Player(a.PlayerID); !ok || !p.IsAlive {
			g.void[a] = true
			continue
		}
		g.collectLocked(a)
		if !g.void[a] && !a.Ready() {
			waiting = true
		}
	}

	if waiting {
		g.armInputTimeoutLocked()
		return
	}
	g.stopInputTimerLocked()
	g.runLocked()
}

// collectLocked fills a's missing inputs from the cache, asking the supplier
// for the first one that is not cached. Only one request per action is
// outstanding at a time.
func (g *Game) collectLocked(a *actions.Action) {
	for _, name := range a.Missing() {
		supplier := a.Supplier(name)
		if supplier == "" {
			return
		}
		key := inputKey{Name: name, PlayerID: supplier}
		if g.inputs.isWaiting(key, a) {
			return
		}

		if v, ok := g.inputs.take(key); ok {
			if g.validInputLocked(a, name, v) {
				if err := a.Provide(name, v); err == nil {
					continue
				}
			}
			if g.logger != nil {
				g.logger.Debug("discarded cached input",
					zap.String("game_id", g.ID),
					zap.String("input", string(name)),
					zap.String("player_id", supplier),
				)
			}
		}

		if name == actions.InputExploding {
			// Defuse with nothing to defuse.
			g.void[a] = true
			return
		}

		if p, ok := g.state.Player(supplier); !ok || !p.IsAlive || g.left[supplier] {
			if !g.answerForLocked(a, name) {
				return
			}
			continue
		}

		if name == actions.InputCardType && a.Mode == actions.TransferFavor && len(giveable(g.state.Players[supplier].Hand)) == 0 {
			// Nothing to give; the favor comes to nothing.
			g.void[a] = true
			return
		}

		if !g.inputs.await(key, a) {
			return
		}
		g.requestLocked(a, name, supplier)
		return
	}
}

// answerForLocked fills name with a random legal value on the supplier's
// behalf. The action is voided when no legal value exists.
func (g *Game) answerForLocked(a *actions.Action, name actions.InputName) bool {
	var value any
	switch name {
	case actions.InputTarget:
		candidates := g.targetsLocked(a.PlayerID, true)
		if len(candidates) == 0 {
			candidates = g.targetsLocked(a.PlayerID, false)
		}
		if len(candidates) == 0 {
			g.void[a] = true
			return false
		}
		value = candidates[g.rng.Intn(len(candidates))]
	case actions.InputCardType:
		if a.Mode == actions.TransferTriple {
			types := cards.AllTypes()
			value = types[g.rng.Intn(len(types))]
			break
		}
		target, _ := a.Target.Get()
		p, ok := g.state.Player(target)
		if !ok {
			g.void[a] = true
			return false
		}
		t, ok := p.Hand.RandomType(g.rng, cards.TypeExploding)
		if !ok {
			g.void[a] = true
			return false
		}
		value = t
	case actions.InputPosition:
		value = g.rng.Intn(g.state.Deck.Len() + 1)
	default:
		g.void[a] = true
		return false
	}

	if err := a.Provide(name, value); err != nil {
		g.void[a] = true
		return false
	}
	if g.logger != nil {
		g.logger.Debug("answered input on behalf of player",
			zap.String("game_id", g.ID),
			zap.String("input", string(name)),
			zap.String("action", a.Kind.String()),
			zap.Any("value", value),
		)
	}
	return true
}

// targetsLocked lists players actor may name as a target.
func (g *Game) targetsLocked(actor string, withCards bool) []string {
	var out []string
	for _, id := range g.state.AlivePlayers() {
		if id == actor {
			continue
		}
		if withCards && g.state.Players[id].Hand.Len() == 0 {
			continue
		}
		out = append(out, id)
	}
	return out
}

func (g *Game) validTargetLocked(actor string, value any) bool {
	id, ok := value.(string)
	if !ok || id == actor {
		return false
	}
	p, ok := g.state.Player(id)
	return ok && p.IsAlive
}

func (g *Game) validInputLocked(a *actions.Action, name actions.InputName, value any) bool {
	switch name {
	case actions.InputTarget:
		return g.validTargetLocked(a.PlayerID, value)
	case actions.InputCardType:
		t, ok := value.(cards.Type)
		if !ok || !t.Valid() {
			return false
		}
		if a.Mode != actions.TransferFavor {
			return true
		}
		target, _ := a.Target.Get()
		p, ok := g.state.Player(target)
		if !ok {
			return false
		}
		if len(giveable(p.Hand)) == 0 {
			return true
		}
		return t != cards.TypeExploding && p.Hand.Has(t, 1)
	case actions.InputPosition:
		_, ok := value.(int)
		return ok
	case actions.InputExploding:
		c, ok := value.(cards.Card)
		if !ok || c.Type != cards.TypeExploding {
			return false
		}
		p, ok := g.state.Player(a.PlayerID)
		return ok && slices.Contains(p.Hand.Cards(), c)
	}
	return false
}

func (g *Game) requestLocked(a *actions.Action, name actions.InputName, supplier string) {
	req := protocol.RequestInput{Input: string(name), Mode: string(a.Mode)}
	switch name {
	case actions.InputTarget:
		for _, info := range g.publicPlayersLocked() {
			if info.IsAlive && info.UUID != a.PlayerID {
				req.Players = append(req.Players, info)
			}
		}
	case actions.InputCardType:
		var types []cards.Type
		if a.Mode == actions.TransferFavor {
			types = giveable(g.state.Players[supplier].Hand)
		} else {
			types = cards.AllTypes()
		}
		for _, t := range types {
			req.Types = append(req.Types, string(t))
		}
	case actions.InputPosition:
		req.Length = g.state.Deck.Len()
	}
	g.send(supplier, protocol.MsgRequestInput, req)
}

// runLocked runs every ready action in play order and announces the result.
func (g *Game) runLocked() {
	var total actions.Changes
	for _, a := range g.pending {
		if g.void[a] {
			continue
		}
		p, ok := g.state.Player(a.PlayerID)
		if !ok || !p.IsAlive {
			continue
		}
		// A bomb defused straight off the stack comes back into play.
		bomb, ok := a.Exploding.Get()
		returning := ok && a.Kind == actions.KindDefuse && !holds(p.Hand, bomb)

		ch, err := a.Run(g.state)
		if err != nil {
			if g.logger != nil {
				g.logger.Error("action failed",
					zap.String("game_id", g.ID),
					zap.String("action", a.Kind.String()),
					zap.String("player_id", a.PlayerID),
					zap.Error(err),
				)
			}
			continue
		}
		if returning {
			g.circulating++
		}
		total.Merge(ch)
		g.announceActionLocked(a, ch)
		if a.Kind == actions.KindDefuse || a.Kind == actions.KindExploding {
			delete(g.lastDrawn, a.PlayerID)
		}
	}

	g.pending = nil
	g.void = nil
	var keep []inputKey
	for id, t := range g.lastDrawn {
		if t == cards.TypeExploding {
			keep = append(keep, inputKey{Name: actions.InputExploding, PlayerID: id})
		}
	}
	g.inputs.reset(keep...)
	g.originPlayer = ""

	if total.Shuffled {
		g.broadcast(protocol.MsgShuffle, nil)
	}
	if total.Shuffled || total.Deck {
		g.broadcast(protocol.MsgDeck, protocol.DeckLength{Length: g.state.Deck.Len()})
	}

	if err := g.state.CheckRing(); err != nil {
		g.abortLocked("turn ring check failed", err)
		return
	}
	if got := g.state.CardTotal(); got != g.circulating {
		g.abortLocked("card count check failed", fmt.Errorf("%w: %d cards in hands and pile, want %d", ErrCardsLost, got, g.circulating))
		return
	}
	if winner, ok := g.state.Winner(); ok {
		g.finishLocked(winner)
		return
	}

	g.phase = PhaseAwaitingPlay
	g.announceTurnLocked()
	g.recordLocked()
}

func (g *Game) announceActionLocked(a *actions.Action, ch actions.Changes) {
	if t := ch.Transfer; t != nil && t.Moved {
		g.send(t.From, protocol.MsgGive, protocol.Give{Card: t.Card, To: t.To})
		g.send(t.To, protocol.MsgReceive, protocol.Receive{Card: t.Card, From: t.From})
		g.broadcast(protocol.MsgTransfer, protocol.Transfer{From: t.From, To: t.To}, t.From, t.To)
	}
	if f := ch.Future; f != nil {
		g.send(f.PlayerID, protocol.MsgShow, f.Cards)
	}
	if id := ch.Eliminated; id != "" {
		g.eliminated = append(g.eliminated, id)
		g.broadcast(protocol.MsgEliminate, protocol.Eliminate{UUID: id}, id)
		g.send(id, protocol.MsgEliminated, protocol.Eliminate{UUID: id})
		if g.logger != nil {
			g.logger.Info("player exploded", zap.String("game_id", g.ID), zap.String("player_id", id))
		}
	}
}

func (g *Game) armInputTimeoutLocked() {
	if g.opts.InputTimeout <= 0 {
		return
	}
	g.inputGen++
	gen := g.inputGen
	if g.inputTimer != nil {
		g.inputTimer.Stop()
	}
	g.inputTimer = time.AfterFunc(g.opts.InputTimeout, func() {
		g.inputsExpired(gen)
	})
}

func (g *Game) stopInputTimerLocked() {
	g.inputGen++
	if g.inputTimer != nil {
		g.inputTimer.Stop()
		g.inputTimer = nil
	}
}

func (g *Game) inputsExpired(gen uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.inputGen || g.phase != PhaseResolving {
		return
	}
	for _, key := range g.inputs.keys() {
		a := g.inputs.waiting[key]
		delete(g.inputs.waiting, key)
		if g.logger != nil {
			g.logger.Info("input timed out",
				zap.String("game_id", g.ID),
				zap.String("player_id", key.PlayerID),
				zap.String("input", string(key.Name)),
			)
		}
		g.answerForLocked(a, key.Name)
	}
	g.pumpLocked()
}

func (g *Game) armFuseLocked(playerID string) {
	if g.opts.FuseTimeout <= 0 {
		return
	}
	g.fuseGen++
	gen := g.fuseGen
	if g.fuseTimer != nil {
		g.fuseTimer.Stop()
	}
	g.fuseTimer = time.AfterFunc(g.opts.FuseTimeout, func() {
		g.fuseExpired(gen, playerID)
	})
}

func (g *Game) stopFuseLocked() {
	g.fuseGen++
	if g.fuseTimer != nil {
		g.fuseTimer.Stop()
		g.fuseTimer = nil
	}
}

// fuseExpired plays a held exploding card for a player who sat on it.
func (g *Game) fuseExpired(gen uint64, playerID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if gen != g.fuseGen || g.phase != PhaseAwaitingPlay {
		return
	}
	if g.lastDrawn[playerID] != cards.TypeExploding {
		return
	}
	if err := g.playLocked(playerID, cards.TypeExploding); err != nil {
		if g.logger != nil {
			g.logger.Warn("fuse expired but exploding card could not be played",
				zap.String("game_id", g.ID),
				zap.String("player_id", playerID),
				zap.Error(err),
			)
		}
		return
	}
	if g.logger != nil {
		g.logger.Info("fuse expired", zap.String("game_id", g.ID), zap.String("player_id", playerID))
	}
}

func (g *Game) stopTimersLocked() {
	g.windowGen++
	if g.windowTimer != nil {
		g.windowTimer.Stop()
		g.windowTimer = nil
	}
	g.stopInputTimerLocked()
	g.stopFuseLocked()
}

func (g *Game) finishLocked(winner string) {
	g.phase = PhaseOver
	g.winner = winner
	g.stopTimersLocked()
	g.broadcast(protocol.MsgWin, protocol.Win{UUID: winner})
	g.recordLocked()

	if g.logger != nil {
		g.logger.Info("hand won",
			zap.String("game_id", g.ID),
			zap.String("winner_id", winner),
			zap.Int("passes", g.passes),
		)
	}
	g.reportLocked(false, "")
}

// abortLocked ends the hand without a winner after an internal failure.
func (g *Game) abortLocked(reason string, err error) {
	g.phase = PhaseOver
	g.stopTimersLocked()
	if g.logger != nil {
		g.logger.Error("aborting hand",
			zap.String("game_id", g.ID),
			zap.String("reason", reason),
			zap.Error(err),
		)
	}
	g.reportLocked(true, reason+": "+err.Error())
}

func (g *Game) reportLocked(aborted bool, reason string) {
	if g.opts.Recorder != nil {
		g.opts.Recorder.StopRecording(g.ID)
	}
	if g.notifier != nil {
		g.notifier.close()
	}
	if g.opts.OnFinish == nil {
		return
	}
	res := Result{
		GameID:           g.ID,
		WinnerID:         g.winner,
		Players:          g.Seats(),
		EliminationOrder: append([]string(nil), g.eliminated...),
		Passes:           g.passes,
		StartedAt:        g.startedAt,
		FinishedAt:       time.Now(),
		Aborted:          aborted,
		Reason:           reason,
	}
	if p, ok := g.state.Player(g.winner); ok {
		res.WinnerName = p.Username
	}
	go g.opts.OnFinish(res)
}

func holds(h *cards.Hand, c cards.Card) bool {
	for _, held := range h.Cards() {
		if held == c {
			return true
		}
	}
	return false
}

// giveable lists the types a player may hand over in a favor.
func giveable(h *cards.Hand) []cards.Type {
	var out []cards.Type
	for _, t := range h.Types() {
		if t != cards.TypeExploding {
			out = append(out, t)
		}
	}
	return out
}

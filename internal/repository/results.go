package repository

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/jackc/pgx/v5"
)

// HandRecord is one stored hand.
type HandRecord struct {
	GameID     string
	WinnerID   string
	WinnerName string
	Passes     int
	Aborted    bool
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
	Players    []PlayerRecord
}

// PlayerRecord is one seat of a stored hand. Placement 1 is the winner.
type PlayerRecord struct {
	PlayerID  string
	Username  string
	Bot       bool
	Seat      int
	Placement int
}

// LeaderboardEntry totals a username's results.
type LeaderboardEntry struct {
	Username string
	Hands    int
	Wins     int
}

// ResultRepository stores finished hands. It satisfies game.ResultSink.
type ResultRepository struct {
	db *DB
}

// NewResultRepository creates a repository over db.
func NewResultRepository(db *DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// SaveResult writes a hand and its seats in one transaction.
func (r *ResultRepository) SaveResult(ctx context.Context, res game.Result) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO hands (game_id, winner_id, winner_name, passes, aborted, reason, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game_id) DO NOTHING
	`, res.GameID, res.WinnerID, res.WinnerName, res.Passes, res.Aborted, res.Reason, res.StartedAt, res.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to insert hand %s: %w", res.GameID, err)
	}

	batch := &pgx.Batch{}
	for _, p := range Placements(res) {
		batch.Queue(`
			INSERT INTO hand_players (game_id, player_id, username, is_bot, seat, placement)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (game_id, player_id) DO NOTHING
		`, res.GameID, p.PlayerID, p.Username, p.Bot, p.Seat, p.Placement)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("failed to insert players of hand %s: %w", res.GameID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit hand %s: %w", res.GameID, err)
	}
	return nil
}

// Recent returns the latest hands, newest first.
func (r *ResultRepository) Recent(ctx context.Context, limit int) ([]HandRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT game_id, winner_id, winner_name, passes, aborted, reason, started_at, finished_at
		FROM hands
		ORDER BY finished_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query hands: %w", err)
	}

	hands, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (HandRecord, error) {
		var h HandRecord
		err := row.Scan(&h.GameID, &h.WinnerID, &h.WinnerName, &h.Passes, &h.Aborted, &h.Reason, &h.StartedAt, &h.FinishedAt)
		return h, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan hands: %w", err)
	}

	for i := range hands {
		players, err := r.players(ctx, hands[i].GameID)
		if err != nil {
			return nil, err
		}
		hands[i].Players = players
	}
	return hands, nil
}

func (r *ResultRepository) players(ctx context.Context, gameID string) ([]PlayerRecord, error) {
	rows, err := r.db.Query(ctx, `
		SELECT player_id, username, is_bot, seat, placement
		FROM hand_players
		WHERE game_id = $1
		ORDER BY placement
	`, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players of hand %s: %w", gameID, err)
	}
	players, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (PlayerRecord, error) {
		var p PlayerRecord
		err := row.Scan(&p.PlayerID, &p.Username, &p.Bot, &p.Seat, &p.Placement)
		return p, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan players of hand %s: %w", gameID, err)
	}
	return players, nil
}

// Leaderboard ranks human usernames by wins over completed hands.
func (r *ResultRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	rows, err := r.db.Query(ctx, `
		SELECT p.username,
		       COUNT(*) AS hands,
		       COUNT(*) FILTER (WHERE p.placement = 1) AS wins
		FROM hand_players p
		JOIN hands h ON h.game_id = p.game_id
		WHERE NOT h.aborted AND NOT p.is_bot
		GROUP BY p.username
		ORDER BY wins DESC, hands ASC, p.username
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LeaderboardEntry, error) {
		var e LeaderboardEntry
		err := row.Scan(&e.Username, &e.Hands, &e.Wins)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan leaderboard: %w", err)
	}
	return entries, nil
}

// Placements ranks the seats of a hand: the winner first, then the
// eliminated players from last out to first out. Seats neither winning nor
// eliminated, as in an aborted hand, share the next place.
func Placements(res game.Result) []PlayerRecord {
	out := make([]PlayerRecord, 0, len(res.Players))
	seatOf := make(map[string]int, len(res.Players))
	for i, s := range res.Players {
		seatOf[s.ID] = i
	}
	placed := make(map[string]bool, len(res.Players))

	add := func(id string, placement int) {
		i, ok := seatOf[id]
		if !ok || placed[id] {
			return
		}
		s := res.Players[i]
		out = append(out, PlayerRecord{PlayerID: s.ID, Username: s.Username, Bot: s.Bot, Seat: i, Placement: placement})
		placed[id] = true
	}

	next := 1
	if res.WinnerID != "" {
		add(res.WinnerID, next)
		next++
	}

	before := len(out)
	for _, s := range res.Players {
		if !slices.Contains(res.EliminationOrder, s.ID) {
			add(s.ID, next)
		}
	}
	if len(out) > before {
		next++
	}

	for i := len(res.EliminationOrder) - 1; i >= 0; i-- {
		before := len(out)
		add(res.EliminationOrder[i], next)
		if len(out) > before {
			next++
		}
	}
	return out
}

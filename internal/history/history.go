// Package history keeps a per-game log of every message the server sent, in
// Redis. Each game gets a list to replay from and a channel to watch live.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/Hester-Clapp/exploding-ponies/internal/game"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Entry is one logged message.
type Entry struct {
	Seq       uint64          `json:"seq"`
	GameID    string          `json:"gameId"`
	PlayerID  string          `json:"playerId,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Broadcast reports whether the entry went to every player.
func (e Entry) Broadcast() bool { return e.PlayerID == "" }

// NewEntry converts a game notification into a log entry.
func NewEntry(n game.GameNotification) (Entry, error) {
	e := Entry{
		Seq:       n.Seq,
		GameID:    n.GameID,
		PlayerID:  n.PlayerID,
		Timestamp: n.Timestamp,
		Type:      n.Message.Type,
	}
	if n.Message.Payload != nil {
		data, err := json.Marshal(n.Message.Payload)
		if err != nil {
			return Entry{}, fmt.Errorf("failed to encode %s payload: %w", n.Message.Type, err)
		}
		e.Payload = data
	}
	return e, nil
}

// NewClient connects to the Redis at url, e.g. redis://localhost:6379/0.
func NewClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

// Log appends entries to Redis. It satisfies game.ActionLog.
type Log struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	logger *zap.Logger
}

// NewLog creates a log writing keys under prefix. A positive ttl expires
// each game's list that long after its last entry.
func NewLog(client redis.UniversalClient, prefix string, ttl time.Duration, logger *zap.Logger) *Log {
	if prefix == "" {
		prefix = "ponies"
	}
	return &Log{client: client, prefix: prefix, ttl: ttl, logger: logger}
}

// ListKey is the list holding a game's entries.
func (l *Log) ListKey(gameID string) string {
	return fmt.Sprintf("%s:game:%s:log", l.prefix, gameID)
}

// Channel is the pub/sub channel a game's entries are published on.
func (l *Log) Channel(gameID string) string {
	return fmt.Sprintf("%s:game:%s:events", l.prefix, gameID)
}

// Append stores and publishes one notification.
func (l *Log) Append(ctx context.Context, n game.GameNotification) error {
	e, err := NewEntry(n)
	if err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode entry: %w", err)
	}

	key := l.ListKey(n.GameID)
	pipe := l.client.TxPipeline()
	pipe.RPush(ctx, key, data)
	if l.ttl > 0 {
		pipe.Expire(ctx, key, l.ttl)
	}
	pipe.Publish(ctx, l.Channel(n.GameID), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to %s: %w", key, err)
	}
	return nil
}

// Entries returns a game's log ordered by Seq.
func (l *Log) Entries(ctx context.Context, gameID string) ([]Entry, error) {
	raw, err := l.client.LRange(ctx, l.ListKey(gameID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read log of %s: %w", gameID, err)
	}
	out := make([]Entry, 0, len(raw))
	for _, s := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(s), &e); err != nil {
			if l.logger != nil {
				l.logger.Warn("skipping unreadable log entry", zap.String("game_id", gameID), zap.Error(err))
			}
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

// Subscribe streams a game's entries as they are appended until ctx ends.
func (l *Log) Subscribe(ctx context.Context, gameID string) (<-chan Entry, error) {
	sub := l.client.Subscribe(ctx, l.Channel(gameID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", gameID, err)
	}

	out := make(chan Entry, 64)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Entry
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Delete drops a game's log.
func (l *Log) Delete(ctx context.Context, gameID string) error {
	if err := l.client.Del(ctx, l.ListKey(gameID)).Err(); err != nil {
		return fmt.Errorf("failed to delete log of %s: %w", gameID, err)
	}
	return nil
}

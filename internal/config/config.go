package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g. PONIES_SERVER_HTTP_ADDRESS.
const EnvPrefix = "PONIES"

// Config is the server configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Game     GameConfig     `mapstructure:"game"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Replay   ReplayConfig   `mapstructure:"replay"`
}

// ServerConfig holds the listeners.
type ServerConfig struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	MaxRooms  int             `mapstructure:"max_rooms"`
}

// HTTPConfig is the room API and WebSocket listener.
type HTTPConfig struct {
	Address         string        `mapstructure:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	StaticDir       string        `mapstructure:"static_dir"`
}

// GRPCConfig is the health check listener.
type GRPCConfig struct {
	Address              string `mapstructure:"address"`
	MaxConcurrentStreams int    `mapstructure:"max_concurrent_streams"`
}

// WebSocketConfig tunes player connections.
type WebSocketConfig struct {
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	PongTimeout     time.Duration `mapstructure:"pong_timeout"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
}

// GameConfig holds the table defaults.
type GameConfig struct {
	Cooldown      time.Duration `mapstructure:"cooldown"`
	NumDecks      int           `mapstructure:"num_decks"`
	MaxSeats      int           `mapstructure:"max_seats"`
	InputTimeout  time.Duration `mapstructure:"input_timeout"`
	FuseTimeout   time.Duration `mapstructure:"fuse_timeout"`
	BotDelayScale float64       `mapstructure:"bot_delay_scale"`
}

// LoggingConfig selects the log level and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DatabaseConfig points at Postgres. An empty URL disables result storage.
type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
}

// Enabled reports whether a database is configured.
func (c DatabaseConfig) Enabled() bool { return c.URL != "" }

// RedisConfig points at Redis. An empty URL disables the action log.
type RedisConfig struct {
	URL       string        `mapstructure:"url"`
	KeyPrefix string        `mapstructure:"key_prefix"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether Redis is configured.
func (c RedisConfig) Enabled() bool { return c.URL != "" }

// ReplayConfig controls hand recordings.
type ReplayConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dir     string `mapstructure:"dir"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http.address", ":3000")
	v.SetDefault("server.http.read_timeout", 10*time.Second)
	v.SetDefault("server.http.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.http.static_dir", "")
	v.SetDefault("server.grpc.address", ":17171")
	v.SetDefault("server.grpc.max_concurrent_streams", 100)
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.send_buffer", 256)
	v.SetDefault("server.websocket.write_timeout", 10*time.Second)
	v.SetDefault("server.websocket.pong_timeout", 60*time.Second)
	v.SetDefault("server.websocket.max_message_size", 4096)
	v.SetDefault("server.max_rooms", 0)

	v.SetDefault("game.cooldown", 3*time.Second)
	v.SetDefault("game.num_decks", 1)
	v.SetDefault("game.max_seats", 4)
	v.SetDefault("game.input_timeout", 0)
	v.SetDefault("game.fuse_timeout", 0)
	v.SetDefault("game.bot_delay_scale", 1.0)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", time.Hour)
	v.SetDefault("database.max_conn_idle_time", 30*time.Minute)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.key_prefix", "ponies")
	v.SetDefault("redis.ttl", 24*time.Hour)

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.dir", "replays")
}

// Load reads the YAML file at path, then applies environment overrides.
// A .env file in the working directory is loaded into the environment
// first. A missing config file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Server.HTTP.Address == "":
		return errors.New("server.http.address is required")
	case c.Game.Cooldown <= 0:
		return fmt.Errorf("game.cooldown must be positive, got %s", c.Game.Cooldown)
	case c.Game.NumDecks < 1:
		return fmt.Errorf("game.num_decks must be at least 1, got %d", c.Game.NumDecks)
	case c.Game.MaxSeats < 1 || c.Game.MaxSeats > 5:
		return fmt.Errorf("game.max_seats must be between 1 and 5, got %d", c.Game.MaxSeats)
	case c.Game.BotDelayScale < 0:
		return fmt.Errorf("game.bot_delay_scale must not be negative, got %g", c.Game.BotDelayScale)
	case c.Game.InputTimeout < 0 || c.Game.FuseTimeout < 0:
		return errors.New("game timeouts must not be negative")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
)

// Config is the process configuration, read from the environment (and a
// .env file when the binary imports godotenv/autoload).
type Config struct {
	Port           string `env:"PORT" envDefault:"8080"`
	LogLevel       string `env:"LOG_LEVEL" envDefault:"info"`
	DictionaryPath string `env:"DICTIONARY_PATH" envDefault:"data/words.txt"`

	Game      GameConfig
	Postgres  PostgresConfig
	Redis     RedisConfig
	Auth      AuthConfig
	Historian HistorianConfig
}

type GameConfig struct {
	MaxPlayers        int           `env:"MAX_PLAYERS" envDefault:"4"`
	RoundDuration     time.Duration `env:"ROUND_DURATION" envDefault:"30s"`
	GameDuration      time.Duration `env:"GAME_DURATION" envDefault:"30m"`
	RoomTTL           time.Duration `env:"ROOM_TTL" envDefault:"1h"`
	FinishedRetention time.Duration `env:"FINISHED_RETENTION" envDefault:"10s"`
}

type PostgresConfig struct {
	User     string `env:"POSTGRES_USER" envDefault:"postgres"`
	Password string `env:"POSTGRES_PASSWORD"`
	Host     string `env:"PG_HOST" envDefault:"localhost"`
	Port     string `env:"PG_PORT" envDefault:"5432"`
	Database string `env:"PG_DATABASE" envDefault:"wordchain"`
}

// DSN renders the pgx connection string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", p.User, p.Password, p.Host, p.Port, p.Database)
}

type RedisConfig struct {
	Addr  string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	DB    int    `env:"REDIS_DB" envDefault:"0"`
	Queue string `env:"HISTORY_QUEUE_NAME" envDefault:"wordchain_room_events"`
}

type AuthConfig struct {
	// TokenExpireTime is a Go duration, or "never"/"0" for tokens without exp.
	TokenExpireTime string `env:"TOKEN_EXPIRE_TIME" envDefault:"72h"`
	PrivateKeyPath  string `env:"AUTH_PRIVATE_KEY_PATH"`
	PublicKeyPath   string `env:"AUTH_PUBLIC_KEY_PATH"`
}

type HistorianConfig struct {
	BatchSize int `env:"HISTORIAN_BATCH_SIZE" envDefault:"20"`
	FlushMs   int `env:"HISTORIAN_FLUSH_MS" envDefault:"500"`
}

// FlushDelay is the historian's periodic flush interval.
func (h HistorianConfig) FlushDelay() time.Duration {
	return time.Duration(h.FlushMs) * time.Millisecond
}

// Load parses Config from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Game.MaxPlayers < 2 {
		return Config{}, fmt.Errorf("MAX_PLAYERS must be at least 2, got %d", cfg.Game.MaxPlayers)
	}
	return cfg, nil
}

// NewLogger builds the process logger at the configured level, falling back
// to info for unknown levels.
func (c Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		logger.WithField("level", c.LogLevel).Warn("Unknown log level, using info")
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

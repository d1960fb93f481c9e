package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

const (
	DefaultConfigPath        = "config.toml"
	DefaultHTTPAddr          = ":8080"
	DefaultPGHost            = "127.0.0.1"
	DefaultPGPort            = 5432
	DefaultPGUser            = "postgres"
	DefaultPGDatabase        = "chatrelay"
	DefaultPGSSLMode         = "disable"
	DefaultRedisAddr         = "127.0.0.1:6379"
	DefaultPollSchedule      = "@every 30s"
	DefaultPollLimit         = 100
	DefaultPollTimeout       = 10
	DefaultAIBaseURL         = "http://127.0.0.1:8090"
	DefaultAIModel           = "gpt-4o-mini"
	DefaultAITimeoutSeconds  = 20
	DefaultVisitorLimit      = 50
	DefaultVisitorWindowSecs = 60
)

type Config struct {
	Log       LogConfig       `toml:"log"`
	Server    ServerConfig    `toml:"server"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	Telegram  TelegramConfig  `toml:"telegram"`
	AI        AIConfig        `toml:"ai"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type PostgresConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Database string `toml:"database"`
	SSLMode  string `toml:"sslmode"`
}

// DSN renders the pgx connection string.
func (c PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type TelegramConfig struct {
	// PollSchedule is a cron spec for the update poller in serve mode.
	PollSchedule string `toml:"poll_schedule"`
	// PollLimit caps updates fetched per getUpdates call.
	PollLimit int `toml:"poll_limit"`
	// PollTimeout is the long-poll timeout in seconds.
	PollTimeout int `toml:"poll_timeout"`
}

type AIConfig struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type RateLimitConfig struct {
	// VisitorMessages is the number of messages a visitor session may send
	// within VisitorWindowSeconds.
	VisitorMessages      int `toml:"visitor_messages"`
	VisitorWindowSeconds int `toml:"visitor_window_seconds"`
}

func Load(path string) (Config, error) {
	cfg := Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Server: ServerConfig{
			Addr: DefaultHTTPAddr,
		},
		Postgres: PostgresConfig{
			Host:     DefaultPGHost,
			Port:     DefaultPGPort,
			User:     DefaultPGUser,
			Database: DefaultPGDatabase,
			SSLMode:  DefaultPGSSLMode,
		},
		Redis: RedisConfig{
			Addr: DefaultRedisAddr,
		},
		Telegram: TelegramConfig{
			PollSchedule: DefaultPollSchedule,
			PollLimit:    DefaultPollLimit,
			PollTimeout:  DefaultPollTimeout,
		},
		AI: AIConfig{
			BaseURL:        DefaultAIBaseURL,
			Model:          DefaultAIModel,
			TimeoutSeconds: DefaultAITimeoutSeconds,
		},
		RateLimit: RateLimitConfig{
			VisitorMessages:      DefaultVisitorLimit,
			VisitorWindowSeconds: DefaultVisitorWindowSecs,
		},
	}

	if path == "" {
		path = DefaultConfigPath
	}

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

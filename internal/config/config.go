package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server settings. Values come from an optional YAML file with
// environment variable overrides on top; everything has a usable default so
// the server starts with no configuration at all.
type Config struct {
	// Addr is the listen address for the HTTP/websocket server.
	Addr string `yaml:"addr"`

	// AllowedOrigins are the frontend origins allowed by CORS. Empty means
	// allow all (development).
	AllowedOrigins []string `yaml:"allowed_origins"`

	Game  GameConfig  `yaml:"game"`
	Redis RedisConfig `yaml:"redis"`
	NATS  NATSConfig  `yaml:"nats"`

	// Storage selects the player directory backend: "postgres" or "memory".
	Storage string `yaml:"storage"`
}

// GameConfig holds the session timing and scoring defaults.
type GameConfig struct {
	// DefaultTimeLimitSec is used when a pushed question carries no time limit.
	DefaultTimeLimitSec int `yaml:"default_time_limit_secs"`
	// GraceWindowSec is the tolerance window after time-up during which
	// in-flight answers are still credited.
	GraceWindowSec int `yaml:"grace_window_secs"`
	// DefaultPoints is credited when a question carries no point value.
	DefaultPoints int `yaml:"default_points"`
	// RankingSize caps the leaderboard length.
	RankingSize int `yaml:"ranking_size"`
}

// RedisConfig enables the redis ranking mirror when Addr is set.
type RedisConfig struct {
	Addr string `yaml:"addr"`
}

// NATSConfig enables the outbound event relay when URL is set.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:    ":8080",
		Storage: "postgres",
		Game: GameConfig{
			DefaultTimeLimitSec: 10,
			GraceWindowSec:      3,
			DefaultPoints:       10,
			RankingSize:         10,
		},
	}
}

// Load reads the YAML file at path (if non-empty) over the defaults, then
// applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.Addr = getEnv("TRIVIA_ADDR", cfg.Addr)
	cfg.Storage = getEnv("TRIVIA_STORAGE", cfg.Storage)
	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.Game.GraceWindowSec = getEnvAsInt("TRIVIA_GRACE_WINDOW_SECS", cfg.Game.GraceWindowSec)
	cfg.Game.DefaultTimeLimitSec = getEnvAsInt("TRIVIA_TIME_LIMIT_SECS", cfg.Game.DefaultTimeLimitSec)

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// DealerConfig holds all configuration for the dealer
type DealerConfig struct {
	DealerName    string
	TCPPort       int
	OfferPort     int
	OfferAddr     string
	OfferInterval time.Duration
	IdleTimeout   time.Duration
	HTTPPort      int
	RedisURL      string
	NATSURL       string
	LogLevel      slog.Level
}

// PlayerConfig holds all configuration for the player client
type PlayerConfig struct {
	PlayerName  string
	OfferPort   int
	IdleTimeout time.Duration
	Auto        bool
	Rounds      int
	LogLevel    slog.Level
}

// LoadDealer loads dealer configuration from environment variables
func LoadDealer() *DealerConfig {
	return &DealerConfig{
		DealerName:    getEnv("DEALER_NAME", "TeamIronMan"),
		TCPPort:       getEnvAsInt("DEALER_TCP_PORT", 0),
		OfferPort:     getEnvAsInt("OFFER_PORT", 13122),
		OfferAddr:     getEnv("OFFER_ADDR", "255.255.255.255"),
		OfferInterval: getEnvAsDuration("OFFER_INTERVAL", time.Second),
		IdleTimeout:   getEnvAsDuration("SESSION_IDLE_TIMEOUT", 60*time.Second),
		HTTPPort:      getEnvAsInt("HTTP_PORT", 8081),
		RedisURL:      getEnv("REDIS_URL", ""),
		NATSURL:       getEnv("NATS_URL", ""),
		LogLevel:      getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// LoadPlayer loads player configuration from environment variables
func LoadPlayer() *PlayerConfig {
	return &PlayerConfig{
		PlayerName:  getEnv("PLAYER_NAME", "Joker"),
		OfferPort:   getEnvAsInt("OFFER_PORT", 13122),
		IdleTimeout: getEnvAsDuration("SESSION_IDLE_TIMEOUT", 60*time.Second),
		Auto:        getEnvAsBool("PLAYER_AUTO", false),
		Rounds:      getEnvAsInt("PLAYER_ROUNDS", 3),
		LogLevel:    getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("90s") or plain seconds ("90").
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(value)); err != nil {
		return defaultValue
	}
	return level
}

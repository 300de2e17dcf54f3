// Package config provides centralized configuration management.
// This is the SINGLE SOURCE OF TRUTH for server, loop and file settings.
// Combat numbers live in the tuning document, not here.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// =============================================================================
// LOOP CONFIGURATION
// =============================================================================

// LoopConfig controls the real-time engine loop.
type LoopConfig struct {
	TickRate int   // Simulation steps per second
	Seed     int64 // RNG seed; 0 picks a time-based seed
}

// DefaultLoop returns the default loop configuration.
func DefaultLoop() LoopConfig {
	return LoopConfig{
		TickRate: 60,
	}
}

// LoopFromEnv returns loop configuration with environment variable overrides.
func LoopFromEnv() LoopConfig {
	cfg := DefaultLoop()

	if tps := getEnvInt("TICK_RATE", 0); tps > 0 {
		cfg.TickRate = tps
	}
	if seed := getEnvInt64("SEED", 0); seed != 0 {
		cfg.Seed = seed
	}

	return cfg
}

// =============================================================================
// FILE PATHS
// =============================================================================

// PathsConfig holds the files the server reads and writes.
type PathsConfig struct {
	Tuning    string // Tuning overlay YAML; empty uses the embedded defaults
	HighScore string // High score JSON
	EventLog  string // JSON-lines event journal; empty disables it
}

// DefaultPaths returns the default file locations.
func DefaultPaths() PathsConfig {
	return PathsConfig{
		HighScore: "highscore.json",
		EventLog:  "events.jsonl",
	}
}

// PathsFromEnv returns paths with environment variable overrides.
func PathsFromEnv() PathsConfig {
	cfg := DefaultPaths()

	cfg.Tuning = getEnv("TUNING_PATH", cfg.Tuning)
	cfg.HighScore = getEnv("HIGHSCORE_PATH", cfg.HighScore)
	if v, ok := os.LookupEnv("EVENT_LOG_PATH"); ok {
		cfg.EventLog = v
	}

	return cfg
}

// =============================================================================
// SERVER CONFIGURATION
// =============================================================================

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port              int
	CORSOrigins       []string // nil keeps the loopback defaults
	OperatorToken     string   // Empty leaves operator routes open
	SecureCookie      bool
	RequestsPerSecond float64
	Burst             int
	BroadcastInterval time.Duration
}

// DefaultServer returns the default server configuration.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Port:              8080,
		RequestsPerSecond: 30,
		Burst:             60,
		BroadcastInterval: 50 * time.Millisecond, // 20 pushes per second
	}
}

// ServerFromEnv returns server configuration with environment variable overrides.
func ServerFromEnv() ServerConfig {
	cfg := DefaultServer()

	if p := getEnvInt("PORT", 0); p > 0 {
		cfg.Port = p
	}
	if origins := getEnv("CORS_ORIGINS", ""); origins != "" {
		cfg.CORSOrigins = splitList(origins)
	}
	cfg.OperatorToken = os.Getenv("OPERATOR_TOKEN")
	cfg.SecureCookie = os.Getenv("SECURE_COOKIE") == "true"
	if rps := getEnvFloat("RATE_LIMIT_RPS", 0); rps > 0 {
		cfg.RequestsPerSecond = rps
	}
	if b := getEnvInt("RATE_LIMIT_BURST", 0); b > 0 {
		cfg.Burst = b
	}
	if ms := getEnvInt("BROADCAST_INTERVAL_MS", 0); ms > 0 {
		cfg.BroadcastInterval = time.Duration(ms) * time.Millisecond
	}

	return cfg
}

// =============================================================================
// RENDER CONFIGURATION
// =============================================================================

// RenderConfig holds the debug frame renderer settings.
type RenderConfig struct {
	Enabled  bool
	Width    int
	Height   int
	FontPath string // Empty searches the usual system font locations
}

// DefaultRender returns the default render configuration.
func DefaultRender() RenderConfig {
	return RenderConfig{
		Enabled: true,
		Width:   960,
		Height:  540,
	}
}

// RenderFromEnv returns render configuration with environment variable overrides.
func RenderFromEnv() RenderConfig {
	cfg := DefaultRender()

	if os.Getenv("RENDER_ENABLED") == "false" {
		cfg.Enabled = false
	}
	if w := getEnvInt("RENDER_WIDTH", 0); w > 0 {
		cfg.Width = w
	}
	if h := getEnvInt("RENDER_HEIGHT", 0); h > 0 {
		cfg.Height = h
	}
	cfg.FontPath = getEnv("FONT_PATH", cfg.FontPath)

	return cfg
}

// =============================================================================
// OBSERVABILITY CONFIGURATION
// =============================================================================

// ObservabilityConfig holds the debug server settings.
type ObservabilityConfig struct {
	DebugEnabled  bool
	DebugAddr     string
	BasicAuthUser string
	BasicAuthPass string
}

// DefaultObservability returns the default observability configuration.
func DefaultObservability() ObservabilityConfig {
	return ObservabilityConfig{
		DebugEnabled: true,
		DebugAddr:    "127.0.0.1:6060",
	}
}

// ObservabilityFromEnv returns observability configuration with environment variable overrides.
func ObservabilityFromEnv() ObservabilityConfig {
	cfg := DefaultObservability()

	if os.Getenv("DISABLE_DEBUG_SERVER") == "true" {
		cfg.DebugEnabled = false
	}
	cfg.DebugAddr = getEnv("DEBUG_ADDR", cfg.DebugAddr)
	cfg.BasicAuthUser = os.Getenv("DEBUG_USER")
	cfg.BasicAuthPass = os.Getenv("DEBUG_PASS")

	return cfg
}

// =============================================================================
// COMPLETE APP CONFIGURATION
// =============================================================================

// AppConfig holds the complete application configuration.
type AppConfig struct {
	Loop          LoopConfig
	Paths         PathsConfig
	Server        ServerConfig
	Render        RenderConfig
	Observability ObservabilityConfig
}

// Load returns the complete configuration with environment overrides.
func Load() AppConfig {
	return AppConfig{
		Loop:          LoopFromEnv(),
		Paths:         PathsFromEnv(),
		Server:        ServerFromEnv(),
		Render:        RenderFromEnv(),
		Observability: ObservabilityFromEnv(),
	}
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvInt64(key string, defaultVal int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

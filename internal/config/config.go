// Package config loads runtime configuration from the environment and the
// data directory.
//
// Settings come from a .env file (if present) and process environment
// variables, matching how the service is deployed; the JWT signing secret
// is generated once and persisted to server_config.json under the data
// directory so tokens survive restarts.
package config

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr      string // Address to listen on.
	DataDir       string // Directory holding db.json and server_config.json.
	SiteName      string
	LogLevel      string // debug, info, warn, error.
	AdminUsername string // Seed admin credentials, used only on first start.
	AdminPassword string
	RateLimitRPM  int // API requests per minute per client IP, 0 disables.
	RateBurst     int
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or
// defaults. godotenv does not override variables already set in the
// environment.
func Load() *Config {
	_ = godotenv.Load()
	return &Config{
		HTTPAddr:      getEnv("HTTP_ADDR", "localhost:3000"),
		DataDir:       getEnv("DATA_DIR", "./data"),
		SiteName:      getEnv("SITE_NAME", "MusicMark"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		AdminUsername: getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword: getEnv("ADMIN_PASSWORD", "admin123"),
		RateLimitRPM:  getEnvInt("RATE_LIMIT_RPM", 300),
		RateBurst:     getEnvInt("RATE_LIMIT_BURST", 30),
	}
}

// ServerConfig holds settings persisted under the data directory.
type ServerConfig struct {
	JWTSecret           []byte `json:"jwt_secret"`
	MaxRequestBodyBytes int64  `json:"max_request_body_bytes"`
}

// LoadServerConfig loads configuration from dataDir/server_config.json.
// Creates the file with defaults if it doesn't exist. Auto-generates
// JWTSecret if empty.
func LoadServerConfig(dataDir string) (*ServerConfig, error) {
	path := filepath.Join(dataDir, "server_config.json")
	cfg := ServerConfig{MaxRequestBodyBytes: 1 << 20}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path is constructed from dataDir, not user input
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read server_config.json: %w", err)
		}
	} else if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse server_config.json: %w", err)
	}

	modified := err != nil // File was missing.
	if len(cfg.JWTSecret) == 0 {
		cfg.JWTSecret = make([]byte, 32)
		if _, err := rand.Read(cfg.JWTSecret); err != nil {
			return nil, fmt.Errorf("failed to generate JWT secret: %w", err)
		}
		modified = true
	}
	if cfg.MaxRequestBodyBytes <= 0 {
		cfg.MaxRequestBodyBytes = 1 << 20
	}

	if modified {
		if err := cfg.save(path); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func (c *ServerConfig) save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal server config: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write server_config.json: %w", err)
	}
	return nil
}

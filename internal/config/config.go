// Package config provides client configuration management with support for command-line flags, environment variables, and .env files.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Token store kinds.
const (
	TokenStoreFile   = "file"
	TokenStoreBadger = "badger"
)

// Config holds the client configuration.
type Config struct {
	App     AppConfig
	Logger  LoggerConfig
	API     APIConfig
	Session SessionConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
	File  string // Optional rotating log file
}

// APIConfig holds settings for talking to the DocShelf server.
type APIConfig struct {
	BaseURL   string
	Timeout   time.Duration // 0 disables the client-side timeout
	RateLimit float64       // requests per second per endpoint group
	RateBurst int
}

// SessionConfig holds token persistence settings.
type SessionConfig struct {
	StateDir   string
	TokenStore string // file or badger
}

// Overrides carries values given on the command line. Empty fields fall
// through to the environment.
type Overrides struct {
	Env        string
	LogLevel   string
	LogFile    string
	APIURL     string
	Timeout    string
	StateDir   string
	TokenStore string
	EnvFile    string
}

// LoadConfig loads configuration from multiple sources with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
func LoadConfig(o Overrides) (*Config, error) {
	envFile := o.EnvFile
	if envFile == "" {
		envFile = ".env"
	}
	// Missing .env is fine; godotenv never overrides variables already set.
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(o.Env, "ENV", "development"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(o.LogLevel, "LOG_LEVEL", "info"),
			File:  getConfigValue(o.LogFile, "LOG_FILE", ""),
		},
		API: APIConfig{
			BaseURL:   strings.TrimRight(getConfigValue(o.APIURL, "DOCSHELF_API_URL", "http://localhost:8000"), "/"),
			RateLimit: getFloatConfigValue("", "API_RATE_LIMIT", 10),
			RateBurst: getIntConfigValue("", "API_RATE_BURST", 20),
		},
		Session: SessionConfig{
			StateDir:   getConfigValue(o.StateDir, "DOCSHELF_STATE_DIR", ""),
			TokenStore: strings.ToLower(getConfigValue(o.TokenStore, "TOKEN_STORE", TokenStoreFile)),
		},
	}

	timeoutStr := getConfigValue(o.Timeout, "API_TIMEOUT", "0s")
	timeout, err := time.ParseDuration(timeoutStr)
	if err != nil {
		return nil, fmt.Errorf("invalid api timeout %q: %w", timeoutStr, err)
	}
	cfg.API.Timeout = timeout

	if err := cfg.expandStateDir(); err != nil {
		return nil, fmt.Errorf("invalid state dir: %w", err)
	}
	if cfg.Logger.File != "" {
		if cfg.Logger.File, err = expandPath(cfg.Logger.File, ""); err != nil {
			return nil, fmt.Errorf("invalid log file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required config values are present and valid.
func (c *Config) Validate() error {
	if c.App.Environment == "" {
		return errors.New("ENV is required")
	}

	validEnvs := map[string]bool{
		"development": true,
		"test":        true,
		"production":  true,
	}
	if !validEnvs[c.App.Environment] {
		return fmt.Errorf("invalid environment: %s (must be development, test, or production)", c.App.Environment)
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.Logger.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Logger.Level)
	}

	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid api url: %q (must be an absolute http or https URL)", c.API.BaseURL)
	}

	if c.API.Timeout < 0 {
		return fmt.Errorf("invalid api timeout: %s (must not be negative)", c.API.Timeout)
	}
	if c.API.RateLimit <= 0 || c.API.RateBurst <= 0 {
		return errors.New("api rate limit and burst must be positive")
	}

	if c.Session.TokenStore != TokenStoreFile && c.Session.TokenStore != TokenStoreBadger {
		return fmt.Errorf("invalid token store: %s (must be file or badger)", c.Session.TokenStore)
	}

	if c.Session.StateDir == "" {
		return errors.New("state dir cannot be empty after expansion")
	}

	return nil
}

// expandPath expands ~ and makes the path absolute.
// If path is empty and defaultPath is provided, uses the default.
func expandPath(path, defaultPath string) (string, error) {
	if path == "" {
		return defaultPath, nil
	}

	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	if !filepath.IsAbs(path) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return "", fmt.Errorf("failed to get absolute path: %w", err)
		}
		path = absPath
	}

	return filepath.Clean(path), nil
}

// expandStateDir defaults the state dir to ~/.docshelf.
func (c *Config) expandStateDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	expanded, err := expandPath(c.Session.StateDir, filepath.Join(homeDir, ".docshelf"))
	if err != nil {
		return err
	}
	c.Session.StateDir = expanded
	return nil
}

// getConfigValue returns the first non-empty value from flag, env var, or default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if envValue := os.Getenv(envKey); envValue != "" {
		return envValue
	}
	return defaultValue
}

// getIntConfigValue returns an int from flag, env var, or default.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result int
	if _, err := fmt.Sscanf(strValue, "%d", &result); err != nil {
		return defaultValue
	}
	return result
}

// getFloatConfigValue returns a float from flag, env var, or default.
func getFloatConfigValue(flagValue, envKey string, defaultValue float64) float64 {
	strValue := getConfigValue(flagValue, envKey, "")
	if strValue == "" {
		return defaultValue
	}
	var result float64
	if _, err := fmt.Sscanf(strValue, "%g", &result); err != nil {
		return defaultValue
	}
	return result
}

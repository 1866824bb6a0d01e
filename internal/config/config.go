// Package config provides application configuration management with support for environment variables, command-line flags, and .env files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration.
type Config struct {
	App    AppConfig
	Logger LoggerConfig
	Server ServerConfig
	Lookup LookupConfig
	Import ImportConfig
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	Environment string
	// DataPath is the base directory for the database and covers (default: ~/Bookshelf).
	DataPath string
}

// LoggerConfig holds logging configuration.
type LoggerConfig struct {
	Level string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string        // Server port (default: 8080)
	ReadTimeout  time.Duration // HTTP read timeout (default: 15s)
	WriteTimeout time.Duration // HTTP write timeout (default: 15s)
	IdleTimeout  time.Duration // HTTP idle timeout (default: 60s)
}

// LookupConfig holds metadata lookup configuration.
type LookupConfig struct {
	Timeout time.Duration // per-lookup deadline (default: 10s)
	Retries int           // retry attempts on transient failures (default: 2)
	Covers  bool          // fetch cover images for resolved books (default: true)
}

// ImportConfig holds import pipeline configuration.
type ImportConfig struct {
	Workers      int  // concurrent file imports per folder run (default: 4)
	ParserPages  int  // PDF pages scanned for identifiers (default: 10)
	ParserDocs   int  // EPUB documents scanned for identifiers (default: 10)
	WatchEnabled bool // auto-import files appearing in active folders (default: true)
}

// DatabasePath returns the location of the sqlite database file.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.App.DataPath, "bookshelf.db")
}

// CoversPath returns the directory cover images are stored in.
func (c *Config) CoversPath() string {
	return filepath.Join(c.App.DataPath, "covers")
}

// LoadConfig loads configuration with precedence:
// 1. Command-line flags (highest priority).
// 2. Environment variables.
// 3. .env file.
// 4. Default values (lowest priority).
// The remaining positional arguments are returned for the caller.
func LoadConfig(args []string) (*Config, []string, error) {
	fs := newFlagSet(args)
	if err := fs.parse(); err != nil {
		return nil, nil, err
	}

	// Load .env file if it exists (silently ignore if not found).
	_ = loadEnvFile(fs.envFile)

	cfg := &Config{
		App: AppConfig{
			Environment: getConfigValue(fs.env, "ENV", "development"),
			DataPath:    getConfigValue(fs.dataPath, "DATA_PATH", "~/Bookshelf"),
		},
		Logger: LoggerConfig{
			Level: getConfigValue(fs.logLevel, "LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Port: getConfigValue(fs.port, "SERVER_PORT", "8080"),
		},
		Lookup: LookupConfig{
			Retries: getIntConfigValue(fs.lookupRetries, "LOOKUP_RETRIES", 2),
			Covers:  getBoolConfigValue(fs.covers, "FETCH_COVERS", true),
		},
		Import: ImportConfig{
			Workers:      getIntConfigValue(fs.importWorkers, "IMPORT_WORKERS", 4),
			ParserPages:  getIntConfigValue(fs.parserPages, "PARSER_PAGES", 10),
			ParserDocs:   getIntConfigValue(fs.parserDocs, "PARSER_DOCS", 10),
			WatchEnabled: getBoolConfigValue(fs.watch, "WATCH_FOLDERS", true),
		},
	}

	durations := []struct {
		flagValue string
		envKey    string
		def       string
		dst       *time.Duration
	}{
		{fs.readTimeout, "SERVER_READ_TIMEOUT", "15s", &cfg.Server.ReadTimeout},
		{fs.writeTimeout, "SERVER_WRITE_TIMEOUT", "15s", &cfg.Server.WriteTimeout},
		{fs.idleTimeout, "SERVER_IDLE_TIMEOUT", "60s", &cfg.Server.IdleTimeout},
		{fs.lookupTimeout, "LOOKUP_TIMEOUT", "10s", &cfg.Lookup.Timeout},
	}
	for _, d := range durations {
		raw := getConfigValue(d.flagValue, d.envKey, d.def)
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid %s %q: %w", strings.ToLower(d.envKey), raw, err)
		}
		*d.dst = parsed
	}

	expanded, err := expandPath(cfg.App.DataPath)
	if err != nil {
		return nil, nil, fmt.Errorf("expand data path: %w", err)
	}
	cfg.App.DataPath = expanded

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	return cfg, fs.Args(), nil
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.App.DataPath == "" {
		return fmt.Errorf("data path must not be empty")
	}
	if _, err := strconv.Atoi(c.Server.Port); err != nil {
		return fmt.Errorf("invalid server port %q", c.Server.Port)
	}
	if c.Import.Workers < 1 {
		return fmt.Errorf("import workers must be at least 1, got %d", c.Import.Workers)
	}
	if c.Import.ParserPages < 1 || c.Import.ParserDocs < 1 {
		return fmt.Errorf("parser page and document limits must be at least 1")
	}
	if c.Lookup.Retries < 0 {
		return fmt.Errorf("lookup retries must not be negative, got %d", c.Lookup.Retries)
	}
	return nil
}

// EnsureDataDirs creates the data and covers directories.
func (c *Config) EnsureDataDirs() error {
	if err := os.MkdirAll(c.App.DataPath, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.MkdirAll(c.CoversPath(), 0o755); err != nil {
		return fmt.Errorf("create covers dir: %w", err)
	}
	return nil
}

// getConfigValue returns the first non-empty value among flag, env var, default.
func getConfigValue(flagValue, envKey, defaultValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	return defaultValue
}

// getBoolConfigValue parses a boolean with the same precedence.
func getBoolConfigValue(flagValue, envKey string, defaultValue bool) bool {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue
	}
	return b
}

// getIntConfigValue parses an integer with the same precedence.
func getIntConfigValue(flagValue, envKey string, defaultValue int) int {
	raw := getConfigValue(flagValue, envKey, "")
	if raw == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue
	}
	return n
}

// loadEnvFile reads KEY=VALUE pairs into the process environment.
// Existing environment variables are not overwritten.
func loadEnvFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
	return scanner.Err()
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return filepath.Clean(path), nil
}

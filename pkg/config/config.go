// Copyright © 2026 Teradata Corporation - All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultConfigFileName is the base name of the config file (heddle.yaml).
const DefaultConfigFileName = "heddle"

// Config holds all configuration for the heddle orchestrator.
// Priority: CLI flags > config file > env vars > defaults
type Config struct {
	// DataDir is the heddle data directory (computed from HEDDLE_DATA_DIR or ~/.heddle).
	// Set during config initialization; not loaded from the config file.
	DataDir string `mapstructure:"-"`

	// Session lifecycle configuration
	Session SessionConfig `mapstructure:"session"`

	// LLM provider configuration
	LLM LLMConfig `mapstructure:"llm"`

	// Skill discovery configuration
	Skills SkillsConfig `mapstructure:"skills"`

	// Python sandbox configuration
	Sandbox SandboxConfig `mapstructure:"sandbox"`

	// Execution history store configuration
	Storage StorageConfig `mapstructure:"storage"`

	// Conversation history configuration
	History HistoryConfig `mapstructure:"history"`

	// Background maintenance configuration
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`

	// Logging configuration
	Log LogConfig `mapstructure:"log"`

	// DevMode enables development logging and verbose error detail.
	DevMode bool `mapstructure:"dev_mode"`
}

// SessionConfig holds session table and task execution limits.
// Timeouts are milliseconds to match the SESSION_TIMEOUT / TASK_TIMEOUT
// environment contract.
type SessionConfig struct {
	// TimeoutMs is the idle time before a session is evicted (default: 1800000 = 30m)
	TimeoutMs int64 `mapstructure:"timeout"`

	// MaxSessions is the maximum number of live sessions (default: 1000)
	MaxSessions int `mapstructure:"max_sessions"`

	// TaskTimeoutMs caps a single task execution (default: 60000 = 1m)
	TaskTimeoutMs int64 `mapstructure:"task_timeout"`

	// MaxIterations is the per-task iteration bound (informational, default: 10)
	MaxIterations int `mapstructure:"max_iterations"`

	// SweepIntervalMs is the idle-session sweeper tick (default: 60000 = 1m)
	SweepIntervalMs int64 `mapstructure:"sweep_interval"`
}

// Timeout returns the idle session timeout as a duration.
func (c SessionConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// TaskTimeout returns the per-task timeout as a duration.
func (c SessionConfig) TaskTimeout() time.Duration {
	return time.Duration(c.TaskTimeoutMs) * time.Millisecond
}

// SweepInterval returns the sweeper tick as a duration.
func (c SessionConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMs) * time.Millisecond
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	// Provider selects the wire dialect: anthropic-like, openai-compatible
	Provider string `mapstructure:"provider"`

	// Model overrides the provider's default model
	Model string `mapstructure:"model"`

	// BaseURL overrides the provider's default endpoint (proxies, self-hosted)
	BaseURL string `mapstructure:"base_url"`

	// API keys (from CLI/env only - never commit to config files)
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`

	// Common generation parameters
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// Timeout returns the HTTP client timeout as a duration.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SkillsConfig holds skill discovery configuration.
type SkillsConfig struct {
	// Dir is the skills root scanned for manifest.yaml files
	Dir string `mapstructure:"dir"`

	// Watch enables fsnotify hot-reload of the skills directory
	Watch bool `mapstructure:"watch"`
}

// SandboxConfig holds Python subprocess configuration.
type SandboxConfig struct {
	// PythonPath is the interpreter executable (default: python3)
	PythonPath string `mapstructure:"python_path"`

	// Workspace is where generated scripts and debug copies are written
	Workspace string `mapstructure:"workspace"`

	// SkillsRoot is prepended to the subprocess sys.path (defaults to skills.dir)
	SkillsRoot string `mapstructure:"skills_root"`

	// TimeoutMs caps any single execution regardless of the caller's timeout
	// (default: 300000 = 5m)
	TimeoutMs int64 `mapstructure:"timeout_ms"`

	// MaxActive is the concurrent execution limit (default: 1000)
	MaxActive int `mapstructure:"max_active"`
}

// Timeout returns the sandbox hard cap as a duration.
func (c SandboxConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

// StorageConfig holds execution history store configuration.
type StorageConfig struct {
	// Backend selects the store: memory, sqlite, postgres
	Backend string `mapstructure:"backend"`

	// Path is the SQLite database file (sqlite backend)
	Path string `mapstructure:"path"`

	// DSN is the Postgres connection string (postgres backend)
	DSN string `mapstructure:"dsn"`
}

// HistoryConfig holds conversation history configuration.
type HistoryConfig struct {
	// Window is how many recent turns are surfaced to the planner (default: 5)
	Window int `mapstructure:"window"`
}

// MaintenanceConfig holds background maintenance configuration.
type MaintenanceConfig struct {
	// DebugRetentionHours is how long failed-run debug scripts are kept (default: 24)
	DebugRetentionHours int `mapstructure:"debug_retention_hours"`
}

// DebugRetention returns the debug file retention as a duration.
func (c MaintenanceConfig) DebugRetention() time.Duration {
	return time.Duration(c.DebugRetentionHours) * time.Hour
}

// LogConfig holds logging configuration.
type LogConfig struct {
	// Level is the minimum log level: debug, info, warn, error
	Level string `mapstructure:"level"`
}

// Load loads configuration from multiple sources with proper priority:
// 1. Command line flags (highest priority)
// 2. Config file
// 3. Environment variables
// 4. Defaults (lowest priority)
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		// Use config file from flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Config search paths (in order of priority)
		viper.AddConfigPath(GetDataDir()) // heddle data directory (respects HEDDLE_DATA_DIR)
		viper.AddConfigPath(".")          // Current directory
		viper.AddConfigPath("/etc/heddle/")
		viper.SetConfigName(DefaultConfigFileName) // heddle.yaml
		viper.SetConfigType("yaml")
	}

	// Read config file (if it exists)
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error occurred
			return nil, fmt.Errorf("error reading config file %s: %w", viper.ConfigFileUsed(), err)
		}
		// Config file not found; using defaults + env vars + flags
	}

	// Bind environment variables
	viper.SetEnvPrefix("HEDDLE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	bindEnvAliases()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Set DataDir from environment or default
	// This must be done after unmarshal since it's not loaded from config file
	config.DataDir = GetDataDir()

	return &config, nil
}

// bindEnvAliases binds the historical unprefixed environment variable names
// alongside their HEDDLE_-prefixed forms. Deployments predating the config
// file set these directly.
func bindEnvAliases() {
	aliases := [][]string{
		{"session.timeout", "HEDDLE_SESSION_TIMEOUT", "SESSION_TIMEOUT"},
		{"session.max_sessions", "HEDDLE_MAX_SESSIONS", "MAX_SESSIONS"},
		{"session.task_timeout", "HEDDLE_TASK_TIMEOUT", "TASK_TIMEOUT"},
		{"session.max_iterations", "HEDDLE_MAX_ITERATIONS", "MAX_ITERATIONS"},
		{"llm.provider", "HEDDLE_LLM_PROVIDER", "DEFAULT_LLM_PROVIDER"},
		{"llm.model", "HEDDLE_LLM_MODEL", "DEFAULT_LLM_MODEL"},
		{"llm.base_url", "HEDDLE_LLM_BASE_URL", "LLM_BASE_URL"},
		{"llm.anthropic_api_key", "HEDDLE_LLM_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY"},
		{"llm.openai_api_key", "HEDDLE_LLM_OPENAI_API_KEY", "OPENAI_API_KEY"},
		{"sandbox.python_path", "HEDDLE_SANDBOX_PYTHON_PATH", "PYTHON_PATH"},
		{"sandbox.workspace", "HEDDLE_SANDBOX_WORKSPACE", "SANDBOX_WORKSPACE"},
	}
	for _, a := range aliases {
		_ = viper.BindEnv(a...)
	}
}

// setDefaults sets default configuration values.
func setDefaults() {
	// Session defaults (timeouts in milliseconds)
	viper.SetDefault("session.timeout", 1800000) // 30 minutes
	viper.SetDefault("session.max_sessions", 1000)
	viper.SetDefault("session.task_timeout", 60000) // 1 minute
	viper.SetDefault("session.max_iterations", 10)
	viper.SetDefault("session.sweep_interval", 60000) // 1 minute

	// LLM defaults
	viper.SetDefault("llm.provider", "anthropic-like")
	viper.SetDefault("llm.model", "")    // provider default
	viper.SetDefault("llm.base_url", "") // provider default
	viper.SetDefault("llm.anthropic_api_key", "")
	viper.SetDefault("llm.openai_api_key", "")
	viper.SetDefault("llm.max_tokens", 2000)
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.timeout_seconds", 60)

	// Skills defaults (use heddle data directory)
	viper.SetDefault("skills.dir", GetSubDir("skills"))
	viper.SetDefault("skills.watch", false)

	// Sandbox defaults
	viper.SetDefault("sandbox.python_path", "python3")
	viper.SetDefault("sandbox.workspace", filepath.Join(os.TempDir(), "heddle-sandbox"))
	viper.SetDefault("sandbox.skills_root", "") // defaults to skills.dir at wiring time
	viper.SetDefault("sandbox.timeout_ms", 300000)
	viper.SetDefault("sandbox.max_active", 1000)

	// Storage defaults
	viper.SetDefault("storage.backend", "memory")
	viper.SetDefault("storage.path", filepath.Join(GetDataDir(), "heddle.db"))
	viper.SetDefault("storage.dsn", "")

	// History defaults
	viper.SetDefault("history.window", 5)

	// Maintenance defaults
	viper.SetDefault("maintenance.debug_retention_hours", 24)

	// Logging defaults
	viper.SetDefault("log.level", "info")
	viper.SetDefault("dev_mode", false)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Session.MaxSessions < 1 {
		return fmt.Errorf("session.max_sessions must be at least 1, got %d", c.Session.MaxSessions)
	}
	if c.Session.TimeoutMs <= 0 {
		return fmt.Errorf("session.timeout must be positive, got %d", c.Session.TimeoutMs)
	}
	if c.Session.TaskTimeoutMs <= 0 {
		return fmt.Errorf("session.task_timeout must be positive, got %d", c.Session.TaskTimeoutMs)
	}
	if c.Session.SweepIntervalMs <= 0 {
		return fmt.Errorf("session.sweep_interval must be positive, got %d", c.Session.SweepIntervalMs)
	}
	if c.Sandbox.TimeoutMs <= 0 {
		return fmt.Errorf("sandbox.timeout_ms must be positive, got %d", c.Sandbox.TimeoutMs)
	}

	if c.LLM.Provider == "" {
		return fmt.Errorf("llm.provider is required")
	}

	switch c.Storage.Backend {
	case "memory":
	case "sqlite":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for the sqlite backend")
		}
	case "postgres":
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unsupported storage backend: %s (must be memory, sqlite, or postgres)", c.Storage.Backend)
	}

	if c.History.Window < 1 {
		return fmt.Errorf("history.window must be at least 1, got %d", c.History.Window)
	}

	return nil
}

// Package config provides configuration management for acphost. It loads
// from environment variables, an optional config file, and built-in
// defaults, in that precedence order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the host.
type Config struct {
	Protocol ProtocolConfig `mapstructure:"protocol"`
	Timeouts TimeoutsConfig `mapstructure:"timeouts"`
	Registry RegistryConfig `mapstructure:"registry"`
	Sandbox  SandboxConfig  `mapstructure:"sandbox"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ProtocolConfig controls the ACP wire identity this host presents.
type ProtocolConfig struct {
	Version     int    `mapstructure:"version"`
	ClientName  string `mapstructure:"clientName"`
	ClientBuild string `mapstructure:"clientVersion"`
}

// TimeoutsConfig controls request/response and process lifecycle timeouts.
type TimeoutsConfig struct {
	RequestSeconds    int `mapstructure:"requestSeconds"`
	ConnectSeconds    int `mapstructure:"connectSeconds"`
	TerminateGraceMS  int `mapstructure:"terminateGraceMs"`
}

// RegistryConfig locates on-disk agent registry state: where custom
// adapter definitions and downloaded binaries live.
type RegistryConfig struct {
	DataDir        string `mapstructure:"dataDir"`
	CustomAgentsFile string `mapstructure:"customAgentsFile"`
	GitHubToken    string `mapstructure:"githubToken"`
}

// SandboxConfig holds default permission/terminal settings. pkg/acphost
// does not read this section: a session's security level and terminal
// policy come from acphost.LaunchOptions.
type SandboxConfig struct {
	SecurityLevel      string   `mapstructure:"securityLevel"` // strict, auto_accept_edits, trust
	TerminalEnabled    bool     `mapstructure:"terminalEnabled"`
	TerminalWhitelist  []string `mapstructure:"terminalWhitelist"`
	ChangeWindowSeconds int     `mapstructure:"changeWindowSeconds"`
}

// LoggingConfig holds the basic settings of internal/common/logger.Config
// (level, format, output path, rotate). Its mapstructure keys are
// camelCase where logger.Config's are snake_case, it has no rotation
// size/age limits, and nothing in this package converts it into a
// logger.Config.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
	Rotate     bool   `mapstructure:"rotate"`
}

func detectDefaultLogFormat() string {
	if env := os.Getenv("ACPHOST_ENV"); env == "production" {
		return "json"
	}
	return "text"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("protocol.version", 1)
	v.SetDefault("protocol.clientName", "acphost")
	v.SetDefault("protocol.clientVersion", "dev")

	v.SetDefault("timeouts.requestSeconds", 30)
	v.SetDefault("timeouts.connectSeconds", 15)
	v.SetDefault("timeouts.terminateGraceMs", 2000)

	v.SetDefault("registry.dataDir", defaultDataDir())
	v.SetDefault("registry.customAgentsFile", "agents.yaml")
	v.SetDefault("registry.githubToken", "")

	v.SetDefault("sandbox.securityLevel", "strict")
	v.SetDefault("sandbox.terminalEnabled", false)
	v.SetDefault("sandbox.terminalWhitelist", []string{})
	v.SetDefault("sandbox.changeWindowSeconds", 60)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stderr")
	v.SetDefault("logging.rotate", false)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".acphost"
	}
	return filepath.Join(home, ".acphost")
}

// Load reads configuration from ACPHOST_-prefixed environment variables,
// a config.yaml in the current directory or $HOME/.acphost, and defaults.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath behaves like Load but also searches configPath for a
// config.yaml.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ACPHOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.acphost")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func validate(cfg *Config) error {
	var errs []string

	if cfg.Timeouts.RequestSeconds <= 0 {
		errs = append(errs, "timeouts.requestSeconds must be positive")
	}
	switch cfg.Sandbox.SecurityLevel {
	case "strict", "auto_accept_edits", "trust":
	default:
		errs = append(errs, "sandbox.securityLevel must be one of: strict, auto_accept_edits, trust")
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

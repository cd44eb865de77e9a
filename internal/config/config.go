package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config defines server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Store    StoreConfig    `yaml:"store"`
	DB       DBConfig       `yaml:"db"`
	Log      LogConfig      `yaml:"log"`
	Narrator NarratorConfig `yaml:"narrator"`
	Game     GameConfig     `yaml:"game"`
	MCP      MCPConfig      `yaml:"mcp"`
}

type ServerConfig struct {
	Host string `yaml:"host" env:"RPSTAGE_SERVER_HOST"`
	Port int    `yaml:"port" env:"RPSTAGE_SERVER_PORT"`
}

// StoreConfig locates file snapshots. Unused when DB.Path is set.
type StoreConfig struct {
	Dir string `yaml:"dir" env:"RPSTAGE_STORE_DIR"`
	Key string `yaml:"key" env:"RPSTAGE_STORE_KEY"`
}

type DBConfig struct {
	Path string `yaml:"path" env:"RPSTAGE_DB_PATH"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"RPSTAGE_LOG_LEVEL"`
	Path  string `yaml:"path" env:"RPSTAGE_LOG_PATH"`
}

// NarratorConfig configures automatic narration. An empty APIKey disables it.
type NarratorConfig struct {
	APIKey      string        `yaml:"api_key" env:"RPSTAGE_NARRATOR_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"RPSTAGE_NARRATOR_BASE_URL"`
	Model       string        `yaml:"model" env:"RPSTAGE_NARRATOR_MODEL"`
	MaxTokens   int           `yaml:"max_tokens" env:"RPSTAGE_NARRATOR_MAX_TOKENS"`
	Temperature float64       `yaml:"temperature" env:"RPSTAGE_NARRATOR_TEMPERATURE"`
	Timeout     time.Duration `yaml:"timeout" env:"RPSTAGE_NARRATOR_TIMEOUT"`
	Persona     string        `yaml:"persona" env:"RPSTAGE_NARRATOR_PERSONA"`
	Author      string        `yaml:"author" env:"RPSTAGE_NARRATOR_AUTHOR"`
}

// Enabled reports whether narration can be requested.
func (n NarratorConfig) Enabled() bool {
	return n.APIKey != ""
}

type GameConfig struct {
	MaxChat      int           `yaml:"max_chat" env:"RPSTAGE_GAME_MAX_CHAT"`
	MaxOOC       int           `yaml:"max_ooc" env:"RPSTAGE_GAME_MAX_OOC"`
	SnapshotChat int           `yaml:"snapshot_chat" env:"RPSTAGE_GAME_SNAPSHOT_CHAT"`
	SnapshotOOC  int           `yaml:"snapshot_ooc" env:"RPSTAGE_GAME_SNAPSHOT_OOC"`
	SaveInterval time.Duration `yaml:"save_interval" env:"RPSTAGE_GAME_SAVE_INTERVAL"`
	RoundStep    time.Duration `yaml:"round_step" env:"RPSTAGE_GAME_ROUND_STEP"`
}

type MCPConfig struct {
	Enabled        bool          `yaml:"enabled" env:"RPSTAGE_MCP_ENABLED"`
	SessionTimeout time.Duration `yaml:"session_timeout" env:"RPSTAGE_MCP_SESSION_TIMEOUT"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 3000,
		},
		Store: StoreConfig{
			Dir: "data",
			Key: "rp",
		},
		Log: LogConfig{
			Level: "info",
		},
		Narrator: NarratorConfig{
			BaseURL:     "https://router.huggingface.co/v1/",
			Model:       "mistralai/Mistral-7B-Instruct-v0.2",
			MaxTokens:   500,
			Temperature: 0.8,
			Timeout:     30 * time.Second,
			Author:      "GM (AI)",
		},
		Game: GameConfig{
			MaxChat:      500,
			MaxOOC:       200,
			SnapshotChat: 100,
			SnapshotOOC:  50,
			SaveInterval: 60 * time.Second,
			RoundStep:    5 * time.Minute,
		},
		MCP: MCPConfig{
			Enabled:        true,
			SessionTimeout: 30 * time.Minute,
		},
	}
}

// Load reads configuration from defaults, an optional YAML file and
// environment variables, in that order.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("RPSTAGE_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	// Conventional names used by hosting platforms.
	if cfg.Narrator.APIKey == "" {
		cfg.Narrator.APIKey = os.Getenv("HF_TOKEN")
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c Config) validate() error {
	switch {
	case c.Server.Port <= 0 || c.Server.Port > 65535:
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	case c.Store.Key == "":
		return fmt.Errorf("store key is required")
	case c.Game.MaxChat <= 0 || c.Game.MaxOOC <= 0:
		return fmt.Errorf("log limits must be positive")
	case c.Game.SaveInterval <= 0:
		return fmt.Errorf("save interval must be positive")
	case c.Game.RoundStep < 0:
		return fmt.Errorf("round step must not be negative")
	case c.Narrator.Timeout <= 0:
		return fmt.Errorf("narrator timeout must be positive")
	}
	return nil
}

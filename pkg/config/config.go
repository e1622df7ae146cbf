package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/caarlos0/env/v11"
)

// FlexibleStringSlice is a []string that also accepts JSON numbers, so
// keyword lists can contain both "112" and 112.
type FlexibleStringSlice []string

func (f *FlexibleStringSlice) UnmarshalJSON(data []byte) error {
	// Try []string first
	var ss []string
	if err := json.Unmarshal(data, &ss); err == nil {
		*f = ss
		return nil
	}

	var raw []interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	result := make([]string, 0, len(raw))
	for _, v := range raw {
		switch val := v.(type) {
		case string:
			result = append(result, val)
		case float64:
			result = append(result, fmt.Sprintf("%.0f", val))
		default:
			result = append(result, fmt.Sprintf("%v", val))
		}
	}
	*f = result
	return nil
}

type Config struct {
	Server   ServerConfig   `json:"server"`
	Provider ProviderConfig `json:"provider"`
	Store    StoreConfig    `json:"store"`
	Intake   IntakeConfig   `json:"intake"`
	Chat     ChatConfig     `json:"chat"`
	Safety   SafetyConfig   `json:"safety"`
	Janitor  JanitorConfig  `json:"janitor"`
	Log      LogConfig      `json:"log"`
	mu       sync.RWMutex
}

type ServerConfig struct {
	Host string `json:"host" env:"SAHAYAK_SERVER_HOST"`
	Port int    `json:"port" env:"SAHAYAK_SERVER_PORT"`
}

type ProviderConfig struct {
	Name    string `json:"name" env:"SAHAYAK_PROVIDER_NAME"`
	APIKey  string `json:"api_key" env:"SAHAYAK_PROVIDER_API_KEY"`
	APIBase string `json:"api_base" env:"SAHAYAK_PROVIDER_API_BASE"`
	Model   string `json:"model" env:"SAHAYAK_PROVIDER_MODEL"`
	Proxy   string `json:"proxy,omitempty" env:"SAHAYAK_PROVIDER_PROXY"`
	// TimeoutSeconds bounds a single model call end to end.
	TimeoutSeconds int `json:"timeout_seconds" env:"SAHAYAK_PROVIDER_TIMEOUT_SECONDS"`
}

type StoreConfig struct {
	Path string `json:"path" env:"SAHAYAK_STORE_PATH"`
}

type IntakeConfig struct {
	HistoryWindow   int     `json:"history_window" env:"SAHAYAK_INTAKE_HISTORY_WINDOW"`
	MemoryHintLimit int     `json:"memory_hint_limit" env:"SAHAYAK_INTAKE_MEMORY_HINT_LIMIT"`
	Temperature     float64 `json:"temperature" env:"SAHAYAK_INTAKE_TEMPERATURE"`
	MaxTokens       int     `json:"max_tokens" env:"SAHAYAK_INTAKE_MAX_TOKENS"`
}

type ChatConfig struct {
	HistoryWindow int     `json:"history_window" env:"SAHAYAK_CHAT_HISTORY_WINDOW"`
	Temperature   float64 `json:"temperature" env:"SAHAYAK_CHAT_TEMPERATURE"`
	MaxTokens     int     `json:"max_tokens" env:"SAHAYAK_CHAT_MAX_TOKENS"`
}

type SafetyConfig struct {
	// LexiconPath points at a newline-separated keyword file; empty means
	// the built-in list only.
	LexiconPath   string              `json:"lexicon_path" env:"SAHAYAK_SAFETY_LEXICON_PATH"`
	ExtraKeywords FlexibleStringSlice `json:"extra_keywords" env:"SAHAYAK_SAFETY_EXTRA_KEYWORDS"`
}

type JanitorConfig struct {
	Enabled  bool   `json:"enabled" env:"SAHAYAK_JANITOR_ENABLED"`
	Schedule string `json:"schedule" env:"SAHAYAK_JANITOR_SCHEDULE"`
}

type LogConfig struct {
	Level string `json:"level" env:"SAHAYAK_LOG_LEVEL"`
	JSON  bool   `json:"json" env:"SAHAYAK_LOG_JSON"`
}

func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8790,
		},
		Provider: ProviderConfig{
			Name:           "nvidia",
			Model:          "meta/llama-4-scout-17b-16e-instruct",
			TimeoutSeconds: 30,
		},
		Store: StoreConfig{
			Path: "~/.sahayak/state/sahayak.db",
		},
		Intake: IntakeConfig{
			HistoryWindow:   6,
			MemoryHintLimit: 5,
			Temperature:     0.2,
			MaxTokens:       220,
		},
		Chat: ChatConfig{
			HistoryWindow: 8,
			Temperature:   0.7,
			MaxTokens:     800,
		},
		Safety: SafetyConfig{
			ExtraKeywords: FlexibleStringSlice{},
		},
		Janitor: JanitorConfig{
			Enabled:  true,
			Schedule: "0 3 * * *",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func SaveConfig(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

func (c *Config) StorePath() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return expandHome(c.Store.Path)
}

func (c *Config) GetAPIKey() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Provider.APIKey
}

func (c *Config) GetAPIBase() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Provider.APIBase != "" {
		return c.Provider.APIBase
	}
	return "https://integrate.api.nvidia.com/v1"
}

func (c *Config) ModelTimeoutSeconds() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.Provider.TimeoutSeconds <= 0 {
		return 30
	}
	return c.Provider.TimeoutSeconds
}

func expandHome(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}

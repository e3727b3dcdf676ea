package config

import (
	"fmt"
	"time"
)

// Config is the full chatterbox configuration.
type Config struct {
	Server       ServerConfig       `json:"server" mapstructure:"server"`
	Groq         GroqConfig         `json:"groq" mapstructure:"groq"`
	Tavily       TavilyConfig       `json:"tavily" mapstructure:"tavily"`
	Session      SessionConfig      `json:"session" mapstructure:"session"`
	Orchestrator OrchestratorConfig `json:"orchestrator" mapstructure:"orchestrator"`
	Logging      LoggingConfig      `json:"logging" mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `json:"port" mapstructure:"port"`
}

// GroqConfig holds completion provider settings.
type GroqConfig struct {
	APIKey      string  `json:"api_key" mapstructure:"api_key"`
	BaseURL     string  `json:"base_url" mapstructure:"base_url"`
	Model       string  `json:"model" mapstructure:"model"`
	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int64   `json:"max_tokens" mapstructure:"max_tokens"`
}

// TavilyConfig holds search provider settings.
type TavilyConfig struct {
	APIKey string `json:"api_key" mapstructure:"api_key"`
}

// SessionConfig holds thread store settings.
type SessionConfig struct {
	TTL           time.Duration `json:"ttl" mapstructure:"ttl"`
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval"`
}

// OrchestratorConfig holds completion loop settings.
type OrchestratorConfig struct {
	MaxTurns int `json:"max_turns" mapstructure:"max_turns"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`
	Pretty bool   `json:"pretty" mapstructure:"pretty"`
}

// DefaultConfig mirrors the provider defaults the service shipped with.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 3000,
		},
		Groq: GroqConfig{
			Model:       "llama-3.3-70b-versatile",
			Temperature: 0.5,
			MaxTokens:   1000,
		},
		Session: SessionConfig{
			TTL:           24 * time.Hour,
			SweepInterval: 10 * time.Minute,
		},
		Orchestrator: OrchestratorConfig{
			MaxTurns: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Validate checks the configuration for required values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Groq.APIKey == "" {
		return fmt.Errorf("groq api key is required")
	}
	if c.Tavily.APIKey == "" {
		return fmt.Errorf("tavily api key is required")
	}
	if c.Groq.Model == "" {
		return fmt.Errorf("model cannot be empty")
	}
	if c.Groq.Temperature < 0 || c.Groq.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %v", c.Groq.Temperature)
	}
	if c.Groq.MaxTokens < 0 {
		return fmt.Errorf("max tokens cannot be negative")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}
	if c.Orchestrator.MaxTurns <= 0 {
		return fmt.Errorf("max turns must be positive")
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading.
type Loader struct {
	configPath string
}

// NewLoader creates a new config loader. An empty path means "env and
// defaults only".
func NewLoader(configPath string) *Loader {
	return &Loader{
		configPath: configPath,
	}
}

// Load reads the configuration file, if any, and applies CHATTERBOX_*
// environment overrides (e.g. CHATTERBOX_GROQ_API_KEY).
func (l *Loader) Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("json")

	v.SetEnvPrefix("CHATTERBOX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Viper only applies env overrides for keys it knows about, so
	// bind every leaf explicitly.
	for _, key := range []string{
		"server.port",
		"groq.api_key", "groq.base_url", "groq.model", "groq.temperature", "groq.max_tokens",
		"tavily.api_key",
		"session.ttl", "session.sweep_interval",
		"orchestrator.max_turns",
		"logging.level", "logging.pretty",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	if l.configPath != "" {
		if _, err := os.Stat(l.configPath); err != nil {
			return nil, fmt.Errorf("config file not found: %s", l.configPath)
		}
		v.SetConfigFile(l.configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

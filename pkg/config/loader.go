package config

import (
	"fmt"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

const configFileName = "config.yaml"

// Load reads configDir/config.yaml (if present), merges it onto
// defaultConfig(), layers in environment overrides, validates the
// result and returns it. A missing config.yaml is not an error —
// callers get pure defaults plus env, the same tolerance the teacher's
// loader has for an absent chains/agents file.
func Load(configDir string) (*Config, error) {
	cfg := defaultConfig()

	path := filepath.Join(configDir, configFileName)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fromFile Config
		if err := yaml.Unmarshal(expandEnv(raw), &fromFile); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		if err := mergo.Merge(&cfg, fromFile, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("merging %s onto defaults: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through with pure defaults
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.configDir = configDir
	applyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnvOverrides layers the daemon's process-level environment
// variables onto the loaded config (§6: LLM_PROXY_URL, INTERNAL_API_KEY,
// LOG_LEVEL, MULTI_AGENT_MODE).
func applyEnvOverrides(cfg *Config) {
	cfg.LLMProxyURL = getenvOr("LLM_PROXY_URL", "http://localhost:8091")
	cfg.InternalAPIKey = os.Getenv("INTERNAL_API_KEY")
	cfg.LogLevel = getenvOr("LOG_LEVEL", "info")
	cfg.MultiAgentMode = os.Getenv("MULTI_AGENT_MODE") != "false"
}

func getenvOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

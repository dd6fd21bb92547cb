// Package config loads orchestrator configuration from defaults, an
// optional YAML file, and environment variables, each layer overriding the
// one before it.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// OrchestratorConfig holds every process-start configuration value named
// in the external interfaces section.
type OrchestratorConfig struct {
	MaxConcurrentSearches       int           `yaml:"max_concurrent_searches"`
	SearchTimeoutSeconds        int           `yaml:"search_timeout_seconds"`
	MaxReplanIter               int           `yaml:"max_replan_iter"`
	RecursionLimit              int           `yaml:"recursion_limit"`
	HeartbeatIntervalSeconds    int           `yaml:"heartbeat_interval_seconds"`
	SessionIdleTTLSeconds       int           `yaml:"session_idle_ttl_seconds"`
	SessionSweepIntervalSeconds int           `yaml:"session_sweep_interval_seconds"`
	MaxSourcesPerSearch         int           `yaml:"max_sources_per_search"`
	CORSOrigins                 []string      `yaml:"cors_origins"`
	RedisURL                    string        `yaml:"redis_url"`
}

// SearchTimeout returns SearchTimeoutSeconds as a time.Duration.
func (c *OrchestratorConfig) SearchTimeout() time.Duration {
	return time.Duration(c.SearchTimeoutSeconds) * time.Second
}

// HeartbeatInterval returns HeartbeatIntervalSeconds as a time.Duration.
func (c *OrchestratorConfig) HeartbeatInterval() time.Duration {
	return time.Duration(c.HeartbeatIntervalSeconds) * time.Second
}

// SessionIdleTTL returns SessionIdleTTLSeconds as a time.Duration.
func (c *OrchestratorConfig) SessionIdleTTL() time.Duration {
	return time.Duration(c.SessionIdleTTLSeconds) * time.Second
}

// SessionSweepInterval returns SessionSweepIntervalSeconds as a time.Duration.
func (c *OrchestratorConfig) SessionSweepInterval() time.Duration {
	return time.Duration(c.SessionSweepIntervalSeconds) * time.Second
}

// Default returns the spec defaults before any environment or file overrides.
func Default() *OrchestratorConfig {
	return &OrchestratorConfig{
		MaxConcurrentSearches:       10,
		SearchTimeoutSeconds:        300,
		MaxReplanIter:               1,
		RecursionLimit:              30,
		HeartbeatIntervalSeconds:    30,
		SessionIdleTTLSeconds:       1800,
		SessionSweepIntervalSeconds: 300,
		MaxSourcesPerSearch:         3,
		CORSOrigins:                 []string{"*"},
	}
}

// Load builds a config from defaults, an optional YAML file, then the
// environment — each layer overrides the previous one field by field.
func Load(yamlPath string) (*OrchestratorConfig, error) {
	cfg := Default()

	if yamlPath != "" {
		if err := applyYAMLFile(cfg, yamlPath); err != nil {
			return nil, fmt.Errorf("config: loading %s: %w", yamlPath, err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyYAMLFile(cfg *OrchestratorConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *OrchestratorConfig) {
	if v := envInt("RESEARCH_MAX_CONCURRENT_SEARCHES"); v != nil {
		cfg.MaxConcurrentSearches = *v
	}
	if v := envInt("RESEARCH_SEARCH_TIMEOUT_SECONDS"); v != nil {
		cfg.SearchTimeoutSeconds = *v
	}
	if v := envInt("RESEARCH_MAX_REPLAN_ITER"); v != nil {
		cfg.MaxReplanIter = *v
	}
	if v := envInt("RESEARCH_RECURSION_LIMIT"); v != nil {
		cfg.RecursionLimit = *v
	}
	if v := envInt("RESEARCH_HEARTBEAT_INTERVAL_SECONDS"); v != nil {
		cfg.HeartbeatIntervalSeconds = *v
	}
	if v := envInt("RESEARCH_SESSION_IDLE_TTL_SECONDS"); v != nil {
		cfg.SessionIdleTTLSeconds = *v
	}
	if v := envInt("RESEARCH_SESSION_SWEEP_INTERVAL_SECONDS"); v != nil {
		cfg.SessionSweepIntervalSeconds = *v
	}
	if v := envInt("RESEARCH_MAX_SOURCES_PER_SEARCH"); v != nil {
		cfg.MaxSourcesPerSearch = *v
	}
	if v := os.Getenv("RESEARCH_CORS_ORIGINS"); v != "" {
		cfg.CORSOrigins = strings.Split(v, ",")
	}

	// RESEARCH_REDIS_URL falls back to REDIS_URL, matching the fallback
	// chains the teacher's config loader uses for shared infra settings.
	if v := os.Getenv("RESEARCH_REDIS_URL"); v != "" {
		cfg.RedisURL = v
	} else if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.RedisURL = v
	}
}

func envInt(name string) *int {
	v := os.Getenv(name)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}

// Package config aggregates the brain runtime's configuration: a nested,
// YAML-tagged struct loaded from a file and then overridden field-by-field
// from the environment.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/haasonsaas/bantz/internal/qualitygate"
)

// Config is the root configuration struct. Every field below is populated
// from YAML (if a config path is given to Load) and then may be overridden
// by the environment variable named in its comment.
type Config struct {
	Memory      MemoryConfig      `yaml:"memory"`
	Finalizer   FinalizerConfig   `yaml:"finalizer"`
	Gating      GatingConfig      `yaml:"gating"`
	Guard       GuardConfig       `yaml:"guard"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

type MemoryConfig struct {
	DBPath      string `yaml:"db_path"`      // MEMORY_DB_PATH
	MaxSessions int    `yaml:"max_sessions"` // MEMORY_MAX_SESSIONS
	MaxTurns    int    `yaml:"max_turns"`    // MEMORY_MAX_TURNS
	PIIFilter   bool   `yaml:"pii_filter"`   // MEMORY_PII_FILTER
}

type FinalizerConfig struct {
	Type         string `yaml:"type"`       // FINALIZER_TYPE ("quality" | "local")
	Model        string `yaml:"model"`      // FINALIZER_MODEL
	Enabled      bool   `yaml:"enabled"`    // FINALIZE_WITH_FINALIZER
	CloudMode    string `yaml:"cloud_mode"` // CLOUD_MODE ("local" disables cloud finalizer)
	VLLMBaseURL  string `yaml:"vllm_base_url"`
	VLLMAPIKey   string `yaml:"vllm_api_key"`
	VLLMModel    string `yaml:"vllm_model"`
	GeminiAPIKey string `yaml:"gemini_api_key"`
}

type GatingConfig struct {
	QualityScoreThreshold   float64  `yaml:"quality_score_threshold"`    // QUALITY_SCORE_THRESHOLD
	FastMaxThreshold        float64  `yaml:"fast_max_threshold"`         // FAST_MAX_THRESHOLD
	MinComplexityForQuality int      `yaml:"min_complexity_for_quality"` // MIN_COMPLEXITY_FOR_QUALITY
	MinWritingForQuality    int      `yaml:"min_writing_for_quality"`    // MIN_WRITING_FOR_QUALITY
	QualityRateLimit        int      `yaml:"quality_rate_limit"`         // QUALITY_RATE_LIMIT
	RateWindowSeconds       float64  `yaml:"rate_window_seconds"`        // RATE_WINDOW_SECONDS
	FinalizerMode           string   `yaml:"finalizer_mode"`             // FINALIZER_MODE
	BypassPatterns          []string `yaml:"quality_bypass_patterns"`    // QUALITY_BYPASS_PATTERNS (comma-separated)
	ForceQualityPatterns    []string `yaml:"force_quality_patterns"`     // FORCE_QUALITY_PATTERNS (comma-separated)
}

type GuardConfig struct {
	NoNewFactsGuard bool `yaml:"no_new_facts_guard"` // NO_NEW_FACTS_GUARD
}

type IdempotencyConfig struct {
	StorePath string `yaml:"store_path"` // IDEMPOTENCY_STORE
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // LLM_METRICS_ENABLED
	File    string `yaml:"file"`    // LLM_METRICS_FILE
}

// Default returns the stock configuration, pre-env-override.
func Default() Config {
	home, _ := os.UserHomeDir()
	d := qualitygate.DefaultConfig()
	return Config{
		Memory: MemoryConfig{
			DBPath:      home + "/.bantz/memory.db",
			MaxSessions: 5,
			MaxTurns:    20,
			PIIFilter:   true,
		},
		Finalizer: FinalizerConfig{
			Type:      "local",
			Enabled:   true,
			CloudMode: "local",
		},
		Gating: GatingConfig{
			QualityScoreThreshold:   d.QualityThreshold,
			FastMaxThreshold:        d.FastMaxThreshold,
			MinComplexityForQuality: d.MinComplexityForQuality,
			MinWritingForQuality:    d.MinWritingForQuality,
			QualityRateLimit:        d.QualityRateLimit,
			RateWindowSeconds:       d.RateWindowSeconds,
			FinalizerMode:           string(d.FinalizerMode),
		},
		Guard:       GuardConfig{NoNewFactsGuard: true},
		Idempotency: IdempotencyConfig{StorePath: home + "/.bantz/idempotency.json"},
		Metrics:     MetricsConfig{Enabled: false, File: home + "/.bantz/llm_metrics.jsonl"},
	}
}

// Load reads path (if non-empty and present) as YAML over Default(), then
// applies the environment-variable overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		buf, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(buf, &cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides applies every recognized environment variable on top
// of whatever the YAML file set.
func applyEnvOverrides(cfg *Config) {
	envStr("MEMORY_DB_PATH", &cfg.Memory.DBPath)
	envInt("MEMORY_MAX_SESSIONS", &cfg.Memory.MaxSessions)
	envInt("MEMORY_MAX_TURNS", &cfg.Memory.MaxTurns)
	envBool("MEMORY_PII_FILTER", &cfg.Memory.PIIFilter)

	envStr("FINALIZER_TYPE", &cfg.Finalizer.Type)
	envStr("FINALIZER_MODEL", &cfg.Finalizer.Model)
	envBool("FINALIZE_WITH_FINALIZER", &cfg.Finalizer.Enabled)
	envStr("CLOUD_MODE", &cfg.Finalizer.CloudMode)

	envFloat("QUALITY_SCORE_THRESHOLD", &cfg.Gating.QualityScoreThreshold)
	envFloat("FAST_MAX_THRESHOLD", &cfg.Gating.FastMaxThreshold)
	envInt("MIN_COMPLEXITY_FOR_QUALITY", &cfg.Gating.MinComplexityForQuality)
	envInt("MIN_WRITING_FOR_QUALITY", &cfg.Gating.MinWritingForQuality)
	envInt("QUALITY_RATE_LIMIT", &cfg.Gating.QualityRateLimit)
	envFloat("RATE_WINDOW_SECONDS", &cfg.Gating.RateWindowSeconds)
	envStr("FINALIZER_MODE", &cfg.Gating.FinalizerMode)
	envList("QUALITY_BYPASS_PATTERNS", &cfg.Gating.BypassPatterns)
	envList("FORCE_QUALITY_PATTERNS", &cfg.Gating.ForceQualityPatterns)

	envBool("NO_NEW_FACTS_GUARD", &cfg.Guard.NoNewFactsGuard)
	envStr("IDEMPOTENCY_STORE", &cfg.Idempotency.StorePath)

	envBool("LLM_METRICS_ENABLED", &cfg.Metrics.Enabled)
	envStr("LLM_METRICS_FILE", &cfg.Metrics.File)
}

func envStr(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v
	}
}

func envBool(key string, dst *bool) {
	if v, ok := os.LookupEnv(key); ok {
		*dst = v == "1" || strings.EqualFold(v, "true")
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envList(key string, dst *[]string) {
	if v, ok := os.LookupEnv(key); ok {
		if v == "" {
			*dst = nil
			return
		}
		parts := strings.Split(v, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		*dst = out
	}
}

// ToGatingConfig converts the YAML/env-overridden gating section into
// qualitygate.Config.
func (c *Config) ToGatingConfig() qualitygate.Config {
	return qualitygate.Config{
		QualityThreshold:        c.Gating.QualityScoreThreshold,
		FastMaxThreshold:        c.Gating.FastMaxThreshold,
		MinComplexityForQuality: c.Gating.MinComplexityForQuality,
		MinWritingForQuality:    c.Gating.MinWritingForQuality,
		QualityRateLimit:        c.Gating.QualityRateLimit,
		RateWindowSeconds:       c.Gating.RateWindowSeconds,
		FinalizerMode:           qualitygate.FinalizerMode(c.Gating.FinalizerMode),
		BypassPatterns:          c.Gating.BypassPatterns,
		ForceQualityPatterns:    c.Gating.ForceQualityPatterns,
	}
}

// Default wall-clock deadlines for the two LLM tiers.
const (
	RouterTimeout    = 500 * time.Millisecond
	FinalizerTimeout = 2000 * time.Millisecond
)

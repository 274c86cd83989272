package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("QUALITY_SCORE_THRESHOLD", "3.25")
	t.Setenv("FINALIZER_MODE", "always")
	t.Setenv("MEMORY_PII_FILTER", "false")
	t.Setenv("QUALITY_BYPASS_PATTERNS", "merhaba, selam ,")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 3.25, cfg.Gating.QualityScoreThreshold)
	require.Equal(t, "always", cfg.Gating.FinalizerMode)
	require.False(t, cfg.Memory.PIIFilter)
	require.Equal(t, []string{"merhaba", "selam"}, cfg.Gating.BypassPatterns)
}

func TestDefault_MatchesGatingDefaults(t *testing.T) {
	cfg := Default()
	require.Equal(t, "auto", cfg.Gating.FinalizerMode)
	require.True(t, cfg.Memory.PIIFilter)
	require.Equal(t, "local", cfg.Finalizer.CloudMode)
}

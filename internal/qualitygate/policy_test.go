package qualitygate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEvaluate_WritingNeedTriggersQuality(t *testing.T) {
	cfg := DefaultConfig()
	p := NewPolicy(cfg)

	res := p.Evaluate("Hocaya resmi bir e-posta yaz, dilekçe formatında", nil, false)
	require.Equal(t, DecisionUseQuality, res.Decision)
	require.GreaterOrEqual(t, res.Score.Writing, 4)
}

func TestEvaluate_BypassPatternAlwaysFast(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BypassPatterns = []string{"selam"}
	p := NewPolicy(cfg)

	res := p.Evaluate("selam nasılsın", nil, false)
	require.Equal(t, DecisionUseFast, res.Decision)
	require.Equal(t, ReasonBypassPatternMatch, res.Reason)
}

func TestEvaluate_ForceQualityBlockedWhenRateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ForceQualityPatterns = []string{"mutlaka kaliteli"}
	cfg.QualityRateLimit = 1
	p := NewPolicy(cfg)

	first := p.Evaluate("mutlaka kaliteli yanıt ver", nil, false)
	require.Equal(t, DecisionUseQuality, first.Decision)

	second := p.Evaluate("mutlaka kaliteli yanıt ver", nil, false)
	require.Equal(t, DecisionBlocked, second.Decision)
	require.Equal(t, ReasonForceQualityBlocked, second.Reason)
}

func TestRateLimiter_SlidingWindowDeniesNPlus1(t *testing.T) {
	l := NewRateLimiter(2, 60)
	require.True(t, l.Acquire())
	require.True(t, l.Acquire())
	require.False(t, l.Acquire())
}

func TestRateLimiter_AcceptsAfterWindowExpiry(t *testing.T) {
	clock := time.Now()
	l := NewRateLimiter(1, 1).WithClock(func() time.Time { return clock })

	require.True(t, l.Acquire())
	require.False(t, l.Acquire())

	clock = clock.Add(2 * time.Second)
	require.True(t, l.Acquire())
}

package observability

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/bantz/pkg/brain"
)

func TestLLMMetricsLog_AppendAndReadAllRoundTrip(t *testing.T) {
	log, err := NewLLMMetricsLog(filepath.Join(t.TempDir(), "llm_metrics.jsonl"))
	require.NoError(t, err)

	m1 := brain.LLMMetric{Backend: brain.BackendVLLM, Tier: brain.TierFast, TotalTokens: 100, LatencyMS: 50, Success: true}
	m2 := brain.LLMMetric{Backend: brain.BackendGemini, Tier: brain.TierQuality, TotalTokens: 200, LatencyMS: 150, Success: false, ErrorType: "timeout"}

	require.NoError(t, log.Append(m1))
	require.NoError(t, log.Append(m2))

	got, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, brain.BackendVLLM, got[0].Backend)
	require.Equal(t, brain.BackendGemini, got[1].Backend)
}

func TestAnalyze_AggregatesCallsTokensAndErrorsByBackend(t *testing.T) {
	metrics := []brain.LLMMetric{
		{Backend: brain.BackendVLLM, Tier: brain.TierFast, TotalTokens: 100, LatencyMS: 40, Success: true},
		{Backend: brain.BackendVLLM, Tier: brain.TierFast, TotalTokens: 50, LatencyMS: 60, Success: false, ErrorType: "timeout"},
		{Backend: brain.BackendGemini, Tier: brain.TierQuality, TotalTokens: 300, LatencyMS: 200, Success: true},
	}

	a := Analyze(metrics)
	require.Equal(t, 3, a.TotalCalls)
	require.Equal(t, 450, a.TotalTokens)
	require.Equal(t, 2, a.SuccessCount)
	require.Equal(t, 1, a.ErrorCount)
	require.Equal(t, 1, a.ErrorTypeCounts["timeout"])
	require.Equal(t, 2, a.ByBackend[brain.BackendVLLM].Calls)
	require.Equal(t, 50.0, a.ByBackend[brain.BackendVLLM].AvgLatencyMS)
	require.Equal(t, 2, a.ByTier[brain.TierFast])
	require.Equal(t, 1, a.ByTier[brain.TierQuality])
}

func TestAnalyze_EmptyInputReturnsZeroValue(t *testing.T) {
	a := Analyze(nil)
	require.Equal(t, 0, a.TotalCalls)
	require.Empty(t, a.ByBackend)
}

func TestFormatMarkdown_IncludesTotalsAndErrorBreakdown(t *testing.T) {
	a := Analyze([]brain.LLMMetric{
		{Backend: brain.BackendVLLM, Tier: brain.TierFast, TotalTokens: 10, LatencyMS: 20, Success: false, ErrorType: "timeout"},
	})
	md := FormatMarkdown(a)
	require.Contains(t, md, "Total calls: 1")
	require.Contains(t, md, "vllm")
	require.Contains(t, md, "timeout: 1")
}

func TestLLMMetricsLog_ConcurrentAppendsAllPersist(t *testing.T) {
	log, err := NewLLMMetricsLog(filepath.Join(t.TempDir(), "llm_metrics.jsonl"))
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		go func() {
			_ = log.Append(brain.LLMMetric{Backend: brain.BackendVLLM, Tier: brain.TierFast, Timestamp: time.Now()})
			done <- struct{}{}
		}()
	}
	for i := 0; i < 5; i++ {
		<-done
	}

	got, err := log.ReadAll()
	require.NoError(t, err)
	require.Len(t, got, 5)
}

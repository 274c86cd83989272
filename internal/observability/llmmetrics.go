package observability

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// LLMMetricsLog is an append-only JSONL log of brain.LLMMetric rows, one
// call per line: a durable flat log complementing the in-process
// Prometheus counters.
type LLMMetricsLog struct {
	path string

	mu sync.Mutex
}

// NewLLMMetricsLog opens (creating if necessary) the JSONL file at path for
// appending.
func NewLLMMetricsLog(path string) (*LLMMetricsLog, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("observability: open llm metrics log: %w", err)
	}
	f.Close()
	return &LLMMetricsLog{path: path}, nil
}

// Append writes one metric row as a JSON line.
func (l *LLMMetricsLog) Append(m brain.LLMMetric) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("observability: open llm metrics log for append: %w", err)
	}
	defer f.Close()

	buf, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("observability: marshal llm metric: %w", err)
	}
	buf = append(buf, '\n')
	_, err = f.Write(buf)
	return err
}

// ReadAll loads every recorded metric row, in file order.
func (l *LLMMetricsLog) ReadAll() ([]brain.LLMMetric, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("observability: open llm metrics log for read: %w", err)
	}
	defer f.Close()

	var out []brain.LLMMetric
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var m brain.LLMMetric
		if err := json.Unmarshal(line, &m); err != nil {
			continue
		}
		out = append(out, m)
	}
	return out, scanner.Err()
}

// Analysis summarizes a set of LLM metric rows, grouped by backend and tier.
type Analysis struct {
	TotalCalls      int
	TotalTokens     int
	TotalPromptTok  int
	TotalCompletion int
	SuccessCount    int
	ErrorCount      int
	AvgLatencyMS    float64
	ByBackend       map[brain.LLMBackend]BackendAnalysis
	ByTier          map[brain.LLMTier]int
	ErrorTypeCounts map[string]int
}

// BackendAnalysis is the per-backend slice of an Analysis.
type BackendAnalysis struct {
	Calls        int
	Tokens       int
	SuccessCount int
	ErrorCount   int
	AvgLatencyMS float64
}

// Analyze computes aggregate statistics over metrics.
func Analyze(metrics []brain.LLMMetric) Analysis {
	a := Analysis{
		ByBackend:       map[brain.LLMBackend]BackendAnalysis{},
		ByTier:          map[brain.LLMTier]int{},
		ErrorTypeCounts: map[string]int{},
	}
	if len(metrics) == 0 {
		return a
	}

	backendTotals := map[brain.LLMBackend]*BackendAnalysis{}
	var latencySum int64

	for _, m := range metrics {
		a.TotalCalls++
		a.TotalTokens += m.TotalTokens
		a.TotalPromptTok += m.PromptTokens
		a.TotalCompletion += m.CompletionTokens
		latencySum += m.LatencyMS
		a.ByTier[m.Tier]++

		if m.Success {
			a.SuccessCount++
		} else {
			a.ErrorCount++
			if m.ErrorType != "" {
				a.ErrorTypeCounts[m.ErrorType]++
			}
		}

		b, ok := backendTotals[m.Backend]
		if !ok {
			b = &BackendAnalysis{}
			backendTotals[m.Backend] = b
		}
		b.Calls++
		b.Tokens += m.TotalTokens
		if m.Success {
			b.SuccessCount++
		} else {
			b.ErrorCount++
		}
	}

	a.AvgLatencyMS = float64(latencySum) / float64(a.TotalCalls)

	for backend, totals := range backendTotals {
		var sum int64
		for _, m := range metrics {
			if m.Backend == backend {
				sum += m.LatencyMS
			}
		}
		totals.AvgLatencyMS = float64(sum) / float64(totals.Calls)
		a.ByBackend[backend] = *totals
	}

	return a
}

// FormatMarkdown renders an Analysis as a Markdown report.
func FormatMarkdown(a Analysis) string {
	var sb strings.Builder
	sb.WriteString("# LLM Metrics Summary\n\n")
	sb.WriteString(fmt.Sprintf("- Total calls: %d\n", a.TotalCalls))
	sb.WriteString(fmt.Sprintf("- Success: %d, Error: %d\n", a.SuccessCount, a.ErrorCount))
	sb.WriteString(fmt.Sprintf("- Total tokens: %d (prompt %d, completion %d)\n", a.TotalTokens, a.TotalPromptTok, a.TotalCompletion))
	sb.WriteString(fmt.Sprintf("- Average latency: %.1f ms\n\n", a.AvgLatencyMS))

	sb.WriteString("## By backend\n\n")
	backends := make([]string, 0, len(a.ByBackend))
	for b := range a.ByBackend {
		backends = append(backends, string(b))
	}
	sort.Strings(backends)
	for _, b := range backends {
		stats := a.ByBackend[brain.LLMBackend(b)]
		sb.WriteString(fmt.Sprintf("- %s: %d calls, %d tokens, %.1f ms avg, %d errors\n", b, stats.Calls, stats.Tokens, stats.AvgLatencyMS, stats.ErrorCount))
	}

	if len(a.ErrorTypeCounts) > 0 {
		sb.WriteString("\n## Errors\n\n")
		errTypes := make([]string, 0, len(a.ErrorTypeCounts))
		for e := range a.ErrorTypeCounts {
			errTypes = append(errTypes, e)
		}
		sort.Strings(errTypes)
		for _, e := range errTypes {
			sb.WriteString(fmt.Sprintf("- %s: %d\n", e, a.ErrorTypeCounts[e]))
		}
	}

	return sb.String()
}

package qualitygate

import "sync"

// Decision is the gating outcome for one turn.
type Decision string

const (
	DecisionUseFast    Decision = "fast"
	DecisionUseQuality Decision = "quality"
	DecisionBlocked    Decision = "blocked"
)

// Reason is a closed set of gating-decision reason strings, fixed as named
// constants so a turn's decision trail is machine-checkable.
type Reason string

const (
	ReasonBypassPatternMatch         Reason = "bypass_pattern_match"
	ReasonForceQualityMatch          Reason = "force_quality_match"
	ReasonForceQualityBlocked        Reason = "force_quality_blocked"
	ReasonFinalizerModeNever         Reason = "finalizer_mode_never"
	ReasonFinalizerModeAlways        Reason = "finalizer_mode_always"
	ReasonFinalizerModeAlwaysBlocked Reason = "finalizer_mode_always_blocked"
	ReasonScoreAboveQualityThreshold Reason = "score_above_quality_threshold"
	ReasonQualityRateLimitedFallback Reason = "quality_rate_limited_fallback"
	ReasonComponentThresholdExceeded Reason = "component_threshold_exceeded"
	ReasonScoreBelowFastThreshold    Reason = "score_below_fast_threshold"
)

// FinalizerMode selects how aggressively the quality tier is used.
type FinalizerMode string

const (
	ModeAuto   FinalizerMode = "auto"
	ModeAlways FinalizerMode = "always"
	ModeNever  FinalizerMode = "never"
)

// Config holds the gating thresholds and patterns, populated from the
// QUALITY_*/FAST_*/MIN_*/RATE_*/FINALIZER_MODE environment variables by
// internal/config.
type Config struct {
	QualityThreshold        float64
	FastMaxThreshold        float64
	MinComplexityForQuality int
	MinWritingForQuality    int
	QualityRateLimit        int
	RateWindowSeconds       float64
	FinalizerMode           FinalizerMode
	BypassPatterns          []string
	ForceQualityPatterns    []string
}

// DefaultConfig returns the stock thresholds.
func DefaultConfig() Config {
	return Config{
		QualityThreshold:        2.5,
		FastMaxThreshold:        1.5,
		MinComplexityForQuality: 4,
		MinWritingForQuality:    4,
		QualityRateLimit:        30,
		RateWindowSeconds:       60.0,
		FinalizerMode:           ModeAuto,
	}
}

// Result is one gating evaluation's outcome, plus the score that produced
// it, for observability/logging.
type Result struct {
	Decision Decision
	Score    Score
	Reason   Reason
}

// Policy evaluates the gating decision rules in a fixed order, first
// match wins.
type Policy struct {
	config      Config
	rateLimiter *RateLimiter

	mu      sync.Mutex
	history []Result
}

const maxHistory = 100

// NewPolicy builds a Policy with its own rate limiter sized from cfg.
func NewPolicy(cfg Config) *Policy {
	return &Policy{
		config:      cfg,
		rateLimiter: NewRateLimiter(cfg.QualityRateLimit, cfg.RateWindowSeconds),
	}
}

// Evaluate runs the ordered decision rules against userInput.
func (p *Policy) Evaluate(userInput string, toolNames []string, requiresConfirmation bool) Result {
	score := ComputeScore(userInput, toolNames, requiresConfirmation, nil)

	// 1. bypass_patterns -> always fast.
	if matchesAnyPattern(userInput, p.config.BypassPatterns) {
		return p.record(Result{Decision: DecisionUseFast, Score: score, Reason: ReasonBypassPatternMatch})
	}

	// 2. force_quality_patterns -> try rate limit; block if denied.
	if matchesAnyPattern(userInput, p.config.ForceQualityPatterns) {
		if p.rateLimiter.Acquire() {
			return p.record(Result{Decision: DecisionUseQuality, Score: score, Reason: ReasonForceQualityMatch})
		}
		return p.record(Result{Decision: DecisionBlocked, Score: score, Reason: ReasonForceQualityBlocked})
	}

	// 3/4. explicit mode overrides.
	switch p.config.FinalizerMode {
	case ModeNever:
		return p.record(Result{Decision: DecisionUseFast, Score: score, Reason: ReasonFinalizerModeNever})
	case ModeAlways:
		if p.rateLimiter.Acquire() {
			return p.record(Result{Decision: DecisionUseQuality, Score: score, Reason: ReasonFinalizerModeAlways})
		}
		return p.record(Result{Decision: DecisionBlocked, Score: score, Reason: ReasonFinalizerModeAlwaysBlocked})
	}

	// 5. auto mode.
	if score.Total <= p.config.FastMaxThreshold {
		return p.record(Result{Decision: DecisionUseFast, Score: score, Reason: ReasonScoreBelowFastThreshold})
	}
	if score.Total >= p.config.QualityThreshold {
		if p.rateLimiter.Acquire() {
			return p.record(Result{Decision: DecisionUseQuality, Score: score, Reason: ReasonScoreAboveQualityThreshold})
		}
		return p.record(Result{Decision: DecisionUseFast, Score: score, Reason: ReasonQualityRateLimitedFallback})
	}
	if score.Complexity >= p.config.MinComplexityForQuality || score.Writing >= p.config.MinWritingForQuality {
		if p.rateLimiter.Acquire() {
			return p.record(Result{Decision: DecisionUseQuality, Score: score, Reason: ReasonComponentThresholdExceeded})
		}
		return p.record(Result{Decision: DecisionUseFast, Score: score, Reason: ReasonQualityRateLimitedFallback})
	}
	return p.record(Result{Decision: DecisionUseFast, Score: score, Reason: ReasonScoreBelowFastThreshold})
}

func (p *Policy) record(r Result) Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = append(p.history, r)
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
	return r
}

// RecentDecisions returns the bounded ring of past gating results.
func (p *Policy) RecentDecisions() []Result {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Result, len(p.history))
	copy(out, p.history)
	return out
}

// Reset clears both the rate limiter and the decision history.
func (p *Policy) Reset() {
	p.rateLimiter.Reset()
	p.mu.Lock()
	p.history = nil
	p.mu.Unlock()
}

// RateLimiterStats exposes the underlying rate limiter's Stats().
func (p *Policy) RateLimiterStats() Stats {
	return p.rateLimiter.Stats()
}

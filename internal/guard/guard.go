package guard

// Violation is one candidate fact token absent from the source union.
type Violation struct {
	Category Category
	Value    string
}

// Result is the outcome of validating a candidate reply against its source
// context.
type Result struct {
	Passed         bool
	Violations     []Violation
	ViolationCount int
	MaxViolations  int
}

// Options configures the guard check.
type Options struct {
	// MaxViolations is the maximum violation_count still considered a pass.
	// Defaults to 0: any new fact fails the check.
	MaxViolations int
}

// Validate unions the fact sets extracted from every source text, extracts
// the candidate's facts, and reports any candidate token absent from the
// source union as a violation.
func Validate(candidate string, sources ...string) Result {
	return ValidateWithOptions(Options{}, candidate, sources...)
}

// ValidateWithOptions is Validate with an explicit MaxViolations override.
func ValidateWithOptions(opts Options, candidate string, sources ...string) Result {
	sourceUnion := newFactSet()
	for _, src := range sources {
		for cat, tokens := range Extract(src) {
			for tok := range tokens {
				sourceUnion[cat][tok] = true
			}
		}
	}

	candidateFacts := Extract(candidate)

	var violations []Violation
	for cat, tokens := range candidateFacts {
		for tok := range tokens {
			if !sourceUnion[cat][tok] {
				violations = append(violations, Violation{Category: cat, Value: tok})
			}
		}
	}

	maxV := opts.MaxViolations
	return Result{
		Passed:         len(violations) <= maxV,
		Violations:     violations,
		ViolationCount: len(violations),
		MaxViolations:  maxV,
	}
}

// StrictRetryClause is prepended to the finalizer system prompt on a
// guard-violation retry.
const StrictRetryClause = "Yalnızca TOOL_RESULTS içindeki bilgilerden yanıt ver; yeni bilgi uydurmak yasaktır; emin değilsen 'bilmiyorum' de."

// RetryTemperatureDelta is subtracted from the finalizer's sampling
// temperature on a guard-violation retry.
const RetryTemperatureDelta = 0.2

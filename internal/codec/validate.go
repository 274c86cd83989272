package codec

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// RepairFlags records which repair steps actually changed the candidate,
// useful when judging how malformed the raw LLM output was. ValidateAndRepair
// never calls an LLM, so it leaves UsedLLMRepair false.
type RepairFlags struct {
	EnumsRepaired     bool
	ToolPlanCoerced   bool
	ConfidenceCoerced bool
	ReasoningCoerced  bool
	UsedLLMRepair     bool
}

// Validate converts a repaired raw map into an OrchestratorOutput, enforcing
// the strict schema (extra fields rejected) and the struct-level invariants.
func Validate(raw map[string]any) (*brain.OrchestratorOutput, error) {
	if err := validateSchema(raw); err != nil {
		return nil, err
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("codec: marshal candidate: %w", err)
	}
	var out brain.OrchestratorOutput
	if err := json.Unmarshal(buf, &out); err != nil {
		return nil, fmt.Errorf("codec: unmarshal candidate: %w", err)
	}
	if out.Slots == nil {
		out.Slots = map[string]any{}
	}
	if out.ToolPlan == nil {
		out.ToolPlan = []string{}
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	out.RawOutput = raw
	return &out, nil
}

// ValidateAndRepair runs extract -> repair -> validate, retrying validate
// once more after a second repair pass over the already repaired candidate
// if the first still fails schema validation. Neither pass removes fields,
// so a candidate carrying a field the schema does not declare is rejected.
func ValidateAndRepair(rawText string) (*brain.OrchestratorOutput, RepairFlags, error) {
	var flags RepairFlags

	obj, err := ExtractFirstJSONObject(rawText)
	if err != nil {
		return nil, flags, err
	}

	repaired := RepairEnums(obj)
	flags.EnumsRepaired = asString(obj["route"]) != asString(repaired["route"]) ||
		asString(obj["calendar_intent"]) != asString(repaired["calendar_intent"])
	_, planWasList := obj["tool_plan"].([]any)
	flags.ToolPlanCoerced = !planWasList
	conf, confWasNumber := obj["confidence"].(float64)
	flags.ConfidenceCoerced = !confWasNumber || conf != repaired["confidence"]
	_, reasoningWasList := obj["reasoning_summary"].([]any)
	flags.ReasoningCoerced = !reasoningWasList

	out, verr := Validate(repaired)
	if verr == nil {
		return out, flags, nil
	}

	// Retry once: run RepairEnums again over the repaired map and
	// re-validate. Unknown fields are kept, so the strict schema still
	// rejects them.
	repaired2 := RepairEnums(repaired)
	out, verr = Validate(repaired2)
	if verr != nil {
		return nil, flags, verr
	}
	return out, flags, nil
}

// RepairLLM is the interface a repair-capable LLM endpoint must satisfy. It
// is intentionally minimal: given a prompt, return raw text.
type RepairLLM interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// RepairViaLLM asks a repair LLM to fix malformed JSON, describing the
// concrete error so the model has something actionable to correct, and
// re-runs extraction+validation on its response. It gives up after
// maxAttempts and returns the last error encountered.
func RepairViaLLM(ctx context.Context, llm RepairLLM, rawText string, errSummary string, maxAttempts int) (*brain.OrchestratorOutput, error) {
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		prompt := buildRepairPrompt(rawText, errSummary, attempt)
		resp, err := llm.Complete(ctx, prompt)
		if err != nil {
			lastErr = fmt.Errorf("codec: repair llm call failed: %w", err)
			continue
		}
		out, _, verr := ValidateAndRepair(resp)
		if verr == nil {
			return out, nil
		}
		lastErr = verr
		rawText = resp
	}
	return nil, fmt.Errorf("codec: llm repair exhausted %d attempts: %w", maxAttempts, lastErr)
}

func buildRepairPrompt(rawText, errSummary string, attempt int) string {
	return fmt.Sprintf(
		"Aşağıdaki JSON çıktısı geçersiz (deneme %d). Hata: %s\n\n"+
			"Geçersiz çıktı:\n%s\n\n"+
			"Lütfen YALNIZCA düzeltilmiş, şemaya uygun tek bir JSON nesnesi döndür. "+
			"Başka açıklama ekleme.",
		attempt, errSummary, rawText,
	)
}

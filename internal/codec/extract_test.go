package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractFirstJSONObject_FencedWithProse(t *testing.T) {
	text := "Tabii, işte karar:\n```json\n{\"route\": \"calendar\", \"confidence\": 0.9}\n```\nUmarım yardımcı olur."
	obj, err := ExtractFirstJSONObject(text)
	require.NoError(t, err)
	require.Equal(t, "calendar", obj["route"])
}

func TestExtractFirstJSONObject_Empty(t *testing.T) {
	_, err := ExtractFirstJSONObject("   \n  ")
	require.ErrorIs(t, err, ErrEmptyOutput)
}

func TestExtractFirstJSONObject_NoObject(t *testing.T) {
	_, err := ExtractFirstJSONObject("bu bir cümle, json yok")
	require.ErrorIs(t, err, ErrNoJSONObject)
}

func TestExtractFirstJSONObject_Unbalanced(t *testing.T) {
	_, err := ExtractFirstJSONObject(`{"route": "calendar", "slots": {"a": 1}`)
	require.ErrorIs(t, err, ErrUnbalancedJSON)
}

func TestExtractFirstJSONObject_BraceInsideString(t *testing.T) {
	text := `{"route": "calendar", "assistant_reply": "merhaba {test} efendim"}`
	obj, err := ExtractFirstJSONObject(text)
	require.NoError(t, err)
	require.Equal(t, "merhaba {test} efendim", obj["assistant_reply"])
}

func TestValidateAndRepair_JSONRepairGolden(t *testing.T) {
	raw := "```json\n{\"route\":\"create_meeting\",\"calendar_intent\":\"schedule\",\"confidence\":\"yüksek\",\"tool_plan\":\"create_event\"}\n```"
	out, _, err := ValidateAndRepair(raw)
	require.NoError(t, err)
	require.Equal(t, "calendar", string(out.Route))
	require.Equal(t, "create", string(out.CalendarIntent))
	require.InDelta(t, 0.5, out.Confidence, 1e-9)
	require.Equal(t, []string{"create_event"}, out.ToolPlan)
}

func TestValidateAndRepair_EmptyOutputFallback(t *testing.T) {
	_, _, err := ValidateAndRepair("")
	require.Error(t, err)
}

func TestRepairToolPlan_Comma(t *testing.T) {
	got := repairToolPlan("create_event, send_email")
	require.Equal(t, []string{"create_event", "send_email"}, got)
}

func TestRepairConfidence_CommaDecimal(t *testing.T) {
	require.InDelta(t, 0.5, repairConfidence("0,85"), 1e-9)
}

func TestRepairConfidence_OutOfRangeClamped(t *testing.T) {
	require.Equal(t, 1.0, repairConfidence(1.5))
	require.Equal(t, 0.0, repairConfidence(-0.3))
}

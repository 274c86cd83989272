package turn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/bantz/pkg/brain"
)

func TestExtractEntityRefs_NumbersEventsFromListResults(t *testing.T) {
	results := []brain.ToolResult{
		{
			ToolName: "calendar.list_events",
			Status:   brain.ToolStatusOK,
			Result: map[string]any{
				"events": []any{
					map[string]any{"id": "evt1", "summary": "Doktor randevusu"},
					map[string]any{"id": "evt2", "summary": "Takım toplantısı"},
				},
			},
		},
	}

	table := extractEntityRefs(results)
	require.Len(t, table, 2)
	require.Equal(t, "event", table[1].Kind)
	require.Equal(t, "evt1", table[1].ID)
	require.Contains(t, table[1].Label, "Doktor randevusu")
	require.Equal(t, "evt2", table[2].ID)
}

func TestExtractEntityRefs_SkipsErrorsAndUnlabeledItems(t *testing.T) {
	results := []brain.ToolResult{
		{ToolName: "calendar.list_events", Status: brain.ToolStatusError, Error: "boom"},
		{
			ToolName: "gmail.search",
			Status:   brain.ToolStatusOK,
			Result: []any{
				map[string]any{"message_id": "m1", "subject": "Fatura"},
				map[string]any{"irrelevant": true},
			},
		},
	}

	table := extractEntityRefs(results)
	require.Len(t, table, 1)
	require.Equal(t, "email", table[1].Kind)
	require.Equal(t, "m1", table[1].ID)
}

func TestExtractEntityRefs_EmptyResultsYieldNil(t *testing.T) {
	require.Nil(t, extractEntityRefs(nil))
	require.Nil(t, extractEntityRefs([]brain.ToolResult{{ToolName: "x", Status: brain.ToolStatusOK, Result: "plain string"}}))
}

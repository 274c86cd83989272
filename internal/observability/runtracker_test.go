package observability

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/bantz/pkg/brain"
)

func newTestTracker(t *testing.T) *RunTracker {
	t.Helper()
	tracker, err := NewRunTracker(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = tracker.Close() })
	return tracker
}

func TestRunTracker_TrackRunAndCloseWritesRunRow(t *testing.T) {
	tracker := newTestTracker(t)

	span := tracker.TrackRun(context.Background(), "yarın toplantı var mı", "session-1")
	require.NotEmpty(t, span.RunID())

	require.NoError(t, span.Close(brain.RunSuccess, "calendar", "Yarın 10:00'da toplantınız var.", "gemini-2.5-flash", 42, nil))

	stats, err := tracker.Stats(time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Total)
	require.Equal(t, 1, stats.Success)
	require.Equal(t, 0, stats.Error)
}

func TestRunSpan_CloseWithErrorRecordsErrorStatus(t *testing.T) {
	tracker := newTestTracker(t)

	span := tracker.TrackRun(context.Background(), "takvime etkinlik ekle", "session-2")
	require.NoError(t, span.Close(brain.RunError, "calendar", "", "", 0, context.DeadlineExceeded))

	stats, err := tracker.Stats(time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Error)
}

func TestRunSpan_RecordToolCallPersistsAndFeedsSlowToolsAndErrorBreakdown(t *testing.T) {
	tracker := newTestTracker(t)

	span := tracker.TrackRun(context.Background(), "etkinliği sil", "session-3")
	require.NoError(t, span.RecordToolCall("calendar.delete_event", []byte(`{"event_id":"1"}`), "error", nil, "calendar api unavailable", 120*time.Millisecond, 0, "confirmed"))
	require.NoError(t, span.RecordToolCall("calendar.delete_event", []byte(`{"event_id":"2"}`), "error", nil, "calendar api unavailable", 200*time.Millisecond, 1, "confirmed"))
	require.NoError(t, span.Close(brain.RunPartial, "calendar", "", "", 0, nil))

	slow, err := tracker.SlowTools(50)
	require.NoError(t, err)
	require.InDelta(t, 160.0, slow["calendar.delete_event"], 0.01)

	breakdown, err := tracker.ErrorBreakdown("calendar.delete_event")
	require.NoError(t, err)
	require.Equal(t, 2, breakdown["calendar api unavailable"])

	stats, err := tracker.Stats(time.Time{})
	require.NoError(t, err)
	require.Equal(t, 1, stats.Partial)
}

func TestRunTracker_SaveArtifactPersistsContent(t *testing.T) {
	tracker := newTestTracker(t)

	artifact, err := tracker.SaveArtifact("run-1", "summary", "toplantı özeti burada", "Özet", "text/plain")
	require.NoError(t, err)
	require.NotEmpty(t, artifact.ArtifactID)
	require.Equal(t, len("toplantı özeti burada"), artifact.SizeBytes)
}

func TestRunTracker_StatsSinceCutoffExcludesOlderRuns(t *testing.T) {
	tracker := newTestTracker(t)

	span := tracker.TrackRun(context.Background(), "eski konuşma", "session-4")
	require.NoError(t, span.Close(brain.RunSuccess, "smalltalk", "merhaba", "vllm", 5, nil))

	future := time.Now().Add(time.Hour)
	stats, err := tracker.Stats(future)
	require.NoError(t, err)
	require.Equal(t, 0, stats.Total)
}

func TestRunTracker_ListRunsPaginatesNewestFirst(t *testing.T) {
	tracker := newTestTracker(t)

	for i, input := range []string{"ilk", "ikinci", "üçüncü"} {
		span := tracker.TrackRun(context.Background(), input, "session-5")
		require.NoError(t, span.Close(brain.RunSuccess, "smalltalk", "", "", i, nil))
		time.Sleep(2 * time.Millisecond)
	}

	page, err := tracker.ListRuns(2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	require.Equal(t, "üçüncü", page[0].UserInput)

	rest, err := tracker.ListRuns(2, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	require.Equal(t, "ilk", rest[0].UserInput)
}

func TestRunTracker_ListToolCallsReturnsRunsCallsInOrder(t *testing.T) {
	tracker := newTestTracker(t)

	span := tracker.TrackRun(context.Background(), "toplantıları listele", "session-6")
	require.NoError(t, span.RecordToolCall("calendar.list_events", []byte(`{}`), "ok", "üç etkinlik", "", 40*time.Millisecond, 0, ""))
	require.NoError(t, span.RecordToolCall("gmail.search", []byte(`{}`), "ok", "iki mesaj", "", 60*time.Millisecond, 0, ""))
	require.NoError(t, span.Close(brain.RunSuccess, "calendar", "", "", 0, nil))

	calls, err := tracker.ListToolCalls(span.RunID())
	require.NoError(t, err)
	require.Len(t, calls, 2)
	require.Equal(t, "calendar.list_events", calls[0].ToolName)
	require.Equal(t, "gmail.search", calls[1].ToolName)
}

func TestRunTracker_ToolAndArtifactStats(t *testing.T) {
	tracker := newTestTracker(t)

	span := tracker.TrackRun(context.Background(), "istatistik", "session-7")
	require.NoError(t, span.RecordToolCall("calendar.list_events", []byte(`{}`), "ok", nil, "", 100*time.Millisecond, 0, ""))
	require.NoError(t, span.RecordToolCall("calendar.list_events", []byte(`{}`), "error", nil, "boom", 300*time.Millisecond, 0, ""))
	require.NoError(t, span.Close(brain.RunPartial, "calendar", "", "", 0, nil))

	_, err := tracker.SaveArtifact(span.RunID(), "summary", "özet", "", "text/plain")
	require.NoError(t, err)

	toolStats, err := tracker.ToolStatsByName()
	require.NoError(t, err)
	st := toolStats["calendar.list_events"]
	require.Equal(t, 2, st.Calls)
	require.Equal(t, 1, st.Errors)
	require.InDelta(t, 200.0, st.AvgElapsedMS, 0.01)

	artStats, err := tracker.ArtifactStatsByType()
	require.NoError(t, err)
	require.Equal(t, 1, artStats["summary"].Count)
	require.Greater(t, artStats["summary"].TotalBytes, int64(0))
}

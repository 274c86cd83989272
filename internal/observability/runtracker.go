package observability

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"
	"github.com/haasonsaas/bantz/pkg/brain"
)

const runTrackerSchema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id TEXT PRIMARY KEY,
	session_id TEXT,
	user_input TEXT,
	started_at TIMESTAMP,
	ended_at TIMESTAMP,
	status TEXT,
	route TEXT,
	final_output TEXT,
	model TEXT,
	total_tokens INTEGER,
	latency_ms INTEGER,
	error TEXT
);
CREATE TABLE IF NOT EXISTS tool_calls (
	call_id TEXT PRIMARY KEY,
	run_id TEXT,
	tool_name TEXT,
	params TEXT,
	status TEXT,
	result_hash TEXT,
	result_summary TEXT,
	error TEXT,
	elapsed_ms INTEGER,
	retry_count INTEGER,
	confirmation TEXT,
	created_at TIMESTAMP
);
CREATE TABLE IF NOT EXISTS artifacts (
	artifact_id TEXT PRIMARY KEY,
	run_id TEXT,
	type TEXT,
	title TEXT,
	content TEXT,
	mime_type TEXT,
	size_bytes INTEGER,
	created_at TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_tool_calls_run_id ON tool_calls(run_id);
`

// RunTracker is the SQLite-backed (WAL mode) observability store for Run,
// ToolCall, and Artifact rows.
type RunTracker struct {
	db *sql.DB
}

// NewRunTracker opens (creating if necessary) the SQLite file at path and
// ensures the schema exists.
func NewRunTracker(path string) (*RunTracker, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("observability: open run tracker db: %w", err)
	}
	if _, err := db.Exec(runTrackerSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("observability: create run tracker schema: %w", err)
	}
	return &RunTracker{db: db}, nil
}

// Close releases the underlying database handle.
func (t *RunTracker) Close() error { return t.db.Close() }

// RunSpan tracks one in-flight Run; callers append ToolCall rows as they
// complete and call Close to finalize the span.
type RunSpan struct {
	tracker *RunTracker
	run     brain.Run
}

// TrackRun begins a new Run span for userInput.
func (t *RunTracker) TrackRun(ctx context.Context, userInput, sessionID string) *RunSpan {
	return &RunSpan{
		tracker: t,
		run: brain.Run{
			RunID:     uuid.NewString(),
			SessionID: sessionID,
			UserInput: userInput,
			StartedAt: time.Now(),
		},
	}
}

// RunID returns the span's run id, used to correlate tool calls and events.
func (s *RunSpan) RunID() string { return s.run.RunID }

// Close finalizes the run with the given status and writes the row.
func (s *RunSpan) Close(status brain.RunStatus, route, finalOutput, model string, totalTokens int, runErr error) error {
	s.run.EndedAt = time.Now()
	s.run.Status = status
	s.run.Route = route
	s.run.FinalOutput = finalOutput
	s.run.Model = model
	s.run.TotalTokens = totalTokens
	s.run.LatencyMS = s.run.EndedAt.Sub(s.run.StartedAt).Milliseconds()
	if runErr != nil {
		s.run.Error = runErr.Error()
	}

	_, err := s.tracker.db.Exec(
		`INSERT INTO runs(run_id, session_id, user_input, started_at, ended_at, status, route, final_output, model, total_tokens, latency_ms, error)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.run.RunID, s.run.SessionID, s.run.UserInput, s.run.StartedAt, s.run.EndedAt,
		string(s.run.Status), s.run.Route, s.run.FinalOutput, s.run.Model,
		s.run.TotalTokens, s.run.LatencyMS, s.run.Error,
	)
	return err
}

// RecordToolCall persists one ToolCall row belonging to this run, computing
// a deterministic result hash over the canonical JSON of result.
func (s *RunSpan) RecordToolCall(toolName string, params json.RawMessage, status string, result any, resultErr string, elapsed time.Duration, retryCount int, confirmation string) error {
	resultHash, resultSummary := hashAndSummarize(result)
	_, err := s.tracker.db.Exec(
		`INSERT INTO tool_calls(call_id, run_id, tool_name, params, status, result_hash, result_summary, error, elapsed_ms, retry_count, confirmation, created_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(), s.run.RunID, toolName, string(params), status,
		resultHash, resultSummary, resultErr, elapsed.Milliseconds(), retryCount, confirmation, time.Now(),
	)
	return err
}

func hashAndSummarize(result any) (hash, summary string) {
	buf, err := json.Marshal(result)
	if err != nil {
		return "", ""
	}
	sum := sha256.Sum256(buf)
	hash = hex.EncodeToString(sum[:])
	summary = string(buf)
	if len(summary) > 500 {
		summary = summary[:500] + "…"
	}
	return hash, summary
}

// SaveArtifact stores a content blob associated with runID (optional).
func (t *RunTracker) SaveArtifact(runID, artifactType, content, title, mimeType string) (brain.Artifact, error) {
	a := brain.Artifact{
		ArtifactID: uuid.NewString(),
		RunID:      runID,
		Type:       artifactType,
		Title:      title,
		Content:    content,
		MimeType:   mimeType,
		SizeBytes:  len(content),
		CreatedAt:  time.Now(),
	}
	_, err := t.db.Exec(
		`INSERT INTO artifacts(artifact_id, run_id, type, title, content, mime_type, size_bytes, created_at) VALUES (?,?,?,?,?,?,?,?)`,
		a.ArtifactID, a.RunID, a.Type, a.Title, a.Content, a.MimeType, a.SizeBytes, a.CreatedAt,
	)
	return a, err
}

// RunStats aggregates run outcomes, optionally since a cutoff time.
type RunStats struct {
	Total   int
	Success int
	Error   int
	Partial int
}

// Stats computes RunStats over runs started at or after since (zero time
// means unbounded).
func (t *RunTracker) Stats(since time.Time) (RunStats, error) {
	rows, err := t.db.Query(`SELECT status FROM runs WHERE started_at >= ?`, since)
	if err != nil {
		return RunStats{}, err
	}
	defer rows.Close()

	var stats RunStats
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return RunStats{}, err
		}
		stats.Total++
		switch brain.RunStatus(status) {
		case brain.RunSuccess:
			stats.Success++
		case brain.RunError:
			stats.Error++
		case brain.RunPartial:
			stats.Partial++
		}
	}
	return stats, rows.Err()
}

// SlowTools returns tool names whose average elapsed_ms exceeds thresholdMS.
func (t *RunTracker) SlowTools(thresholdMS int64) (map[string]float64, error) {
	rows, err := t.db.Query(`SELECT tool_name, AVG(elapsed_ms) FROM tool_calls GROUP BY tool_name HAVING AVG(elapsed_ms) > ?`, thresholdMS)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]float64{}
	for rows.Next() {
		var name string
		var avg float64
		if err := rows.Scan(&name, &avg); err != nil {
			return nil, err
		}
		out[name] = avg
	}
	return out, rows.Err()
}

// ToolStats aggregates tool_calls per tool name.
type ToolStats struct {
	Calls        int
	Errors       int
	AvgElapsedMS float64
}

// ToolStatsByName computes per-tool call/error counts and average latency.
func (t *RunTracker) ToolStatsByName() (map[string]ToolStats, error) {
	rows, err := t.db.Query(`SELECT tool_name, COUNT(*), SUM(CASE WHEN status = 'error' THEN 1 ELSE 0 END), AVG(elapsed_ms) FROM tool_calls GROUP BY tool_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]ToolStats{}
	for rows.Next() {
		var name string
		var st ToolStats
		if err := rows.Scan(&name, &st.Calls, &st.Errors, &st.AvgElapsedMS); err != nil {
			return nil, err
		}
		out[name] = st
	}
	return out, rows.Err()
}

// ArtifactStats aggregates stored artifacts per type.
type ArtifactStats struct {
	Count      int
	TotalBytes int64
}

// ArtifactStatsByType computes per-type artifact counts and total size.
func (t *RunTracker) ArtifactStatsByType() (map[string]ArtifactStats, error) {
	rows, err := t.db.Query(`SELECT type, COUNT(*), COALESCE(SUM(size_bytes), 0) FROM artifacts GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]ArtifactStats{}
	for rows.Next() {
		var typ string
		var st ArtifactStats
		if err := rows.Scan(&typ, &st.Count, &st.TotalBytes); err != nil {
			return nil, err
		}
		out[typ] = st
	}
	return out, rows.Err()
}

// ListRuns returns runs newest-first, paginated by limit and offset.
func (t *RunTracker) ListRuns(limit, offset int) ([]brain.Run, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := t.db.Query(
		`SELECT run_id, session_id, user_input, started_at, ended_at, status, route, final_output, model, total_tokens, latency_ms, error
		 FROM runs ORDER BY started_at DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []brain.Run
	for rows.Next() {
		var r brain.Run
		var status string
		if err := rows.Scan(&r.RunID, &r.SessionID, &r.UserInput, &r.StartedAt, &r.EndedAt,
			&status, &r.Route, &r.FinalOutput, &r.Model, &r.TotalTokens, &r.LatencyMS, &r.Error); err != nil {
			return nil, err
		}
		r.Status = brain.RunStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListToolCalls returns the tool calls belonging to runID, ordered by
// created_at (ties broken by call_id).
func (t *RunTracker) ListToolCalls(runID string) ([]brain.ToolCall, error) {
	rows, err := t.db.Query(
		`SELECT call_id, run_id, tool_name, params, status, result_hash, result_summary, error, elapsed_ms, retry_count, confirmation
		 FROM tool_calls WHERE run_id = ? ORDER BY created_at, call_id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []brain.ToolCall
	for rows.Next() {
		var c brain.ToolCall
		var params string
		if err := rows.Scan(&c.CallID, &c.RunID, &c.ToolName, &params, &c.Status,
			&c.ResultHash, &c.ResultSummary, &c.Error, &c.ElapsedMS, &c.RetryCount, &c.Confirmation); err != nil {
			return nil, err
		}
		c.Params = json.RawMessage(params)
		out = append(out, c)
	}
	return out, rows.Err()
}

// ErrorBreakdown counts tool_calls errors, optionally scoped to one tool.
func (t *RunTracker) ErrorBreakdown(toolName string) (map[string]int, error) {
	query := `SELECT error, COUNT(*) FROM tool_calls WHERE status = 'error'`
	args := []any{}
	if toolName != "" {
		query += ` AND tool_name = ?`
		args = append(args, toolName)
	}
	query += ` GROUP BY error`

	rows, err := t.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var errMsg string
		var count int
		if err := rows.Scan(&errMsg, &count); err != nil {
			return nil, err
		}
		out[errMsg] = count
	}
	return out, rows.Err()
}

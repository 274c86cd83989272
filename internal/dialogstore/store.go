// Package dialogstore is the persistent dialog memory layer: one
// CompactSummary row per conversational turn, scoped to a session,
// PII-filtered before it ever touches disk, with bounded reload on boot.
package dialogstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/google/uuid"

	"github.com/haasonsaas/bantz/pkg/brain"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id TEXT PRIMARY KEY,
	started_at TIMESTAMP NOT NULL,
	ended_at   TIMESTAMP,
	turn_count INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS turns (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id    TEXT NOT NULL,
	turn_number   INTEGER NOT NULL,
	user_intent   TEXT NOT NULL,
	action_taken  TEXT NOT NULL,
	pending_items TEXT NOT NULL DEFAULT '[]',
	timestamp     TIMESTAMP NOT NULL,
	created_at    TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id);
CREATE INDEX IF NOT EXISTS idx_turns_created_at ON turns(created_at);
`

// Store is the SQLite-backed (WAL mode) dialog memory store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's time source, for deterministic tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore opens (creating if necessary) the SQLite file at path. Tilde
// expansion is the caller's responsibility.
func NewStore(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("dialogstore: open db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("dialogstore: create schema: %w", err)
	}
	s := &Store{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// CreateSession inserts a new session row and returns its id.
func (s *Store) CreateSession(ctx context.Context) (string, error) {
	id := uuid.NewString()[:12]
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(session_id, started_at, turn_count) VALUES (?,?,0)`,
		id, s.now(),
	)
	return id, err
}

// EndSession marks a session as ended.
func (s *Store) EndSession(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE session_id = ?`,
		s.now(), sessionID,
	)
	return err
}

// SaveTurn persists summary under sessionID, applying the PII filter to
// user_intent, action_taken, and each pending item unless piiFilter is false.
func (s *Store) SaveTurn(ctx context.Context, sessionID string, summary brain.CompactSummary, piiFilter bool) error {
	userIntent := summary.UserIntent
	actionTaken := summary.ActionTaken
	pending := summary.PendingItems
	if piiFilter {
		userIntent = FilterPII(userIntent)
		actionTaken = FilterPII(actionTaken)
		filtered := make([]string, len(pending))
		for i, p := range pending {
			filtered[i] = FilterPII(p)
		}
		pending = filtered
	}

	pendingJSON, err := json.Marshal(pending)
	if err != nil {
		return fmt.Errorf("dialogstore: marshal pending items: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO turns(session_id, turn_number, user_intent, action_taken, pending_items, timestamp, created_at)
		 VALUES (?,?,?,?,?,?,?)`,
		sessionID, summary.TurnNumber, userIntent, actionTaken, string(pendingJSON), summary.Timestamp, s.now(),
	); err != nil {
		return fmt.Errorf("dialogstore: insert turn: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`UPDATE sessions SET turn_count = turn_count + 1 WHERE session_id = ?`,
		sessionID,
	)
	return err
}

func scanSummary(rows *sql.Rows) (brain.CompactSummary, error) {
	var summary brain.CompactSummary
	var pendingJSON string
	if err := rows.Scan(&summary.TurnNumber, &summary.UserIntent, &summary.ActionTaken, &pendingJSON, &summary.Timestamp); err != nil {
		return summary, err
	}
	if pendingJSON != "" {
		_ = json.Unmarshal([]byte(pendingJSON), &summary.PendingItems)
	}
	return summary, nil
}

// LoadSessionTurns returns all turns for one session, ascending by turn
// number.
func (s *Store) LoadSessionTurns(ctx context.Context, sessionID string) ([]brain.CompactSummary, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_number, user_intent, action_taken, pending_items, timestamp
		 FROM turns WHERE session_id = ? ORDER BY turn_number ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("dialogstore: query session turns: %w", err)
	}
	defer rows.Close()

	var out []brain.CompactSummary
	for rows.Next() {
		summary, err := scanSummary(rows)
		if err != nil {
			return nil, fmt.Errorf("dialogstore: scan turn: %w", err)
		}
		out = append(out, summary)
	}
	return out, rows.Err()
}

// SessionTurns pairs a session id with its loaded turns.
type SessionTurns struct {
	SessionID string
	Turns     []brain.CompactSummary
}

// LoadRecent returns up to maxSessions most-recent sessions (most-recent
// first), each with up to maxTurnsPerSession turns (ascending).
func (s *Store) LoadRecent(ctx context.Context, maxSessions, maxTurnsPerSession int) ([]SessionTurns, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT ?`,
		maxSessions,
	)
	if err != nil {
		return nil, fmt.Errorf("dialogstore: query recent sessions: %w", err)
	}
	var sessionIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, err
		}
		sessionIDs = append(sessionIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []SessionTurns
	for _, id := range sessionIDs {
		turnRows, err := s.db.QueryContext(ctx,
			`SELECT turn_number, user_intent, action_taken, pending_items, timestamp
			 FROM turns WHERE session_id = ? ORDER BY turn_number ASC LIMIT ?`,
			id, maxTurnsPerSession,
		)
		if err != nil {
			return nil, fmt.Errorf("dialogstore: query session turns: %w", err)
		}
		var turns []brain.CompactSummary
		for turnRows.Next() {
			summary, err := scanSummary(turnRows)
			if err != nil {
				turnRows.Close()
				return nil, fmt.Errorf("dialogstore: scan turn: %w", err)
			}
			turns = append(turns, summary)
		}
		turnRows.Close()
		if len(turns) > 0 {
			out = append(out, SessionTurns{SessionID: id, Turns: turns})
		}
	}
	return out, nil
}

// LoadAllTurnsFlat flattens LoadRecent into a single chronologically
// ascending list (oldest session first), for boot-time ring preload.
func (s *Store) LoadAllTurnsFlat(ctx context.Context, maxSessions, maxTurnsPerSession int) ([]brain.CompactSummary, error) {
	sessions, err := s.LoadRecent(ctx, maxSessions, maxTurnsPerSession)
	if err != nil {
		return nil, err
	}
	var out []brain.CompactSummary
	for i := len(sessions) - 1; i >= 0; i-- {
		out = append(out, sessions[i].Turns...)
	}
	return out, nil
}

// PruneOldSessions deletes all but the keepSessions most-recently-started
// sessions (and their turns), returning the number of sessions deleted.
func (s *Store) PruneOldSessions(ctx context.Context, keepSessions int) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id FROM sessions ORDER BY started_at DESC LIMIT -1 OFFSET ?`,
		keepSessions,
	)
	if err != nil {
		return 0, fmt.Errorf("dialogstore: query old sessions: %w", err)
	}
	var oldIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		oldIDs = append(oldIDs, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(oldIDs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	for _, id := range oldIDs {
		if _, err := tx.ExecContext(ctx, `DELETE FROM turns WHERE session_id = ?`, id); err != nil {
			return 0, err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(oldIDs), nil
}

// jsonlRecord is the export/import wire shape for one turn.
type jsonlRecord struct {
	SessionID        string   `json:"session_id"`
	TurnNumber       int      `json:"turn_number"`
	UserIntent       string   `json:"user_intent"`
	ActionTaken      string   `json:"action_taken"`
	PendingItems     []string `json:"pending_items"`
	Timestamp        string   `json:"timestamp"`
	SessionStartedAt string   `json:"session_started_at"`
}

// SessionCount returns the total number of sessions in the store.
func (s *Store) SessionCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n)
	return n, err
}

// TurnCount counts turns, optionally scoped to one session (empty string for
// all sessions).
func (s *Store) TurnCount(ctx context.Context, sessionID string) (int, error) {
	var n int
	var err error
	if sessionID == "" {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns`).Scan(&n)
	} else {
		err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM turns WHERE session_id = ?`, sessionID).Scan(&n)
	}
	return n, err
}

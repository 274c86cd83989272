package dialogstore

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ExportJSONL writes every turn, joined to its session's started_at, to path
// as newline-delimited JSON ordered by session start then turn number.
func (s *Store) ExportJSONL(ctx context.Context, path string) (int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.session_id, t.turn_number, t.user_intent, t.action_taken, t.pending_items, t.timestamp, s.started_at
		 FROM turns t JOIN sessions s ON t.session_id = s.session_id
		 ORDER BY s.started_at ASC, t.turn_number ASC`,
	)
	if err != nil {
		return 0, fmt.Errorf("dialogstore: query export rows: %w", err)
	}
	defer rows.Close()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("dialogstore: create export file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	defer w.Flush()

	count := 0
	for rows.Next() {
		var rec jsonlRecord
		var pendingJSON string
		var ts, startedAt time.Time
		if err := rows.Scan(&rec.SessionID, &rec.TurnNumber, &rec.UserIntent, &rec.ActionTaken, &pendingJSON, &ts, &startedAt); err != nil {
			return count, fmt.Errorf("dialogstore: scan export row: %w", err)
		}
		_ = json.Unmarshal([]byte(pendingJSON), &rec.PendingItems)
		rec.Timestamp = ts.Format(time.RFC3339)
		rec.SessionStartedAt = startedAt.Format(time.RFC3339)

		buf, err := json.Marshal(rec)
		if err != nil {
			return count, fmt.Errorf("dialogstore: marshal export row: %w", err)
		}
		if _, err := w.Write(append(buf, '\n')); err != nil {
			return count, fmt.Errorf("dialogstore: write export row: %w", err)
		}
		count++
	}
	return count, rows.Err()
}

// ImportJSONL loads turns from a file written by ExportJSONL, creating any
// session rows it hasn't seen yet.
func (s *Store) ImportJSONL(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("dialogstore: open import file: %w", err)
	}
	defer f.Close()

	seenSessions := map[string]bool{}
	count := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4<<20)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec jsonlRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return count, fmt.Errorf("dialogstore: unmarshal import row: %w", err)
		}

		if !seenSessions[rec.SessionID] {
			var exists int
			_ = s.db.QueryRowContext(ctx, `SELECT 1 FROM sessions WHERE session_id = ?`, rec.SessionID).Scan(&exists)
			if exists == 0 {
				startedAt, err := time.Parse(time.RFC3339, rec.SessionStartedAt)
				if err != nil {
					startedAt = s.now()
				}
				if _, err := s.db.ExecContext(ctx,
					`INSERT INTO sessions(session_id, started_at, turn_count) VALUES (?,?,0)`,
					rec.SessionID, startedAt,
				); err != nil {
					return count, fmt.Errorf("dialogstore: insert imported session: %w", err)
				}
			}
			seenSessions[rec.SessionID] = true
		}

		ts, err := time.Parse(time.RFC3339, rec.Timestamp)
		if err != nil {
			ts = s.now()
		}
		pendingJSON, err := json.Marshal(rec.PendingItems)
		if err != nil {
			return count, fmt.Errorf("dialogstore: marshal imported pending items: %w", err)
		}

		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO turns(session_id, turn_number, user_intent, action_taken, pending_items, timestamp, created_at)
			 VALUES (?,?,?,?,?,?,?)`,
			rec.SessionID, rec.TurnNumber, rec.UserIntent, rec.ActionTaken, string(pendingJSON), ts, s.now(),
		); err != nil {
			return count, fmt.Errorf("dialogstore: insert imported turn: %w", err)
		}
		count++
	}
	return count, scanner.Err()
}

package dialogstore

import (
	"context"
	"fmt"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// Manager is the dialog store's lifecycle wrapper: it creates a session on
// construction, preloads up to maxTurns past turns into an in-memory ring,
// and mirrors every AddTurn call to the SQLite store.
type Manager struct {
	store     *Store
	sessionID string

	maxTurns  int
	piiFilter bool
	ring      []brain.CompactSummary
}

// ManagerConfig holds the boot-reload limits and the PII-filter toggle.
type ManagerConfig struct {
	MaxSessions        int
	MaxTurnsPerSession int
	PIIFilterEnabled   bool
}

// DefaultManagerConfig returns the stock reload limits.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxSessions:        5,
		MaxTurnsPerSession: 20,
		PIIFilterEnabled:   true,
	}
}

// NewManager creates a session in store and preloads its in-memory ring from
// past sessions, bounded by cfg.
func NewManager(ctx context.Context, store *Store, cfg ManagerConfig, maxTurns int) (*Manager, error) {
	sessionID, err := store.CreateSession(ctx)
	if err != nil {
		return nil, fmt.Errorf("dialogstore: create session: %w", err)
	}

	m := &Manager{
		store:     store,
		sessionID: sessionID,
		maxTurns:  maxTurns,
		piiFilter: cfg.PIIFilterEnabled,
	}

	past, err := store.LoadAllTurnsFlat(ctx, cfg.MaxSessions, cfg.MaxTurnsPerSession)
	if err != nil {
		return nil, fmt.Errorf("dialogstore: boot reload: %w", err)
	}
	for _, summary := range past {
		m.pushRing(summary)
	}
	return m, nil
}

// SessionID returns the session id created for this manager.
func (m *Manager) SessionID() string { return m.sessionID }

func (m *Manager) pushRing(summary brain.CompactSummary) {
	m.ring = append(m.ring, summary)
	if len(m.ring) > m.maxTurns {
		m.ring = m.ring[len(m.ring)-m.maxTurns:]
	}
}

// AddTurn appends summary to the in-memory ring and persists it to SQLite.
func (m *Manager) AddTurn(ctx context.Context, summary brain.CompactSummary) error {
	m.pushRing(summary)
	return m.store.SaveTurn(ctx, m.sessionID, summary, m.piiFilter)
}

// ToPromptBlock concatenates the in-memory ring into a DIALOG_SUMMARY:
// block.
func (m *Manager) ToPromptBlock() string {
	if len(m.ring) == 0 {
		return ""
	}
	block := "DIALOG_SUMMARY:\n"
	for _, t := range m.ring {
		block += fmt.Sprintf("Turn %d: %s -> %s\n", t.TurnNumber, t.UserIntent, t.ActionTaken)
	}
	return block
}

// GetLatest returns the most recent in-memory turn, if any.
func (m *Manager) GetLatest() (brain.CompactSummary, bool) {
	if len(m.ring) == 0 {
		return brain.CompactSummary{}, false
	}
	return m.ring[len(m.ring)-1], true
}

// Len reports the number of turns currently held in the in-memory ring.
func (m *Manager) Len() int { return len(m.ring) }

// Clear empties the in-memory ring; SQLite data is preserved.
func (m *Manager) Clear() { m.ring = nil }

// EndSession marks the session as ended in the store.
func (m *Manager) EndSession(ctx context.Context) error {
	return m.store.EndSession(ctx, m.sessionID)
}

// Close ends the session and closes the underlying store.
func (m *Manager) Close(ctx context.Context) error {
	if err := m.EndSession(ctx); err != nil {
		return err
	}
	return m.store.Close()
}

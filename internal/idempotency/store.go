// Package idempotency implements the persistent, TTL-bound fingerprint
// store used to deduplicate retried side-effecting tool invocations (e.g.
// calendar event creation).
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/haasonsaas/bantz/pkg/brain"
)

// DefaultTTL is the default record lifetime (24h).
const DefaultTTL = 24 * time.Hour

// NormalizeTitle NFKC-folds, lowercases, and collapses whitespace, so
// titles differing only by Unicode form, case, or spacing fingerprint
// equal.
func NormalizeTitle(title string) string {
	if title == "" {
		return ""
	}
	title = norm.NFKC.String(title)
	var b strings.Builder
	lastSpace := false
	for _, r := range title {
		if unicode.IsSpace(r) {
			if !lastSpace {
				b.WriteByte(' ')
			}
			lastSpace = true
			continue
		}
		lastSpace = false
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.TrimSpace(b.String())
}

// NormalizeDateTime parses an ISO-8601 datetime (any offset), converts to
// UTC, and re-serializes in RFC3339 so the same instant always fingerprints
// identically regardless of which timezone offset the caller supplied.
// Falls back to a whitespace-trimmed copy of the input if it does not parse.
func NormalizeDateTime(dt string) string {
	dt = strings.TrimSpace(dt)
	if dt == "" {
		return ""
	}
	if t, err := time.Parse(time.RFC3339, dt); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	if t, err := time.Parse("2006-01-02T15:04:05", dt); err == nil {
		return t.UTC().Format(time.RFC3339)
	}
	return dt
}

// Fingerprint computes the deterministic SHA-256-derived idempotency key
// over the normalized (title, start, end, calendar_id) tuple.
func Fingerprint(title, start, end, calendarID string) string {
	parts := strings.Join([]string{
		NormalizeTitle(title),
		NormalizeDateTime(start),
		NormalizeDateTime(end),
		strings.ToLower(calendarID),
	}, "|")
	sum := sha256.Sum256([]byte(parts))
	return hex.EncodeToString(sum[:])[:32]
}

type fileFormat struct {
	Version   int                                 `json:"version"`
	UpdatedAt time.Time                           `json:"updated_at"`
	Records   map[string]*brain.IdempotencyRecord `json:"records"`
}

// Store is a file-backed, TTL-bound fingerprint->record map guarded by an
// in-process mutex and invalidated across processes by the backing file's
// mtime.
type Store struct {
	path string
	now  func() time.Time

	mu        sync.Mutex
	records   map[string]*brain.IdempotencyRecord
	loaded    bool
	lastMtime time.Time
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the store's time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// NewStore creates a Store backed by the JSON file at path.
func NewStore(path string, opts ...Option) *Store {
	s := &Store{
		path:    path,
		now:     time.Now,
		records: map[string]*brain.IdempotencyRecord{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// load re-reads the backing file if it has not yet been loaded or its mtime
// has changed since the last load, so records written by another process
// are picked up.
func (s *Store) load() {
	info, err := os.Stat(s.path)
	if err != nil {
		s.loaded = true
		return
	}
	if s.loaded && info.ModTime().Equal(s.lastMtime) {
		return
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		s.loaded = true
		return
	}
	var ff fileFormat
	if err := json.Unmarshal(data, &ff); err != nil {
		s.loaded = true
		return
	}

	now := s.now()
	records := make(map[string]*brain.IdempotencyRecord, len(ff.Records))
	for k, rec := range ff.Records {
		if rec != nil && !rec.Expired(now) {
			records[k] = rec
		}
	}
	s.records = records
	s.loaded = true
	s.lastMtime = info.ModTime()
}

// save writes the active (unexpired) record set atomically via a
// temp-file plus rename.
func (s *Store) save() error {
	now := s.now()
	active := make(map[string]*brain.IdempotencyRecord, len(s.records))
	for k, rec := range s.records {
		if !rec.Expired(now) {
			active[k] = rec
		}
	}

	ff := fileFormat{Version: 1, UpdatedAt: now.UTC(), Records: active}
	data, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}

	tmp, err := os.CreateTemp(dir, ".idempotency-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Chmod(tmpPath, 0o600); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return err
	}

	if info, err := os.Stat(s.path); err == nil {
		s.lastMtime = info.ModTime()
	}
	return nil
}

// Lookup returns the active record for key, or nil if none exists or it has
// expired.
func (s *Store) Lookup(key string) *brain.IdempotencyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	rec, ok := s.records[key]
	if !ok || rec.Expired(s.now()) {
		return nil
	}
	return rec
}

// Record stores a new fingerprint->event binding with ttl (DefaultTTL if 0).
func (s *Store) Record(key string, rec brain.IdempotencyRecord, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	rec.Key = key
	rec.CreatedAt = s.now()
	rec.TTLSeconds = int64(ttl.Seconds())
	s.records[key] = &rec
	return s.save()
}

// CreateFn performs the actual side effect (e.g. calling the calendar API)
// and returns the created event's id/summary, or an error.
type CreateFn func() (eventID, summary string, err error)

// CreateResult is the outcome of CreateWithIdempotency.
type CreateResult struct {
	OK        bool
	Duplicate bool
	EventID   string
	Summary   string
	Message   string
}

// CreateWithIdempotency deduplicates a create call: if an unexpired
// record for the fingerprint exists, it is returned without invoking
// createFn; otherwise createFn runs and, on success, its result is
// recorded.
func (s *Store) CreateWithIdempotency(title, start, end, calendarID string, createFn CreateFn) (CreateResult, error) {
	key := Fingerprint(title, start, end, calendarID)

	if existing := s.Lookup(key); existing != nil {
		return CreateResult{
			OK:        true,
			Duplicate: true,
			EventID:   existing.EventID,
			Summary:   existing.Summary,
			Message:   "bu etkinlik zaten ekli",
		}, nil
	}

	eventID, summary, err := createFn()
	if err != nil {
		return CreateResult{}, err
	}

	err = s.Record(key, brain.IdempotencyRecord{
		EventID:    eventID,
		Summary:    summary,
		Start:      NormalizeDateTime(start),
		End:        NormalizeDateTime(end),
		CalendarID: calendarID,
	}, DefaultTTL)
	if err != nil {
		return CreateResult{}, err
	}

	return CreateResult{OK: true, EventID: eventID, Summary: summary}, nil
}

// Sweep removes expired records from memory and persists the trimmed set.
// Intended to be called periodically (e.g. from a cron job) in addition to
// the lazy per-lookup expiry check.
func (s *Store) Sweep() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.load()
	return s.save()
}

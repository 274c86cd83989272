package idempotency

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/haasonsaas/bantz/pkg/brain"
	"github.com/stretchr/testify/require"
)

func TestFingerprint_StableAcrossWhitespaceCaseTimezone(t *testing.T) {
	a := Fingerprint("Toplantı", "2026-02-01T15:00:00+03:00", "2026-02-01T16:00:00+03:00", "primary")
	b := Fingerprint("  toplantı  ", "2026-02-01T12:00:00Z", "2026-02-01T13:00:00Z", "PRIMARY")
	require.Equal(t, a, b)
}

func TestFingerprint_StableAcrossUnicodeForms(t *testing.T) {
	// "görüşme" with precomposed ö/ü (NFC) vs o/u plus combining
	// diaeresis (NFD); NFKC folds both to the same form.
	composed := "görüşme"
	decomposed := "görüşme"
	require.NotEqual(t, composed, decomposed)

	a := Fingerprint(composed, "2026-02-01T15:00:00Z", "2026-02-01T16:00:00Z", "primary")
	b := Fingerprint(decomposed, "2026-02-01T15:00:00Z", "2026-02-01T16:00:00Z", "primary")
	require.Equal(t, a, b)

	// Compatibility forms fold too: fullwidth digits vs ASCII.
	c := Fingerprint("oda １０１", "2026-02-01T15:00:00Z", "2026-02-01T16:00:00Z", "primary")
	d := Fingerprint("oda 101", "2026-02-01T15:00:00Z", "2026-02-01T16:00:00Z", "primary")
	require.Equal(t, c, d)
}

func TestCreateWithIdempotency_DedupesWithinTTL(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(filepath.Join(dir, "idempotency.json"))

	calls := 0
	createFn := func() (string, string, error) {
		calls++
		return "evt-1", "Toplantı", nil
	}

	res1, err := store.CreateWithIdempotency("Toplantı", "2026-02-01T15:00:00+03:00", "2026-02-01T16:00:00+03:00", "primary", createFn)
	require.NoError(t, err)
	require.True(t, res1.OK)
	require.False(t, res1.Duplicate)

	res2, err := store.CreateWithIdempotency("toplantı", "2026-02-01T15:00:00+03:00", "2026-02-01T16:00:00+03:00", "primary", createFn)
	require.NoError(t, err)
	require.True(t, res2.Duplicate)
	require.Equal(t, "evt-1", res2.EventID)
	require.Equal(t, 1, calls)
}

func TestStore_ExpiredRecordIsInvisible(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	store := NewStore(filepath.Join(dir, "idempotency.json"), WithClock(func() time.Time { return now }))

	err := store.Record("k1", brain.IdempotencyRecord{EventID: "evt-1", Summary: "Toplantı"}, time.Millisecond)
	require.NoError(t, err)

	now = now.Add(time.Second)
	require.Nil(t, store.Lookup("k1"))
}

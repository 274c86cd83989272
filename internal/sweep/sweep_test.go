package sweep

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/bantz/internal/dialogstore"
	"github.com/haasonsaas/bantz/internal/idempotency"
)

func TestScheduler_StartStop(t *testing.T) {
	dir := t.TempDir()
	idem := idempotency.NewStore(filepath.Join(dir, "idempotency.json"))

	dialogStore, err := dialogstore.NewStore(filepath.Join(dir, "memory.db"))
	require.NoError(t, err)
	defer dialogStore.Close()

	sched, err := New(DefaultConfig(), idem, dialogStore, nil)
	require.NoError(t, err)

	sched.Start()
	sched.Stop()
}

func TestScheduler_NilStoresSkipped(t *testing.T) {
	sched, err := New(DefaultConfig(), nil, nil, nil)
	require.NoError(t, err)
	sched.Start()
	sched.Stop()
}

func TestScheduler_PruneJobCallable(t *testing.T) {
	dir := t.TempDir()
	dialogStore, err := dialogstore.NewStore(filepath.Join(dir, "memory.db"))
	require.NoError(t, err)
	defer dialogStore.Close()

	n, err := dialogStore.PruneOldSessions(context.Background(), 1)
	require.NoError(t, err)
	require.GreaterOrEqual(t, n, 0)
}

package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/bantz/pkg/brain"
)

func TestEventBus_WildcardSubscriptionMatches(t *testing.T) {
	bus := NewEventBus(10, nil)
	var got []string
	var mu sync.Mutex
	bus.Subscribe("tool.*", func(e brain.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.EventType)
	})

	bus.Publish("tool.executed", nil, "toolexec", "")
	bus.Publish("finalizer.error", nil, "orchestrator", "")
	bus.Publish("tool.failed", nil, "toolexec", "")

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"tool.executed", "tool.failed"}, got)
}

func TestEventBus_MiddlewareSuppressesEvent(t *testing.T) {
	bus := NewEventBus(10, nil)
	bus.AddMiddleware(func(e brain.Event) (brain.Event, bool) {
		return e, e.EventType != "noisy"
	})

	var count int
	bus.SubscribeAll(func(e brain.Event) { count++ })

	bus.Publish("noisy", nil, "src", "")
	bus.Publish("useful", nil, "src", "")

	require.Equal(t, 1, count)
}

func TestEventBus_AsyncHandlerDoesNotBlockPublish(t *testing.T) {
	bus := NewEventBus(10, nil)
	done := make(chan struct{})
	bus.SubscribeAsync("slow", func(e brain.Event) {
		time.Sleep(10 * time.Millisecond)
		close(done)
	})

	start := time.Now()
	bus.Publish("slow", nil, "src", "")
	require.Less(t, time.Since(start), 10*time.Millisecond)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("async handler never ran")
	}
}

func TestEventBus_PanickingHandlerDoesNotStopOtherSubscribers(t *testing.T) {
	bus := NewEventBus(10, NewLogger(DefaultLogConfig()))
	var secondRan bool
	bus.SubscribeAll(func(e brain.Event) { panic("boom") })
	bus.SubscribeAll(func(e brain.Event) { secondRan = true })

	require.NotPanics(t, func() { bus.Publish("x", nil, "src", "") })
	require.True(t, secondRan)
}

func TestEventBus_GetHistoryFiltersAndCapsByLimit(t *testing.T) {
	bus := NewEventBus(10, nil)
	bus.Publish("a", nil, "src", "")
	bus.Publish("b", nil, "src", "")
	bus.Publish("a", nil, "src", "")

	all := bus.GetHistory("", 0)
	require.Len(t, all, 3)

	onlyA := bus.GetHistory("a", 0)
	require.Len(t, onlyA, 2)

	limited := bus.GetHistory("", 1)
	require.Len(t, limited, 1)
}

func TestEventBus_HistoryRingIsBounded(t *testing.T) {
	bus := NewEventBus(2, nil)
	bus.Publish("a", nil, "src", "")
	bus.Publish("b", nil, "src", "")
	bus.Publish("c", nil, "src", "")

	require.Len(t, bus.GetHistory("", 0), 2)
}

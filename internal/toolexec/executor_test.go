package toolexec

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/haasonsaas/bantz/internal/confirm"
	"github.com/haasonsaas/bantz/pkg/brain"
)

func newTestExecutor() *Executor {
	risks := confirm.NewRegistry()
	risks.Register("calendar.delete_event", brain.RiskDestructive)
	risks.Register("calendar.create_event", brain.RiskModerate)
	return NewExecutor(risks, nil)
}

func TestExecute_DestructiveToolAwaitsConfirmationFirst(t *testing.T) {
	e := newTestExecutor()
	called := false
	runner := func(ctx context.Context, action string, params map[string]any) (any, bool, int, error) {
		called = true
		return "deleted", false, 0, nil
	}

	result := e.Execute(context.Background(), Step{Action: "calendar.delete_event", Params: map[string]any{"event_id": "evt-1"}}, runner, false)
	require.True(t, result.AwaitingConfirmation)
	require.NotEmpty(t, result.ConfirmationPrompt)
	require.False(t, called)
}

func TestExecute_ConfirmedDestructiveToolInvokesHandlerOnce(t *testing.T) {
	e := newTestExecutor()
	step := Step{Action: "calendar.delete_event", Params: map[string]any{"event_id": "evt-1"}}
	e.ConfirmAction(step)

	calls := 0
	runner := func(ctx context.Context, action string, params map[string]any) (any, bool, int, error) {
		calls++
		return "deleted", false, 0, nil
	}

	result := e.Execute(context.Background(), step, runner, false)
	require.True(t, result.OK)
	require.Equal(t, 1, calls)

	// Token is single-use: a second execute without re-confirming awaits again.
	second := e.Execute(context.Background(), step, runner, false)
	require.True(t, second.AwaitingConfirmation)
	require.Equal(t, 1, calls)
}

func TestExecute_ModerateToolNeverAwaitsConfirmation(t *testing.T) {
	e := newTestExecutor()
	runner := func(ctx context.Context, action string, params map[string]any) (any, bool, int, error) {
		return "created", false, 0, nil
	}
	result := e.Execute(context.Background(), Step{Action: "calendar.create_event"}, runner, false)
	require.False(t, result.AwaitingConfirmation)
	require.True(t, result.OK)
}

func TestExecute_HandlerErrorSurfacesInResult(t *testing.T) {
	e := newTestExecutor()
	runner := func(ctx context.Context, action string, params map[string]any) (any, bool, int, error) {
		return nil, false, 0, errors.New("upstream unavailable")
	}
	result := e.Execute(context.Background(), Step{Action: "calendar.create_event"}, runner, false)
	require.False(t, result.OK)
	require.Equal(t, "upstream unavailable", result.Error)
}

func TestExecute_DuplicateFlagAnnotatesSuccessMessage(t *testing.T) {
	e := newTestExecutor()
	runner := func(ctx context.Context, action string, params map[string]any) (any, bool, int, error) {
		return "evt-1", true, 0, nil
	}
	result := e.Execute(context.Background(), Step{Action: "calendar.create_event"}, runner, false)
	require.True(t, result.OK)
	require.True(t, result.Duplicate)
	require.Contains(t, result.Data, "zaten")
}

package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ActionOrdering(t *testing.T) {
	b := onboarding()
	b.State("draft").OnExit("second").Webhook("https://x").Order(2)
	b.State("draft").OnExit("first").Webhook("https://x").Order(1)
	b.State("active").OnEnter("enter-b").Webhook("https://x").Order(5)
	b.State("active").OnEnter("enter-a").Webhook("https://x").Order(3)
	f := setup(t, b, runtime.WithSyncEntryActions())

	res, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)

	assert.Equal(t, []string{"on_exit:first", "on_exit:second", "on_enter:enter-a", "on_enter:enter-b"}, f.exec.Calls())
	require.Len(t, res.Entry.Outcomes, 4)
	for _, o := range res.Entry.Outcomes {
		assert.True(t, o.Success)
	}
}

func TestEngine_ExitAbortRollsBack(t *testing.T) {
	b := onboarding()
	b.State("draft").OnExit("gate").Webhook("https://x").Abort()
	b.State("draft").OnExit("after").Webhook("https://x")
	b.State("active").OnEnter("welcome").Webhook("https://x")
	f := setup(t, b)
	f.exec.fail["gate"] = true

	_, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.ErrorIs(t, err, domain.ErrActionDispatchFailed)

	var failed *domain.ActionDispatchFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "gate", failed.ActionID)
	assert.Equal(t, domain.OnExit, failed.Phase)
	assert.True(t, failed.Aborted)

	f.engine.Wait()
	assert.Equal(t, []string{"on_exit:gate"}, f.exec.Calls(), "nothing runs after an aborting failure")

	status, _ := f.engine.GetStatus(context.Background(), "u-1")
	assert.Equal(t, "draft", status.CurrentStateID)
	assert.Equal(t, int64(1), status.Version)
	assert.Empty(t, status.History)
}

func TestEngine_ExitContinueIsRecorded(t *testing.T) {
	b := onboarding()
	b.State("draft").OnExit("flaky").Webhook("https://x").Continue()
	f := setup(t, b)
	f.exec.fail["flaky"] = true

	res, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)
	require.Len(t, res.Entry.Outcomes, 1)
	assert.False(t, res.Entry.Outcomes[0].Success)
	assert.Equal(t, "executor failure", res.Entry.Outcomes[0].Error)

	status, _ := f.engine.GetStatus(context.Background(), "u-1")
	assert.Equal(t, "active", status.CurrentStateID)
	require.Len(t, status.History[0].Outcomes, 1)
}

func TestEngine_ExitTimeoutIsAFailure(t *testing.T) {
	b := onboarding()
	b.State("draft").OnExit("slow").Webhook("https://x").Abort().Timeout(20 * time.Millisecond)
	f := setup(t, b)
	f.exec.block["slow"] = true

	_, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.ErrorIs(t, err, domain.ErrActionDispatchFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngine_DefaultActionTimeout(t *testing.T) {
	b := onboarding()
	b.State("draft").OnExit("slow").Webhook("https://x").Abort()
	f := setup(t, b, runtime.WithActionTimeout(20*time.Millisecond))
	f.exec.block["slow"] = true

	started := time.Now()
	_, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), 5*time.Second)
}

func TestEngine_EntryFailuresDoNotRollBack(t *testing.T) {
	b := onboarding()
	b.State("active").OnEnter("provision").Webhook("https://x").Abort()
	b.State("active").OnEnter("notify").Webhook("https://x")
	f := setup(t, b)
	f.exec.fail["provision"] = true

	res, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)
	assert.Equal(t, "active", res.NewState.ID)

	f.engine.Wait()

	status, err := f.engine.GetStatus(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "active", status.CurrentStateID)
	assert.Equal(t, int64(2), status.Version, "late outcomes do not bump the version")
	require.Len(t, status.History, 1)
	require.Len(t, status.History[0].Outcomes, 2, "entry actions after a failed abort-policy action still run")
	outcome := status.History[0].Outcomes[0]
	assert.Equal(t, "provision", outcome.ActionID)
	assert.Equal(t, domain.OnEnter, outcome.Phase)
	assert.False(t, outcome.Success)
	assert.False(t, outcome.Aborted, "a committed transition is never aborted")
	assert.Equal(t, "notify", status.History[0].Outcomes[1].ActionID)
	assert.True(t, status.History[0].Outcomes[1].Success)
	assert.Equal(t, []string{"on_enter:provision", "on_enter:notify"}, f.exec.Calls())
}

func TestDispatcher_EntryPhaseRunsEveryAction(t *testing.T) {
	exec := ports.ActionExecutorFunc(func(_ context.Context, req domain.ActionRequest) error {
		if req.Action.ID == "first" {
			return errors.New("boom")
		}
		return nil
	})
	d := runtime.NewDispatcher(exec, 0, nil)
	actions := []domain.StateAction{
		{ID: "first", Type: domain.ActionWebhook, Trigger: domain.OnEnter, Order: 0, FailurePolicy: domain.PolicyAbort},
		{ID: "second", Type: domain.ActionWebhook, Trigger: domain.OnEnter, Order: 1, FailurePolicy: domain.PolicyContinue},
	}

	outcomes, err := d.Run(context.Background(), domain.ActionRequest{ObjectID: "u-1"}, actions, domain.OnEnter)
	require.ErrorIs(t, err, domain.ErrActionDispatchFailed)
	require.Len(t, outcomes, 2)
	assert.False(t, outcomes[0].Success)
	assert.False(t, outcomes[0].Aborted)
	assert.True(t, outcomes[1].Success)

	for i := range actions {
		actions[i].Trigger = domain.OnExit
	}
	outcomes, err = d.Run(context.Background(), domain.ActionRequest{ObjectID: "u-1"}, actions, domain.OnExit)
	require.ErrorIs(t, err, domain.ErrActionDispatchFailed)
	require.Len(t, outcomes, 1, "exit phase stops at the first abort-policy failure")
	assert.True(t, outcomes[0].Aborted)
}

func TestEngine_EntryActionsOutliveCaller(t *testing.T) {
	b := onboarding()
	b.State("active").OnEnter("notify").Webhook("https://x")
	f := setup(t, b)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := f.engine.ApplyTransition(ctx, domain.ApplyRequest{
		ObjectID: "u-1", ConfigID: "onboarding", TransitionID: "activate",
		Context: map[string]any{"email_verified": true},
	})
	require.NoError(t, err)
	cancel()
	f.engine.Wait()

	status, _ := f.engine.GetStatus(context.Background(), "u-1")
	require.Len(t, status.History[0].Outcomes, 1)
	assert.True(t, status.History[0].Outcomes[0].Success)
}

func TestDispatcher_NilExecutorFails(t *testing.T) {
	d := runtime.NewDispatcher(nil, 0, nil)
	actions := []domain.StateAction{{ID: "a", Type: domain.ActionWebhook, Trigger: domain.OnExit, FailurePolicy: domain.PolicyContinue}}

	outcomes, err := d.Run(context.Background(), domain.ActionRequest{ObjectID: "u-1"}, actions, domain.OnExit)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.Contains(t, outcomes[0].Error, "no action executor")
}

func TestResolve(t *testing.T) {
	def := onboarding().MustBuild()

	tr, err := runtime.Resolve(def, "draft", "activate")
	require.NoError(t, err)
	assert.Equal(t, "active", tr.ToStateID)

	_, err = runtime.Resolve(def, "ghost", "activate")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = runtime.Resolve(def, "active", "activate")
	assert.ErrorIs(t, err, domain.ErrTransitionNotFound)

	_, err = runtime.Resolve(def, "draft", "unknown")
	assert.ErrorIs(t, err, domain.ErrTransitionNotFound)
}

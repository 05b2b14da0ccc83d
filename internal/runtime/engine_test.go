package runtime_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/waypoint/internal/runtime"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recorder is an ActionExecutor that records calls and fails the configured action ids.
type recorder struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
	block map[string]bool
}

func newRecorder() *recorder {
	return &recorder{fail: map[string]bool{}, block: map[string]bool{}}
}

func (r *recorder) Execute(ctx context.Context, req domain.ActionRequest) error {
	r.mu.Lock()
	r.calls = append(r.calls, string(req.Phase)+":"+req.Action.ID)
	fail, block := r.fail[req.Action.ID], r.block[req.Action.ID]
	r.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	if fail {
		return errors.New("executor failure")
	}
	return nil
}

func (r *recorder) Calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

type fixture struct {
	engine *runtime.Engine
	repo   *memory.Repository
	store  *memory.Store
	exec   *recorder
	audit  *memory.AuditLog
}

func onboarding() *dsl.Builder {
	b := dsl.New("acme", "onboarding", "user").Active()
	b.State("draft").Initial()
	b.State("active")
	b.State("suspended")
	b.State("archived").Terminal()
	b.Transition("activate", "draft", "active").When("email_verified", domain.OpEquals, true)
	b.Transition("suspend", "active", "suspended")
	b.Transition("archive", "active", "archived")
	return b
}

func setup(t *testing.T, b *dsl.Builder, opts ...runtime.EngineOption) *fixture {
	t.Helper()
	def, err := b.Build()
	require.NoError(t, err)

	repo, err := memory.NewFromDefinitions(def)
	require.NoError(t, err)
	f := &fixture{
		repo:  repo,
		store: memory.NewStore(),
		exec:  newRecorder(),
		audit: memory.NewAuditLog(nil),
	}
	opts = append([]runtime.EngineOption{runtime.WithAuditLog(f.audit)}, opts...)
	f.engine = runtime.NewEngine(f.repo, f.store, f.exec, opts...)

	_, err = f.engine.Enroll(context.Background(), runtime.EnrollRequest{
		TenantID: "acme", ObjectID: "u-1", ConfigID: "onboarding", TriggeredBy: "alice",
	})
	require.NoError(t, err)
	return f
}

func apply(f *fixture, transition string, ctx map[string]any) (*domain.TransitionResult, error) {
	return f.engine.ApplyTransition(context.Background(), domain.ApplyRequest{
		ObjectID: "u-1", ConfigID: "onboarding", TransitionID: transition, Context: ctx, TriggeredBy: "alice",
	})
}

func TestEngine_GuardFailedLeavesStatusUnchanged(t *testing.T) {
	f := setup(t, onboarding())

	_, err := apply(f, "activate", map[string]any{"email_verified": false})
	require.ErrorIs(t, err, domain.ErrTransitionGuardFailed)

	var guard *domain.TransitionGuardFailedError
	require.True(t, errors.As(err, &guard))
	assert.Equal(t, "activate", guard.TransitionID)
	require.Len(t, guard.Evaluation.Results, 1)
	assert.False(t, guard.Evaluation.Results[0].Met)
	assert.Equal(t, "activate-1", guard.Evaluation.Results[0].ConditionID)

	status, err := f.engine.GetStatus(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "draft", status.CurrentStateID)
	assert.Equal(t, int64(1), status.Version)
	assert.Empty(t, status.History)
}

func TestEngine_ApplyTransition(t *testing.T) {
	f := setup(t, onboarding())

	res, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)
	assert.Equal(t, "active", res.NewState.ID)
	assert.Equal(t, "draft", res.Entry.FromStateID)
	assert.Equal(t, "active", res.Entry.ToStateID)
	assert.Equal(t, "activate", res.Entry.TransitionID)
	assert.Equal(t, "alice", res.Entry.TriggeredBy)

	status, err := f.engine.GetStatus(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, "active", status.CurrentStateID)
	assert.Equal(t, int64(2), status.Version)
	require.Len(t, status.History, 1)
	assert.Equal(t, res.Entry.ID, status.History[0].ID)

	var actions []string
	for _, e := range f.audit.Events() {
		actions = append(actions, e.Action)
	}
	assert.Equal(t, []string{domain.AuditObjectEnrolled, domain.AuditTransitionApplied}, actions)
}

func TestEngine_ReapplyingIsRejected(t *testing.T) {
	f := setup(t, onboarding())
	_, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)

	_, err = apply(f, "activate", map[string]any{"email_verified": true})
	assert.ErrorIs(t, err, domain.ErrTransitionNotFound)
}

func TestEngine_SelfLoopCanBeReapplied(t *testing.T) {
	b := onboarding()
	b.Transition("touch", "active", "active")
	f := setup(t, b)
	_, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := apply(f, "touch", nil)
		require.NoError(t, err)
		assert.Equal(t, "active", res.NewState.ID)
	}
	status, _ := f.engine.GetStatus(context.Background(), "u-1")
	assert.Equal(t, int64(4), status.Version)
}

func TestEngine_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown object", func(t *testing.T) {
		f := setup(t, onboarding())
		_, err := f.engine.ApplyTransition(ctx, domain.ApplyRequest{ObjectID: "ghost", ConfigID: "onboarding", TransitionID: "activate"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
		_, err = f.engine.GetStatus(ctx, "ghost")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := setup(t, onboarding())
		_, err := f.engine.ApplyTransition(ctx, domain.ApplyRequest{ObjectID: "u-1"})
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Len(t, domain.Violations(err), 2)
	})

	t.Run("transition from another state", func(t *testing.T) {
		f := setup(t, onboarding())
		_, err := apply(f, "archive", nil)
		assert.ErrorIs(t, err, domain.ErrTransitionNotFound)
	})

	t.Run("governed by another config", func(t *testing.T) {
		f := setup(t, onboarding())
		_, err := f.engine.ApplyTransition(ctx, domain.ApplyRequest{ObjectID: "u-1", ConfigID: "other", TransitionID: "activate"})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("config not active", func(t *testing.T) {
		f := setup(t, onboarding())
		def, err := f.repo.Get(ctx, "acme", "onboarding")
		require.NoError(t, err)
		def.Config.Status = domain.ConfigDisabled
		require.NoError(t, f.repo.Save(ctx, def))

		_, err = apply(f, "activate", map[string]any{"email_verified": true})
		assert.ErrorIs(t, err, domain.ErrConfigNotActive)
	})

	t.Run("current state removed from config", func(t *testing.T) {
		f := setup(t, onboarding())
		def, err := f.repo.Get(ctx, "acme", "onboarding")
		require.NoError(t, err)
		def.States = def.States[1:]
		require.NoError(t, f.repo.Save(ctx, def))

		_, err = apply(f, "activate", map[string]any{"email_verified": true})
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("enroll twice", func(t *testing.T) {
		f := setup(t, onboarding())
		_, err := f.engine.Enroll(ctx, runtime.EnrollRequest{TenantID: "acme", ObjectID: "u-1", ConfigID: "onboarding"})
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("canceled before commit", func(t *testing.T) {
		f := setup(t, onboarding())
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := f.engine.ApplyTransition(canceled, domain.ApplyRequest{
			ObjectID: "u-1", ConfigID: "onboarding", TransitionID: "activate",
			Context: map[string]any{"email_verified": true},
		})
		assert.ErrorIs(t, err, context.Canceled)
		status, _ := f.engine.GetStatus(ctx, "u-1")
		assert.Equal(t, "draft", status.CurrentStateID)
	})
}

func TestEngine_Evaluate(t *testing.T) {
	f := setup(t, onboarding())
	ctx := context.Background()

	eval, err := f.engine.Evaluate(ctx, "acme", "onboarding", "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)
	assert.True(t, eval.AllMet)

	eval, err = f.engine.Evaluate(ctx, "acme", "onboarding", "suspend", nil)
	require.NoError(t, err)
	assert.True(t, eval.AllMet, "transitions without conditions are unconditional")

	_, err = f.engine.Evaluate(ctx, "acme", "onboarding", "nope", nil)
	assert.ErrorIs(t, err, domain.ErrTransitionNotFound)

	status, _ := f.engine.GetStatus(ctx, "u-1")
	assert.Equal(t, int64(1), status.Version, "evaluate must not mutate")
}

func TestEngine_ConcurrentApply(t *testing.T) {
	f := setup(t, onboarding())
	_, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded []string
		conflicts int
	)
	start := make(chan struct{})
	for _, transition := range []string{"suspend", "archive", "suspend", "archive"} {
		wg.Add(1)
		go func(transition string) {
			defer wg.Done()
			<-start
			res, err := apply(f, transition, nil)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded = append(succeeded, res.NewState.ID)
			case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, domain.ErrTransitionNotFound):
				// Losers either fail the CAS or, if they load after the winner committed,
				// find no such transition from the new state.
				conflicts++
				if errors.Is(err, domain.ErrConcurrentModification) {
					assert.True(t, domain.IsRetryable(err))
				}
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(transition)
	}
	close(start)
	wg.Wait()

	require.Len(t, succeeded, 1)
	assert.Equal(t, 3, conflicts)

	status, err := f.engine.GetStatus(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, succeeded[0], status.CurrentStateID)
	assert.Equal(t, int64(3), status.Version)
	assert.Len(t, status.History, 2)
}

func TestEngine_Hooks(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []string
		guards      []string
		dispatched  []string
	)
	hooks := domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			mu.Lock()
			defer mu.Unlock()
			transitions = append(transitions, e.Entry.TransitionID)
		},
		OnGuardFailed: func(_ context.Context, e *domain.GuardEvent) {
			mu.Lock()
			defer mu.Unlock()
			guards = append(guards, e.TransitionID)
		},
		OnActionDispatched: func(_ context.Context, e *domain.ActionEvent) {
			mu.Lock()
			defer mu.Unlock()
			dispatched = append(dispatched, e.Outcome.ActionID)
		},
	}
	b := onboarding()
	b.State("active").OnEnter("welcome").Webhook("https://hooks.example.com")
	f := setup(t, b, runtime.WithLifecycleHooks(hooks), runtime.WithSyncEntryActions())

	_, _ = apply(f, "activate", nil)
	_, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"activate"}, guards)
	assert.Equal(t, []string{"activate"}, transitions)
	assert.Equal(t, []string{"welcome"}, dispatched)
}

func TestEngine_WithClockAndIDs(t *testing.T) {
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := setup(t, onboarding(),
		runtime.WithClock(func() time.Time { return fixed }),
		runtime.WithIDGenerator(func() string { return "entry-1" }))

	res, err := apply(f, "activate", map[string]any{"email_verified": true})
	require.NoError(t, err)
	assert.Equal(t, "entry-1", res.Entry.ID)
	assert.True(t, fixed.Equal(res.Entry.At))
}

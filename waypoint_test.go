package waypoint_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	goruntime "runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/internal/testutils"
	"github.com/aretw0/waypoint/pkg/adapters/memory"
	"github.com/aretw0/waypoint/pkg/adapters/process"
	"github.com/aretw0/waypoint/pkg/adapters/webhook"
	"github.com/aretw0/waypoint/pkg/admin"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var system = admin.Caller{TenantID: "acme", Actor: "tester"}

func accountLifecycle() *domain.Definition {
	b := dsl.New("acme", "account", "user").Name("Account").Active()
	b.State("draft").Initial()
	b.State("active")
	b.State("archived").Terminal()
	b.Transition("activate", "draft", "active").
		WhenID("verified", "email_verified", domain.OpEquals, true)
	b.Transition("archive", "active", "archived")
	return b.MustBuild()
}

func TestEngine_EndToEnd(t *testing.T) {
	ctx := context.Background()
	eng, err := waypoint.New("", waypoint.WithSyncEntryActions())
	require.NoError(t, err)
	require.NoError(t, eng.Admin().Import(ctx, system, []*domain.Definition{accountLifecycle()}))

	status, err := eng.Enroll(ctx, waypoint.EnrollRequest{TenantID: "acme", ObjectID: "user-42", ConfigID: "account"})
	require.NoError(t, err)
	assert.Equal(t, "draft", status.CurrentStateID)

	_, err = eng.ApplyTransition(ctx, domain.ApplyRequest{
		ObjectID: "user-42", ConfigID: "account", TransitionID: "activate",
		Context: map[string]any{"email_verified": false},
	})
	var guard *domain.TransitionGuardFailedError
	require.ErrorAs(t, err, &guard)
	unmet := guard.Evaluation.Unmet()
	require.Len(t, unmet, 1)
	assert.Equal(t, "verified", unmet[0].ConditionID)

	status, err = eng.GetStatus(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "draft", status.CurrentStateID)
	assert.Empty(t, status.History)

	result, err := eng.ApplyTransition(ctx, domain.ApplyRequest{
		ObjectID: "user-42", ConfigID: "account", TransitionID: "activate",
		Context: map[string]any{"email_verified": true},
	})
	require.NoError(t, err)
	assert.Equal(t, "active", result.NewState.ID)
	assert.Equal(t, "draft", result.Entry.FromStateID)
	assert.Equal(t, "active", result.Entry.ToStateID)
	assert.Equal(t, "activate", result.Entry.TransitionID)

	status, err = eng.GetStatus(ctx, "user-42")
	require.NoError(t, err)
	assert.Equal(t, "active", status.CurrentStateID)
	require.Len(t, status.History, 1)
	assert.Equal(t, int64(2), status.Version)
}

func TestEngine_ConcurrentTransitionsSerialize(t *testing.T) {
	ctx := context.Background()
	eng, err := waypoint.New("")
	require.NoError(t, err)
	require.NoError(t, eng.Admin().Import(ctx, system, []*domain.Definition{accountLifecycle()}))
	_, err = eng.Enroll(ctx, waypoint.EnrollRequest{TenantID: "acme", ObjectID: "u-1", ConfigID: "account"})
	require.NoError(t, err)

	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := eng.ApplyTransition(ctx, domain.ApplyRequest{
				ObjectID: "u-1", ConfigID: "account", TransitionID: "activate",
				Context: map[string]any{"email_verified": true},
			})
			switch {
			case err == nil:
				ok.Add(1)
			case errors.Is(err, domain.ErrConcurrentModification), errors.Is(err, domain.ErrTransitionNotFound):
				conflicts.Add(1)
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	eng.Wait()

	assert.Equal(t, int32(1), ok.Load())
	assert.Equal(t, int32(7), conflicts.Load())
	status, err := eng.GetStatus(ctx, "u-1")
	require.NoError(t, err)
	assert.Len(t, status.History, 1)
}

func TestEngine_AdminEditsReachRuntime(t *testing.T) {
	ctx := context.Background()
	eng, err := waypoint.New("", waypoint.WithSyncEntryActions())
	require.NoError(t, err)
	require.NoError(t, eng.Admin().Import(ctx, system, []*domain.Definition{accountLifecycle()}))
	_, err = eng.Enroll(ctx, waypoint.EnrollRequest{TenantID: "acme", ObjectID: "u-1", ConfigID: "account"})
	require.NoError(t, err)

	// Warm the cache, then loosen the guard.
	eval, err := eng.Evaluate(ctx, "acme", "account", "activate", map[string]any{})
	require.NoError(t, err)
	assert.False(t, eval.AllMet)

	_, err = eng.Admin().ReplaceConditions(ctx, system, "account", "activate", nil)
	require.NoError(t, err)

	result, err := eng.ApplyTransition(ctx, domain.ApplyRequest{ObjectID: "u-1", ConfigID: "account", TransitionID: "activate"})
	require.NoError(t, err)
	assert.Equal(t, "active", result.NewState.ID)
}

func TestEngine_WebhookEntryAction(t *testing.T) {
	var hits atomic.Int32
	var signature atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		signature.Store(r.Header.Get(webhook.HeaderSignature))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	b := dsl.New("acme", "account", "user").Name("Account").Active()
	b.State("draft").Initial()
	b.State("active").OnEnter("welcome").Webhook(srv.URL).Timeout(2 * time.Second)
	b.Transition("activate", "draft", "active")

	ctx := context.Background()
	eng, err := waypoint.New("",
		waypoint.WithSyncEntryActions(),
		waypoint.WithWebhookOptions(webhook.WithSigningSecret("s3cret")))
	require.NoError(t, err)
	require.NoError(t, eng.Admin().Import(ctx, system, []*domain.Definition{b.MustBuild()}))
	_, err = eng.Enroll(ctx, waypoint.EnrollRequest{TenantID: "acme", ObjectID: "u-1", ConfigID: "account"})
	require.NoError(t, err)

	result, err := eng.ApplyTransition(ctx, domain.ApplyRequest{ObjectID: "u-1", ConfigID: "account", TransitionID: "activate"})
	require.NoError(t, err)
	assert.Equal(t, "active", result.NewState.ID)
	assert.Equal(t, int32(1), hits.Load())
	assert.NotEmpty(t, signature.Load())

	status, err := eng.GetStatus(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, status.History, 1)
	require.Len(t, status.History[0].Outcomes, 1)
	assert.True(t, status.History[0].Outcomes[0].Success)
}

func TestEngine_ImportDir(t *testing.T) {
	dir := t.TempDir()
	testutils.WriteFiles(t, dir, map[string]string{"onboarding.md": testutils.OnboardingMarkdown})

	eng, err := waypoint.New(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Base(dir), eng.Name)

	def, err := eng.Admin().GetConfig(context.Background(), system, "onboarding")
	require.NoError(t, err)
	assert.Equal(t, domain.ConfigActive, def.Config.Status)
	assert.Len(t, def.States, 3)
}

func TestEngine_PIIMasking(t *testing.T) {
	ctx := context.Background()
	audit := memory.NewAuditLog(nil)
	eng, err := waypoint.New("",
		waypoint.WithAuditLog(audit),
		waypoint.WithPIIMasking("(?i)email"),
		waypoint.WithSyncEntryActions())
	require.NoError(t, err)
	require.NoError(t, eng.Admin().Import(ctx, system, []*domain.Definition{accountLifecycle()}))
	_, err = eng.Enroll(ctx, waypoint.EnrollRequest{TenantID: "acme", ObjectID: "u-1", ConfigID: "account"})
	require.NoError(t, err)

	reqCtx := map[string]any{"email_verified": true, "email": "ana@example.com"}
	_, err = eng.ApplyTransition(ctx, domain.ApplyRequest{
		ObjectID: "u-1", ConfigID: "account", TransitionID: "activate", Context: reqCtx,
	})
	require.NoError(t, err)
	assert.Equal(t, "ana@example.com", reqCtx["email"])

	var transitioned *domain.AuditEvent
	for _, ev := range audit.Events() {
		if ev.Action == domain.AuditTransitionApplied {
			ev := ev
			transitioned = &ev
		}
	}
	require.NotNil(t, transitioned)
	recorded := transitioned.Payload["context"].(map[string]any)
	assert.Equal(t, "***", recorded["email"])
}

func TestEngine_ProcessExitActionAborts(t *testing.T) {
	if goruntime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	exec := process.NewExecutor()
	exec.Register("precheck", "sh", "-c", `test "$WAYPOINT_TRANSITION_ID" != "activate"`)

	b := dsl.New("acme", "account", "user").Name("Account").Active()
	b.State("draft").Initial().OnExit("precheck").Custom(string(process.ActionType), map[string]any{"command": "precheck"}).Abort()
	b.State("active")
	b.Transition("activate", "draft", "active")

	ctx := context.Background()
	eng, err := waypoint.New("", waypoint.WithExecutor(process.ActionType, exec))
	require.NoError(t, err)
	require.NoError(t, eng.Admin().Import(ctx, system, []*domain.Definition{b.MustBuild()}))
	_, err = eng.Enroll(ctx, waypoint.EnrollRequest{TenantID: "acme", ObjectID: "u-1", ConfigID: "account"})
	require.NoError(t, err)

	_, err = eng.ApplyTransition(ctx, domain.ApplyRequest{ObjectID: "u-1", ConfigID: "account", TransitionID: "activate"})
	require.ErrorIs(t, err, domain.ErrActionDispatchFailed)

	status, err := eng.GetStatus(ctx, "u-1")
	require.NoError(t, err)
	assert.Equal(t, "draft", status.CurrentStateID)
	assert.Empty(t, status.History)
}

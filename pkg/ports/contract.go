package ports

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ContractDefinition returns a small but complete definition exercising every value kind
// and both action variants. Contract suites and adapter tests share it.
func ContractDefinition(tenantID, configID string) *domain.Definition {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Definition{
		Config: domain.LifecycleConfig{
			ID:         configID,
			TenantID:   tenantID,
			ObjectType: "user",
			Name:       "User onboarding",
			Status:     domain.ConfigDraft,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
		States: []domain.State{
			{ID: "draft", ConfigID: configID, Name: "Draft", IsInitial: true},
			{ID: "active", ConfigID: configID, Name: "Active"},
			{ID: "archived", ConfigID: configID, Name: "Archived", IsTerminal: true},
		},
		Transitions: []domain.Transition{
			{ID: "activate", ConfigID: configID, Name: "Activate", FromStateID: "draft", ToStateID: "active"},
			{ID: "archive", ConfigID: configID, Name: "Archive", FromStateID: "active", ToStateID: "archived", RequiresApproval: true},
		},
		Conditions: map[string][]domain.Condition{
			"activate": {
				{ID: "c-verified", TransitionID: "activate", Attribute: "email_verified", Operator: domain.OpEquals, Value: domain.BoolValue(true)},
				{ID: "c-age", TransitionID: "activate", Attribute: "profile.age", Operator: domain.OpGreaterThan, Value: domain.NumberValue(17)},
				{ID: "c-role", TransitionID: "activate", Attribute: "role", Operator: domain.OpIn, Value: domain.ListValue(domain.StringValue("admin"), domain.StringValue("user"))},
				{ID: "c-mail", TransitionID: "activate", Attribute: "email", Operator: domain.OpExists},
			},
		},
		Actions: map[string][]domain.StateAction{
			"active": {
				{
					ID: "notify", StateID: "active", Type: domain.ActionWebhook, Trigger: domain.OnEnter, Order: 1,
					FailurePolicy: domain.PolicyContinue, Timeout: 5 * time.Second,
					Webhook: &domain.WebhookConfig{URL: "https://hooks.example.com/active", Method: "POST"},
				},
				{
					ID: "provision", StateID: "active", Type: domain.ActionType("provision"), Trigger: domain.OnEnter, Order: 0,
					FailurePolicy: domain.PolicyAbort, Raw: json.RawMessage(`{"plan":"basic"}`),
				},
			},
		},
	}
}

// RunConfigRepositoryContract verifies that a ConfigRepository implementation
// adheres to the defined interface contract.
func RunConfigRepositoryContract(t *testing.T, repo ConfigRepository) {
	ctx := context.Background()
	tenant := "tenant-" + uuid.NewString()
	configID := "cfg-" + uuid.NewString()

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := repo.Get(ctx, tenant, configID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Save and Get", func(t *testing.T) {
		def := ContractDefinition(tenant, configID)
		require.NoError(t, repo.Save(ctx, def))

		loaded, err := repo.Get(ctx, tenant, configID)
		require.NoError(t, err)
		assert.Equal(t, def.Config.ID, loaded.Config.ID)
		assert.Equal(t, def.Config.Name, loaded.Config.Name)
		assert.Equal(t, def.Config.ObjectType, loaded.Config.ObjectType)
		assert.Equal(t, domain.ConfigDraft, loaded.Config.Status)
		assert.ElementsMatch(t, def.States, loaded.States)
		assert.ElementsMatch(t, def.Transitions, loaded.Transitions)

		conds := loaded.ConditionsFor("activate")
		require.Len(t, conds, 4)
		byID := map[string]domain.Condition{}
		for _, c := range conds {
			byID[c.ID] = c
		}
		for _, want := range def.ConditionsFor("activate") {
			got, ok := byID[want.ID]
			require.True(t, ok, "condition %s missing", want.ID)
			assert.Equal(t, want.Attribute, got.Attribute)
			assert.Equal(t, want.Operator, got.Operator)
			assert.True(t, want.Value.Equal(got.Value), "value of %s: want %s, got %s", want.ID, want.Value, got.Value)
		}

		actions := domain.SortActions(loaded.ActionsFor("active"))
		require.Len(t, actions, 2)
		assert.Equal(t, "provision", actions[0].ID)
		assert.Equal(t, domain.PolicyAbort, actions[0].FailurePolicy)
		assert.JSONEq(t, `{"plan":"basic"}`, string(actions[0].Raw))
		require.NotNil(t, actions[1].Webhook)
		assert.Equal(t, "https://hooks.example.com/active", actions[1].Webhook.URL)
		assert.Equal(t, 5*time.Second, actions[1].Timeout)
	})

	t.Run("Tenant Isolation", func(t *testing.T) {
		_, err := repo.Get(ctx, "other-"+tenant, configID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Save Replaces", func(t *testing.T) {
		def := ContractDefinition(tenant, configID)
		def.Config.Status = domain.ConfigActive
		def.Transitions = def.Transitions[:1]
		def.Actions = nil
		require.NoError(t, repo.Save(ctx, def))

		loaded, err := repo.Get(ctx, tenant, configID)
		require.NoError(t, err)
		assert.Equal(t, domain.ConfigActive, loaded.Config.Status)
		assert.Len(t, loaded.Transitions, 1)
		assert.Empty(t, loaded.ActionsFor("active"))
	})

	t.Run("List", func(t *testing.T) {
		second := "cfg-" + uuid.NewString()
		require.NoError(t, repo.Save(ctx, ContractDefinition(tenant, second)))

		configs, err := repo.List(ctx, tenant)
		require.NoError(t, err)
		ids := make([]string, 0, len(configs))
		for _, c := range configs {
			ids = append(ids, c.ID)
		}
		assert.ElementsMatch(t, []string{configID, second}, ids)
		assert.True(t, sort.StringsAreSorted(ids), "List must be ordered by id")

		require.NoError(t, repo.Delete(ctx, tenant, second))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, tenant, configID))
		_, err := repo.Get(ctx, tenant, configID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = repo.Delete(ctx, tenant, configID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

// RunStatusStoreContract verifies that a StatusStore implementation adheres to the
// defined interface contract, including the compare-and-swap race.
func RunStatusStoreContract(t *testing.T, store StatusStore) {
	ctx := context.Background()
	tenant := "tenant-" + uuid.NewString()
	configID := "cfg-" + uuid.NewString()
	now := time.Now().UTC().Truncate(time.Microsecond)

	newObject := func() *domain.ObjectLifecycleStatus {
		return domain.NewStatus(tenant, "obj-"+uuid.NewString(), configID, "draft", now)
	}
	entry := func(from, to, transition string) domain.HistoryEntry {
		return domain.HistoryEntry{
			ID:           uuid.NewString(),
			FromStateID:  from,
			ToStateID:    to,
			TransitionID: transition,
			At:           now.Add(time.Second),
			TriggeredBy:  "contract",
		}
	}

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "missing-"+uuid.NewString())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Create and Load", func(t *testing.T) {
		status := newObject()
		require.NoError(t, store.Create(ctx, status))

		loaded, err := store.Load(ctx, status.ObjectID)
		require.NoError(t, err)
		assert.Equal(t, status.ObjectID, loaded.ObjectID)
		assert.Equal(t, tenant, loaded.TenantID)
		assert.Equal(t, configID, loaded.ConfigID)
		assert.Equal(t, "draft", loaded.CurrentStateID)
		assert.Equal(t, int64(1), loaded.Version)
		assert.Empty(t, loaded.History)

		err = store.Create(ctx, status)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("CompareAndSwap", func(t *testing.T) {
		status := newObject()
		require.NoError(t, store.Create(ctx, status))

		e := entry("draft", "active", "activate")
		updated, err := store.CompareAndSwap(ctx, status.ObjectID, 1, "active", e)
		require.NoError(t, err)
		assert.Equal(t, "active", updated.CurrentStateID)
		assert.Equal(t, int64(2), updated.Version)
		require.Len(t, updated.History, 1)
		assert.Equal(t, e.ID, updated.History[0].ID)

		_, err = store.CompareAndSwap(ctx, status.ObjectID, 1, "archived", entry("active", "archived", "archive"))
		assert.ErrorIs(t, err, domain.ErrConcurrentModification)

		loaded, err := store.Load(ctx, status.ObjectID)
		require.NoError(t, err)
		assert.Equal(t, "active", loaded.CurrentStateID)
		assert.Equal(t, int64(2), loaded.Version)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, "draft", loaded.History[0].FromStateID)
		assert.Equal(t, "activate", loaded.History[0].TransitionID)
		assert.Equal(t, "contract", loaded.History[0].TriggeredBy)
	})

	t.Run("CompareAndSwap Non-Existent", func(t *testing.T) {
		_, err := store.CompareAndSwap(ctx, "missing-"+uuid.NewString(), 1, "active", entry("draft", "active", "activate"))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("RecordOutcomes", func(t *testing.T) {
		status := newObject()
		require.NoError(t, store.Create(ctx, status))
		e := entry("draft", "active", "activate")
		_, err := store.CompareAndSwap(ctx, status.ObjectID, 1, "active", e)
		require.NoError(t, err)

		outcome := domain.ActionOutcome{
			ActionID: "notify", Type: domain.ActionWebhook, Phase: domain.OnEnter,
			Success: false, Error: "boom", Duration: 20 * time.Millisecond, At: now,
		}
		require.NoError(t, store.RecordOutcomes(ctx, status.ObjectID, e.ID, []domain.ActionOutcome{outcome}))

		loaded, err := store.Load(ctx, status.ObjectID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), loaded.Version, "recording outcomes must not bump the version")
		require.Len(t, loaded.History[0].Outcomes, 1)
		assert.Equal(t, "notify", loaded.History[0].Outcomes[0].ActionID)
		assert.Equal(t, "boom", loaded.History[0].Outcomes[0].Error)

		err = store.RecordOutcomes(ctx, status.ObjectID, "no-such-entry", []domain.ActionOutcome{outcome})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("CountByConfig", func(t *testing.T) {
		n, err := store.CountByConfig(ctx, tenant, configID)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 3)

		n, err = store.CountByConfig(ctx, tenant, "unused-"+uuid.NewString())
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("Concurrent CompareAndSwap", func(t *testing.T) {
		status := newObject()
		require.NoError(t, store.Create(ctx, status))

		const racers = 8
		var (
			wg        sync.WaitGroup
			mu        sync.Mutex
			winners   []string
			conflicts int
		)
		start := make(chan struct{})
		for i := 0; i < racers; i++ {
			target := "active"
			if i%2 == 1 {
				target = "suspended"
			}
			wg.Add(1)
			go func(target string) {
				defer wg.Done()
				<-start
				_, err := store.CompareAndSwap(ctx, status.ObjectID, 1, target, entry("draft", target, "to-"+target))
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					winners = append(winners, target)
				case errors.Is(err, domain.ErrConcurrentModification):
					conflicts++
				default:
					t.Errorf("unexpected error: %v", err)
				}
			}(target)
		}
		close(start)
		wg.Wait()

		require.Len(t, winners, 1, "exactly one racer must win")
		assert.Equal(t, racers-1, conflicts)

		loaded, err := store.Load(ctx, status.ObjectID)
		require.NoError(t, err)
		assert.Equal(t, winners[0], loaded.CurrentStateID)
		assert.Equal(t, int64(2), loaded.Version)
		require.Len(t, loaded.History, 1)
		assert.Equal(t, winners[0], loaded.History[0].ToStateID)
	})
}

// RunLockerContract checks that a Locker excludes concurrent holders of one key
// without blocking other keys.
func RunLockerContract(t *testing.T, locker Locker) {
	t.Helper()
	ctx := context.Background()
	key := "config:" + uuid.NewString()

	t.Run("Exclusive", func(t *testing.T) {
		unlock, err := locker.Lock(ctx, key, time.Second)
		require.NoError(t, err)

		waitCtx, cancel := context.WithTimeout(ctx, 150*time.Millisecond)
		defer cancel()
		_, err = locker.Lock(waitCtx, key, time.Second)
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		other, err := locker.Lock(ctx, key+":other", time.Second)
		require.NoError(t, err, "distinct keys must not block each other")
		require.NoError(t, other(ctx))

		require.NoError(t, unlock(ctx))
		again, err := locker.Lock(ctx, key, time.Second)
		require.NoError(t, err)
		require.NoError(t, again(ctx))
	})

	t.Run("Serializes", func(t *testing.T) {
		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			holders int
			maxSeen int
		)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				unlock, err := locker.Lock(ctx, key+":serial", 5*time.Second)
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				holders++
				maxSeen = max(maxSeen, holders)
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				holders--
				mu.Unlock()
				assert.NoError(t, unlock(ctx))
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
	})
}

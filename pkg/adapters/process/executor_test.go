package process

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func request(command string) domain.ActionRequest {
	return domain.ActionRequest{
		Action: domain.StateAction{
			ID:      "notify",
			Type:    ActionType,
			Trigger: domain.OnEnter,
			Raw:     []byte(`{"command":"` + command + `"}`),
		},
		Phase:        domain.OnEnter,
		TenantID:     "acme",
		ObjectID:     "user-1",
		ConfigID:     "onboarding",
		TransitionID: "activate",
		FromStateID:  "draft",
		ToStateID:    "active",
		Context:      map[string]any{"email": "a@example.com"},
	}
}

func TestExecutor_Execute(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	out := filepath.Join(t.TempDir(), "out.txt")

	exec := NewExecutor(WithCommands(map[string]CommandConfig{
		"record": {
			Command:     "sh",
			Args:        []string{"-c", `printf '%s|%s|%s' "$WAYPOINT_OBJECT_ID" "$WAYPOINT_TO_STATE" "$WAYPOINT_CONTEXT" > "$OUT"`},
			Environment: map[string]string{"OUT": out},
		},
	}))
	exec.Register("fail", "sh", "-c", "echo boom >&2; exit 3")

	t.Run("Runs Registered Command With Transition Env", func(t *testing.T) {
		require.NoError(t, exec.Execute(context.Background(), request("record")))
		data, err := os.ReadFile(out)
		require.NoError(t, err)
		assert.Equal(t, `user-1|active|{"email":"a@example.com"}`, string(data))
	})

	t.Run("Fails For Unregistered Command", func(t *testing.T) {
		err := exec.Execute(context.Background(), request("rm_everything"))
		assert.ErrorIs(t, err, ErrNotRegistered)
	})

	t.Run("Non Zero Exit Carries Stderr", func(t *testing.T) {
		err := exec.Execute(context.Background(), request("fail"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("Missing Config", func(t *testing.T) {
		req := request("record")
		req.Action.Raw = nil
		require.Error(t, exec.Execute(context.Background(), req))
	})
}

func TestLoadCommands(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "commands.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
commands:
  - name: notify
    command: ./notify.sh
    args: ["--quiet"]
    env:
      CHANNEL: ops
  - name: incomplete
`), 0o644))

	commands, err := LoadCommands(yamlPath)
	require.NoError(t, err)
	require.Len(t, commands, 1)
	assert.Equal(t, "./notify.sh", commands["notify"].Command)
	assert.Equal(t, []string{"--quiet"}, commands["notify"].Args)
	assert.Equal(t, "ops", commands["notify"].Environment["CHANNEL"])

	jsonPath := filepath.Join(dir, "commands.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"commands":[{"name":"audit","command":"true"}]}`), 0o644))
	commands, err = LoadCommands(jsonPath)
	require.NoError(t, err)
	assert.Contains(t, commands, "audit")

	commands, err = LoadCommands(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)
	assert.Empty(t, commands)
}

package testutils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/stretchr/testify/require"
)

// SetupTestRepo creates a temporary directory and initializes a Loam repository in it.
// It returns the absolute path to the temp dir and the initialized repository.
// It fails the test immediately on error.
func SetupTestRepo(t *testing.T, opts ...loam.Option) (string, core.Repository) {
	t.Helper()

	tmpDir := t.TempDir()

	// Loam sometimes prefers absolute paths, though t.TempDir usually returns one.
	absPath, err := filepath.Abs(tmpDir)
	require.NoError(t, err, "Failed to get absolute path for temp dir")

	repo, err := loam.Init(absPath, opts...)
	require.NoError(t, err, "Failed to init loam repo")

	return absPath, repo
}

// WriteFiles seeds dir with the given relative file names and contents.
func WriteFiles(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(dir, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// OnboardingMarkdown is a valid definition document used across adapter and CLI tests.
const OnboardingMarkdown = `---
id: onboarding
tenant_id: acme
object_type: user
name: User onboarding
status: active
states:
  - id: draft
    initial: true
  - id: active
    actions:
      - id: welcome
        type: webhook
        trigger: on_enter
        failure_policy: continue
        timeout: 2s
        config:
          url: https://hooks.example.com/welcome
          headers:
            X-Team: core
  - id: archived
    terminal: true
transitions:
  - id: activate
    from: draft
    to: active
    conditions:
      - id: verified
        attribute: email_verified
        operator: equals
        value: true
      - attribute: profile.age
        operator: greater_than
        value: 17
  - id: archive
    from: active
    to: archived
    requires_approval: true
---
Accounts start as drafts and become active once the email is verified.
`

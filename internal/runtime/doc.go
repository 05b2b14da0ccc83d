// Package runtime implements the lifecycle orchestrator: it resolves the requested
// transition, evaluates its guard, sequences exit and entry actions around the state
// commit, and persists the new state with compare-and-swap on the status version.
package runtime

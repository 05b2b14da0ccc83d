/*
Package ports defines the driven ports (interfaces) of the Waypoint engine.

These interfaces decouple the lifecycle core from external implementations, allowing
the engine to work with various storage backends, action executors and audit sinks.

# Key Interfaces

  - ConfigRepository: Loads and persists lifecycle definitions per tenant.
  - StatusStore: Persists object status records with compare-and-swap on version.
  - ActionExecutor: Performs the side effect of a state action (e.g. a webhook call).
  - AuditLog: Records config mutations and committed transitions.

Contract suites (RunConfigRepositoryContract, RunStatusStoreContract) let every
adapter prove it honours the same semantics.
*/
package ports

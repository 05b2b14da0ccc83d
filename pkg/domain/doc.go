/*
Package domain contains the core domain models of the Waypoint lifecycle engine.

It defines the entities administrators configure (lifecycle configs, states,
transitions, guard conditions and state actions) and the runtime record of an
object moving through them. This package is kept pure and free of external
dependencies like I/O or persistence, following Hexagonal Architecture principles.

# Key Entities

  - LifecycleConfig: A tenant-scoped state machine definition for one object type.
  - State / Transition: The nodes and explicitly identified edges of that machine.
  - Condition: A guard predicate over caller-supplied context, with a tagged Value.
  - StateAction: A side effect fired on entering or exiting a state.
  - Definition: The aggregate of all of the above, as persisted and validated.
  - ObjectLifecycleStatus: The current state, version and append-only history of one object.
*/
package domain

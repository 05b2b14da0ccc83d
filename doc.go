/*
Package waypoint is an object lifecycle engine: tenants define finite state machines
(states, named transitions, guard conditions and state actions) and objects are moved
through them one named transition at a time.

# Concept

A lifecycle config belongs to a tenant and governs one object type. A transition fires
only when every one of its guard conditions holds against the context the caller
supplies. Exit actions of the source state run before the state change is committed and
may veto it; entry actions of the target state run after the commit and only record
their outcome. The status of an object is updated with compare-and-swap on a version, so
two callers racing on the same object never both win.

The engine is hexagonal: config and status stores, the action executors and the audit
log are ports (see pkg/ports) with memory, Redis and Postgres adapters.

# Usage

	engine, err := waypoint.New("./lifecycles") // imports every definition file found there
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	_, err = engine.Enroll(ctx, waypoint.EnrollRequest{
		TenantID: "acme", ObjectID: "user-42", ConfigID: "onboarding",
	})
	if err != nil {
		log.Fatal(err)
	}

	result, err := engine.ApplyTransition(ctx, domain.ApplyRequest{
		ObjectID:     "user-42",
		ConfigID:     "onboarding",
		TransitionID: "activate",
		Context:      map[string]any{"email_verified": true},
	})
	var guard *domain.TransitionGuardFailedError
	if errors.As(err, &guard) {
		for _, r := range guard.Evaluation.Unmet() {
			log.Printf("unmet: %s %s", r.Attribute, r.Operator)
		}
	}
*/
package waypoint

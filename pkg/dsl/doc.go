/*
Package dsl provides a Go DSL for programmatically constructing Waypoint lifecycle definitions.

It lets developers define states, transitions, guard conditions and state actions with a
fluent builder instead of hand-assembling domain structs or writing YAML documents. This is
particularly useful for unit testing, seeding and leveraging IDE autocompletion.

Example usage:

	b := dsl.New("acme", "user-onboarding", "user").
		Name("User onboarding").
		Active()

	b.State("draft").Initial()
	b.State("active").
		OnEnter("welcome").Webhook("https://hooks.example.com/welcome").Continue()
	b.State("archived").Terminal()

	b.Transition("activate", "draft", "active").
		When("email_verified", domain.OpEquals, true)
	b.Transition("archive", "active", "archived")

	def, err := b.Build() // validated *domain.Definition
*/
package dsl

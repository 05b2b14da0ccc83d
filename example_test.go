package waypoint_test

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/admin"
	"github.com/aretw0/waypoint/pkg/domain"
	"github.com/aretw0/waypoint/pkg/dsl"
)

// ExampleNew shows a lifecycle built in code and an object moved through it.
func ExampleNew() {
	b := dsl.New("acme", "invoice", "invoice").Name("Invoice").Active()
	b.State("open").Initial()
	b.State("paid").Terminal()
	b.Transition("pay", "open", "paid").When("amount_due", domain.OpLessThan, 0.01)

	engine, err := waypoint.New("")
	if err != nil {
		log.Fatal(err)
	}
	ctx := context.Background()
	if err := engine.Admin().Import(ctx, admin.Caller{TenantID: "acme"}, []*domain.Definition{b.MustBuild()}); err != nil {
		log.Fatal(err)
	}
	if _, err := engine.Enroll(ctx, waypoint.EnrollRequest{TenantID: "acme", ObjectID: "inv-1", ConfigID: "invoice"}); err != nil {
		log.Fatal(err)
	}

	_, err = engine.ApplyTransition(ctx, domain.ApplyRequest{
		ObjectID: "inv-1", ConfigID: "invoice", TransitionID: "pay",
		Context: map[string]any{"amount_due": 120},
	})
	fmt.Println("blocked:", errors.Is(err, domain.ErrTransitionGuardFailed))

	result, err := engine.ApplyTransition(ctx, domain.ApplyRequest{
		ObjectID: "inv-1", ConfigID: "invoice", TransitionID: "pay",
		Context: map[string]any{"amount_due": 0},
	})
	if err != nil {
		log.Fatal(err)
	}
	engine.Wait()
	fmt.Println("state:", result.NewState.ID)
	// Output:
	// blocked: true
	// state: paid
}

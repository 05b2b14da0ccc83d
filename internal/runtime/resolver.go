package runtime

import (
	"fmt"

	"github.com/aretw0/waypoint/pkg/domain"
)

// Resolve returns the transition named transitionID if it starts at currentStateID.
// The caller always names the transition; no transition is ever inferred from its endpoints.
func Resolve(def *domain.Definition, currentStateID, transitionID string) (domain.Transition, error) {
	if _, ok := def.State(currentStateID); !ok {
		return domain.Transition{}, fmt.Errorf("%w: state %q is not part of config %q",
			domain.ErrInvalidState, currentStateID, def.Config.ID)
	}
	for _, t := range def.Transitions {
		if t.ID == transitionID && t.FromStateID == currentStateID {
			return t, nil
		}
	}
	return domain.Transition{}, fmt.Errorf("%w: no transition %q from state %q",
		domain.ErrTransitionNotFound, transitionID, currentStateID)
}

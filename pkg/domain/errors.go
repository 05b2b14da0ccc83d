package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is returned when a config, state, transition or object status does not exist.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when creating a record whose id is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrConfigNotActive is returned when a transition targets a config that is not active.
	ErrConfigNotActive = errors.New("lifecycle config is not active")
	// ErrInvalidState is returned when the object's current state is not part of the config.
	ErrInvalidState = errors.New("invalid state")
	// ErrTransitionNotFound is returned when no transition with the requested id starts at the current state.
	ErrTransitionNotFound = errors.New("transition not found")
	// ErrConcurrentModification is returned when the status version changed since it was loaded.
	// Callers may retry.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrConfigInUse is returned when deleting a config that still governs objects.
	ErrConfigInUse = errors.New("lifecycle config in use")

	ErrValidation            = errors.New("validation failed")
	ErrTransitionGuardFailed = errors.New("transition guard failed")
	ErrActionDispatchFailed  = errors.New("action dispatch failed")
)

// IsRetryable reports whether the caller may retry the operation unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// Violation codes reported by the config validator.
const (
	CodeInitialState    = "initial_state"
	CodeUnknownState    = "unknown_state"
	CodeTerminalSource  = "terminal_source"
	CodeDuplicateID     = "duplicate_id"
	CodeMissingField    = "missing_field"
	CodeUnknownRef      = "unknown_reference"
	CodeInvalidOperator = "invalid_operator"
	CodeInvalidValue    = "invalid_value"
	CodeInvalidAction   = "invalid_action"
	CodeDuplicateOrder  = "duplicate_order"
	CodeInvalidStatus   = "invalid_status"
)

// Violation is one structural defect found in a definition.
type Violation struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	if v.Path == "" {
		return fmt.Sprintf("%s: %s", v.Code, v.Message)
	}
	return fmt.Sprintf("%s at %s: %s", v.Code, v.Path, v.Message)
}

// ValidationError enumerates every violation found in a definition.
type ValidationError struct {
	Violations []Violation `json:"violations"`
}

func (e *ValidationError) Error() string {
	if len(e.Violations) == 1 {
		return "invalid lifecycle config: " + e.Violations[0].String()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "invalid lifecycle config: %d violations:\n", len(e.Violations))
	for i, v := range e.Violations {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, v.String())
	}
	return b.String()
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Has reports whether a violation with the given code was recorded.
func (e *ValidationError) Has(code string) bool {
	for _, v := range e.Violations {
		if v.Code == code {
			return true
		}
	}
	return false
}

// Without returns a copy without the violations of the given codes, or nil if none remain.
func (e *ValidationError) Without(codes ...string) *ValidationError {
	var kept []Violation
outer:
	for _, v := range e.Violations {
		for _, c := range codes {
			if v.Code == c {
				continue outer
			}
		}
		kept = append(kept, v)
	}
	if len(kept) == 0 {
		return nil
	}
	return &ValidationError{Violations: kept}
}

// Violations returns the violations carried by err, or nil.
func Violations(err error) []Violation {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations
	}
	return nil
}

// TransitionGuardFailedError carries the full per-condition evaluation of a blocked transition.
type TransitionGuardFailedError struct {
	TransitionID string
	Evaluation   Evaluation
}

func (e *TransitionGuardFailedError) Error() string {
	ids := make([]string, 0, len(e.Evaluation.Results))
	for _, r := range e.Evaluation.Unmet() {
		ids = append(ids, r.ConditionID)
	}
	return fmt.Sprintf("transition %q guard failed: unmet conditions [%s]", e.TransitionID, strings.Join(ids, ", "))
}

func (e *TransitionGuardFailedError) Is(target error) bool { return target == ErrTransitionGuardFailed }

// ActionDispatchFailedError reports which action failed, in which phase, and whether
// the failure aborted the transition.
type ActionDispatchFailedError struct {
	ActionID   string
	ActionType ActionType
	Phase      Trigger
	Aborted    bool
	Err        error
}

func (e *ActionDispatchFailedError) Error() string {
	verdict := "recorded"
	if e.Aborted {
		verdict = "transition aborted"
	}
	return fmt.Sprintf("action %q (%s, %s) failed, %s: %v", e.ActionID, e.ActionType, e.Phase, verdict, e.Err)
}

func (e *ActionDispatchFailedError) Is(target error) bool { return target == ErrActionDispatchFailed }

func (e *ActionDispatchFailedError) Unwrap() error { return e.Err }

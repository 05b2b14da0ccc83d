// Package condition evaluates transition guard conditions against caller-supplied context.
//
// Evaluation is pure and total: every operator/value combination yields a bool, and
// inputs that cannot be compared evaluate to false instead of raising an error.
package condition

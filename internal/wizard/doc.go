// Package wizard implements the step wizard that builds one submission.
//
// A Session walks an ordered survey.Definition. Input for the fields of the
// current step is staged with Set; Advance validates the current step and,
// only if it passes, merges the staged input into the session's cumulative
// answers and moves forward. Retreat moves back without validation and
// keeps every merged answer. Submit is only accepted on the final step.
//
// State machine:
//
//	0 -> 1 -> ... -> N-1 --Submit--> submitted
//	any non-terminal --Abandon--> abandoned
//
// Validation failures are values (StepResult.Violations), never errors.
// Storage failures during Submit are returned as *SubmitError, which is
// retryable; the session stays on the final step. Activity events are
// handed to an EventTracker and can never fail a transition.
package wizard

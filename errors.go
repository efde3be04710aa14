package main

import (
	"errors"
	"fmt"
	"strings"
)

// FailureKind distinguishes the ways a stage or the whole run can die.
type FailureKind string

const (
	FailPrecondition  FailureKind = "precondition_timeout"
	FailAction        FailureKind = "stage_action_failed"
	FailPostcondition FailureKind = "postcondition_timeout"
	FailFrameAccess   FailureKind = "frame_access_failed"
	FailOrderDeclined FailureKind = "order_declined"
)

// StageError is the single summarized error a failed run propagates.
type StageError struct {
	Stage StageName
	Kind  FailureKind
	Err   error
}

func (e *StageError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("stage %s: %s", e.Stage, e.Kind)
	}
	return fmt.Sprintf("stage %s: %s: %v", e.Stage, e.Kind, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// transientError marks a single strategy attempt as retryable with the
// next strategy in line. Anything not wrapped this way fails the stage.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient wraps err so the stage executor moves on to the next strategy.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

func isTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// ErrFieldNotFound is returned by the field locator after every selector
// strategy for a field has been exhausted.
var ErrFieldNotFound = errors.New("field not found")

// ErrorSignal is one piece of error-indicating text observed on the page
// after order submission.
type ErrorSignal struct {
	Text     string
	Category string
	Elapsed  int // poll checks elapsed since submission
}

// errorKeywords are matched case-insensitively against visible text in
// error-indicating elements. Order matters: the first hit names the category.
var errorKeywords = []string{"invalid", "declined", "error", "failed"}

// classifyErrorText reports the matched keyword category for text, or ""
// when the text carries no error-indicating keyword.
func classifyErrorText(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range errorKeywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}

// isNavigationAborted matches the fault a click raises when the page
// navigates out from under it. Treated as transient inside a strategy.
func isNavigationAborted(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "navigation") ||
		strings.Contains(errStr, "context canceled") ||
		strings.Contains(errStr, "target closed")
}

// isNotInteractable matches faults from elements that exist but cannot be
// acted on yet (covered, detached, zero-size).
func isNotInteractable(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "not interactable") ||
		strings.Contains(errStr, "not clickable") ||
		strings.Contains(errStr, "covered") ||
		strings.Contains(errStr, "detached") ||
		strings.Contains(errStr, "invisible")
}

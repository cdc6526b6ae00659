package probe

import (
	"errors"
	"fmt"
)

var (
	ErrLaunch            = errors.New("browser could not be launched")
	ErrNavigationTimeout = errors.New("page did not reach a ready state")
	ErrElementNotFound   = errors.New("locator matched no elements")
	ErrAmbiguousMatch    = errors.New("locator matched more than one element")
	ErrModalTimeout      = errors.New("modal did not become visible")
)

// AssertionMismatch describes one failed checklist item.
type AssertionMismatch struct {
	Item     int    `json:"item"`
	Name     string `json:"name"`
	Selector string `json:"selector"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

func (e *AssertionMismatch) Error() string {
	return fmt.Sprintf("assertion %d (%s) failed on %s: expected %s, got %s",
		e.Item, e.Name, e.Selector, e.Expected, e.Actual)
}

// StageError ties a failure to the stage that raised it and the evidence
// tag captured for it.
type StageError struct {
	Stage string
	Tag   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

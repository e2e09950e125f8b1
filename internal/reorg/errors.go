package reorg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPrecondition marks input that is rejected before planning starts.
	ErrPrecondition = errors.New("invalid stack")
	// ErrInvariant marks a plan that does not produce the requested stack.
	// It indicates a defect in the planner and is never recoverable.
	ErrInvariant = errors.New("reorganisation invariant violated")
)

// PreconditionError names the offending sequence ("remote" or "local").
type PreconditionError struct {
	Chain string
	Err   error
}

func (e *PreconditionError) Error() string {
	return fmt.Sprintf("%s stack: %v", e.Chain, e.Err)
}

func (e *PreconditionError) Unwrap() []error { return []error{ErrPrecondition, e.Err} }

// InvariantError describes where plan verification failed.
type InvariantError struct {
	Step string
	Want []string
	Got  []string
	Err  error
}

func (e *InvariantError) Error() string {
	var b strings.Builder
	b.WriteString(ErrInvariant.Error())
	if e.Step != "" {
		fmt.Fprintf(&b, " at %s", e.Step)
	}
	if e.Want != nil || e.Got != nil {
		fmt.Fprintf(&b, ": want [%s], got [%s]", strings.Join(e.Want, " "), strings.Join(e.Got, " "))
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *InvariantError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrInvariant}
	}
	return []error{ErrInvariant, e.Err}
}

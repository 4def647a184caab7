// Package fault defines the typed errors shared by the scheduling engine.
// Callers branch on these with errors.As: a ValidationError means the input
// breaks an invariant and can be corrected, a ConflictError means a booking
// race was lost and the caller should re-run the matcher, an
// InvalidTransitionError means a state machine was driven illegally.
package fault

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ValidationError reports the first invariant violated by a proposed
// mutation. Entity is the resource kind, Field the offending attribute and
// Rule a short description of the broken invariant.
type ValidationError struct {
	Entity string
	Field  string
	Rule   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s.%s: %s", e.Entity, e.Field, e.Rule)
}

// Validation builds a ValidationError.
func Validation(entity, field, rule string) *ValidationError {
	return &ValidationError{Entity: entity, Field: field, Rule: rule}
}

// ConflictError reports that a time window was reserved concurrently by
// another booking for the same med tech.
type ConflictError struct {
	MedTechID uuid.UUID
	Start     time.Time
	End       time.Time
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("med tech %s is not free between %s and %s",
		e.MedTechID, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// InvalidTransitionError reports an illegal state machine transition,
// including any transition attempted from a terminal state.
type InvalidTransitionError struct {
	Entity string
	ID     uuid.UUID
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s: illegal transition %s -> %s", e.Entity, e.ID, e.From, e.To)
}

// StaleTransitionError reports a status update that matched no row: the
// entity left the status it was read at before the write committed.
// Callers should reload and retry the transition.
type StaleTransitionError struct {
	Entity string
	ID     uuid.UUID
	From   string
}

func (e *StaleTransitionError) Error() string {
	return fmt.Sprintf("%s %s left status %q before the update committed", e.Entity, e.ID, e.From)
}

// InvalidScheduleError reports malformed availability data on a med tech
// record: an availability window outside the working schedule, or two
// windows overlapping each other.
type InvalidScheduleError struct {
	MedTechID uuid.UUID
	Reason    string
}

func (e *InvalidScheduleError) Error() string {
	return fmt.Sprintf("med tech %s has an invalid schedule: %s", e.MedTechID, e.Reason)
}

// NotFoundError reports a reference that does not resolve to an existing
// entity of the expected kind.
type NotFoundError struct {
	Kind string
	ID   uuid.UUID
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// NotFound builds a NotFoundError.
func NotFound(kind string, id uuid.UUID) *NotFoundError {
	return &NotFoundError{Kind: kind, ID: id}
}

package reservation

import (
	"errors"
	"fmt"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrStateConflict     = errors.New("reservation state conflict")

	ErrRestaurantNotFound = &NotFoundError{Kind: "restaurant"}
)

// Validated fields.
const (
	FieldDate   = "date"
	FieldTime   = "time"
	FieldGuests = "numberOfGuests"
	FieldMenu   = "selectedMenuItems"
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

type NotFoundError struct {
	Kind string // "reservation" or "restaurant"
	ID   string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Kind + " not found"
	}
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// Is matches ErrNotFound, and any *NotFoundError of the same kind so that
// errors.Is(err, ErrRestaurantNotFound) works regardless of the id.
func (e *NotFoundError) Is(target error) bool {
	if target == ErrNotFound {
		return true
	}
	var nf *NotFoundError
	if errors.As(target, &nf) {
		return nf.Kind == e.Kind && (nf.ID == "" || nf.ID == e.ID)
	}
	return false
}

func ReservationNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "reservation", ID: id}
}

func RestaurantNotFound(id string) *NotFoundError {
	return &NotFoundError{Kind: "restaurant", ID: id}
}

type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot move reservation from %s to %s", e.From, e.To)
}

func (e *InvalidTransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// StateConflictError rejects edits to a reservation in a terminal status.
type StateConflictError struct {
	ID     string
	Status Status
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("reservation %s is %s and can no longer be edited", e.ID, e.Status)
}

func (e *StateConflictError) Is(target error) bool { return target == ErrStateConflict }

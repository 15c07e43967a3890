package reservation

import "fmt"

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted:
		return Status(s), nil
	default:
		return "", fmt.Errorf("unknown status: %q", s)
	}
}

// confirmed -> completed is never triggered by the engine itself; it is
// reached only through an external completion event.
var allowedTransitions = map[Status]map[Status]bool{
	StatusPending:   {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusCancelled: true, StatusCompleted: true},
	StatusCancelled: {},
	StatusCompleted: {},
}

func CanTransition(from, to Status) bool {
	m, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return m[to]
}

// Transition returns the target status or an *InvalidTransitionError.
func Transition(from, to Status) (Status, error) {
	if !CanTransition(from, to) {
		return from, &InvalidTransitionError{From: from, To: to}
	}
	return to, nil
}

func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Editable reports whether schedule, guests, requests and menu may change.
func (s Status) Editable() bool {
	return s == StatusPending || s == StatusConfirmed
}

// Active mirrors the "current bookings" tab: pending or confirmed.
func (s Status) Active() bool { return s.Editable() }

// EnsureEditable returns a *StateConflictError for terminal reservations.
func EnsureEditable(r Reservation) error {
	if !r.Status.Editable() {
		return &StateConflictError{ID: r.ID, Status: r.Status}
	}
	return nil
}

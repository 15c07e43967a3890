package booking

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/pivo/internal/domain/reservation"
)

// Scope selects one of the booking list tabs.
type Scope string

const (
	ScopeAll      Scope = ""
	ScopeActive   Scope = "active"   // pending or confirmed
	ScopeHistory  Scope = "history"  // completed or cancelled
	ScopeUpcoming Scope = "upcoming" // today or later and not cancelled
)

func ParseScope(s string) (Scope, error) {
	switch Scope(strings.ToLower(strings.TrimSpace(s))) {
	case ScopeAll:
		return ScopeAll, nil
	case ScopeActive:
		return ScopeActive, nil
	case ScopeHistory:
		return ScopeHistory, nil
	case ScopeUpcoming:
		return ScopeUpcoming, nil
	default:
		return "", fmt.Errorf("unknown scope: %q", s)
	}
}

// Filter narrows a listing. Zero fields match everything; set fields are
// combined with AND.
type Filter struct {
	Statuses     []reservation.Status
	RestaurantID string
	Scope        Scope
	// Query matches the restaurant name or the reservation id,
	// case-insensitively.
	Query string
}

// today is midnight of the current day in the engine location.
func (f Filter) match(r reservation.Reservation, today time.Time) bool {
	if len(f.Statuses) > 0 && !hasStatus(f.Statuses, r.Status) {
		return false
	}
	if f.RestaurantID != "" && r.RestaurantID != f.RestaurantID {
		return false
	}
	switch f.Scope {
	case ScopeActive:
		if !r.Status.Active() {
			return false
		}
	case ScopeHistory:
		if !r.Status.Terminal() {
			return false
		}
	case ScopeUpcoming:
		if r.Date.Before(today) || r.Status == reservation.StatusCancelled {
			return false
		}
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(r.RestaurantName), q) &&
			!strings.Contains(strings.ToLower(r.ID), q) {
			return false
		}
	}
	return true
}

func hasStatus(list []reservation.Status, s reservation.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

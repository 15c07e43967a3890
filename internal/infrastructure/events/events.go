// Package events carries reservation lifecycle notifications to a broker.
package events

import (
	"context"
	"time"
)

type Type string

const (
	ReservationCreated   Type = "reservation.created"
	ReservationConfirmed Type = "reservation.confirmed"
	ReservationCancelled Type = "reservation.cancelled"
	ReservationEdited    Type = "reservation.edited"
	ReservationCompleted Type = "reservation.completed"
	ReservationRemoved   Type = "reservation.removed"
)

// Event is the broker payload. It carries enough for downstream consumers
// to notify or report without reading the reservation collection.
type Event struct {
	Type           Type      `json:"type"`
	ReservationID  string    `json:"reservation_id"`
	RestaurantID   string    `json:"restaurant_id"`
	RestaurantName string    `json:"restaurant_name"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	Guests         int       `json:"guests"`
	Status         string    `json:"status"`
	Total          float64   `json:"total"`
	OccurredAt     time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }

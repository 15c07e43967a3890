// Package scheduler runs the periodic completion sweep.
package scheduler

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/example/pivo/internal/booking"
	"github.com/example/pivo/internal/domain/reservation"
)

// Completer is the part of the booking engine the sweeper drives.
type Completer interface {
	ListReservations(f booking.Filter) []reservation.Reservation
	CompleteReservation(ctx context.Context, id string) (reservation.Reservation, error)
}

// Sweeper marks confirmed reservations completed once their slot start plus
// Grace has passed. It is the only automatic source of the
// confirmed -> completed transition.
type Sweeper struct {
	Engine   Completer
	Interval time.Duration
	Grace    time.Duration
	Log      *zap.Logger
	Now      func() time.Time
}

func (s *Sweeper) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep completes every due reservation and returns how many it completed.
func (s *Sweeper) Sweep(ctx context.Context) int {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	due := s.Engine.ListReservations(booking.Filter{
		Statuses: []reservation.Status{reservation.StatusConfirmed},
	})
	n := 0
	for _, r := range due {
		if ctx.Err() != nil {
			break
		}
		start, ok := r.StartsAt()
		if !ok || start.Add(s.Grace).After(now) {
			continue
		}
		if _, err := s.Engine.CompleteReservation(ctx, r.ID); err != nil {
			// Cancelled between the listing and now.
			if errors.Is(err, reservation.ErrInvalidTransition) || errors.Is(err, reservation.ErrNotFound) {
				log.Debug("sweeper: reservation changed before completion", zap.String("id", r.ID), zap.Error(err))
				continue
			}
			log.Error("sweeper: complete failed", zap.String("id", r.ID), zap.Error(err))
			continue
		}
		n++
	}
	if n > 0 {
		log.Info("sweeper: reservations completed", zap.Int("count", n))
	}
	return n
}

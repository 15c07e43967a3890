package booking

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/example/pivo/internal/domain/reservation"
	"github.com/example/pivo/internal/infrastructure/events"
)

const defaultPublishTimeout = 2 * time.Second

type Options struct {
	Rules       reservation.Rules
	DefaultRate float64
	Events      events.Publisher
	// PublishTimeout bounds each event publish; mutations wait on it.
	PublishTimeout time.Duration
	Log            *zap.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Engine is the caller-facing booking API. Checks that need only the
// request run before anything is enqueued; checks that depend on the
// current record run inside the store's worker.
type Engine struct {
	store   *Store
	catalog reservation.Catalog
	rules   reservation.Rules
	calc    reservation.Calculator
	events  events.Publisher
	pubWait time.Duration
	log     *zap.Logger
	now     func() time.Time
}

func NewEngine(store *Store, catalog reservation.Catalog, opts Options) *Engine {
	e := &Engine{
		store:   store,
		catalog: catalog,
		rules:   opts.Rules,
		calc:    reservation.NewCalculator(opts.DefaultRate),
		events:  opts.Events,
		pubWait: opts.PublishTimeout,
		log:     opts.Log,
		now:     opts.Now,
	}
	if e.events == nil {
		e.events = events.Nop{}
	}
	if e.log == nil {
		e.log = zap.NewNop()
	}
	if e.pubWait <= 0 {
		e.pubWait = defaultPublishTimeout
	}
	if e.now == nil {
		e.now = time.Now
	}
	return e
}

func (e *Engine) Rules() reservation.Rules { return e.rules }

type CreateRequest struct {
	RestaurantID    string
	Date            time.Time
	Time            string
	Guests          int
	SpecialRequests string
	Items           []reservation.Selection
}

// Changes lists the fields of an edit. Nil fields are left as they are.
type Changes struct {
	Date   *time.Time
	Time   *string
	Guests *int
	// An empty string clears the special requests.
	SpecialRequests *string
	Items           *[]reservation.Selection
}

func (c Changes) empty() bool {
	return c.Date == nil && c.Time == nil && c.Guests == nil && c.SpecialRequests == nil && c.Items == nil
}

// Details is what the booking details screen shows.
type Details struct {
	Reservation reservation.Reservation
	Cost        reservation.Cost
	Lines       []reservation.Line
}

func (e *Engine) CreateReservation(ctx context.Context, req CreateRequest) (reservation.Reservation, error) {
	now := e.now()
	date := reservation.NormalizeDate(req.Date, e.rules.Loc())
	sched := reservation.Schedule{Date: date, Time: strings.TrimSpace(req.Time), Guests: req.Guests}
	if err := e.rules.Validate(sched, now); err != nil {
		return reservation.Reservation{}, err
	}

	rest, err := e.catalog.GetRestaurant(ctx, strings.TrimSpace(req.RestaurantID))
	if err != nil {
		return reservation.Reservation{}, err
	}
	items, err := reservation.ExpandSelections(rest, req.Items)
	if err != nil {
		return reservation.Reservation{}, err
	}

	r, err := e.store.Create(ctx, reservation.Reservation{
		RestaurantID:      rest.ID,
		RestaurantName:    rest.Name,
		Date:              sched.Date,
		Time:              sched.Time,
		NumberOfGuests:    sched.Guests,
		SpecialRequests:   normalizeRequests(req.SpecialRequests),
		SelectedMenuItems: items,
	})
	if err != nil {
		return reservation.Reservation{}, err
	}
	e.log.Info("reservation created",
		zap.String("id", r.ID), zap.String("restaurant", r.RestaurantID),
		zap.String("date", r.Date.Format(reservation.DateLayout)), zap.String("time", r.Time),
		zap.Int("guests", r.NumberOfGuests))
	e.publish(events.ReservationCreated, r, &rest)
	return r, nil
}

func (e *Engine) ConfirmReservation(ctx context.Context, id string) (reservation.Reservation, error) {
	return e.transition(ctx, id, reservation.StatusConfirmed, events.ReservationConfirmed)
}

func (e *Engine) CancelReservation(ctx context.Context, id string) (reservation.Reservation, error) {
	return e.transition(ctx, id, reservation.StatusCancelled, events.ReservationCancelled)
}

// CompleteReservation records that a confirmed visit took place. It is the
// entry point for staff and for the completion sweeper.
func (e *Engine) CompleteReservation(ctx context.Context, id string) (reservation.Reservation, error) {
	return e.transition(ctx, id, reservation.StatusCompleted, events.ReservationCompleted)
}

func (e *Engine) transition(ctx context.Context, id string, to reservation.Status, typ events.Type) (reservation.Reservation, error) {
	var from reservation.Status
	r, err := e.store.Update(ctx, id, func(r *reservation.Reservation) error {
		from = r.Status
		next, err := reservation.Transition(r.Status, to)
		if err != nil {
			return err
		}
		r.Status = next
		return nil
	})
	if err != nil {
		return reservation.Reservation{}, err
	}
	e.log.Info("reservation status changed",
		zap.String("id", id), zap.String("from", string(from)), zap.String("to", string(to)))
	e.publish(typ, r, nil)
	return r, nil
}

// EditReservation applies c to a pending or confirmed reservation. Only the
// schedule fields present in c are re-validated, against the merged values.
func (e *Engine) EditReservation(ctx context.Context, id string, c Changes) (reservation.Reservation, error) {
	cur, err := e.store.Get(id)
	if err != nil {
		return reservation.Reservation{}, err
	}
	if err := reservation.EnsureEditable(cur); err != nil {
		return reservation.Reservation{}, err
	}
	if c.empty() {
		return cur, nil
	}

	var items []reservation.MenuItem
	if c.Items != nil {
		rest, err := e.catalog.GetRestaurant(ctx, cur.RestaurantID)
		if err != nil {
			return reservation.Reservation{}, err
		}
		if items, err = reservation.ExpandSelections(rest, *c.Items); err != nil {
			return reservation.Reservation{}, err
		}
	}

	now := e.now()
	r, err := e.store.Update(ctx, id, func(r *reservation.Reservation) error {
		// Re-checked here: the record may have changed since the read above.
		if err := reservation.EnsureEditable(*r); err != nil {
			return err
		}
		if err := e.applyChanges(r, c, items, now); err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return reservation.Reservation{}, err
	}
	e.log.Info("reservation edited", zap.String("id", id))
	e.publish(events.ReservationEdited, r, nil)
	return r, nil
}

func (e *Engine) applyChanges(r *reservation.Reservation, c Changes, items []reservation.MenuItem, now time.Time) error {
	date, slot := r.Date, r.Time
	if c.Date != nil {
		date = reservation.NormalizeDate(*c.Date, e.rules.Loc())
		if err := e.rules.CheckDate(date, now); err != nil {
			return err
		}
	}
	if c.Time != nil {
		slot = strings.TrimSpace(*c.Time)
		if err := e.rules.CheckSlot(slot); err != nil {
			return err
		}
	}
	if c.Date != nil || c.Time != nil {
		if err := e.rules.CheckTime(date, slot, now); err != nil {
			return err
		}
	}
	if c.Guests != nil {
		if err := e.rules.CheckGuests(*c.Guests); err != nil {
			return err
		}
		r.NumberOfGuests = *c.Guests
	}
	r.Date, r.Time = date, slot
	if c.SpecialRequests != nil {
		r.SpecialRequests = normalizeRequests(*c.SpecialRequests)
	}
	if c.Items != nil {
		r.SelectedMenuItems = reservation.CloneItems(items)
	}
	return nil
}

// RemoveReservation cancels a pending or confirmed reservation and deletes
// it in one step. Cancelled reservations are deleted as they are; completed
// ones are kept.
func (e *Engine) RemoveReservation(ctx context.Context, id string) (reservation.Reservation, error) {
	r, err := e.store.Remove(ctx, id, func(r reservation.Reservation) error {
		if r.Status == reservation.StatusCancelled {
			return nil
		}
		_, err := reservation.Transition(r.Status, reservation.StatusCancelled)
		return err
	})
	if err != nil {
		return reservation.Reservation{}, err
	}
	from := r.Status
	r.Status = reservation.StatusCancelled
	e.log.Info("reservation removed", zap.String("id", id), zap.String("from", string(from)))
	if from != reservation.StatusCancelled {
		e.publish(events.ReservationCancelled, r, nil)
	}
	e.publish(events.ReservationRemoved, r, nil)
	return r, nil
}

func (e *Engine) GetReservation(id string) (reservation.Reservation, error) {
	return e.store.Get(id)
}

func (e *Engine) ListReservations(f Filter) []reservation.Reservation {
	today := reservation.NormalizeDate(e.now(), e.rules.Loc())
	return e.store.List(func(r reservation.Reservation) bool { return f.match(r, today) })
}

func (e *Engine) Details(ctx context.Context, id string) (Details, error) {
	r, err := e.store.Get(id)
	if err != nil {
		return Details{}, err
	}
	rest := e.restaurantFor(ctx, r.RestaurantID)
	return Details{
		Reservation: r,
		Cost:        e.calc.Compute(r, rest),
		Lines:       reservation.Summarize(r.SelectedMenuItems),
	}, nil
}

// Cost prices r with its restaurant's current rate.
func (e *Engine) Cost(ctx context.Context, r reservation.Reservation) reservation.Cost {
	return e.calc.Compute(r, e.restaurantFor(ctx, r.RestaurantID))
}

// TotalAmount sums the totals of the reservations matched by f.
func (e *Engine) TotalAmount(ctx context.Context, f Filter) float64 {
	rests := map[string]reservation.Restaurant{}
	var sum float64
	for _, r := range e.ListReservations(f) {
		rest, ok := rests[r.RestaurantID]
		if !ok {
			rest = e.restaurantFor(ctx, r.RestaurantID)
			rests[r.RestaurantID] = rest
		}
		sum += e.calc.Compute(r, rest).Total
	}
	return sum
}

func (e *Engine) Restaurant(ctx context.Context, id string) (reservation.Restaurant, error) {
	return e.catalog.GetRestaurant(ctx, id)
}

// restaurantFor never fails: an unknown restaurant or an unreachable
// catalog prices at the default rate.
func (e *Engine) restaurantFor(ctx context.Context, id string) reservation.Restaurant {
	rest, err := e.catalog.GetRestaurant(ctx, id)
	if err != nil {
		if !errors.Is(err, reservation.ErrNotFound) {
			e.log.Warn("catalog lookup failed, using default rate", zap.String("restaurant", id), zap.Error(err))
		}
		return reservation.Restaurant{ID: id}
	}
	return rest
}

// Sync waits until every accepted mutation has been persisted.
func (e *Engine) Sync(ctx context.Context) error { return e.store.Sync(ctx) }

// publish is best effort. rest is reused when the caller already has it.
func (e *Engine) publish(typ events.Type, r reservation.Reservation, rest *reservation.Restaurant) {
	var total float64
	ctx, cancel := context.WithTimeout(context.Background(), e.pubWait)
	defer cancel()
	if rest != nil {
		total = e.calc.Compute(r, *rest).Total
	} else {
		total = e.Cost(ctx, r).Total
	}
	ev := events.Event{
		Type:           typ,
		ReservationID:  r.ID,
		RestaurantID:   r.RestaurantID,
		RestaurantName: r.RestaurantName,
		Date:           r.Date.Format(reservation.DateLayout),
		Time:           r.Time,
		Guests:         r.NumberOfGuests,
		Status:         string(r.Status),
		Total:          total,
		OccurredAt:     e.now().UTC(),
	}
	if err := e.events.Publish(ctx, ev); err != nil {
		e.log.Warn("event not published", zap.String("type", string(typ)), zap.String("id", r.ID), zap.Error(err))
	}
}

func normalizeRequests(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

package booking

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/pivo/internal/domain/reservation"
	"github.com/example/pivo/internal/infrastructure/blobstore"
	"github.com/example/pivo/internal/infrastructure/catalog"
	"github.com/example/pivo/internal/infrastructure/events"
)

var testNow = time.Date(2026, 3, 10, 15, 30, 0, 0, time.UTC)

func day(offset int) time.Time {
	return time.Date(2026, 3, 10+offset, 0, 0, 0, 0, time.UTC)
}

type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) Publish(_ context.Context, ev events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.evs = append(r.evs, ev)
	return nil
}

func (r *recorder) types() []events.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Type, len(r.evs))
	for i, ev := range r.evs {
		out[i] = ev.Type
	}
	return out
}

func testCatalog() *catalog.Static {
	return catalog.NewStatic(
		reservation.Restaurant{
			ID: "R1", Name: "Riverside Taproom", ReservationCostPerPerson: 250,
			Menu: []reservation.MenuItem{
				{ID: "b1", Name: "Lager", Price: 300, Category: reservation.CategoryBeer},
				{ID: "s1", Name: "Pretzel", Price: 150, Category: reservation.CategorySnacks},
			},
		},
		reservation.Restaurant{ID: "R2", Name: "Hop Cellar"},
	)
}

type fixture struct {
	engine *Engine
	store  *Store
	blobs  *blobstore.Memory
	events *recorder
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	blobs := blobstore.NewMemory()
	store := OpenStore(context.Background(), blobs, StoreOptions{})
	t.Cleanup(func() { _ = store.Close() })
	rec := &recorder{}
	eng := NewEngine(store, testCatalog(), Options{
		Events: rec,
		Now:    func() time.Time { return testNow },
	})
	return fixture{engine: eng, store: store, blobs: blobs, events: rec}
}

func (f fixture) create(t *testing.T, req CreateRequest) reservation.Reservation {
	t.Helper()
	if req.RestaurantID == "" {
		req.RestaurantID = "R1"
	}
	if req.Date.IsZero() {
		req.Date = day(1)
	}
	if req.Time == "" {
		req.Time = "18:00"
	}
	if req.Guests == 0 {
		req.Guests = 2
	}
	r, err := f.engine.CreateReservation(context.Background(), req)
	require.NoError(t, err)
	return r
}

func TestBookConfirmCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.create(t, CreateRequest{})
	assert.NotEmpty(t, r.ID)
	assert.Equal(t, reservation.StatusPending, r.Status)
	assert.Equal(t, "Riverside Taproom", r.RestaurantName)
	assert.Empty(t, r.SelectedMenuItems)

	d, err := f.engine.Details(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, 500.0, d.Cost.Deposit)
	assert.Equal(t, 500.0, d.Cost.Total)

	r, err = f.engine.ConfirmReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusConfirmed, r.Status)

	r, err = f.engine.CancelReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, r.Status)

	pending := f.engine.ListReservations(Filter{Statuses: []reservation.Status{reservation.StatusPending}})
	assert.Empty(t, pending)

	assert.Equal(t, []events.Type{
		events.ReservationCreated, events.ReservationConfirmed, events.ReservationCancelled,
	}, f.events.types())
}

func TestCreateRejectsInvalidRequests(t *testing.T) {
	cases := []struct {
		name  string
		req   CreateRequest
		field string
	}{
		{"past date", CreateRequest{Date: day(-1)}, reservation.FieldDate},
		{"beyond window", CreateRequest{Date: day(31)}, reservation.FieldDate},
		{"unknown slot", CreateRequest{Time: "18:30"}, reservation.FieldTime},
		{"malformed slot", CreateRequest{Time: "six pm"}, reservation.FieldTime},
		{"same day slot passed", CreateRequest{Date: day(0), Time: "15:00"}, reservation.FieldTime},
		{"too many guests", CreateRequest{Guests: 11}, reservation.FieldGuests},
		{"no guests", CreateRequest{Guests: -1}, reservation.FieldGuests},
		{"unknown menu item", CreateRequest{Items: []reservation.Selection{{MenuItemID: "zz", Quantity: 1}}}, reservation.FieldMenu},
		{"zero quantity", CreateRequest{Items: []reservation.Selection{{MenuItemID: "b1", Quantity: 0}}}, reservation.FieldMenu},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			req := tc.req
			req.RestaurantID = "R1"
			if req.Date.IsZero() {
				req.Date = day(1)
			}
			if req.Time == "" {
				req.Time = "18:00"
			}
			if req.Guests == 0 {
				req.Guests = 2
			}
			_, err := f.engine.CreateReservation(context.Background(), req)
			require.ErrorIs(t, err, reservation.ErrValidation)
			var ve *reservation.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.field, ve.Field)
			assert.Zero(t, f.store.Len())
			assert.Empty(t, f.events.types())
		})
	}
}

func TestCreateUnknownRestaurant(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.CreateReservation(context.Background(), CreateRequest{
		RestaurantID: "nope", Date: day(1), Time: "18:00", Guests: 2,
	})
	require.ErrorIs(t, err, reservation.ErrNotFound)
	require.ErrorIs(t, err, reservation.ErrRestaurantNotFound)
	assert.Zero(t, f.store.Len())
}

func TestCreateSameDayFutureSlotAndWindowEdge(t *testing.T) {
	f := newFixture(t)
	f.create(t, CreateRequest{Date: day(0), Time: "16:00"})
	f.create(t, CreateRequest{Date: day(30), Guests: 10})
	assert.Equal(t, 2, f.store.Len())
}

func TestPreorderExpandsQuantities(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, CreateRequest{
		Guests: 3,
		Items: []reservation.Selection{
			{MenuItemID: "b1", Quantity: 2},
			{MenuItemID: "s1", Quantity: 1},
		},
		SpecialRequests: "  window seat ",
	})
	require.Len(t, r.SelectedMenuItems, 3)
	require.NotNil(t, r.SpecialRequests)
	assert.Equal(t, "window seat", *r.SpecialRequests)

	d, err := f.engine.Details(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.Cost{Deposit: 750, Preorder: 750, Total: 1500}, d.Cost)
	require.Len(t, d.Lines, 2)
	assert.Equal(t, "b1", d.Lines[0].Item.ID)
	assert.Equal(t, 2, d.Lines[0].Quantity)
	assert.Equal(t, 600.0, d.Lines[0].Subtotal)
}

func TestDefaultRateForRestaurantWithoutOne(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, CreateRequest{RestaurantID: "R2", Guests: 4})
	d, err := f.engine.Details(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Equal(t, 1000.0, d.Cost.Total)
}

func TestIllegalTransitionsLeaveStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	r := f.create(t, CreateRequest{})
	_, err := f.engine.CompleteReservation(ctx, r.ID)
	require.ErrorIs(t, err, reservation.ErrInvalidTransition)

	_, err = f.engine.CancelReservation(ctx, r.ID)
	require.NoError(t, err)

	for _, op := range []func(context.Context, string) (reservation.Reservation, error){
		f.engine.CancelReservation, f.engine.ConfirmReservation, f.engine.CompleteReservation,
	} {
		_, err = op(ctx, r.ID)
		var te *reservation.InvalidTransitionError
		require.ErrorAs(t, err, &te)
		assert.Equal(t, reservation.StatusCancelled, te.From)
	}
	got, err := f.engine.GetReservation(r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, got.Status)
}

func TestCompleteConfirmed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, CreateRequest{})
	_, err := f.engine.ConfirmReservation(ctx, r.ID)
	require.NoError(t, err)
	r, err = f.engine.CompleteReservation(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCompleted, r.Status)

	_, err = f.engine.EditReservation(ctx, r.ID, Changes{Guests: intPtr(3)})
	require.ErrorIs(t, err, reservation.ErrStateConflict)
}

func TestUnknownIDIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.engine.ConfirmReservation(ctx, "missing")
	require.ErrorIs(t, err, reservation.ErrNotFound)
	_, err = f.engine.GetReservation("missing")
	require.ErrorIs(t, err, reservation.ErrNotFound)
	_, err = f.engine.EditReservation(ctx, "missing", Changes{})
	require.ErrorIs(t, err, reservation.ErrNotFound)
	_, err = f.engine.RemoveReservation(ctx, "missing")
	require.ErrorIs(t, err, reservation.ErrNotFound)
}

func TestEditReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, CreateRequest{SpecialRequests: "quiet corner"})

	got, err := f.engine.EditReservation(ctx, r.ID, Changes{
		Date:            timePtr(day(2)),
		Time:            strPtr("20:00"),
		Guests:          intPtr(4),
		SpecialRequests: strPtr(""),
		Items:           &[]reservation.Selection{{MenuItemID: "s1", Quantity: 2}},
	})
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
	assert.Equal(t, day(2), got.Date)
	assert.Equal(t, "20:00", got.Time)
	assert.Equal(t, 4, got.NumberOfGuests)
	assert.Nil(t, got.SpecialRequests)
	assert.Len(t, got.SelectedMenuItems, 2)
	assert.Equal(t, reservation.StatusPending, got.Status)
	assert.Contains(t, f.events.types(), events.ReservationEdited)
}

func TestEditValidatesOnlyChangedFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, CreateRequest{})

	_, err := f.engine.EditReservation(ctx, r.ID, Changes{Guests: intPtr(11)})
	var ve *reservation.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, reservation.FieldGuests, ve.Field)

	_, err = f.engine.EditReservation(ctx, r.ID, Changes{Date: timePtr(day(0)), Time: strPtr("12:00")})
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, reservation.FieldTime, ve.Field)

	got, err := f.engine.GetReservation(r.ID)
	require.NoError(t, err)
	assert.Equal(t, r, got)
}

func TestEditTerminalIsStateConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	r := f.create(t, CreateRequest{})
	_, err := f.engine.CancelReservation(ctx, r.ID)
	require.NoError(t, err)

	_, err = f.engine.EditReservation(ctx, r.ID, Changes{Time: strPtr("19:00")})
	var se *reservation.StateConflictError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, reservation.StatusCancelled, se.Status)
}

func TestRemoveReservation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.create(t, CreateRequest{})
	cancelled := f.create(t, CreateRequest{})
	completed := f.create(t, CreateRequest{})
	_, err := f.engine.CancelReservation(ctx, cancelled.ID)
	require.NoError(t, err)
	_, err = f.engine.ConfirmReservation(ctx, completed.ID)
	require.NoError(t, err)
	_, err = f.engine.CompleteReservation(ctx, completed.ID)
	require.NoError(t, err)

	got, err := f.engine.RemoveReservation(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, reservation.StatusCancelled, got.Status)

	_, err = f.engine.RemoveReservation(ctx, cancelled.ID)
	require.NoError(t, err)

	_, err = f.engine.RemoveReservation(ctx, completed.ID)
	require.ErrorIs(t, err, reservation.ErrInvalidTransition)

	left := f.engine.ListReservations(Filter{})
	require.Len(t, left, 1)
	assert.Equal(t, completed.ID, left[0].ID)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t, CreateRequest{RestaurantID: "R1", Date: day(0), Time: "20:00"})
	b := f.create(t, CreateRequest{RestaurantID: "R2", Date: day(3)})
	c := f.create(t, CreateRequest{RestaurantID: "R1", Date: day(5)})
	_, err := f.engine.ConfirmReservation(ctx, b.ID)
	require.NoError(t, err)
	_, err = f.engine.CancelReservation(ctx, c.ID)
	require.NoError(t, err)

	ids := func(rs []reservation.Reservation) []string {
		out := make([]string, len(rs))
		for i, r := range rs {
			out[i] = r.ID
		}
		return out
	}

	assert.Equal(t, []string{a.ID, b.ID, c.ID}, ids(f.engine.ListReservations(Filter{})))
	assert.Equal(t, []string{a.ID, b.ID}, ids(f.engine.ListReservations(Filter{Scope: ScopeActive})))
	assert.Equal(t, []string{c.ID}, ids(f.engine.ListReservations(Filter{Scope: ScopeHistory})))
	assert.Equal(t, []string{a.ID, b.ID}, ids(f.engine.ListReservations(Filter{Scope: ScopeUpcoming})))
	assert.Equal(t, []string{a.ID, c.ID}, ids(f.engine.ListReservations(Filter{RestaurantID: "R1"})))
	assert.Equal(t, []string{b.ID}, ids(f.engine.ListReservations(Filter{Query: "hop"})))
	assert.Equal(t, []string{c.ID}, ids(f.engine.ListReservations(Filter{Query: strings.ToUpper(c.ID[:8])})))
	assert.Empty(t, f.engine.ListReservations(Filter{Query: "R2"}))
	assert.Equal(t, []string{a.ID}, ids(f.engine.ListReservations(Filter{
		RestaurantID: "R1",
		Statuses:     []reservation.Status{reservation.StatusPending, reservation.StatusConfirmed},
	})))
}

func TestTotalAmount(t *testing.T) {
	f := newFixture(t)
	f.create(t, CreateRequest{Guests: 2, Items: []reservation.Selection{{MenuItemID: "b1", Quantity: 1}}})
	f.create(t, CreateRequest{RestaurantID: "R2", Guests: 1})
	assert.Equal(t, 800.0+250.0, f.engine.TotalAmount(context.Background(), Filter{}))
	assert.Equal(t, 250.0, f.engine.TotalAmount(context.Background(), Filter{RestaurantID: "R2"}))
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, CreateRequest{Items: []reservation.Selection{{MenuItemID: "b1", Quantity: 1}}})
	r.SelectedMenuItems[0].Price = 1
	r.NumberOfGuests = 9

	got, err := f.engine.GetReservation(r.ID)
	require.NoError(t, err)
	assert.Equal(t, 300.0, got.SelectedMenuItems[0].Price)
	assert.Equal(t, 2, got.NumberOfGuests)
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, events.Event) error {
	return errors.New("broker down")
}

func TestPublishFailureIsAbsorbed(t *testing.T) {
	store := OpenStore(context.Background(), blobstore.NewMemory(), StoreOptions{})
	t.Cleanup(func() { _ = store.Close() })
	eng := NewEngine(store, testCatalog(), Options{
		Events: failingPublisher{},
		Now:    func() time.Time { return testNow },
	})
	_, err := eng.CreateReservation(context.Background(), CreateRequest{
		RestaurantID: "R1", Date: day(1), Time: "18:00", Guests: 2,
	})
	require.NoError(t, err)
}

func intPtr(v int) *int              { return &v }
func strPtr(v string) *string        { return &v }
func timePtr(v time.Time) *time.Time { return &v }

func TestUnresponsiveBrokerDoesNotStallMutations(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	// Accepts connections and never answers the AMQP handshake.
	var held []net.Conn
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			held = append(held, c)
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		<-done
		for _, c := range held {
			_ = c.Close()
		}
	})

	pub := events.NewAMQPPublisher("amqp://guest:guest@"+ln.Addr().String()+"/", "", nil)
	t.Cleanup(func() { _ = pub.Close() })
	store := OpenStore(context.Background(), blobstore.NewMemory(), StoreOptions{})
	t.Cleanup(func() { _ = store.Close() })
	eng := NewEngine(store, testCatalog(), Options{
		Events:         pub,
		PublishTimeout: 200 * time.Millisecond,
		Now:            func() time.Time { return testNow },
	})

	start := time.Now()
	r, err := eng.CreateReservation(context.Background(), CreateRequest{
		RestaurantID: "R1", Date: day(1), Time: "18:00", Guests: 2,
	})
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)

	start = time.Now()
	_, err = eng.ConfirmReservation(context.Background(), r.ID)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

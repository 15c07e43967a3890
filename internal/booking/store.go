// Package booking owns the reservation collection and the operations on it.
package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/pivo/internal/domain/reservation"
	"github.com/example/pivo/internal/infrastructure/blobstore"
)

var ErrClosed = errors.New("reservation store closed")

const persistTimeout = 10 * time.Second

type StoreOptions struct {
	// Key is the base storage key; the schema version is appended.
	Key      string
	Location *time.Location
	Log      *zap.Logger
	NewID    func() string
}

// Store keeps the reservation collection in memory and writes it through to
// a blob store. Mutations are applied one at a time by a single worker in
// arrival order. Reads see the latest published snapshot and never wait on
// a mutation or on persistence.
type Store struct {
	blobs blobstore.Store
	key   string
	loc   *time.Location
	log   *zap.Logger
	newID func() string

	snap atomic.Pointer[snapshot]
	reqs chan request
	quit chan struct{}
	done chan struct{}
	once sync.Once
}

// snapshot is immutable once published.
type snapshot struct {
	items []reservation.Reservation
	index map[string]int
}

func newSnapshot(items []reservation.Reservation) *snapshot {
	s := &snapshot{items: items, index: make(map[string]int, len(items))}
	for i, r := range items {
		s.index[r.ID] = i
	}
	return s
}

type mutation func(cur *snapshot) (*snapshot, reservation.Reservation, error)

type request struct {
	apply mutation // nil for a barrier
	reply chan result
}

type result struct {
	res reservation.Reservation
	err error
}

// OpenStore loads the persisted collection and starts the worker. A missing
// or unreadable collection yields an empty store; the failure is logged,
// never returned.
func OpenStore(ctx context.Context, blobs blobstore.Store, opts StoreOptions) *Store {
	s := &Store{
		blobs: blobs,
		key:   StorageKey(opts.Key),
		loc:   opts.Location,
		log:   opts.Log,
		newID: opts.NewID,
		reqs:  make(chan request),
		quit:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	s.snap.Store(newSnapshot(s.load(ctx)))
	go s.run()
	return s
}

func (s *Store) load(ctx context.Context) []reservation.Reservation {
	b, err := s.blobs.Get(ctx, s.key)
	if errors.Is(err, blobstore.ErrNotFound) {
		return nil
	}
	if err != nil {
		s.log.Warn("reservations not loaded, starting empty",
			zap.String("key", s.key), zap.Error(&PersistenceError{Op: "read", Err: err}))
		return nil
	}
	items, err := Decode(b, s.loc)
	if err != nil {
		s.log.Warn("reservations not decoded, starting empty",
			zap.String("key", s.key), zap.Error(&PersistenceError{Op: "decode", Err: err}))
		return nil
	}
	s.log.Info("reservations loaded", zap.String("key", s.key), zap.Int("count", len(items)))
	return items
}

func (s *Store) run() {
	defer close(s.done)
	for {
		select {
		case <-s.quit:
			return
		case req := <-s.reqs:
			if req.apply == nil {
				req.reply <- result{}
				continue
			}
			next, res, err := req.apply(s.snap.Load())
			if err != nil {
				req.reply <- result{err: err}
				continue
			}
			s.snap.Store(next)
			req.reply <- result{res: res}
			// The next mutation is not taken until this one is written.
			s.persist(next)
		}
	}
}

func (s *Store) persist(snap *snapshot) {
	b, err := Encode(snap.items)
	if err != nil {
		s.log.Error("reservations not encoded", zap.Error(&PersistenceError{Op: "encode", Err: err}))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.blobs.Put(ctx, s.key, b); err != nil {
		s.log.Error("reservations not persisted",
			zap.String("key", s.key), zap.Int("count", len(snap.items)),
			zap.Error(&PersistenceError{Op: "write", Err: err}))
	}
}

// submit hands a mutation to the worker. ctx bounds only the wait for the
// worker; once accepted the mutation runs to completion.
func (s *Store) submit(ctx context.Context, m mutation) (reservation.Reservation, error) {
	req := request{apply: m, reply: make(chan result, 1)}
	select {
	case s.reqs <- req:
	case <-s.quit:
		return reservation.Reservation{}, ErrClosed
	case <-ctx.Done():
		return reservation.Reservation{}, ctx.Err()
	}
	r := <-req.reply
	return r.res, r.err
}

// Create assigns a fresh id and pending status to r and appends it.
func (s *Store) Create(ctx context.Context, r reservation.Reservation) (reservation.Reservation, error) {
	r = r.Clone()
	r.ID = s.newID()
	r.Status = reservation.StatusPending
	r.Date = reservation.NormalizeDate(r.Date, s.loc)
	if r.SelectedMenuItems == nil {
		r.SelectedMenuItems = []reservation.MenuItem{}
	}
	return s.submit(ctx, func(cur *snapshot) (*snapshot, reservation.Reservation, error) {
		if _, dup := cur.index[r.ID]; dup {
			return nil, reservation.Reservation{}, errors.New("duplicate reservation id " + r.ID)
		}
		items := make([]reservation.Reservation, len(cur.items), len(cur.items)+1)
		copy(items, cur.items)
		items = append(items, r)
		return newSnapshot(items), r.Clone(), nil
	})
}

// Update applies fn to a copy of the record with the given id. An error from
// fn aborts the mutation. The id and restaurant are fixed, and a status
// change must be a legal transition.
func (s *Store) Update(ctx context.Context, id string, fn func(*reservation.Reservation) error) (reservation.Reservation, error) {
	return s.submit(ctx, func(cur *snapshot) (*snapshot, reservation.Reservation, error) {
		i, ok := cur.index[id]
		if !ok {
			return nil, reservation.Reservation{}, reservation.ReservationNotFound(id)
		}
		orig := cur.items[i]
		next := orig.Clone()
		if err := fn(&next); err != nil {
			return nil, reservation.Reservation{}, err
		}
		next.ID = orig.ID
		next.RestaurantID = orig.RestaurantID
		next.RestaurantName = orig.RestaurantName
		if next.Status != orig.Status && !reservation.CanTransition(orig.Status, next.Status) {
			return nil, reservation.Reservation{}, &reservation.InvalidTransitionError{From: orig.Status, To: next.Status}
		}
		next.Date = reservation.NormalizeDate(next.Date, s.loc)
		if next.SelectedMenuItems == nil {
			next.SelectedMenuItems = []reservation.MenuItem{}
		}

		items := make([]reservation.Reservation, len(cur.items))
		copy(items, cur.items)
		items[i] = next
		return &snapshot{items: items, index: cur.index}, next.Clone(), nil
	})
}

// Remove deletes the record with the given id after check accepts it. The
// removed record is returned as it was last stored.
func (s *Store) Remove(ctx context.Context, id string, check func(reservation.Reservation) error) (reservation.Reservation, error) {
	return s.submit(ctx, func(cur *snapshot) (*snapshot, reservation.Reservation, error) {
		i, ok := cur.index[id]
		if !ok {
			return nil, reservation.Reservation{}, reservation.ReservationNotFound(id)
		}
		if check != nil {
			if err := check(cur.items[i].Clone()); err != nil {
				return nil, reservation.Reservation{}, err
			}
		}
		items := make([]reservation.Reservation, 0, len(cur.items)-1)
		items = append(items, cur.items[:i]...)
		items = append(items, cur.items[i+1:]...)
		return newSnapshot(items), cur.items[i].Clone(), nil
	})
}

func (s *Store) Delete(ctx context.Context, id string) error {
	_, err := s.Remove(ctx, id, nil)
	return err
}

func (s *Store) Get(id string) (reservation.Reservation, error) {
	cur := s.snap.Load()
	i, ok := cur.index[id]
	if !ok {
		return reservation.Reservation{}, reservation.ReservationNotFound(id)
	}
	return cur.items[i].Clone(), nil
}

// List returns copies of the records accepted by keep, in insertion order.
// keep sees the same copy that is returned. A nil keep returns everything.
func (s *Store) List(keep func(reservation.Reservation) bool) []reservation.Reservation {
	cur := s.snap.Load()
	out := make([]reservation.Reservation, 0, len(cur.items))
	for _, r := range cur.items {
		c := r.Clone()
		if keep == nil || keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) Len() int { return len(s.snap.Load().items) }

// Sync returns once every mutation accepted before it has been applied and
// its persistence attempt has finished.
func (s *Store) Sync(ctx context.Context) error {
	_, err := s.submit(ctx, nil)
	return err
}

// Close stops the worker after any in-flight mutation and its write.
func (s *Store) Close() error {
	s.once.Do(func() { close(s.quit) })
	<-s.done
	return nil
}

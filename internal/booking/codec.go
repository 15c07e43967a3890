package booking

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/example/pivo/internal/domain/reservation"
)

// SchemaVersion is part of the storage key; a layout change gets a new key
// instead of a migration of the old blob.
const SchemaVersion = 1

// DefaultKey is the base storage key of the reservation collection.
const DefaultKey = "savedReservations"

// StorageKey appends the schema version to base.
func StorageKey(base string) string {
	if base == "" {
		base = DefaultKey
	}
	return fmt.Sprintf("%s.v%d", base, SchemaVersion)
}

type PersistenceError struct {
	Op  string // decode, encode, read, write
	Err error
}

func (e *PersistenceError) Error() string { return "persistence " + e.Op + ": " + e.Err.Error() }
func (e *PersistenceError) Unwrap() error { return e.Err }

type menuItemRecord struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"imageURL,omitempty"`
	Category    string   `json:"category"`
	ABV         *float64 `json:"abv,omitempty"`
	IBU         *int     `json:"ibu,omitempty"`
}

type reservationRecord struct {
	ID                string           `json:"id"`
	RestaurantID      string           `json:"restaurantId"`
	RestaurantName    string           `json:"restaurantName"`
	Date              string           `json:"date"`
	Time              string           `json:"time"`
	NumberOfGuests    int              `json:"numberOfGuests"`
	Status            string           `json:"status"`
	SpecialRequests   *string          `json:"specialRequests"`
	SelectedMenuItems []menuItemRecord `json:"selectedMenuItems"`
}

// Encode renders the collection as the persisted JSON array.
func Encode(items []reservation.Reservation) ([]byte, error) {
	recs := make([]reservationRecord, 0, len(items))
	for _, r := range items {
		rec := reservationRecord{
			ID:                r.ID,
			RestaurantID:      r.RestaurantID,
			RestaurantName:    r.RestaurantName,
			Date:              r.Date.Format(reservation.DateLayout),
			Time:              r.Time,
			NumberOfGuests:    r.NumberOfGuests,
			Status:            string(r.Status),
			SpecialRequests:   r.SpecialRequests,
			SelectedMenuItems: make([]menuItemRecord, 0, len(r.SelectedMenuItems)),
		}
		for _, m := range r.SelectedMenuItems {
			rec.SelectedMenuItems = append(rec.SelectedMenuItems, menuItemRecord{
				ID: m.ID, Name: m.Name, Description: m.Description, Price: m.Price,
				ImageURL: m.ImageURL, Category: string(m.Category), ABV: m.ABV, IBU: m.IBU,
			})
		}
		recs = append(recs, rec)
	}
	return json.Marshal(recs)
}

// Decode parses a persisted collection. Any deviation from the schema
// (unknown or missing fields, bad values, duplicate ids, trailing data)
// fails the whole blob; callers treat that as an empty collection.
func Decode(b []byte, loc *time.Location) ([]reservation.Reservation, error) {
	if loc == nil {
		loc = time.UTC
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()

	var recs []reservationRecord
	if err := dec.Decode(&recs); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after collection")
	}
	if recs == nil {
		return nil, errors.New("collection is not an array")
	}

	seen := make(map[string]bool, len(recs))
	out := make([]reservation.Reservation, 0, len(recs))
	for i, rec := range recs {
		r, err := fromRecord(rec, loc)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if seen[r.ID] {
			return nil, fmt.Errorf("entry %d: duplicate id %s", i, r.ID)
		}
		seen[r.ID] = true
		out = append(out, r)
	}
	return out, nil
}

func fromRecord(rec reservationRecord, loc *time.Location) (reservation.Reservation, error) {
	if rec.ID == "" {
		return reservation.Reservation{}, errors.New("missing id")
	}
	if rec.RestaurantID == "" {
		return reservation.Reservation{}, errors.New("missing restaurantId")
	}
	d, err := time.ParseInLocation(reservation.DateLayout, rec.Date, loc)
	if err != nil {
		return reservation.Reservation{}, fmt.Errorf("date: %w", err)
	}
	if _, _, ok := reservation.ParseSlot(rec.Time); !ok {
		return reservation.Reservation{}, fmt.Errorf("malformed time %q", rec.Time)
	}
	if rec.NumberOfGuests < 1 {
		return reservation.Reservation{}, fmt.Errorf("numberOfGuests %d", rec.NumberOfGuests)
	}
	st, err := reservation.ParseStatus(rec.Status)
	if err != nil {
		return reservation.Reservation{}, err
	}
	if rec.SelectedMenuItems == nil {
		return reservation.Reservation{}, errors.New("missing selectedMenuItems")
	}

	r := reservation.Reservation{
		ID:                rec.ID,
		RestaurantID:      rec.RestaurantID,
		RestaurantName:    rec.RestaurantName,
		Date:              d,
		Time:              rec.Time,
		NumberOfGuests:    rec.NumberOfGuests,
		Status:            st,
		SpecialRequests:   rec.SpecialRequests,
		SelectedMenuItems: make([]reservation.MenuItem, 0, len(rec.SelectedMenuItems)),
	}
	for j, m := range rec.SelectedMenuItems {
		if m.ID == "" || m.Price < 0 {
			return reservation.Reservation{}, fmt.Errorf("selectedMenuItems[%d] invalid", j)
		}
		r.SelectedMenuItems = append(r.SelectedMenuItems, reservation.MenuItem{
			ID: m.ID, Name: m.Name, Description: m.Description, Price: m.Price,
			ImageURL: m.ImageURL, Category: reservation.MenuCategory(m.Category), ABV: m.ABV, IBU: m.IBU,
		})
	}
	return r, nil
}

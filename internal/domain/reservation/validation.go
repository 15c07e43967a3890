package reservation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultMaxGuests  = 10
	DefaultWindowDays = 30
)

// DefaultSlots are the bookable slot tokens of the reservation screens.
var DefaultSlots = []string{
	"12:00", "13:00", "14:00", "15:00", "16:00", "17:00",
	"18:00", "19:00", "20:00", "21:00", "22:00",
}

// Rules parameterizes the booking checks. The zero value is usable and
// falls back to the defaults above in UTC.
type Rules struct {
	MaxGuests  int
	WindowDays int
	Slots      []string
	Location   *time.Location
}

func (r Rules) maxGuests() int {
	if r.MaxGuests > 0 {
		return r.MaxGuests
	}
	return DefaultMaxGuests
}

func (r Rules) windowDays() int {
	if r.WindowDays > 0 {
		return r.WindowDays
	}
	return DefaultWindowDays
}

func (r Rules) slots() []string {
	if len(r.Slots) > 0 {
		return r.Slots
	}
	return DefaultSlots
}

func (r Rules) Loc() *time.Location {
	if r.Location != nil {
		return r.Location
	}
	return time.UTC
}

// Schedule is the part of a booking request the rules look at.
type Schedule struct {
	Date   time.Time
	Time   string
	Guests int
}

// Validate runs the checks in the order the booking form does: date, slot,
// time of day, guest count. The first failure is returned.
func (r Rules) Validate(s Schedule, now time.Time) error {
	if err := r.CheckDate(s.Date, now); err != nil {
		return err
	}
	if err := r.CheckSlot(s.Time); err != nil {
		return err
	}
	if err := r.CheckTime(s.Date, s.Time, now); err != nil {
		return err
	}
	return r.CheckGuests(s.Guests)
}

// CheckDate rejects dates before today or after today+WindowDays.
func (r Rules) CheckDate(date, now time.Time) error {
	loc := r.Loc()
	today := NormalizeDate(now, loc)
	d := NormalizeDate(date, loc)
	last := today.AddDate(0, 0, r.windowDays())
	if d.Before(today) {
		return invalid(FieldDate, "date is in the past")
	}
	if d.After(last) {
		return invalid(FieldDate, fmt.Sprintf("date is more than %d days ahead", r.windowDays()))
	}
	return nil
}

// CheckSlot accepts only configured slot tokens.
func (r Rules) CheckSlot(tok string) error {
	if _, _, ok := ParseSlot(tok); !ok {
		return invalid(FieldTime, fmt.Sprintf("malformed time %q", tok))
	}
	for _, s := range r.slots() {
		if s == tok {
			return nil
		}
	}
	return invalid(FieldTime, fmt.Sprintf("%s is not a bookable slot", tok))
}

// CheckTime rejects same-day slots that are not strictly in the future.
func (r Rules) CheckTime(date time.Time, tok string, now time.Time) error {
	loc := r.Loc()
	now = now.In(loc)
	d := NormalizeDate(date, loc)
	if !d.Equal(NormalizeDate(now, loc)) {
		return nil
	}
	h, m, ok := ParseSlot(tok)
	if !ok {
		return invalid(FieldTime, fmt.Sprintf("malformed time %q", tok))
	}
	at := time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, loc)
	if !at.After(now) {
		return invalid(FieldTime, "time has already passed")
	}
	return nil
}

func (r Rules) CheckGuests(n int) error {
	if n < 1 {
		return invalid(FieldGuests, "at least one guest is required")
	}
	if limit := r.maxGuests(); n > limit {
		return invalid(FieldGuests, fmt.Sprintf("at most %d guests", limit))
	}
	return nil
}

// ParseSlot splits "HH:MM" into hour and minute.
func ParseSlot(tok string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(strings.TrimSpace(tok), ":")
	if !found || len(h) == 0 || len(h) > 2 || len(m) != 2 {
		return 0, 0, false
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, false
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, false
	}
	return hour, minute, true
}

package reservation

import (
	"strings"
	"time"
)

// DateLayout is the wire format of a reservation date.
const DateLayout = "2006-01-02"

type MenuCategory string

const (
	CategoryBeer   MenuCategory = "beer"
	CategorySnacks MenuCategory = "snacks"
	CategoryMain   MenuCategory = "main"
)

// MenuItem is a value snapshot. Reservations embed copies, never references
// into the catalog.
type MenuItem struct {
	ID          string
	Name        string
	Description string
	Price       float64
	ImageURL    string
	Category    MenuCategory
	ABV         *float64
	IBU         *int
}

// Clone returns a deep copy, detaching the optional pointer fields.
func (m MenuItem) Clone() MenuItem {
	out := m
	if m.ABV != nil {
		v := *m.ABV
		out.ABV = &v
	}
	if m.IBU != nil {
		v := *m.IBU
		out.IBU = &v
	}
	return out
}

type Restaurant struct {
	ID                       string
	Name                     string
	Description              string
	Address                  string
	Phone                    string
	ReservationCostPerPerson float64
	Menu                     []MenuItem
}

// MenuItem looks up an item of the restaurant's menu by id.
func (r Restaurant) MenuItem(id string) (MenuItem, bool) {
	for _, m := range r.Menu {
		if m.ID == id {
			return m, true
		}
	}
	return MenuItem{}, false
}

type Reservation struct {
	ID             string
	RestaurantID   string
	RestaurantName string

	// Date is the calendar day at midnight in the engine's location.
	Date time.Time
	// Time is a slot token such as "18:00".
	Time           string
	NumberOfGuests int
	Status         Status

	SpecialRequests *string

	// Repeated entries represent quantity > 1.
	SelectedMenuItems []MenuItem
}

// Clone returns a deep copy so callers can never alias the store's records.
func (r Reservation) Clone() Reservation {
	out := r
	if r.SpecialRequests != nil {
		v := *r.SpecialRequests
		out.SpecialRequests = &v
	}
	if r.SelectedMenuItems != nil {
		out.SelectedMenuItems = CloneItems(r.SelectedMenuItems)
	}
	return out
}

// StartsAt combines Date and the slot token. ok is false for malformed tokens.
func (r Reservation) StartsAt() (t time.Time, ok bool) {
	h, m, ok := ParseSlot(r.Time)
	if !ok {
		return time.Time{}, false
	}
	d := r.Date
	return time.Date(d.Year(), d.Month(), d.Day(), h, m, 0, 0, d.Location()), true
}

// CloneItems deep-copies a menu item sequence preserving order.
func CloneItems(items []MenuItem) []MenuItem {
	out := make([]MenuItem, len(items))
	for i, it := range items {
		out[i] = it.Clone()
	}
	return out
}

// Selection asks for Quantity copies of a menu item.
type Selection struct {
	MenuItemID string
	Quantity   int
}

// ExpandSelections resolves selections against the restaurant menu and
// returns one snapshot per requested unit, in request order.
func ExpandSelections(r Restaurant, sel []Selection) ([]MenuItem, error) {
	out := make([]MenuItem, 0, len(sel))
	for _, s := range sel {
		id := strings.TrimSpace(s.MenuItemID)
		if s.Quantity < 1 {
			return nil, invalid(FieldMenu, "quantity for "+id+" must be at least 1")
		}
		item, ok := r.MenuItem(id)
		if !ok {
			return nil, invalid(FieldMenu, "unknown menu item "+id)
		}
		for i := 0; i < s.Quantity; i++ {
			out = append(out, item.Clone())
		}
	}
	return out, nil
}

// NormalizeDate truncates t to midnight in loc.
func NormalizeDate(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

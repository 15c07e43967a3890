package web

import (
	"github.com/example/pivo/internal/booking"
	"github.com/example/pivo/internal/domain/reservation"
)

type selectionJSON struct {
	MenuItemID string `json:"menuItemId"`
	Quantity   int    `json:"quantity"`
}

type createBody struct {
	RestaurantID    string          `json:"restaurantId"`
	Date            string          `json:"date"`
	Time            string          `json:"time"`
	NumberOfGuests  int             `json:"numberOfGuests"`
	SpecialRequests string          `json:"specialRequests"`
	Items           []selectionJSON `json:"items"`
}

type editBody struct {
	Date            *string          `json:"date"`
	Time            *string          `json:"time"`
	NumberOfGuests  *int             `json:"numberOfGuests"`
	SpecialRequests *string          `json:"specialRequests"`
	Items           *[]selectionJSON `json:"items"`
}

type menuItemJSON struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"imageURL,omitempty"`
	Category    string   `json:"category"`
	ABV         *float64 `json:"abv,omitempty"`
	IBU         *int     `json:"ibu,omitempty"`
}

type reservationJSON struct {
	ID                string         `json:"id"`
	RestaurantID      string         `json:"restaurantId"`
	RestaurantName    string         `json:"restaurantName"`
	Date              string         `json:"date"`
	Time              string         `json:"time"`
	NumberOfGuests    int            `json:"numberOfGuests"`
	Status            string         `json:"status"`
	SpecialRequests   *string        `json:"specialRequests"`
	SelectedMenuItems []menuItemJSON `json:"selectedMenuItems"`
}

type costJSON struct {
	Deposit  float64 `json:"deposit"`
	Preorder float64 `json:"preorder"`
	Total    float64 `json:"total"`
}

type lineJSON struct {
	Item     menuItemJSON `json:"item"`
	Quantity int          `json:"quantity"`
	Subtotal float64      `json:"subtotal"`
}

type detailsJSON struct {
	Reservation reservationJSON `json:"reservation"`
	Cost        costJSON        `json:"cost"`
	Lines       []lineJSON      `json:"lines"`
}

type totalJSON struct {
	Count int     `json:"count"`
	Total float64 `json:"total"`
}

type restaurantJSON struct {
	ID                       string         `json:"id"`
	Name                     string         `json:"name"`
	Description              string         `json:"description"`
	Address                  string         `json:"address"`
	Phone                    string         `json:"phone"`
	ReservationCostPerPerson float64        `json:"reservationCostPerPerson"`
	Menu                     []menuItemJSON `json:"menu"`
}

type errorJSON struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

func toMenuItemJSON(m reservation.MenuItem) menuItemJSON {
	return menuItemJSON{
		ID: m.ID, Name: m.Name, Description: m.Description, Price: m.Price,
		ImageURL: m.ImageURL, Category: string(m.Category), ABV: m.ABV, IBU: m.IBU,
	}
}

func toMenuJSON(items []reservation.MenuItem) []menuItemJSON {
	out := make([]menuItemJSON, 0, len(items))
	for _, m := range items {
		out = append(out, toMenuItemJSON(m))
	}
	return out
}

func toReservationJSON(r reservation.Reservation) reservationJSON {
	return reservationJSON{
		ID:                r.ID,
		RestaurantID:      r.RestaurantID,
		RestaurantName:    r.RestaurantName,
		Date:              r.Date.Format(reservation.DateLayout),
		Time:              r.Time,
		NumberOfGuests:    r.NumberOfGuests,
		Status:            string(r.Status),
		SpecialRequests:   r.SpecialRequests,
		SelectedMenuItems: toMenuJSON(r.SelectedMenuItems),
	}
}

func toDetailsJSON(d booking.Details) detailsJSON {
	out := detailsJSON{
		Reservation: toReservationJSON(d.Reservation),
		Cost:        costJSON{Deposit: d.Cost.Deposit, Preorder: d.Cost.Preorder, Total: d.Cost.Total},
		Lines:       make([]lineJSON, 0, len(d.Lines)),
	}
	for _, l := range d.Lines {
		out.Lines = append(out.Lines, lineJSON{Item: toMenuItemJSON(l.Item), Quantity: l.Quantity, Subtotal: l.Subtotal})
	}
	return out
}

func toRestaurantJSON(r reservation.Restaurant) restaurantJSON {
	return restaurantJSON{
		ID: r.ID, Name: r.Name, Description: r.Description, Address: r.Address, Phone: r.Phone,
		ReservationCostPerPerson: r.ReservationCostPerPerson,
		Menu:                     toMenuJSON(r.Menu),
	}
}

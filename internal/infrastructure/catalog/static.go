// Package catalog provides read-only restaurant and menu sources for the
// booking engine.
package catalog

import (
	"context"
	"sort"

	"github.com/example/pivo/internal/domain/reservation"
)

// Static serves a fixed set of restaurants. Every call returns deep copies,
// so callers cannot change the catalog through a returned menu.
type Static struct {
	byID map[string]reservation.Restaurant
}

func NewStatic(restaurants ...reservation.Restaurant) *Static {
	s := &Static{byID: make(map[string]reservation.Restaurant, len(restaurants))}
	for _, r := range restaurants {
		s.byID[r.ID] = copyRestaurant(r)
	}
	return s
}

func (s *Static) GetRestaurant(_ context.Context, id string) (reservation.Restaurant, error) {
	r, ok := s.byID[id]
	if !ok {
		return reservation.Restaurant{}, reservation.RestaurantNotFound(id)
	}
	return copyRestaurant(r), nil
}

// List returns all restaurants ordered by id.
func (s *Static) List(_ context.Context) ([]reservation.Restaurant, error) {
	out := make([]reservation.Restaurant, 0, len(s.byID))
	for _, r := range s.byID {
		out = append(out, copyRestaurant(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func copyRestaurant(r reservation.Restaurant) reservation.Restaurant {
	r.Menu = reservation.CloneItems(r.Menu)
	return r
}

// Seed is the venue list the mobile app shipped with.
func Seed() []reservation.Restaurant {
	return []reservation.Restaurant{
		{
			ID:                       "1",
			Name:                     "The Pivo",
			Description:              "Cozy beer hall with a wide choice of beer and snacks",
			Address:                  "123 Primernaya St",
			Phone:                    "+7 (999) 123-45-67",
			ReservationCostPerPerson: 500,
			Menu: []reservation.MenuItem{
				{ID: "1", Name: "Light lager", Description: "Classic light beer", Price: 250, ImageURL: "beer1", Category: reservation.CategoryBeer},
				{ID: "2", Name: "Dark lager", Description: "Dark beer with a rich taste", Price: 300, ImageURL: "beer2", Category: reservation.CategoryBeer},
			},
		},
		{
			ID:                       "2",
			Name:                     "Pivo & Grill",
			Description:              "Grill house with beer",
			Address:                  "456 Drugaya St",
			Phone:                    "+7 (999) 765-43-21",
			ReservationCostPerPerson: 1000,
			Menu: []reservation.MenuItem{
				{ID: "3", Name: "Ribeye steak", Description: "Marbled beef steak", Price: 1200, ImageURL: "steak1", Category: reservation.CategoryMain},
				{ID: "4", Name: "Craft IPA", Description: "Hoppy craft beer", Price: 350, ImageURL: "beer3", Category: reservation.CategoryBeer},
			},
		},
	}
}

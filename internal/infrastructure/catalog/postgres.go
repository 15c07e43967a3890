package catalog

import (
	"context"
	"fmt"

	"github.com/example/pivo/internal/db"
	"github.com/example/pivo/internal/domain/reservation"
)

// Postgres reads restaurants and their menus from the catalog tables.
type Postgres struct{ db *db.DB }

func NewPostgres(d *db.DB) *Postgres { return &Postgres{db: d} }

func (p *Postgres) GetRestaurant(ctx context.Context, id string) (reservation.Restaurant, error) {
	var r reservation.Restaurant
	err := p.db.QueryRow(ctx, `
SELECT id,name,description,address,phone,reservation_cost_per_person
FROM restaurants
WHERE id=$1`, id).
		Scan(&r.ID, &r.Name, &r.Description, &r.Address, &r.Phone, &r.ReservationCostPerPerson)
	if db.IsNotFound(err) {
		return reservation.Restaurant{}, reservation.RestaurantNotFound(id)
	}
	if err != nil {
		return reservation.Restaurant{}, fmt.Errorf("catalog: restaurant %s: %w", id, err)
	}

	rows, err := p.db.Query(ctx, `
SELECT id,name,description,price,image_url,category,abv,ibu
FROM menu_items
WHERE restaurant_id=$1
ORDER BY position ASC, id ASC`, id)
	if err != nil {
		return reservation.Restaurant{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var m reservation.MenuItem
		var category string
		if err := rows.Scan(&m.ID, &m.Name, &m.Description, &m.Price, &m.ImageURL, &category, &m.ABV, &m.IBU); err != nil {
			return reservation.Restaurant{}, err
		}
		m.Category = reservation.MenuCategory(category)
		r.Menu = append(r.Menu, m)
	}
	return r, rows.Err()
}

// Upsert writes a restaurant and replaces its menu in one transaction, so a
// failed write leaves the previous menu in place. Used to load the seed
// catalog into a fresh database.
func (p *Postgres) Upsert(ctx context.Context, r reservation.Restaurant) error {
	return p.db.InTx(ctx, func(tx *db.Tx) error {
		if err := tx.Exec(ctx, `
INSERT INTO restaurants(id,name,description,address,phone,reservation_cost_per_person)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, description=EXCLUDED.description,
	address=EXCLUDED.address, phone=EXCLUDED.phone,
	reservation_cost_per_person=EXCLUDED.reservation_cost_per_person`,
			r.ID, r.Name, r.Description, r.Address, r.Phone, r.ReservationCostPerPerson); err != nil {
			return err
		}
		if err := tx.Exec(ctx, `DELETE FROM menu_items WHERE restaurant_id=$1`, r.ID); err != nil {
			return err
		}
		for i, m := range r.Menu {
			if err := tx.Exec(ctx, `
INSERT INTO menu_items(id,restaurant_id,position,name,description,price,image_url,category,abv,ibu)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
				m.ID, r.ID, i, m.Name, m.Description, m.Price, m.ImageURL, string(m.Category), m.ABV, m.IBU); err != nil {
				return fmt.Errorf("menu item %s: %w", m.ID, err)
			}
		}
		return nil
	})
}

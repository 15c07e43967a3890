package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/example/pivo/internal/domain/reservation"
)

// DefaultCacheTTL matches how long the app trusted its cached venue list.
const DefaultCacheTTL = time.Hour

// Cached is a read-through Redis cache in front of another Catalog.
// Cache faults are logged and fall through to the origin.
type Cached struct {
	Origin reservation.Catalog
	Client *redis.Client
	TTL    time.Duration
	Prefix string
	Log    *zap.Logger
}

type cachedMenuItem struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Price       float64  `json:"price"`
	ImageURL    string   `json:"imageURL"`
	Category    string   `json:"category"`
	ABV         *float64 `json:"abv,omitempty"`
	IBU         *int     `json:"ibu,omitempty"`
}

type cachedRestaurant struct {
	ID                       string           `json:"id"`
	Name                     string           `json:"name"`
	Description              string           `json:"description"`
	Address                  string           `json:"address"`
	Phone                    string           `json:"phone"`
	ReservationCostPerPerson float64          `json:"reservationCostPerPerson"`
	Menu                     []cachedMenuItem `json:"menu"`
}

func (c *Cached) key(id string) string {
	p := c.Prefix
	if p == "" {
		p = "catalog:restaurant:"
	}
	return p + id
}

func (c *Cached) logger() *zap.Logger {
	if c.Log == nil {
		return zap.NewNop()
	}
	return c.Log
}

func (c *Cached) GetRestaurant(ctx context.Context, id string) (reservation.Restaurant, error) {
	b, err := c.Client.Get(ctx, c.key(id)).Bytes()
	switch {
	case err == nil:
		var cr cachedRestaurant
		if jerr := json.Unmarshal(b, &cr); jerr == nil {
			return fromCached(cr), nil
		}
		c.logger().Warn("catalog cache entry undecodable", zap.String("restaurant_id", id))
	case !errors.Is(err, redis.Nil):
		c.logger().Warn("catalog cache read failed", zap.String("restaurant_id", id), zap.Error(err))
	}

	r, err := c.Origin.GetRestaurant(ctx, id)
	if err != nil {
		return reservation.Restaurant{}, err
	}
	if b, err := json.Marshal(toCached(r)); err == nil {
		ttl := c.TTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		if err := c.Client.Set(ctx, c.key(id), b, ttl).Err(); err != nil {
			c.logger().Warn("catalog cache write failed", zap.String("restaurant_id", id), zap.Error(err))
		}
	}
	return r, nil
}

func toCached(r reservation.Restaurant) cachedRestaurant {
	cr := cachedRestaurant{
		ID: r.ID, Name: r.Name, Description: r.Description, Address: r.Address, Phone: r.Phone,
		ReservationCostPerPerson: r.ReservationCostPerPerson,
		Menu:                     make([]cachedMenuItem, 0, len(r.Menu)),
	}
	for _, m := range r.Menu {
		cr.Menu = append(cr.Menu, cachedMenuItem{
			ID: m.ID, Name: m.Name, Description: m.Description, Price: m.Price,
			ImageURL: m.ImageURL, Category: string(m.Category), ABV: m.ABV, IBU: m.IBU,
		})
	}
	return cr
}

func fromCached(cr cachedRestaurant) reservation.Restaurant {
	r := reservation.Restaurant{
		ID: cr.ID, Name: cr.Name, Description: cr.Description, Address: cr.Address, Phone: cr.Phone,
		ReservationCostPerPerson: cr.ReservationCostPerPerson,
	}
	for _, m := range cr.Menu {
		r.Menu = append(r.Menu, reservation.MenuItem{
			ID: m.ID, Name: m.Name, Description: m.Description, Price: m.Price,
			ImageURL: m.ImageURL, Category: reservation.MenuCategory(m.Category), ABV: m.ABV, IBU: m.IBU,
		})
	}
	return r
}

package reservation

import "context"

// Catalog is the read-only source of restaurant and menu data.
// Implementations return an error matching ErrRestaurantNotFound for
// unknown ids.
type Catalog interface {
	GetRestaurant(ctx context.Context, id string) (Restaurant, error)
}

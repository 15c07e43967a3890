package reservation

// DefaultCostPerPerson applies when the catalog does not supply a rate.
const DefaultCostPerPerson = 250.0

type Cost struct {
	Deposit  float64
	Preorder float64
	Total    float64
}

// Line is one summarized pre-order position.
type Line struct {
	Item     MenuItem
	Quantity int
	Subtotal float64
}

// Calculator holds the fallback rate; its methods are pure.
type Calculator struct {
	DefaultRate float64
}

func NewCalculator(defaultRate float64) Calculator {
	if defaultRate <= 0 {
		defaultRate = DefaultCostPerPerson
	}
	return Calculator{DefaultRate: defaultRate}
}

// Rate is the restaurant's deposit per guest or the fallback.
func (c Calculator) Rate(r Restaurant) float64 {
	if r.ReservationCostPerPerson > 0 {
		return r.ReservationCostPerPerson
	}
	if c.DefaultRate > 0 {
		return c.DefaultRate
	}
	return DefaultCostPerPerson
}

func (c Calculator) Deposit(guests int, r Restaurant) float64 {
	return float64(guests) * c.Rate(r)
}

// PreorderCost counts every entry once; quantity is expressed by repetition.
func (c Calculator) PreorderCost(items []MenuItem) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price
	}
	return sum
}

func (c Calculator) Total(guests int, r Restaurant, items []MenuItem) float64 {
	return c.Deposit(guests, r) + c.PreorderCost(items)
}

func (c Calculator) Compute(res Reservation, r Restaurant) Cost {
	dep := c.Deposit(res.NumberOfGuests, r)
	pre := c.PreorderCost(res.SelectedMenuItems)
	return Cost{Deposit: dep, Preorder: pre, Total: dep + pre}
}

// Summarize groups repeated entries by item id, keeping first-seen order.
func Summarize(items []MenuItem) []Line {
	idx := make(map[string]int, len(items))
	var out []Line
	for _, it := range items {
		if i, ok := idx[it.ID]; ok {
			out[i].Quantity++
			out[i].Subtotal += it.Price
			continue
		}
		idx[it.ID] = len(out)
		out = append(out, Line{Item: it.Clone(), Quantity: 1, Subtotal: it.Price})
	}
	return out
}

package reservation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculator(t *testing.T) {
	calc := NewCalculator(0)
	r := Restaurant{ID: "R1", ReservationCostPerPerson: 250}
	items := []MenuItem{{ID: "a", Price: 300}, {ID: "b", Price: 450}}

	assert.Equal(t, 500.0, calc.Deposit(2, r))
	assert.Equal(t, 750.0, calc.PreorderCost(items))
	assert.Equal(t, 1250.0, calc.Total(2, r, items))

	got := calc.Compute(Reservation{NumberOfGuests: 2, SelectedMenuItems: items}, r)
	assert.Equal(t, Cost{Deposit: 500, Preorder: 750, Total: 1250}, got)
}

func TestCalculatorFallbackRate(t *testing.T) {
	assert.Equal(t, 750.0, NewCalculator(0).Deposit(3, Restaurant{}))
	assert.Equal(t, 300.0, NewCalculator(100).Deposit(3, Restaurant{}))
	assert.Equal(t, 1500.0, NewCalculator(100).Deposit(3, Restaurant{ReservationCostPerPerson: 500}))
}

func TestPreorderCountsRepeatedEntries(t *testing.T) {
	ipa := MenuItem{ID: "ipa", Price: 350}
	calc := NewCalculator(0)
	assert.Equal(t, 1050.0, calc.PreorderCost([]MenuItem{ipa, ipa, ipa}))
	assert.Zero(t, calc.PreorderCost(nil))
}

func TestSummarize(t *testing.T) {
	ipa := MenuItem{ID: "ipa", Price: 350}
	stout := MenuItem{ID: "stout", Price: 400}
	lines := Summarize([]MenuItem{ipa, stout, ipa})

	assert.Len(t, lines, 2)
	assert.Equal(t, "ipa", lines[0].Item.ID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 700.0, lines[0].Subtotal)
	assert.Equal(t, 1, lines[1].Quantity)
}

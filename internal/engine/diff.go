package engine

import (
	"math"

	"github.com/caesar-terminal/ladder/internal/adapter"
)

// EqualSides is a full, order-sensitive comparison. NaN matches NaN so a
// repeated malformed message is not treated as a change.
func EqualSides(a, b Side) bool {
	for i := range a {
		if !sameValue(a[i].Price, b[i].Price) || !sameValue(a[i].Size, b[i].Size) {
			return false
		}
	}
	return true
}

func sameValue(a, b float64) bool {
	return a == b || (math.IsNaN(a) && math.IsNaN(b))
}

// Diff annotates next against baseline. A slot is row-new when its price is
// absent from every baseline slot; otherwise its size is compared with the
// first baseline slot at that price. Sentinel and non-finite levels are
// never annotated.
func Diff(next, baseline Side) SideHighlights {
	var h SideHighlights
	for i, lvl := range next {
		if !comparablePrice(lvl.Price) {
			continue
		}
		old, ok := findPrice(baseline, lvl.Price)
		if !ok {
			h.Rows[i] = true
			continue
		}
		if !finite(lvl.Size) || !finite(old.Size) {
			continue
		}
		switch {
		case lvl.Size > old.Size:
			h.Cells[i] = CellIncrease
		case lvl.Size < old.Size:
			h.Cells[i] = CellDecrease
		}
	}
	return h
}

// DiffBook annotates both sides.
func DiffBook(next, baseline Book) Highlights {
	return Highlights{
		Bids: Diff(next.Bids, baseline.Bids),
		Asks: Diff(next.Asks, baseline.Asks),
	}
}

func comparablePrice(p float64) bool {
	return p != 0 && finite(p)
}

// findPrice returns the lowest-index baseline level at price.
func findPrice(s Side, price float64) (adapter.PriceLevel, bool) {
	for _, lvl := range s {
		if lvl.Price == price {
			return lvl, true
		}
	}
	return adapter.PriceLevel{}, false
}

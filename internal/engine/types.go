package engine

import (
	"time"

	"github.com/caesar-terminal/ladder/internal/adapter"
)

// Depth is the fixed number of levels per side.
const Depth = 8

// Side is one side of the book, slot 0 closest to mid. The zero value is
// all sentinel levels.
type Side [Depth]adapter.PriceLevel

// Book is a bids/asks pair.
type Book struct {
	Bids Side
	Asks Side
}

// Equal reports whether both sides match slot by slot.
func (b Book) Equal(o Book) bool {
	return EqualSides(b.Bids, o.Bids) && EqualSides(b.Asks, o.Asks)
}

// CellDelta is the size-change annotation for one level.
type CellDelta uint8

const (
	CellNone CellDelta = iota
	CellIncrease
	CellDecrease
)

func (d CellDelta) String() string {
	switch d {
	case CellIncrease:
		return "increase"
	case CellDecrease:
		return "decrease"
	default:
		return "none"
	}
}

// Direction is the last-trade price movement.
type Direction uint8

const (
	DirectionFlat Direction = iota
	DirectionUp
	DirectionDown
)

func (d Direction) String() string {
	switch d {
	case DirectionUp:
		return "up"
	case DirectionDown:
		return "down"
	default:
		return "flat"
	}
}

// SideHighlights annotates one side: Rows marks prices new since the
// baseline, Cells marks size changes at prices that were already there.
type SideHighlights struct {
	Rows  [Depth]bool
	Cells [Depth]CellDelta
}

// Highlights annotates both sides. The zero value is all neutral.
type Highlights struct {
	Bids SideHighlights
	Asks SideHighlights
}

// RowHighlights is the per-side row-new view of Highlights.
type RowHighlights struct {
	Bids [Depth]bool
	Asks [Depth]bool
}

// CellHighlights is the per-side size-delta view of Highlights.
type CellHighlights struct {
	Bids [Depth]CellDelta
	Asks [Depth]CellDelta
}

// Snapshot is the immutable visible state handed to views. Seq increases
// by one with every change.
type Snapshot struct {
	Seq            uint64
	Bids           Side
	Asks           Side
	RowHighlights  RowHighlights
	CellHighlights CellHighlights
	LastPrice      float64
	HasLastPrice   bool
	Direction      Direction
	UpdatedAt      time.Time
}

// Package view renders engine snapshots as a text price ladder.
package view

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/caesar-terminal/ladder/internal/adapter"
	"github.com/caesar-terminal/ladder/internal/engine"
)

const (
	empty    = "-"
	barWidth = 12
	colWidth = 12
	clearSeq = "\x1b[H\x1b[2J"
)

// Row is one rendered depth slot.
type Row struct {
	Price string
	Size  string
	Total string
	// Ratio is cumulative size over the side total, in [0, 1].
	Ratio float64
	New   bool
	Delta engine.CellDelta
	Empty bool
}

// Rows lays out one side: cumulative totals run from slot 0 outward.
// Sentinel and non-finite levels render empty and add nothing to totals.
func Rows(s engine.Side, rows [engine.Depth]bool, cells [engine.Depth]engine.CellDelta) [engine.Depth]Row {
	total := decimal.Zero
	for _, lvl := range s {
		total = total.Add(sizeOf(lvl))
	}

	var out [engine.Depth]Row
	cum := decimal.Zero
	for i, lvl := range s {
		cum = cum.Add(sizeOf(lvl))
		r := Row{
			Price: formatNumber(lvl.Price),
			Size:  formatNumber(lvl.Size),
			Total: empty,
			New:   rows[i],
			Delta: cells[i],
			Empty: !displayable(lvl.Price),
		}
		if r.Empty {
			r.Size = empty
		}
		if cum.IsPositive() {
			r.Total = humanize.Comma(cum.Round(0).IntPart())
		}
		if !r.Empty && total.IsPositive() {
			r.Ratio, _ = cum.Div(total).Float64()
		}
		out[i] = r
	}
	return out
}

// Render draws asks, the last-trade line and bids.
func Render(s engine.Snapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%-*s%*s%*s\n", colWidth, "Price", colWidth, "Size", colWidth, "Total")

	for _, r := range Rows(s.Asks, s.RowHighlights.Asks, s.CellHighlights.Asks) {
		writeRow(&b, r)
	}

	b.WriteString(lastPriceLine(s))
	b.WriteByte('\n')

	for _, r := range Rows(s.Bids, s.RowHighlights.Bids, s.CellHighlights.Bids) {
		writeRow(&b, r)
	}
	return b.String()
}

// Printer redraws the ladder on every snapshot.
type Printer struct {
	w     io.Writer
	clear bool
}

// NewPrinter writes frames to w, clearing the terminal first when clear is set.
func NewPrinter(w io.Writer, clear bool) *Printer {
	return &Printer{w: w, clear: clear}
}

// Print writes one frame.
func (p *Printer) Print(s engine.Snapshot) error {
	frame := Render(s)
	if p.clear {
		frame = clearSeq + frame
	}
	_, err := io.WriteString(p.w, frame)
	return err
}

func writeRow(b *strings.Builder, r Row) {
	mark := " "
	if r.New {
		mark = "*"
	}
	delta := " "
	switch r.Delta {
	case engine.CellIncrease:
		delta = "+"
	case engine.CellDecrease:
		delta = "-"
	}
	bar := strings.Repeat("#", int(math.Round(r.Ratio*barWidth)))
	fmt.Fprintf(b, "%s%-*s%*s%s%*s %s\n", mark, colWidth-1, r.Price, colWidth-1, r.Size, delta, colWidth, r.Total, bar)
}

func lastPriceLine(s engine.Snapshot) string {
	if !s.HasLastPrice {
		return empty
	}
	arrow := ""
	switch s.Direction {
	case engine.DirectionUp:
		arrow = " ↑"
	case engine.DirectionDown:
		arrow = " ↓"
	}
	return humanize.Commaf(s.LastPrice) + arrow
}

func displayable(v float64) bool {
	return v != 0 && !math.IsNaN(v) && !math.IsInf(v, 0)
}

func formatNumber(v float64) string {
	if !displayable(v) {
		return empty
	}
	return humanize.Commaf(v)
}

func sizeOf(lvl adapter.PriceLevel) decimal.Decimal {
	if !displayable(lvl.Price) || !displayable(lvl.Size) {
		return decimal.Zero
	}
	return decimal.NewFromFloat(lvl.Size)
}

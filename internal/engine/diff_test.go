package engine

import (
	"math"
	"strconv"
	"testing"

	"github.com/caesar-terminal/ladder/internal/adapter"
)

func side(levels ...adapter.PriceLevel) Side {
	var s Side
	copy(s[:], levels)
	return s
}

func lvl(price, size float64) adapter.PriceLevel {
	return adapter.PriceLevel{Price: price, Size: size}
}

func TestNormalize_FixedDepth(t *testing.T) {
	for _, n := range []int{0, 3, 8, 20} {
		raw := make([]adapter.RawLevel, n)
		for i := range raw {
			raw[i] = adapter.RawLevel{Price: strconv.Itoa(1000 - i), Size: "1"}
		}

		s := Normalize(raw)
		if len(s) != Depth {
			t.Fatalf("n=%d: expected %d levels, got %d", n, Depth, len(s))
		}
		for i := 0; i < Depth; i++ {
			want := 0.0
			if i < n {
				want = float64(1000 - i)
			}
			if s[i].Price != want {
				t.Errorf("n=%d slot %d: expected price %v, got %v", n, i, want, s[i].Price)
			}
		}
	}
}

func TestNormalize_NilInput(t *testing.T) {
	if Normalize(nil) != (Side{}) {
		t.Fatal("nil input should normalize to all sentinels")
	}
}

func TestNormalize_NonNumeric(t *testing.T) {
	s := Normalize([]adapter.RawLevel{{Price: "1e3", Size: "oops"}, {Price: "", Size: "2"}})

	if s[0].Price != 1000 || !math.IsNaN(s[0].Size) {
		t.Fatalf("unexpected slot 0: %+v", s[0])
	}
	if !math.IsNaN(s[1].Price) || s[1].Size != 2 {
		t.Fatalf("unexpected slot 1: %+v", s[1])
	}
}

func TestEqualSides(t *testing.T) {
	a := side(lvl(100, 1), lvl(99, 2))
	if !EqualSides(a, side(lvl(100, 1), lvl(99, 2))) {
		t.Fatal("identical sides should be equal")
	}
	if EqualSides(a, side(lvl(99, 2), lvl(100, 1))) {
		t.Fatal("reordered levels count as a change")
	}
	if EqualSides(a, side(lvl(100, 1), lvl(99, 3))) {
		t.Fatal("size change should be detected")
	}
	nan := math.NaN()
	if !EqualSides(side(lvl(nan, 1)), side(lvl(nan, 1))) {
		t.Fatal("NaN in the same slot should compare equal")
	}
}

func TestDiff_RowNew(t *testing.T) {
	baseline := side(lvl(100, 5))
	next := side(lvl(101, 1), lvl(100, 5))

	h := Diff(next, baseline)
	if !h.Rows[0] || h.Rows[1] {
		t.Fatalf("expected rows [true false ...], got %v", h.Rows)
	}
	if h.Cells[0] != CellNone {
		t.Fatal("a new row never carries a cell delta")
	}
	if h.Cells[1] != CellNone {
		t.Fatalf("unchanged size should be none, got %s", h.Cells[1])
	}
}

func TestDiff_CellDelta(t *testing.T) {
	baseline := side(lvl(100, 5))

	cases := []struct {
		size float64
		want CellDelta
	}{
		{7, CellIncrease},
		{3, CellDecrease},
		{5, CellNone},
	}
	for _, tc := range cases {
		h := Diff(side(lvl(100, tc.size)), baseline)
		if h.Cells[0] != tc.want {
			t.Errorf("size %v: expected %s, got %s", tc.size, tc.want, h.Cells[0])
		}
		if h.Rows[0] {
			t.Errorf("size %v: existing price should not be row-new", tc.size)
		}
	}
}

func TestDiff_MovedLevelComparesByPrice(t *testing.T) {
	baseline := side(lvl(101, 1), lvl(100, 5))
	next := side(lvl(100, 8))

	h := Diff(next, baseline)
	if h.Rows[0] || h.Cells[0] != CellIncrease {
		t.Fatalf("expected increase against slot 1 of baseline, got row=%v cell=%s", h.Rows[0], h.Cells[0])
	}
}

func TestDiff_SentinelsNeverHighlighted(t *testing.T) {
	baseline := side(lvl(100, 5), lvl(99, 5))
	next := side(lvl(0, 9), lvl(0, 0))

	h := Diff(next, baseline)
	if h != (SideHighlights{}) {
		t.Fatalf("sentinels must not be highlighted: %+v", h)
	}

	// Sentinel baseline slots never match a real price either.
	h = Diff(side(lvl(100, 1)), Side{})
	if !h.Rows[0] {
		t.Fatal("price absent from an empty baseline is new")
	}
	for i := 1; i < Depth; i++ {
		if h.Rows[i] || h.Cells[i] != CellNone {
			t.Fatalf("padding slot %d highlighted", i)
		}
	}
}

func TestDiff_DuplicatePricesUseFirstMatch(t *testing.T) {
	baseline := side(lvl(100, 2), lvl(100, 9))
	h := Diff(side(lvl(100, 5)), baseline)

	if h.Cells[0] != CellIncrease {
		t.Fatalf("expected comparison with first baseline slot (size 2), got %s", h.Cells[0])
	}
}

func TestDiff_NonFiniteExcluded(t *testing.T) {
	nan := math.NaN()
	inf := math.Inf(1)

	h := Diff(side(lvl(nan, 1), lvl(inf, 1), lvl(100, nan), lvl(99, 4)), side(lvl(100, 5), lvl(99, nan)))
	if h.Rows[0] || h.Rows[1] {
		t.Fatal("non-finite prices must not be row-new")
	}
	if h.Rows[2] || h.Cells[2] != CellNone {
		t.Fatal("non-finite new size must not produce a delta")
	}
	if h.Rows[3] || h.Cells[3] != CellNone {
		t.Fatal("non-finite old size must not produce a delta")
	}
}

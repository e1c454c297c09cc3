package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/caesar-terminal/ladder/internal/adapter"
)

// Normalize takes the first Depth levels in feed order and pads the rest
// with sentinels. Unparseable text becomes NaN; no other validation is done.
func Normalize(raw []adapter.RawLevel) Side {
	var s Side
	for i := 0; i < Depth && i < len(raw); i++ {
		s[i] = adapter.PriceLevel{
			Price: parseNumber(raw[i].Price),
			Size:  parseNumber(raw[i].Size),
		}
	}
	return s
}

func parseNumber(text string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

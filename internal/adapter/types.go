package adapter

import "time"

// Exchange identifies the source of market data.
type Exchange string

const (
	ExchangeBTSE Exchange = "btse"
)

// PriceLevel represents a single bid or ask at a given price. A level with
// Price == 0 is a sentinel for an empty depth slot.
type PriceLevel struct {
	Price float64
	Size  float64
}

// RawLevel is one (price, size) pair exactly as the feed reported it.
// Parsing is left to the consumer so malformed text survives the boundary.
type RawLevel struct {
	Price string
	Size  string
}

// BookUpdate is a top-of-book slice for one instrument. Levels are in
// market priority order: slot 0 is closest to mid.
type BookUpdate struct {
	Exchange Exchange
	Symbol   string
	Topic    string
	Bids     []RawLevel
	Asks     []RawLevel
	Received time.Time
}

// TradeUpdate carries the most recent executed trade from one feed message.
type TradeUpdate struct {
	Exchange Exchange
	Symbol   string
	Price    string
	Received time.Time
}

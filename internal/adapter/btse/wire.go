package btse

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caesar-terminal/ladder/internal/adapter"
)

var (
	// ErrNoData marks a well-formed message with nothing to apply, such as
	// a subscription acknowledgement.
	ErrNoData = errors.New("btse: message carries no data")
	// ErrTopicMismatch marks a book message for a channel we did not subscribe to.
	ErrTopicMismatch = errors.New("btse: topic does not match subscription")
)

// subscribeMsg is the BTSE subscription request.
type subscribeMsg struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

// SubscribeMessage encodes a subscription request for channel.
func SubscribeMessage(channel string) []byte {
	msg, _ := json.Marshal(subscribeMsg{
		Op:   "subscribe",
		Args: []string{channel},
	})
	return msg
}

// text holds a numeric field as its original text. BTSE sends most numbers
// as strings, but some endpoints send bare JSON numbers.
type text string

func (t *text) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*t = ""
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*t = text(s)
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return fmt.Errorf("btse: expected string or number, got %s", b)
		}
		*t = text(n)
	}
	return nil
}

// Raw BTSE order book update as received over the wire.
type rawBookMessage struct {
	Topic string       `json:"topic"`
	Data  *rawBookData `json:"data"`
}

type rawBookData struct {
	Bids [][]text `json:"bids"`
	Asks [][]text `json:"asks"`
}

// Raw BTSE trade history message. Data is kept raw so non-array payloads
// (acks, errors) can be told apart from trades.
type rawTradeMessage struct {
	Topic string          `json:"topic"`
	Data  json.RawMessage `json:"data"`
}

type rawTrade struct {
	Price text `json:"price"`
}

// parseBook decodes a book message and keeps it only if its topic starts
// with channel. Missing bids or asks decode as empty sides.
func parseBook(raw []byte, channel string, received time.Time) (adapter.BookUpdate, error) {
	var msg rawBookMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return adapter.BookUpdate{}, fmt.Errorf("btse: decode book: %w", err)
	}
	if !strings.HasPrefix(msg.Topic, channel) {
		return adapter.BookUpdate{}, ErrTopicMismatch
	}
	if msg.Data == nil {
		return adapter.BookUpdate{}, ErrNoData
	}

	return adapter.BookUpdate{
		Exchange: adapter.ExchangeBTSE,
		Symbol:   symbolOf(channel),
		Topic:    msg.Topic,
		Bids:     rawLevels(msg.Data.Bids),
		Asks:     rawLevels(msg.Data.Asks),
		Received: received,
	}, nil
}

// parseTrade decodes a trade message and returns the first (most recent)
// trade in it.
func parseTrade(raw []byte, channel string, received time.Time) (adapter.TradeUpdate, error) {
	var msg rawTradeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return adapter.TradeUpdate{}, fmt.Errorf("btse: decode trade: %w", err)
	}

	data := bytes.TrimSpace(msg.Data)
	if len(data) == 0 || data[0] != '[' {
		return adapter.TradeUpdate{}, ErrNoData
	}

	var trades []rawTrade
	if err := json.Unmarshal(data, &trades); err != nil {
		return adapter.TradeUpdate{}, fmt.Errorf("btse: decode trades: %w", err)
	}
	if len(trades) == 0 {
		return adapter.TradeUpdate{}, ErrNoData
	}

	return adapter.TradeUpdate{
		Exchange: adapter.ExchangeBTSE,
		Symbol:   symbolOf(channel),
		Price:    string(trades[0].Price),
		Received: received,
	}, nil
}

// rawLevels converts [price, size] pairs. Short pairs leave the missing
// field empty, which the engine parses as non-finite.
func rawLevels(pairs [][]text) []adapter.RawLevel {
	levels := make([]adapter.RawLevel, len(pairs))
	for i, p := range pairs {
		if len(p) > 0 {
			levels[i].Price = string(p[0])
		}
		if len(p) > 1 {
			levels[i].Size = string(p[1])
		}
	}
	return levels
}

// symbolOf strips the channel name, "update:BTCPFC" -> "BTCPFC".
func symbolOf(channel string) string {
	if i := strings.IndexByte(channel, ':'); i >= 0 {
		return channel[i+1:]
	}
	return channel
}

package topics

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Classification tells whether a channel needs an authenticated connection.
type Classification int

const (
	// Public channels are served on tokens from the public bullet endpoint.
	Public Classification = iota
	// Private channels require a signed token request.
	Private
)

// String returns "public" or "private".
func (c Classification) String() string {
	return [...]string{"public", "private"}[c]
}

// IsPrivate reports whether c is Private.
func (c Classification) IsPrivate() bool {
	return c == Private
}

var (
	// ErrUnknownTopic is returned for topic names missing from the table.
	ErrUnknownTopic = errors.New("unknown topic")
	// ErrSymbolRequired is returned when a per-symbol topic gets no symbol.
	ErrSymbolRequired = errors.New("topic requires a symbol")
)

// Descriptor is the resolved form of a topic request.
type Descriptor struct {
	Topic   string
	Channel string
	Class   Classification
}

// String returns "topic -> channel (class)".
func (d Descriptor) String() string {
	return fmt.Sprintf("%s -> %s (%s)", d.Topic, d.Channel, d.Class)
}

type entry struct {
	path      string
	perSymbol bool
	class     Classification
}

var table = map[string]entry{
	"ticker":       {"/contractMarket/ticker", true, Public},
	"tickerv2":     {"/contractMarket/tickerV2", true, Public},
	"orderbook":    {"/contractMarket/level2", true, Public},
	"execution":    {"/contractMarket/execution", true, Public},
	"fullMatch":    {"/contractMarket/level3v2", true, Public},
	"depth5":       {"/contractMarket/level2Depth5", true, Public},
	"depth50":      {"/contractMarket/level2Depth50", true, Public},
	"market":       {"/contract/instrument", true, Public},
	"announcement": {"/contract/announcement", false, Public},
	"snapshot":     {"/contractMarket/snapshot", true, Public},

	"ordersMarket":   {"/contractMarket/tradeOrders", true, Private},
	"orders":         {"/contractMarket/tradeOrders", false, Private},
	"advancedOrders": {"/contractMarket/advancedOrders", false, Private},
	"balances":       {"/contractAccount/wallet", false, Private},
	"position":       {"/contract/position", true, Private},
}

// Lookup resolves a topic from the static table. Per-symbol topics use the
// first symbol only.
func Lookup(topic string, symbols []string) (Descriptor, error) {
	e, ok := table[topic]
	if !ok {
		return Descriptor{}, fmt.Errorf("%w: %q", ErrUnknownTopic, topic)
	}

	channel := e.path
	if e.perSymbol {
		if len(symbols) == 0 || symbols[0] == "" {
			return Descriptor{}, fmt.Errorf("%w: %q", ErrSymbolRequired, topic)
		}
		channel += ":" + symbols[0]
	}

	return Descriptor{Topic: topic, Channel: channel, Class: e.class}, nil
}

// Custom builds a descriptor for an explicit channel endpoint. Symbols are
// appended comma separated after a colon.
func Custom(topic, endpoint string, symbols []string, private bool) Descriptor {
	channel := endpoint
	if len(symbols) > 0 {
		channel += ":" + strings.Join(symbols, ",")
	}

	class := Public
	if private {
		class = Private
	}

	return Descriptor{Topic: topic, Channel: channel, Class: class}
}

// Resolve picks Custom when endpoint is set and Lookup otherwise.
func Resolve(topic string, symbols []string, endpoint string, private bool) (Descriptor, error) {
	if endpoint != "" {
		return Custom(topic, endpoint, symbols, private), nil
	}
	return Lookup(topic, symbols)
}

// Names returns all topic names of the static table, sorted.
func Names() []string {
	names := make([]string, 0, len(table))
	for name := range table {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

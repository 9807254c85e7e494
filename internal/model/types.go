package model

import "time"

// Mode is the market-data detail level requested for a subscription.
// Higher modes correspond to larger binary payloads on the wire.
type Mode string

const (
	ModeLTP   Mode = "ltp"
	ModeQuote Mode = "quote"
	ModeFull  Mode = "full"
)

// Tick is one decoded market-data update for an instrument.
//
// Ticks are pooled and mutable: the shard processor rents an instance when a
// raw packet is decoded and returns it once every interested consumer has
// finished reading it. Callbacks must not retain a *Tick beyond the call they
// received it in; copy fields out instead.
type Tick struct {
	Token  uint32 // Broker-assigned numeric instrument identifier
	Symbol string // Human-readable symbol resolved from the token

	LastPrice    float64
	LastQuantity uint32
	AveragePrice float64
	Volume       uint32
	BuyQuantity  uint32
	SellQuantity uint32

	Open  float64
	High  float64
	Low   float64
	Close float64

	ExchangeTime time.Time // Exchange timestamp (only present in 32-byte index packets)
	ReceivedAt   time.Time // Local timestamp when the frame was read

	IsIndex  bool // Index instruments use the shorter quote layouts
	HasDepth bool // Reserved: depth levels are not decoded by this pipeline
}

// Reset zeroes a tick before it is returned to the pool.
func (t *Tick) Reset() {
	*t = Tick{}
}

// Subscription records a sticky, process-lifetime subscription.
//
// Once registered a subscription is never removed: churn against the upstream
// feed risks exceeding the broker's connection and subscription limits, so a
// logical unsubscribe from a consumer is a no-op at this layer.
type Subscription struct {
	Symbol       string
	Token        uint32
	Mode         Mode
	IsIndex      bool
	SubscribedAt time.Time
}

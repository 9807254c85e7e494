// Package feed implements the shared connection service: one multiplexed
// WebSocket serving every subscriber in the process.
//
// The service owns the subscription set, the connection state machine, and
// reconnection policy. All state transitions are compare-and-swap guarded so
// at most one physical connection exists no matter how many goroutines race
// to connect. Reconnection replays the full subscription map in one combined
// subscribe plus one mode-set message, making disconnects transparent to
// consumers. Connect failures back off exponentially and retry forever; they
// are never surfaced to Subscribe callers, who learn about connectivity from
// the hub's connection lifecycle stream.
package feed

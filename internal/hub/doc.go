// Package hub implements the reactive distribution hub, the single source of
// truth consumers read from.
//
// The core primitive is a generic broadcast Stream with independent
// per-subscriber delivery: a slow subscriber sheds its own deliveries and
// never delays the others. Streams compose through operators (windowed batch,
// per-key sampling) and may retain their most recent value for replay to late
// subscribers. The hub never calls back into the network layers.
package hub

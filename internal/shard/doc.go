// Package shard implements the sharded tick processor sitting between the
// receive loop and consumer callbacks.
//
// Ticks are hashed by symbol onto one of N bounded queues, each drained by a
// dedicated worker, so the network receive loop never blocks on consumer work
// and per-symbol delivery order is preserved. Overflow sheds the incoming
// tick rather than blocking the producer. Tick instances are pooled with a
// rent/return discipline to keep garbage generation flat at high rates.
package shard

// Package wire implements the binary feed protocol codec.
//
// Inbound frames are binary: a 2-byte big-endian packet count followed by
// length-prefixed packets, each carrying one quote whose layout is keyed by
// its payload length. Outbound control frames are small JSON text messages.
//
// All functions are pure: no state, no I/O.
package wire

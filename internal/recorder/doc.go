// Package recorder persists tick batches from the hub to PostgreSQL.
//
// The recorder is a passive hub subscriber. It accumulates ticks into
// batches and flushes them with COPY on a size cap or flush interval,
// so a slow database never applies backpressure to the feed path.
package recorder

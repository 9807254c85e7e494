// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Feed connection state and reconnect counts
//   - Tick ingest, dispatch, and drop rates per shard
//   - Shard queue depth and saturation
//   - Hub subscriber drop counts
//   - Recorder batch sizes and flush counts
package metrics

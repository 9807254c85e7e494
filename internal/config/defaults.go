package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultWSURL              = "wss://ws.kite.trade"
	DefaultMode               = "quote"
	DefaultHandshakeTimeout   = 10 * time.Second
	DefaultKeepAlive          = 2500 * time.Millisecond
	DefaultPingTimeout        = 30 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultReadBufferSize     = 1 << 20
	DefaultFrameBufferSize    = 4096
	DefaultConnectWaitTimeout = 10 * time.Second
	DefaultBackoffBase        = 1 * time.Second
	DefaultBackoffMax         = 30 * time.Second
	DefaultShardCount         = 4
	DefaultQueueCapacity      = 16384
	DefaultHealthInterval     = 30 * time.Second
	DefaultDropLogSampleRate  = 1000
	DefaultBatchWindow        = 100 * time.Millisecond
	DefaultBatchMaxSize       = 1000
	DefaultSampleInterval     = 150 * time.Millisecond
	DefaultSubscriberBuffer   = 4096
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultFlushInterval      = 1 * time.Second
	DefaultRecorderBatchSize  = 1000
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
	DefaultLogLevel           = "info"
)

func (c *Config) applyDefaults() {
	if c.Feed.WSURL == "" {
		c.Feed.WSURL = DefaultWSURL
	}
	if c.Feed.Mode == "" {
		c.Feed.Mode = DefaultMode
	}
	if c.Feed.HandshakeTimeout == 0 {
		c.Feed.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Feed.KeepAlive == 0 {
		c.Feed.KeepAlive = DefaultKeepAlive
	}
	if c.Feed.PingTimeout == 0 {
		c.Feed.PingTimeout = DefaultPingTimeout
	}
	if c.Feed.WriteTimeout == 0 {
		c.Feed.WriteTimeout = DefaultWriteTimeout
	}
	if c.Feed.ReadBufferSize == 0 {
		c.Feed.ReadBufferSize = DefaultReadBufferSize
	}
	if c.Feed.FrameBufferSize == 0 {
		c.Feed.FrameBufferSize = DefaultFrameBufferSize
	}
	if c.Feed.ConnectWaitTimeout == 0 {
		c.Feed.ConnectWaitTimeout = DefaultConnectWaitTimeout
	}
	if c.Feed.BackoffBase == 0 {
		c.Feed.BackoffBase = DefaultBackoffBase
	}
	if c.Feed.BackoffMax == 0 {
		c.Feed.BackoffMax = DefaultBackoffMax
	}

	if c.Shards.Count == 0 {
		c.Shards.Count = DefaultShardCount
	}
	if c.Shards.QueueCapacity == 0 {
		c.Shards.QueueCapacity = DefaultQueueCapacity
	}
	if c.Shards.HealthInterval == 0 {
		c.Shards.HealthInterval = DefaultHealthInterval
	}
	if c.Shards.DropLogSampleRate == 0 {
		c.Shards.DropLogSampleRate = DefaultDropLogSampleRate
	}

	if c.Hub.BatchWindow == 0 {
		c.Hub.BatchWindow = DefaultBatchWindow
	}
	if c.Hub.BatchMaxSize == 0 {
		c.Hub.BatchMaxSize = DefaultBatchMaxSize
	}
	if c.Hub.SampleInterval == 0 {
		c.Hub.SampleInterval = DefaultSampleInterval
	}
	if c.Hub.SubscriberBuffer == 0 {
		c.Hub.SubscriberBuffer = DefaultSubscriberBuffer
	}

	if c.Recorder.Enabled {
		applyDBDefaults(&c.Recorder.Database)
		if c.Recorder.FlushInterval == 0 {
			c.Recorder.FlushInterval = DefaultFlushInterval
		}
		if c.Recorder.BatchSize == 0 {
			c.Recorder.BatchSize = DefaultRecorderBatchSize
		}
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

package config

import "time"

// Config is the root configuration for a feed daemon instance.
type Config struct {
	Instance InstanceConfig `yaml:"instance"`
	Feed     FeedConfig     `yaml:"feed"`
	Shards   ShardsConfig   `yaml:"shards"`
	Hub      HubConfig      `yaml:"hub"`
	Recorder RecorderConfig `yaml:"recorder"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// InstanceConfig identifies this daemon.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// FeedConfig holds broker feed settings. APIKey and AccessToken support
// ${VAR} environment expansion.
type FeedConfig struct {
	WSURL              string        `yaml:"ws_url"`
	APIKey             string        `yaml:"api_key"`
	AccessToken        string        `yaml:"access_token"`
	Mode               string        `yaml:"mode"` // ltp | quote | full
	HandshakeTimeout   time.Duration `yaml:"handshake_timeout"`
	KeepAlive          time.Duration `yaml:"keep_alive"`
	PingTimeout        time.Duration `yaml:"ping_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	ReadBufferSize     int           `yaml:"read_buffer_size"`
	FrameBufferSize    int           `yaml:"frame_buffer_size"`
	ConnectWaitTimeout time.Duration `yaml:"connect_wait_timeout"`
	BackoffBase        time.Duration `yaml:"backoff_base"`
	BackoffMax         time.Duration `yaml:"backoff_max"`
}

// ShardsConfig holds tick processor settings.
type ShardsConfig struct {
	Count             int           `yaml:"count"`
	QueueCapacity     int           `yaml:"queue_capacity"`
	HealthInterval    time.Duration `yaml:"health_interval"`
	DropLogSampleRate int           `yaml:"drop_log_sample_rate"`
}

// HubConfig holds distribution hub operator settings.
type HubConfig struct {
	BatchWindow      time.Duration `yaml:"batch_window"`
	BatchMaxSize     int           `yaml:"batch_max_size"`
	SampleInterval   time.Duration `yaml:"sample_interval"`
	SubscriberBuffer int           `yaml:"subscriber_buffer"`
}

// RecorderConfig holds the optional tick persistence settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Database      DBConfig      `yaml:"database"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BatchSize     int           `yaml:"batch_size"`
}

// DBConfig holds a single Postgres/Timescale connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// MetricsConfig holds the diagnostics HTTP endpoint settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}

// LoggingConfig holds log settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

package config

import (
	"errors"
	"fmt"
)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if c.Feed.APIKey == "" {
		return errors.New("feed.api_key is required")
	}
	if c.Feed.AccessToken == "" {
		return errors.New("feed.access_token is required")
	}
	switch c.Feed.Mode {
	case "ltp", "quote", "full":
	default:
		return fmt.Errorf("feed.mode must be ltp, quote or full, got %q", c.Feed.Mode)
	}
	if c.Feed.BackoffBase > c.Feed.BackoffMax {
		return fmt.Errorf("feed.backoff_base (%s) cannot exceed backoff_max (%s)",
			c.Feed.BackoffBase, c.Feed.BackoffMax)
	}

	if c.Shards.Count < 1 {
		return errors.New("shards.count must be >= 1")
	}
	if c.Shards.QueueCapacity < 1 {
		return errors.New("shards.queue_capacity must be >= 1")
	}

	if c.Hub.BatchMaxSize < 1 {
		return errors.New("hub.batch_max_size must be >= 1")
	}
	if c.Hub.SubscriberBuffer < 1 {
		return errors.New("hub.subscriber_buffer must be >= 1")
	}

	if c.Recorder.Enabled {
		if err := c.Recorder.Database.validate("recorder.database"); err != nil {
			return err
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}

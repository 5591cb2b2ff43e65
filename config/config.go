package config

import "github.com/caarlos0/env/v6"

type Config struct {
	// Server configuration
	Server struct {
		// Port the HTTP API listens on
		Port string `env:"SERVER_PORT" envDefault:"5250"`

		// Allowed CORS origins, comma separated
		AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	}

	// Database configuration
	Database struct {
		// Path to the sqlite database file
		Path string `env:"DATABASE_PATH" envDefault:"database/dealflow.db"`
	}

	// Snapshot persistence configuration
	Snapshots struct {
		// Buffer size of the snapshot queue
		QueueSize int `env:"SNAPSHOT_QUEUE_SIZE" envDefault:"16"`

		// Number of concurrent snapshot writers
		ProcessorCount int `env:"SNAPSHOT_PROCESSOR_COUNT" envDefault:"2"`

		// Maximum number of retries for failed snapshot writes
		MaxRetries int `env:"SNAPSHOT_MAX_RETRIES" envDefault:"3"`

		// Delay between retries in seconds
		RetryDelay int `env:"SNAPSHOT_RETRY_DELAY" envDefault:"5"`
	}

	// Follow-up defaults
	FollowUp struct {
		// Days without contact before a lead needs follow-up
		DefaultDays int `env:"FOLLOW_UP_DEFAULT_DAYS" envDefault:"7"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

package completion

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/openmined/foldernotify/internal/server/blob"
)

const (
	DefaultInterval   = 10 * time.Minute
	DefaultInactivity = time.Minute
	DefaultBatchSize  = 100
	DefaultTimeout    = 10 * time.Second
)

type Config struct {
	Enabled bool `mapstructure:"enabled"`
	// Interval between passes over the pending folders
	Interval time.Duration `mapstructure:"interval"`
	// Inactivity is how long a folder must go without new objects
	Inactivity time.Duration `mapstructure:"inactivity"`
	// Suffix limits the file count and size to matching keys, e.g. ".jsonl.gz"
	Suffix    string        `mapstructure:"suffix"`
	BatchSize int           `mapstructure:"batch_size"`
	S3        blob.S3Config `mapstructure:"s3"`
}

func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Interval < 0 || c.Inactivity < 0 {
		return fmt.Errorf("completion `interval` and `inactivity` must not be negative")
	}
	if c.BatchSize < 0 {
		return fmt.Errorf("completion `batch_size` must not be negative")
	}
	if err := c.S3.Validate(); err != nil {
		return fmt.Errorf("completion: %w", err)
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", c.Enabled),
		slog.Duration("interval", c.Interval),
		slog.Duration("inactivity", c.Inactivity),
		slog.String("suffix", c.Suffix),
		slog.Int("batch_size", c.BatchSize),
		slog.Any("s3", c.S3),
	)
}

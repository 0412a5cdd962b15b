package gate

import (
	"fmt"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	DefaultNotifyTimeout = 10 * time.Second
	DefaultCacheTTL      = 10 * time.Minute
)

var DefaultPrefixes = []string{"Prebind/", "Postbind/", "test/"}

type Config struct {
	// Prefixes are matched in order against the object path
	Prefixes []string `mapstructure:"prefixes"`
	// Bucket, when set, drops events from any other bucket
	Bucket          string        `mapstructure:"bucket"`
	ExcludePatterns []string      `mapstructure:"exclude_patterns"`
	CacheSize       int           `mapstructure:"cache_size"`
	CacheTTL        time.Duration `mapstructure:"cache_ttl"`
	NotifyTimeout   time.Duration `mapstructure:"notify_timeout"`
}

func (c *Config) Validate() error {
	if len(NormalizePrefixes(c.Prefixes)) == 0 {
		return ErrNoPrefixes
	}
	for _, p := range c.ExcludePatterns {
		if !doublestar.ValidatePattern(p) {
			return fmt.Errorf("%w %q", ErrBadPattern, p)
		}
	}
	if c.CacheSize < 0 {
		return fmt.Errorf("gate `cache_size` must not be negative")
	}
	if c.NotifyTimeout < 0 || c.CacheTTL < 0 {
		return fmt.Errorf("gate timeouts must not be negative")
	}
	return nil
}

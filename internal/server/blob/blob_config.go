package blob

import (
	"fmt"
	"log/slog"

	"github.com/openmined/foldernotify/internal/utils"
)

// S3Config holds the connection settings shared by every S3 client.
// Empty keys fall back to the default aws credential chain.
type S3Config struct {
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
}

func (c *S3Config) Validate() error {
	if c.Region == "" {
		return fmt.Errorf("s3 `region` required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("s3 `access_key` and `secret_key` must be set together")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid s3 endpoint URL %q", c.Endpoint)
	}
	return nil
}

func (c S3Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("region", c.Region),
		slog.String("access_key", utils.MaskSecret(c.AccessKey)),
		slog.String("secret_key", utils.MaskSecret(c.SecretKey)),
		slog.String("endpoint", c.Endpoint),
	)
}

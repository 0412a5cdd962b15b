package analytics

import (
	"fmt"
	"log/slog"
	"regexp"

	"github.com/openmined/foldernotify/internal/utils"
)

const (
	DefaultObjectKey = "analytics/folder_completions.csv"
	DefaultTableName = "folder_completions"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

type Config struct {
	Backend string      `mapstructure:"backend"`
	S3      S3Config    `mapstructure:"s3"`
	Table   TableConfig `mapstructure:"table"`
}

type S3Config struct {
	BucketName string `mapstructure:"bucket_name"`
	ObjectKey  string `mapstructure:"object_key"`
	Region     string `mapstructure:"region"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Endpoint   string `mapstructure:"endpoint"`
}

type TableConfig struct {
	Name string `mapstructure:"name"`
	// DBPath stores completions in a separate sqlite file instead of the service db
	DBPath string `mapstructure:"db_path"`
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendNone:
		return nil
	case BackendS3:
		return c.S3.Validate()
	case BackendTable:
		if c.Table.Name != "" && !tableNameRe.MatchString(c.Table.Name) {
			return fmt.Errorf("%w %q", ErrInvalidTableName, c.Table.Name)
		}
		return nil
	default:
		return fmt.Errorf("%w %q", ErrUnknownBackend, c.Backend)
	}
}

func (c *S3Config) Validate() error {
	if c.BucketName == "" {
		return fmt.Errorf("analytics s3 `bucket_name` required")
	}
	if c.Region == "" {
		return fmt.Errorf("analytics s3 `region` required")
	}
	if (c.AccessKey == "") != (c.SecretKey == "") {
		return fmt.Errorf("analytics s3 `access_key` and `secret_key` must be set together")
	}
	if c.Endpoint != "" && !utils.IsValidURL(c.Endpoint) {
		return fmt.Errorf("invalid analytics s3 endpoint URL %q", c.Endpoint)
	}
	return nil
}

func (c Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("backend", c.Backend),
		slog.Group("s3",
			slog.String("bucket_name", c.S3.BucketName),
			slog.String("object_key", c.S3.ObjectKey),
			slog.String("region", c.S3.Region),
			slog.String("access_key", utils.MaskSecret(c.S3.AccessKey)),
			slog.String("secret_key", utils.MaskSecret(c.S3.SecretKey)),
			slog.String("endpoint", c.S3.Endpoint),
		),
		slog.Group("table",
			slog.String("name", c.Table.Name),
			slog.String("db_path", c.Table.DBPath),
		),
	)
}

package blob

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client builds a client for cfg. A custom endpoint switches to
// path-style addressing for minio and other S3 compatibles.
func NewS3Client(ctx context.Context, cfg *S3Config) (*s3.Client, error) {
	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        16,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
			ForceAttemptHTTP2:   true,
		},
		Timeout: 30 * time.Second,
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
		config.WithHTTPClient(httpClient),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// FolderStats summarises the objects under one folder prefix
type FolderStats struct {
	FileCount    int64
	TotalSize    int64
	LastModified time.Time
}

// Lister reads folder statistics from object storage
type Lister interface {
	Stat(ctx context.Context, bucket, folderKey string) (*FolderStats, error)
}

// S3Lister walks a folder with ListObjectsV2. Only keys ending in suffix are
// counted; every object, counted or not, moves LastModified forward.
type S3Lister struct {
	client s3.ListObjectsV2APIClient
	suffix string
}

func NewS3Lister(client s3.ListObjectsV2APIClient, suffix string) *S3Lister {
	return &S3Lister{client: client, suffix: suffix}
}

func (l *S3Lister) Stat(ctx context.Context, bucket, folderKey string) (*FolderStats, error) {
	prefix := strings.TrimSuffix(folderKey, "/") + "/"
	stats := &FolderStats{}

	paginator := s3.NewListObjectsV2Paginator(l.client, &s3.ListObjectsV2Input{
		Bucket: &bucket,
		Prefix: &prefix,
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", bucket, prefix, err)
		}

		for _, obj := range page.Contents {
			if obj.LastModified != nil && obj.LastModified.After(stats.LastModified) {
				stats.LastModified = *obj.LastModified
			}
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, "/") || !strings.HasSuffix(key, l.suffix) {
				continue
			}
			stats.FileCount++
			stats.TotalSize += aws.ToInt64(obj.Size)
		}
	}

	return stats, nil
}

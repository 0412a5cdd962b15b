package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/openmined/foldernotify/internal/server/blob"
)

const (
	s3Attempts   = 3
	s3RetryDelay = 200 * time.Millisecond
)

// s3API is the subset of *s3.Client used by the recorder
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Recorder appends rows to a single CSV object. Every write is conditional
// on the etag that was read, so concurrent appenders never drop each
// other's rows; the loser re-reads and tries again.
type S3Recorder struct {
	client    s3API
	bucket    string
	objectKey string
}

func NewS3Recorder(client s3API, cfg *S3Config) *S3Recorder {
	objectKey := cfg.ObjectKey
	if objectKey == "" {
		objectKey = DefaultObjectKey
	}
	return &S3Recorder{
		client:    client,
		bucket:    cfg.BucketName,
		objectKey: objectKey,
	}
}

func NewS3RecorderWithConfig(ctx context.Context, cfg *S3Config) (*S3Recorder, error) {
	client, err := blob.NewS3Client(ctx, &blob.S3Config{
		Region:    cfg.Region,
		AccessKey: cfg.AccessKey,
		SecretKey: cfg.SecretKey,
		Endpoint:  cfg.Endpoint,
	})
	if err != nil {
		return nil, err
	}
	return NewS3Recorder(client, cfg), nil
}

func (r *S3Recorder) Name() string {
	return BackendS3
}

func (r *S3Recorder) Record(ctx context.Context, c *Completion) error {
	var err error
	for attempt := 1; attempt <= s3Attempts; attempt++ {
		err = r.appendRow(ctx, c)
		if !errors.Is(err, ErrConflict) {
			return err
		}

		slog.Debug("analytics append conflict", "object", r.objectKey, "attempt", attempt)
		if attempt == s3Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s3RetryDelay):
		}
	}
	return fmt.Errorf("append %s after %d attempts: %w", r.objectKey, s3Attempts, err)
}

func (r *S3Recorder) Close() error {
	return nil
}

func (r *S3Recorder) appendRow(ctx context.Context, c *Completion) error {
	existing, etag, err := r.read(ctx)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	buf.Write(existing)
	if len(existing) > 0 && existing[len(existing)-1] != '\n' {
		buf.WriteByte('\n')
	}

	w := csv.NewWriter(&buf)
	if len(existing) == 0 {
		w.Write(csvHeader)
	}
	w.Write(c.row())
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("encode csv: %w", err)
	}

	input := &s3.PutObjectInput{
		Bucket:        &r.bucket,
		Key:           &r.objectKey,
		Body:          bytes.NewReader(buf.Bytes()),
		ContentLength: aws.Int64(int64(buf.Len())),
		ContentType:   aws.String("text/csv"),
	}
	if existing == nil {
		input.IfNoneMatch = aws.String("*")
	} else {
		input.IfMatch = aws.String(etag)
	}

	if _, err := r.client.PutObject(ctx, input); err != nil {
		if isPreconditionFailed(err) {
			return ErrConflict
		}
		return fmt.Errorf("put %s: %w", r.objectKey, err)
	}
	return nil
}

// read returns a nil slice when the object does not exist yet
func (r *S3Recorder) read(ctx context.Context) ([]byte, string, error) {
	resp, err := r.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &r.bucket,
		Key:    &r.objectKey,
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("get %s: %w", r.objectKey, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", r.objectKey, err)
	}
	if data == nil {
		data = []byte{}
	}
	return data, aws.ToString(resp.ETag), nil
}

func isPreconditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "PreconditionFailed", "ConditionalRequestConflict":
			return true
		}
	}
	return false
}

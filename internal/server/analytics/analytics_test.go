package analytics

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/openmined/foldernotify/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 keeps objects in memory and enforces If-Match / If-None-Match
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	etags   map[string]string
	version int

	// beforePut runs once before the next conditional check
	beforePut func()
	getErr    error
	puts      int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, etags: map[string]string{}}
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.getErr != nil {
		return nil, f.getErr
	}
	data, ok := f.objects[*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{
		Body: io.NopCloser(bytes.NewReader(data)),
		ETag: aws.String(f.etags[*in.Key]),
	}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if hook := f.takeHook(); hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++

	current, exists := f.etags[*in.Key]
	if in.IfNoneMatch != nil && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"}
	}
	if in.IfMatch != nil && (!exists || *in.IfMatch != current) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "etag mismatch"}
	}

	data, _ := io.ReadAll(in.Body)
	f.setLocked(*in.Key, data)
	return &s3.PutObjectOutput{ETag: aws.String(f.etags[*in.Key])}, nil
}

func (f *fakeS3) set(key string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setLocked(key, data)
}

func (f *fakeS3) setLocked(key string, data []byte) {
	f.version++
	f.objects[key] = data
	f.etags[key] = fmt.Sprintf(`"v%d"`, f.version)
}

func (f *fakeS3) takeHook() func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	h := f.beforePut
	f.beforePut = nil
	return h
}

func readCSV(t *testing.T, data []byte) [][]string {
	t.Helper()
	rows, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	return rows
}

func completion(key string) *Completion {
	return &Completion{
		FolderKey:     key,
		Bucket:        "uploads",
		FirstSeenTime: "2024-10-20T12:00:00Z",
		RecordedAt:    "2024-10-20T12:00:00.120Z",
		SourceObject:  key + "/a.csv",
		InstanceID:    "abc-1",
	}
}

func TestS3Recorder_CreateThenAppend(t *testing.T) {
	fake := newFakeS3()
	rec := NewS3Recorder(fake, &S3Config{BucketName: "analytics"})
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, completion("test/one")))
	require.NoError(t, rec.Record(ctx, completion("test/two")))

	rows := readCSV(t, fake.objects[DefaultObjectKey])
	require.Len(t, rows, 3)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "test/one", rows[1][0])
	assert.Equal(t, []string{"test/two", "uploads", "2024-10-20T12:00:00Z", "2024-10-20T12:00:00.120Z", "test/two/a.csv", "abc-1"}, rows[2])
}

func TestS3Recorder_AppendsToFileWithoutTrailingNewline(t *testing.T) {
	fake := newFakeS3()
	fake.set("c.csv", []byte("folder_path,bucket,first_notification_time,recorded_at,source_object,instance_id\nold,b,t,r,s,i"))
	rec := NewS3Recorder(fake, &S3Config{BucketName: "analytics", ObjectKey: "c.csv"})

	require.NoError(t, rec.Record(context.Background(), completion("new")))

	rows := readCSV(t, fake.objects["c.csv"])
	require.Len(t, rows, 3)
	assert.Equal(t, "old", rows[1][0])
	assert.Equal(t, "new", rows[2][0])
}

func TestS3Recorder_RetriesOnConflict(t *testing.T) {
	fake := newFakeS3()
	rec := NewS3Recorder(fake, &S3Config{BucketName: "analytics"})
	ctx := context.Background()

	require.NoError(t, rec.Record(ctx, completion("first")))

	// another writer lands between our read and write
	fake.beforePut = func() {
		data := append([]byte{}, fake.objects[DefaultObjectKey]...)
		fake.set(DefaultObjectKey, append(data, []byte("other,b,t,r,s,i\n")...))
	}

	require.NoError(t, rec.Record(ctx, completion("second")))

	rows := readCSV(t, fake.objects[DefaultObjectKey])
	require.Len(t, rows, 4)
	assert.Equal(t, "first", rows[1][0])
	assert.Equal(t, "other", rows[2][0])
	assert.Equal(t, "second", rows[3][0])
}

func TestS3Recorder_GivesUpAfterAttempts(t *testing.T) {
	fake := newFakeS3()
	fake.set(DefaultObjectKey, []byte("h\n"))
	rec := NewS3Recorder(fake, &S3Config{BucketName: "analytics"})

	// every put sees a stale etag
	var hook func()
	hook = func() {
		fake.set(DefaultObjectKey, []byte("h\n"))
		fake.beforePut = hook
	}
	fake.beforePut = hook

	err := rec.Record(context.Background(), completion("x"))
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, s3Attempts, fake.puts)
}

func TestS3Recorder_GetError(t *testing.T) {
	fake := newFakeS3()
	fake.getErr = errors.New("access denied")
	rec := NewS3Recorder(fake, &S3Config{BucketName: "analytics"})

	err := rec.Record(context.Background(), completion("x"))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.Zero(t, fake.puts)
}

func TestTableRecorder(t *testing.T) {
	sqlDB, err := db.NewSqliteDB(db.WithPath(filepath.Join(t.TempDir(), "a.db")))
	require.NoError(t, err)
	defer sqlDB.Close()

	rec, err := NewTableRecorder(sqlDB, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultTableName, rec.name)

	ctx := context.Background()
	require.NoError(t, rec.Record(ctx, completion("test/one")))
	require.NoError(t, rec.Record(ctx, completion("test/one")))

	rows, err := rec.List(ctx, "test/one")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, completion("test/one"), rows[0])

	// shared db stays open
	require.NoError(t, rec.Close())
	require.NoError(t, sqlDB.Ping())
}

func TestTableRecorder_InvalidName(t *testing.T) {
	sqlDB, err := db.NewSqliteDB()
	require.NoError(t, err)
	defer sqlDB.Close()

	_, err = NewTableRecorder(sqlDB, "completions; DROP TABLE x")
	assert.ErrorIs(t, err, ErrInvalidTableName)
}

func TestNew_Backends(t *testing.T) {
	ctx := context.Background()

	rec, err := New(ctx, &Config{}, nil)
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = New(ctx, &Config{Backend: "bigquery"}, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)

	rec, err = New(ctx, &Config{Backend: BackendTable, Table: TableConfig{DBPath: filepath.Join(t.TempDir(), "analytics.db")}}, nil)
	require.NoError(t, err)
	assert.Equal(t, BackendTable, rec.Name())
	require.NoError(t, rec.Close())
}

func TestConfig_Validate(t *testing.T) {
	assert.NoError(t, (&Config{}).Validate())
	assert.NoError(t, (&Config{Backend: BackendTable}).Validate())
	assert.ErrorIs(t, (&Config{Backend: BackendTable, Table: TableConfig{Name: "bad-name"}}).Validate(), ErrInvalidTableName)
	assert.Error(t, (&Config{Backend: BackendS3}).Validate())
	assert.NoError(t, (&Config{Backend: BackendS3, S3: S3Config{BucketName: "b", Region: "us-east-1"}}).Validate())
	assert.Error(t, (&Config{Backend: BackendS3, S3: S3Config{BucketName: "b", Region: "r", AccessKey: "a"}}).Validate())
	assert.ErrorIs(t, (&Config{Backend: "x"}).Validate(), ErrUnknownBackend)
}

package source

import (
	"context"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	sensortesting "github.com/malbeclabs/sensorlake/utils/pkg/testing"
	"github.com/stretchr/testify/require"
)

// fakeS3 serves objects from memory, paging listings pageSize keys at a time.
type fakeS3 struct {
	objects  map[string]string
	pageSize int
	listErr  error
}

func (f *fakeS3) ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var keys []string
	prefix, delim := aws.ToString(in.Prefix), aws.ToString(in.Delimiter)
	for k := range f.objects {
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		// Keys rolled up into a common prefix are not returned as contents.
		if delim != "" && strings.Contains(strings.TrimPrefix(k, prefix), delim) {
			continue
		}
		keys = append(keys, k)
	}
	// Reverse order so the source has to sort.
	slices.Sort(keys)
	slices.Reverse(keys)

	start := 0
	if in.ContinuationToken != nil {
		start, _ = strconv.Atoi(*in.ContinuationToken)
	}
	end := min(start+f.pageSize, len(keys))

	out := &s3.ListObjectsV2Output{IsTruncated: aws.Bool(end < len(keys))}
	for _, k := range keys[start:end] {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	if end < len(keys) {
		out.NextContinuationToken = aws.String(strconv.Itoa(end))
	}
	return out, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	body, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{Message: aws.String("not found")}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(body))}, nil
}

func TestSensorLake_Source_S3Source(t *testing.T) {
	t.Parallel()

	log := sensortesting.NewLogger()

	t.Run("config validation", func(t *testing.T) {
		t.Parallel()

		_, err := NewS3Source(S3SourceConfig{Client: &fakeS3{}, Bucket: "b"})
		require.EqualError(t, err, "logger is required")
		_, err = NewS3Source(S3SourceConfig{Logger: log, Bucket: "b"})
		require.EqualError(t, err, "s3 client is required")
		_, err = NewS3Source(S3SourceConfig{Logger: log, Client: &fakeS3{}})
		require.EqualError(t, err, "bucket is required")
	})

	t.Run("lists across pages, sorts and skips nested keys", func(t *testing.T) {
		t.Parallel()

		client := &fakeS3{pageSize: 2, objects: map[string]string{
			"telemetry/c.csv":      "",
			"telemetry/a.csv":      "",
			"telemetry/b.csv":      "",
			"telemetry/readme":     "",
			"other/d.csv":          "",
			"telemetry/e.csv":      "",
			"telemetry/x.json":     "",
			"telemetry/f.csv":      "",
			"telemetry/sub.csv":    "",
			"telemetry/2024/g.csv": "",
			"telemetry/old/h.csv":  "",
		}}
		src, err := NewS3Source(S3SourceConfig{Logger: log, Client: client, Bucket: "b", Prefix: "telemetry/"})
		require.NoError(t, err)

		keys, err := src.List(context.Background())
		require.NoError(t, err)
		require.Equal(t, []string{
			"telemetry/a.csv", "telemetry/b.csv", "telemetry/c.csv",
			"telemetry/e.csv", "telemetry/f.csv", "telemetry/sub.csv",
		}, keys)
	})

	t.Run("reads an object", func(t *testing.T) {
		t.Parallel()

		client := &fakeS3{pageSize: 10, objects: map[string]string{
			"a.csv": "device_id,timestamp\ndev1,2024-01-01T00:00:00Z\ndev2,NA\n",
		}}
		src, err := NewS3Source(S3SourceConfig{Logger: log, Client: client, Bucket: "b"})
		require.NoError(t, err)

		ds, err := src.Read(context.Background(), "a.csv")
		require.NoError(t, err)
		require.Equal(t, "a.csv", ds.Name)
		require.Equal(t, 2, ds.Len())
		require.True(t, ds.At(1).Get("timestamp").IsAbsent())
	})

	t.Run("errors are read errors", func(t *testing.T) {
		t.Parallel()

		client := &fakeS3{pageSize: 10, listErr: errors.New("access denied"), objects: map[string]string{}}
		src, err := NewS3Source(S3SourceConfig{Logger: log, Client: client, Bucket: "b"})
		require.NoError(t, err)

		_, err = src.List(context.Background())
		var readErr *ReadError
		require.ErrorAs(t, err, &readErr)

		_, err = src.Read(context.Background(), "missing.csv")
		require.ErrorAs(t, err, &readErr)
		require.Equal(t, "s3://b/missing.csv", readErr.Source)
		var noKey *types.NoSuchKey
		require.ErrorAs(t, err, &noKey)
	})
}

package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/record"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	s3.ListObjectsV2APIClient
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

type S3SourceConfig struct {
	Logger *slog.Logger
	Client S3API
	Bucket string
	// Prefix limits listing to keys directly under it, e.g. "telemetry/2024-01-01/".
	Prefix string
}

func (cfg *S3SourceConfig) Validate() error {
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if cfg.Client == nil {
		return errors.New("s3 client is required")
	}
	if cfg.Bucket == "" {
		return errors.New("bucket is required")
	}
	return nil
}

// S3Source reads CSV objects from a bucket. Table names are object keys.
type S3Source struct {
	log *slog.Logger
	cfg S3SourceConfig
}

func NewS3Source(cfg S3SourceConfig) (*S3Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &S3Source{log: cfg.Logger, cfg: cfg}, nil
}

func (s *S3Source) List(ctx context.Context) ([]string, error) {
	// Objects below a nested "/" are skipped, as DirSource skips subdirectories.
	input := &s3.ListObjectsV2Input{Bucket: aws.String(s.cfg.Bucket), Delimiter: aws.String("/")}
	if s.cfg.Prefix != "" {
		input.Prefix = aws.String(s.cfg.Prefix)
	}

	var keys []string
	paginator := s3.NewListObjectsV2Paginator(s.cfg.Client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &ReadError{Source: s.uri(s.cfg.Prefix), Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if strings.HasSuffix(key, Extension) {
				keys = append(keys, key)
			}
		}
	}
	slices.Sort(keys)

	s.log.Debug("source/s3: listed objects", "bucket", s.cfg.Bucket, "prefix", s.cfg.Prefix, "count", len(keys))
	return keys, nil
}

func (s *S3Source) Read(ctx context.Context, key string) (record.Dataset, error) {
	out, err := s.cfg.Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return record.Dataset{}, &ReadError{Source: s.uri(key), Err: err}
	}
	defer out.Body.Close()

	ds, err := ParseCSV(key, out.Body)
	if err != nil {
		return record.Dataset{}, &ReadError{Source: s.uri(key), Err: err}
	}
	return ds, nil
}

func (s *S3Source) uri(key string) string {
	return fmt.Sprintf("s3://%s/%s", s.cfg.Bucket, key)
}

// NewS3Client builds a client from the default AWS credential chain. A non-empty endpoint
// switches to path-style addressing for S3-compatible stores.
func NewS3Client(ctx context.Context, region, endpoint string) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

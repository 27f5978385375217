package config

import (
	"context"
	"errors"
	"log/slog"

	flag "github.com/spf13/pflag"

	"github.com/malbeclabs/sensorlake/pipeline/pkg/source"
)

// SourceConfig selects the input location: a local directory, or an S3 bucket when Bucket is
// set.
type SourceConfig struct {
	Dir        string
	Bucket     string
	Prefix     string
	Region     string
	S3Endpoint string
}

func (c *SourceConfig) BindFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Dir, "input-dir", "data", "directory of source CSV files (or set INPUT_DIR env var)")
	fs.StringVar(&c.Bucket, "s3-bucket", "", "read sources from this S3 bucket instead of --input-dir (or set S3_BUCKET env var)")
	fs.StringVar(&c.Prefix, "s3-prefix", "", "S3 key prefix (or set S3_PREFIX env var)")
	fs.StringVar(&c.Region, "s3-region", "", "S3 region (or set AWS_REGION env var)")
	fs.StringVar(&c.S3Endpoint, "s3-endpoint", "", "custom S3 endpoint for compatible stores (or set S3_ENDPOINT env var)")
}

func (c *SourceConfig) ApplyEnv() {
	envString(&c.Dir, "INPUT_DIR")
	envString(&c.Bucket, "S3_BUCKET")
	envString(&c.Prefix, "S3_PREFIX")
	envString(&c.Region, "AWS_REGION")
	envString(&c.S3Endpoint, "S3_ENDPOINT")
}

func OpenSource(ctx context.Context, log *slog.Logger, cfg SourceConfig) (source.Source, error) {
	if cfg.Bucket == "" {
		if cfg.Dir == "" {
			return nil, errors.New("either --input-dir or --s3-bucket is required")
		}
		return source.NewDirSource(cfg.Dir)
	}
	client, err := source.NewS3Client(ctx, cfg.Region, cfg.S3Endpoint)
	if err != nil {
		return nil, err
	}
	return source.NewS3Source(source.S3SourceConfig{
		Logger: log,
		Client: client,
		Bucket: cfg.Bucket,
		Prefix: cfg.Prefix,
	})
}

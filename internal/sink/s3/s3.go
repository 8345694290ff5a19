// Package s3 stores feed artifacts in Amazon S3 or an S3-compatible store
// such as MinIO or LocalStack.
package s3

import (
	"bytes"
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/facilityfeed/internal/sink"
	"github.com/ajitpratap0/facilityfeed/pkg/errors"
)

const (
	defaultPartSize           = 5 * 1024 * 1024 // 5MB, the S3 minimum
	defaultMultipartThreshold = 16 * 1024 * 1024
)

// Config configures the S3 writer
type Config struct {
	Bucket string
	Region string
	// EndpointURL targets an S3-compatible store. Path-style addressing is
	// used when it is set.
	EndpointURL     string
	AccessKeyID     string
	SecretAccessKey string
	// CheckBucket issues a HeadBucket on construction
	CheckBucket bool
	// Bodies of at least MultipartThreshold bytes go through the multipart
	// uploader.
	MultipartThreshold int64
	PartSize           int64
}

// Writer puts objects into one bucket
type Writer struct {
	client    *s3.Client
	uploader  *manager.Uploader
	bucket    string
	threshold int64
	logger    *zap.Logger
}

// New builds the client from the default AWS credential chain, or from the
// static keys in cfg when given.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Writer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Bucket == "" {
		return nil, errors.New(errors.ErrorTypeConfig, "bucket is required")
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.EndpointURL)
			o.UsePathStyle = true
		}
		// S3-compatible stores do not all accept the flexible checksum headers
		o.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
		o.ResponseChecksumValidation = aws.ResponseChecksumValidationWhenRequired
	})

	partSize := cfg.PartSize
	if partSize < defaultPartSize {
		partSize = defaultPartSize
	}
	threshold := cfg.MultipartThreshold
	if threshold <= 0 {
		threshold = defaultMultipartThreshold
	}

	w := &Writer{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.PartSize = partSize
		}),
		bucket:    cfg.Bucket,
		threshold: threshold,
		logger:    logger.With(zap.String("bucket", cfg.Bucket)),
	}

	if cfg.CheckBucket {
		if err := w.CheckBucket(ctx); err != nil {
			return nil, err
		}
	}

	logger.Info("s3 sink ready",
		zap.String("bucket", cfg.Bucket),
		zap.String("region", cfg.Region),
		zap.String("endpoint", cfg.EndpointURL))
	return w, nil
}

// CheckBucket verifies the bucket exists and is reachable.
func (w *Writer) CheckBucket(ctx context.Context) error {
	if _, err := w.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(w.bucket)}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "bucket is not accessible").
			WithDetail("bucket", w.bucket)
	}
	return nil
}

// Put implements sink.Writer
func (w *Writer) Put(ctx context.Context, key string, body []byte, opts sink.PutOptions) error {
	input := &s3.PutObjectInput{
		Bucket:        aws.String(w.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if opts.ContentEncoding != "" {
		input.ContentEncoding = aws.String(opts.ContentEncoding)
	}

	var err error
	if int64(len(body)) >= w.threshold {
		_, err = w.uploader.Upload(ctx, input)
	} else {
		_, err = w.client.PutObject(ctx, input)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeUpload, "failed to put object").
			WithDetail("bucket", w.bucket).
			WithDetail("key", key)
	}

	w.logger.Debug("object stored", zap.String("key", key), zap.Int("bytes", len(body)))
	return nil
}

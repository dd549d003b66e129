package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"

	"github.com/me/shennong/pkg/model"
)

// S3Config describes the bucket uploads go to.
type S3Config struct {
	Bucket string
	Region string
	// Endpoint overrides the AWS endpoint, for S3-compatible stores.
	// Path-style addressing is used when it is set.
	Endpoint    string
	PartSize    int64
	Concurrency int
	HTTPClient  *http.Client
}

// S3Store is a Store backed by an S3 bucket.
type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	bucket   string
	logger   *slog.Logger
}

// NewS3Store creates an S3Store authenticated with creds.
func NewS3Store(ctx context.Context, cfg S3Config, creds model.TempCredentials, logger *slog.Logger) (*S3Store, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3: bucket name is not configured")
	}
	// Only creds and cfg apply; shared AWS config files and AWS_* variables
	// are not read.
	opts := s3.Options{
		Region: cfg.Region,
		Credentials: credentials.NewStaticCredentialsProvider(
			creds.AccessKeyID, creds.SecretAccessKey, creds.SessionToken,
		),
	}
	if cfg.HTTPClient != nil {
		opts.HTTPClient = cfg.HTTPClient
	}
	if cfg.Endpoint != "" {
		opts.BaseEndpoint = aws.String(cfg.Endpoint)
		opts.UsePathStyle = true
		// S3-compatible stores often reject the default CRC trailers.
		opts.RequestChecksumCalculation = aws.RequestChecksumCalculationWhenRequired
	}
	client := s3.New(opts)

	return &S3Store{
		client: client,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			if cfg.PartSize > 0 {
				u.PartSize = cfg.PartSize
			}
			if cfg.Concurrency > 0 {
				u.Concurrency = cfg.Concurrency
			}
			u.LeavePartsOnError = false
		}),
		bucket: cfg.Bucket,
		logger: logger.With("component", "s3", "bucket", cfg.Bucket),
	}, nil
}

// S3Factory returns a Factory that opens S3Stores for cfg.
func S3Factory(cfg S3Config, logger *slog.Logger) Factory {
	return func(ctx context.Context, creds model.TempCredentials) (Store, error) {
		return NewS3Store(ctx, cfg, creds, logger)
	}
}

// Put uploads body under key. Progress follows the uploader reading the
// body into part buffers, which for a single-part object happens before the
// request is sent, so the full size is only reported once S3 accepts it.
func (s *S3Store) Put(ctx context.Context, key string, body io.Reader, size int64, progress ProgressFunc) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   &progressReader{r: body, total: size, hold: true, fn: progress},
	})
	if err != nil {
		return describe("put", key, err)
	}
	if progress != nil {
		progress(size, size)
	}
	s.logger.Debug("object stored", "key", key, "size", size)
	return nil
}

// Delete removes the object stored under key.
func (s *S3Store) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return describe("delete", key, err)
	}
	s.logger.Debug("object deleted", "key", key)
	return nil
}

func describe(op, key string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("s3 %s %s: %s: %w", op, key, apiErr.ErrorCode(), err)
	}
	return fmt.Errorf("s3 %s %s: %w", op, key, err)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"

	"github.com/prn-tf/stockwarden/internal/config"
)

// s3API is the subset of *s3.Client used by S3Archive.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// S3Archive stores reports in an S3-compatible bucket.
type S3Archive struct {
	client s3API
	bucket string
	prefix string
	logger zerolog.Logger
}

// NewS3Archive builds an S3 client from cfg. Static credentials are used when
// both keys are set; otherwise the default AWS credential chain applies.
func NewS3Archive(ctx context.Context, cfg config.S3StorageConfig, logger zerolog.Logger) (*S3Archive, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	return newS3Archive(client, cfg.Bucket, cfg.Prefix, logger), nil
}

func newS3Archive(client s3API, bucket, prefix string, logger zerolog.Logger) *S3Archive {
	return &S3Archive{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: logger.With().Str("component", "archive").Str("backend", "s3").Str("bucket", bucket).Logger(),
	}
}

func (a *S3Archive) objectKey(key string) (string, error) {
	cleaned, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	return path.Join(a.prefix, cleaned), nil
}

// Put uploads r as a single object.
func (a *S3Archive) Put(ctx context.Context, key string, r io.Reader, size int64) (string, error) {
	objectKey, err := a.objectKey(key)
	if err != nil {
		return "", err
	}

	in := &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(objectKey),
		Body:        r,
		ContentType: aws.String("text/csv"),
	}
	if size >= 0 {
		in.ContentLength = aws.Int64(size)
	}

	if _, err := a.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("failed to upload report: %w", err)
	}

	a.logger.Debug().Str("key", objectKey).Int64("size", size).Msg("report archived")
	return "s3://" + a.bucket + "/" + objectKey, nil
}

// Open downloads the object stored under key.
func (a *S3Archive) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	objectKey, err := a.objectKey(key)
	if err != nil {
		return nil, err
	}

	out, err := a.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to download report: %w", err)
	}
	return out.Body, nil
}

// Exists issues a HEAD request for key.
func (a *S3Archive) Exists(ctx context.Context, key string) (bool, error) {
	objectKey, err := a.objectKey(key)
	if err != nil {
		return false, err
	}

	_, err = a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey),
	})
	if err != nil {
		if isS3NotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat report: %w", err)
	}
	return true, nil
}

// Delete removes key. S3 treats deleting a missing key as success.
func (a *S3Archive) Delete(ctx context.Context, key string) error {
	objectKey, err := a.objectKey(key)
	if err != nil {
		return err
	}

	if _, err := a.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(objectKey),
	}); err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	return errors.As(err, &noSuchKey) || errors.As(err, &notFound)
}

var _ Archive = (*S3Archive)(nil)

package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prn-tf/stockwarden/internal/config"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// TestS3Archive_Integration runs against a live S3-compatible endpoint
// (MinIO, LocalStack) named by STOCKWARDEN_S3_ENDPOINT.
func TestS3Archive_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	endpoint := os.Getenv("STOCKWARDEN_S3_ENDPOINT")
	if endpoint == "" {
		t.Skip("STOCKWARDEN_S3_ENDPOINT not set")
	}

	ctx := context.Background()
	cfg := config.S3StorageConfig{
		Endpoint:        endpoint,
		Region:          getEnv("STOCKWARDEN_S3_REGION", "us-east-1"),
		Bucket:          "stockwarden-test-" + time.Now().Format("20060102150405"),
		Prefix:          "reports/",
		AccessKeyID:     getEnv("STOCKWARDEN_S3_ACCESS_KEY_ID", "minioadmin"),
		SecretAccessKey: getEnv("STOCKWARDEN_S3_SECRET_ACCESS_KEY", "minioadmin"),
		UsePathStyle:    true,
	}

	archive, err := NewS3Archive(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	client, ok := archive.client.(*s3.Client)
	require.True(t, ok)

	_, err = client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(cfg.Bucket)})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(cfg.Bucket)})
	})

	payload := []byte("id,name,category,price,quantity,date,supplier\n")
	key := ReportKey(time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC), "000000-integration", "inventory-report-2026-03-14.csv")

	t.Run("Put", func(t *testing.T) {
		location, err := archive.Put(ctx, key, bytes.NewReader(payload), int64(len(payload)))
		require.NoError(t, err)
		assert.Contains(t, location, cfg.Bucket)
	})

	t.Run("ExistsAndOpen", func(t *testing.T) {
		exists, err := archive.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, exists)

		rc, err := archive.Open(ctx, key)
		require.NoError(t, err)
		defer rc.Close()
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		assert.Equal(t, payload, got)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, archive.Delete(ctx, key))
		exists, err := archive.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, exists)
	})
}

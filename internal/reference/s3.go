package reference

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// S3Downloader fetches ledger snapshots from the upstream export bucket.
type S3Downloader struct {
	client *s3.Client
	bucket string
}

// NewS3Downloader creates a downloader for the given bucket.
func NewS3Downloader(ctx context.Context, bucket, region string) (*S3Downloader, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	return &S3Downloader{
		client: s3.NewFromConfig(cfg),
		bucket: bucket,
	}, nil
}

// Download fetches an object to a temporary file and returns its path.
// The caller removes the file when done with it.
func (d *S3Downloader) Download(ctx context.Context, key string) (string, error) {
	resp, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", fmt.Errorf("getting S3 object %s: %w", key, err)
	}
	defer resp.Body.Close()

	tmpFile, err := os.CreateTemp("", "clover-ledger-*.parquet")
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(tmpFile, resp.Body); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("downloading S3 object %s: %w", key, err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return "", err
	}

	return tmpFile.Name(), nil
}

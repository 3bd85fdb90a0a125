// Package objectstore wraps S3 object storage for uploaded source
// documents, page images, and per-format result artifacts, grounded
// on original_source/worker/s3_client.py's upload/download/key-shape
// methods, translated onto github.com/aws/aws-sdk-go-v2/service/s3.
package objectstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/prismlabs/prism/pkg/config"
)

// ObjectStore is the narrow interface pkg/worker depends on.
type ObjectStore interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) error
	DownloadBytes(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// Client is the production ObjectStore backed by an S3 bucket.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New builds an S3 client from cfg. When cfg.S3EndpointURL is set
// (local MinIO/dev stacks) it overrides the resolved endpoint;
// path-style addressing follows cfg.S3ForcePathStyle whether or not an
// endpoint is set, matching original_source's
// environment-variable-driven client construction.
func New(ctx context.Context, cfg config.Config) (*Client, error) {
	var optFns []func(*awsconfig.LoadOptions) error
	optFns = append(optFns, awsconfig.WithRegion(cfg.S3Region))

	if accessKey := stringEnvOrEmpty("AWS_ACCESS_KEY_ID"); accessKey != "" {
		optFns = append(optFns, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(accessKey, stringEnvOrEmpty("AWS_SECRET_ACCESS_KEY"), ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, optFns...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3EndpointURL != "" {
			o.BaseEndpoint = aws.String(cfg.S3EndpointURL)
		}
		o.UsePathStyle = cfg.S3ForcePathStyle
	})

	return &Client{s3: client, bucket: cfg.S3Bucket}, nil
}

// UploadBytes uploads an in-memory artifact, matching upload_string's
// direct put_object call (no multipart, artifacts here are small
// per-page documents, not multi-GB source files).
func (c *Client) UploadBytes(ctx context.Context, key string, data []byte, contentType string) error {
	_, err := c.s3.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(c.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("uploading s3://%s/%s: %w", c.bucket, key, err)
	}
	return nil
}

// DownloadBytes fetches an object's full body, matching
// download_string.
func (c *Client) DownloadBytes(ctx context.Context, key string) ([]byte, error) {
	out, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("downloading s3://%s/%s: %w", c.bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("reading s3://%s/%s body: %w", c.bucket, key, err)
	}
	return data, nil
}

// Exists reports whether an object is present, matching file_exists's
// head-object pattern. Any HeadObject error, not only a 404, is
// reported as absent (false, nil); the error result is always nil.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	_, err := c.s3.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	return false, nil
}

// Delete removes an object, matching delete_file.
func (c *Client) Delete(ctx context.Context, key string) error {
	_, err := c.s3.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("deleting s3://%s/%s: %w", c.bucket, key, err)
	}
	return nil
}

var _ ObjectStore = (*Client)(nil)

// dateStamp is the YYYY-MM partition used throughout the key-shape
// helpers below, stamped at call time (never cached) so each upload
// lands in the correct month's partition.
func dateStamp(t time.Time) string {
	return t.Format("2006-01")
}

func stringEnvOrEmpty(key string) string {
	return os.Getenv(key)
}

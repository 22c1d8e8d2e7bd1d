package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"plate-service/internal/config"
)

var ErrNotConfigured = errors.New("object storage is not configured")

const snapshotPrefix = "vehicle-images"

type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Client uploads snapshot images to an S3-compatible bucket (AWS, R2, MinIO).
type Client struct {
	api           putter
	bucket        string
	region        string
	endpoint      string
	publicBaseURL string
}

func NewClient(cfg config.StorageConfig) (*Client, error) {
	if cfg.Bucket == "" || cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, ErrNotConfigured
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	awsCfg := aws.Config{
		Region:      region,
		Credentials: credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})

	return &Client{
		api:           api,
		bucket:        cfg.Bucket,
		region:        region,
		endpoint:      endpoint,
		publicBaseURL: cfg.PublicBaseURL,
	}, nil
}

func (c *Client) Upload(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if c == nil || c.api == nil {
		return "", ErrNotConfigured
	}
	if size <= 0 {
		return "", fmt.Errorf("empty file")
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(size),
	}
	if _, err := c.api.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}
	return c.ObjectURL(key), nil
}

// ObjectURL is the address the uploaded object is served from.
func (c *Client) ObjectURL(key string) string {
	trimmedKey := strings.TrimLeft(key, "/")
	switch {
	case c.publicBaseURL != "":
		return fmt.Sprintf("%s/%s", c.publicBaseURL, trimmedKey)
	case c.endpoint != "":
		return fmt.Sprintf("%s/%s/%s", c.endpoint, c.bucket, trimmedKey)
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", c.bucket, c.region, trimmedKey)
	}
}

// SnapshotKey builds the content-addressed key for an image, so re-ingesting
// the same bytes overwrites one object.
func SnapshotKey(sha256Hex, mime string) string {
	return fmt.Sprintf("%s/%s%s", snapshotPrefix, sha256Hex, extensionFor(mime))
}

func extensionFor(mime string) string {
	switch strings.ToLower(strings.TrimSpace(strings.SplitN(mime, ";", 2)[0])) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/bmp":
		return ".bmp"
	default:
		return ".bin"
	}
}

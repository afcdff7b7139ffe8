// Package s3blob archives run artifacts to an S3-compatible object store.
// Standard AWS S3 works with an empty endpoint; MinIO, R2 and similar
// providers are reached through the endpoint and path-style options.
package s3blob

import (
	"context"
	"fmt"
	"net/url"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ClientConfig is the connection surface for the artifact bucket.
type ClientConfig struct {
	// Endpoint overrides the S3 endpoint for compatible providers.
	// Empty means standard AWS S3.
	Endpoint string
	// Region is the bucket region.
	Region string
	// Bucket receives all archived artifacts.
	Bucket string
	// AccessKey and SecretKey are static credentials.
	AccessKey string
	SecretKey string
	// UseSSL picks the scheme when Endpoint has none.
	UseSSL bool
	// ForcePathStyle puts the bucket in the path instead of the subdomain.
	// Many S3-compatible providers require it.
	ForcePathStyle bool
}

// Client holds the SDK client and the artifact bucket name for the archiver.
type Client struct {
	s3     *s3.Client
	bucket string
}

// New builds the S3 client. Bucket and region are mandatory; everything else
// defaults to plain AWS S3 behavior.
func New(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3blob: bucket name is required")
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3blob: region is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("s3blob: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(endpointURL(cfg.Endpoint, cfg.UseSSL))
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})

	return &Client{s3: client, bucket: cfg.Bucket}, nil
}

// Health verifies the artifact bucket is reachable with the configured
// credentials via HeadBucket.
func (c *Client) Health(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(c.bucket),
	})
	if err != nil {
		return fmt.Errorf("s3blob: bucket %s unreachable: %w", c.bucket, err)
	}
	return nil
}

// Close is a no-op; the SDK's HTTP client needs no teardown. Kept so the
// client fits the wiring's closer list.
func (c *Client) Close() error {
	return nil
}

// endpointURL prepends a scheme when the configured endpoint lacks one.
func endpointURL(endpoint string, useSSL bool) string {
	if parsed, err := url.Parse(endpoint); err == nil && parsed.Scheme != "" {
		return endpoint
	}
	if useSSL {
		return "https://" + endpoint
	}
	return "http://" + endpoint
}

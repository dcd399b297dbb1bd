// Package s3 stores feedback objects in an S3-compatible bucket.
package s3

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// Config holds bucket and client settings.
type Config struct {
	Bucket          string
	Region          string
	Endpoint        string // custom endpoint (LocalStack, MinIO); switches to path-style
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string // CDN or website host serving the bucket
	KeyPrefix       string
	ACL             string // canned ACL, e.g. public-read; empty leaves bucket default
}

// putter is the consumer interface for object writes (ISP).
type putter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewClient builds an S3 client from the default AWS chain. Static
// credentials and a custom endpoint override the chain when set.
func NewClient(ctx context.Context, cfg Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Uploader implements usecase/feedback.BlobStore.
type Uploader struct {
	api putter
	cfg Config
}

// NewUploader creates an uploader over api.
func NewUploader(api putter, cfg Config) *Uploader {
	return &Uploader{api: api, cfg: cfg}
}

// Put writes data under KeyPrefix+name and returns the object's public URL.
func (u *Uploader) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	key := u.cfg.KeyPrefix + name

	input := &s3.PutObjectInput{
		Bucket:        aws.String(u.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if u.cfg.ACL != "" {
		input.ACL = types.ObjectCannedACL(u.cfg.ACL)
	}

	if _, err := u.api.PutObject(ctx, input); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w", u.cfg.Bucket, key, err)
	}
	return u.ObjectURL(key), nil
}

// ObjectURL returns the public URL for key.
func (u *Uploader) ObjectURL(key string) string {
	switch {
	case u.cfg.PublicBaseURL != "":
		return strings.TrimRight(u.cfg.PublicBaseURL, "/") + "/" + key
	case u.cfg.Endpoint != "":
		return strings.TrimRight(u.cfg.Endpoint, "/") + "/" + u.cfg.Bucket + "/" + key
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.cfg.Bucket, u.cfg.Region, key)
	}
}

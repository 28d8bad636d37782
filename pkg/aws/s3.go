package aws

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// NewS3Client creates an S3 client. Path-style addressing is forced because
// LocalStack does not serve virtual-hosted buckets.
func NewS3Client(cfg sdkaws.Config) *s3.Client {
	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.UsePathStyle = true
	})
}

// Archiver stores uploaded import files under a bucket prefix.
type Archiver struct {
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

func NewArchiver(client *s3.Client, bucket, prefix string) *Archiver {
	return &Archiver{
		uploader: manager.NewUploader(client),
		bucket:   bucket,
		prefix:   strings.Trim(prefix, "/"),
	}
}

// Key returns the object key used for name.
func (a *Archiver) Key(name string) string {
	if a.prefix == "" {
		return name
	}
	return path.Join(a.prefix, name)
}

// Upload streams body to s3://bucket/prefix/name and returns the object location.
func (a *Archiver) Upload(ctx context.Context, name string, body io.Reader, contentType string) (string, error) {
	key := a.Key(name)
	input := &s3.PutObjectInput{
		Bucket: sdkaws.String(a.bucket),
		Key:    sdkaws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = sdkaws.String(contentType)
	}

	out, err := a.uploader.Upload(ctx, input)
	if err != nil {
		return "", fmt.Errorf("failed to upload s3://%s/%s: %w", a.bucket, key, err)
	}
	return out.Location, nil
}

package fetch

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/modlink-io/modlink/codeobj"
)

// S3API is the subset of the S3 client used by S3Source.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3Source fetches object containers from an S3 bucket. Keys follow
// <prefix>/<module>.mox.
type S3Source struct {
	client S3API
	bucket string
	prefix string
}

// NewS3Source creates a source over the given bucket. prefix may be empty.
func NewS3Source(client S3API, bucket, prefix string) *S3Source {
	return &S3Source{client: client, bucket: bucket, prefix: prefix}
}

// NewS3SourceFromConfig builds an S3 client from the ambient AWS
// configuration (environment, shared config files, instance role) and wraps
// it in a source.
func NewS3SourceFromConfig(ctx context.Context, bucket, prefix string) (*S3Source, error) {
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewS3Source(s3.NewFromConfig(cfg), bucket, prefix), nil
}

// Fetch implements Source.
func (s *S3Source) Fetch(ctx context.Context, module string) ([]byte, string, error) {
	key := path.Join(s.prefix, module+codeobj.Ext)
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, "", fmt.Errorf("fetch s3://%s/%s: %w", s.bucket, key, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, "", fmt.Errorf("fetch s3://%s/%s: %w", s.bucket, key, err)
	}
	return data, fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

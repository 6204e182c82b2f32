// Package storage holds the object storage plumbing shared by the asset and
// municipality sources.
package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// MaxObjectSize caps how much of a single object is read into memory
const MaxObjectSize = 16 << 20

// S3API is the subset of the S3 client the sources use
type S3API interface {
	ListObjectsV2PagesWithContext(ctx aws.Context, input *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, opts ...request.Option) error
	GetObjectWithContext(ctx aws.Context, input *s3.GetObjectInput, opts ...request.Option) (*s3.GetObjectOutput, error)
}

// S3Options configures the client
type S3Options struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// NewS3Client creates an S3 client using the default credential chain
func NewS3Client(opts S3Options) (*s3.S3, error) {
	cfg := &aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(opts.ForcePathStyle),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, fmt.Errorf("create aws session: %w", err)
	}
	return s3.New(sess), nil
}

// ReadObject downloads one object
func ReadObject(ctx context.Context, api S3API, bucket, key string) ([]byte, error) {
	out, err := api.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("get s3://%s/%s: %w", bucket, key, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(io.LimitReader(out.Body, MaxObjectSize+1))
	if err != nil {
		return nil, fmt.Errorf("read s3://%s/%s: %w", bucket, key, err)
	}
	if len(data) > MaxObjectSize {
		return nil, fmt.Errorf("s3://%s/%s exceeds %d bytes", bucket, key, MaxObjectSize)
	}
	return data, nil
}

// ListKeys returns every key under prefix, following continuation tokens
func ListKeys(ctx context.Context, api S3API, bucket, prefix string) ([]string, error) {
	var keys []string
	err := api.ListObjectsV2PagesWithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	}, func(page *s3.ListObjectsV2Output, _ bool) bool {
		for _, obj := range page.Contents {
			if obj.Key != nil {
				keys = append(keys, *obj.Key)
			}
		}
		return true
	})
	if err != nil {
		return nil, fmt.Errorf("list s3://%s/%s: %w", bucket, prefix, err)
	}
	return keys, nil
}

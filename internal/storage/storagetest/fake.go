// Package storagetest provides an in-memory S3 double for tests.
package storagetest

import (
	"bytes"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/s3"
)

// FakeS3 serves objects from memory. Listings are split into pages of
// PageSize keys so pagination paths run.
type FakeS3 struct {
	PageSize int
	ListErr  error

	mu      sync.Mutex
	objects map[string][]byte
	gets    map[string]int
}

// NewFakeS3 creates a fake holding objects
func NewFakeS3(objects map[string][]byte) *FakeS3 {
	if objects == nil {
		objects = map[string][]byte{}
	}
	return &FakeS3{PageSize: 2, objects: objects, gets: map[string]int{}}
}

// Gets returns how many times key was downloaded
func (f *FakeS3) Gets(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets[key]
}

func (f *FakeS3) ListObjectsV2PagesWithContext(_ aws.Context, in *s3.ListObjectsV2Input, fn func(*s3.ListObjectsV2Output, bool) bool, _ ...request.Option) error {
	if f.ListErr != nil {
		return f.ListErr
	}
	prefix := aws.StringValue(in.Prefix)

	f.mu.Lock()
	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	f.mu.Unlock()
	sort.Strings(keys)

	size := f.PageSize
	if size <= 0 {
		size = 1000
	}
	for i := 0; i < len(keys) || i == 0; i += size {
		end := i + size
		if end > len(keys) {
			end = len(keys)
		}
		page := &s3.ListObjectsV2Output{}
		for _, k := range keys[i:end] {
			page.Contents = append(page.Contents, &s3.Object{Key: aws.String(k)})
		}
		if !fn(page, end == len(keys)) || end == len(keys) {
			break
		}
	}
	return nil
}

func (f *FakeS3) GetObjectWithContext(_ aws.Context, in *s3.GetObjectInput, _ ...request.Option) (*s3.GetObjectOutput, error) {
	key := aws.StringValue(in.Key)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets[key]++
	data, ok := f.objects[key]
	if !ok {
		return nil, awserr.New(s3.ErrCodeNoSuchKey, "The specified key does not exist.", nil)
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

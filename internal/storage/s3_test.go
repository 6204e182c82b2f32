package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rezonia/nfse-renderer/internal/storage"
	"github.com/rezonia/nfse-renderer/internal/storage/storagetest"
)

func TestListKeys(t *testing.T) {
	api := storagetest.NewFakeS3(map[string][]byte{
		"logos/a.png": nil,
		"logos/b.png": nil,
		"logos/c.png": nil,
		"other/d.png": nil,
	})

	keys, err := storage.ListKeys(context.Background(), api, "bucket", "logos/")
	require.NoError(t, err)
	assert.Equal(t, []string{"logos/a.png", "logos/b.png", "logos/c.png"}, keys)
}

func TestListKeys_Error(t *testing.T) {
	api := storagetest.NewFakeS3(nil)
	api.ListErr = errors.New("access denied")

	_, err := storage.ListKeys(context.Background(), api, "bucket", "logos/")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestReadObject(t *testing.T) {
	api := storagetest.NewFakeS3(map[string][]byte{"k": []byte("payload")})

	data, err := storage.ReadObject(context.Background(), api, "bucket", "k")
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, 1, api.Gets("k"))

	_, err = storage.ReadObject(context.Background(), api, "bucket", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "s3://bucket/missing")
}

func TestNewS3Client(t *testing.T) {
	client, err := storage.NewS3Client(storage.S3Options{
		Region:         "us-east-1",
		Endpoint:       "http://localhost:9000",
		ForcePathStyle: true,
	})
	require.NoError(t, err)
	assert.NotNil(t, client)
}

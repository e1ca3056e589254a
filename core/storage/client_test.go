package storage_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"modloader/core/storage"
	"modloader/core/storage/mocks"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		cfg := storage.Config{
			Endpoint:  "localhost:9000",
			AccessKey: "testkey",
			SecretKey: "testsecret",
			Bucket:    "modules",
			Region:    "us-east-1",
		}

		client, err := storage.NewClient(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})

	t.Run("EndpointWithHTTPS", func(t *testing.T) {
		cfg := storage.Config{
			Endpoint:  "https://s3.amazonaws.com",
			AccessKey: "testkey",
			SecretKey: "testsecret",
			UseSSL:    true,
		}

		client, err := storage.NewClient(cfg)
		assert.NoError(t, err)
		assert.NotNil(t, client)
	})
}

func TestReadObject(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, "modules", "a.yaml", mock.Anything).
			Return(io.NopCloser(strings.NewReader("id: a")), nil)

		body, err := storage.ReadObject(ctx, client, "modules", "a.yaml")
		require.NoError(t, err)
		assert.Equal(t, "id: a", string(body))
	})

	t.Run("Missing", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, "modules", "b.yaml", mock.Anything).
			Return(nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "missing"})

		_, err := storage.ReadObject(ctx, client, "modules", "b.yaml")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("Failure", func(t *testing.T) {
		client := new(mocks.Client)
		client.On("GetObject", ctx, "modules", "c.yaml", mock.Anything).
			Return(nil, errors.New("timeout"))

		_, err := storage.ReadObject(ctx, client, "modules", "c.yaml")
		assert.ErrorContains(t, err, "timeout")
		assert.NotErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestEnsureBucket(t *testing.T) {
	ctx := context.Background()

	client := new(mocks.Client)
	client.On("BucketExists", ctx, "modules").Return(false, nil).Once()
	client.On("MakeBucket", ctx, "modules", minio.MakeBucketOptions{Region: "eu"}).Return(nil).Once()

	require.NoError(t, storage.EnsureBucket(ctx, client, "modules", "eu"))
	client.AssertExpectations(t)
}

func TestWriteObjectAndListKeys(t *testing.T) {
	ctx := context.Background()
	client := new(mocks.Client)

	client.On("PutObject", ctx, "modules", "a.yaml", mock.Anything, int64(5), mock.Anything).
		Return(minio.UploadInfo{Key: "a.yaml"}, nil)
	require.NoError(t, storage.WriteObject(ctx, client, "modules", "a.yaml", []byte("id: a"), "application/yaml"))

	ch := make(chan minio.ObjectInfo, 2)
	ch <- minio.ObjectInfo{Key: "app/a.yaml"}
	ch <- minio.ObjectInfo{Key: "app/b.yaml"}
	close(ch)
	client.On("ListObjects", ctx, "modules", mock.Anything).Return((<-chan minio.ObjectInfo)(ch))

	keys, err := storage.ListKeys(ctx, client, "modules", "app/")
	require.NoError(t, err)
	assert.Equal(t, []string{"app/a.yaml", "app/b.yaml"}, keys)
}

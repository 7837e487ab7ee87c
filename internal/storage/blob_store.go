package storage

import (
	"bytes"
	"context"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/Itoktsnhc/stat.itok/internal/config"
	apperrors "github.com/Itoktsnhc/stat.itok/internal/errors"
)

// BlobStore archives debug snapshots and poisoned messages to object
// storage for post-hoc diagnosis.
type BlobStore struct {
	client *minio.Client
	bucket string
}

// NewBlobStore connects to object storage and ensures the archive
// bucket exists.
func NewBlobStore(ctx context.Context, cfg *config.BlobConfig) (*BlobStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, apperrors.NewStorageError("connect blob store", err)
	}

	store := &BlobStore{client: client, bucket: cfg.Bucket}

	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, apperrors.NewStorageError("check bucket", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, apperrors.NewStorageError("create bucket", err)
		}
	}

	return store, nil
}

// Put stores one object, overwriting any previous version.
func (s *BlobStore) Put(ctx context.Context, path string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, path,
		bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType},
	)
	if err != nil {
		return apperrors.NewStorageError("put blob", err)
	}
	return nil
}

// Get fetches one object.
func (s *BlobStore) Get(ctx context.Context, path string) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, path, minio.GetObjectOptions{})
	if err != nil {
		return nil, apperrors.NewStorageError("get blob", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, apperrors.NewStorageError("read blob", err)
	}
	return data, nil
}

package storage

import (
	"context"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/sirupsen/logrus"

	"bookclub-catalog/catalog"
)

// MinIOSource serves covers from an S3-compatible bucket.
type MinIOSource struct {
	client     *minio.Client
	bucketName string
}

// NewMinIOSource connects to endpoint and checks that bucketName exists.
func NewMinIOSource(endpoint, accessKey, secretKey, bucketName string, useSSL bool) (*MinIOSource, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	exists, err := client.BucketExists(context.Background(), bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		return nil, fmt.Errorf("cover bucket %s does not exist", bucketName)
	}
	logrus.WithField("bucket", bucketName).Info("cover bucket connected")

	return &MinIOSource{client: client, bucketName: bucketName}, nil
}

// Fetch downloads the named object.
func (m *MinIOSource) Fetch(name string) (*catalog.CoverAsset, error) {
	ctx := context.Background()

	info, err := m.client.StatObject(ctx, m.bucketName, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s", catalog.ErrCoverNotFound, name)
		}
		return nil, fmt.Errorf("failed to stat cover %s: %w", name, err)
	}

	object, err := m.client.GetObject(ctx, m.bucketName, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get cover %s: %w", name, err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		return nil, fmt.Errorf("failed to read cover %s: %w", name, err)
	}

	contentType := info.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = ContentTypeFor(name)
	}
	return &catalog.CoverAsset{Name: name, ContentType: contentType, Data: data}, nil
}

// Package file provides the template sources the generators read static
// layers from: a local directory or a MinIO bucket.
package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/aliskhannn/asset-derivatives/internal/config"
)

// ErrTemplateNotFound is returned when a template does not exist. Callers
// treat it as "layer absent" rather than a failure.
var ErrTemplateNotFound = errors.New("template not found")

// Storage reads templates from an S3-compatible bucket using MinIO.
type Storage struct {
	client     *minio.Client
	bucketName string
}

// NewStorage creates a new Storage connected to the configured MinIO server.
// A missing bucket is created so that an empty deployment simply has no
// templates.
func NewStorage(ctx context.Context, cfg config.Storage) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize minio client: %w", err)
	}

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check if bucket exists: %w", err)
	}

	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return &Storage{
		client:     client,
		bucketName: cfg.BucketName,
	}, nil
}

// Load returns the bytes of the named template object.
func (s *Storage) Load(ctx context.Context, name string) ([]byte, error) {
	objectName := path.Clean("/" + name)[1:]

	if _, err := s.client.StatObject(ctx, s.bucketName, objectName, minio.StatObjectOptions{}); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%s: %w", name, ErrTemplateNotFound)
		}
		return nil, fmt.Errorf("failed to stat template %s: %w", name, err)
	}

	obj, err := s.client.GetObject(ctx, s.bucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", name, err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", name, err)
	}

	return data, nil
}

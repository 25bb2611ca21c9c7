package service

import (
	"bytes"
	"context"
	"path"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rotisserie/eris"

	"github.com/AnTengye/contractlens/config"
)

// MinioService stages uploaded documents in object storage so the remote
// extractor can fetch them through a presigned URL. Staged objects are
// short-lived and deleted once extraction finishes.
type MinioService struct {
	client *minio.Client
	bucket string
	config *config.MinioConfig
}

func NewMinioService(cfg *config.MinioConfig) (*MinioService, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, eris.Wrap(err, "minio: create client")
	}

	return &MinioService{
		client: client,
		bucket: cfg.Bucket,
		config: cfg,
	}, nil
}

// EnsureBucket creates the bucket if it doesn't exist
func (s *MinioService) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return eris.Wrap(err, "minio: check bucket")
	}
	if !exists {
		if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return eris.Wrap(err, "minio: create bucket")
		}
	}
	return nil
}

// StagingObjectName builds the object key for a staged document. Directory
// components in the file name are dropped.
func StagingObjectName(analysisID, fileName string) string {
	base := path.Base(strings.ReplaceAll(fileName, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "document"
	}
	return path.Join("staging", analysisID, base)
}

// Put uploads document bytes under objectName.
func (s *MinioService) Put(ctx context.Context, objectName string, data []byte, contentType string) error {
	_, err := s.client.PutObject(ctx, s.bucket, objectName, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return eris.Wrapf(err, "minio: upload %s", objectName)
	}
	return nil
}

// PresignedURL returns a time-limited GET URL for the object.
func (s *MinioService) PresignedURL(ctx context.Context, objectName string) (string, error) {
	u, err := s.client.PresignedGetObject(ctx, s.bucket, objectName, s.expiry(), nil)
	if err != nil {
		return "", eris.Wrapf(err, "minio: presign %s", objectName)
	}
	return u.String(), nil
}

func (s *MinioService) expiry() time.Duration {
	days := s.config.ExpireDays
	if days <= 0 {
		days = 1
	}
	return time.Duration(days) * 24 * time.Hour
}

// Delete removes a staged object.
func (s *MinioService) Delete(ctx context.Context, objectName string) error {
	if err := s.client.RemoveObject(ctx, s.bucket, objectName, minio.RemoveObjectOptions{}); err != nil {
		return eris.Wrapf(err, "minio: delete %s", objectName)
	}
	return nil
}

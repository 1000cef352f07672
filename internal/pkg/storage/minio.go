// Copyright 2025 Molt Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

type minioStorage struct {
	client   *minio.Client
	bucket   string
	basePath string
}

func newMinio(s *Storage) (IStorage, error) {
	if s.Endpoint == "" {
		return nil, fmt.Errorf("minio endpoint is required")
	}
	client, err := minio.New(s.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(s.AccessKey, s.SecretKey, ""),
		Secure: s.UseTLS,
		Region: s.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}
	return &minioStorage{
		client:   client,
		bucket:   s.Bucket,
		basePath: s.BasePath,
	}, nil
}

func (m *minioStorage) Provider() string {
	return Minio
}

func (m *minioStorage) PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	fullPath := getFullPath(m.basePath, objectName)
	pr := newProgressReader(reader, 0, size, fullPath, "MinIO", nil)
	_, err := m.client.PutObject(ctx, m.bucket, fullPath, pr, size, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    defaultPartSize,
	})
	if err != nil {
		return fmt.Errorf("minio put object %s: %w", fullPath, err)
	}
	return nil
}

func (m *minioStorage) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath := getFullPath(m.basePath, objectName)
	obj, err := m.client.GetObject(ctx, m.bucket, fullPath, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio get object %s: %w", fullPath, err)
	}
	return obj, nil
}

func (m *minioStorage) StatObject(ctx context.Context, objectName string) (*ObjectInfo, error) {
	fullPath := getFullPath(m.basePath, objectName)
	info, err := m.client.StatObject(ctx, m.bucket, fullPath, minio.StatObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("minio stat object %s: %w", fullPath, err)
	}
	return &ObjectInfo{
		Key:          info.Key,
		Size:         info.Size,
		ContentType:  info.ContentType,
		LastModified: info.LastModified,
	}, nil
}

func (m *minioStorage) DeleteObject(ctx context.Context, objectName string) error {
	fullPath := getFullPath(m.basePath, objectName)
	if err := m.client.RemoveObject(ctx, m.bucket, fullPath, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("minio remove object %s: %w", fullPath, err)
	}
	return nil
}

func (m *minioStorage) PresignedGetURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	fullPath := getFullPath(m.basePath, objectName)
	u, err := m.client.PresignedGetObject(ctx, m.bucket, fullPath, expires, nil)
	if err != nil {
		return "", fmt.Errorf("minio presign object %s: %w", fullPath, err)
	}
	return u.String(), nil
}

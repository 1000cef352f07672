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

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

type gcsStorage struct {
	client   *gcs.Client
	bucket   string
	basePath string
}

func newGCS(s *Storage) (IStorage, error) {
	var opts []option.ClientOption
	if s.CredsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(s.CredsJSON)))
	}

	client, err := gcs.NewClient(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &gcsStorage{
		client:   client,
		bucket:   s.Bucket,
		basePath: s.BasePath,
	}, nil
}

func (g *gcsStorage) Provider() string {
	return Gcs
}

func (g *gcsStorage) PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	fullPath := getFullPath(g.basePath, objectName)
	pr := newProgressReader(reader, 0, size, fullPath, "GCS", nil)

	w := g.client.Bucket(g.bucket).Object(fullPath).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := io.Copy(w, pr); err != nil {
		_ = w.Close()
		return fmt.Errorf("gcs put object %s: %w", fullPath, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs put object %s: %w", fullPath, err)
	}
	return nil
}

func (g *gcsStorage) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath := getFullPath(g.basePath, objectName)
	r, err := g.client.Bucket(g.bucket).Object(fullPath).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs get object %s: %w", fullPath, err)
	}
	return r, nil
}

func (g *gcsStorage) StatObject(ctx context.Context, objectName string) (*ObjectInfo, error) {
	fullPath := getFullPath(g.basePath, objectName)
	attrs, err := g.client.Bucket(g.bucket).Object(fullPath).Attrs(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs stat object %s: %w", fullPath, err)
	}
	return &ObjectInfo{
		Key:          attrs.Name,
		Size:         attrs.Size,
		ContentType:  attrs.ContentType,
		LastModified: attrs.Updated,
	}, nil
}

func (g *gcsStorage) DeleteObject(ctx context.Context, objectName string) error {
	fullPath := getFullPath(g.basePath, objectName)
	if err := g.client.Bucket(g.bucket).Object(fullPath).Delete(ctx); err != nil {
		return fmt.Errorf("gcs delete object %s: %w", fullPath, err)
	}
	return nil
}

func (g *gcsStorage) PresignedGetURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	fullPath := getFullPath(g.basePath, objectName)
	u, err := g.client.Bucket(g.bucket).SignedURL(fullPath, &gcs.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expires),
		Scheme:  gcs.SigningSchemeV4,
	})
	if err != nil {
		return "", fmt.Errorf("gcs presign object %s: %w", fullPath, err)
	}
	return u, nil
}

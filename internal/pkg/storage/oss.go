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
	"net/http"
	"strconv"
	"time"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
)

// The OSS SDK carries no context on its calls; cancellation is left to
// the transport timeouts.
type ossStorage struct {
	bucket   *oss.Bucket
	basePath string
}

func newOSS(s *Storage) (IStorage, error) {
	client, err := oss.New(s.Endpoint, s.AccessKey, s.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("create oss client: %w", err)
	}
	bucket, err := client.Bucket(s.Bucket)
	if err != nil {
		return nil, fmt.Errorf("open oss bucket %s: %w", s.Bucket, err)
	}
	return &ossStorage{
		bucket:   bucket,
		basePath: s.BasePath,
	}, nil
}

func (o *ossStorage) Provider() string {
	return Oss
}

func (o *ossStorage) PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	fullPath := getFullPath(o.basePath, objectName)
	pr := newProgressReader(reader, 0, size, fullPath, "OSS", nil)
	if err := o.bucket.PutObject(fullPath, pr, oss.ContentType(contentType)); err != nil {
		return fmt.Errorf("oss put object %s: %w", fullPath, err)
	}
	return nil
}

func (o *ossStorage) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath := getFullPath(o.basePath, objectName)
	body, err := o.bucket.GetObject(fullPath)
	if err != nil {
		return nil, fmt.Errorf("oss get object %s: %w", fullPath, err)
	}
	return body, nil
}

func (o *ossStorage) StatObject(ctx context.Context, objectName string) (*ObjectInfo, error) {
	fullPath := getFullPath(o.basePath, objectName)
	meta, err := o.bucket.GetObjectDetailedMeta(fullPath)
	if err != nil {
		return nil, fmt.Errorf("oss stat object %s: %w", fullPath, err)
	}

	info := &ObjectInfo{
		Key:         fullPath,
		ContentType: meta.Get("Content-Type"),
	}
	if v := meta.Get("Content-Length"); v != "" {
		info.Size, _ = strconv.ParseInt(v, 10, 64)
	}
	if v := meta.Get("Last-Modified"); v != "" {
		info.LastModified, _ = time.Parse(http.TimeFormat, v)
	}
	return info, nil
}

func (o *ossStorage) DeleteObject(ctx context.Context, objectName string) error {
	fullPath := getFullPath(o.basePath, objectName)
	if err := o.bucket.DeleteObject(fullPath); err != nil {
		return fmt.Errorf("oss delete object %s: %w", fullPath, err)
	}
	return nil
}

func (o *ossStorage) PresignedGetURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	fullPath := getFullPath(o.basePath, objectName)
	u, err := o.bucket.SignURL(fullPath, oss.HTTPGet, int64(expires.Seconds()))
	if err != nil {
		return "", fmt.Errorf("oss presign object %s: %w", fullPath, err)
	}
	return u, nil
}

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
	"net/url"
	"time"

	"github.com/tencentyun/cos-go-sdk-v5"
)

type cosStorage struct {
	client    *cos.Client
	secretId  string
	secretKey string
	basePath  string
}

func newCOS(s *Storage) (IStorage, error) {
	u, err := url.Parse(s.BucketURL)
	if err != nil {
		return nil, fmt.Errorf("parse cos bucket url: %w", err)
	}
	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  s.AccessKey,
			SecretKey: s.SecretKey,
		},
	})
	return &cosStorage{
		client:    client,
		secretId:  s.AccessKey,
		secretKey: s.SecretKey,
		basePath:  s.BasePath,
	}, nil
}

func (c *cosStorage) Provider() string {
	return Cos
}

func (c *cosStorage) PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	fullPath := getFullPath(c.basePath, objectName)
	pr := newProgressReader(reader, 0, size, fullPath, "COS", nil)
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{
			ContentType:   contentType,
			ContentLength: size,
		},
	}
	if _, err := c.client.Object.Put(ctx, fullPath, pr, opt); err != nil {
		return fmt.Errorf("cos put object %s: %w", fullPath, err)
	}
	return nil
}

func (c *cosStorage) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath := getFullPath(c.basePath, objectName)
	resp, err := c.client.Object.Get(ctx, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("cos get object %s: %w", fullPath, err)
	}
	return resp.Body, nil
}

func (c *cosStorage) StatObject(ctx context.Context, objectName string) (*ObjectInfo, error) {
	fullPath := getFullPath(c.basePath, objectName)
	resp, err := c.client.Object.Head(ctx, fullPath, nil)
	if err != nil {
		return nil, fmt.Errorf("cos stat object %s: %w", fullPath, err)
	}
	defer resp.Body.Close()

	info := &ObjectInfo{
		Key:         fullPath,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
	}
	if v := resp.Header.Get("Last-Modified"); v != "" {
		info.LastModified, _ = time.Parse(http.TimeFormat, v)
	}
	return info, nil
}

func (c *cosStorage) DeleteObject(ctx context.Context, objectName string) error {
	fullPath := getFullPath(c.basePath, objectName)
	if _, err := c.client.Object.Delete(ctx, fullPath); err != nil {
		return fmt.Errorf("cos delete object %s: %w", fullPath, err)
	}
	return nil
}

func (c *cosStorage) PresignedGetURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	fullPath := getFullPath(c.basePath, objectName)
	u, err := c.client.Object.GetPresignedURL(ctx, http.MethodGet, fullPath, c.secretId, c.secretKey, expires, nil)
	if err != nil {
		return "", fmt.Errorf("cos presign object %s: %w", fullPath, err)
	}
	return u.String(), nil
}

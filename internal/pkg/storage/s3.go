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

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type s3Storage struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	basePath string
}

func newS3(s *Storage) (IStorage, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if s.Region != "" {
		opts = append(opts, awsconfig.WithRegion(s.Region))
	}
	// Empty keys fall through to the default credential chain.
	if s.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			awscreds.NewStaticCredentialsProvider(s.AccessKey, s.SecretKey, "")))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if s.Endpoint != "" {
			// S3-compatible stores want path-style addressing.
			o.BaseEndpoint = aws.String(s.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &s3Storage{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   s.Bucket,
		basePath: s.BasePath,
	}, nil
}

func (g *s3Storage) Provider() string {
	return S3
}

func (g *s3Storage) PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error {
	fullPath := getFullPath(g.basePath, objectName)
	pr := newProgressReader(reader, 0, size, fullPath, "S3", nil)

	input := &s3.PutObjectInput{
		Bucket:      aws.String(g.bucket),
		Key:         aws.String(fullPath),
		Body:        pr,
		ContentType: aws.String(contentType),
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}
	if _, err := g.client.PutObject(ctx, input); err != nil {
		return fmt.Errorf("s3 put object %s: %w", fullPath, err)
	}
	return nil
}

func (g *s3Storage) GetObject(ctx context.Context, objectName string) (io.ReadCloser, error) {
	fullPath := getFullPath(g.basePath, objectName)
	out, err := g.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(fullPath),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 get object %s: %w", fullPath, err)
	}
	return out.Body, nil
}

func (g *s3Storage) StatObject(ctx context.Context, objectName string) (*ObjectInfo, error) {
	fullPath := getFullPath(g.basePath, objectName)
	out, err := g.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(fullPath),
	})
	if err != nil {
		return nil, fmt.Errorf("s3 head object %s: %w", fullPath, err)
	}
	return &ObjectInfo{
		Key:          fullPath,
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (g *s3Storage) DeleteObject(ctx context.Context, objectName string) error {
	fullPath := getFullPath(g.basePath, objectName)
	if _, err := g.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(fullPath),
	}); err != nil {
		return fmt.Errorf("s3 delete object %s: %w", fullPath, err)
	}
	return nil
}

func (g *s3Storage) PresignedGetURL(ctx context.Context, objectName string, expires time.Duration) (string, error) {
	fullPath := getFullPath(g.basePath, objectName)
	req, err := g.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(g.bucket),
		Key:    aws.String(fullPath),
	}, s3.WithPresignExpires(expires))
	if err != nil {
		return "", fmt.Errorf("s3 presign object %s: %w", fullPath, err)
	}
	return req.URL, nil
}

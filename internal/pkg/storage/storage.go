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

// Package storage abstracts the object stores generated documents land
// in. One IStorage per configured provider; artifact rows carry the
// storage id so mixed-provider installs keep working.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	storagemodel "github.com/molthq/molt/internal/engine/model"
	storagerepo "github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/pkg/log"
)

// 存储类型常量
const (
	Minio = "minio"
	S3    = "s3"
	Oss   = "oss"
	Gcs   = "gcs"
	Cos   = "cos"
)

// ObjectInfo 对象元数据
type ObjectInfo struct {
	Key          string
	Size         int64
	ContentType  string
	LastModified time.Time
}

// IStorage is the provider-independent object store surface. Object
// names are given without the configured base path; implementations
// prepend it.
type IStorage interface {
	Provider() string
	PutObject(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	GetObject(ctx context.Context, objectName string) (io.ReadCloser, error)
	StatObject(ctx context.Context, objectName string) (*ObjectInfo, error)
	DeleteObject(ctx context.Context, objectName string) error
	PresignedGetURL(ctx context.Context, objectName string, expires time.Duration) (string, error)
}

// Storage 存储配置结构
type Storage struct {
	Provider  string
	AccessKey string
	SecretKey string
	Endpoint  string
	Bucket    string
	BucketURL string // cos only
	Region    string
	UseTLS    bool
	BasePath  string
	ProjectId string // gcs only
	CredsJSON string // gcs service account key; empty uses ADC
}

// DbProvider 从数据库加载存储配置的提供者
type DbProvider struct {
	storageRepo   storagerepo.IStorageRepository
	storageConfig *storagemodel.StorageConfig
}

const defaultPartSize = 5 * 1024 * 1024 // 5MB

// ProgressReader 统一的进度跟踪 Reader
type ProgressReader struct {
	reader     io.Reader
	uploaded   int64
	total      int64
	fullPath   string
	provider   string // 存储提供商名称（S3, MinIO, OSS, COS, GCS）
	onProgress func(uploaded int64)
}

// newProgressReader 创建新的进度跟踪 Reader
func newProgressReader(reader io.Reader, uploaded, total int64, fullPath, provider string, onProgress func(int64)) *ProgressReader {
	return &ProgressReader{
		reader:     reader,
		uploaded:   uploaded,
		total:      total,
		fullPath:   fullPath,
		provider:   provider,
		onProgress: onProgress,
	}
}

func (pr *ProgressReader) Read(p []byte) (int, error) {
	n, err := pr.reader.Read(p)
	if n > 0 {
		pr.uploaded += int64(n)
		if pr.onProgress != nil {
			pr.onProgress(pr.uploaded)
		}
	}
	return n, err
}

// LogProgress 记录上传进度
func (pr *ProgressReader) LogProgress(progress float64) {
	log.Debugw("upload progress", "provider", pr.provider, "fullPath", pr.fullPath, "progress", progress, "uploaded", pr.uploaded, "total", pr.total)
}

// NewStorage 根据配置创建存储提供者实例
func NewStorage(s *Storage) (IStorage, error) {
	switch s.Provider {
	case Minio:
		return newMinio(s)
	case S3:
		return newS3(s)
	case Oss:
		return newOSS(s)
	case Gcs:
		return newGCS(s)
	case Cos:
		return newCOS(s)
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", s.Provider)
	}
}

// NewFromConfig builds a provider from a stored config row and its
// parsed provider config (repo.ParseStorageConfig output).
func NewFromConfig(storageConfig *storagemodel.StorageConfig, parsed any) (IStorage, error) {
	switch storageConfig.StorageType {
	case storagemodel.StorageTypeMinio:
		config, ok := parsed.(*storagemodel.MinIOConfig)
		if !ok {
			return nil, fmt.Errorf("invalid MinIO config type")
		}
		return NewStorage(&Storage{
			Provider:  Minio,
			Endpoint:  config.Endpoint,
			AccessKey: config.AccessKey,
			SecretKey: config.SecretKey,
			Bucket:    config.Bucket,
			Region:    config.Region,
			UseTLS:    config.UseSSL,
			BasePath:  config.BasePath,
		})
	case storagemodel.StorageTypeS3:
		config, ok := parsed.(*storagemodel.S3Config)
		if !ok {
			return nil, fmt.Errorf("invalid S3 config type")
		}
		return NewStorage(&Storage{
			Provider:  S3,
			Endpoint:  config.Endpoint,
			AccessKey: config.AccessKeyId,
			SecretKey: config.SecretAccessKey,
			Bucket:    config.Bucket,
			Region:    config.Region,
			BasePath:  config.BasePath,
		})
	case storagemodel.StorageTypeOSS:
		config, ok := parsed.(*storagemodel.OSSConfig)
		if !ok {
			return nil, fmt.Errorf("invalid OSS config type")
		}
		return NewStorage(&Storage{
			Provider:  Oss,
			Endpoint:  config.Endpoint,
			AccessKey: config.AccessKeyId,
			SecretKey: config.AccessKeySecret,
			Bucket:    config.Bucket,
			BasePath:  config.BasePath,
		})
	case storagemodel.StorageTypeGCS:
		config, ok := parsed.(*storagemodel.GCSConfig)
		if !ok {
			return nil, fmt.Errorf("invalid GCS config type")
		}
		return NewStorage(&Storage{
			Provider:  Gcs,
			Bucket:    config.Bucket,
			ProjectId: config.ProjectId,
			CredsJSON: config.CredentialsJSON,
			BasePath:  config.BasePath,
		})
	case storagemodel.StorageTypeCOS:
		config, ok := parsed.(*storagemodel.COSConfig)
		if !ok {
			return nil, fmt.Errorf("invalid COS config type")
		}
		return NewStorage(&Storage{
			Provider:  Cos,
			BucketURL: config.BucketURL,
			AccessKey: config.SecretId,
			SecretKey: config.SecretKey,
			BasePath:  config.BasePath,
		})
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageConfig.StorageType)
	}
}

// NewStorageDBProvider creates a storage provider that loads config from database.
func NewStorageDBProvider(ctx context.Context, storageRepo storagerepo.IStorageRepository) (*DbProvider, error) {
	storageConfig, err := storageRepo.GetDefault(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get default storage config: %w", err)
	}

	return &DbProvider{
		storageRepo:   storageRepo,
		storageConfig: storageConfig,
	}, nil
}

// GetStorageProvider 获取存储提供者实例
func (sdp *DbProvider) GetStorageProvider() (IStorage, error) {
	config, err := sdp.storageRepo.ParseStorageConfig(sdp.storageConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse storage config: %w", err)
	}
	return NewFromConfig(sdp.storageConfig, config)
}

// GetStorageProviderByID builds a provider for one stored config row;
// artifact downloads use the storage id recorded on the row.
func (sdp *DbProvider) GetStorageProviderByID(ctx context.Context, storageId string) (IStorage, error) {
	storageConfig, err := sdp.storageRepo.Get(ctx, storageId)
	if err != nil {
		return nil, fmt.Errorf("failed to get storage config by ID %s: %w", storageId, err)
	}
	config, err := sdp.storageRepo.ParseStorageConfig(storageConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to parse storage config: %w", err)
	}
	return NewFromConfig(storageConfig, config)
}

// GetStorageConfig 获取当前存储配置
func (sdp *DbProvider) GetStorageConfig() *storagemodel.StorageConfig {
	return sdp.storageConfig
}

// RefreshStorageConfig refreshes storage config from database.
func (sdp *DbProvider) RefreshStorageConfig(ctx context.Context) error {
	storageConfig, err := sdp.storageRepo.GetDefault(ctx)
	if err != nil {
		return fmt.Errorf("failed to refresh storage config: %w", err)
	}
	sdp.storageConfig = storageConfig
	return nil
}

// GetStorageConfigByID returns storage config by ID.
func (sdp *DbProvider) GetStorageConfigByID(ctx context.Context, storageId string) (*storagemodel.StorageConfig, error) {
	return sdp.storageRepo.Get(ctx, storageId)
}

// GetAllStorageConfigs returns all enabled storage configs.
func (sdp *DbProvider) GetAllStorageConfigs(ctx context.Context) ([]storagemodel.StorageConfig, error) {
	return sdp.storageRepo.ListEnabled(ctx)
}

// SwitchStorageConfig switches to storage config by ID.
func (sdp *DbProvider) SwitchStorageConfig(ctx context.Context, storageId string) error {
	storageConfig, err := sdp.storageRepo.Get(ctx, storageId)
	if err != nil {
		return fmt.Errorf("failed to get storage config by ID %s: %w", storageId, err)
	}

	err = sdp.storageRepo.SetDefault(ctx, storageId)
	if err != nil {
		return fmt.Errorf("failed to set default storage config: %w", err)
	}

	sdp.storageConfig = storageConfig
	return nil
}

// getFullPath 组合 BasePath 和 objectName，返回完整的对象路径
func getFullPath(basePath, objectName string) string {
	if basePath == "" {
		return strings.TrimPrefix(objectName, "/")
	}
	// 清理路径，避免双斜杠
	basePath = strings.Trim(basePath, "/")
	objectName = strings.TrimPrefix(objectName, "/")
	return path.Join(basePath, objectName)
}

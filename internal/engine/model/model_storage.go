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

package model

// StorageConfig 对象存储配置表
// Config holds the provider-specific JSON payload; parsed by the repo
// into the matching provider config struct.
type StorageConfig struct {
	BaseModel
	StorageId   string `gorm:"column:storage_id;type:VARCHAR(64);uniqueIndex" json:"storageId"`
	Name        string `gorm:"column:name;type:VARCHAR(128)" json:"name"`
	StorageType string `gorm:"column:storage_type;type:VARCHAR(32)" json:"storageType"` // minio/s3/oss/gcs/cos
	Config      string `gorm:"column:config;type:JSON" json:"config"`
	Description string `gorm:"column:description;type:TEXT" json:"description"`
	IsDefault   int    `gorm:"column:is_default" json:"isDefault"` // 0: no, 1: yes
	IsEnabled   int    `gorm:"column:is_enabled" json:"isEnabled"` // 0: disabled, 1: enabled
}

func (StorageConfig) TableName() string {
	return "t_storage_configs"
}

const (
	StorageTypeMinio = "minio"
	StorageTypeS3    = "s3"
	StorageTypeOSS   = "oss"
	StorageTypeGCS   = "gcs"
	StorageTypeCOS   = "cos"
)

// MinIOConfig MinIO 存储配置
type MinIOConfig struct {
	Endpoint  string `json:"endpoint"`
	AccessKey string `json:"accessKey"`
	SecretKey string `json:"secretKey"`
	Bucket    string `json:"bucket"`
	UseSSL    bool   `json:"useSSL"`
	Region    string `json:"region,omitempty"`
	BasePath  string `json:"basePath,omitempty"`
}

// S3Config AWS S3 存储配置
type S3Config struct {
	Region          string `json:"region"`
	AccessKeyId     string `json:"accessKeyId"`
	SecretAccessKey string `json:"secretAccessKey"`
	Bucket          string `json:"bucket"`
	Endpoint        string `json:"endpoint,omitempty"` // custom endpoint for S3-compatible stores
	BasePath        string `json:"basePath,omitempty"`
}

// OSSConfig 阿里云 OSS 存储配置
type OSSConfig struct {
	Endpoint        string `json:"endpoint"`
	AccessKeyId     string `json:"accessKeyId"`
	AccessKeySecret string `json:"accessKeySecret"`
	Bucket          string `json:"bucket"`
	BasePath        string `json:"basePath,omitempty"`
}

// GCSConfig Google Cloud Storage 配置
type GCSConfig struct {
	ProjectId       string `json:"projectId"`
	Bucket          string `json:"bucket"`
	CredentialsJSON string `json:"credentialsJson,omitempty"` // service account key; empty uses ADC
	BasePath        string `json:"basePath,omitempty"`
}

// COSConfig 腾讯云 COS 存储配置
type COSConfig struct {
	BucketURL string `json:"bucketUrl"`
	SecretId  string `json:"secretId"`
	SecretKey string `json:"secretKey"`
	BasePath  string `json:"basePath,omitempty"`
}

// Artifact 生成产物元数据
// Object payloads live in object storage; this row is the index entry.
type Artifact struct {
	BaseModel
	ArtifactId  string `gorm:"column:artifact_id;type:VARCHAR(64);uniqueIndex" json:"artifactId"`
	MigrationId string `gorm:"column:migration_id;type:VARCHAR(64);index" json:"migrationId"`
	Step        string `gorm:"column:step;type:VARCHAR(64)" json:"step"`
	Name        string `gorm:"column:name;type:VARCHAR(255)" json:"name"`
	StorageId   string `gorm:"column:storage_id;type:VARCHAR(64)" json:"storageId"`
	ObjectKey   string `gorm:"column:object_key;type:VARCHAR(512)" json:"objectKey"`
	ContentType string `gorm:"column:content_type;type:VARCHAR(128)" json:"contentType"`
	SizeBytes   int64  `gorm:"column:size_bytes;type:BIGINT" json:"sizeBytes"`
}

func (Artifact) TableName() string {
	return "t_artifacts"
}

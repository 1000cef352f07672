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

package repo

import (
	"context"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/pkg/cipher"
	"github.com/molthq/molt/pkg/database"
)

// ICredentialRepository defines credential persistence with context support.
// Values are encrypted before they touch the row and only GetValue decrypts;
// list and get surfaces never carry plaintext.
type ICredentialRepository interface {
	Create(ctx context.Context, credential *model.Credential, plaintext string) error
	Get(ctx context.Context, credentialId string) (*model.Credential, error)
	GetValue(ctx context.Context, credentialId string) (string, error)
	SetValue(ctx context.Context, credentialId, plaintext string) error
	ListByScope(ctx context.Context, scope string) ([]*model.Credential, error)
	Delete(ctx context.Context, credentialId string) error
}

type CredentialRepo struct {
	database.IDatabase
	cipher *cipher.Cipher
}

// NewCredentialRepo creates a credential repository.
func NewCredentialRepo(db database.IDatabase, c *cipher.Cipher) ICredentialRepository {
	return &CredentialRepo{IDatabase: db, cipher: c}
}

// Create encrypts plaintext and creates the credential. The credential id
// is bound into the ciphertext so a row swap cannot reuse another value.
func (cr *CredentialRepo) Create(ctx context.Context, credential *model.Credential, plaintext string) error {
	sealed, err := cr.cipher.Encrypt([]byte(plaintext), []byte(credential.CredentialId))
	if err != nil {
		return err
	}
	credential.Value = sealed
	return cr.Database().WithContext(ctx).Table(credential.TableName()).Create(credential).Error
}

// Get returns credential metadata by credentialId, value omitted.
func (cr *CredentialRepo) Get(ctx context.Context, credentialId string) (*model.Credential, error) {
	var credential model.Credential
	err := cr.Database().WithContext(ctx).Table(credential.TableName()).
		Select("id", "credential_id", "name", "scope", "description", "created_at", "updated_at").
		Where("credential_id = ?", credentialId).
		First(&credential).Error
	return &credential, err
}

// GetValue decrypts and returns the credential value.
func (cr *CredentialRepo) GetValue(ctx context.Context, credentialId string) (string, error) {
	var credential model.Credential
	err := cr.Database().WithContext(ctx).Table(credential.TableName()).
		Select("credential_id", "value").
		Where("credential_id = ?", credentialId).
		First(&credential).Error
	if err != nil {
		return "", err
	}
	plain, err := cr.cipher.Decrypt(credential.Value, []byte(credentialId))
	if err != nil {
		return "", err
	}
	return string(plain), nil
}

// SetValue re-encrypts and replaces the credential value.
func (cr *CredentialRepo) SetValue(ctx context.Context, credentialId, plaintext string) error {
	sealed, err := cr.cipher.Encrypt([]byte(plaintext), []byte(credentialId))
	if err != nil {
		return err
	}
	return cr.Database().WithContext(ctx).Table((&model.Credential{}).TableName()).
		Where("credential_id = ?", credentialId).
		Update("value", sealed).Error
}

// ListByScope lists credential metadata for one backend scope.
func (cr *CredentialRepo) ListByScope(ctx context.Context, scope string) ([]*model.Credential, error) {
	var credentials []*model.Credential
	var credential model.Credential
	err := cr.Database().WithContext(ctx).Table(credential.TableName()).
		Select("id", "credential_id", "name", "scope", "description").
		Where("scope = ?", scope).
		Find(&credentials).Error
	return credentials, err
}

// Delete deletes credential by credentialId.
func (cr *CredentialRepo) Delete(ctx context.Context, credentialId string) error {
	return cr.Database().WithContext(ctx).Table((&model.Credential{}).TableName()).
		Where("credential_id = ?", credentialId).
		Delete(&model.Credential{}).Error
}

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
	"github.com/molthq/molt/pkg/cache"
	"github.com/molthq/molt/pkg/cipher"
	"github.com/molthq/molt/pkg/database"
	"github.com/google/wire"
)

// Repositories aggregates the repository layer for injection.
type Repositories struct {
	Migration  IMigrationRepository
	Result     IResultRepository
	Chat       IChatRepository
	Project    IProjectRepository
	Backend    IAgentBackendRepository
	Credential ICredentialRepository
	Storage    IStorageRepository
	Notify     INotifyRepository
	Artifact   IArtifactRepository
}

// NewRepositories wires every repository onto the shared database and cache.
func NewRepositories(db database.IDatabase, cache cache.ICache, cipher *cipher.Cipher) *Repositories {
	return &Repositories{
		Migration:  NewMigrationRepo(db),
		Result:     NewResultRepo(db),
		Chat:       NewChatRepo(db),
		Project:    NewProjectRepo(db),
		Backend:    NewAgentBackendRepo(db, cache),
		Credential: NewCredentialRepo(db, cipher),
		Storage:    NewStorageRepo(db, cache),
		Notify:     NewNotifyRepo(db),
		Artifact:   NewArtifactRepo(db),
	}
}

// ProvideCipher loads the credential cipher key from the environment.
func ProvideCipher() (*cipher.Cipher, error) {
	return cipher.FromEnv()
}

// ProviderSet provides the repository layer.
var ProviderSet = wire.NewSet(
	ProvideCipher,
	NewRepositories,
)

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

package runner

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/pkg/storage"
	"github.com/molthq/molt/pkg/id"
	"github.com/molthq/molt/pkg/log"
)

// uploadOutputs ships everything the step dropped in the output
// directory to the default object store and indexes each file. Upload
// problems are logged, not turned into step failures; the documents can
// be regenerated with a rerun.
func (r *Runner) uploadOutputs(ctx context.Context, migrationId, step string) {
	dir := r.exec.OutputDir(migrationId)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warnw("read output dir failed", "migrationId", migrationId, "dir", dir, "error", err)
		}
		return
	}
	if len(entries) == 0 {
		return
	}

	storageConfig, err := r.storageRepo.GetDefault(ctx)
	if err != nil {
		log.Warnw("get default storage failed, outputs kept on disk", "migrationId", migrationId, "error", err)
		return
	}
	parsed, err := r.storageRepo.ParseStorageConfig(storageConfig)
	if err != nil {
		log.Warnw("parse storage config failed", "migrationId", migrationId, "error", err)
		return
	}
	provider, err := storage.NewFromConfig(storageConfig, parsed)
	if err != nil {
		log.Warnw("init storage provider failed", "migrationId", migrationId, "error", err)
		return
	}

	uploaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := r.uploadOne(ctx, provider, storageConfig.StorageId, migrationId, step, dir, entry.Name()); err != nil {
			log.Warnw("upload output failed", "migrationId", migrationId, "file", entry.Name(), "error", err)
			continue
		}
		uploaded++
	}
	if uploaded > 0 {
		log.Infow("outputs uploaded", "migrationId", migrationId, "step", step, "count", uploaded)
	}
}

func (r *Runner) uploadOne(ctx context.Context, provider storage.IStorage, storageId, migrationId, step, dir, name string) error {
	path := filepath.Join(dir, name)
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	// Same key layout the engine writes on direct uploads.
	objectKey := fmt.Sprintf("migrations/%s/%s/%s", migrationId, step, name)
	if err := provider.PutObject(ctx, objectKey, f, info.Size(), contentType); err != nil {
		return err
	}

	return r.artifactRepo.Create(ctx, &model.Artifact{
		ArtifactId:  id.GetUild(),
		MigrationId: migrationId,
		Step:        step,
		Name:        name,
		StorageId:   storageId,
		ObjectKey:   objectKey,
		ContentType: contentType,
		SizeBytes:   info.Size(),
	})
}

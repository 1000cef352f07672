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

package router

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/molthq/molt/pkg/http"
	"github.com/molthq/molt/pkg/http/middleware"
)

func (rt *Router) artifactRouter(r fiber.Router) {
	r.Post("/migrations/:migrationId/artifacts", rt.uploadArtifact)
	r.Get("/migrations/:migrationId/artifacts", rt.listArtifacts)
	r.Get("/artifacts/:artifactId/download", rt.downloadArtifact)
	r.Get("/artifacts/:artifactId/presign", rt.presignArtifact)
}

func (rt *Router) uploadArtifact(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "file is required", c.Path())
	}
	step := strings.TrimSpace(c.FormValue("step"))
	if step == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "step is required", c.Path())
	}
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		name = fileHeader.Filename
	}

	f, err := fileHeader.Open()
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	defer f.Close()

	artifact, err := rt.artifactService().UploadArtifact(
		c.Context(), migrationId, step, name,
		fileHeader.Header.Get(fiber.HeaderContentType), fileHeader.Size, f,
	)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, artifact)
	return nil
}

func (rt *Router) listArtifacts(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}
	list, err := rt.artifactService().ListArtifacts(c.Context(), migrationId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"list":  list,
		"total": len(list),
	})
	return nil
}

func (rt *Router) downloadArtifact(c *fiber.Ctx) error {
	artifactId := strings.TrimSpace(c.Params("artifactId"))
	if artifactId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "artifact id is required", c.Path())
	}

	row, rc, err := rt.artifactService().DownloadArtifact(c.Context(), artifactId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}

	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", row.Name))
	if row.ContentType != "" {
		c.Set(fiber.HeaderContentType, row.ContentType)
	}
	if row.SizeBytes > 0 {
		return c.SendStream(rc, int(row.SizeBytes))
	}
	return c.SendStream(rc)
}

func (rt *Router) presignArtifact(c *fiber.Ctx) error {
	artifactId := strings.TrimSpace(c.Params("artifactId"))
	if artifactId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "artifact id is required", c.Path())
	}
	url, err := rt.artifactService().PresignArtifact(c.Context(), artifactId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"url":       url,
		"expiresIn": int(rt.AppConf.Storage.DownloadTTL.Seconds()),
	})
	return nil
}

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
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/molthq/molt/internal/engine/service"
	"github.com/molthq/molt/pkg/http"
	"github.com/molthq/molt/pkg/http/middleware"
)

func (rt *Router) storageRouter(r fiber.Router) {
	storages := r.Group("/storages")
	{
		storages.Post("/", rt.createStorage)
		storages.Get("/", rt.listStorages)
		storages.Get("/:storageId", rt.getStorage)
		storages.Put("/:storageId", rt.updateStorage)
		storages.Delete("/:storageId", rt.deleteStorage)
		storages.Post("/:storageId/default", rt.setDefaultStorage)
	}
}

func (rt *Router) createStorage(c *fiber.Ctx) error {
	var req service.CreateStorageReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "storage name is required", c.Path())
	}

	row, err := rt.storageService().CreateStorage(c.Context(), &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, row)
	return nil
}

func (rt *Router) listStorages(c *fiber.Ctx) error {
	list, err := rt.storageService().ListStorages(c.Context())
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"list":  list,
		"total": len(list),
	})
	return nil
}

func (rt *Router) getStorage(c *fiber.Ctx) error {
	storageId := strings.TrimSpace(c.Params("storageId"))
	if storageId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "storage id is required", c.Path())
	}
	row, err := rt.storageService().GetStorage(c.Context(), storageId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, row)
	return nil
}

func (rt *Router) updateStorage(c *fiber.Ctx) error {
	storageId := strings.TrimSpace(c.Params("storageId"))
	if storageId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "storage id is required", c.Path())
	}

	var req service.UpdateStorageReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	row, err := rt.storageService().UpdateStorage(c.Context(), storageId, &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, row)
	return nil
}

func (rt *Router) deleteStorage(c *fiber.Ctx) error {
	storageId := strings.TrimSpace(c.Params("storageId"))
	if storageId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "storage id is required", c.Path())
	}
	if err := rt.storageService().DeleteStorage(c.Context(), storageId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, storageId)
	return nil
}

func (rt *Router) setDefaultStorage(c *fiber.Ctx) error {
	storageId := strings.TrimSpace(c.Params("storageId"))
	if storageId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "storage id is required", c.Path())
	}
	if err := rt.storageService().SetDefaultStorage(c.Context(), storageId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, storageId)
	return nil
}

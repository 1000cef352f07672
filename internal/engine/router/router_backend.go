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

func (rt *Router) backendRouter(r fiber.Router) {
	backends := r.Group("/backends")
	{
		backends.Post("/", rt.registerBackend)
		backends.Get("/", rt.listBackends)
		backends.Get("/statistics", rt.backendStatistics)
		backends.Get("/:backendId", rt.getBackend)
		backends.Put("/:backendId", rt.updateBackend)
		backends.Delete("/:backendId", rt.deleteBackend)
		backends.Post("/:backendId/heartbeat", rt.backendHeartbeat)

		backends.Post("/:backendId/credentials", rt.createCredential)
		backends.Get("/:backendId/credentials", rt.listCredentials)
	}
	r.Delete("/credentials/:credentialId", rt.deleteCredential)
}

func (rt *Router) registerBackend(c *fiber.Ctx) error {
	var req service.RegisterBackendReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "backend name is required", c.Path())
	}

	backend, err := rt.backendService().RegisterBackend(c.Context(), &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, backend)
	return nil
}

func (rt *Router) listBackends(c *fiber.Ctx) error {
	list, total, err := rt.backendService().ListBackends(
		c.Context(),
		rt.Http.QueryInt(c, "page"),
		rt.Http.QueryInt(c, "pageSize"),
	)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"list":  list,
		"total": total,
	})
	return nil
}

func (rt *Router) backendStatistics(c *fiber.Ctx) error {
	stats, err := rt.backendService().Statistics(c.Context())
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, stats)
	return nil
}

func (rt *Router) getBackend(c *fiber.Ctx) error {
	backendId := strings.TrimSpace(c.Params("backendId"))
	if backendId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "backend id is required", c.Path())
	}
	backend, err := rt.backendService().GetBackend(c.Context(), backendId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, backend)
	return nil
}

func (rt *Router) updateBackend(c *fiber.Ctx) error {
	backendId := strings.TrimSpace(c.Params("backendId"))
	if backendId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "backend id is required", c.Path())
	}

	var req service.UpdateBackendReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	backend, err := rt.backendService().UpdateBackend(c.Context(), backendId, &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, backend)
	return nil
}

func (rt *Router) deleteBackend(c *fiber.Ctx) error {
	backendId := strings.TrimSpace(c.Params("backendId"))
	if backendId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "backend id is required", c.Path())
	}
	if err := rt.backendService().DeleteBackend(c.Context(), backendId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, backendId)
	return nil
}

func (rt *Router) backendHeartbeat(c *fiber.Ctx) error {
	backendId := strings.TrimSpace(c.Params("backendId"))
	if backendId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "backend id is required", c.Path())
	}
	if err := rt.backendService().Heartbeat(c.Context(), backendId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, backendId)
	return nil
}

func (rt *Router) createCredential(c *fiber.Ctx) error {
	backendId := strings.TrimSpace(c.Params("backendId"))
	if backendId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "backend id is required", c.Path())
	}

	var req service.CreateCredentialReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	credential, err := rt.backendService().CreateCredential(c.Context(), backendId, &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, credential)
	return nil
}

func (rt *Router) listCredentials(c *fiber.Ctx) error {
	backendId := strings.TrimSpace(c.Params("backendId"))
	if backendId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "backend id is required", c.Path())
	}
	list, err := rt.backendService().ListCredentials(c.Context(), backendId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"list":  list,
		"total": len(list),
	})
	return nil
}

func (rt *Router) deleteCredential(c *fiber.Ctx) error {
	credentialId := strings.TrimSpace(c.Params("credentialId"))
	if credentialId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "credential id is required", c.Path())
	}
	if err := rt.backendService().DeleteCredential(c.Context(), credentialId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, credentialId)
	return nil
}

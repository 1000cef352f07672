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

func (rt *Router) projectRouter(r fiber.Router) {
	projects := r.Group("/projects")
	{
		projects.Post("/", rt.createProject)
		projects.Get("/", rt.listProjects)
		projects.Get("/:projectId", rt.getProject)
		projects.Put("/:projectId", rt.updateProject)
		projects.Delete("/:projectId", rt.disableProject)
	}
}

func (rt *Router) createProject(c *fiber.Ctx) error {
	var req service.CreateProjectReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "project name is required", c.Path())
	}

	project, err := rt.projectService().CreateProject(c.Context(), &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, project)
	return nil
}

func (rt *Router) listProjects(c *fiber.Ctx) error {
	list, total, err := rt.projectService().ListProjects(
		c.Context(),
		rt.Http.QueryInt(c, "page"),
		rt.Http.QueryInt(c, "pageSize"),
		strings.TrimSpace(c.Query("name")),
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

func (rt *Router) getProject(c *fiber.Ctx) error {
	projectId := strings.TrimSpace(c.Params("projectId"))
	if projectId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "project id is required", c.Path())
	}
	project, err := rt.projectService().GetProject(c.Context(), projectId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, project)
	return nil
}

func (rt *Router) updateProject(c *fiber.Ctx) error {
	projectId := strings.TrimSpace(c.Params("projectId"))
	if projectId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "project id is required", c.Path())
	}

	var req service.UpdateProjectReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	project, err := rt.projectService().UpdateProject(c.Context(), projectId, &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, project)
	return nil
}

func (rt *Router) disableProject(c *fiber.Ctx) error {
	projectId := strings.TrimSpace(c.Params("projectId"))
	if projectId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "project id is required", c.Path())
	}
	if _, err := rt.projectService().DisableProject(c.Context(), projectId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, projectId)
	return nil
}

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
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/repo"
	"github.com/molthq/molt/internal/engine/service"
	"github.com/molthq/molt/pkg/http"
	"github.com/molthq/molt/pkg/http/middleware"
)

func (rt *Router) migrationRouter(r fiber.Router) {
	projects := r.Group("/projects/:projectId/migrations")
	{
		projects.Post("/", rt.createMigration)
		projects.Get("/", rt.listMigrations)
		projects.Post("/:migrationId/select", rt.selectMigration)
		projects.Get("/active/view", rt.activeView)
	}

	migrations := r.Group("/migrations")
	{
		migrations.Get("/:migrationId", rt.getMigration)

		migrations.Post("/:migrationId/start", rt.startMigration)
		migrations.Post("/:migrationId/stop", rt.stopMigration)
		migrations.Post("/:migrationId/resume", rt.resumeMigration)
		migrations.Post("/:migrationId/delete", rt.deleteMigration)
		migrations.Post("/:migrationId/steps/:step/rerun", rt.rerunStep)

		migrations.Put("/:migrationId/agents/default", rt.setDefaultAgent)
		migrations.Put("/:migrationId/agents/steps/:step", rt.setStepAgent)
		migrations.Delete("/:migrationId/agents/steps/:step", rt.removeStepAgent)
		migrations.Put("/:migrationId/ignore-steps", rt.setIgnoreSteps)
		migrations.Put("/:migrationId/start-from", rt.setStartFrom)
		migrations.Put("/:migrationId/execute-only", rt.setExecuteOnly)

		migrations.Get("/:migrationId/chat", rt.listChatMessages)
		migrations.Post("/:migrationId/chat", rt.appendChatMessage)
	}
}

func (rt *Router) createMigration(c *fiber.Ctx) error {
	projectId := strings.TrimSpace(c.Params("projectId"))
	if projectId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "project id is required", c.Path())
	}

	var req service.CreateMigrationReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration name is required", c.Path())
	}

	detail, err := rt.migrationService().CreateMigration(c.Context(), projectId, &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}

	c.Locals(middleware.DETAIL, detail)
	return nil
}

func (rt *Router) listMigrations(c *fiber.Ctx) error {
	projectId := strings.TrimSpace(c.Params("projectId"))
	if projectId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "project id is required", c.Path())
	}

	query := &repo.MigrationQuery{
		ProjectId: projectId,
		Name:      strings.TrimSpace(c.Query("name")),
		Action:    strings.TrimSpace(c.Query("action")),
		Page:      rt.Http.QueryInt(c, "page"),
		PageSize:  rt.Http.QueryInt(c, "pageSize"),
	}
	list, total, err := rt.migrationService().ListMigrations(c.Context(), query)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}

	c.Locals(middleware.DETAIL, map[string]any{
		"list":  list,
		"total": total,
	})
	return nil
}

func (rt *Router) getMigration(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}
	detail, err := rt.migrationService().GetMigration(c.Context(), migrationId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, detail)
	return nil
}

// migrationCommand runs one of the record commands and reports the id back.
func (rt *Router) migrationCommand(c *fiber.Ctx, run func(migrationId string) error) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}
	if err := run(migrationId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, migrationId)
	return nil
}

func (rt *Router) startMigration(c *fiber.Ctx) error {
	return rt.migrationCommand(c, func(migrationId string) error {
		return rt.migrationService().Start(c.Context(), migrationId)
	})
}

func (rt *Router) stopMigration(c *fiber.Ctx) error {
	return rt.migrationCommand(c, func(migrationId string) error {
		return rt.migrationService().Stop(c.Context(), migrationId)
	})
}

func (rt *Router) resumeMigration(c *fiber.Ctx) error {
	return rt.migrationCommand(c, func(migrationId string) error {
		return rt.migrationService().Resume(c.Context(), migrationId)
	})
}

func (rt *Router) deleteMigration(c *fiber.Ctx) error {
	return rt.migrationCommand(c, func(migrationId string) error {
		return rt.migrationService().Delete(c.Context(), migrationId)
	})
}

func (rt *Router) rerunStep(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	step := strings.TrimSpace(c.Params("step"))
	if migrationId == "" || step == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id and step are required", c.Path())
	}
	if err := rt.migrationService().RerunStep(c.Context(), migrationId, step); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, migrationId)
	return nil
}

func (rt *Router) setDefaultAgent(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}

	var req model.StepAgentConfig
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	if err := rt.migrationService().SetDefaultAgent(c.Context(), migrationId, req); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, migrationId)
	return nil
}

func (rt *Router) setStepAgent(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	step := strings.TrimSpace(c.Params("step"))
	if migrationId == "" || step == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id and step are required", c.Path())
	}

	var req model.StepAgentConfig
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	if err := rt.migrationService().SetStepAgent(c.Context(), migrationId, step, req); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, migrationId)
	return nil
}

func (rt *Router) removeStepAgent(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	step := strings.TrimSpace(c.Params("step"))
	if migrationId == "" || step == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id and step are required", c.Path())
	}
	if err := rt.migrationService().RemoveStepAgent(c.Context(), migrationId, step); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, migrationId)
	return nil
}

func (rt *Router) setIgnoreSteps(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}

	var req struct {
		Steps []string `json:"steps"`
	}
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	if err := rt.migrationService().SetIgnoreSteps(c.Context(), migrationId, req.Steps); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, migrationId)
	return nil
}

func (rt *Router) setStartFrom(c *fiber.Ctx) error {
	return rt.setStepPin(c, rt.migrationService().SetStartFrom)
}

func (rt *Router) setExecuteOnly(c *fiber.Ctx) error {
	return rt.setStepPin(c, rt.migrationService().SetExecuteOnly)
}

// setStepPin handles the two step-pin fields. An empty step clears the pin.
func (rt *Router) setStepPin(c *fiber.Ctx, set func(ctx context.Context, migrationId, step string) error) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}

	var req struct {
		Step string `json:"step"`
	}
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	if err := set(c.Context(), migrationId, strings.TrimSpace(req.Step)); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, migrationId)
	return nil
}

func (rt *Router) selectMigration(c *fiber.Ctx) error {
	projectId := strings.TrimSpace(c.Params("projectId"))
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if projectId == "" || migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "project id and migration id are required", c.Path())
	}
	view, err := rt.Sync.Select(c.Context(), projectId, migrationId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, view)
	return nil
}

func (rt *Router) activeView(c *fiber.Ctx) error {
	projectId := strings.TrimSpace(c.Params("projectId"))
	if projectId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "project id is required", c.Path())
	}
	view, err := rt.Sync.GetView(c.Context(), projectId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, view)
	return nil
}

func (rt *Router) listChatMessages(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}
	messages, err := rt.chatService().ListMessages(c.Context(), migrationId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"list":  messages,
		"total": len(messages),
	})
	return nil
}

func (rt *Router) appendChatMessage(c *fiber.Ctx) error {
	migrationId := strings.TrimSpace(c.Params("migrationId"))
	if migrationId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "migration id is required", c.Path())
	}

	var req struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	msg, err := rt.chatService().AppendMessage(c.Context(), migrationId, req.Role, req.Content)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, msg)
	return nil
}

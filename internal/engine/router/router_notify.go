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

	"github.com/molthq/molt/internal/engine/model"
	"github.com/molthq/molt/internal/engine/service"
	"github.com/molthq/molt/pkg/http"
	"github.com/molthq/molt/pkg/http/middleware"
)

func (rt *Router) notifyRouter(r fiber.Router) {
	notify := r.Group("/notify")
	{
		notify.Post("/channels", rt.createNotifyChannel)
		notify.Get("/channels", rt.listNotifyChannels)
		notify.Get("/channels/:channelId", rt.getNotifyChannel)
		notify.Delete("/channels/:channelId", rt.disableNotifyChannel)

		notify.Post("/rules", rt.createNotifyRule)
		notify.Get("/rules", rt.listNotifyRules)
		notify.Put("/rules/:ruleId", rt.updateNotifyRule)
		notify.Delete("/rules/:ruleId", rt.deleteNotifyRule)

		notify.Post("/templates", rt.createNotifyTemplate)
		notify.Get("/templates", rt.listNotifyTemplates)
		notify.Get("/templates/:templateId", rt.getNotifyTemplate)
		notify.Put("/templates/:templateId", rt.updateNotifyTemplate)
		notify.Delete("/templates/:templateId", rt.deleteNotifyTemplate)
	}
}

func (rt *Router) createNotifyChannel(c *fiber.Ctx) error {
	var req service.CreateChannelReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	ch, err := rt.notifyService().CreateChannel(c.Context(), &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, ch)
	return nil
}

func (rt *Router) listNotifyChannels(c *fiber.Ctx) error {
	list, err := rt.notifyService().ListChannels(c.Context())
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"list":  list,
		"total": len(list),
	})
	return nil
}

func (rt *Router) getNotifyChannel(c *fiber.Ctx) error {
	channelId := strings.TrimSpace(c.Params("channelId"))
	if channelId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "channel id is required", c.Path())
	}
	ch, err := rt.notifyService().GetChannel(c.Context(), channelId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, ch)
	return nil
}

func (rt *Router) disableNotifyChannel(c *fiber.Ctx) error {
	channelId := strings.TrimSpace(c.Params("channelId"))
	if channelId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "channel id is required", c.Path())
	}
	if err := rt.notifyService().DisableChannel(c.Context(), channelId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, channelId)
	return nil
}

func (rt *Router) createNotifyRule(c *fiber.Ctx) error {
	var req service.CreateRuleReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	rule, err := rt.notifyService().CreateRule(c.Context(), &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, rule)
	return nil
}

func (rt *Router) listNotifyRules(c *fiber.Ctx) error {
	list, err := rt.notifyService().ListRules(c.Context(), strings.TrimSpace(c.Query("projectId")))
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"list":  list,
		"total": len(list),
	})
	return nil
}

func (rt *Router) updateNotifyRule(c *fiber.Ctx) error {
	ruleId := strings.TrimSpace(c.Params("ruleId"))
	if ruleId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "rule id is required", c.Path())
	}

	var rule model.NotifyRule
	if err := c.BodyParser(&rule); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	rule.RuleId = ruleId
	updated, err := rt.notifyService().UpdateRule(c.Context(), &rule)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, updated)
	return nil
}

func (rt *Router) deleteNotifyRule(c *fiber.Ctx) error {
	ruleId := strings.TrimSpace(c.Params("ruleId"))
	if ruleId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "rule id is required", c.Path())
	}
	if err := rt.notifyService().DeleteRule(c.Context(), ruleId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, ruleId)
	return nil
}

func (rt *Router) createNotifyTemplate(c *fiber.Ctx) error {
	var req service.CreateTemplateReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	tmpl, err := rt.notifyService().CreateTemplate(c.Context(), &req)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, tmpl)
	return nil
}

func (rt *Router) listNotifyTemplates(c *fiber.Ctx) error {
	list, err := rt.notifyService().ListTemplates(c.Context())
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, map[string]any{
		"list":  list,
		"total": len(list),
	})
	return nil
}

func (rt *Router) getNotifyTemplate(c *fiber.Ctx) error {
	templateId := strings.TrimSpace(c.Params("templateId"))
	if templateId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "template id is required", c.Path())
	}
	tmpl, err := rt.notifyService().GetTemplate(c.Context(), templateId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, tmpl)
	return nil
}

func (rt *Router) updateNotifyTemplate(c *fiber.Ctx) error {
	templateId := strings.TrimSpace(c.Params("templateId"))
	if templateId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "template id is required", c.Path())
	}

	var tmpl model.NotifyTemplate
	if err := c.BodyParser(&tmpl); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	tmpl.TemplateId = templateId
	updated, err := rt.notifyService().UpdateTemplate(c.Context(), &tmpl)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, updated)
	return nil
}

func (rt *Router) deleteNotifyTemplate(c *fiber.Ctx) error {
	templateId := strings.TrimSpace(c.Params("templateId"))
	if templateId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "template id is required", c.Path())
	}
	if err := rt.notifyService().DeleteTemplate(c.Context(), templateId); err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.OPERATION, templateId)
	return nil
}

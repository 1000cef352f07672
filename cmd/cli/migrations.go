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

package main

import (
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

var (
	projectId  string
	nameFilter string
	actionFilt string
	page       int
	pageSize   int
)

var migrationsCmd = &cobra.Command{
	Use:     "migrations",
	Short:   "Inspect and drive migration records",
	Aliases: []string{"migration"},
}

var migrationsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List migration records in a project",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := decode(apiClient().R().
			SetQueryParam("name", nameFilter).
			SetQueryParam("action", actionFilt).
			SetQueryParam("page", strconv.Itoa(page)).
			SetQueryParam("pageSize", strconv.Itoa(pageSize)).
			Get("/api/v1/projects/" + url.PathEscape(projectId) + "/migrations"))
		if err != nil {
			return err
		}
		return printDetail(cmd, detail)
	},
}

var migrationsGetCmd = &cobra.Command{
	Use:   "get <migration-id>",
	Short: "Show one migration record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := decode(apiClient().R().
			Get("/api/v1/migrations/" + url.PathEscape(args[0])))
		if err != nil {
			return err
		}
		return printDetail(cmd, detail)
	},
}

// migrationCommand posts one of the record commands and prints the ack.
func migrationCommand(use, short, action string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			detail, err := decode(apiClient().R().
				Post("/api/v1/migrations/" + url.PathEscape(args[0]) + "/" + action))
			if err != nil {
				return err
			}
			return printDetail(cmd, detail)
		},
	}
}

var migrationsRerunCmd = &cobra.Command{
	Use:   "rerun <migration-id> <step>",
	Short: "Queue a single step for re-execution",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := decode(apiClient().R().
			Post("/api/v1/migrations/" + url.PathEscape(args[0]) + "/steps/" + url.PathEscape(args[1]) + "/rerun"))
		if err != nil {
			return err
		}
		return printDetail(cmd, detail)
	},
}

var migrationsSelectCmd = &cobra.Command{
	Use:   "select <migration-id>",
	Short: "Make a migration the project's active record",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := decode(apiClient().R().
			Post("/api/v1/projects/" + url.PathEscape(projectId) + "/migrations/" + url.PathEscape(args[0]) + "/select"))
		if err != nil {
			return err
		}
		return printDetail(cmd, detail)
	},
}

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Show the aggregated live view of the project's active migration",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		detail, err := decode(apiClient().R().
			Get("/api/v1/projects/" + url.PathEscape(projectId) + "/migrations/active/view"))
		if err != nil {
			return err
		}
		return printDetail(cmd, detail)
	},
}

func init() {
	migrationsListCmd.Flags().StringVarP(&projectId, "project", "p", "", "project id")
	migrationsListCmd.Flags().StringVar(&nameFilter, "name", "", "filter by name substring")
	migrationsListCmd.Flags().StringVar(&actionFilt, "action", "", "filter by action")
	migrationsListCmd.Flags().IntVar(&page, "page", 1, "page number")
	migrationsListCmd.Flags().IntVar(&pageSize, "page-size", 20, "page size")
	_ = migrationsListCmd.MarkFlagRequired("project")

	migrationsSelectCmd.Flags().StringVarP(&projectId, "project", "p", "", "project id")
	_ = migrationsSelectCmd.MarkFlagRequired("project")

	viewCmd.Flags().StringVarP(&projectId, "project", "p", "", "project id")
	_ = viewCmd.MarkFlagRequired("project")

	migrationsCmd.AddCommand(migrationsListCmd)
	migrationsCmd.AddCommand(migrationsGetCmd)
	migrationsCmd.AddCommand(migrationCommand("start <migration-id>", "Start a migration run", "start"))
	migrationsCmd.AddCommand(migrationCommand("stop <migration-id>", "Stop a running migration at the next step boundary", "stop"))
	migrationsCmd.AddCommand(migrationCommand("resume <migration-id>", "Resume a stopped migration from its recorded step", "resume"))
	migrationsCmd.AddCommand(migrationsRerunCmd)
	migrationsCmd.AddCommand(migrationsSelectCmd)
}

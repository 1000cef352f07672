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
	"github.com/molthq/molt/pkg/version"
	"github.com/spf13/cobra"
)

var (
	endpoint string
	output   string
)

var rootCmd = &cobra.Command{
	Use:   "molt-cli",
	Short: "molt cli is a command line tool for the molt engine",
	Long:  "molt cli is a command line tool for the molt engine",
	Run: func(cmd *cobra.Command, args []string) {
		err := cmd.Help()
		if err != nil {
			return
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&endpoint, "endpoint", "", "engine endpoint, defaults to $MOLT_ENDPOINT or http://127.0.0.1:8080")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "json", "output format, one of: json, yaml")
	rootCmd.AddCommand(version.VersionCmd)
	rootCmd.AddCommand(migrationsCmd)
	rootCmd.AddCommand(viewCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		panic(err)
	}
}

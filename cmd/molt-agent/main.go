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
	"flag"

	"github.com/molthq/molt/internal/agent/bootstrap"
)

var configFile string

func init() {
	flag.StringVar(&configFile, "conf", "conf.d/agent.toml", "config file path, e.g. -conf ./conf.d/agent.toml")
}

func main() {
	flag.Parse()

	// Bootstrap 初始化 agent
	agent, cleanup, _, err := bootstrap.Bootstrap(configFile, initAgent)
	if err != nil {
		panic(err)
	}

	// 启动 agent 并等待退出信号
	bootstrap.Run(agent, cleanup)
}

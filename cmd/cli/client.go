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
	"encoding/json"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/molthq/molt/pkg/env"
)

// envelope mirrors the engine response wrapper; detail stays raw so the
// printer can re-encode it in whatever format the caller asked for.
type envelope struct {
	Code   int             `json:"code"`
	Msg    string          `json:"msg"`
	Detail json.RawMessage `json:"detail"`
}

func apiClient() *resty.Client {
	base := endpoint
	if base == "" {
		base = env.GetEnvString("MOLT_ENDPOINT", "http://127.0.0.1:8080")
	}
	return resty.New().
		SetTimeout(30 * time.Second).
		SetBaseURL(strings.TrimSuffix(base, "/"))
}

// decode unwraps the engine envelope and surfaces non-zero codes as errors.
func decode(resp *resty.Response, err error) (json.RawMessage, error) {
	if err != nil {
		return nil, err
	}
	var rep envelope
	if err := sonic.Unmarshal(resp.Body(), &rep); err != nil {
		return nil, errors.Wrap(err, "decode engine response")
	}
	if rep.Code != 0 {
		return nil, errors.Errorf("engine: %s", rep.Msg)
	}
	return rep.Detail, nil
}

func printDetail(cmd *cobra.Command, detail json.RawMessage) error {
	if len(detail) == 0 {
		cmd.Println("ok")
		return nil
	}
	if strings.EqualFold(output, "yaml") {
		out, err := yaml.JSONToYAML(detail)
		if err != nil {
			return errors.Wrap(err, "render yaml")
		}
		cmd.Print(string(out))
		return nil
	}
	var v any
	if err := sonic.Unmarshal(detail, &v); err != nil {
		return errors.Wrap(err, "decode detail")
	}
	out, err := sonic.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, "render json")
	}
	cmd.Println(string(out))
	return nil
}

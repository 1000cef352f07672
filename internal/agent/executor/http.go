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

package executor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/molthq/molt/internal/agent/logstream"
)

const maxErrorBody = 2048

// runHTTP calls POST <endpoint>/v1/steps/<step>:run. Any 2xx is success
// and the JSON body becomes the step output; everything else fails with
// the raw response text.
func (e *Executor) runHTTP(ctx context.Context, t Target, migrationId, step, workspace string, logger *logstream.StepLogger) (map[string]any, error) {
	url := strings.TrimSuffix(t.Endpoint, "/") + "/v1/steps/" + step + ":run"

	req := e.client.R().
		SetContext(ctx).
		SetBody(map[string]any{
			"migrationId": migrationId,
			"step":        step,
			"model":       t.Model,
			"options":     t.Options,
			"workspace":   workspace,
		})
	if t.credential != "" {
		req.SetAuthToken(t.credential)
	}

	logger.Line("agent", fmt.Sprintf("calling backend %s", url))
	start := time.Now()
	resp, err := req.Post(url)
	if err != nil {
		return nil, errors.Wrapf(err, "call backend %s", url)
	}
	logger.Line("agent", fmt.Sprintf("backend replied %d in %s", resp.StatusCode(), time.Since(start).Round(time.Millisecond)))

	body := resp.Body()
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return nil, errors.Errorf("backend returned status %d: %s", resp.StatusCode(), truncate(string(body), maxErrorBody))
	}

	output := map[string]any{}
	if len(body) > 0 {
		if err := sonic.Unmarshal(body, &output); err != nil {
			// Non-JSON success bodies are kept verbatim.
			output = map[string]any{"raw": string(body)}
		}
	}
	output["durationMs"] = time.Since(start).Milliseconds()
	return output, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

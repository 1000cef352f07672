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

package metrics

import (
	"sync"
	"time"

	gometrics "github.com/hashicorp/go-metrics"
)

var (
	cronSinkMu sync.RWMutex
	cronSink   gometrics.MetricSink
)

// SetupCronMetrics wires the sink the cron helpers record into.
func SetupCronMetrics(sink gometrics.MetricSink) {
	cronSinkMu.Lock()
	defer cronSinkMu.Unlock()
	cronSink = sink
}

// ObserveCronRun records one scheduled job execution.
func ObserveCronRun(job string, start time.Time, err error) {
	cronSinkMu.RLock()
	sink := cronSink
	cronSinkMu.RUnlock()
	if sink == nil {
		return
	}

	elapsed := float32(time.Since(start).Milliseconds())
	sink.AddSample([]string{"cron", job, "elapsed_ms"}, elapsed)
	if err != nil {
		sink.IncrCounter([]string{"cron", job, "failures"}, 1)
		return
	}
	sink.IncrCounter([]string{"cron", job, "runs"}, 1)
}

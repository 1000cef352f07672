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

package consts

// Redis cache key prefixes shared across repositories.
const (
	MigrationDetailKey = "migration:detail:"
	BackendDetailKey   = "backend:detail:"
	BackendByNameKey   = "backend:name:"
	ProjectDetailKey   = "project:detail:"
)

// Change-feed names. A feed id is <prefix><migrationId>.
const (
	FeedMigrationPrefix    = "feed:migration:"
	FeedProcessPrefix      = "feed:process:"
	FeedStepPrefix         = "feed:step:"
	FeedAnalysisPrefix     = "feed:analysis:"
	FeedRedisChannelPrefix = "molt:feed:"
)

// FeedTransitions is a single feed, not a prefix. Worker processes
// publish every record write to it so the engine can fan transitions
// out to in-process subscribers.
const FeedTransitions = "feed:transitions"

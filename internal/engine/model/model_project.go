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

package model

// Project 迁移项目表
type Project struct {
	BaseModel
	ProjectId     string `gorm:"column:project_id;type:VARCHAR(64);uniqueIndex" json:"projectId"`
	Name          string `gorm:"column:name;type:VARCHAR(255)" json:"name"`
	Description   string `gorm:"column:description;type:TEXT" json:"description"`
	SourceRepoUrl string `gorm:"column:source_repo_url;type:VARCHAR(512)" json:"sourceRepoUrl"`
	TargetStack   string `gorm:"column:target_stack;type:VARCHAR(128)" json:"targetStack"`
	Status        int    `gorm:"column:status" json:"status"` // 1:active 2:disabled
	CreatedBy     string `gorm:"column:created_by;type:VARCHAR(64)" json:"createdBy"`
}

func (Project) TableName() string {
	return "t_projects"
}

const (
	ProjectStatusActive   = 1
	ProjectStatusDisabled = 2
)

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

package database

import "gorm.io/gorm"

// IDatabase is the handle repositories embed to reach the database.
type IDatabase interface {
	// Database returns the gorm handle.
	Database() *gorm.DB
}

type databaseAdapter struct {
	manager Manager
}

// NewDatabaseAdapter wraps a Manager as IDatabase.
func NewDatabaseAdapter(manager Manager) IDatabase {
	return &databaseAdapter{manager: manager}
}

func (d *databaseAdapter) Database() *gorm.DB {
	return d.manager.MySQL()
}

type gormAdapter struct {
	db *gorm.DB
}

// NewGormAdapter wraps a raw gorm handle as IDatabase. Tests use it to back
// repositories with sqlite.
func NewGormAdapter(db *gorm.DB) IDatabase {
	return &gormAdapter{db: db}
}

func (g *gormAdapter) Database() *gorm.DB {
	return g.db
}

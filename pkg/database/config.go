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

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// dataTablePrefix is prepended to every data table name.
const dataTablePrefix = "t_"

// Database holds the shared connection configuration.
type Database struct {
	MySQL        MySQLConfig `mapstructure:"mysql"`
	OutPut       bool        `mapstructure:"output"`
	MaxIdleConns int         `mapstructure:"maxIdleConns"`
	MaxOpenConns int         `mapstructure:"maxOpenConns"`
	MaxIdleTime  int         `mapstructure:"maxIdleTime"` // seconds
	MaxLifetime  int         `mapstructure:"maxLifetime"` // seconds
}

// MySQLConfig holds MySQL connection parameters. Primary and Replicas hold
// extra DSN sources for read-write separation.
type MySQLConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
	DBName   string   `mapstructure:"dbName"`
	Primary  []string `mapstructure:"primary"`
	Replicas []string `mapstructure:"replicas"`
}

// SetDefaults fills missing configuration values.
func (d *Database) SetDefaults() {
	if d.MySQL.Host == "" {
		d.MySQL.Host = "127.0.0.1"
	}
	if d.MySQL.Port <= 0 {
		d.MySQL.Port = 3306
	}
	if d.MaxIdleConns <= 0 {
		d.MaxIdleConns = 10
	}
	if d.MaxOpenConns <= 0 {
		d.MaxOpenConns = 100
	}
	if d.MaxIdleTime <= 0 {
		d.MaxIdleTime = 600
	}
	if d.MaxLifetime <= 0 {
		d.MaxLifetime = 3600
	}
}

// buildMySQLDSN assembles a MySQL DSN with the charset and time settings
// every connection needs.
func buildMySQLDSN(user, password, host string, port int, dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, dbName)
}

// buildDialectors converts DSN strings into gorm dialectors.
func buildDialectors(dsns []string) ([]gorm.Dialector, error) {
	dialectors := make([]gorm.Dialector, 0, len(dsns))
	for _, dsn := range dsns {
		if dsn == "" {
			return nil, fmt.Errorf("empty DSN in resolver configuration")
		}
		dialectors = append(dialectors, mysql.Open(dsn))
	}
	return dialectors, nil
}

// GetConnMaxIdleTime converts the configured seconds to a duration.
func GetConnMaxIdleTime(seconds int) time.Duration {
	if seconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}

// GetConnMaxLifetime converts the configured seconds to a duration.
func GetConnMaxLifetime(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}

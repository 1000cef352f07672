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

package inject

import (
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	tracectx "github.com/molthq/molt/pkg/trace/context"
)

const gormSpanStartKey = "otel:span_start"

// gormPlugin traces every gorm operation as a client span.
type gormPlugin struct {
	tracer           oteltrace.Tracer
	excludeQueryVars bool
	excludeMetrics   bool
}

// RegisterGormPlugin installs tracing callbacks on the gorm handle.
// excludeQueryVars keeps bind variables out of the recorded statement.
// excludeMetrics skips the timing attributes.
func RegisterGormPlugin(db *gorm.DB, excludeQueryVars, excludeMetrics bool) error {
	p := &gormPlugin{
		tracer:           otel.Tracer("github.com/molthq/molt/pkg/trace/inject"),
		excludeQueryVars: excludeQueryVars,
		excludeMetrics:   excludeMetrics,
	}
	return db.Use(p)
}

func (p *gormPlugin) Name() string {
	return "molt:otelgorm"
}

func (p *gormPlugin) Initialize(db *gorm.DB) error {
	if err := db.Callback().Create().Before("gorm:create").Register("molt:before_create", p.before("create")); err != nil {
		return err
	}
	if err := db.Callback().Create().After("gorm:create").Register("molt:after_create", p.after()); err != nil {
		return err
	}
	if err := db.Callback().Query().Before("gorm:query").Register("molt:before_query", p.before("query")); err != nil {
		return err
	}
	if err := db.Callback().Query().After("gorm:query").Register("molt:after_query", p.after()); err != nil {
		return err
	}
	if err := db.Callback().Update().Before("gorm:update").Register("molt:before_update", p.before("update")); err != nil {
		return err
	}
	if err := db.Callback().Update().After("gorm:update").Register("molt:after_update", p.after()); err != nil {
		return err
	}
	if err := db.Callback().Delete().Before("gorm:delete").Register("molt:before_delete", p.before("delete")); err != nil {
		return err
	}
	if err := db.Callback().Delete().After("gorm:delete").Register("molt:after_delete", p.after()); err != nil {
		return err
	}
	if err := db.Callback().Row().Before("gorm:row").Register("molt:before_row", p.before("row")); err != nil {
		return err
	}
	if err := db.Callback().Row().After("gorm:row").Register("molt:after_row", p.after()); err != nil {
		return err
	}
	if err := db.Callback().Raw().Before("gorm:raw").Register("molt:before_raw", p.before("raw")); err != nil {
		return err
	}
	if err := db.Callback().Raw().After("gorm:raw").Register("molt:after_raw", p.after()); err != nil {
		return err
	}
	return nil
}

func (p *gormPlugin) before(operation string) func(*gorm.DB) {
	return func(tx *gorm.DB) {
		ctx := tracectx.WithSpan(tx.Statement.Context)
		ctx, _ = p.tracer.Start(ctx, "gorm:"+operation, oteltrace.WithSpanKind(oteltrace.SpanKindClient))
		tx.Statement.Context = ctx
		tx.InstanceSet(gormSpanStartKey, time.Now())
	}
}

func (p *gormPlugin) after() func(*gorm.DB) {
	return func(tx *gorm.DB) {
		span := oteltrace.SpanFromContext(tx.Statement.Context)
		if !span.IsRecording() {
			return
		}
		defer span.End()

		query := tx.Statement.SQL.String()
		if !p.excludeQueryVars && query != "" {
			query = tx.Dialector.Explain(query, tx.Statement.Vars...)
		}

		attrs := []attribute.KeyValue{
			attribute.String("db.system", "mysql"),
		}
		if query != "" {
			attrs = append(attrs, attribute.String("db.statement", query))
		}
		if tx.Statement.Table != "" {
			attrs = append(attrs, attribute.String("db.sql.table", tx.Statement.Table))
		}
		if !p.excludeMetrics {
			attrs = append(attrs, attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
			if v, ok := tx.InstanceGet(gormSpanStartKey); ok {
				if start, ok := v.(time.Time); ok {
					attrs = append(attrs, attribute.Int64("db.elapsed_ms", time.Since(start).Milliseconds()))
				}
			}
		}
		span.SetAttributes(attrs...)

		if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
			span.RecordError(tx.Error)
			span.SetStatus(codes.Error, tx.Error.Error())
		}
	}
}

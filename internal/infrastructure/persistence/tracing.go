package persistence

import (
	"errors"
	"fmt"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

// Span attributes added on top of the otelgorm ones
const (
	AttrRowsAffected = attribute.Key("db.rows_affected")
	AttrTable        = attribute.Key("db.sql.table")
)

// Option configures NewDatabase
type Option func(*options)

type options struct {
	tracerProvider trace.TracerProvider
}

// WithTracing records a span per statement through tp. Query variables are
// never attached since they carry organization data.
func WithTracing(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// registerTracing installs the annotation callbacks ahead of otelgorm so they
// run before otelgorm ends the statement span
func registerTracing(db *gorm.DB, driver string, tp trace.TracerProvider) error {
	cb := db.Callback()
	err := errors.Join(
		cb.Create().After("gorm:create").Register("agency:span_create", annotateSpan),
		cb.Query().After("gorm:query").Register("agency:span_query", annotateSpan),
		cb.Update().After("gorm:update").Register("agency:span_update", annotateSpan),
		cb.Delete().After("gorm:delete").Register("agency:span_delete", annotateSpan),
		cb.Row().After("gorm:row").Register("agency:span_row", annotateSpan),
		cb.Raw().After("gorm:raw").Register("agency:span_raw", annotateSpan),
	)
	if err != nil {
		return fmt.Errorf("register span callbacks: %w", err)
	}

	plugin := otelgorm.NewPlugin(
		otelgorm.WithTracerProvider(tp),
		otelgorm.WithDBName(driver),
		otelgorm.WithoutQueryVariables(),
	)
	if err := db.Use(plugin); err != nil {
		return fmt.Errorf("register otelgorm: %w", err)
	}
	return nil
}

func annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(AttrRowsAffected.Int64(db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(AttrTable.String(db.Statement.Table))
	}
}

package workflow

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer = otel.Tracer("github.com/mmdatafocus/pos_backend/workflow")

// startSpan opens a span as a child of the handle's context and returns a handle bound to
// the span, so SQL spans from otelgorm nest under it.
func startSpan(db *gorm.DB, name string, attrs ...attribute.KeyValue) (*gorm.DB, trace.Span) {
	ctx := context.Background()
	if db.Statement != nil && db.Statement.Context != nil {
		ctx = db.Statement.Context
	}
	ctx, span := tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	return db.WithContext(ctx), span
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

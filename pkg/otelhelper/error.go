package otelhelper

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SetError marks the span failed. A nil err leaves the span untouched.
func SetError(span trace.Span, err error, attrs ...attribute.KeyValue) {
	if err == nil {
		return
	}

	span.RecordError(err, trace.WithAttributes(attrs...))
	span.SetStatus(codes.Error, err.Error())
}

// SetDraftOutcome records which draft a successful run produced or matched.
func SetDraftOutcome(span trace.Span, workflowID string, duplicate bool, changes int) {
	span.SetAttributes(
		attribute.String(WorkflowIDKey, workflowID),
		attribute.Bool(DuplicateKey, duplicate),
		attribute.Int(ChangesKey, changes),
	)
	span.SetStatus(codes.Ok, "")
}

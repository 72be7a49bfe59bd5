package logging

import (
	"context"
	"log/slog"

	"loomline/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldProductID is the standardized structured logging key for product identifiers.
	FieldProductID = "product_id"
	// FieldStageID is the standardized structured logging key for stage identifiers.
	FieldStageID = "stage_id"
	// FieldWorkerID is the standardized structured logging key for worker identifiers.
	FieldWorkerID = "worker_id"
	// FieldAction is the standardized structured logging key for activity-log action names.
	FieldAction = "action"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 4)
	if id, ok := services.ProductIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldProductID, id))
	}
	if id, ok := services.StageIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldStageID, id))
	}
	if id, ok := services.ActorIDFromContext(ctx); ok {
		fields = append(fields, slog.Int64(FieldWorkerID, id))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}

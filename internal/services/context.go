package services

import "context"

type contextKey string

const (
	productIDKey contextKey = "product_id"
	stageIDKey   contextKey = "stage_id"
	actorIDKey   contextKey = "actor_id"
	requestIDKey contextKey = "request_id"
)

// WithProductID annotates context with the product identifier.
func WithProductID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, productIDKey, id)
}

// ProductIDFromContext extracts the product identifier if present.
func ProductIDFromContext(ctx context.Context) (int64, bool) {
	return int64FromContext(ctx, productIDKey)
}

// WithStageID annotates context with the stage identifier.
func WithStageID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, stageIDKey, id)
}

// StageIDFromContext extracts the stage identifier if present.
func StageIDFromContext(ctx context.Context) (int64, bool) {
	return int64FromContext(ctx, stageIDKey)
}

// WithActorID annotates context with the identifier of the user performing the
// operation. Activity logging and notifications read it back out.
func WithActorID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, actorIDKey, id)
}

// ActorIDFromContext extracts the acting user identifier if present.
func ActorIDFromContext(ctx context.Context) (int64, bool) {
	return int64FromContext(ctx, actorIDKey)
}

// WithRequestID annotates context with a correlation identifier.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext extracts the correlation identifier if present.
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(requestIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

func int64FromContext(ctx context.Context, key contextKey) (int64, bool) {
	v := ctx.Value(key)
	if v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

package services_test

import (
	"context"
	"testing"

	"loomline/internal/services"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProductID(ctx, 12)
	ctx = services.WithStageID(ctx, 3)
	ctx = services.WithActorID(ctx, 44)
	ctx = services.WithRequestID(ctx, "req-1")

	if id, ok := services.ProductIDFromContext(ctx); !ok || id != 12 {
		t.Fatalf("product id = %d, %v", id, ok)
	}
	if id, ok := services.StageIDFromContext(ctx); !ok || id != 3 {
		t.Fatalf("stage id = %d, %v", id, ok)
	}
	if id, ok := services.ActorIDFromContext(ctx); !ok || id != 44 {
		t.Fatalf("actor id = %d, %v", id, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-1" {
		t.Fatalf("request id = %q, %v", rid, ok)
	}
}

func TestContextAbsentValues(t *testing.T) {
	ctx := context.Background()
	if _, ok := services.ProductIDFromContext(ctx); ok {
		t.Fatal("expected missing product id")
	}
	if _, ok := services.RequestIDFromContext(ctx); ok {
		t.Fatal("expected missing request id")
	}
	if same := services.WithRequestID(ctx, ""); same != ctx {
		t.Fatal("empty request id should not annotate context")
	}
}

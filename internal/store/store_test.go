package store_test

import (
	"context"
	"errors"
	"testing"

	"loomline/internal/services"
	"loomline/internal/store"
	"loomline/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	stages, err := st.ListStages(ctx)
	if err != nil {
		t.Fatalf("ListStages failed: %v", err)
	}
	if len(stages) != 5 {
		t.Fatalf("expected 5 seeded stages, got %d", len(stages))
	}
	if stages[0].Name != "RẬP" || stages[0].Sequence != 1 {
		t.Fatalf("unexpected first stage: %#v", stages[0])
	}
	if stages[4].NormHours != 12 {
		t.Fatalf("expected 12h norm on final stage, got %d", stages[4].NormHours)
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenStore(t, cfg)
	if err := first.Close(); err != nil {
		t.Fatalf("close first store: %v", err)
	}

	second := testsupport.MustOpenStore(t, cfg)
	stages, err := second.ListStages(context.Background())
	if err != nil {
		t.Fatalf("ListStages failed: %v", err)
	}
	if len(stages) != 5 {
		t.Fatalf("reopen duplicated seed data: %d stages", len(stages))
	}
}

func TestCreateProduct(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	product, err := st.CreateProduct(ctx, "ao-001", "Áo sơ mi")
	if err != nil {
		t.Fatalf("CreateProduct failed: %v", err)
	}
	if product.Code != "AO-001" {
		t.Fatalf("expected upper-cased code, got %q", product.Code)
	}
	if product.Status != store.ProductPending {
		t.Fatalf("expected pending status, got %s", product.Status)
	}
	if product.CurrentStageID == nil {
		t.Fatal("expected legacy current stage to point at the first stage")
	}

	if _, err := st.CreateProduct(ctx, "AO-001", "Duplicate"); !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists for duplicate code, got %v", err)
	}

	fetched, err := st.GetProductByCode(ctx, "ao-001")
	if err != nil {
		t.Fatalf("GetProductByCode failed: %v", err)
	}
	if fetched.ID != product.ID {
		t.Fatalf("expected product %d, got %d", product.ID, fetched.ID)
	}
}

func TestListProductsFiltersByStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := testsupport.SeedProduct(t, st, "AO-001", "Áo một")
	testsupport.SeedProduct(t, st, "AO-002", "Áo hai")

	if err := st.SetProductStatus(ctx, first.ID, store.ProductInProgress); err != nil {
		t.Fatalf("SetProductStatus failed: %v", err)
	}

	inProgress, err := st.ListProducts(ctx, store.ProductInProgress)
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(inProgress) != 1 || inProgress[0].ID != first.ID {
		t.Fatalf("unexpected filtered products: %#v", inProgress)
	}

	all, err := st.ListProducts(ctx, "")
	if err != nil {
		t.Fatalf("ListProducts failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 products, got %d", len(all))
	}
}

func TestCreateUserRejectsDuplicates(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	user, err := st.CreateUser(ctx, "lan", "Nguyễn Thị Lan", "may")
	if err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Role != "MAY" {
		t.Fatalf("expected upper-cased role, got %q", user.Role)
	}

	if _, err := st.CreateUser(ctx, "lan", "Khác", "CAT"); !errors.Is(err, services.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	byRole, err := st.UsersByRole(ctx, "MAY")
	if err != nil {
		t.Fatalf("UsersByRole failed: %v", err)
	}
	if len(byRole) != 1 || byRole[0].Username != "lan" {
		t.Fatalf("unexpected users by role: %#v", byRole)
	}
}
